package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/osissync/internal/flagx"
	"github.com/dmitrijs2005/osissync/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration. Durations accept
// both strings such as "5s" and integer nanoseconds.
type JsonConfig struct {
	Deployment     string         `json:"deployment"`
	DatabaseDriver string         `json:"database_driver"`
	DatabaseDSN    string         `json:"database_dsn"`
	AMQPURL        string         `json:"amqp_url"`
	ProduceQueue   string         `json:"produce_queue"`
	ConsumeQueue   string         `json:"consume_queue"`
	PublishEnabled *bool          `json:"publish_enabled"`
	Prefetch       int            `json:"prefetch"`
	ReconnectDelay timex.Duration `json:"reconnect_delay"`
	LogLevel       string         `json:"log_level"`
}

// parseJson overlays the JSON file named by -c/-config onto config. Keys
// missing from the file keep their current value. An unreadable or invalid
// file panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.Deployment, c.Deployment)
	setString(&config.DatabaseDriver, c.DatabaseDriver)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.AMQPURL, c.AMQPURL)
	setString(&config.ProduceQueue, c.ProduceQueue)
	setString(&config.ConsumeQueue, c.ConsumeQueue)
	setString(&config.LogLevel, c.LogLevel)
	if c.PublishEnabled != nil {
		config.PublishEnabled = *c.PublishEnabled
	}
	if c.Prefetch > 0 {
		config.Prefetch = c.Prefetch
	}
	if c.ReconnectDelay.Duration > 0 {
		config.ReconnectDelay = time.Duration(c.ReconnectDelay.Duration)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
