package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/osissync/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-n string   deployment name
//	-b string   database driver ("postgres" or "sqlite")
//	-d string   database DSN
//	-q string   AMQP URL, empty disables the queue
//	-o string   produce queue
//	-i string   consume queue
//	-e bool     publish local mutations (use -e=false to disable)
//	-p int      consumer prefetch
//	-w int      reconnect delay, seconds
//	-l string   log level
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-n", "-b", "-d", "-q", "-o", "-i", "-e", "-p", "-w", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.Deployment, "n", config.Deployment, "deployment name")
	fs.StringVar(&config.DatabaseDriver, "b", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AMQPURL, "q", config.AMQPURL, "AMQP URL")
	fs.StringVar(&config.ProduceQueue, "o", config.ProduceQueue, "queue to publish to")
	fs.StringVar(&config.ConsumeQueue, "i", config.ConsumeQueue, "queue to consume from")
	fs.BoolVar(&config.PublishEnabled, "e", config.PublishEnabled, "publish local mutations")
	fs.IntVar(&config.Prefetch, "p", config.Prefetch, "consumer prefetch")
	reconnectDelay := fs.Int("w", int(config.ReconnectDelay.Seconds()), "reconnect delay (in seconds)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// Only an explicit -w replaces the delay; the seconds default would
	// truncate a sub-second value from the JSON file.
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "w" {
			config.ReconnectDelay = time.Duration(*reconnectDelay) * time.Second
		}
	})
}
