package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/osissync/internal/common"
)

// SerializedRecord is the wire form of one record. Field values are nil, a
// JSON scalar (json.Number for numbers once decoded) or a nested
// *SerializedRecord.
type SerializedRecord struct {
	Model    string         `json:"model"`
	Fields   map[string]any `json:"fields"`
	LastSync *float64       `json:"last_sync"`
}

// UUID returns the uuid carried in the fields, or "" if absent.
func (s *SerializedRecord) UUID() string {
	if s == nil {
		return ""
	}
	v, _ := s.Fields[common.UUIDField].(string)
	return v
}

func (s *SerializedRecord) UnmarshalJSON(b []byte) error {
	var raw struct {
		Model    string                     `json:"model"`
		Fields   map[string]json.RawMessage `json:"fields"`
		LastSync *float64                   `json:"last_sync"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	fields := make(map[string]any, len(raw.Fields))
	for name, v := range raw.Fields {
		value, err := DecodeField(v)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		fields[name] = value
	}

	s.Model = raw.Model
	s.Fields = fields
	s.LastSync = raw.LastSync
	return nil
}

// DecodeField parses one raw field value: objects carrying a "model" key
// become nested records, numbers stay json.Number.
func DecodeField(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return nil, err
		}
		if _, ok := probe["model"]; ok {
			nested := &SerializedRecord{}
			if err := json.Unmarshal(trimmed, nested); err != nil {
				return nil, err
			}
			return nested, nil
		}
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
