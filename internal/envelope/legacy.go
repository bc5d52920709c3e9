package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/osissync/internal/codec"
	"github.com/dmitrijs2005/osissync/internal/common"
	"github.com/dmitrijs2005/osissync/internal/schema"
)

// legacyObject is one element of a Django-style serialized list:
//
//	{"model": "base.student", "fields": {"uuid": "...", "person": ["<uuid>"]}}
//
// Foreign keys are natural keys (a one-element list holding the uuid).
type legacyObject struct {
	Model  string                     `json:"model"`
	Fields map[string]json.RawMessage `json:"fields"`
}

func decodeLegacy(reg *schema.Registry, probe map[string]json.RawMessage) ([]Envelope, error) {
	toDelete, err := decodeFlag(probe["to_delete"])
	if err != nil {
		return nil, err
	}

	list, err := legacyList(probe["serialized_objects"])
	if err != nil {
		return nil, err
	}

	out := make([]Envelope, 0, len(list))
	for _, obj := range list {
		body, err := fromLegacy(reg, obj)
		if err != nil {
			return nil, err
		}
		out = append(out, Envelope{Body: body, ToDelete: toDelete})
	}
	return out, nil
}

// legacyList accepts serialized_objects either as the JSON text produced by
// the old serializer or as an inline array. null means nothing to apply.
func legacyList(raw json.RawMessage) ([]legacyObject, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("%w: serialized_objects: %v", ErrMalformed, err)
		}
		if text == "" {
			return nil, nil
		}
		raw = []byte(text)
	}

	var list []legacyObject
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("%w: serialized_objects: %v", ErrMalformed, err)
	}
	return list, nil
}

func fromLegacy(reg *schema.Registry, obj legacyObject) (*codec.SerializedRecord, error) {
	m, known := reg.Lookup(obj.Model)

	fields := make(map[string]any, len(obj.Fields))
	for name, raw := range obj.Fields {
		if known {
			if f, ok := m.Field(name); ok && f.Type == schema.Relation {
				if ref, keep := naturalKey(f, raw); keep {
					fields[name] = ref
				}
				continue
			}
		}

		v, err := codec.DecodeField(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrMalformed, obj.Model, name, err)
		}
		fields[name] = v
	}

	return &codec.SerializedRecord{Model: obj.Model, Fields: fields}, nil
}

// naturalKey turns ["<uuid>"] into a stand-in nested record the reconciler
// can resolve or create. Surrogate keys are meaningless across deployments and
// are dropped.
func naturalKey(f schema.Field, raw json.RawMessage) (any, bool) {
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, []byte("null")) {
		return nil, true
	}

	var key []any
	if err := json.Unmarshal(raw, &key); err != nil || len(key) != 1 {
		return nil, false
	}
	id, ok := key[0].(string)
	if !ok || id == "" {
		return nil, false
	}
	return &codec.SerializedRecord{
		Model:  f.Target,
		Fields: map[string]any{common.UUIDField: id},
	}, true
}
