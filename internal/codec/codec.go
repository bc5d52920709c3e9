package codec

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/osissync/internal/common"
	"github.com/dmitrijs2005/osissync/internal/models"
	"github.com/dmitrijs2005/osissync/internal/schema"
	"github.com/dmitrijs2005/osissync/internal/timex"
)

// MultipleTypesError is returned when a batch mixes records of different
// models. One message carries one model schema.
type MultipleTypesError struct {
	Models []string
}

func (e *MultipleTypesError) Error() string {
	return "cannot serialize records of multiple models in one batch: " + strings.Join(e.Models, ", ")
}

// Codec serializes records whose models are known to its registry.
type Codec struct {
	registry *schema.Registry
}

func New(reg *schema.Registry) *Codec {
	return &Codec{registry: reg}
}

// Serialize converts rec into its wire form. A nil record yields nil.
// lastSyncs maps model names to the time they were last synced; it may be nil.
func (c *Codec) Serialize(rec *models.Record, lastSyncs map[string]time.Time) (*SerializedRecord, error) {
	if rec == nil {
		return nil, nil
	}
	if err := rec.Synchronizable(c.registry); err != nil {
		return nil, fmt.Errorf("%s: %w", modelName(rec), err)
	}
	return c.serialize(rec, lastSyncs), nil
}

func (c *Codec) serialize(rec *models.Record, lastSyncs map[string]time.Time) *SerializedRecord {
	fields := make(map[string]any, len(rec.Model.Fields)+1)
	fields[common.UUIDField] = rec.UUID.String()

	for _, f := range rec.Model.Fields {
		v, ok := rec.Values[f.Name]
		if !ok {
			continue
		}

		switch f.Kind() {
		case schema.Relational:
			if v == nil {
				fields[f.Name] = nil
				continue
			}
			rel, isRecord := v.(*models.Record)
			if !isRecord {
				continue
			}
			if rel == nil {
				fields[f.Name] = nil
				continue
			}
			// Relations to anything the registry does not know are skipped,
			// which also stops recursion into non-domain types.
			if rel.Synchronizable(c.registry) != nil {
				continue
			}
			fields[f.Name] = c.serialize(rel, lastSyncs)
		default:
			fields[f.Name] = encodeValue(v)
		}
	}

	out := &SerializedRecord{Model: rec.Model.Name, Fields: fields}
	if ts, ok := lastSyncs[rec.Model.Name]; ok {
		epoch := timex.ToEpoch(ts)
		out.LastSync = &epoch
	}
	return out
}

// SerializeBatch serializes homogeneous records. Mixing models fails with
// *MultipleTypesError before anything is serialized.
func (c *Codec) SerializeBatch(recs []*models.Record, lastSyncs map[string]time.Time) ([]*SerializedRecord, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	if err := CheckHomogeneous(recs); err != nil {
		return nil, err
	}

	out := make([]*SerializedRecord, 0, len(recs))
	for _, rec := range recs {
		sr, err := c.Serialize(rec, lastSyncs)
		if err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, nil
}

// CheckHomogeneous fails with *MultipleTypesError if recs span several models.
// Nil records serialize to nil and are ignored.
func CheckHomogeneous(recs []*models.Record) error {
	seen := make(map[string]struct{})
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		seen[modelName(rec)] = struct{}{}
	}
	if len(seen) <= 1 {
		return nil
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return &MultipleTypesError{Models: names}
}

func modelName(rec *models.Record) string {
	if rec == nil || rec.Model == nil {
		return "<nil>"
	}
	return rec.Model.Name
}

// encodeValue copies JSON scalars as is, turns temporal values into epoch
// seconds and coerces anything else to a string.
func encodeValue(v any) any {
	switch value := v.(type) {
	case nil, string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return value
	case float32:
		return encodeFloat(float64(value))
	case float64:
		return encodeFloat(value)
	case time.Time:
		return timex.ToEpoch(value)
	case *time.Time:
		if value == nil {
			return nil
		}
		return timex.ToEpoch(*value)
	case []byte:
		return string(value)
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprint(value)
	}
}

func encodeFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Sprint(f)
	}
	return f
}
