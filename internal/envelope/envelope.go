// Package envelope wraps serialized records with delivery metadata and parses
// incoming queue payloads, including the legacy batch format older senders
// still produce.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/osissync/internal/codec"
	"github.com/dmitrijs2005/osissync/internal/schema"
)

// ErrMalformed is returned for payloads that match neither wire format.
var ErrMalformed = errors.New("malformed envelope")

// Envelope is one delivery: a record body and whether it is a deletion.
type Envelope struct {
	Body     *codec.SerializedRecord `json:"body"`
	ToDelete bool                    `json:"to_delete,omitempty"`
}

// Upsert wraps body for insert-or-update on the receiving side.
func Upsert(body *codec.SerializedRecord) Envelope {
	return Envelope{Body: body}
}

// Delete wraps the last known state of a deleted record.
func Delete(body *codec.SerializedRecord) Envelope {
	return Envelope{Body: body, ToDelete: true}
}

// Encode renders the envelope as UTF-8 JSON.
func (e Envelope) Encode() ([]byte, error) {
	if e.Body == nil {
		return nil, fmt.Errorf("%w: empty body", ErrMalformed)
	}
	return json.Marshal(e)
}

// Decode parses a queue payload. Payloads in the current format yield exactly
// one envelope; legacy payloads yield one envelope per serialized object.
// The registry resolves relation targets of legacy natural keys.
func Decode(reg *schema.Registry, payload []byte) ([]Envelope, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if _, legacy := probe["serialized_objects"]; legacy {
		return decodeLegacy(reg, probe)
	}

	rawBody, ok := probe["body"]
	if !ok {
		return nil, fmt.Errorf("%w: no body", ErrMalformed)
	}

	var body *codec.SerializedRecord
	if err := json.Unmarshal(rawBody, &body); err != nil {
		return nil, fmt.Errorf("%w: body: %v", ErrMalformed, err)
	}
	if body == nil {
		return nil, fmt.Errorf("%w: null body", ErrMalformed)
	}

	toDelete, err := decodeFlag(probe["to_delete"])
	if err != nil {
		return nil, err
	}

	return []Envelope{{Body: body, ToDelete: toDelete}}, nil
}

// decodeFlag treats an absent or null to_delete as false.
func decodeFlag(raw json.RawMessage) (bool, error) {
	if len(raw) == 0 {
		return false, nil
	}
	var flag *bool
	if err := json.Unmarshal(raw, &flag); err != nil {
		return false, fmt.Errorf("%w: to_delete: %v", ErrMalformed, err)
	}
	return flag != nil && *flag, nil
}
