// Package models defines the generic record shared by storage, the codec and
// the reconciler, and the Mutation value storage writes hand to the publisher.
package models

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/osissync/internal/common"
	"github.com/dmitrijs2005/osissync/internal/schema"
	"github.com/google/uuid"
)

// ErrNotSynchronizable is returned for records that lack a registered model or
// a uuid and therefore cannot travel between deployments.
var ErrNotSynchronizable = errors.New("record is not synchronizable")

// Record is one row of a synchronizable model.
//
// Values holds, by field name:
//   - string, int64, float64 or bool for scalar fields;
//   - time.Time for temporal fields;
//   - *Record for a loaded relation, int64 for an unresolved foreign key,
//     or nil.
type Record struct {
	Model *schema.Model
	// ID is the local surrogate key. It never leaves the deployment.
	ID     int64
	UUID   uuid.UUID
	Values map[string]any
	// Owner is the deployment-local owner association, if the model has one.
	Owner *int64
}

// New returns an unsaved record of model m with a fresh uuid.
func New(m *schema.Model) *Record {
	return &Record{Model: m, UUID: uuid.New(), Values: make(map[string]any)}
}

// Set assigns a field value and returns r for chaining.
func (r *Record) Set(name string, v any) *Record {
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	r.Values[name] = v
	return r
}

func (r *Record) Get(name string) any {
	return r.Values[name]
}

// Related returns the loaded record behind a relation field, or nil.
func (r *Record) Related(name string) *Record {
	rel, _ := r.Values[name].(*Record)
	return rel
}

// Changed returns the record's last-modified stamp.
func (r *Record) Changed() (time.Time, bool) {
	t, ok := r.Values[common.ChangedField].(time.Time)
	return t, ok
}

// Synchronizable reports whether r can be serialized for the other deployment:
// its model must be registered and it must carry a uuid.
func (r *Record) Synchronizable(reg *schema.Registry) error {
	if r == nil || r.Model == nil || r.UUID == uuid.Nil {
		return ErrNotSynchronizable
	}
	if m, ok := reg.Lookup(r.Model.Name); !ok || m != r.Model {
		return ErrNotSynchronizable
	}
	return nil
}
