// Package schema describes synchronizable models explicitly: which fields a
// model has, what kind each field is and which model a relational field points
// to. The codec, the reconciler and the SQL repositories are all driven by
// these descriptors instead of inspecting Go types at runtime.
package schema

import (
	"fmt"
	"sort"
	"sync"
)

// Type is the storage and wire type of a field.
type Type int

const (
	String Type = iota
	Int
	Float
	Bool
	DateTime
	Date
	Relation
)

func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Int:
		return "int"
	case Float:
		return "float"
	case Bool:
		return "bool"
	case DateTime:
		return "datetime"
	case Date:
		return "date"
	case Relation:
		return "relation"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Kind groups types the way the codec treats them.
type Kind int

const (
	Scalar Kind = iota
	Temporal
	Relational
)

// Field is one declared field of a model.
type Field struct {
	Name string
	Type Type
	// Target is the model name a Relation field references.
	Target string
}

func (f Field) Kind() Kind {
	switch f.Type {
	case Relation:
		return Relational
	case DateTime, Date:
		return Temporal
	default:
		return Scalar
	}
}

// Column is the storage column backing the field. Relations are stored as
// "<name>_id" foreign keys.
func (f Field) Column() string {
	if f.Type == Relation {
		return f.Name + "_id"
	}
	return f.Name
}

// Model is the descriptor of one synchronizable record type.
type Model struct {
	// Name is the fully-qualified wire name, e.g. "base.person".
	Name  string
	Table string
	// Fields lists every synchronized field except uuid and the local id.
	Fields []Field
	// Owner names a deployment-local association (e.g. "user") that is
	// never put on the wire and must survive incoming syncs. Empty if none.
	Owner string

	index map[string]int
}

// Field returns the named field descriptor.
func (m *Model) Field(name string) (Field, bool) {
	if m.index == nil {
		return m.lookupSlow(name)
	}
	i, ok := m.index[name]
	if !ok {
		return Field{}, false
	}
	return m.Fields[i], true
}

func (m *Model) lookupSlow(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// OwnerColumn is the foreign-key column of the owner association.
func (m *Model) OwnerColumn() string {
	if m.Owner == "" {
		return ""
	}
	return m.Owner + "_id"
}

func (m *Model) validate() error {
	if m.Name == "" || m.Table == "" {
		return fmt.Errorf("model %q: name and table are required", m.Name)
	}
	seen := make(map[string]struct{}, len(m.Fields))
	for _, f := range m.Fields {
		if f.Name == "" || f.Name == "id" || f.Name == "uuid" || f.Name == m.Owner {
			return fmt.Errorf("model %s: invalid field name %q", m.Name, f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("model %s: duplicate field %q", m.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Type == Relation && f.Target == "" {
			return fmt.Errorf("model %s: relation %q has no target", m.Name, f.Name)
		}
	}
	return nil
}

// Registry maps wire model names to descriptors. It is populated once at
// process start and read concurrently afterwards.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
}

func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Model)}
}

// Register adds m. Relation targets must already be registered, so models are
// registered leaves first and the relation graph stays acyclic.
func (r *Registry) Register(m *Model) error {
	if err := m.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.models[m.Name]; dup {
		return fmt.Errorf("model %s already registered", m.Name)
	}
	for _, f := range m.Fields {
		if f.Type != Relation {
			continue
		}
		if _, ok := r.models[f.Target]; !ok {
			return fmt.Errorf("model %s: relation %q targets unregistered model %s", m.Name, f.Name, f.Target)
		}
	}

	m.index = make(map[string]int, len(m.Fields))
	for i, f := range m.Fields {
		m.index[f.Name] = i
	}
	r.models[m.Name] = m
	return nil
}

// MustRegister is Register for static catalogs; it panics on error.
func (r *Registry) MustRegister(models ...*Model) {
	for _, m := range models {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
}

// Lookup resolves a wire model name.
func (r *Registry) Lookup(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.models[name]
	return m, ok
}

// Names returns the registered model names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for n := range r.models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
