package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func person() *Model {
	return &Model{
		Name:  "base.person",
		Table: "base_person",
		Owner: "user",
		Fields: []Field{
			{Name: "first_name", Type: String},
			{Name: "birth_date", Type: Date},
			{Name: "changed", Type: DateTime},
		},
	}
}

func student() *Model {
	return &Model{
		Name:  "base.student",
		Table: "base_student",
		Fields: []Field{
			{Name: "person", Type: Relation, Target: "base.person"},
			{Name: "registration_id", Type: String},
		},
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(person()))
	require.NoError(t, r.Register(student()))

	m, ok := r.Lookup("base.student")
	require.True(t, ok)
	f, ok := m.Field("person")
	require.True(t, ok)
	assert.Equal(t, Relational, f.Kind())
	assert.Equal(t, "person_id", f.Column())
	assert.Equal(t, "base.person", f.Target)

	_, ok = m.Field("nope")
	assert.False(t, ok)

	_, ok = r.Lookup("base.tutor")
	assert.False(t, ok)

	assert.Equal(t, []string{"base.person", "base.student"}, r.Names())
}

func TestRegistry_RejectsUnregisteredTarget(t *testing.T) {
	r := NewRegistry()
	err := r.Register(student())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unregistered model base.person")
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(person()))
	require.Error(t, r.Register(person()))
}

func TestModel_Validate(t *testing.T) {
	tests := []struct {
		name  string
		model *Model
	}{
		{"no table", &Model{Name: "x.y"}},
		{"reserved uuid", &Model{Name: "x.y", Table: "t", Fields: []Field{{Name: "uuid"}}}},
		{"reserved id", &Model{Name: "x.y", Table: "t", Fields: []Field{{Name: "id"}}}},
		{"owner as field", &Model{Name: "x.y", Table: "t", Owner: "user", Fields: []Field{{Name: "user"}}}},
		{"duplicate", &Model{Name: "x.y", Table: "t", Fields: []Field{{Name: "a"}, {Name: "a"}}}},
		{"relation without target", &Model{Name: "x.y", Table: "t", Fields: []Field{{Name: "a", Type: Relation}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, NewRegistry().Register(tt.model))
		})
	}
}

func TestField_Kind(t *testing.T) {
	assert.Equal(t, Scalar, Field{Type: String}.Kind())
	assert.Equal(t, Scalar, Field{Type: Bool}.Kind())
	assert.Equal(t, Temporal, Field{Type: DateTime}.Kind())
	assert.Equal(t, Temporal, Field{Type: Date}.Kind())
	assert.Equal(t, Relational, Field{Type: Relation}.Kind())
	assert.Equal(t, "date", Date.String())
}

func TestModel_OwnerColumn(t *testing.T) {
	assert.Equal(t, "user_id", person().OwnerColumn())
	assert.Equal(t, "", student().OwnerColumn())
}

func TestMustRegister_Panics(t *testing.T) {
	require.Panics(t, func() { NewRegistry().MustRegister(student()) })
}
