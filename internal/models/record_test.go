package models

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/osissync/internal/schema"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) (*schema.Registry, *schema.Model) {
	t.Helper()
	m := &schema.Model{
		Name:   "base.academicyear",
		Table:  "base_academicyear",
		Fields: []schema.Field{{Name: "year", Type: schema.Int}, {Name: "changed", Type: schema.DateTime}},
	}
	r := schema.NewRegistry()
	require.NoError(t, r.Register(m))
	return r, m
}

func TestNew_AssignsUUID(t *testing.T) {
	_, m := testRegistry(t)
	a, b := New(m), New(m)
	assert.NotEqual(t, uuid.Nil, a.UUID)
	assert.NotEqual(t, a.UUID, b.UUID)
	assert.Zero(t, a.ID)
}

func TestRecord_SetGetChanged(t *testing.T) {
	_, m := testRegistry(t)
	now := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	r := New(m).Set("year", int64(2024)).Set("changed", now)

	assert.Equal(t, int64(2024), r.Get("year"))
	got, ok := r.Changed()
	require.True(t, ok)
	assert.Equal(t, now, got)

	assert.Nil(t, r.Related("year"))
}

func TestRecord_Synchronizable(t *testing.T) {
	reg, m := testRegistry(t)

	assert.NoError(t, New(m).Synchronizable(reg))

	var nilRec *Record
	assert.ErrorIs(t, nilRec.Synchronizable(reg), ErrNotSynchronizable)
	assert.ErrorIs(t, (&Record{Model: m}).Synchronizable(reg), ErrNotSynchronizable)

	foreign := &schema.Model{Name: "auth.user", Table: "auth_user"}
	assert.ErrorIs(t, New(foreign).Synchronizable(reg), ErrNotSynchronizable)
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "upsert", OpUpsert.String())
	assert.Equal(t, "delete", OpDelete.String())
}
