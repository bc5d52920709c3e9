// Package records stores synchronizable records in SQL tables described by
// schema.Model descriptors. One implementation serves every catalog model;
// the dialect decides placeholder syntax.
package records

import (
	"context"

	"github.com/dmitrijs2005/osissync/internal/models"
	"github.com/dmitrijs2005/osissync/internal/schema"
	"github.com/google/uuid"
)

// Repository describes record persistence.
type Repository interface {
	// FindByUUID returns the flat record (relations as foreign keys) or
	// common.ErrorNotFound.
	FindByUUID(ctx context.Context, m *schema.Model, id uuid.UUID) (*models.Record, error)

	// GetByID returns the flat record with the given local identifier.
	GetByID(ctx context.Context, m *schema.Model, id int64) (*models.Record, error)

	// ListAll returns every record of m ordered by local identifier.
	ListAll(ctx context.Context, m *schema.Model) ([]*models.Record, error)

	// Hydrate replaces foreign keys in rec with the loaded related records,
	// recursively.
	Hydrate(ctx context.Context, rec *models.Record) error

	// Insert writes a new row and assigns rec.ID.
	Insert(ctx context.Context, rec *models.Record) (int64, error)

	// Update writes the fields present in rec to the row with rec.UUID.
	Update(ctx context.Context, rec *models.Record) error

	// DeleteByUUID removes the row, reporting whether one existed.
	DeleteByUUID(ctx context.Context, m *schema.Model, id uuid.UUID) (bool, error)

	// Save upserts rec by uuid and returns the mutation to publish.
	Save(ctx context.Context, rec *models.Record) (models.Mutation, error)

	// Remove deletes the record and returns its last known, hydrated state.
	Remove(ctx context.Context, m *schema.Model, id uuid.UUID) (models.Mutation, error)
}
