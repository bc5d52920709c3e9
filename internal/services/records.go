// Package services contains the main-side business logic around
// synchronizable records. RecordService performs local writes and hands the
// committed mutations to the publisher.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/osissync/internal/common"
	"github.com/dmitrijs2005/osissync/internal/dbx"
	"github.com/dmitrijs2005/osissync/internal/logging"
	"github.com/dmitrijs2005/osissync/internal/models"
	"github.com/dmitrijs2005/osissync/internal/repositories/repomanager"
	"github.com/dmitrijs2005/osissync/internal/schema"
	"github.com/google/uuid"
)

// Publisher receives mutations after their transaction has committed.
type Publisher interface {
	Publish(ctx context.Context, mut models.Mutation) error
	PublishBatch(ctx context.Context, recs []*models.Record, lastSyncs map[string]time.Time) error
}

type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	registry    *schema.Registry
	publisher   Publisher
	logger      logging.Logger
	now         func() time.Time
}

type Option func(*RecordService)

// WithClock replaces time.Now as the source of changed stamps.
func WithClock(now func() time.Time) Option {
	return func(s *RecordService) { s.now = now }
}

func NewRecordService(db *sql.DB, m repomanager.RepositoryManager, reg *schema.Registry, pub Publisher, logger logging.Logger, opts ...Option) *RecordService {
	s := &RecordService{
		db:          db,
		repomanager: m,
		registry:    reg,
		publisher:   pub,
		logger:      logger.With("module", "records"),
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Save stamps rec as changed now, upserts it by uuid and publishes the
// stored state. It returns the stored record with relations loaded.
func (s *RecordService) Save(ctx context.Context, rec *models.Record) (*models.Record, error) {
	if err := rec.Synchronizable(s.registry); err != nil {
		return nil, err
	}
	rec.Set(common.ChangedField, s.now().UTC())

	var mut models.Mutation
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Records(tx)

		saved, err := repo.Save(ctx, rec)
		if err != nil {
			return err
		}
		stored, err := repo.GetByID(ctx, rec.Model, rec.ID)
		if err != nil {
			return err
		}
		if err := repo.Hydrate(ctx, stored); err != nil {
			return err
		}
		mut = models.Mutation{Op: saved.Op, Record: stored}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("save %s: %w", rec.Model.Name, err)
	}

	if err := s.publisher.Publish(ctx, mut); err != nil {
		return mut.Record, fmt.Errorf("publish %s: %w", rec.Model.Name, err)
	}
	return mut.Record, nil
}

// Delete removes the record and publishes its last known state. Deleting
// an absent record does nothing.
func (s *RecordService) Delete(ctx context.Context, model string, id uuid.UUID) error {
	m, ok := s.registry.Lookup(model)
	if !ok {
		return fmt.Errorf("%w: %q", common.ErrUnknownModel, model)
	}

	var (
		mut   models.Mutation
		found bool
	)
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		mut, err = s.repomanager.Records(tx).Remove(ctx, m, id)
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	}); err != nil {
		return fmt.Errorf("delete %s: %w", model, err)
	}

	if !found {
		s.logger.Debug(ctx, "delete of absent record", "model", model, "uuid", id.String())
		return nil
	}
	if err := s.publisher.Publish(ctx, mut); err != nil {
		return fmt.Errorf("publish %s: %w", model, err)
	}
	return nil
}

// Export re-publishes every record of model, stamped with the model's
// previous last-sync time, then advances that stamp. It returns the number
// of records sent.
func (s *RecordService) Export(ctx context.Context, model string) (int, error) {
	m, ok := s.registry.Lookup(model)
	if !ok {
		return 0, fmt.Errorf("%w: %q", common.ErrUnknownModel, model)
	}

	state := s.repomanager.SyncState(s.db)
	repo := s.repomanager.Records(s.db)

	lastSyncs, err := state.All(ctx)
	if err != nil {
		return 0, err
	}
	started := s.now().UTC()

	recs, err := repo.ListAll(ctx, m)
	if err != nil {
		return 0, err
	}
	for _, rec := range recs {
		if err := repo.Hydrate(ctx, rec); err != nil {
			return 0, err
		}
	}

	if err := s.publisher.PublishBatch(ctx, recs, lastSyncs); err != nil {
		return 0, fmt.Errorf("export %s: %w", model, err)
	}
	if err := state.Set(ctx, model, started); err != nil {
		return len(recs), err
	}

	s.logger.Info(ctx, "export finished", "model", model, "records", len(recs))
	return len(recs), nil
}

// ExportAll exports every registered model.
func (s *RecordService) ExportAll(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	for _, name := range s.registry.Names() {
		n, err := s.Export(ctx, name)
		if err != nil {
			return counts, err
		}
		counts[name] = n
	}
	return counts, nil
}
