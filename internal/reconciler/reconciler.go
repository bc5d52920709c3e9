// Package reconciler applies envelopes received from the other deployment to
// local storage. Records are matched by uuid, relations are written before
// the records that point at them, and an incoming write older than the
// local change it would overwrite is skipped.
//
// The staleness check reads the local record and then writes it; the two
// steps are not atomic, so two near-simultaneous syncs of the same uuid from
// different origins can still interleave.
package reconciler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/osissync/internal/codec"
	"github.com/dmitrijs2005/osissync/internal/common"
	"github.com/dmitrijs2005/osissync/internal/dbx"
	"github.com/dmitrijs2005/osissync/internal/envelope"
	"github.com/dmitrijs2005/osissync/internal/logging"
	"github.com/dmitrijs2005/osissync/internal/models"
	"github.com/dmitrijs2005/osissync/internal/repositories/records"
	"github.com/dmitrijs2005/osissync/internal/repositories/repomanager"
	"github.com/dmitrijs2005/osissync/internal/schema"
	"github.com/dmitrijs2005/osissync/internal/timex"
	"github.com/google/uuid"
)

type Reconciler struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	registry    *schema.Registry
	logger      logging.Logger
}

func New(db *sql.DB, m repomanager.RepositoryManager, reg *schema.Registry, logger logging.Logger) *Reconciler {
	return &Reconciler{
		db:          db,
		repomanager: m,
		registry:    reg,
		logger:      logger.With("module", "reconciler"),
	}
}

// HandleMessage is the queue receive callback. Every envelope in the payload
// is applied in its own transaction; the first failure stops the message.
func (r *Reconciler) HandleMessage(ctx context.Context, payload []byte) error {
	envs, err := envelope.Decode(r.registry, payload)
	if err != nil {
		r.logger.Error(ctx, "cannot decode message", "error", err)
		return err
	}

	for _, env := range envs {
		if _, err := r.Apply(ctx, env); err != nil {
			r.logger.Error(ctx, "cannot apply envelope",
				"model", env.Body.Model, "uuid", env.Body.UUID(), "to_delete", env.ToDelete, "error", err)
			return err
		}
		r.logger.Debug(ctx, "envelope applied",
			"model", env.Body.Model, "uuid", env.Body.UUID(), "to_delete", env.ToDelete)
	}
	return nil
}

// Apply unwraps and persists one envelope atomically. It returns the local
// identifier of the upserted record, or 0 for deletions.
func (r *Reconciler) Apply(ctx context.Context, env envelope.Envelope) (int64, error) {
	var id int64
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := r.repomanager.Records(tx)

		body, err := r.Unwrap(ctx, repo, env)
		if err != nil {
			return err
		}
		id, err = r.Persist(ctx, repo, body)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Unwrap performs the delete carried by env, returning nil, or hands back
// the body for upsert processing. Deleting an absent record is a no-op.
func (r *Reconciler) Unwrap(ctx context.Context, repo records.Repository, env envelope.Envelope) (*codec.SerializedRecord, error) {
	if !env.ToDelete {
		return env.Body, nil
	}
	if env.Body == nil {
		return nil, nil
	}

	m, id, err := r.identify(env.Body)
	if err != nil {
		return nil, err
	}

	existed, err := repo.DeleteByUUID(ctx, m, id)
	if err != nil {
		return nil, err
	}
	if !existed {
		r.logger.Debug(ctx, "delete of absent record", "model", m.Name, "uuid", id.String())
	}
	return nil, nil
}

// Persist writes sr and returns its local identifier; 0 stands for null.
func (r *Reconciler) Persist(ctx context.Context, repo records.Repository, sr *codec.SerializedRecord) (int64, error) {
	if sr == nil {
		return 0, nil
	}

	m, id, err := r.identify(sr)
	if err != nil {
		return 0, err
	}

	existing, err := repo.FindByUUID(ctx, m, id)
	if errors.Is(err, common.ErrorNotFound) {
		existing = nil
	} else if err != nil {
		return 0, err
	}

	if existing != nil && stale(existing, sr) {
		r.logger.Debug(ctx, "skipping stale update", "model", m.Name, "uuid", id.String())
		return existing.ID, nil
	}

	rec := &models.Record{Model: m, UUID: id, Values: make(map[string]any, len(sr.Fields))}
	for name, v := range sr.Fields {
		f, ok := m.Field(name)
		if !ok {
			continue
		}
		value, keep, err := r.resolve(ctx, repo, f, v)
		if err != nil {
			return 0, fmt.Errorf("%s.%s: %w", m.Name, name, err)
		}
		if keep {
			rec.Values[name] = value
		}
	}

	if existing == nil {
		return repo.Insert(ctx, rec)
	}

	rec.ID = existing.ID
	// The owner association never crosses deployments.
	if m.Owner != "" && existing.Owner != nil {
		owner := *existing.Owner
		rec.Owner = &owner
	}
	if err := repo.Update(ctx, rec); err != nil {
		return 0, err
	}
	return rec.ID, nil
}

// resolve turns a wire value into a storage value. Relations are persisted
// first and replaced by their local identifier. keep is false for values
// that carry nothing usable, such as a bare surrogate key.
func (r *Reconciler) resolve(ctx context.Context, repo records.Repository, f schema.Field, v any) (any, bool, error) {
	if f.Type != schema.Relation {
		value, err := schema.Normalize(f, v)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", common.ErrInvalidField, err)
		}
		return value, true, nil
	}

	switch nested := v.(type) {
	case nil:
		return nil, true, nil
	case *codec.SerializedRecord:
		if nested == nil {
			return nil, true, nil
		}
		if nested.Model == "" {
			nested.Model = f.Target
		} else if nested.Model != f.Target {
			return nil, false, fmt.Errorf("%w: %s is not %s", common.ErrInvalidField, nested.Model, f.Target)
		}
		fk, err := r.Persist(ctx, repo, nested)
		if err != nil {
			return nil, false, err
		}
		if fk == 0 {
			return nil, true, nil
		}
		return fk, true, nil
	default:
		return nil, false, nil
	}
}

func (r *Reconciler) identify(sr *codec.SerializedRecord) (*schema.Model, uuid.UUID, error) {
	m, ok := r.registry.Lookup(sr.Model)
	if !ok {
		return nil, uuid.Nil, fmt.Errorf("%w: %q", common.ErrUnknownModel, sr.Model)
	}
	id, err := uuid.Parse(sr.UUID())
	if err != nil || id == uuid.Nil {
		return nil, uuid.Nil, fmt.Errorf("%w: %s", common.ErrMissingUUID, sr.Model)
	}
	return m, id, nil
}

// stale reports whether the local record changed after the sender last
// synced it. Without either stamp the incoming write wins.
func stale(local *models.Record, sr *codec.SerializedRecord) bool {
	if sr.LastSync == nil {
		return false
	}
	changed, ok := local.Changed()
	if !ok {
		return false
	}
	return timex.ToEpoch(changed) > *sr.LastSync
}
