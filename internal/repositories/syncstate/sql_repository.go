package syncstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/osissync/internal/dbx"
	"github.com/dmitrijs2005/osissync/internal/schema"
)

var lastSync = schema.Field{Name: "last_sync", Type: schema.DateTime}

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

func (r *SQLRepository) Get(ctx context.Context, model string) (time.Time, bool, error) {
	var raw any
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(`SELECT last_sync FROM sync_state WHERE model = ?`), model).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get sync_state[%s]: %w", model, err)
	}
	t, err := toTime(raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("sync_state[%s]: %w", model, err)
	}
	return t, true, nil
}

func (r *SQLRepository) Set(ctx context.Context, model string, t time.Time) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(`
		INSERT INTO sync_state (model, last_sync) VALUES (?, ?)
		ON CONFLICT(model) DO UPDATE SET last_sync = excluded.last_sync
	`), model, t.UTC())
	if err != nil {
		return fmt.Errorf("failed to set sync_state[%s]: %w", model, err)
	}
	return nil
}

func (r *SQLRepository) All(ctx context.Context) (map[string]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT model, last_sync FROM sync_state`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync_state: %w", err)
	}
	defer rows.Close()

	result := make(map[string]time.Time)
	for rows.Next() {
		var (
			model string
			raw   any
		)
		if err := rows.Scan(&model, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan sync_state row: %w", err)
		}
		t, err := toTime(raw)
		if err != nil {
			return nil, fmt.Errorf("sync_state[%s]: %w", model, err)
		}
		result[model] = t
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sync_state rows: %w", err)
	}

	return result, nil
}

func toTime(raw any) (time.Time, error) {
	v, err := schema.Normalize(lastSync, raw)
	if err != nil {
		return time.Time{}, err
	}
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, errors.New("last_sync is null")
	}
	return t, nil
}
