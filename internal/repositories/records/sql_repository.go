package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/osissync/internal/common"
	"github.com/dmitrijs2005/osissync/internal/dbx"
	"github.com/dmitrijs2005/osissync/internal/models"
	"github.com/dmitrijs2005/osissync/internal/schema"
	"github.com/google/uuid"
)

// SQLRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type SQLRepository struct {
	db       dbx.DBTX
	dialect  dbx.Dialect
	registry *schema.Registry
}

// NewSQLRepository binds a repository to db. The registry resolves relation
// targets when hydrating.
func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect, reg *schema.Registry) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect, registry: reg}
}

// selectColumns lists id, uuid, every field column and the owner column.
func selectColumns(m *schema.Model) []string {
	cols := make([]string, 0, len(m.Fields)+3)
	cols = append(cols, "id", common.UUIDField)
	for _, f := range m.Fields {
		cols = append(cols, f.Column())
	}
	if m.Owner != "" {
		cols = append(cols, m.OwnerColumn())
	}
	return cols
}

func (r *SQLRepository) selectQuery(m *schema.Model, where string) string {
	q := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selectColumns(m), ", "), m.Table)
	if where != "" {
		q += " WHERE " + where
	}
	return r.dialect.Rebind(q)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(m *schema.Model, row scanner) (*models.Record, error) {
	cols := selectColumns(m)
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := row.Scan(ptrs...); err != nil {
		return nil, err
	}

	rec := &models.Record{Model: m, Values: make(map[string]any, len(m.Fields))}

	id, err := toInt64(raw[0])
	if err != nil {
		return nil, fmt.Errorf("%s.id: %w", m.Table, err)
	}
	rec.ID = id

	rec.UUID, err = toUUID(raw[1])
	if err != nil {
		return nil, fmt.Errorf("%s.uuid: %w", m.Table, err)
	}

	for i, f := range m.Fields {
		v := raw[i+2]
		if f.Type == schema.Relation {
			if v == nil {
				rec.Values[f.Name] = nil
				continue
			}
			fk, err := toInt64(v)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", m.Table, f.Column(), err)
			}
			rec.Values[f.Name] = fk
			continue
		}
		value, err := schema.Normalize(f, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Table, err)
		}
		rec.Values[f.Name] = value
	}

	if m.Owner != "" {
		if v := raw[len(raw)-1]; v != nil {
			owner, err := toInt64(v)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", m.Table, m.OwnerColumn(), err)
			}
			rec.Owner = &owner
		}
	}

	return rec, nil
}

func (r *SQLRepository) getOne(ctx context.Context, m *schema.Model, where string, arg any) (*models.Record, error) {
	row := r.db.QueryRowContext(ctx, r.selectQuery(m, where), arg)
	rec, err := scanRecord(m, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", m.Name, err)
	}
	return rec, nil
}

func (r *SQLRepository) FindByUUID(ctx context.Context, m *schema.Model, id uuid.UUID) (*models.Record, error) {
	return r.getOne(ctx, m, "uuid = ?", id.String())
}

func (r *SQLRepository) GetByID(ctx context.Context, m *schema.Model, id int64) (*models.Record, error) {
	return r.getOne(ctx, m, "id = ?", id)
}

func (r *SQLRepository) ListAll(ctx context.Context, m *schema.Model) ([]*models.Record, error) {
	rows, err := r.db.QueryContext(ctx, r.selectQuery(m, "")+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", m.Name, err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		rec, err := scanRecord(m, rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLRepository) Hydrate(ctx context.Context, rec *models.Record) error {
	if rec == nil {
		return nil
	}
	for _, f := range rec.Model.Fields {
		if f.Type != schema.Relation {
			continue
		}
		fk, ok := rec.Values[f.Name].(int64)
		if !ok {
			continue
		}
		target, ok := r.registry.Lookup(f.Target)
		if !ok {
			return fmt.Errorf("%s.%s: %w: %s", rec.Model.Name, f.Name, common.ErrUnknownModel, f.Target)
		}
		related, err := r.GetByID(ctx, target, fk)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := r.Hydrate(ctx, related); err != nil {
			return err
		}
		rec.Values[f.Name] = related
	}
	return nil
}

// writeColumns returns the columns and arguments for the fields present in
// rec, in schema order, plus the owner column when rec carries an owner.
func writeColumns(rec *models.Record) ([]string, []any, error) {
	m := rec.Model
	cols := make([]string, 0, len(m.Fields)+1)
	args := make([]any, 0, len(m.Fields)+1)

	for _, f := range m.Fields {
		v, ok := rec.Values[f.Name]
		if !ok {
			continue
		}
		arg, err := columnValue(f, v)
		if err != nil {
			return nil, nil, fmt.Errorf("%s.%s: %w", m.Name, f.Name, err)
		}
		cols = append(cols, f.Column())
		args = append(args, arg)
	}

	if m.Owner != "" && rec.Owner != nil {
		cols = append(cols, m.OwnerColumn())
		args = append(args, *rec.Owner)
	}
	return cols, args, nil
}

func columnValue(f schema.Field, v any) (any, error) {
	if f.Type != schema.Relation {
		return schema.Normalize(f, v)
	}
	switch value := v.(type) {
	case nil:
		return nil, nil
	case *models.Record:
		if value == nil {
			return nil, nil
		}
		if value.ID == 0 {
			return nil, common.ErrUnsavedRelation
		}
		return value.ID, nil
	case int64:
		return value, nil
	default:
		return nil, fmt.Errorf("%w: %T", common.ErrInvalidField, v)
	}
}

func (r *SQLRepository) Insert(ctx context.Context, rec *models.Record) (int64, error) {
	cols, args, err := writeColumns(rec)
	if err != nil {
		return 0, err
	}
	cols = append([]string{common.UUIDField}, cols...)
	args = append([]any{rec.UUID.String()}, args...)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := r.dialect.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		rec.Model.Table, strings.Join(cols, ", "), placeholders))

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert %s: %w", rec.Model.Name, err)
	}
	rec.ID = id
	return id, nil
}

func (r *SQLRepository) Update(ctx context.Context, rec *models.Record) error {
	cols, args, err := writeColumns(rec)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	args = append(args, rec.UUID.String())
	query := r.dialect.Rebind(fmt.Sprintf("UPDATE %s SET %s WHERE uuid = ?",
		rec.Model.Table, strings.Join(sets, ", ")))

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", rec.Model.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLRepository) DeleteByUUID(ctx context.Context, m *schema.Model, id uuid.UUID) (bool, error) {
	query := r.dialect.Rebind(fmt.Sprintf("DELETE FROM %s WHERE uuid = ?", m.Table))
	res, err := r.db.ExecContext(ctx, query, id.String())
	if err != nil {
		return false, fmt.Errorf("failed to delete %s: %w", m.Name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

func (r *SQLRepository) Save(ctx context.Context, rec *models.Record) (models.Mutation, error) {
	existing, err := r.FindByUUID(ctx, rec.Model, rec.UUID)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		if _, err := r.Insert(ctx, rec); err != nil {
			return models.Mutation{}, err
		}
	case err != nil:
		return models.Mutation{}, err
	default:
		rec.ID = existing.ID
		if err := r.Update(ctx, rec); err != nil {
			return models.Mutation{}, err
		}
	}
	return models.Mutation{Op: models.OpUpsert, Record: rec}, nil
}

func (r *SQLRepository) Remove(ctx context.Context, m *schema.Model, id uuid.UUID) (models.Mutation, error) {
	rec, err := r.FindByUUID(ctx, m, id)
	if err != nil {
		return models.Mutation{}, err
	}
	if err := r.Hydrate(ctx, rec); err != nil {
		return models.Mutation{}, err
	}
	if _, err := r.DeleteByUUID(ctx, m, id); err != nil {
		return models.Mutation{}, err
	}
	return models.Mutation{Op: models.OpDelete, Record: rec}, nil
}
