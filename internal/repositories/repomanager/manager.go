package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/osissync/internal/dbx"
	"github.com/dmitrijs2005/osissync/internal/migrations"
	"github.com/dmitrijs2005/osissync/internal/repositories/records"
	"github.com/dmitrijs2005/osissync/internal/repositories/syncstate"
	"github.com/dmitrijs2005/osissync/internal/schema"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Supported values of the database driver setting.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// sqlManager holds what the backends share; they differ in dialect, driver
// and migrations directory.
type sqlManager struct {
	registry *schema.Registry
	dialect  dbx.Dialect
	driver   string
	dir      string
}

func (m *sqlManager) DriverName() string {
	return m.driver
}

func (m *sqlManager) Records(db dbx.DBTX) records.Repository {
	return records.NewSQLRepository(db, m.dialect, m.registry)
}

func (m *sqlManager) SyncState(db dbx.DBTX) syncstate.Repository {
	return syncstate.NewSQLRepository(db, m.dialect)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *sqlManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.dialect.Name()); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, m.dir); err != nil {
		return err
	}
	return nil
}

// PostgresRepositoryManager serves the main deployment through pgx.
type PostgresRepositoryManager struct {
	sqlManager
}

func NewPostgresRepositoryManager(reg *schema.Registry) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{sqlManager{
		registry: reg,
		dialect:  dbx.Postgres{},
		driver:   "pgx",
		dir:      migrations.PostgresDir,
	}}
}

// SQLiteRepositoryManager serves portal and local deployments through the
// pure-Go sqlite driver.
type SQLiteRepositoryManager struct {
	sqlManager
}

func NewSQLiteRepositoryManager(reg *schema.Registry) *SQLiteRepositoryManager {
	return &SQLiteRepositoryManager{sqlManager{
		registry: reg,
		dialect:  dbx.SQLite{},
		driver:   "sqlite",
		dir:      migrations.SQLiteDir,
	}}
}

// New picks the manager for a database driver setting.
func New(driver string, reg *schema.Registry) (RepositoryManager, error) {
	switch driver {
	case DriverPostgres, "pgx":
		return NewPostgresRepositoryManager(reg), nil
	case DriverSQLite, "sqlite3":
		return NewSQLiteRepositoryManager(reg), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
