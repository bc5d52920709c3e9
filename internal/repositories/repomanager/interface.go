// Package repomanager vends the record and sync-state repositories for one
// storage backend and runs the embedded goose migrations for it.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/osissync/internal/dbx"
	"github.com/dmitrijs2005/osissync/internal/repositories/records"
	"github.com/dmitrijs2005/osissync/internal/repositories/syncstate"
)

type RepositoryManager interface {
	// DriverName is the database/sql driver to open the DSN with.
	DriverName() string
	RunMigrations(context.Context, *sql.DB) error
	Records(db dbx.DBTX) records.Repository
	SyncState(db dbx.DBTX) syncstate.Repository
}
