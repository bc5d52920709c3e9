// Package dbtest opens migrated in-memory sqlite databases for tests.
package dbtest

import (
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/osissync/internal/migrations"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var seq atomic.Int64

// OpenSQLite returns a private in-memory database with the catalog schema
// applied. It is closed when the test ends.
func OpenSQLite(t *testing.T) *sql.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.Migrations)
	require.NoError(t, goose.SetDialect("sqlite3"))
	goose.SetLogger(goose.NopLogger())
	require.NoError(t, goose.Up(db, migrations.SQLiteDir))

	return db
}
