// Package migrations embeds the goose migrations for both storage backends.
// Each dialect has its own directory; the catalog tables are identical apart
// from column types.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS

const (
	PostgresDir = "postgres"
	SQLiteDir   = "sqlite"
)
