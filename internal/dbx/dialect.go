package dbx

import (
	"strconv"
	"strings"
)

// Dialect captures what differs between the SQL backends we run on.
type Dialect interface {
	// Name is the goose dialect name.
	Name() string
	// Rebind rewrites "?" placeholders into the backend's native form.
	Rebind(query string) string
}

// Postgres uses numbered placeholders ($1, $2, ...).
type Postgres struct{}

func (Postgres) Name() string { return "pgx" }

func (Postgres) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLite accepts "?" as is.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite3" }

func (SQLite) Rebind(query string) string { return query }
