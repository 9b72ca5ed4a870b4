// Package dialect captures the SQL differences between the databases the
// exchange store runs on.
package dialect

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jmoiron/sqlx"
)

// DialectType names a supported database.
type DialectType string

const (
	SQLite   DialectType = "sqlite"
	Postgres DialectType = "postgres"
)

// Column kinds used by the exchange schema.
const (
	Bool      = "bool"
	BigInt    = "bigint"
	Timestamp = "timestamp"
)

// Dialect is a database's driver name, bind style, column types and
// connection setup. Queries are written with ? placeholders and passed
// through Rebind.
type Dialect struct {
	name     DialectType
	driver   string
	bindType int
	columns  map[string]string
	excluded string
	init     []string
}

var dialects = map[DialectType]Dialect{
	SQLite: {
		name:     SQLite,
		driver:   "sqlite",
		bindType: sqlx.QUESTION,
		columns:  map[string]string{Bool: "INTEGER", BigInt: "INTEGER", Timestamp: "TIMESTAMP"},
		excluded: "excluded",
		init: []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA busy_timeout=5000",
		},
	},
	Postgres: {
		name:     Postgres,
		driver:   "pgx",
		bindType: sqlx.DOLLAR,
		columns:  map[string]string{Bool: "BOOLEAN", BigInt: "BIGINT", Timestamp: "TIMESTAMP WITH TIME ZONE"},
		excluded: "EXCLUDED",
	},
}

// New returns the dialect for t.
func New(t DialectType) (Dialect, error) {
	d, ok := dialects[t]
	if !ok {
		return Dialect{}, fmt.Errorf("unsupported dialect: %s", t)
	}
	return d, nil
}

// FromDriverName maps a database/sql driver name or alias to its dialect.
func FromDriverName(driverName string) (Dialect, error) {
	switch strings.ToLower(driverName) {
	case "sqlite", "sqlite3":
		return New(SQLite)
	case "postgres", "postgresql", "pgx":
		return New(Postgres)
	default:
		return Dialect{}, fmt.Errorf("unsupported driver: %s", driverName)
	}
}

func (d Dialect) Name() string { return string(d.name) }

// DriverName is the database/sql driver to open.
func (d Dialect) DriverName() string { return d.driver }

// Rebind rewrites ? placeholders into the dialect's bind style.
func (d Dialect) Rebind(query string) string {
	return sqlx.Rebind(d.bindType, query)
}

// Column returns the SQL type for a column kind.
func (d Dialect) Column(kind string) string {
	return d.columns[kind]
}

// UpsertClause builds the ON CONFLICT suffix that replaces updateColumns
// for an existing conflictColumn.
func (d Dialect) UpsertClause(conflictColumn string, updateColumns []string) string {
	if len(updateColumns) == 0 {
		return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", conflictColumn)
	}
	sets := make([]string, len(updateColumns))
	for i, col := range updateColumns {
		sets[i] = fmt.Sprintf("%s = %s.%s", col, d.excluded, col)
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", conflictColumn, strings.Join(sets, ", "))
}

// InitStatements run once on every new connection pool.
func (d Dialect) InitStatements() []string {
	return slices.Clone(d.init)
}
