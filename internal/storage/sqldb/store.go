// Package sqldb is the SQL implementation of the exchange store. It runs on
// SQLite (modernc.org/sqlite) or PostgreSQL (pgx) through a dialect layer.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/relaypipe/internal/core/domain"
	"github.com/tjfontaine/relaypipe/internal/storage"
	"github.com/tjfontaine/relaypipe/internal/storage/dialect"
)

// Store is a SQL implementation of ExchangeStore that supports multiple
// database dialects.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

var _ storage.ExchangeStore = (*Store)(nil)

// Config holds database connection configuration
type Config struct {
	Driver string // Driver name: sqlite, postgres, pgx
	DSN    string // Data source name / connection string
}

// exchangeColumns is the insert order for the exchanges table.
var exchangeColumns = []string{
	"id", "method", "path", "status", "content_type", "subject",
	"error", "recovered", "duration_ns", "metadata", "created_at",
}

// exchangeRow is the scanned shape of an exchanges row.
type exchangeRow struct {
	ID          string    `db:"id"`
	Method      string    `db:"method"`
	Path        string    `db:"path"`
	Status      int       `db:"status"`
	ContentType string    `db:"content_type"`
	Subject     string    `db:"subject"`
	Error       string    `db:"error"`
	Recovered   bool      `db:"recovered"`
	DurationNS  int64     `db:"duration_ns"`
	Metadata    string    `db:"metadata"`
	CreatedAt   time.Time `db:"created_at"`
}

// New creates a new SQL store with the specified configuration.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	for _, stmt := range d.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", stmt, err)
		}
	}

	store := &Store{db: db, dialect: d}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite creates a new SQLite store.
func NewSQLite(dbPath string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dbPath})
}

// DB returns the underlying sqlx.DB for advanced operations
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Dialect returns the dialect being used
func (s *Store) Dialect() dialect.Dialect {
	return s.dialect
}

func (s *Store) initSchema() error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS exchanges (
id TEXT PRIMARY KEY,
method TEXT NOT NULL,
path TEXT NOT NULL,
status INTEGER NOT NULL,
content_type TEXT NOT NULL DEFAULT '',
subject TEXT NOT NULL DEFAULT '',
error TEXT NOT NULL DEFAULT '',
recovered %s NOT NULL,
duration_ns %s NOT NULL DEFAULT 0,
metadata TEXT NOT NULL DEFAULT '',
created_at %s NOT NULL
)`, s.dialect.Column(dialect.Bool), s.dialect.Column(dialect.BigInt), s.dialect.Column(dialect.Timestamp)),
		`CREATE INDEX IF NOT EXISTS idx_exchanges_created ON exchanges(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_exchanges_method ON exchanges(method)`,
		`CREATE INDEX IF NOT EXISTS idx_exchanges_status ON exchanges(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// SaveExchange inserts an exchange, replacing any row with the same ID.
func (s *Store) SaveExchange(ctx context.Context, ex *domain.Exchange) error {
	if ex.ID == "" {
		return errors.New("exchange id is required")
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}

	metadata := ""
	if len(ex.Metadata) > 0 {
		b, err := json.Marshal(ex.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		metadata = string(b)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(exchangeColumns)), ", ")
	query := fmt.Sprintf("INSERT INTO exchanges (%s) VALUES (%s) %s",
		strings.Join(exchangeColumns, ", "),
		placeholders,
		s.dialect.UpsertClause("id", exchangeColumns[1:]),
	)

	_, err := s.db.ExecContext(ctx, s.dialect.Rebind(query),
		ex.ID, ex.Method, ex.Path, ex.Status, ex.ContentType, ex.Subject,
		ex.Error, ex.Recovered, int64(ex.Duration), metadata, ex.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save exchange: %w", err)
	}
	return nil
}

// GetExchange retrieves an exchange by ID.
func (s *Store) GetExchange(ctx context.Context, id string) (*domain.Exchange, error) {
	query := fmt.Sprintf("SELECT %s FROM exchanges WHERE id = ?", strings.Join(exchangeColumns, ", "))

	var row exchangeRow
	if err := s.db.GetContext(ctx, &row, s.dialect.Rebind(query), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get exchange: %w", err)
	}
	return row.toDomain()
}

// ListExchanges lists exchanges newest first.
func (s *Store) ListExchanges(ctx context.Context, opts storage.ExchangeListOptions) ([]*domain.Exchange, error) {
	var (
		where []string
		args  []any
	)
	if opts.Method != "" {
		where = append(where, "method = ?")
		args = append(args, strings.ToUpper(opts.Method))
	}
	if opts.StatusClass != "" {
		lo, hi, err := storage.StatusRange(opts.StatusClass)
		if err != nil {
			return nil, err
		}
		where = append(where, "status >= ? AND status < ?")
		args = append(args, lo, hi)
	}
	if !opts.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, opts.Since.UTC())
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM exchanges", strings.Join(exchangeColumns, ", "))
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?")
	args = append(args, limit, max(opts.Offset, 0))

	var rows []exchangeRow
	if err := s.db.SelectContext(ctx, &rows, s.dialect.Rebind(b.String()), args...); err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}

	out := make([]*domain.Exchange, 0, len(rows))
	for i := range rows {
		ex, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (r *exchangeRow) toDomain() (*domain.Exchange, error) {
	ex := &domain.Exchange{
		ID:          r.ID,
		Method:      r.Method,
		Path:        r.Path,
		Status:      r.Status,
		ContentType: r.ContentType,
		Subject:     r.Subject,
		Error:       r.Error,
		Recovered:   r.Recovered,
		Duration:    time.Duration(r.DurationNS),
		CreatedAt:   r.CreatedAt,
	}
	if r.Metadata != "" {
		if err := json.Unmarshal([]byte(r.Metadata), &ex.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", r.ID, err)
		}
	}
	return ex, nil
}
