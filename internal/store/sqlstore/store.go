package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pliu/engihub/internal/apperr"
	"github.com/pliu/engihub/internal/store"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn implements store.Tx on top of either the pool or an open transaction.
type conn struct {
	q          queryer
	driverName string
	inTx       bool
}

type SQLStore struct {
	*conn
	db *sql.DB
}

var _ store.Store = (*SQLStore)(nil)

// New opens the database. Call Migrate before using the store.
func New(driverName, dataSourceName string) (*SQLStore, error) {
	switch driverName {
	case "sqlite3":
		dsn, err := sqliteDSN(dataSourceName)
		if err != nil {
			return nil, err
		}
		dataSourceName = dsn
	case "postgres":
	default:
		return nil, fmt.Errorf("unsupported driver %q", driverName)
	}

	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if driverName == "sqlite3" {
		// SQLite allows a single writer; one connection also keeps ":memory:"
		// databases shared across calls.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	return &SQLStore{conn: &conn{q: db, driverName: driverName}, db: db}, nil
}

// sqlitePragmas are the connection options the store relies on: foreign keys
// for cascades and immediate transactions so a transaction holds the write
// lock from its first statement. Each entry lists the go-sqlite3 aliases of
// one option; an option the DSN already sets is left alone.
var sqlitePragmas = []struct {
	keys  []string
	value string
}{
	{[]string{"_journal_mode", "_journal"}, "WAL"},
	{[]string{"_busy_timeout", "_timeout"}, "5000"},
	{[]string{"_foreign_keys", "_fk"}, "on"},
	{[]string{"_txlock"}, "immediate"},
}

// sqliteDSN adds every missing pragma to dsn, keeping the options it has.
func sqliteDSN(dsn string) (string, error) {
	path, rawQuery, _ := strings.Cut(dsn, "?")
	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", fmt.Errorf("parse sqlite dsn: %w", err)
	}
	for _, p := range sqlitePragmas {
		set := false
		for _, k := range p.keys {
			if params.Has(k) {
				set = true
				break
			}
		}
		if !set {
			params.Set(p.keys[0], p.value)
		}
	}
	return path + "?" + params.Encode(), nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying pool.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Aborted(fmt.Errorf("begin: %w", err))
	}

	if err := fn(&conn{q: tx, driverName: s.driverName, inTx: true}); err != nil {
		_ = tx.Rollback()
		if apperr.CodeOf(err) != "" {
			return err
		}
		return apperr.Aborted(err)
	}

	if err := tx.Commit(); err != nil {
		return apperr.Aborted(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Helper to handle placeholders
func (c *conn) rebind(query string) string {
	if c.driverName == "postgres" {
		// Replace ? with $1, $2, etc.
		n := strings.Count(query, "?")
		for i := 1; i <= n; i++ {
			query = strings.Replace(query, "?", fmt.Sprintf("$%d", i), 1)
		}
	}
	return query
}

func (c *conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.rebind(query), args...)
}

func (c *conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.rebind(query), args...)
}

func (c *conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.rebind(query), args...)
}

// forUpdate is the locking clause for rows read inside a transaction. SQLite
// transactions already hold the database write lock from BEGIN IMMEDIATE;
// Postgres runs at READ COMMITTED and needs the row lock so a read-then-write
// sequence cannot interleave with another transaction on the same row.
func (c *conn) forUpdate() string {
	if c.inTx && c.driverName == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}

// execAffected runs an exec and returns the number of affected rows.
func (c *conn) execAffected(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := c.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// exists reports whether query returns at least one row.
func (c *conn) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var n int
	err := c.queryRow(ctx, query, args...).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// newID returns a time-ordered identifier so rows created in the same
// timestamp still sort by insertion order.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func now() time.Time {
	return time.Now().UTC()
}

// notFound translates sql.ErrNoRows into the application NOT_FOUND error.
func notFound(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("%s %s not found", kind, id)
	}
	return err
}

// isUniqueViolation reports whether err is a unique constraint failure from
// either driver.
func isUniqueViolation(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// orderedPair returns a and b sorted, the storage key for a conversation or
// friendship between two users.
func orderedPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}
