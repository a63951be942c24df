// Package history stores a durable log of compile/run invocations in a
// SQL database, dispatching to a driver by the scheme of the supplied
// DSN the way internal/database/db_manager.go in the teacher repo
// dispatches by a "type" string. Default DSN (empty, or "sqlite:" /
// "file:") uses the pure-Go modernc.org/sqlite driver so the CLI needs
// no cgo toolchain; postgres://, mysql://, and sqlserver:// DSNs are
// also recognised.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Verb is the CLI action an invocation record describes.
type Verb string

const (
	VerbCompile Verb = "compile"
	VerbRun     Verb = "run"
	VerbCheck   Verb = "check"
)

// Entry is one row of invocation history.
type Entry struct {
	ID       string
	Verb     Verb
	Source   string
	Ok       bool
	Message  string
	Duration time.Duration
	At       time.Time
}

// Store owns one SQL connection used to persist invocation history.
type Store struct {
	db     *sql.DB
	driver string
}

// Open opens (and, if needed, migrates) the history store for dsn. An
// empty dsn defaults to a local sqlite file.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = "memyself_history.db"
	}
	driver, conn := driverFor(dsn)

	db, err := sql.Open(driver, conn)
	if err != nil {
		return nil, errors.Wrapf(err, "history: opening %s", driver)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "history: connecting to %s", driver)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// driverFor maps a DSN's scheme to a registered database/sql driver
// name and the connection string that driver expects.
func driverFor(dsn string) (driver, conn string) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn
	case strings.HasPrefix(dsn, "mysql://"):
		return "mysql", strings.TrimPrefix(dsn, "mysql://")
	case strings.HasPrefix(dsn, "sqlserver://"):
		return "sqlserver", dsn
	case strings.HasPrefix(dsn, "sqlite:"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite:")
	default:
		return "sqlite", dsn
	}
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS invocations (
	id         TEXT PRIMARY KEY,
	verb       TEXT NOT NULL,
	source     TEXT NOT NULL,
	ok         INTEGER NOT NULL,
	message    TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	at         TEXT NOT NULL
)`)
	if err != nil {
		return errors.Wrap(err, "history: migrating schema")
	}
	return nil
}

// placeholders rewrites a "?"-style query into the bind-variable style
// the driver expects: postgres wants $1,$2,...; sqlite, mysql and
// mssql all accept "?" as written.
func (s *Store) placeholders(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Record inserts one invocation entry, assigning it a fresh ID if e.ID
// is empty.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		s.placeholders(`INSERT INTO invocations (id, verb, source, ok, message, duration_ms, at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		e.ID, string(e.Verb), e.Source, boolToInt(e.Ok), e.Message, e.Duration.Milliseconds(), e.At.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Entry{}, errors.Wrap(err, "history: recording invocation")
	}
	return e, nil
}

// Recent returns up to limit entries, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		s.placeholders(`SELECT id, verb, source, ok, message, duration_ms, at FROM invocations ORDER BY at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, errors.Wrap(err, "history: listing invocations")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			verb       string
			ok         int
			durationMs int64
			at         string
		)
		if err := rows.Scan(&e.ID, &verb, &e.Source, &ok, &e.Message, &durationMs, &at); err != nil {
			return nil, err
		}
		e.Verb = Verb(verb)
		e.Ok = ok != 0
		e.Duration = time.Duration(durationMs) * time.Millisecond
		e.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("history: parsing timestamp %q: %w", at, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
