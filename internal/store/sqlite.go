package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"docsis-exporter/internal/events"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

// IsDSN reports whether target names a database rather than a plain file.
func IsDSN(target string) bool {
	return strings.HasPrefix(target, "sqlite:") || isRemote(target)
}

func isRemote(dsn string) bool {
	return strings.HasPrefix(dsn, "libsql://") ||
		strings.HasPrefix(dsn, "http://") ||
		strings.HasPrefix(dsn, "https://")
}

// OpenDB opens a database and applies the schema. "libsql://" and http(s)
// URLs go to a remote libsql server, anything else (optionally prefixed with
// "sqlite:") is a local sqlite file or ":memory:".
func OpenDB(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("a database was not specified")
	}

	var db *sql.DB
	var err error
	if isRemote(dsn) {
		db, err = sql.Open("libsql", dsn)
		if err != nil {
			return nil, err
		}
	} else {
		db, err = openLocal(strings.TrimPrefix(dsn, "sqlite:"))
		if err != nil {
			return nil, err
		}
	}

	for _, stmt := range strings.Split(Schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return db, nil
}

func openLocal(path string) (*sql.DB, error) {
	if path != ":memory:" {
		_, statErr := os.Stat(path)
		if errors.Is(statErr, os.ErrNotExist) {
			f, err := os.Create(path)
			if err != nil {
				return nil, err
			}
			f.Close()
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection: sqlite serializes writers anyway and ":memory:"
	// databases are per connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("pragma journal_mode=wal"); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// SQLWatermark keeps the watermark in a single-row table.
type SQLWatermark struct {
	db *sql.DB
}

func NewSQLWatermark(db *sql.DB) SQLWatermark {
	return SQLWatermark{db: db}
}

func (s SQLWatermark) Read(ctx context.Context) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, "select ts_unix from watermark where id = 0").Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return value, err
}

func (s SQLWatermark) Write(ctx context.Context, watermark int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`insert into watermark (id, ts_unix) values (0, ?)
		on conflict (id) do update set ts_unix = excluded.ts_unix`,
		watermark,
	)
	return err
}

// SQLEvents is an event sink backed by the modem_event table. An entry that
// is already stored is ignored, so replaying entries is harmless.
type SQLEvents struct {
	db *sql.DB
}

func NewSQLEvents(db *sql.DB) SQLEvents {
	return SQLEvents{db: db}
}

func (s SQLEvents) Append(ctx context.Context, entry events.Entry) error {
	_, err := s.db.ExecContext(
		ctx,
		`insert or ignore into modem_event (source, event, ts, ts_unix, level, description)
		values (?, ?, ?, ?, ?, ?)`,
		entry.Source, entry.Event, entry.Time, entry.Unix, entry.Level, entry.Description,
	)
	return err
}

// List returns up to limit stored entries newer than since, oldest first.
func (s SQLEvents) List(ctx context.Context, since int64, limit int) ([]events.Entry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`select source, event, ts, ts_unix, level, description from modem_event
		where ts_unix > ? order by ts_unix, id limit ?`,
		since, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.Entry
	for rows.Next() {
		var e events.Entry
		err := rows.Scan(&e.Source, &e.Event, &e.Time, &e.Unix, &e.Level, &e.Description)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
