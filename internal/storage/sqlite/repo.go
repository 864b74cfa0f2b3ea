// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and the pure-Go modernc driver. SQLite has no bulk-load API
// like Postgres COPY; the replacement runs prepared INSERTs inside the
// transaction that drops and recreates the table.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"transportetl/internal/ddl"
	"transportetl/internal/storage"
	"transportetl/internal/storage/sqlrepo"
	"transportetl/internal/table"
)

// Dialect is the SQLite rendering of the destination table.
var Dialect = ddl.Dialect{
	Name:  "sqlite",
	Quote: ddl.QuoteDouble,
	Types: map[table.Kind]string{
		table.String:  "TEXT",
		table.Int64:   "INTEGER",
		table.Float64: "REAL",
	},
	Placeholder: ddl.QuestionMark,
}

// Open opens a SQLite database. DSN is passed to the driver, for example:
//
//	"file:etl.db?_pragma=busy_timeout(5000)"
//	"etl.db"
//	":memory:"
//
// The pool is limited to one connection so that ":memory:" databases are
// shared by every statement and writers never contend for the file lock.
func Open(dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// NewRepository opens cfg.DSN and pings it.
func NewRepository(ctx context.Context, cfg storage.Config) (*sqlrepo.Repository, error) {
	db, err := Open(cfg.DSN)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return sqlrepo.New(db, Dialect, cfg), nil
}
