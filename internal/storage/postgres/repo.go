// Package postgres implements a Postgres repository using pgx v5. The
// destination table is dropped, recreated and filled with COPY inside one
// transaction; Postgres DDL is transactional, so readers never see a
// partially replaced table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"transportetl/internal/ddl"
	"transportetl/internal/storage"
	"transportetl/internal/table"
)

// Dialect is the Postgres rendering of the destination table.
var Dialect = ddl.Dialect{
	Name:  "postgres",
	Quote: pgIdent,
	Types: map[table.Kind]string{
		table.String:  "TEXT",
		table.Int64:   "BIGINT",
		table.Float64: "DOUBLE PRECISION",
	},
	Placeholder: func(i int) string { return fmt.Sprintf("$%d", i) },
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool
	cfg  storage.Config
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository constructs a Repository backed by a pgx pool.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repository{pool: pool, cfg: cfg}, nil
}

// ReplaceTable drops the destination, recreates it for schema and COPYs rows
// into it in a single transaction.
func (r *Repository) ReplaceTable(ctx context.Context, schema table.Schema, rows [][]any) (n int64, err error) {
	def, err := ddl.FromSchema(r.cfg.Table, schema, Dialect)
	if err != nil {
		return 0, err
	}
	create, err := ddl.BuildCreateTableSQL(def, Dialect)
	if err != nil {
		return 0, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if _, err = tx.Exec(ctx, ddl.DropTableSQL(r.cfg.Table, Dialect)); err != nil {
		return 0, fmt.Errorf("postgres: drop table: %w", pgDetail(err))
	}
	if _, err = tx.Exec(ctx, create); err != nil {
		return 0, fmt.Errorf("postgres: create table: %w", pgDetail(err))
	}

	ident := splitFQN(r.cfg.Table)
	n, err = storage.LoadRows(ctx, def.Names(), rows, storage.LoadOptions{
		BatchSize: r.cfg.BatchSize,
		Job:       r.cfg.Job,
		Logger:    r.cfg.Log(),
	}, func(ctx context.Context, columns []string, batch [][]any) (int64, error) {
		c, err := tx.CopyFrom(ctx, ident, columns, pgx.CopyFromRows(batch))
		if err != nil {
			return c, fmt.Errorf("copy: %w", pgDetail(err))
		}
		return c, nil
	})
	if err != nil {
		return n, fmt.Errorf("postgres: load rows: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return n, fmt.Errorf("postgres: commit: %w", err)
	}
	return n, nil
}

// Count returns the number of rows in the destination table.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, ddl.CountSQL(r.cfg.Table, Dialect)).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count: %w", pgDetail(err))
	}
	return n, nil
}

// Scan streams the given columns of every row to fn.
func (r *Repository) Scan(ctx context.Context, columns []string, fn func(row []any) error) error {
	rows, err := r.pool.Query(ctx, ddl.SelectSQL(r.cfg.Table, columns, Dialect))
	if err != nil {
		return fmt.Errorf("postgres: select: %w", pgDetail(err))
	}
	defer rows.Close()

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return fmt.Errorf("postgres: scan: %w", err)
		}
		if err := fn(vals); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if _, err := r.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("postgres: exec: %w", pgDetail(err))
	}
	return nil
}

// Close closes the pool.
func (r *Repository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// pgDetail folds the server's DETAIL and SQLSTATE into err when present.
func pgDetail(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return fmt.Errorf("%w (%s: %s)", err, pgErr.SQLState(), pgErr.Detail)
	}
	return err
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}
