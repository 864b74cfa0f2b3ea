// Package sqlrepo is the database/sql half of the storage backends. It
// replaces the destination table inside one transaction (DROP, CREATE,
// batched inserts, COMMIT), which gives readers an all-or-nothing switch on
// engines with transactional DDL. Backends plug in their dialect and,
// optionally, a faster bulk copy.
package sqlrepo

import (
	"context"
	"database/sql"
	"fmt"

	"transportetl/internal/ddl"
	"transportetl/internal/storage"
	"transportetl/internal/table"
)

// TxCopyFn inserts one batch inside tx.
type TxCopyFn func(ctx context.Context, tx *sql.Tx, fqn string, columns []string, rows [][]any) (int64, error)

// Repository implements storage.Repository over a *sql.DB.
type Repository struct {
	DB      *sql.DB
	Dialect ddl.Dialect
	Cfg     storage.Config
	// Copy overrides the default prepared-INSERT batch copy.
	Copy TxCopyFn
}

var _ storage.Repository = (*Repository)(nil)

// New returns a repository for db.
func New(db *sql.DB, d ddl.Dialect, cfg storage.Config) *Repository {
	return &Repository{DB: db, Dialect: d, Cfg: cfg}
}

// ReplaceTable drops and recreates the destination table and loads rows in a
// single transaction.
func (r *Repository) ReplaceTable(ctx context.Context, schema table.Schema, rows [][]any) (n int64, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s: begin tx: %w", r.Dialect.Name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, ddl.DropTableSQL(r.Cfg.Table, r.Dialect)); err != nil {
		return 0, fmt.Errorf("%s: drop table: %w", r.Dialect.Name, err)
	}
	n, err = r.CreateAndLoad(ctx, tx, r.Cfg.Table, schema, rows)
	if err != nil {
		return n, err
	}
	if err = tx.Commit(); err != nil {
		return n, fmt.Errorf("%s: commit: %w", r.Dialect.Name, err)
	}
	return n, nil
}

// CreateAndLoad creates fqn for schema and inserts rows through tx. The
// table must not exist.
func (r *Repository) CreateAndLoad(ctx context.Context, tx *sql.Tx, fqn string, schema table.Schema, rows [][]any) (int64, error) {
	def, err := ddl.FromSchema(fqn, schema, r.Dialect)
	if err != nil {
		return 0, err
	}
	create, err := ddl.BuildCreateTableSQL(def, r.Dialect)
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("%s: create table: %w", r.Dialect.Name, err)
	}

	cp := r.Copy
	if cp == nil {
		cp = r.insertRows
	}
	n, err := storage.LoadRows(ctx, def.Names(), rows, storage.LoadOptions{
		BatchSize: r.Cfg.BatchSize,
		Job:       r.Cfg.Job,
		Logger:    r.Cfg.Log(),
	}, func(ctx context.Context, columns []string, batch [][]any) (int64, error) {
		return cp(ctx, tx, fqn, columns, batch)
	})
	if err != nil {
		return n, fmt.Errorf("%s: load rows: %w", r.Dialect.Name, err)
	}
	return n, nil
}

// insertRows is the default TxCopyFn: one prepared INSERT per batch.
func (r *Repository) insertRows(ctx context.Context, tx *sql.Tx, fqn string, columns []string, rows [][]any) (int64, error) {
	stmt, err := tx.PrepareContext(ctx, ddl.InsertSQL(fqn, columns, r.Dialect))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, row := range rows {
		if len(row) != len(columns) {
			return inserted, fmt.Errorf("row length %d != columns length %d", len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return inserted, fmt.Errorf("insert: %w", err)
		}
		inserted++
	}
	return inserted, nil
}

// Count returns the number of rows in the destination table.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.DB.QueryRowContext(ctx, ddl.CountSQL(r.Cfg.Table, r.Dialect)).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: count: %w", r.Dialect.Name, err)
	}
	return n, nil
}

// Scan streams columns of every row to fn. Text returned as []byte is
// converted to string.
func (r *Repository) Scan(ctx context.Context, columns []string, fn func(row []any) error) error {
	rows, err := r.DB.QueryContext(ctx, ddl.SelectSQL(r.Cfg.Table, columns, r.Dialect))
	if err != nil {
		return fmt.Errorf("%s: select: %w", r.Dialect.Name, err)
	}
	defer rows.Close()

	vals := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("%s: scan: %w", r.Dialect.Name, err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		if err := fn(vals); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Exec runs a single statement.
func (r *Repository) Exec(ctx context.Context, query string) error {
	if _, err := r.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("%s: exec: %w", r.Dialect.Name, err)
	}
	return nil
}

// Close closes the pool.
func (r *Repository) Close() {
	_ = r.DB.Close()
}
