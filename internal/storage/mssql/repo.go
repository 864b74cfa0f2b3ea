// Package mssql implements a Microsoft SQL Server repository. The table is
// dropped, recreated and filled inside one transaction; rows go in through
// the go-mssqldb bulk copy API.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"transportetl/internal/ddl"
	"transportetl/internal/storage"
	"transportetl/internal/storage/sqlrepo"
	"transportetl/internal/table"
)

// Dialect is the SQL Server rendering of the destination table.
var Dialect = ddl.Dialect{
	Name:  "mssql",
	Quote: ddl.QuoteBracket,
	Types: map[table.Kind]string{
		table.String:  "NVARCHAR(MAX)",
		table.Int64:   "BIGINT",
		table.Float64: "FLOAT",
	},
	Placeholder: func(i int) string { return "@p" + strconv.Itoa(i) },
}

// NewRepository validates the DSN, opens the pool and pings the server.
func NewRepository(ctx context.Context, cfg storage.Config) (*sqlrepo.Repository, error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	r := sqlrepo.New(db, Dialect, cfg)
	r.Copy = bulkCopy
	return r, nil
}

// bulkCopy streams one batch through the TDS bulk load protocol within tx.
func bulkCopy(ctx context.Context, tx *sql.Tx, fqn string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(Dialect.FQN(fqn), mssql.BulkOptions{}, columns...))
	if err != nil {
		return 0, fmt.Errorf("prepare bulk: %w", err)
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, rows[i]...); err != nil {
			_ = stmt.Close()
			return 0, fmt.Errorf("bulk row %d: %w", i, err)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("bulk finalize: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
