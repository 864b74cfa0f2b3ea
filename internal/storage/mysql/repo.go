// Package mysql implements a MySQL storage.Repository. MySQL commits DDL
// implicitly, so the replacement is built in a staging table and swapped in
// with one atomic RENAME TABLE.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"transportetl/internal/ddl"
	"transportetl/internal/storage"
	"transportetl/internal/storage/sqlrepo"
	"transportetl/internal/table"
)

const (
	stagingSuffix = "__staging"
	oldSuffix     = "__old"
)

// Dialect is the MySQL rendering of the destination table.
var Dialect = ddl.Dialect{
	Name:  "mysql",
	Quote: ddl.QuoteBacktick,
	Types: map[table.Kind]string{
		table.String:  "LONGTEXT",
		table.Int64:   "BIGINT",
		table.Float64: "DOUBLE",
	},
	Placeholder: ddl.QuestionMark,
}

// Repository is a sqlrepo.Repository with a staging-table ReplaceTable.
type Repository struct {
	*sqlrepo.Repository
}

var _ storage.Repository = (*Repository)(nil)

// NewRepository parses the DSN, opens the pool and pings the server.
func NewRepository(ctx context.Context, cfg storage.Config) (*Repository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("mysql: DSN must not be empty")
	}
	mc, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Repository{Repository: sqlrepo.New(db, Dialect, cfg)}, nil
}

// ReplaceTable loads rows into a fresh staging table and swaps it with the
// destination. Readers see either the previous or the new table.
func (r *Repository) ReplaceTable(ctx context.Context, schema table.Schema, rows [][]any) (n int64, err error) {
	target := r.Cfg.Table
	staging, old := target+stagingSuffix, target+oldSuffix

	for _, name := range []string{staging, old} {
		if err := r.Exec(ctx, ddl.DropTableSQL(name, Dialect)); err != nil {
			return 0, err
		}
	}
	defer func() {
		if err != nil {
			_ = r.Exec(context.WithoutCancel(ctx), ddl.DropTableSQL(staging, Dialect))
		}
	}()

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mysql: begin tx: %w", err)
	}
	n, err = r.CreateAndLoad(ctx, tx, staging, schema, rows)
	if err != nil {
		_ = tx.Rollback()
		return n, err
	}
	if err = tx.Commit(); err != nil {
		return n, fmt.Errorf("mysql: commit: %w", err)
	}

	exists, err := r.tableExists(ctx, target)
	if err != nil {
		return n, err
	}
	for _, q := range swapSQL(target, exists) {
		if err = r.Exec(ctx, q); err != nil {
			return n, err
		}
	}
	return n, nil
}

// swapSQL returns the statements that move target+stagingSuffix into place.
// An existing target is exchanged with the staging table in one RENAME; on a
// first run staging is renamed directly, so the target never exists empty.
func swapSQL(target string, exists bool) []string {
	t := Dialect.FQN(target)
	s := Dialect.FQN(target + stagingSuffix)
	if !exists {
		return []string{fmt.Sprintf("RENAME TABLE %s TO %s", s, t)}
	}
	o := Dialect.FQN(target + oldSuffix)
	return []string{
		fmt.Sprintf("RENAME TABLE %s TO %s, %s TO %s", t, o, s, t),
		ddl.DropTableSQL(target+oldSuffix, Dialect),
	}
}

// existsSQL checks information_schema for name, defaulting the schema to the
// connection's database.
const existsSQL = `SELECT COUNT(*) FROM information_schema.TABLES
WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ?`

func (r *Repository) tableExists(ctx context.Context, name string) (bool, error) {
	schema, tbl := splitName(name)
	var n int
	if err := r.DB.QueryRowContext(ctx, existsSQL, schema, tbl).Scan(&n); err != nil {
		return false, fmt.Errorf("mysql: lookup %s: %w", name, err)
	}
	return n > 0, nil
}

// splitName splits "schema.table"; schema is empty for a bare name.
func splitName(name string) (schema, tbl string) {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
