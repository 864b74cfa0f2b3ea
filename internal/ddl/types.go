package ddl

import (
	"strings"

	"transportetl/internal/table"
)

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - SQLType: target SQL type (e.g., TEXT, BIGINT, DOUBLE PRECISION)
//   - Nullable: whether NULL is allowed
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
}

// TableDef holds the table name and an ordered list of columns. FQN is in
// dotted form (e.g., "schema.table") and is quoted per segment on render.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// Names returns the column names in order.
func (t TableDef) Names() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Dialect carries what differs between SQL backends when rendering DDL and
// DML for a table.
type Dialect struct {
	Name string
	// Quote quotes a single identifier segment.
	Quote func(ident string) string
	// Types maps column kinds to SQL types.
	Types map[table.Kind]string
	// Placeholder renders the i-th (1-based) bind parameter.
	Placeholder func(i int) string
}

// QuoteDouble quotes with double quotes (Postgres, SQLite).
func QuoteDouble(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// QuoteBacktick quotes with backticks (MySQL).
func QuoteBacktick(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

// QuoteBracket quotes with [brackets] (SQL Server).
func QuoteBracket(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// QuestionMark is the "?" placeholder style.
func QuestionMark(int) string { return "?" }
