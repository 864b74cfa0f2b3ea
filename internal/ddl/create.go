// Package ddl is a small, backend-agnostic model for the SQL the loaders
// issue: CREATE/DROP of the destination table, the per-row INSERT and the
// full-table SELECT. Backends supply a Dialect for quoting, types and bind
// parameters.
package ddl

import (
	"fmt"
	"strings"

	"transportetl/internal/table"
)

// FromSchema builds a table definition for schema using the dialect's type
// map. Columns are NOT NULL: cleaned rows never carry missing values.
func FromSchema(fqn string, s table.Schema, d Dialect) (TableDef, error) {
	if len(s) == 0 {
		return TableDef{}, fmt.Errorf("ddl: at least one column is required")
	}
	t := TableDef{FQN: fqn, Columns: make([]ColumnDef, len(s))}
	for i, c := range s {
		typ, ok := d.Types[c.Kind]
		if !ok {
			return TableDef{}, fmt.Errorf("ddl: %s has no type for %s column %s", d.Name, c.Kind, c.Name)
		}
		t.Columns[i] = ColumnDef{Name: c.Name, SQLType: typ}
	}
	return t, nil
}

// FQN quotes every dotted segment of name.
func (d Dialect) FQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.Quote(p)
	}
	return strings.Join(parts, ".")
}

// Columns returns the quoted, comma-joined column list.
func (d Dialect) Columns(cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = d.Quote(c)
	}
	return strings.Join(out, ", ")
}

// BuildCreateTableSQL renders a CREATE TABLE statement.
//
// A column is rendered as:
//
//	<Name> <SQLType> [NOT NULL]
//
// and the statement as:
//
//	CREATE TABLE <FQN> (
//	  <col1-def>,
//	  <col2-def>
//	)
func BuildCreateTableSQL(t TableDef, d Dialect) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}

		var sb strings.Builder
		sb.WriteString(d.Quote(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		cols = append(cols, sb.String())
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", d.FQN(fqn), strings.Join(cols, ",\n  ")), nil
}

// DropTableSQL renders DROP TABLE IF EXISTS.
func DropTableSQL(fqn string, d Dialect) string {
	return "DROP TABLE IF EXISTS " + d.FQN(fqn)
}

// InsertSQL renders a single-row INSERT with dialect placeholders.
func InsertSQL(fqn string, cols []string, d Dialect) string {
	ph := make([]string, len(cols))
	for i := range cols {
		ph[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.FQN(fqn), d.Columns(cols), strings.Join(ph, ", "))
}

// SelectSQL renders a full-table SELECT of cols. Columns are qualified with
// the table name so that an unknown column is an error on every backend;
// SQLite otherwise reads an unmatched "name" as a string literal.
func SelectSQL(fqn string, cols []string, d Dialect) string {
	tbl := d.Quote(fqn[strings.LastIndexByte(fqn, '.')+1:])
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = tbl + "." + d.Quote(c)
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(out, ", "), d.FQN(fqn))
}

// CountSQL renders SELECT COUNT(*).
func CountSQL(fqn string, d Dialect) string {
	return "SELECT COUNT(*) FROM " + d.FQN(fqn)
}
