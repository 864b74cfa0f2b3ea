// Package table defines the in-memory tabular model handed from the transform
// stage to the artifact writer and from the artifact reader to the loader.
//
// A Table is row-major: Rows[i][j] holds the value of Schema[j] for row i.
// Cell values are typed according to the column Kind:
//
//	String  -> string
//	Int64   -> int64
//	Float64 -> float64
package table

import (
	"fmt"
	"strings"
)

// Kind is the logical type of a column.
type Kind int

const (
	String Kind = iota
	Int64
	Float64
)

// String returns the lower-case kind name used in logs and config.
func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column names one column and its kind.
type Column struct {
	Name string
	Kind Kind
}

// Schema is the ordered column list of a table.
type Schema []Column

// Names returns the column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, c := range s {
		out[i] = c.Name
	}
	return out
}

// Index returns the position of the named column or -1. Matching is exact.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Clone returns a copy that can be modified without touching s.
func (s Schema) Clone() Schema {
	out := make(Schema, len(s))
	copy(out, s)
	return out
}

// Equal reports whether both schemas have the same names and kinds in order.
func (s Schema) Equal(o Schema) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

func (s Schema) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.Name + ":" + c.Kind.String()
	}
	return strings.Join(parts, ",")
}

// Table is a schema plus ordered rows.
type Table struct {
	Schema Schema
	Rows   [][]any
}

// New returns an empty table for schema.
func New(schema Schema) *Table {
	return &Table{Schema: schema}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Append adds rows that follow the same schema. The first call on a table
// without a schema adopts the given schema; later calls must match it.
func (t *Table) Append(schema Schema, rows [][]any) error {
	if len(t.Schema) == 0 {
		t.Schema = schema.Clone()
	} else if !t.Schema.Equal(schema) {
		return fmt.Errorf("table: schema mismatch: have %s, got %s", t.Schema, schema)
	}
	t.Rows = append(t.Rows, rows...)
	return nil
}

// Column returns the values of the named column in row order.
func (t *Table) Column(name string) ([]any, error) {
	ix := t.Schema.Index(name)
	if ix < 0 {
		return nil, fmt.Errorf("table: unknown column %q", name)
	}
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[ix]
	}
	return out, nil
}
