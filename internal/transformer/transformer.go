// Package transformer cleans parsed CSV chunks into typed table rows.
//
// A Transformer works on one Batch at a time. A Batch is the unit that
// per-chunk rules see: dedup, null-drop and normalization never look
// across batches.
package transformer

import (
	"fmt"

	"transportetl/internal/table"
)

// Row is one record. V is aligned with the batch schema; cells start as
// strings and are replaced by typed values as the chain coerces them.
type Row struct {
	// Line is the 1-based source line of the record.
	Line int
	V    []any
}

// Batch is one chunk moving through a Chain.
type Batch struct {
	// Index is the 0-based chunk number.
	Index  int
	Schema table.Schema
	Rows   []Row
}

// Transformer mutates a batch in place. Returning an error aborts the run.
type Transformer interface {
	// Name labels rows the transformer drops in Stats and metrics.
	Name() string
	Apply(b *Batch) error
}

// Chain is an ordered list of transformers.
type Chain []Transformer

// Apply runs every transformer in order and calls onDrop with the number of
// rows each one removed.
func (c Chain) Apply(b *Batch, onDrop func(name string, n int)) error {
	for _, t := range c {
		before := len(b.Rows)
		if err := t.Apply(b); err != nil {
			return err
		}
		if n := before - len(b.Rows); n > 0 && onDrop != nil {
			onDrop(t.Name(), n)
		}
	}
	return nil
}

// NewBatch builds a string-typed batch from raw cells.
func NewBatch(index int, header []string, rows [][]string, lines []int) *Batch {
	schema := make(table.Schema, len(header))
	for i, h := range header {
		schema[i] = table.Column{Name: h, Kind: table.String}
	}
	b := &Batch{Index: index, Schema: schema, Rows: make([]Row, len(rows))}
	for i, raw := range rows {
		v := make([]any, len(raw))
		for j, s := range raw {
			v[j] = s
		}
		line := 0
		if i < len(lines) {
			line = lines[i]
		}
		b.Rows[i] = Row{Line: line, V: v}
	}
	return b
}

// Values returns the row cells as table rows.
func (b *Batch) Values() [][]any {
	out := make([][]any, len(b.Rows))
	for i, r := range b.Rows {
		out[i] = r.V
	}
	return out
}

// Column returns the position of name in the batch schema.
func (b *Batch) Column(name string) (int, error) {
	ix := b.Schema.Index(name)
	if ix < 0 {
		return -1, fmt.Errorf("column %q not found in %s", name, b.Schema)
	}
	return ix, nil
}
