package builtin

import (
	"fmt"
	"math"

	"transportetl/internal/table"
	"transportetl/internal/transformer"
)

// Normalize appends Target = Source / max(Source) computed over the batch.
// When the maximum is exactly zero every row gets 0. Source must already be
// Float64.
type Normalize struct {
	Source string
	Target string
}

func (Normalize) Name() string { return "normalize" }

func (n Normalize) Apply(b *transformer.Batch) error {
	ix, err := b.Column(n.Source)
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}
	if k := b.Schema[ix].Kind; k != table.Float64 {
		return fmt.Errorf("normalize: column %q is %s, want float64", n.Source, k)
	}
	if b.Schema.Index(n.Target) >= 0 {
		return fmt.Errorf("normalize: column %q already exists", n.Target)
	}

	hi := math.Inf(-1)
	for _, r := range b.Rows {
		if v := r.V[ix].(float64); v > hi {
			hi = v
		}
	}
	for i := range b.Rows {
		out := 0.0
		if hi != 0 {
			out = b.Rows[i].V[ix].(float64) / hi
		}
		b.Rows[i].V = append(b.Rows[i].V, out)
	}
	b.Schema = append(b.Schema, table.Column{Name: n.Target, Kind: table.Float64})
	return nil
}
