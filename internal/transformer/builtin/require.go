package builtin

import "transportetl/internal/transformer"

// MissingMarkers are cell values treated as missing in addition to the empty
// string. They match the NA markers recognized by common CSV readers.
var MissingMarkers = []string{
	"#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// Require removes rows with a missing value in any of Fields, or in any
// column when Fields is empty.
type Require struct {
	Fields []string
	// Markers overrides MissingMarkers when non-nil.
	Markers []string
}

func (Require) Name() string { return "missing" }

func (r Require) Apply(b *transformer.Batch) error {
	cols, err := r.columns(b)
	if err != nil {
		return err
	}
	markers := r.Markers
	if markers == nil {
		markers = MissingMarkers
	}
	missing := make(map[string]struct{}, len(markers)+1)
	missing[""] = struct{}{}
	for _, m := range markers {
		missing[m] = struct{}{}
	}

	out := b.Rows[:0]
	for _, row := range b.Rows {
		ok := true
		for _, ix := range cols {
			v := row.V[ix]
			if v == nil {
				ok = false
				break
			}
			if s, isStr := v.(string); isStr {
				if _, gone := missing[s]; gone {
					ok = false
					break
				}
			}
		}
		if ok {
			out = append(out, row)
		}
	}
	b.Rows = out
	return nil
}

func (r Require) columns(b *transformer.Batch) ([]int, error) {
	if len(r.Fields) == 0 {
		cols := make([]int, len(b.Schema))
		for i := range cols {
			cols[i] = i
		}
		return cols, nil
	}
	cols := make([]int, 0, len(r.Fields))
	for _, f := range r.Fields {
		ix, err := b.Column(f)
		if err != nil {
			return nil, err
		}
		cols = append(cols, ix)
	}
	return cols, nil
}
