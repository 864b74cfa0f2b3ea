package builtin

import (
	"fmt"
	"math"
	"strconv"

	"transportetl/internal/table"
	"transportetl/internal/transformer"
)

// TypeCoercionError reports a cell that could not be converted to its
// column's type. It aborts the transform.
type TypeCoercionError struct {
	Column string
	Value  string
	// Line is the 1-based source line; Chunk the 0-based chunk number.
	Line  int
	Chunk int
	Err   error
}

func (e *TypeCoercionError) Error() string {
	return fmt.Sprintf("coerce %s=%q at line %d (chunk %d): %v", e.Column, e.Value, e.Line, e.Chunk, e.Err)
}

func (e *TypeCoercionError) Unwrap() error { return e.Err }

// Target names a column and the kind it is coerced to.
type Target struct {
	Column string
	Kind   table.Kind
}

// Coerce converts string cells of the target columns in place and updates
// the batch schema.
type Coerce struct {
	Targets []Target
}

func (Coerce) Name() string { return "coerce" }

func (c Coerce) Apply(b *transformer.Batch) error {
	for _, t := range c.Targets {
		ix, err := b.Column(t.Column)
		if err != nil {
			return fmt.Errorf("coerce: %w", err)
		}
		conv, err := converter(t.Kind)
		if err != nil {
			return fmt.Errorf("coerce %s: %w", t.Column, err)
		}
		for i := range b.Rows {
			s, ok := b.Rows[i].V[ix].(string)
			if !ok {
				continue
			}
			v, err := conv(s)
			if err != nil {
				return &TypeCoercionError{
					Column: t.Column,
					Value:  s,
					Line:   b.Rows[i].Line,
					Chunk:  b.Index,
					Err:    err,
				}
			}
			b.Rows[i].V[ix] = v
		}
		b.Schema[ix].Kind = t.Kind
	}
	return nil
}

func converter(k table.Kind) (func(string) (any, error), error) {
	switch k {
	case table.Int64:
		return func(s string) (any, error) { return ParseInt(s) }, nil
	case table.Float64:
		return func(s string) (any, error) { return ParseFloat(s) }, nil
	case table.String:
		return func(s string) (any, error) { return s, nil }, nil
	default:
		return nil, fmt.Errorf("unsupported kind %s", k)
	}
}

// ParseInt parses a base-10 integer. Integral decimals such as "2020.0" are
// accepted; fractional values are not.
func ParseInt(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return n, nil
	}
	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil {
		return 0, fmt.Errorf("not an integer")
	}
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, fmt.Errorf("not an integer")
	}
	return int64(f), nil
}

// ParseFloat parses a finite decimal number.
func ParseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("not a finite number")
	}
	return f, nil
}
