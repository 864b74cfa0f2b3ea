// Package probe samples the head of a raw transport file and reports what the
// transform step will find in it: the header, a per-column type guess and
// whether the numeric columns will survive coercion.
package probe

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"transportetl/internal/datasource/file"
	pcsv "transportetl/internal/parser/csv"
	"transportetl/internal/table"
	"transportetl/internal/transformer/builtin"
)

// DefaultMaxBytes is the sample size used when Options.MaxBytes is not positive.
const DefaultMaxBytes = 1 << 20

// Options control sampling.
type Options struct {
	// MaxBytes to sample from the start of the file.
	MaxBytes int
	// Encoding of the raw file, see csv.Encoding.
	Encoding string
	// Comma is the field delimiter; zero means ','.
	Comma rune
}

// Type is an inferred column type.
type Type string

const (
	TypeEmpty   Type = "empty"
	TypeInteger Type = "integer"
	TypeReal    Type = "real"
	TypeText    Type = "text"
)

// Column summarizes one sampled column.
type Column struct {
	Name    string `json:"name"`
	Type    Type   `json:"type"`
	Missing int    `json:"missing"`
	// Expected is the kind the cleaning chain coerces this column to, if any.
	Expected string `json:"expected,omitempty"`
	// BadValues counts non-missing cells that would fail that coercion.
	BadValues int `json:"bad_values,omitempty"`
	// FirstBad is the first such cell.
	FirstBad string `json:"first_bad,omitempty"`
}

// Result is the outcome of a probe.
type Result struct {
	Path    string   `json:"path"`
	Bytes   int      `json:"bytes"`
	Rows    int      `json:"rows"`
	Skipped int      `json:"skipped"`
	Columns []Column `json:"columns"`
	// Absent lists required columns missing from the header.
	Absent []string `json:"absent,omitempty"`
}

// OK reports whether the sample looks loadable: every required column is
// present and no sampled value would fail coercion.
func (r Result) OK() bool {
	if len(r.Absent) > 0 {
		return false
	}
	for _, c := range r.Columns {
		if c.BadValues > 0 {
			return false
		}
	}
	return true
}

// expected maps the coerced columns of the cleaning chain to their kinds.
var expected = map[string]table.Kind{
	builtin.ColYear:  table.Int64,
	builtin.ColMonth: table.Int64,
	builtin.ColValue: table.Float64,
}

// required lists the coerced columns in header order of the dataset.
var required = []string{builtin.ColYear, builtin.ColMonth, builtin.ColValue}

// Probe reads up to opt.MaxBytes from path and summarizes the sample.
func Probe(ctx context.Context, path string, opt Options) (Result, error) {
	n := opt.MaxBytes
	if n <= 0 {
		n = DefaultMaxBytes
	}

	rc, err := file.NewLocal(path).Open(ctx)
	if err != nil {
		return Result{}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, int64(n)))
	if err != nil {
		return Result{}, fmt.Errorf("read sample: %w", err)
	}
	// Cut to the last newline so a partial record is not sampled, unless the
	// whole file fit.
	if len(data) == n {
		if i := bytes.LastIndexByte(data, '\n'); i > 0 {
			data = data[:i+1]
		}
	}

	headers, rows, skipped, err := readSample(data, opt)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		Path:    path,
		Bytes:   len(data),
		Rows:    len(rows),
		Skipped: skipped,
		Columns: summarize(headers, rows),
	}
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[h] = true
	}
	for _, name := range required {
		if !present[name] {
			res.Absent = append(res.Absent, name)
		}
	}
	return res, nil
}

// readSample decodes data and returns the header and the rows whose width
// matches it. Malformed and misaligned records are counted as skipped.
func readSample(data []byte, opt Options) ([]string, [][]string, int, error) {
	dec, err := pcsv.NewDecodingReader(bytes.NewReader(data), opt.Encoding)
	if err != nil {
		return nil, nil, 0, err
	}
	r := csv.NewReader(dec)
	if opt.Comma != 0 {
		r.Comma = opt.Comma
	}
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	h, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, 0, errors.New("probe: empty input")
	}
	if err != nil {
		return nil, nil, 0, fmt.Errorf("probe: read header: %w", err)
	}
	headers := pcsv.StripHeaderBOM(h)
	for i, v := range headers {
		headers[i] = strings.TrimSpace(v)
	}

	var rows [][]string
	skipped := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil || len(rec) != len(headers) {
			skipped++
			continue
		}
		for i, v := range rec {
			rec[i] = strings.TrimSpace(v)
		}
		rows = append(rows, rec)
	}
	return headers, rows, skipped, nil
}

func summarize(headers []string, rows [][]string) []Column {
	missing := make(map[string]struct{}, len(builtin.MissingMarkers)+1)
	missing[""] = struct{}{}
	for _, m := range builtin.MissingMarkers {
		missing[m] = struct{}{}
	}

	cols := make([]Column, len(headers))
	for i, name := range headers {
		c := Column{Name: name}
		var values []string
		for _, row := range rows {
			v := row[i]
			if _, ok := missing[v]; ok {
				c.Missing++
				continue
			}
			values = append(values, v)
		}
		c.Type = inferType(values)
		if k, ok := expected[name]; ok {
			c.Expected = k.String()
			for _, v := range values {
				if !coerces(k, v) {
					if c.BadValues == 0 {
						c.FirstBad = v
					}
					c.BadValues++
				}
			}
		}
		cols[i] = c
	}
	return cols
}

// inferType picks the narrowest type every value satisfies.
func inferType(values []string) Type {
	if len(values) == 0 {
		return TypeEmpty
	}
	if allMatch(values, isInt) {
		return TypeInteger
	}
	if allMatch(values, isReal) {
		return TypeReal
	}
	return TypeText
}

func coerces(k table.Kind, v string) bool {
	switch k {
	case table.Int64:
		return isInt(v)
	case table.Float64:
		return isReal(v)
	default:
		return true
	}
}

func allMatch(vals []string, fn func(string) bool) bool {
	for _, v := range vals {
		if !fn(v) {
			return false
		}
	}
	return true
}

func isInt(s string) bool {
	_, err := builtin.ParseInt(s)
	return err == nil
}

func isReal(s string) bool {
	_, err := builtin.ParseFloat(s)
	return err == nil
}
