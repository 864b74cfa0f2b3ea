// Package builtin contains the cleaning rules applied to every chunk.
package builtin

import (
	"strconv"

	"github.com/zeebo/xxh3"

	"transportetl/internal/transformer"
)

// DeDup removes full-row duplicates within a batch and keeps the first
// occurrence. Rows are bucketed by an xxh3 hash of their cells and compared
// cell by cell inside a bucket, so hash collisions never drop a distinct row.
type DeDup struct {
	// Numeric names columns compared by value, so "2020" equals "2020.0"
	// there. Cells that do not parse as numbers compare as text.
	Numeric []string
}

func (DeDup) Name() string { return "duplicate" }

func (d DeDup) Apply(b *transformer.Batch) error {
	if len(b.Rows) < 2 {
		return nil
	}
	numeric := make([]bool, len(b.Schema))
	for _, name := range d.Numeric {
		if i := b.Schema.Index(name); i >= 0 {
			numeric[i] = true
		}
	}

	seen := make(map[uint64][]int, len(b.Rows))
	out := b.Rows[:0]
	keys := make([][]string, 0, len(b.Rows))
	var buf []byte
	for _, r := range b.Rows {
		key := make([]string, len(r.V))
		buf = buf[:0]
		for i, v := range r.V {
			s, _ := v.(string)
			if numeric[i] {
				s = canonicalNumber(s)
			}
			key[i] = s
			buf = append(buf, s...)
			// Unit separator keeps ("ab","c") apart from ("a","bc").
			buf = append(buf, 0x1f)
		}
		sum := xxh3.Hash(buf)

		dup := false
		for _, ix := range seen[sum] {
			if sameKey(keys[ix], key) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[sum] = append(seen[sum], len(out))
		out = append(out, r)
		keys = append(keys, key)
	}
	b.Rows = out
	return nil
}

// canonicalNumber renders a finite number in its shortest form; anything
// else is returned unchanged.
func canonicalNumber(s string) string {
	f, err := ParseFloat(s)
	if err != nil {
		return s
	}
	if f == 0 {
		f = 0 // -0
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func sameKey(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
