// Package report computes the dashboard aggregates over the loaded
// transport table: overall activity, activity per year, the leading
// transport modes with their yearly series, the leading entities and the
// leading mode of each entity.
package report

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Columns read from the destination table.
const (
	ColYear  = "ANIO"
	ColMode  = "TRANSPORTE"
	ColValue = "VALOR"
)

// Scanner streams rows of the destination table. storage.Repository
// implements it.
type Scanner interface {
	Scan(ctx context.Context, columns []string, fn func(row []any) error) error
}

// Options bounds the ranked lists.
type Options struct {
	TopModes    int
	TopEntities int
}

// YearTotal is the VALOR sum of one year.
type YearTotal struct {
	Year  int64   `json:"year"`
	Total float64 `json:"total"`
}

// ModeSeries is a transport mode with its total and per-year sums.
type ModeSeries struct {
	Mode   string      `json:"mode"`
	Total  float64     `json:"total"`
	Yearly []YearTotal `json:"yearly"`
}

// EntityTotal is the VALOR sum of one entity.
type EntityTotal struct {
	Entity string  `json:"entity"`
	Total  float64 `json:"total"`
}

// EntityMode is the leading transport mode of one entity.
type EntityMode struct {
	Entity string  `json:"entity"`
	Mode   string  `json:"mode"`
	Total  float64 `json:"total"`
}

// Report holds the aggregates.
type Report struct {
	Rows  int64   `json:"rows"`
	Total float64 `json:"total"`
	// Unmatched counts rows whose ID_ENTIDAD has no reference name; they
	// are left out of the entity aggregates.
	Unmatched   int64         `json:"unmatched"`
	ByYear      []YearTotal   `json:"by_year"`
	TopModes    []ModeSeries  `json:"top_modes"`
	TopEntities []EntityTotal `json:"top_entities"`
	EntityModes []EntityMode  `json:"entity_modes"`
}

// Build scans the table once and aggregates it.
func Build(ctx context.Context, src Scanner, entities Entities, opt Options) (*Report, error) {
	acc := newAccumulator(entities)
	cols := []string{ColYear, ColMode, ColEntityID, ColValue}
	err := src.Scan(ctx, cols, func(row []any) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return acc.add(row)
	})
	if err != nil {
		return nil, fmt.Errorf("report: scan: %w", err)
	}
	return acc.report(opt), nil
}

type modeAcc struct {
	total  float64
	byYear map[int64]float64
}

type accumulator struct {
	entities  Entities
	rows      int64
	total     float64
	unmatched int64
	byYear    map[int64]float64
	modes     map[string]*modeAcc
	byEntity  map[string]float64
	entMode   map[string]map[string]float64
}

func newAccumulator(e Entities) *accumulator {
	return &accumulator{
		entities: e,
		byYear:   make(map[int64]float64),
		modes:    make(map[string]*modeAcc),
		byEntity: make(map[string]float64),
		entMode:  make(map[string]map[string]float64),
	}
}

func (a *accumulator) add(row []any) error {
	if len(row) != 4 {
		return fmt.Errorf("expected 4 columns, got %d", len(row))
	}
	year, err := asInt64(row[0])
	if err != nil {
		return fmt.Errorf("%s: %w", ColYear, err)
	}
	mode := asString(row[1])
	value, err := asFloat64(row[3])
	if err != nil {
		return fmt.Errorf("%s: %w", ColValue, err)
	}

	a.rows++
	a.total += value
	a.byYear[year] += value

	m := a.modes[mode]
	if m == nil {
		m = &modeAcc{byYear: make(map[int64]float64)}
		a.modes[mode] = m
	}
	m.total += value
	m.byYear[year] += value

	name, ok := a.entities.Name(asString(row[2]))
	if !ok {
		a.unmatched++
		return nil
	}
	a.byEntity[name] += value
	em := a.entMode[name]
	if em == nil {
		em = make(map[string]float64)
		a.entMode[name] = em
	}
	em[mode] += value
	return nil
}

func (a *accumulator) report(opt Options) *Report {
	r := &Report{
		Rows:      a.rows,
		Total:     a.total,
		Unmatched: a.unmatched,
		ByYear:    yearly(a.byYear),
	}

	for _, kv := range ranked(mapOf(a.modes, func(m *modeAcc) float64 { return m.total }), opt.TopModes) {
		r.TopModes = append(r.TopModes, ModeSeries{
			Mode:   kv.key,
			Total:  kv.total,
			Yearly: yearly(a.modes[kv.key].byYear),
		})
	}
	for _, kv := range ranked(a.byEntity, opt.TopEntities) {
		r.TopEntities = append(r.TopEntities, EntityTotal{Entity: kv.key, Total: kv.total})
	}

	for _, kv := range ranked(a.byEntity, 0) {
		best := ranked(a.entMode[kv.key], 1)[0]
		r.EntityModes = append(r.EntityModes, EntityMode{Entity: kv.key, Mode: best.key, Total: best.total})
	}
	// Highest per-entity mode first, like the dashboard table.
	sort.SliceStable(r.EntityModes, func(i, j int) bool {
		if r.EntityModes[i].Total != r.EntityModes[j].Total {
			return r.EntityModes[i].Total > r.EntityModes[j].Total
		}
		return r.EntityModes[i].Entity < r.EntityModes[j].Entity
	})
	return r
}

type keyTotal struct {
	key   string
	total float64
}

// ranked orders m by total descending, ties by key, keeping the first n
// (all when n <= 0).
func ranked(m map[string]float64, n int) []keyTotal {
	out := make([]keyTotal, 0, len(m))
	for k, v := range m {
		out = append(out, keyTotal{k, v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].total != out[j].total {
			return out[i].total > out[j].total
		}
		return out[i].key < out[j].key
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func mapOf[V any](m map[string]V, f func(V) float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = f(v)
	}
	return out
}

func yearly(m map[int64]float64) []YearTotal {
	out := make([]YearTotal, 0, len(m))
	for y, v := range m {
		out = append(out, YearTotal{Year: y, Total: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// Drivers return integers, floats, strings or bytes depending on the
// backend and protocol.

func asInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int32:
		return int64(t), nil
	case int:
		return int64(t), nil
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(t), 10, 64)
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(t)), 10, 64)
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}

func asFloat64(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}
