package transformer

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"transportetl/internal/metrics"
	"transportetl/internal/parser/csv"
	"transportetl/internal/table"
)

// Stats summarizes one cleaning run.
type Stats struct {
	Chunks int64 `json:"chunks"`
	Read   int64 `json:"rows_read"`
	Kept   int64 `json:"rows_kept"`
	// Dropped counts removed rows per transformer name.
	Dropped map[string]int64 `json:"dropped,omitempty"`
}

func (s *Stats) drop(name string, n int) {
	if s.Dropped == nil {
		s.Dropped = make(map[string]int64)
	}
	s.Dropped[name] += int64(n)
}

// Cleaner runs a Chain over every chunk of a ChunkReader and concatenates
// the results in input order.
type Cleaner struct {
	Chain Chain
	// Job labels metrics.
	Job    string
	Logger *slog.Logger
}

// Schema returns the output schema for header by running the chain on an
// empty batch.
func (c *Cleaner) Schema(header []string) (table.Schema, error) {
	b := NewBatch(0, header, nil, nil)
	if err := c.Chain.Apply(b, nil); err != nil {
		return nil, err
	}
	return b.Schema, nil
}

// Run reads chunks on one goroutine and cleans them on another; the channel
// between them holds one chunk so at most three chunks are in memory. The
// first error cancels both sides. The caller still owns r and must close it.
func (c *Cleaner) Run(ctx context.Context, r *csv.ChunkReader) (*table.Table, Stats, error) {
	log := c.Logger
	if log == nil {
		log = slog.Default()
	}

	var st Stats
	schema, err := c.Schema(r.Header())
	if err != nil {
		return nil, st, err
	}
	out := table.New(schema)

	g, gctx := errgroup.WithContext(ctx)
	chunks := make(chan *csv.Chunk, 1)

	g.Go(func() error {
		defer close(chunks)
		return csv.StreamChunks(gctx, r, chunks)
	})

	g.Go(func() error {
		for ch := range chunks {
			start := time.Now()
			b := NewBatch(ch.Index, r.Header(), ch.Rows, ch.Lines)
			read := len(b.Rows)

			if err := c.Chain.Apply(b, func(name string, n int) {
				st.drop(name, n)
				metrics.RecordRow(c.Job, "dropped_"+name, int64(n))
			}); err != nil {
				return err
			}
			if err := out.Append(b.Schema, b.Values()); err != nil {
				return err
			}

			st.Chunks++
			st.Read += int64(read)
			st.Kept += int64(len(b.Rows))
			metrics.RecordRow(c.Job, "read", int64(read))
			metrics.RecordRow(c.Job, "kept", int64(len(b.Rows)))

			log.Debug("chunk cleaned",
				"chunk", ch.Index,
				"first_line", firstLine(ch),
				"read", read,
				"kept", len(b.Rows),
				"took", time.Since(start),
			)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, st, err
	}

	log.Info("transform cleaned",
		"chunks", st.Chunks,
		"read", humanize.Comma(st.Read),
		"kept", humanize.Comma(st.Kept),
		"dropped", st.Dropped,
	)
	return out, st, nil
}

func firstLine(c *csv.Chunk) int {
	if len(c.Lines) == 0 {
		return 0
	}
	return c.Lines[0]
}
