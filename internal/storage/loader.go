// This file implements a generic, batched loader that drains typed rows from
// a channel and invokes a provided bulk-insert function (CopyFn) per batch.
//
// Backends implement CopyFn with their most efficient primitive (Postgres
// COPY, SQL Server bulk copy, prepared INSERTs) bound to the transaction that
// replaces the table.
//
// Logging: on every successful flush, a concise progress line is emitted with
// running totals and instantaneous rows/sec since the previous flush.

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"transportetl/internal/metrics"
)

// CopyFn abstracts a backend's bulk insert capability. Implementations insert
// the provided rows (aligned to 'columns' order) and return the number of
// rows reported as inserted.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadOptions tune LoadBatches.
type LoadOptions struct {
	BatchSize int
	Job       string
	Logger    *slog.Logger
}

// LoadBatches drains typed rows from 'in', groups them into batches of size
// opt.BatchSize, and calls 'copyFn' for each non-empty batch. It returns the
// total number of rows reported by copyFn and the first error encountered.
//
// Cancellation: returns (total, ctx.Err()) when canceled.
func LoadBatches(
	ctx context.Context,
	columns []string,
	in <-chan []any,
	opt LoadOptions,
	copyFn CopyFn,
) (int64, error) {
	if opt.BatchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}
	log := opt.Logger
	if log == nil {
		log = slog.Default()
	}

	var (
		total       int64
		batches     int64
		batch       = make([][]any, 0, opt.BatchSize)
		start       = time.Now()
		lastFlushTS = start
		lastTotal   int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n

		// Keep capacity; the backend is done with the rows once copyFn returns.
		batch = make([][]any, 0, opt.BatchSize)

		if err != nil {
			log.Error("loader: copy failed", "inserted", n, "total", total, "err", err)
			return err
		}

		batches++
		metrics.RecordBatches(opt.Job, 1)
		metrics.RecordRow(opt.Job, "inserted", n)

		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(total-lastTotal) / sinceLast.Seconds()
		}
		log.Debug("loader: batch",
			"batch", batches,
			"rps", fmt.Sprintf("%.0f", rps),
			"inserted", n,
			"total_inserted", humanize.Comma(total),
			"elapsed", now.Sub(start).Truncate(time.Millisecond),
			"since_last", sinceLast.Truncate(time.Millisecond),
		)
		lastFlushTS = now
		lastTotal = total
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()

		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, err
				}
				log.Info("loader: input closed",
					"batches", batches,
					"total_inserted", humanize.Comma(total),
					"elapsed", time.Since(start).Truncate(time.Millisecond),
				)
				return total, nil
			}
			batch = append(batch, row)
			if len(batch) >= opt.BatchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}

// LoadRows feeds rows to LoadBatches from a goroutine. It is the in-memory
// counterpart of a streaming source.
func LoadRows(ctx context.Context, columns []string, rows [][]any, opt LoadOptions, copyFn CopyFn) (int64, error) {
	if opt.BatchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := make(chan []any, opt.BatchSize)
	go func() {
		defer close(in)
		for _, r := range rows {
			select {
			case in <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	return LoadBatches(ctx, columns, in, opt, copyFn)
}
