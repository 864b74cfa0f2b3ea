// Package pipeline implements the three batch steps of the transport ETL
// (extract, transform, load), the run state machine and a retrying runner.
//
// Steps hand off immutable refs: Extract returns a RawRef, Transform turns it
// into an ArtifactRef, Load consumes that and returns a LoadResult. Every step
// is idempotent and can be retried or invoked separately by an external
// scheduler.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"transportetl/internal/artifact"
	"transportetl/internal/config"
	"transportetl/internal/datasource"
	"transportetl/internal/datasource/file"
	"transportetl/internal/parser/csv"
	"transportetl/internal/storage"
	"transportetl/internal/transformer"
	"transportetl/internal/transformer/builtin"
)

// RawRef points at a verified raw input.
type RawRef struct {
	Path string `json:"path"`
	Size int64  `json:"size_bytes,omitempty"`
}

// ArtifactRef points at a written cleaned artifact.
type ArtifactRef struct {
	Path  string            `json:"path"`
	Rows  int64             `json:"rows"`
	Stats transformer.Stats `json:"stats"`
}

// LoadResult describes a completed table replacement.
type LoadResult struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

type loggerKey struct{}

// WithLogger returns a context whose steps log through l.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

func loggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// Extract verifies that the configured raw input exists and can be read.
func Extract(ctx context.Context, cfg *config.Config) (RawRef, error) {
	log := loggerFrom(ctx).With("step", "extract")

	size, err := file.NewLocal(cfg.RawPath).Check(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return RawRef{}, err
		}
		err = &MissingInputError{Path: cfg.RawPath, Err: err}
		log.Error("raw input not available", "path", cfg.RawPath, "err", err)
		return RawRef{}, err
	}

	log.Info("raw input found", "path", cfg.RawPath, "size", humanize.Bytes(uint64(size)))
	return RawRef{Path: cfg.RawPath, Size: size}, nil
}

// Transform cleans raw chunk by chunk and writes the artifact. On failure the
// previous artifact, if any, is left in place.
func Transform(ctx context.Context, cfg *config.Config, raw RawRef) (ArtifactRef, error) {
	log := loggerFrom(ctx).With("step", "transform")
	start := time.Now()

	ref, err := transform(ctx, cfg, raw, log)
	if err != nil {
		attrs := []any{"raw", raw.Path, "artifact", cfg.ArtifactPath, "err", err}
		var tce *TypeCoercionError
		if errors.As(err, &tce) {
			attrs = append(attrs, "column", tce.Column, "value", tce.Value, "line", tce.Line, "chunk", tce.Chunk)
		}
		log.Error("transform failed", attrs...)
		return ArtifactRef{}, err
	}

	log.Info("artifact written",
		"path", ref.Path,
		"rows", humanize.Comma(ref.Rows),
		"chunks", ref.Stats.Chunks,
		"took", time.Since(start),
	)
	return ref, nil
}

func transform(ctx context.Context, cfg *config.Config, raw RawRef, log *slog.Logger) (ArtifactRef, error) {
	var in datasource.Source = file.NewLocal(raw.Path)
	src, err := in.Open(ctx)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = &MissingInputError{Path: raw.Path, Err: err}
		}
		return ArtifactRef{}, &TransformError{Stage: "open", Err: err}
	}

	rd, err := csv.NewChunkReader(src, csv.Options{
		Comma:     cfg.Parser.CommaRune(),
		Encoding:  cfg.Parser.Encoding,
		ChunkSize: cfg.ChunkSize,
	})
	if err != nil {
		return ArtifactRef{}, &TransformError{Stage: "read", Err: err}
	}
	defer rd.Close()

	cl := &transformer.Cleaner{
		Chain:  builtin.TransportChain(),
		Job:    cfg.Job,
		Logger: log,
	}
	t, st, err := cl.Run(ctx, rd)
	if err != nil {
		return ArtifactRef{}, &TransformError{Stage: "clean", Err: err}
	}

	if err := artifact.Write(cfg.ArtifactPath, t); err != nil {
		return ArtifactRef{}, &TransformError{Stage: "write", Err: err}
	}
	return ArtifactRef{Path: cfg.ArtifactPath, Rows: int64(t.Len()), Stats: st}, nil
}

// Load replaces the destination table with the artifact's rows.
func Load(ctx context.Context, cfg *config.Config, ref ArtifactRef) (LoadResult, error) {
	log := loggerFrom(ctx).With("step", "load")
	start := time.Now()

	res, err := load(ctx, cfg, ref, log)
	if err != nil {
		log.Error("load failed", "artifact", ref.Path, "table", cfg.Sink.Table, "kind", cfg.Sink.Kind, "err", err)
		return LoadResult{}, err
	}

	log.Info("table replaced",
		"table", res.Table,
		"kind", cfg.Sink.Kind,
		"rows", humanize.Comma(res.Rows),
		"took", time.Since(start),
	)
	return res, nil
}

func load(ctx context.Context, cfg *config.Config, ref ArtifactRef, log *slog.Logger) (LoadResult, error) {
	fail := func(err error) (LoadResult, error) {
		return LoadResult{}, &LoadError{Table: cfg.Sink.Table, Err: err}
	}

	t, err := artifact.Read(ref.Path)
	if err != nil {
		return fail(fmt.Errorf("read artifact: %w", err))
	}
	log.Debug("artifact read", "path", ref.Path, "rows", t.Len(), "schema", t.Schema.String())

	repo, err := storage.New(ctx, storage.Config{
		Kind:      cfg.Sink.Kind,
		DSN:       cfg.Sink.DSN,
		Table:     cfg.Sink.Table,
		BatchSize: cfg.Sink.BatchSize,
		Job:       cfg.Job,
		Logger:    log,
	})
	if err != nil {
		return fail(fmt.Errorf("open storage: %w", err))
	}
	defer repo.Close()

	if _, err := repo.ReplaceTable(ctx, t.Schema, t.Rows); err != nil {
		return fail(err)
	}
	n, err := repo.Count(ctx)
	if err != nil {
		return fail(err)
	}
	if n != int64(t.Len()) {
		return fail(fmt.Errorf("row count mismatch: table has %d rows, artifact %d", n, t.Len()))
	}
	return LoadResult{Table: cfg.Sink.Table, Rows: n}, nil
}
