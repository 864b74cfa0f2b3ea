package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"transportetl/internal/config"
	"transportetl/internal/metrics"
)

// Runner executes extract, transform and load in order, retrying a failed
// step with a fixed delay while the error is retryable.
type Runner struct {
	Config *config.Config
	Logger *slog.Logger
	// Sleep waits between attempts; nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// Step overrides for tests.
	extract   func(context.Context, *config.Config) (RawRef, error)
	transform func(context.Context, *config.Config, RawRef) (ArtifactRef, error)
	load      func(context.Context, *config.Config, ArtifactRef) (LoadResult, error)
}

// Run executes the pipeline once. The returned run is never nil; its Err
// equals the returned error.
func (r *Runner) Run(ctx context.Context) (*Run, error) {
	run := NewRun()
	log := r.logger().With("run_id", run.ID, "job", r.Config.Job)
	ctx = WithLogger(ctx, log)

	extract, transform, load := r.extract, r.transform, r.load
	if extract == nil {
		extract = Extract
	}
	if transform == nil {
		transform = Transform
	}
	if load == nil {
		load = Load
	}

	log.Info("run started", "raw", r.Config.RawPath, "artifact", r.Config.ArtifactPath, "table", r.Config.Sink.Table)

	err := r.retry(ctx, run, "extract", func(ctx context.Context) error {
		ref, err := extract(ctx, r.Config)
		if err == nil {
			run.Raw = &ref
		}
		return err
	})
	if err == nil {
		err = run.Advance(StateExtracted)
	}
	if err == nil {
		err = r.retry(ctx, run, "transform", func(ctx context.Context) error {
			ref, err := transform(ctx, r.Config, *run.Raw)
			if err == nil {
				run.Artifact = &ref
			}
			return err
		})
	}
	if err == nil {
		err = run.Advance(StateTransformed)
	}
	if err == nil {
		err = r.retry(ctx, run, "load", func(ctx context.Context) error {
			res, err := load(ctx, r.Config, *run.Artifact)
			if err == nil {
				run.Load = &res
			}
			return err
		})
	}
	if err == nil {
		err = run.Advance(StateLoaded)
	}

	if err != nil {
		run.Fail(err)
		log.Error("run failed", "state", run.State, "kind", KindOf(err).String(), "attempts", run.Attempts, "err", err)
	} else {
		log.Info("run finished",
			"state", run.State,
			"rows", humanize.Comma(run.Load.Rows),
			"took", run.Finished.Sub(run.Started),
		)
	}
	metrics.RecordRun(r.Config.Job, string(run.State))
	return run, err
}

// retry runs fn until it succeeds, the error is not retryable, attempts are
// exhausted or ctx ends.
func (r *Runner) retry(ctx context.Context, run *Run, step string, fn func(context.Context) error) error {
	attempts := r.Config.Retry.Attempts
	if attempts < 1 {
		attempts = 1
	}
	log := loggerFrom(ctx)

	for i := 1; ; i++ {
		run.Attempts[step] = i
		start := time.Now()
		err := fn(ctx)
		metrics.RecordStep(r.Config.Job, step, err, time.Since(start))
		if err == nil {
			return nil
		}

		kind := KindOf(err)
		if i >= attempts || !kind.Retryable() || ctx.Err() != nil {
			return err
		}
		log.Warn("step failed; retrying",
			"step", step,
			"attempt", i,
			"of", attempts,
			"kind", kind.String(),
			"delay", r.Config.Retry.Delay,
			"err", err,
		)
		metrics.RecordRetry(r.Config.Job, step)
		if serr := r.sleep(ctx, r.Config.Retry.Delay); serr != nil {
			return err
		}
	}
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
