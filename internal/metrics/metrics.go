// Package metrics records operational metrics of the transport pipeline.
//
// Callers use the Record* helpers; a global, pluggable Backend receives the
// observations. The default backend discards everything, so instrumented
// code is always safe to run without metrics configured. Concrete systems
// live in subpackages (prompush, datadog) and are installed with SetBackend.
package metrics

import (
	"sync"
	"time"
)

// Metric names understood by the backends.
const (
	StepTotal    = "transport_etl_step_total"
	StepDuration = "transport_etl_step_duration_seconds"
	RowsTotal    = "transport_etl_rows_total"
	BatchesTotal = "transport_etl_batches_total"
	RetriesTotal = "transport_etl_retries_total"
	RunsTotal    = "transport_etl_runs_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// Reset restores the no-op backend.
func Reset() {
	mu.Lock()
	backend = nopBackend{}
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one execution of a pipeline step (extract, transform,
// load, report) and observes its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}

	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow adds delta to the row counter of the given kind, e.g. "read",
// "kept", "dropped_duplicate", "dropped_missing" or "inserted".
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordBatches increments the load batch counter.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{"job": job})
}

// RecordRetry counts one retried attempt of step.
func RecordRetry(job, step string) {
	current().IncCounter(RetriesTotal, 1, Labels{"job": job, "step": step})
}

// RecordRun counts a finished run by its final state.
func RecordRun(job, state string) {
	current().IncCounter(RunsTotal, 1, Labels{"job": job, "state": state})
}
