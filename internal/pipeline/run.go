package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State is the position of a run in PENDING -> EXTRACTED -> TRANSFORMED ->
// LOADED. FAILED is reachable from any non-terminal state.
type State string

const (
	StatePending     State = "PENDING"
	StateExtracted   State = "EXTRACTED"
	StateTransformed State = "TRANSFORMED"
	StateLoaded      State = "LOADED"
	StateFailed      State = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool { return s == StateLoaded || s == StateFailed }

var next = map[State]State{
	StatePending:     StateExtracted,
	StateExtracted:   StateTransformed,
	StateTransformed: StateLoaded,
}

// Run is the record of one pipeline execution.
type Run struct {
	ID       string         `json:"id"`
	State    State          `json:"state"`
	Raw      *RawRef        `json:"raw,omitempty"`
	Artifact *ArtifactRef   `json:"artifact,omitempty"`
	Load     *LoadResult    `json:"load,omitempty"`
	Attempts map[string]int `json:"attempts"`
	Err      error          `json:"-"`
	Started  time.Time      `json:"started"`
	Finished time.Time      `json:"finished,omitempty"`
}

// NewRun returns a PENDING run with a fresh ID.
func NewRun() *Run {
	return &Run{
		ID:       uuid.NewString(),
		State:    StatePending,
		Attempts: make(map[string]int),
		Started:  time.Now(),
	}
}

// Advance moves the run to its successor state; to must be that successor.
func (r *Run) Advance(to State) error {
	if want, ok := next[r.State]; !ok || want != to {
		return fmt.Errorf("run %s: invalid transition %s -> %s", r.ID, r.State, to)
	}
	r.State = to
	if to.Terminal() {
		r.Finished = time.Now()
	}
	return nil
}

// Fail records err and moves the run to FAILED. It is a no-op on a terminal
// run.
func (r *Run) Fail(err error) {
	if r.State.Terminal() {
		return
	}
	r.State = StateFailed
	r.Err = err
	r.Finished = time.Now()
}
