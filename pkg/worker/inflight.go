package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrDuplicateInvocation is returned when an invocation id is tracked twice.
var ErrDuplicateInvocation = errors.New("duplicate invocation id")

type invocationState struct {
	functionID string
	cancel     context.CancelFunc
}

// inflight tracks running invocations by id so they can be cancelled.
type inflight struct {
	mu   sync.Mutex
	jobs map[string]*invocationState
}

func newInflight() *inflight {
	return &inflight{jobs: make(map[string]*invocationState)}
}

// track registers an invocation and returns its context. release must be
// called when the invocation completes.
func (t *inflight) track(parent context.Context, invocationID, functionID string) (context.Context, func(), error) {
	ctx, cancel := context.WithCancel(parent)

	t.mu.Lock()
	if _, exists := t.jobs[invocationID]; exists {
		t.mu.Unlock()
		cancel()
		return nil, nil, fmt.Errorf("Unable to track CancellationTokenSource with id %s: %w", invocationID, ErrDuplicateInvocation)
	}
	t.jobs[invocationID] = &invocationState{functionID: functionID, cancel: cancel}
	t.mu.Unlock()

	release := func() {
		t.mu.Lock()
		delete(t.jobs, invocationID)
		t.mu.Unlock()
		cancel()
	}
	return ctx, release, nil
}

// cancel signals cancellation to a tracked invocation. It reports whether the
// id was known.
func (t *inflight) cancel(invocationID string) bool {
	t.mu.Lock()
	state, ok := t.jobs[invocationID]
	t.mu.Unlock()

	if ok && state.cancel != nil {
		state.cancel()
	}
	return ok
}

// cancelAll cancels every tracked invocation.
func (t *inflight) cancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, state := range t.jobs {
		state.cancel()
	}
}

func (t *inflight) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}
