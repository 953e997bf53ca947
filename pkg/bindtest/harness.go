package bindtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/livebind/pkg/bind"
	"github.com/vango-dev/livebind/pkg/sched"
	"github.com/vango-dev/livebind/pkg/stream"
)

// waitTimeout bounds every blocking harness operation so a broken loop
// fails the test instead of hanging it.
const waitTimeout = 5 * time.Second

// Harness owns a tracked loop for a single test. Panics raised on the
// loop (including delivery failures) are recorded instead of crashing
// the test process; inspect them with Panics. The loop is stopped via
// t.Cleanup.
type Harness struct {
	Loop *sched.Loop

	t      *testing.T
	mu     sync.Mutex
	panics []any
}

// New creates a Harness with a running loop.
func New(t *testing.T) *Harness {
	t.Helper()

	h := &Harness{t: t}
	h.Loop = sched.NewLoop(
		sched.WithName("bindtest"),
		sched.WithPanicHandler(func(v any) {
			h.mu.Lock()
			h.panics = append(h.panics, v)
			h.mu.Unlock()
		}),
	)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		h.Loop.Stop(ctx)
	})

	return h
}

// Run executes fn on the tracked loop and waits for it to finish.
func (h *Harness) Run(fn func()) {
	h.t.Helper()

	done := make(chan struct{})
	h.Loop.Dispatch(func() {
		defer close(done)
		fn()
	})

	select {
	case <-done:
	case <-time.After(waitTimeout):
		h.t.Fatal("bindtest: loop did not run dispatched function")
	}
}

// Settle waits until the loop has processed everything queued so far,
// so deliveries already emitted are visible to the next Render.
func (h *Harness) Settle() {
	h.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if err := h.Loop.WaitIdle(ctx); err != nil {
		h.t.Fatalf("bindtest: loop did not settle: %v", err)
	}
}

// Panics returns the panics recorded from the loop so far.
func (h *Harness) Panics() []any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]any(nil), h.panics...)
}

// Render runs b.Render(src) on the harness loop and returns the result.
func Render[T any](h *Harness, b *bind.Binding[T], src stream.Source[T]) bind.Snapshot[T] {
	h.t.Helper()

	var snap bind.Snapshot[T]
	h.Run(func() { snap = b.Render(src) })
	return snap
}

// Teardown runs b.Teardown on the harness loop.
func Teardown[T any](h *Harness, b *bind.Binding[T]) {
	h.t.Helper()
	h.Run(b.Teardown)
}

// ExpectValue asserts that snap holds want.
func ExpectValue[T comparable](t *testing.T, snap bind.Snapshot[T], want T) {
	t.Helper()
	if !snap.Ok {
		t.Fatalf("expected value %v, got absent snapshot", want)
	}
	if snap.Value != want {
		t.Errorf("expected value %v, got %v", want, snap.Value)
	}
}

// ExpectAbsent asserts that snap holds no value.
func ExpectAbsent[T any](t *testing.T, snap bind.Snapshot[T]) {
	t.Helper()
	if snap.Ok {
		t.Errorf("expected absent snapshot, got value %v", snap.Value)
	}
	if snap.Changed {
		t.Error("absent snapshot should not be marked changed")
	}
}
