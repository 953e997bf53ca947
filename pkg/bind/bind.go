package bind

import (
	"log/slog"
	"reflect"

	"github.com/vango-dev/livebind/pkg/sched"
	"github.com/vango-dev/livebind/pkg/stream"
)

// Snapshot is the result of a Render call.
//
// Changed is the "value changed" marker: it is true on the first Render
// after a new delivery landed and false on every repeat read, so a
// diffing host can skip work when nothing moved even if the value
// itself is not usefully comparable.
type Snapshot[T any] struct {
	// Value is the most recent emission, or the zero value before the
	// first delivery and after Teardown.
	Value T

	// Ok reports whether Value holds a real emission.
	Ok bool

	// Changed reports whether Value is new since the previous Render.
	Changed bool
}

// Binding caches the latest value emitted by a producer for consumption
// by a render pass. See the package documentation for the scheduling
// contract.
type Binding[T any] struct {
	loop   sched.Dispatcher
	bg     sched.Dispatcher
	name   string
	logger *slog.Logger

	// invalidate is called on the tracked loop after each cached
	// delivery, typically to schedule a re-render.
	invalidate func()

	// src is the currently bound producer; nil when unbound.
	src stream.Source[T]

	// cancel tears down the active registration. Present only while a
	// producer is bound (it arrives asynchronously just after listen;
	// see attach).
	cancel func()

	// subID identifies the current registration. Deliveries carry the
	// ID they were created under and are dropped on mismatch, so a
	// late emission from a cancelled producer can never corrupt a newer
	// binding's state.
	subID uint64

	latest    T
	hasLatest bool

	// seq counts cached deliveries; returnedSeq records the seq at the
	// last Render. They differ exactly when there is an unreturned
	// value, which is what drives Snapshot.Changed.
	seq         uint64
	returnedSeq uint64
}

// Option configures a Binding.
type Option func(*options)

type options struct {
	name       string
	logger     *slog.Logger
	invalidate func()
}

// WithInvalidate sets the callback invoked on the tracked loop after a
// new value has been cached. Hosts use it to schedule a render pass.
func WithInvalidate(fn func()) Option {
	return func(o *options) {
		o.invalidate = fn
	}
}

// WithBindingName sets the name used in logs and delivery errors.
func WithBindingName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithBindingLogger sets the logger for binding diagnostics.
func WithBindingLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates an unbound Binding. loop is the tracked dispatcher all
// state mutation is confined to; bg is the untracked dispatcher used to
// establish subscriptions (normally sched.Go).
func New[T any](loop, bg sched.Dispatcher, opts ...Option) *Binding[T] {
	o := options{
		name:   "binding",
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Binding[T]{
		loop:       loop,
		bg:         bg,
		name:       o.name,
		logger:     o.logger,
		invalidate: o.invalidate,
	}
}

// Render is called once per render pass with the producer currently
// bound at the call site (or nil). It returns the cached latest value.
//
// A first Render with a producer begins listening and returns the
// absent snapshot; the value itself becomes visible on a later Render,
// after the delivery has crossed the tracked loop. Passing a different
// producer cancels the old registration, clears cached state, and binds
// the new one. Must run on the tracked loop.
func (b *Binding[T]) Render(src stream.Source[T]) Snapshot[T] {
	if b.src == nil {
		if src != nil {
			b.listen(src)
		}
		return b.snapshot()
	}

	if !sameSource(b.src, src) {
		b.Teardown()
		return b.Render(src)
	}

	return b.snapshot()
}

// Teardown cancels the active registration and clears all cached state.
// Idempotent; a no-op when nothing is bound. Hosts call it when the
// owning view is destroyed. Must run on the tracked loop.
func (b *Binding[T]) Teardown() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.src = nil
	b.subID++ // strands in-flight deliveries and attaches

	var zero T
	b.latest = zero
	b.hasLatest = false
	b.seq = 0
	b.returnedSeq = 0
}

// Bound reports whether a producer is currently bound.
func (b *Binding[T]) Bound() bool {
	return b.src != nil
}

// listen begins a new registration for src. The subscription itself is
// established on the untracked dispatcher so that listening is invisible
// to the loop's idle accounting; every callback re-enters the loop
// before touching state.
func (b *Binding[T]) listen(src stream.Source[T]) {
	b.src = src
	b.subID++
	id := b.subID

	b.bg.Dispatch(func() {
		cancel := src.Subscribe(
			func(v T) {
				b.loop.Dispatch(func() { b.deliver(id, v) })
			},
			func(err error) {
				b.loop.Dispatch(func() { b.fail(id, err) })
			},
		)
		b.loop.Dispatch(func() { b.attach(id, cancel) })
	})
}

// attach stores the cancel handle for registration id. If the binding
// was rebound or torn down while the subscription was being established,
// the registration is already stale and is cancelled on the spot.
func (b *Binding[T]) attach(id uint64, cancel func()) {
	if b.src == nil || id != b.subID {
		cancel()
		return
	}
	b.cancel = cancel
}

// deliver caches a value from registration id. Runs on the tracked loop.
func (b *Binding[T]) deliver(id uint64, v T) {
	if b.src == nil || id != b.subID {
		b.logger.Debug("dropping stale delivery", "binding", b.name)
		return
	}

	b.latest = v
	b.hasLatest = true
	b.seq++

	if b.invalidate != nil {
		b.invalidate()
	}
}

// fail handles a producer error from registration id: tear down, then
// re-raise on the loop. Errors are deliberately not recovered here — the
// failure belongs to the host's error handling, not the binding's.
func (b *Binding[T]) fail(id uint64, err error) {
	if b.src == nil || id != b.subID {
		return
	}

	name := b.name
	b.Teardown()
	panic(&DeliveryError{Binding: name, Err: err})
}

func (b *Binding[T]) snapshot() Snapshot[T] {
	s := Snapshot[T]{Value: b.latest, Ok: b.hasLatest}
	if b.seq != b.returnedSeq {
		b.returnedSeq = b.seq
		s.Changed = true
	}
	return s
}

// sameSource reports whether a and b are the same producer. Sources with
// uncomparable dynamic types (func-based implementations) never compare
// equal, which degrades to a rebind rather than a runtime panic.
func sameSource[T any](a, b stream.Source[T]) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}
	return a == b
}
