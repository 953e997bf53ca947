package sched

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Loop is the tracked scheduling context: a serial event loop that runs
// dispatched functions one at a time, in FIFO order, on a single
// goroutine. The Loop counts its outstanding work (queued plus currently
// executing) and exposes that count through Idle and WaitIdle so a host
// or test runner can wait for the application to settle.
//
// All loop-confined state (bindings, cached values) must only be touched
// from functions dispatched onto the Loop.
type Loop struct {
	name   string
	logger *slog.Logger

	jobs    chan job
	stopCh  chan struct{}
	doneCh  chan struct{}
	stopped atomic.Bool

	// mu guards pending and idleCh.
	mu      sync.Mutex
	pending int
	idleCh  chan struct{}

	onPanic func(v any)
	metrics *loopMetrics
	tracer  trace.Tracer
}

type job struct {
	name string
	fn   func()
}

// LoopOption configures a Loop.
type LoopOption func(*loopConfig)

type loopConfig struct {
	name      string
	logger    *slog.Logger
	queueSize int
	onPanic   func(v any)
	metrics   *loopMetrics
	tracer    trace.Tracer
}

// WithName sets the loop name used in logs and trace spans.
func WithName(name string) LoopOption {
	return func(c *loopConfig) {
		c.name = name
	}
}

// WithLogger sets the logger for loop warnings and errors.
func WithLogger(logger *slog.Logger) LoopOption {
	return func(c *loopConfig) {
		c.logger = logger
	}
}

// WithQueueSize sets the dispatch queue capacity.
func WithQueueSize(n int) LoopOption {
	return func(c *loopConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithPanicHandler sets the handler invoked when a dispatched function
// panics. Without a handler the panic is re-raised on the loop goroutine.
func WithPanicHandler(fn func(v any)) LoopOption {
	return func(c *loopConfig) {
		c.onPanic = fn
	}
}

// WithTracing enables an OpenTelemetry span around every named dispatch.
// Unnamed dispatches are not traced.
func WithTracing() LoopOption {
	return func(c *loopConfig) {
		c.tracer = otel.Tracer("livebind/sched")
	}
}

// WithMetrics registers Prometheus metrics for this loop on the given
// registerer: jobs processed, job duration, queue depth, and dropped
// dispatches. One loop per registerer; use a dedicated registry (or
// distinct const labels via a wrapping registerer) for additional loops.
func WithMetrics(reg prometheus.Registerer) LoopOption {
	return func(c *loopConfig) {
		c.metrics = newLoopMetrics(reg)
	}
}

// NewLoop creates and starts a Loop. The caller owns the Loop and must
// call Stop when done with it.
func NewLoop(opts ...LoopOption) *Loop {
	cfg := loopConfig{
		name:      "loop",
		logger:    slog.Default(),
		queueSize: 256,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	l := &Loop{
		name:    cfg.name,
		logger:  cfg.logger,
		jobs:    make(chan job, cfg.queueSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		onPanic: cfg.onPanic,
		metrics: cfg.metrics,
		tracer:  cfg.tracer,
	}

	go l.run()
	return l
}

// Dispatch queues fn to run on the loop. Safe to call from any goroutine.
// If the queue is full or the loop is stopped the function is dropped
// with a logged warning; callers that need backpressure should size the
// queue accordingly.
func (l *Loop) Dispatch(fn func()) {
	l.DispatchNamed("", fn)
}

// DispatchNamed is Dispatch with a name attached for logging and tracing.
func (l *Loop) DispatchNamed(name string, fn func()) {
	if fn == nil {
		return
	}
	if l.stopped.Load() {
		l.logger.Warn("dispatch on stopped loop, discarding", "loop", l.name, "job", name)
		return
	}

	l.addPending()
	select {
	case l.jobs <- job{name: name, fn: fn}:
		if l.metrics != nil {
			l.metrics.queueDepth.Set(float64(len(l.jobs)))
		}
	default:
		l.removePending()
		l.logger.Warn("dispatch queue full, discarding", "loop", l.name, "job", name)
		if l.metrics != nil {
			l.metrics.jobsDropped.Inc()
		}
	}
}

// Idle reports whether the loop currently has no queued or running work.
func (l *Loop) Idle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending == 0
}

// WaitIdle blocks until the loop has no queued or running work, or until
// ctx is done. Work dispatched through Go is invisible to this wait: a
// subscription to an endless producer leaves the loop idle between
// deliveries.
func (l *Loop) WaitIdle(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.pending == 0 {
			l.mu.Unlock()
			return nil
		}
		if l.idleCh == nil {
			l.idleCh = make(chan struct{})
		}
		ch := l.idleCh
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop drains queued work and terminates the loop goroutine. It returns
// once the loop has exited or ctx is done. Stop is idempotent.
func (l *Loop) Stop(ctx context.Context) error {
	if l.stopped.Swap(true) {
		select {
		case <-l.doneCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	close(l.stopCh)
	select {
	case <-l.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) run() {
	defer close(l.doneCh)

	for {
		select {
		case j := <-l.jobs:
			l.runJob(j)
		case <-l.stopCh:
			// Drain whatever was queued before the stop.
			for {
				select {
				case j := <-l.jobs:
					l.runJob(j)
				default:
					return
				}
			}
		}
	}
}

func (l *Loop) runJob(j job) {
	var span trace.Span
	if l.tracer != nil && j.name != "" {
		_, span = l.tracer.Start(context.Background(), "loop.dispatch",
			trace.WithAttributes(
				attribute.String("loop.name", l.name),
				attribute.String("job.name", j.name),
			))
	}

	start := time.Now()
	defer func() {
		r := recover()
		if span != nil {
			span.End()
		}
		if l.metrics != nil {
			l.metrics.jobsTotal.Inc()
			l.metrics.jobDuration.Observe(time.Since(start).Seconds())
			l.metrics.queueDepth.Set(float64(len(l.jobs)))
		}
		if r != nil && l.onPanic != nil {
			// Handle before the idle accounting drops, so WaitIdle
			// callers observe the handler's effects.
			l.onPanic(r)
			r = nil
		}
		l.removePending()
		if r != nil {
			panic(r)
		}
	}()

	j.fn()
}

func (l *Loop) addPending() {
	l.mu.Lock()
	l.pending++
	l.mu.Unlock()
}

func (l *Loop) removePending() {
	l.mu.Lock()
	l.pending--
	if l.pending == 0 && l.idleCh != nil {
		close(l.idleCh)
		l.idleCh = nil
	}
	l.mu.Unlock()
}
