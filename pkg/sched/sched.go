package sched

// Dispatcher schedules a function for execution. The two scheduling
// contexts livebind cares about (the tracked Loop and the untracked Go)
// both satisfy this interface, as can any host-provided scheduler.
type Dispatcher interface {
	// Dispatch queues fn for execution. It is safe to call from any
	// goroutine. Whether fn runs asynchronously (Loop, Go) or on the
	// calling goroutine (Inline) is up to the implementation.
	Dispatch(fn func())
}

// DispatcherFunc adapts a plain function to the Dispatcher interface.
type DispatcherFunc func(fn func())

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(fn func()) { f(fn) }

// Go is the untracked dispatcher: every dispatched function runs on its
// own goroutine. Work running under Go is not observed by any Loop's
// idle accounting.
var Go Dispatcher = goDispatcher{}

type goDispatcher struct{}

func (goDispatcher) Dispatch(fn func()) { go fn() }

// Inline runs the function immediately on the calling goroutine.
// Useful in tests where deterministic, synchronous subscription
// establishment is wanted in place of Go.
var Inline Dispatcher = inlineDispatcher{}

type inlineDispatcher struct{}

func (inlineDispatcher) Dispatch(fn func()) { fn() }
