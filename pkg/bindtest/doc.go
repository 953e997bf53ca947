// Package bindtest provides testing helpers for livebind bindings.
//
// The package reduces boilerplate when exercising loop-confined
// bindings from tests: a Harness that owns a tracked loop and records
// panics, a Script producer driven explicitly by the test, and snapshot
// assertions.
//
// # Quick Start
//
//	func TestCounter(t *testing.T) {
//	    h := bindtest.New(t)
//	    src := bindtest.NewScript[int]()
//	    b := bind.New[int](h.Loop, sched.Inline)
//
//	    bindtest.ExpectAbsent(t, bindtest.Render(h, b, src))
//
//	    src.Emit(1)
//	    h.Settle()
//	    bindtest.ExpectValue(t, bindtest.Render(h, b, src), 1)
//	}
//
// # Choosing the background dispatcher
//
// Bindings created with sched.Inline establish their subscription
// synchronously inside Render, which keeps tests deterministic. To
// exercise the production path (subscription on a separate goroutine),
// use sched.Go and wait with Script.WaitSubscribed before emitting.
package bindtest
