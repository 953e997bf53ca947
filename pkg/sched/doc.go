// Package sched provides the two scheduling contexts used by livebind.
//
// A Loop is a tracked context: a serial event loop that counts its
// outstanding work and can report when it has gone idle. Test runners and
// host frameworks wait on Loop.WaitIdle to know the application has
// settled.
//
// Go is the untracked context: work dispatched through it runs on its own
// goroutine and is invisible to every Loop's idle accounting. Long-lived
// listening (a subscription to a producer that never completes) belongs
// here, so that it cannot keep a Loop from ever reaching idle. Each
// delivered value is then re-dispatched onto the Loop before touching
// shared state.
//
// Example:
//
//	loop := sched.NewLoop(sched.WithName("session"))
//	defer loop.Stop(context.Background())
//
//	sched.Go.Dispatch(func() {
//	    v := slowFetch()
//	    loop.Dispatch(func() { cache.Set(v) })
//	})
//
//	loop.WaitIdle(ctx) // returns once the cache write has run
package sched
