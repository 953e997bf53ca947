// Package bind connects asynchronous producers to a template-style
// render pass without blocking host idle detection.
//
// A Binding subscribes to a stream.Source, caches its most recent
// emission, and hands that cached value to every Render call. The
// subscription is established through an untracked dispatcher (normally
// sched.Go), so an endlessly emitting producer — a ticker, a live feed —
// never keeps the tracked loop from reaching idle. Each delivered value
// is re-dispatched onto the tracked loop before any binding state is
// touched, so renders stay synchronized with the host's own scheduling.
//
// Typical use, with the loop owning both the binding and the render
// passes:
//
//	loop := sched.NewLoop()
//	b := bind.New[uint64](loop, sched.Go, bind.WithInvalidate(requestRender))
//
//	// on the loop, once per render pass:
//	snap := b.Render(ticks)
//	if snap.Ok {
//	    draw(snap.Value)
//	}
//
//	// on the loop, when the owning view is destroyed:
//	b.Teardown()
//
// A Binding is loop-confined: Render, Teardown, and every internal state
// mutation run on the tracked loop, single-threaded and cooperative.
// There is no internal locking and no support for calling Render from
// arbitrary goroutines.
//
// Producer errors are not recovered. A failed delivery tears the binding
// down and panics on the tracked loop with a *DeliveryError, surfacing
// through the loop's panic handler.
package bind
