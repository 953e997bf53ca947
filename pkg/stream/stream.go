// Package stream defines the producer abstraction consumed by livebind
// bindings, plus adapters for common producer shapes: channels, tickers,
// one-shot futures, and fixed value sequences.
//
// A Source emits zero or more values over time to a registered handler.
// Sources make no promises about which goroutine delivers values; moving
// deliveries onto a tracked scheduling context is the consumer's job
// (see package bind).
package stream

// Source is an asynchronous value producer.
//
// Subscribe registers next for value delivery and fail for a terminal
// error, and returns a cancel function. Cancel is idempotent; after it
// returns, the registration stops delivering (a delivery already in
// flight on another goroutine may still land — consumers guard against
// that with their own staleness checks).
//
// Implementations should use pointer receivers so that two Subscribe
// calls against the same producer compare equal as interface values;
// bindings rely on that identity to detect rebinding.
type Source[T any] interface {
	Subscribe(next func(T), fail func(error)) (cancel func())
}
