package stream

import "sync"

// Of returns a source that emits the given values in order and then
// completes. Delivery happens on a separate goroutine per subscription.
func Of[T any](values ...T) Source[T] {
	return &ofSource[T]{values: values}
}

type ofSource[T any] struct {
	values []T
}

func (s *ofSource[T]) Subscribe(next func(T), fail func(error)) func() {
	done := make(chan struct{})

	go func() {
		for _, v := range s.values {
			select {
			case <-done:
				return
			default:
			}
			next(v)
		}
	}()

	return cancelOnce(done)
}

// FromChan returns a source that emits every value received from ch.
// The subscription ends when ch is closed or the registration is
// cancelled. Multiple subscriptions compete for the channel's values.
func FromChan[T any](ch <-chan T) Source[T] {
	return &chanSource[T]{ch: ch}
}

type chanSource[T any] struct {
	ch <-chan T
}

func (s *chanSource[T]) Subscribe(next func(T), fail func(error)) func() {
	done := make(chan struct{})

	go func() {
		for {
			select {
			case v, ok := <-s.ch:
				if !ok {
					return
				}
				// Re-check after the receive: a cancel racing the
				// value must win.
				select {
				case <-done:
					return
				default:
				}
				next(v)
			case <-done:
				return
			}
		}
	}()

	return cancelOnce(done)
}

// Map returns a source that applies fn to every value emitted by src.
// Errors pass through unchanged.
func Map[T, U any](src Source[T], fn func(T) U) Source[U] {
	return &mapSource[T, U]{src: src, fn: fn}
}

type mapSource[T, U any] struct {
	src Source[T]
	fn  func(T) U
}

func (s *mapSource[T, U]) Subscribe(next func(U), fail func(error)) func() {
	return s.src.Subscribe(func(v T) { next(s.fn(v)) }, fail)
}

// cancelOnce returns an idempotent cancel function that closes done.
func cancelOnce(done chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
