package stream

import "context"

// Future returns a promise-like source: each subscription runs fn once
// on its own goroutine and delivers exactly one value or one error,
// then completes. Cancelling the registration cancels fn's context and
// suppresses delivery.
//
// Example:
//
//	user := stream.Future(func(ctx context.Context) (*User, error) {
//	    return db.Users.FindByID(ctx, id)
//	})
func Future[T any](fn func(ctx context.Context) (T, error)) Source[T] {
	return &futureSource[T]{fn: fn}
}

type futureSource[T any] struct {
	fn func(ctx context.Context) (T, error)
}

func (s *futureSource[T]) Subscribe(next func(T), fail func(error)) func() {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		v, err := s.fn(ctx)
		if ctx.Err() != nil {
			// Cancelled while running; the result is stale.
			return
		}
		if err != nil {
			fail(err)
			return
		}
		next(v)
	}()

	return func() { cancel() }
}
