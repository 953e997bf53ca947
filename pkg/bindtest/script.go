package bindtest

import (
	"sync"
	"time"
)

// Script is a producer driven explicitly by the test: the test decides
// when values are emitted, when an error fires, and can assert on how
// many registrations were opened and cancelled.
type Script[T any] struct {
	mu         sync.Mutex
	subs       []*scriptSub[T]
	subscribes int
	cancels    int
}

type scriptSub[T any] struct {
	next      func(T)
	fail      func(error)
	cancelled bool
}

// NewScript creates an empty Script producer.
func NewScript[T any]() *Script[T] {
	return &Script[T]{}
}

// Subscribe implements stream.Source.
func (s *Script[T]) Subscribe(next func(T), fail func(error)) func() {
	s.mu.Lock()
	sub := &scriptSub[T]{next: next, fail: fail}
	s.subs = append(s.subs, sub)
	s.subscribes++
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		if !sub.cancelled {
			sub.cancelled = true
			s.cancels++
		}
		s.mu.Unlock()
	}
}

// Emit delivers v synchronously to every active registration.
func (s *Script[T]) Emit(v T) {
	for _, sub := range s.active() {
		sub.next(v)
	}
}

// Fail delivers err synchronously to every active registration.
func (s *Script[T]) Fail(err error) {
	for _, sub := range s.active() {
		sub.fail(err)
	}
}

// EmitStale delivers v through every registration, including cancelled
// ones. It simulates a late delivery racing its own cancellation, which
// bindings must drop via their staleness guard.
func (s *Script[T]) EmitStale(v T) {
	s.mu.Lock()
	subs := append([]*scriptSub[T](nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.next(v)
	}
}

// Active returns the number of live registrations.
func (s *Script[T]) Active() int {
	return len(s.active())
}

// Subscribes returns the total number of Subscribe calls.
func (s *Script[T]) Subscribes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribes
}

// Cancels returns the total number of cancelled registrations.
func (s *Script[T]) Cancels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancels
}

// WaitSubscribed blocks until at least n registrations are active.
// Needed when the binding's background dispatcher is sched.Go, where
// the subscription is established on a separate goroutine.
func (s *Script[T]) WaitSubscribed(n int) bool {
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if s.Active() >= n {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func (s *Script[T]) active() []*scriptSub[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*scriptSub[T], 0, len(s.subs))
	for _, sub := range s.subs {
		if !sub.cancelled {
			out = append(out, sub)
		}
	}
	return out
}
