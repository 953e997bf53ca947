package bindtest

import (
	"errors"
	"testing"
)

func TestScriptTracksRegistrations(t *testing.T) {
	s := NewScript[int]()

	var got []int
	cancel := s.Subscribe(func(v int) { got = append(got, v) }, nil)

	if s.Subscribes() != 1 || s.Active() != 1 {
		t.Fatalf("expected one active registration, subscribes=%d active=%d",
			s.Subscribes(), s.Active())
	}

	s.Emit(1)
	s.Emit(2)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("expected [1 2], got %v", got)
	}

	cancel()
	cancel() // idempotent
	if s.Cancels() != 1 || s.Active() != 0 {
		t.Errorf("expected one cancelled registration, cancels=%d active=%d",
			s.Cancels(), s.Active())
	}

	// Emit skips cancelled registrations; EmitStale does not.
	s.Emit(3)
	if len(got) != 2 {
		t.Errorf("emit after cancel delivered: %v", got)
	}
	s.EmitStale(4)
	if len(got) != 3 || got[2] != 4 {
		t.Errorf("EmitStale should reach cancelled registrations, got %v", got)
	}
}

func TestHarnessRecordsPanics(t *testing.T) {
	h := New(t)

	boom := errors.New("boom")
	h.Loop.Dispatch(func() { panic(boom) })
	h.Settle()

	panics := h.Panics()
	if len(panics) != 1 || panics[0] != any(boom) {
		t.Errorf("expected recorded panic, got %v", panics)
	}

	// The loop keeps serving the rest of the test.
	ran := false
	h.Run(func() { ran = true })
	if !ran {
		t.Error("loop stopped after recorded panic")
	}
}
