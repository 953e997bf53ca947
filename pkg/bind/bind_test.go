package bind_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vango-dev/livebind/pkg/bind"
	"github.com/vango-dev/livebind/pkg/bindtest"
	"github.com/vango-dev/livebind/pkg/sched"
	"github.com/vango-dev/livebind/pkg/stream"
)

func TestRenderNilStaysUnbound(t *testing.T) {
	h := bindtest.New(t)
	src := bindtest.NewScript[int]()
	b := bind.New[int](h.Loop, sched.Inline)

	snap := bindtest.Render(h, b, nil)
	bindtest.ExpectAbsent(t, snap)

	if src.Subscribes() != 0 {
		t.Errorf("render(nil) must not subscribe, got %d subscriptions", src.Subscribes())
	}

	h.Run(func() {
		if b.Bound() {
			t.Error("binding should remain unbound after render(nil)")
		}
	})
}

func TestFirstRenderAbsentThenValue(t *testing.T) {
	h := bindtest.New(t)
	src := bindtest.NewScript[int]()
	b := bind.New[int](h.Loop, sched.Inline)

	// First render binds but the cache is still empty.
	bindtest.ExpectAbsent(t, bindtest.Render(h, b, src))
	if src.Subscribes() != 1 {
		t.Fatalf("expected 1 subscription, got %d", src.Subscribes())
	}

	// The value is visible only after the loop processed the delivery.
	src.Emit(7)
	h.Settle()

	snap := bindtest.Render(h, b, src)
	bindtest.ExpectValue(t, snap, 7)
	if !snap.Changed {
		t.Error("first read of a new value must be marked changed")
	}
}

func TestUnchangedReadIsNotRewrapped(t *testing.T) {
	h := bindtest.New(t)
	src := bindtest.NewScript[string]()
	b := bind.New[string](h.Loop, sched.Inline)

	bindtest.Render(h, b, src)
	src.Emit("a")
	h.Settle()

	first := bindtest.Render(h, b, src)
	second := bindtest.Render(h, b, src)

	bindtest.ExpectValue(t, first, "a")
	bindtest.ExpectValue(t, second, "a")
	if !first.Changed {
		t.Error("first read should be marked changed")
	}
	if second.Changed {
		t.Error("repeat read without a new emission must not be marked changed")
	}
}

func TestEmissionSequence(t *testing.T) {
	h := bindtest.New(t)
	src := bindtest.NewScript[int]()
	b := bind.New[int](h.Loop, sched.Inline)

	// absent, then 1, then 2, each visible only after the loop settles.
	bindtest.ExpectAbsent(t, bindtest.Render(h, b, src))

	src.Emit(1)
	h.Settle()
	bindtest.ExpectValue(t, bindtest.Render(h, b, src), 1)

	src.Emit(2)
	h.Settle()
	snap := bindtest.Render(h, b, src)
	bindtest.ExpectValue(t, snap, 2)
	if !snap.Changed {
		t.Error("second value should be marked changed")
	}
}

func TestRebindCancelsOldProducer(t *testing.T) {
	h := bindtest.New(t)
	src1 := bindtest.NewScript[int]()
	src2 := bindtest.NewScript[int]()
	b := bind.New[int](h.Loop, sched.Inline)

	bindtest.Render(h, b, src1)
	src1.Emit(1)
	h.Settle()
	bindtest.ExpectValue(t, bindtest.Render(h, b, src1), 1)

	// Rebinding clears cached state and swaps the registration.
	snap := bindtest.Render(h, b, src2)
	h.Settle()
	bindtest.ExpectAbsent(t, snap)
	if src1.Cancels() != 1 {
		t.Errorf("old producer should be cancelled on rebind, got %d cancels", src1.Cancels())
	}
	if src2.Subscribes() != 1 {
		t.Errorf("new producer should be subscribed, got %d subscriptions", src2.Subscribes())
	}

	// A late emission from the old producer must not corrupt the new
	// binding's state.
	src1.EmitStale(99)
	h.Settle()
	bindtest.ExpectAbsent(t, bindtest.Render(h, b, src2))

	src2.Emit(2)
	h.Settle()
	bindtest.ExpectValue(t, bindtest.Render(h, b, src2), 2)
}

func TestTeardownClearsState(t *testing.T) {
	h := bindtest.New(t)
	src := bindtest.NewScript[int]()
	b := bind.New[int](h.Loop, sched.Inline)

	bindtest.Render(h, b, src)
	src.Emit(5)
	h.Settle()
	bindtest.ExpectValue(t, bindtest.Render(h, b, src), 5)

	bindtest.Teardown(h, b)
	h.Settle()
	if src.Cancels() != 1 {
		t.Errorf("teardown should cancel the registration, got %d cancels", src.Cancels())
	}

	// A late emission through the cancelled registration is dropped.
	src.EmitStale(6)
	h.Settle()

	// Subsequent render behaves as the initial unbound case.
	snap := bindtest.Render(h, b, src)
	bindtest.ExpectAbsent(t, snap)
	if src.Subscribes() != 2 {
		t.Errorf("re-render after teardown should resubscribe, got %d subscriptions", src.Subscribes())
	}

	src.Emit(7)
	h.Settle()
	bindtest.ExpectValue(t, bindtest.Render(h, b, src), 7)
}

func TestTeardownIdempotent(t *testing.T) {
	h := bindtest.New(t)
	b := bind.New[int](h.Loop, sched.Inline)

	// Teardown on an unbound binding is a no-op.
	bindtest.Teardown(h, b)
	bindtest.Teardown(h, b)
	bindtest.ExpectAbsent(t, bindtest.Render(h, b, nil))
}

func TestDeliveryFailureTearsDownAndPanics(t *testing.T) {
	h := bindtest.New(t)
	src := bindtest.NewScript[int]()
	b := bind.New[int](h.Loop, sched.Inline)

	bindtest.Render(h, b, src)

	boom := errors.New("feed broke")
	src.Fail(boom)
	h.Settle()

	panics := h.Panics()
	if len(panics) != 1 {
		t.Fatalf("expected 1 loop panic, got %d", len(panics))
	}
	de, ok := panics[0].(*bind.DeliveryError)
	if !ok {
		t.Fatalf("expected *bind.DeliveryError, got %T", panics[0])
	}
	if !errors.Is(de, boom) {
		t.Errorf("delivery error should wrap the producer error, got %v", de)
	}

	// The binding tore itself down before re-raising.
	h.Run(func() {
		if b.Bound() {
			t.Error("binding should be unbound after a delivery failure")
		}
	})
	bindtest.ExpectAbsent(t, bindtest.Render(h, b, nil))
}

func TestInvalidateFiresPerDelivery(t *testing.T) {
	h := bindtest.New(t)
	src := bindtest.NewScript[int]()

	invalidations := 0
	b := bind.New[int](h.Loop, sched.Inline,
		bind.WithInvalidate(func() { invalidations++ }))

	bindtest.Render(h, b, src)

	src.Emit(1)
	src.Emit(2)
	h.Settle()

	h.Run(func() {
		if invalidations != 2 {
			t.Errorf("expected 2 invalidations, got %d", invalidations)
		}
	})
}

func TestBackgroundSubscription(t *testing.T) {
	// Production path: the subscription is established through sched.Go
	// on its own goroutine, invisible to the loop's idle accounting.
	h := bindtest.New(t)
	src := bindtest.NewScript[int]()
	b := bind.New[int](h.Loop, sched.Go)

	bindtest.ExpectAbsent(t, bindtest.Render(h, b, src))

	if !src.WaitSubscribed(1) {
		t.Fatal("subscription was never established")
	}

	src.Emit(42)
	h.Settle()
	bindtest.ExpectValue(t, bindtest.Render(h, b, src), 42)

	h.Settle() // let the attach land before tearing down
	bindtest.Teardown(h, b)
	h.Settle()
	if src.Cancels() != 1 {
		t.Errorf("teardown should cancel the background registration, got %d cancels", src.Cancels())
	}
}

func TestEndlessProducerDoesNotBlockIdle(t *testing.T) {
	// The core contract: a never-completing producer keeps emitting,
	// yet the tracked loop reaches idle between deliveries, so hosts
	// waiting on the loop (e2e runners) are never stuck.
	h := bindtest.New(t)
	b := bind.New[uint64](h.Loop, sched.Go)
	ticks := stream.Ticker(10 * time.Millisecond)

	bindtest.Render(h, b, ticks)

	for i := 0; i < 5; i++ {
		h.Settle()
		time.Sleep(5 * time.Millisecond)
	}

	// And values still flow.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if snap := bindtest.Render(h, b, ticks); snap.Ok {
			if snap.Value == 0 {
				t.Error("tick counter should start at 1")
			}
			bindtest.Teardown(h, b)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no tick was ever delivered")
}

func TestTeardownDuringSubscriptionEstablishment(t *testing.T) {
	// A teardown racing the background subscribe must still cancel the
	// registration once its handle arrives on the loop.
	h := bindtest.New(t)
	src := bindtest.NewScript[int]()

	// Manual background dispatcher: hold the subscribe until the test
	// says go.
	release := make(chan struct{})
	bg := sched.DispatcherFunc(func(fn func()) {
		go func() {
			<-release
			fn()
		}()
	})

	b := bind.New[int](h.Loop, bg)
	bindtest.Render(h, b, src)
	bindtest.Teardown(h, b)

	close(release)

	// The stranded registration is cancelled by the attach guard once
	// its handle reaches the loop.
	deadline := time.Now().Add(5 * time.Second)
	for src.Cancels() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if src.Subscribes() != 1 || src.Cancels() != 1 {
		t.Errorf("expected stranded registration to be cancelled, subscribes=%d cancels=%d",
			src.Subscribes(), src.Cancels())
	}
}
