package stream

import "time"

// Ticker returns a source that emits a monotonically increasing tick
// count, starting at 1, every interval d. It never completes; the only
// way to stop delivery is to cancel the registration.
//
// A Ticker is the canonical endless producer: bound through package
// bind, it keeps emitting without ever holding the tracked loop busy
// between ticks.
func Ticker(d time.Duration) Source[uint64] {
	return &tickerSource{interval: d}
}

type tickerSource struct {
	interval time.Duration
}

func (s *tickerSource) Subscribe(next func(uint64), fail func(error)) func() {
	done := make(chan struct{})

	go func() {
		t := time.NewTicker(s.interval)
		defer t.Stop()

		var n uint64
		for {
			select {
			case <-t.C:
				select {
				case <-done:
					return
				default:
				}
				n++
				next(n)
			case <-done:
				return
			}
		}
	}()

	return cancelOnce(done)
}
