//go:build !tinygo

package hal

import "time"

const hostTickInterval = time.Millisecond

// hostTime converts real elapsed time into the tick stream. The runner
// calls step once per frame; step fans that out into however many 1ms
// ticks actually passed, so uptime tracks the wall even when frames stall.
type hostTime struct {
	ch  chan uint64
	seq uint64

	last time.Time
	acc  time.Duration
}

func newHostTime() *hostTime {
	return &hostTime{ch: make(chan uint64, 1024)}
}

func (t *hostTime) Ticks() <-chan uint64 { return t.ch }

func (t *hostTime) TickInterval() time.Duration { return hostTickInterval }

func (t *hostTime) step(n uint64) {
	now := time.Now()
	if t.last.IsZero() {
		t.last = now
		t.acc = 0
		t.stepN(n)
		return
	}

	t.acc += now.Sub(t.last)
	t.last = now

	ticks := uint64(t.acc / hostTickInterval)
	if ticks == 0 {
		return
	}
	t.acc = t.acc % hostTickInterval
	t.stepN(ticks)
}

func (t *hostTime) stepN(n uint64) {
	for i := uint64(0); i < n; i++ {
		t.seq++
		select {
		case t.ch <- t.seq:
		default:
		}
	}
}
