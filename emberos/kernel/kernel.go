package kernel

import (
	"errors"
	"time"
)

// ErrRebootRequested is returned by Step once a requested reboot's grace
// delay has elapsed. It is the loop's only normal exit path.
var ErrRebootRequested = errors.New("reboot requested")

const postSlots = 32

// Loop is the cooperative session loop: one Step is one iteration.
//
// Per iteration it advances the uptime clock, transfers externally posted
// events, drains the event queue, performs at most one unit of input work,
// and ticks the background task table. Pacing (the short sleep between
// iterations) belongs to the platform runner that calls Step.
type Loop struct {
	Events Queue
	Tasks  Table

	// PollByte returns one pending input byte, if any. Non-blocking.
	PollByte func() (byte, bool)
	// OnByte feeds one byte of session input (line assembly + dispatch).
	OnByte func(b byte)
	// OnEvent handles one drained event.
	OnEvent func(Event)

	ticks  <-chan uint64
	tick   time.Duration
	uptime time.Duration

	post chan Event

	rebootArmed bool
	rebootAt    time.Duration
}

// NewLoop wires a loop to a platform tick stream. tick is the duration of
// one tick sequence unit.
func NewLoop(ticks <-chan uint64, tick time.Duration) *Loop {
	if tick <= 0 {
		tick = time.Millisecond
	}
	return &Loop{
		ticks: ticks,
		tick:  tick,
		post:  make(chan Event, postSlots),
	}
}

// Uptime reports time since boot as seen by the loop.
func (l *Loop) Uptime() time.Duration { return l.uptime }

// Post hands an event over from another goroutine. It never blocks; it
// reports false when the hand-off buffer is full and the event was dropped.
func (l *Loop) Post(ev Event) bool {
	select {
	case l.post <- ev:
		return true
	default:
		return false
	}
}

// RequestReboot arms the reboot exit path; Step returns ErrRebootRequested
// once grace has elapsed, giving pending output time to drain.
func (l *Loop) RequestReboot(grace time.Duration) {
	l.rebootArmed = true
	l.rebootAt = l.uptime + grace
}

// RebootPending reports whether a reboot has been requested.
func (l *Loop) RebootPending() bool { return l.rebootArmed }

// Step runs one loop iteration.
func (l *Loop) Step() error {
	l.advanceClock()

	// Posted events become queued events in loop context, keeping the
	// queue single-writer.
transfer:
	for {
		select {
		case ev := <-l.post:
			l.Events.Push(ev)
		default:
			break transfer
		}
	}

	for {
		ev, ok := l.Events.Pop()
		if !ok {
			break
		}
		if l.OnEvent != nil {
			l.OnEvent(ev)
		}
	}

	if l.PollByte != nil {
		if b, ok := l.PollByte(); ok && l.OnByte != nil {
			l.OnByte(b)
		}
	}

	l.Tasks.TickAll()

	if l.rebootArmed && l.uptime >= l.rebootAt {
		return ErrRebootRequested
	}
	return nil
}

// PumpTicks advances the clock and runs one tick sweep without touching
// input or events. Blocking prompts call it between keystrokes so
// background tasks keep running.
func (l *Loop) PumpTicks() {
	l.advanceClock()
	l.Tasks.TickAll()
}

func (l *Loop) advanceClock() {
	if l.ticks == nil {
		return
	}
	for {
		select {
		case seq := <-l.ticks:
			l.uptime = time.Duration(seq) * l.tick
		default:
			return
		}
	}
}
