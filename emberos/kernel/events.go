package kernel

const (
	eventSlots = 32

	// MaxEventBytes is the maximum payload size for queued events.
	//
	// Larger transfers do not exist in this system; command lines are already
	// bounded by the line buffer.
	MaxEventBytes = 128
)

// Event is a fixed-size envelope delivered to the session loop.
//
// Producers on other goroutines must not touch the queue directly; they hand
// events over through a channel and the loop transfers them in its own step.
type Event struct {
	Kind uint16
	Len  uint16
	Data [MaxEventBytes]byte
}

// NewEvent builds an event from a payload, truncating at MaxEventBytes.
func NewEvent(kind uint16, payload []byte) Event {
	var ev Event
	ev.Kind = kind
	if len(payload) > MaxEventBytes {
		payload = payload[:MaxEventBytes]
	}
	ev.Len = uint16(copy(ev.Data[:], payload))
	return ev
}

// Payload returns the valid portion of the event data.
func (ev *Event) Payload() []byte {
	if int(ev.Len) > len(ev.Data) {
		return ev.Data[:]
	}
	return ev.Data[:ev.Len]
}

// PushResult describes the outcome of an event push.
type PushResult uint8

const (
	PushOK PushResult = iota
	PushErrFull
)

func (r PushResult) String() string {
	switch r {
	case PushOK:
		return "ok"
	case PushErrFull:
		return "event queue full"
	default:
		return "unknown"
	}
}

// Queue is a fixed-capacity event ring drained synchronously by the loop.
type Queue struct {
	head    uint8
	tail    uint8
	slots   [eventSlots]Event
	dropped uint32
}

// Push appends an event. A full queue drops the event and counts the drop.
func (q *Queue) Push(ev Event) PushResult {
	if q.head-q.tail >= eventSlots {
		q.dropped++
		return PushErrFull
	}
	q.slots[q.head%eventSlots] = ev
	q.head++
	return PushOK
}

// Pop removes the oldest event, if any.
func (q *Queue) Pop() (Event, bool) {
	if q.tail == q.head {
		return Event{}, false
	}
	ev := q.slots[q.tail%eventSlots]
	q.tail++
	return ev, true
}

// Len reports the number of queued events.
func (q *Queue) Len() int {
	return int(q.head - q.tail)
}

// Dropped reports how many events were rejected because the queue was full.
func (q *Queue) Dropped() uint32 { return q.dropped }

// Cap reports the fixed queue capacity.
func (q *Queue) Cap() int { return eventSlots }
