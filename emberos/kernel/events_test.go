package kernel

import (
	"bytes"
	"testing"
)

func TestQueueFIFO(t *testing.T) {
	var q Queue
	q.Push(NewEvent(1, []byte("a")))
	q.Push(NewEvent(2, []byte("b")))

	ev, ok := q.Pop()
	if !ok || ev.Kind != 1 || !bytes.Equal(ev.Payload(), []byte("a")) {
		t.Fatalf("first pop = kind %d %q ok=%v; want 1 \"a\" true", ev.Kind, ev.Payload(), ok)
	}
	ev, ok = q.Pop()
	if !ok || ev.Kind != 2 {
		t.Fatalf("second pop = kind %d ok=%v; want 2 true", ev.Kind, ok)
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("pop on empty queue = true; want false")
	}
}

func TestQueueFullDropsTyped(t *testing.T) {
	var q Queue
	for i := 0; i < q.Cap(); i++ {
		if r := q.Push(NewEvent(uint16(i), nil)); r != PushOK {
			t.Fatalf("push %d = %v; want %v", i, r, PushOK)
		}
	}

	if r := q.Push(NewEvent(99, nil)); r != PushErrFull {
		t.Fatalf("push on full queue = %v; want %v", r, PushErrFull)
	}
	if got := q.Dropped(); got != 1 {
		t.Fatalf("Dropped = %d; want 1", got)
	}

	// The queued events survive intact, the rejected one is gone.
	for i := 0; i < q.Cap(); i++ {
		ev, ok := q.Pop()
		if !ok || ev.Kind != uint16(i) {
			t.Fatalf("pop %d = kind %d ok=%v; want kind %d", i, ev.Kind, ok, i)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatalf("dropped event was queued anyway")
	}
}

func TestQueueWraps(t *testing.T) {
	var q Queue
	for round := 0; round < 10; round++ {
		for i := 0; i < 5; i++ {
			if r := q.Push(NewEvent(uint16(round*5+i), nil)); r != PushOK {
				t.Fatalf("round %d push %d = %v; want %v", round, i, r, PushOK)
			}
		}
		for i := 0; i < 5; i++ {
			ev, ok := q.Pop()
			if !ok || ev.Kind != uint16(round*5+i) {
				t.Fatalf("round %d pop %d = kind %d ok=%v", round, i, ev.Kind, ok)
			}
		}
	}
}

func TestNewEventTruncates(t *testing.T) {
	long := make([]byte, MaxEventBytes+40)
	for i := range long {
		long[i] = byte('x')
	}
	ev := NewEvent(7, long)
	if int(ev.Len) != MaxEventBytes {
		t.Fatalf("Len = %d; want %d", ev.Len, MaxEventBytes)
	}
	if len(ev.Payload()) != MaxEventBytes {
		t.Fatalf("Payload len = %d; want %d", len(ev.Payload()), MaxEventBytes)
	}
}
