package console

import "strings"

// defaultRingLines bounds a Ring constructed with capacity <= 0.
const defaultRingLines = 64

// Ring buffers whole output lines up to a fixed capacity, evicting the
// oldest line when full. It implements io.Writer; a partial line (no
// trailing newline yet) is held back until completed.
//
// Writers and readers must share one goroutine; the loop owns it.
type Ring struct {
	lines   []string
	max     int
	partial strings.Builder
	evicted uint32
}

// NewRing returns a ring holding at most max lines.
func NewRing(max int) *Ring {
	if max <= 0 {
		max = defaultRingLines
	}
	return &Ring{max: max}
}

func (r *Ring) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == '\r' {
			continue
		}
		if b == '\n' {
			r.push(r.partial.String())
			r.partial.Reset()
			continue
		}
		r.partial.WriteByte(b)
	}
	return len(p), nil
}

func (r *Ring) push(line string) {
	if len(r.lines) >= r.max {
		excess := len(r.lines) - r.max + 1
		copy(r.lines, r.lines[excess:])
		r.lines = r.lines[:r.max-1]
		r.evicted += uint32(excess)
	}
	r.lines = append(r.lines, line)
}

// Drain returns and removes all buffered lines in arrival order. The
// current partial line stays buffered.
func (r *Ring) Drain() []string {
	out := r.lines
	r.lines = nil
	return out
}

// Lines returns a copy of the buffered lines without removing them.
func (r *Ring) Lines() []string {
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Len reports the number of buffered complete lines.
func (r *Ring) Len() int { return len(r.lines) }

// Cap reports the fixed line capacity.
func (r *Ring) Cap() int { return r.max }

// Evicted reports how many lines were dropped to make room.
func (r *Ring) Evicted() uint32 { return r.evicted }
