//go:build !tinygo

package hal

import (
	"io"
	"sync"
)

const hostSerialBacklog = 256

// hostSerial adapts stdin/stdout to the non-blocking Serial contract. A
// reader goroutine pumps stdin into a channel; ReadByte drains it. Window
// keystrokes are injected into the same channel so both input paths feed
// one console.
type hostSerial struct {
	mu sync.Mutex
	w  io.Writer
	in chan byte
}

func newHostSerial(r io.Reader, w io.Writer) *hostSerial {
	s := &hostSerial{w: w, in: make(chan byte, hostSerialBacklog)}
	if r != nil {
		go s.pump(r)
	}
	return s
}

func (s *hostSerial) pump(r io.Reader) {
	var buf [64]byte
	for {
		n, err := r.Read(buf[:])
		for _, b := range buf[:n] {
			s.inject(b)
		}
		if err != nil {
			return
		}
	}
}

func (s *hostSerial) inject(b byte) {
	select {
	case s.in <- b:
	default:
		// Input faster than the loop drains; drop rather than block.
	}
}

func (s *hostSerial) injectString(str string) {
	for i := 0; i < len(str); i++ {
		s.inject(str[i])
	}
}

func (s *hostSerial) ReadByte() (byte, bool) {
	select {
	case b := <-s.in:
		return b, true
	default:
		return 0, false
	}
}

func (s *hostSerial) Write(p []byte) (int, error) {
	if s.w == nil {
		return 0, ErrNotImplemented
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
