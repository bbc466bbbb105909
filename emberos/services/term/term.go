// Package term renders console output on a framebuffer terminal. It is
// the synchronous sink for platforms with a display; headless builds and
// plain serial never construct it.
package term

import (
	"bytes"

	"ember/hal"

	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

var (
	cursorBack   = []byte("\x1b[D")
	eraseDisplay = []byte("\x1b[2J")
)

// Service is an io.Writer sink painting into a framebuffer terminal.
// Writes render into the backing buffer; Flush presents the frame when
// something changed since the last present.
type Service struct {
	fb    hal.Framebuffer
	d     *fbDisplay
	t     *tinyterm.Terminal
	dirty bool
}

// New returns a terminal over disp's framebuffer, or nil when the
// platform has none.
func New(disp hal.Display) *Service {
	if disp == nil {
		return nil
	}
	fb := disp.Framebuffer()
	if fb == nil {
		return nil
	}
	s := &Service{fb: fb, d: newFBDisplay(fb)}
	s.reset()
	return s
}

// Write renders p. Backspace becomes a cursor-back sequence; the visual
// erase is completed by the space that follows it in "\b \b". A full
// erase-display sequence resets the terminal.
func (s *Service) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		if p[0] == 0x1b && bytes.HasPrefix(p, eraseDisplay) {
			s.reset()
			p = p[len(eraseDisplay):]
			continue
		}
		b := p[0]
		p = p[1:]
		if b == '\b' {
			_, _ = s.t.Write(cursorBack)
			continue
		}
		_ = s.t.WriteByte(b)
	}
	s.dirty = true
	return n, nil
}

// Flush presents the frame if anything changed. The platform runner
// calls it once per frame tick.
func (s *Service) Flush() {
	if !s.dirty {
		return
	}
	s.t.Display()
	s.dirty = false
}

func (s *Service) reset() {
	s.t = tinyterm.NewTerminal(s.d)
	s.t.Configure(&tinyterm.Config{
		Font:              &proggy.TinySZ8pt7b,
		FontHeight:        10,
		FontOffset:        6,
		UseSoftwareScroll: true,
	})
	s.fb.ClearRGB(0, 0, 0)
	_ = s.fb.Present()
}
