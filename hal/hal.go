package hal

import (
	"errors"
	"io"
	"time"
)

var ErrNotImplemented = errors.New("not implemented")

// Serial is the interactive console transport: raw bytes in, text out.
type Serial interface {
	io.Writer
	// ReadByte returns the next pending input byte, if any. It never blocks.
	ReadByte() (byte, bool)
}

// LED is a minimal output pin abstraction.
type LED interface {
	High()
	Low()
}

// FileStore is small-file persistence for settings.
type FileStore interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
	Remove(name string) error
}

// Time provides a base tick stream.
//
// Ticks carries absolute tick sequence numbers at TickInterval spacing;
// higher-level timekeeping lives in userland.
type Time interface {
	Ticks() <-chan uint64
	TickInterval() time.Duration
}

// ProbeResult classifies a TCP reachability check.
type ProbeResult uint8

const (
	ProbeError ProbeResult = iota
	ProbeOpen
	ProbeClosed
	ProbeTimeout
)

func (r ProbeResult) String() string {
	switch r {
	case ProbeOpen:
		return "open"
	case ProbeClosed:
		return "closed"
	case ProbeTimeout:
		return "timeout"
	default:
		return "error"
	}
}

// RemoteConn is an accepted remote console connection.
type RemoteConn interface {
	io.Writer
	// ReadByte returns the next pending byte from the peer. It never blocks.
	ReadByte() (byte, bool)
	// Closed reports whether the peer has gone away.
	Closed() bool
	Close() error
}

// RemoteListener hands out at most one connection per Poll call.
type RemoteListener interface {
	// Poll returns a newly accepted connection, if one is pending.
	Poll() (RemoteConn, bool)
	Close() error
}

// Network is the TCP surface the OS builds its services on.
type Network interface {
	// Probe reports whether host:port accepts TCP connections within timeout.
	Probe(host string, port uint16, timeout time.Duration) ProbeResult
	// Dial opens a TCP connection for client protocols.
	Dial(host string, port uint16, timeout time.Duration) (io.ReadWriteCloser, error)
	// Listen starts accepting TCP connections on port.
	Listen(port uint16) (RemoteListener, error)
}

// PixelFormat defines the framebuffer pixel encoding.
type PixelFormat uint8

const (
	// PixelFormatRGB565 is 16bpp: rrrrrggggggbbbbb.
	PixelFormatRGB565 PixelFormat = iota + 1
)

// Framebuffer is a simple pixel buffer plus a "present" hook.
type Framebuffer interface {
	Width() int
	Height() int
	Format() PixelFormat
	StrideBytes() int
	Buffer() []byte
	ClearRGB(r, g, b uint8)
	Present() error
}

// KeyCode is a minimal key identifier.
type KeyCode uint16

const (
	KeyUnknown KeyCode = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyEnter
	KeyEscape
	KeyBackspace
	KeyTab
	KeyDelete
	KeyHome
	KeyEnd
)

// KeyEvent is a keyboard event.
type KeyEvent struct {
	Code  KeyCode
	Press bool
	Rune  rune
}

// Keyboard provides key events (best-effort on each platform).
type Keyboard interface {
	Events() <-chan KeyEvent
}

// Display provides access to the framebuffer (if available).
type Display interface {
	Framebuffer() Framebuffer
}

// HAL is the only contact point between the OS core and the platform.
// Optional capabilities (Display, Network) may return nil.
type HAL interface {
	Serial() Serial
	LED() LED
	Store() FileStore
	Time() Time
	Network() Network
	Display() Display
	// Heartbeat is called once per loop iteration. Platforms with a
	// watchdog feed it here.
	Heartbeat()
	// Reset restarts the platform. On hardware it does not return.
	Reset()
}
