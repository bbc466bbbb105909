package shell

import "io"

// LineCap bounds the line assembly buffer. A returned line is at most
// LineCap-1 bytes; input beyond that is dropped, not buffered.
const LineCap = 128

// Echo selects how the reader reflects input back at the terminal.
type Echo uint8

const (
	// EchoOn reflects printable bytes verbatim.
	EchoOn Echo = iota
	// EchoOff reflects nothing.
	EchoOff
	// EchoMasked reflects a mask character instead of the byte (secrets).
	EchoMasked
)

// Reader assembles raw console bytes into lines. Feed it one byte at a
// time; it echoes as configured and hands back each completed line.
type Reader struct {
	out  io.Writer
	buf  [LineCap]byte
	n    int
	echo Echo
	mask byte
	cr   bool
	esc  uint8 // 0 none, 1 after ESC, 2 inside CSI
}

// NewReader returns a line reader echoing to out. Echo starts on with
// mask '*'.
func NewReader(out io.Writer) *Reader {
	return &Reader{out: out, mask: '*'}
}

// SetEcho switches the echo mode. It applies from the next byte on.
func (r *Reader) SetEcho(e Echo) { r.echo = e }

// Len reports the bytes currently buffered.
func (r *Reader) Len() int { return r.n }

// Reset discards any partially assembled line.
func (r *Reader) Reset() {
	r.n = 0
	r.cr = false
	r.esc = 0
}

// Feed consumes one input byte. When the byte completes a line, Feed
// returns it with done true; the terminator is stripped and an empty line
// comes back as "". A LF directly following a CR is swallowed so CRLF
// terminates once.
func (r *Reader) Feed(b byte) (line string, done bool) {
	// VT100 sequences (arrow keys and friends) are consumed, not buffered.
	switch r.esc {
	case 1:
		if b == '[' {
			r.esc = 2
		} else {
			r.esc = 0
		}
		return "", false
	case 2:
		if b >= 0x40 && b <= 0x7e {
			r.esc = 0
		}
		return "", false
	}
	if b == 0x1b {
		r.esc = 1
		return "", false
	}

	wasCR := r.cr
	r.cr = false

	switch b {
	case '\r':
		r.cr = true
		return r.take(), true
	case '\n':
		if wasCR {
			return "", false
		}
		return r.take(), true
	case 0x08, 0x7f:
		if r.n == 0 {
			return "", false
		}
		r.n--
		if r.echo != EchoOff {
			r.echoString("\b \b")
		}
		return "", false
	}

	if b < 0x20 || b > 0x7e {
		// Other control bytes and non-ASCII are dropped.
		return "", false
	}
	if r.n >= LineCap-1 {
		return "", false
	}
	r.buf[r.n] = b
	r.n++

	switch r.echo {
	case EchoOn:
		r.echoByte(b)
	case EchoMasked:
		r.echoByte(r.mask)
	}
	return "", false
}

func (r *Reader) take() string {
	line := string(r.buf[:r.n])
	r.n = 0
	return line
}

func (r *Reader) echoByte(b byte) {
	if r.out == nil {
		return
	}
	_, _ = r.out.Write([]byte{b})
}

func (r *Reader) echoString(s string) {
	if r.out == nil {
		return
	}
	_, _ = io.WriteString(r.out, s)
}
