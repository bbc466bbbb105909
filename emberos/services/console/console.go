// Package console provides the output sinks the shell writes through.
//
// The synchronous variant is any io.Writer (serial port, terminal
// service). Ring is the buffering variant: it retains recent lines for
// later pull by a remote client that was not attached when they were
// produced.
package console

import "io"

// CRLF wraps a writer and expands bare newlines to CRLF, which serial
// consoles and telnet clients expect. An LF directly following a CR is
// passed through untouched, also across Write calls.
type CRLF struct {
	W    io.Writer
	last byte
}

// NewCRLF wraps w.
func NewCRLF(w io.Writer) *CRLF {
	return &CRLF{W: w}
}

func (c *CRLF) Write(p []byte) (int, error) {
	var scratch [128]byte
	consumed := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > len(scratch)/2 {
			chunk = chunk[:len(scratch)/2]
		}
		out := scratch[:0]
		for _, b := range chunk {
			if b == '\n' && c.last != '\r' {
				out = append(out, '\r', '\n')
			} else {
				out = append(out, b)
			}
			c.last = b
		}
		if _, err := c.W.Write(out); err != nil {
			return consumed, err
		}
		consumed += len(chunk)
		p = p[len(chunk):]
	}
	return consumed, nil
}
