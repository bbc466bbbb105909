package main

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
)

const (
	dialTimeout  = 10 * time.Second
	replyTimeout = 5 * time.Second

	// pollWindow is the per-read deadline; a full quiet window means the
	// device has nothing more to say for now.
	pollWindow = 300 * time.Millisecond

	// promptMark is the fixed tail of the session prompt, in both the
	// wall-clock and uptime forms.
	promptMark = "ember> "
)

const (
	telnetIAC     = 0xff
	telnetWill    = 0xfb
	telnetWont    = 0xfc
	telnetDont    = 0xfe
	telnetOptEcho = 0x01
)

// client speaks the remote console protocol: password auth up front, then
// free-form command lines in and mirrored session output back.
type client struct {
	conn net.Conn
	buf  []byte
	iac  telnetFilter
}

func dialConsole(addr, secret string) (*client, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	c := &client{conn: conn, buf: make([]byte, 4096)}
	if err := c.authenticate(secret); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *client) Close() error { return c.conn.Close() }

func (c *client) authenticate(secret string) error {
	greeting, err := c.readMatch(contains("password:"), replyTimeout)
	if err != nil {
		if msg := lastLine(greeting); msg != "" {
			return fmt.Errorf("login refused: %s", msg)
		}
		return fmt.Errorf("read greeting: %w", err)
	}
	if _, err := c.conn.Write([]byte(secret + "\r\n")); err != nil {
		return fmt.Errorf("send secret: %w", err)
	}
	verdict, err := c.readMatch(contains("authenticated."), replyTimeout)
	if err != nil {
		if msg := lastLine(verdict); msg != "" {
			return fmt.Errorf("login refused: %s", msg)
		}
		return fmt.Errorf("read login verdict: %w", err)
	}
	return nil
}

// run submits one command line and returns its output with the remote echo
// and any prompt fragments removed.
func (c *client) run(command string) (string, error) {
	c.drainReplay()
	if _, err := c.conn.Write([]byte(command + "\r\n")); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}
	echo := "[remote] " + command
	raw, err := c.readQuietAfter(echo, replyTimeout)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return extractResponse(raw, echo), nil
}

// drainReplay consumes the mirror ring replay that follows authentication,
// so a command's response is not confused with older session output.
func (c *client) drainReplay() {
	stop := time.Now().Add(2 * time.Second)
	for time.Now().Before(stop) {
		_ = c.conn.SetReadDeadline(time.Now().Add(pollWindow))
		n, err := c.conn.Read(c.buf)
		if n > 0 {
			c.iac.strip(c.buf[:n])
			continue
		}
		if err != nil {
			return
		}
	}
}

// readMatch accumulates stripped console bytes until done reports true or
// the budget elapses. The accumulated text is returned either way.
func (c *client) readMatch(done func(string) bool, budget time.Duration) (string, error) {
	var acc strings.Builder
	deadline := time.Now().Add(budget)
	for {
		if done(acc.String()) {
			return acc.String(), nil
		}
		if time.Now().After(deadline) {
			return acc.String(), fmt.Errorf("no response within %s", budget)
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pollWindow))
		n, err := c.conn.Read(c.buf)
		if n > 0 {
			acc.Write(c.iac.strip(c.buf[:n]))
			continue
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if done(acc.String()) {
				return acc.String(), nil
			}
			return acc.String(), err
		}
	}
}

// readQuietAfter accumulates stripped console bytes until the command echo
// has arrived and the device then stays quiet for a full poll window. The
// session prompt carries no newline, so it never streams after a response;
// silence is the end marker.
func (c *client) readQuietAfter(echo string, budget time.Duration) (string, error) {
	var acc strings.Builder
	deadline := time.Now().Add(budget)
	for {
		if time.Now().After(deadline) {
			if strings.Contains(acc.String(), echo) {
				return acc.String(), nil
			}
			return acc.String(), fmt.Errorf("no response within %s", budget)
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pollWindow))
		n, err := c.conn.Read(c.buf)
		if n > 0 {
			acc.Write(c.iac.strip(c.buf[:n]))
			continue
		}
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if strings.Contains(acc.String(), echo) {
					return acc.String(), nil
				}
				continue
			}
			if strings.Contains(acc.String(), echo) {
				return acc.String(), nil
			}
			return acc.String(), err
		}
	}
}

func contains(marker string) func(string) bool {
	return func(s string) bool { return strings.Contains(s, marker) }
}

// lastLine returns the last line of console text that carries a message,
// skipping blank lines and masked-echo star runs.
func lastLine(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		ln := strings.TrimSpace(lines[i])
		if ln == "" || strings.Trim(ln, "*") == "" {
			continue
		}
		return ln
	}
	return ""
}

var ansiSeq = regexp.MustCompile(`\x1b\[[0-9;]*[@-~]`)

func stripANSI(s string) string { return ansiSeq.ReplaceAllString(s, "") }

// extractResponse cuts the command echo, and any prompt line that leaked in
// around it, out of raw console output.
func extractResponse(raw, echo string) string {
	s := stripANSI(raw)
	if i := strings.Index(s, echo); i >= 0 {
		s = s[i+len(echo):]
	}
	if i := strings.LastIndex(s, promptMark); i >= 0 {
		head := s[:i]
		if j := strings.LastIndexAny(head, "\r\n"); j >= 0 {
			s = head[:j]
		} else {
			s = ""
		}
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Trim(s, "\r\n")
}

// telnetFilter strips IAC sequences from a byte stream, tracking echo
// negotiation when given a flag to maintain. Sequences may arrive split
// across reads.
type telnetFilter struct {
	echo *atomic.Bool
	seq  [3]byte
	n    int
}

func (f *telnetFilter) strip(data []byte) []byte {
	out := data[:0]
	for _, b := range data {
		if f.n == 0 {
			if b == telnetIAC {
				f.seq[0] = b
				f.n = 1
				continue
			}
			out = append(out, b)
			continue
		}

		f.seq[f.n] = b
		f.n++
		if f.n == 2 {
			// WILL/WONT/DO/DONT carry an option byte; everything else
			// ends here.
			if b < telnetWill || b > telnetDont {
				f.n = 0
			}
			continue
		}

		if f.echo != nil && f.seq[2] == telnetOptEcho {
			switch f.seq[1] {
			case telnetWill:
				f.echo.Store(false)
			case telnetWont:
				f.echo.Store(true)
			}
		}
		f.n = 0
	}
	return out
}
