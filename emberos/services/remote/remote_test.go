package remote

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"ember/emberos/kernel"
	"ember/emberos/proto"
	"ember/emberos/services/console"
	"ember/hal"
)

type fakeConn struct {
	in     []byte
	out    bytes.Buffer
	closed bool
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.out.Write(p)
	return len(p), nil
}

func (c *fakeConn) ReadByte() (byte, bool) {
	if len(c.in) == 0 {
		return 0, false
	}
	b := c.in[0]
	c.in = c.in[1:]
	return b, true
}

func (c *fakeConn) Closed() bool { return c.closed }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type fakeListener struct {
	pending []hal.RemoteConn
	closed  bool
}

func (l *fakeListener) Poll() (hal.RemoteConn, bool) {
	if len(l.pending) == 0 {
		return nil, false
	}
	c := l.pending[0]
	l.pending = l.pending[1:]
	return c, true
}

func (l *fakeListener) Close() error {
	l.closed = true
	return nil
}

func newService(loop *kernel.Loop, secret string) (*Service, *fakeListener) {
	ln := &fakeListener{}
	svc := New(Config{
		Listener: ln,
		Loop:     loop,
		Mirror:   console.NewRing(16),
		Secret: func() (string, bool) {
			if secret == "" {
				return "", false
			}
			return secret, true
		},
	})
	return svc, ln
}

// connect queues a connection carrying input and runs one tick.
func connect(t *testing.T, svc *Service, ln *fakeListener, input string) *fakeConn {
	t.Helper()
	conn := &fakeConn{in: []byte(input)}
	ln.pending = append(ln.pending, conn)
	svc.Tick()
	return conn
}

func popEvent(t *testing.T, loop *kernel.Loop, kind proto.Kind) kernel.Event {
	t.Helper()
	ev, ok := loop.Events.Pop()
	if !ok {
		t.Fatalf("no event queued; want %v", kind)
	}
	if proto.Kind(ev.Kind) != kind {
		t.Fatalf("event kind = %v; want %v", proto.Kind(ev.Kind), kind)
	}
	return ev
}

func TestAuthHandshake(t *testing.T) {
	loop := kernel.NewLoop(nil, 0)
	svc, ln := newService(loop, "hunter2")

	conn := connect(t, svc, ln, "hunter2\r")

	out := conn.out.String()
	if !strings.HasPrefix(out, string(telnetWillEcho)) {
		t.Fatalf("output does not start with WILL ECHO: %q", out)
	}
	if !strings.Contains(out, "password: ") {
		t.Fatalf("no password prompt in %q", out)
	}
	if !strings.Contains(out, "*******") {
		t.Fatalf("secret not masked in %q", out)
	}
	if strings.Contains(out, "hunter2") {
		t.Fatalf("secret leaked to client: %q", out)
	}
	if !strings.Contains(out, string(telnetWontEcho)) {
		t.Fatalf("echo never restored: %q", out)
	}
	if !strings.Contains(out, "authenticated.") {
		t.Fatalf("no auth confirmation in %q", out)
	}
	if !svc.Attached() {
		t.Fatalf("Attached() = false after auth")
	}
	popEvent(t, loop, proto.EvAttach)
	if loop.Events.Len() != 0 {
		t.Fatalf("extra events queued: %d", loop.Events.Len())
	}
}

func TestAuthWrongSecret(t *testing.T) {
	loop := kernel.NewLoop(nil, 0)
	svc, ln := newService(loop, "hunter2")

	conn := connect(t, svc, ln, "letmein\r")

	if !strings.Contains(conn.out.String(), "access denied.") {
		t.Fatalf("no denial in %q", conn.out.String())
	}
	if !conn.closed {
		t.Fatalf("connection left open after failed auth")
	}
	if svc.Attached() {
		t.Fatalf("Attached() = true after failed auth")
	}
	if svc.Failures() != 1 {
		t.Fatalf("Failures() = %d; want 1", svc.Failures())
	}
	if loop.Events.Len() != 0 {
		t.Fatalf("events queued on failed auth: %d", loop.Events.Len())
	}
}

func TestAuthedLinesBecomeCommandEvents(t *testing.T) {
	loop := kernel.NewLoop(nil, 0)
	svc, ln := newService(loop, "hunter2")
	conn := connect(t, svc, ln, "hunter2\r")
	popEvent(t, loop, proto.EvAttach)

	// CRLF terminates once; the blank line is dropped.
	conn.in = []byte("status\r\n\r\nuptime\r")
	svc.Tick()

	ev := popEvent(t, loop, proto.EvCommand)
	if got := string(ev.Payload()); got != "status" {
		t.Fatalf("first command = %q; want %q", got, "status")
	}
	ev = popEvent(t, loop, proto.EvCommand)
	if got := string(ev.Payload()); got != "uptime" {
		t.Fatalf("second command = %q; want %q", got, "uptime")
	}
	if loop.Events.Len() != 0 {
		t.Fatalf("blank line queued an event")
	}
}

func TestMirrorStreamedToClient(t *testing.T) {
	loop := kernel.NewLoop(nil, 0)
	svc, ln := newService(loop, "hunter2")
	conn := connect(t, svc, ln, "hunter2\r")
	conn.out.Reset()

	_, _ = svc.mirror.Write([]byte("hello\nworld\n"))
	svc.Tick()

	if got := conn.out.String(); got != "hello\r\nworld\r\n" {
		t.Fatalf("streamed output = %q; want %q", got, "hello\r\nworld\r\n")
	}
	if svc.mirror.Len() != 0 {
		t.Fatalf("mirror not drained: %d lines left", svc.mirror.Len())
	}
}

func TestMirrorHeldUntilAttach(t *testing.T) {
	loop := kernel.NewLoop(nil, 0)
	svc, ln := newService(loop, "hunter2")

	_, _ = svc.mirror.Write([]byte("early output\n"))
	svc.Tick()
	if svc.mirror.Len() != 1 {
		t.Fatalf("mirror drained with no client attached")
	}

	conn := connect(t, svc, ln, "hunter2\r")
	if !strings.Contains(conn.out.String(), "early output\r\n") {
		t.Fatalf("buffered history not delivered: %q", conn.out.String())
	}
}

func TestTelnetNegotiationFiltered(t *testing.T) {
	loop := kernel.NewLoop(nil, 0)
	svc, ln := newService(loop, "s3cret")

	// IAC DO ECHO from the client precedes the password.
	conn := connect(t, svc, ln, "\xff\xfd\x01s3cret\r")

	if !svc.Attached() {
		t.Fatalf("auth failed with telnet negotiation bytes present: %q", conn.out.String())
	}
}

func TestLockoutEscalation(t *testing.T) {
	loop := kernel.NewLoop(nil, 0)
	svc, _ := newService(loop, "hunter2")

	tcs := []struct {
		failures int
		want     time.Duration
	}{
		{0, 0},
		{2, 0},
		{3, 5 * time.Second},
		{4, 5 * time.Second},
		{5, 30 * time.Second},
		{9, 30 * time.Second},
		{10, 5 * time.Minute},
	}
	for _, tc := range tcs {
		svc.failures = tc.failures
		if got := svc.lockout(); got != tc.want {
			t.Fatalf("lockout(%d failures) = %v; want %v", tc.failures, got, tc.want)
		}
	}
}

func TestLockoutRefusesConnections(t *testing.T) {
	ticks := make(chan uint64, 4)
	loop := kernel.NewLoop(ticks, time.Millisecond)
	svc, ln := newService(loop, "hunter2")
	svc.failures = 3
	svc.lastFailure = 0

	conn := connect(t, svc, ln, "hunter2\r")
	if !strings.Contains(conn.out.String(), "too many failures") {
		t.Fatalf("no lockout message in %q", conn.out.String())
	}
	if !conn.closed {
		t.Fatalf("locked-out connection left open")
	}
	if svc.conn != nil {
		t.Fatalf("locked-out connection retained")
	}

	// Past the 5s tier the next attempt goes through.
	ticks <- 6000
	loop.PumpTicks()
	conn = connect(t, svc, ln, "")
	if !strings.Contains(conn.out.String(), "password: ") {
		t.Fatalf("connection still refused after lockout expired: %q", conn.out.String())
	}
}

func TestNoCredentialsRefusal(t *testing.T) {
	loop := kernel.NewLoop(nil, 0)
	svc, ln := newService(loop, "")

	conn := connect(t, svc, ln, "anything\r")

	if !strings.Contains(conn.out.String(), "no stored credentials") {
		t.Fatalf("no refusal message in %q", conn.out.String())
	}
	if !conn.closed {
		t.Fatalf("connection left open with no credentials stored")
	}
}

func TestBusyRefusesSecondClient(t *testing.T) {
	loop := kernel.NewLoop(nil, 0)
	svc, ln := newService(loop, "hunter2")
	connect(t, svc, ln, "hunter2\r")

	second := connect(t, svc, ln, "hunter2\r")

	if !strings.Contains(second.out.String(), "console busy.") {
		t.Fatalf("no busy message in %q", second.out.String())
	}
	if !second.closed {
		t.Fatalf("second connection left open")
	}
	if !svc.Attached() {
		t.Fatalf("first client lost its session")
	}
}

func TestDetachEventOnDisconnect(t *testing.T) {
	loop := kernel.NewLoop(nil, 0)
	svc, ln := newService(loop, "hunter2")
	conn := connect(t, svc, ln, "hunter2\r")
	popEvent(t, loop, proto.EvAttach)

	conn.closed = true
	svc.Tick()

	popEvent(t, loop, proto.EvDetach)
	if svc.Attached() {
		t.Fatalf("Attached() = true after disconnect")
	}

	// The slot is free again.
	next := connect(t, svc, ln, "")
	if !strings.Contains(next.out.String(), "password: ") {
		t.Fatalf("new connection refused after detach: %q", next.out.String())
	}
}

func TestAuthTimeout(t *testing.T) {
	ticks := make(chan uint64, 4)
	loop := kernel.NewLoop(ticks, time.Millisecond)
	svc, ln := newService(loop, "hunter2")

	conn := connect(t, svc, ln, "")

	ticks <- 10001
	loop.PumpTicks()
	svc.Tick()

	if !strings.Contains(conn.out.String(), "timed out.") {
		t.Fatalf("no timeout message in %q", conn.out.String())
	}
	if !conn.closed {
		t.Fatalf("stalled connection left open")
	}
	if svc.Failures() != 1 {
		t.Fatalf("Failures() = %d; want 1", svc.Failures())
	}
}
