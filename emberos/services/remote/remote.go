// Package remote serves the session over TCP. A client authenticates with
// the stored credential secret, then its lines enter the event queue as
// remote commands and the session's mirrored output is streamed back.
//
// The service runs as a background task inside the loop, so everything here
// happens in loop context: it may push to the event queue directly.
package remote

import (
	"crypto/subtle"
	"io"
	"time"

	"ember/emberos/kernel"
	"ember/emberos/proto"
	"ember/emberos/services/console"
	"ember/emberos/services/shell"
	"ember/hal"
)

const (
	// authWindow bounds how long a fresh connection may sit at the
	// password prompt.
	authWindow = 10 * time.Second

	// pumpBudget bounds the bytes consumed from the peer per tick, keeping
	// one chatty client from starving the rest of the loop.
	pumpBudget = 64
)

// Telnet IAC sequences for echo control. WILL ECHO makes the client stop
// local echo during password entry; WONT ECHO hands echo back.
var (
	telnetWillEcho = []byte{0xff, 0xfb, 0x01}
	telnetWontEcho = []byte{0xff, 0xfc, 0x01}
)

type connState uint8

const (
	stateAuth connState = iota
	stateShell
)

// Config wires a Service to its collaborators.
type Config struct {
	Listener hal.RemoteListener
	Loop     *kernel.Loop

	// Mirror is the session output ring. Its drained lines are what an
	// authenticated client sees.
	Mirror *console.Ring

	// Secret returns the stored credential secret. When it reports false
	// the service refuses logins entirely.
	Secret func() (string, bool)
}

// Service owns at most one remote client at a time.
type Service struct {
	ln     hal.RemoteListener
	loop   *kernel.Loop
	mirror *console.Ring
	secret func() (string, bool)

	conn     hal.RemoteConn
	state    connState
	rd       *shell.Reader
	deadline time.Duration
	skipIAC  int

	failures    int
	lastFailure time.Duration
}

// New returns a stopped service; register Tick with the task table to run it.
func New(cfg Config) *Service {
	return &Service{
		ln:     cfg.Listener,
		loop:   cfg.Loop,
		mirror: cfg.Mirror,
		secret: cfg.Secret,
	}
}

// Attached reports whether an authenticated client is connected.
func (s *Service) Attached() bool {
	return s.conn != nil && s.state == stateShell
}

// Failures reports the consecutive failed login count.
func (s *Service) Failures() int { return s.failures }

// Close drops the active connection and the listener.
func (s *Service) Close() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.drop()
	}
	if s.ln != nil {
		_ = s.ln.Close()
	}
}

// Tick runs one service step: reap a dead connection, accept at most one
// new one, pump pending bytes, and stream mirrored output to an
// authenticated client.
func (s *Service) Tick() {
	if s.conn != nil && s.conn.Closed() {
		if s.state == stateShell {
			s.loop.Events.Push(kernel.NewEvent(uint16(proto.EvDetach), nil))
		}
		_ = s.conn.Close() // releases the listener slot on device
		s.drop()
	}

	s.accept()

	if s.conn == nil {
		return
	}

	s.pump()

	if s.conn != nil && s.state == stateAuth && s.loop.Uptime() >= s.deadline {
		s.writeString("\r\ntimed out.\r\n")
		s.fail()
		_ = s.conn.Close()
		s.drop()
	}

	if s.Attached() {
		for _, line := range s.mirror.Drain() {
			s.writeString(line)
			s.writeString("\r\n")
		}
	}
}

func (s *Service) accept() {
	if s.ln == nil {
		return
	}
	conn, ok := s.ln.Poll()
	if !ok {
		return
	}
	if s.conn != nil {
		_, _ = io.WriteString(conn, "console busy.\r\n")
		_ = conn.Close()
		return
	}
	if _, ok := s.storedSecret(); !ok {
		_, _ = io.WriteString(conn, "remote console disabled: no stored credentials.\r\n")
		_ = conn.Close()
		return
	}
	if s.lockedOut() {
		_, _ = io.WriteString(conn, "too many failures; try again later.\r\n")
		_ = conn.Close()
		return
	}

	s.conn = conn
	s.state = stateAuth
	s.skipIAC = 0
	s.deadline = s.loop.Uptime() + authWindow
	s.rd = shell.NewReader(conn)
	s.rd.SetEcho(shell.EchoMasked)

	_, _ = conn.Write(telnetWillEcho)
	s.writeString("EmberOS remote console\r\npassword: ")
}

func (s *Service) pump() {
	for i := 0; i < pumpBudget && s.conn != nil; i++ {
		b, ok := s.conn.ReadByte()
		if !ok {
			return
		}
		if s.skipIAC > 0 {
			s.skipIAC--
			continue
		}
		if b == 0xff {
			// IAC: skip the command byte and its option byte.
			s.skipIAC = 2
			continue
		}
		line, done := s.rd.Feed(b)
		if !done {
			continue
		}
		switch s.state {
		case stateAuth:
			s.finishAuth(line)
		case stateShell:
			if line == "" {
				continue
			}
			s.loop.Events.Push(kernel.NewEvent(uint16(proto.EvCommand), []byte(line)))
		}
	}
}

func (s *Service) finishAuth(line string) {
	_, _ = s.conn.Write(telnetWontEcho)
	s.writeString("\r\n")

	secret, ok := s.storedSecret()
	if !ok || subtle.ConstantTimeCompare([]byte(line), []byte(secret)) != 1 {
		s.writeString("access denied.\r\n")
		s.fail()
		_ = s.conn.Close()
		s.drop()
		return
	}

	s.failures = 0
	s.state = stateShell
	s.rd.SetEcho(shell.EchoOff)
	s.writeString("authenticated. session output follows; type commands to run them.\r\n")
	s.loop.Events.Push(kernel.NewEvent(uint16(proto.EvAttach), nil))
}

func (s *Service) storedSecret() (string, bool) {
	if s.secret == nil {
		return "", false
	}
	return s.secret()
}

// lockout returns the current lockout window, escalating with the
// consecutive failure count.
func (s *Service) lockout() time.Duration {
	switch {
	case s.failures >= 10:
		return 5 * time.Minute
	case s.failures >= 5:
		return 30 * time.Second
	case s.failures >= 3:
		return 5 * time.Second
	default:
		return 0
	}
}

func (s *Service) lockedOut() bool {
	lk := s.lockout()
	if lk == 0 {
		return false
	}
	return s.loop.Uptime()-s.lastFailure < lk
}

func (s *Service) fail() {
	s.failures++
	s.lastFailure = s.loop.Uptime()
}

func (s *Service) drop() {
	s.conn = nil
	s.rd = nil
	s.state = stateAuth
	s.skipIAC = 0
}

func (s *Service) writeString(msg string) {
	if s.conn == nil {
		return
	}
	_, _ = io.WriteString(s.conn, msg)
}
