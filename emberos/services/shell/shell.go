// Package shell implements the interactive command session: line
// assembly, the command registry and dispatcher, and the foreground app
// state machine. One session drives the serial console; remote consoles
// inject complete lines through the event queue instead of owning a
// session of their own.
package shell

import (
	"fmt"
	"io"
	"strings"
	"time"

	"ember/emberos/kernel"
	"ember/emberos/services/console"
	"ember/emberos/services/timebase"
	"ember/hal"
	"ember/internal/buildinfo"
)

// Env gathers the collaborators commands operate on. Net and LED are nil
// on platforms without them.
type Env struct {
	Loop  *kernel.Loop
	Time  *timebase.TimeBase
	Store hal.FileStore
	Net   hal.Network
	LED   hal.LED
	Log   *console.Ring

	// Addr reports the platform's network address, "" while down.
	Addr func() string
	// Sleep pauses briefly between polls inside blocking prompts.
	Sleep func()
}

// Session is one interactive shell over a sink.
type Session struct {
	env    Env
	out    io.Writer
	rd     *Reader
	reg    *registry
	apps   []App
	app    App
	appReg *registry
}

// NewSession builds a session writing to out. Command registration is
// construction-time; a duplicate name panics rather than limping along
// with a half-built table.
func NewSession(out io.Writer, env Env) *Session {
	s := &Session{env: env, out: out}
	s.rd = NewReader(out)

	r := newRegistry()
	registerCoreCommands(r)
	registerAppCommands(r)
	registerTaskCommands(r)
	registerNetCommands(r)
	s.reg = r
	return s
}

// Env exposes the session's collaborators to apps and commands.
func (s *Session) Env() *Env { return &s.env }

// Start prints the banner and the first prompt.
func (s *Session) Start() {
	s.Printf("\x1b[38;5;208mEmberOS\x1b[0m %s\n", buildinfo.Short())
	s.Print("Type 'help' for commands.\n")
	s.Prompt()
}

// HandleByte feeds one byte of console input, dispatching completed lines.
func (s *Session) HandleByte(b byte) {
	line, done := s.rd.Feed(b)
	if !done {
		return
	}
	s.Print("\n")
	s.Exec(line)
	s.Prompt()
}

// Submit runs a line that arrived out of band (remote console, command
// topic), echoing it first so the local transcript stays complete.
func (s *Session) Submit(line string) {
	s.Printf("\n[remote] %s\n", line)
	s.Exec(line)
	s.Prompt()
}

// Exec tokenizes and dispatches one command line. Nothing panics past
// it: a fault inside an action is reported and the session carries on.
func (s *Session) Exec(line string) {
	defer func() {
		if v := recover(); v != nil {
			s.Printf("fault: %v\n", v)
		}
	}()

	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	name, args, err := tokenize(line)
	if err != nil {
		s.Printf("parse error: %v\n", err)
		return
	}
	if name == "" {
		return
	}

	cmd, ok := s.reg.resolve(name)
	if !ok && s.appReg != nil {
		cmd, ok = s.appReg.resolve(name)
	}
	if !ok {
		s.Printf("unknown command: %s\n", name)
		return
	}
	if len(args) < cmd.Min || (cmd.Max >= 0 && len(args) > cmd.Max) {
		s.Printf("usage: %s\n", cmd.Usage)
		return
	}
	if err := cmd.Run(s, args); err != nil {
		s.Printf("%s: %v\n", cmd.Name, err)
	}
}

// Prompt renders the prompt: wall time when synced, zero-padded uptime
// seconds otherwise.
func (s *Session) Prompt() {
	up := s.uptime()
	if s.env.Time != nil {
		if t, ok := s.env.Time.Now(up); ok {
			t = s.env.Time.Local(t)
			s.Printf("[%02d:%02d:%02d] \x1b[38;5;208member>\x1b[0m ", t.Hour(), t.Minute(), t.Second())
			return
		}
	}
	s.Printf("[+%05ds] \x1b[38;5;208member>\x1b[0m ", int(up/time.Second))
}

// ReadLine blocks until a full line arrives on the console, echoing per
// mode. Background tasks keep ticking between keystrokes, so an
// interactive prompt never stalls the system.
func (s *Session) ReadLine(prompt string, echo Echo) string {
	if s.env.Loop == nil || s.env.Loop.PollByte == nil {
		return ""
	}
	s.Print(prompt)
	rd := NewReader(s.out)
	rd.SetEcho(echo)
	for {
		b, ok := s.env.Loop.PollByte()
		if !ok {
			s.env.Loop.PumpTicks()
			s.idle()
			continue
		}
		if line, done := rd.Feed(b); done {
			s.Print("\n")
			return line
		}
	}
}

// Print writes raw text to the session sink.
func (s *Session) Print(str string) {
	_, _ = io.WriteString(s.out, str)
}

// Printf writes formatted text to the session sink.
func (s *Session) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.out, format, args...)
}

func (s *Session) uptime() time.Duration {
	if s.env.Loop == nil {
		return 0
	}
	return s.env.Loop.Uptime()
}

func (s *Session) idle() {
	if s.env.Sleep != nil {
		s.env.Sleep()
		return
	}
	time.Sleep(2 * time.Millisecond)
}
