// Package app is the composition root: it owns every piece of system
// state, wires the services to the loop, and runs the boot sequence.
// Nothing in here is a global; main constructs one System and steps it.
package app

import (
	"io"
	"log/slog"
	"time"

	"ember/emberos/kernel"
	"ember/emberos/proto"
	"ember/emberos/services/console"
	"ember/emberos/services/remote"
	"ember/emberos/services/shell"
	"ember/emberos/services/telemetry"
	"ember/emberos/services/term"
	"ember/emberos/services/timebase"
	"ember/emberos/tasks"
	"ember/hal"
)

const (
	mirrorLines = 64
	logLines    = 64

	defaultBrokerPort = 1883
)

// Config carries the platform knobs main passes in. The zero value is a
// serial-only shell with every network service disabled.
type Config struct {
	// ListenPort serves the remote console when nonzero and a network
	// is available.
	ListenPort uint16

	// BrokerHost enables telemetry when set. BrokerPort zero means 1883.
	BrokerHost string
	BrokerPort uint16

	// ClientID names this system to the broker and roots its topics.
	ClientID string

	// Hostname is announced when joining the network.
	Hostname string

	// Addr labels the network address in status output until a join
	// reports the real one.
	Addr string

	// Connect joins the network with the stored credentials and returns
	// the assigned address. Platforms whose network needs no bring-up
	// leave it nil.
	Connect func(name, secret, hostname string) (addr string, err error)

	// HostClockSync feeds the time base from the platform clock on the
	// resync schedule. Hosts set it; the device syncs from its broker.
	HostClockSync bool

	// LogOutput additionally receives log records; the log ring always
	// does.
	LogOutput io.Writer
	LogLevel  slog.Leveler
}

// System owns all mutable state: the loop, the session, the time base,
// the sinks, and the network services. Everything reaches its
// collaborators through here; there are no package-level variables.
type System struct {
	hal  hal.HAL
	loop *kernel.Loop
	tb   *timebase.TimeBase
	sess *shell.Session
	log  *slog.Logger

	mirror  *console.Ring
	logRing *console.Ring
	term    *term.Service
	remote  *remote.Service
	tele    *telemetry.Service

	addr   string
	linkUp bool
}

// New builds the system, runs the boot sequence, and prints the banner
// and first prompt. The returned system is ready to Step.
func New(h hal.HAL, cfg Config) *System {
	if cfg.ClientID == "" {
		cfg.ClientID = "ember"
	}
	if cfg.BrokerPort == 0 {
		cfg.BrokerPort = defaultBrokerPort
	}

	s := &System{
		hal:     h,
		tb:      &timebase.TimeBase{},
		mirror:  console.NewRing(mirrorLines),
		logRing: console.NewRing(logLines),
		addr:    cfg.Addr,
	}

	logSinks := []io.Writer{s.logRing}
	if cfg.LogOutput != nil {
		logSinks = append(logSinks, cfg.LogOutput)
	}
	s.log = slog.New(slog.NewTextHandler(console.NewTee(logSinks...), &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	ht := h.Time()
	s.loop = kernel.NewLoop(ht.Ticks(), ht.TickInterval())

	sinks := []io.Writer{console.NewCRLF(h.Serial()), s.mirror}
	if t := term.New(h.Display()); t != nil {
		s.term = t
		sinks = append(sinks, t)
	}

	s.sess = shell.NewSession(console.NewTee(sinks...), shell.Env{
		Loop:  s.loop,
		Time:  s.tb,
		Store: h.Store(),
		Net:   h.Network(),
		LED:   h.LED(),
		Log:   s.logRing,
		Addr:  func() string { return s.addr },
	})
	s.sess.Install(tasks.NewTodo())
	s.sess.Install(tasks.NewBlink(h.LED()))
	s.sess.Install(tasks.NewClock())

	s.loop.PollByte = h.Serial().ReadByte
	s.loop.OnByte = s.sess.HandleByte
	s.loop.OnEvent = s.handleEvent
	s.loop.Tasks.OnFault = func(name string, v any) {
		s.log.Error("task:fault", slog.String("task", name), slog.Any("panic", v))
		s.sess.Printf("\ntask %s stopped: %v\n", name, v)
		s.sess.Prompt()
	}

	s.boot(cfg)
	s.sess.Start()
	return s
}

// Step runs one loop iteration and presents the frame. A panic escaping
// the loop is a fatal fault: Step writes the diagnostic and returns the
// fault as an error, and the runner must not restart.
func (s *System) Step() (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = s.halt(v)
		}
	}()
	if err := s.loop.Step(); err != nil {
		return err
	}
	if s.term != nil {
		s.term.Flush()
	}
	return nil
}

// Loop exposes the session loop for tests and runners.
func (s *System) Loop() *kernel.Loop { return s.loop }

// Session exposes the interactive session.
func (s *System) Session() *shell.Session { return s.sess }

// handleEvent runs in loop context for every drained event.
func (s *System) handleEvent(ev kernel.Event) {
	switch proto.Kind(ev.Kind) {
	case proto.EvCommand:
		s.sess.Submit(string(ev.Payload()))

	case proto.EvTimeSync:
		unix, ok := proto.DecodeTimeSyncPayload(ev.Payload())
		if !ok || unix <= 0 {
			s.log.Warn("time:bad-sync", slog.Int("len", int(ev.Len)))
			return
		}
		first := !s.tb.Synced()
		s.tb.Set(time.Unix(unix, 0).UTC(), s.loop.Uptime())
		if first {
			s.log.Info("time:synced", slog.Int64("unix", unix))
		}

	case proto.EvLink:
		up, ok := proto.DecodeLinkPayload(ev.Payload())
		if !ok {
			return
		}
		s.linkUp = up
		state := "down"
		if up {
			state = "up"
		}
		s.log.Info("net:link", slog.String("state", state))
		s.sess.Printf("\nlink %s\n", state)
		s.sess.Prompt()

	case proto.EvAttach:
		s.log.Info("remote:attached")
		s.sess.Print("\nremote client attached.\n")
		s.sess.Prompt()

	case proto.EvDetach:
		s.log.Info("remote:detached")
		s.sess.Print("\nremote client detached.\n")
		s.sess.Prompt()

	default:
		s.log.Warn("event:unknown", slog.Int("kind", int(ev.Kind)))
	}
}

// snapshot builds the telemetry status frame. Loop context.
func (s *System) snapshot() proto.StatusFrame {
	return proto.StatusFrame{
		UptimeSeconds: uint32(s.loop.Uptime() / time.Second),
		TaskCount:     uint8(s.loop.Tasks.Len()),
		TimeSynced:    s.tb.Synced(),
		LinkUp:        s.linkUp,
		EventDrops:    s.loop.Events.Dropped(),
	}
}
