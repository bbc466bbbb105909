package app

import (
	"fmt"
	"log/slog"
	"time"

	"ember/emberos/kernel"
	"ember/emberos/proto"
	"ember/emberos/services/remote"
	"ember/emberos/services/settings"
	"ember/emberos/services/telemetry"
	"ember/emberos/services/timebase"
)

type bootStatus uint8

const (
	bootOK bootStatus = iota
	bootSkipped
	bootFailed
)

// bootResult is the outcome of one bring-up step.
type bootResult struct {
	status bootStatus
	detail string
}

func bootOk(format string, args ...any) bootResult {
	return bootResult{status: bootOK, detail: fmt.Sprintf(format, args...)}
}

func bootSkip(reason string) bootResult {
	return bootResult{status: bootSkipped, detail: reason}
}

func bootFail(err error) bootResult {
	return bootResult{status: bootFailed, detail: err.Error()}
}

// boot runs the bring-up steps in order. No step aborts the boot: a
// failed step is reported and the shell comes up without that service.
func (s *System) boot(cfg Config) {
	steps := []struct {
		name string
		run  func(Config) bootResult
	}{
		{"settings", s.bootSettings},
		{"network", s.bootNetwork},
		{"remote", s.bootRemote},
		{"telemetry", s.bootTelemetry},
		{"timesync", s.bootTimeSync},
	}

	for _, st := range steps {
		res := st.run(cfg)
		switch res.status {
		case bootOK:
			s.log.Info("boot:"+st.name, slog.String("detail", res.detail))
			s.sess.Printf("boot: %s %s\n", st.name, res.detail)
		case bootSkipped:
			// Quiet on the console; the log keeps the full record.
			s.log.Info("boot:"+st.name, slog.String("skipped", res.detail))
		case bootFailed:
			s.log.Warn("boot:"+st.name, slog.String("err", res.detail))
			s.sess.Printf("boot: %s failed: %s\n", st.name, res.detail)
		}
	}
}

func (s *System) bootSettings(cfg Config) bootResult {
	store := s.hal.Store()
	if store == nil {
		return bootSkip("no settings store")
	}
	zone := settings.LoadZone(store)
	s.tb.SetZone(zone)

	if _, err := settings.LoadCredentials(store); err != nil {
		return bootOk("tz %+d min, no stored credentials", zone)
	}
	return bootOk("tz %+d min, credentials present", zone)
}

func (s *System) bootNetwork(cfg Config) bootResult {
	switch {
	case cfg.Connect != nil:
		creds, err := settings.LoadCredentials(s.hal.Store())
		if err != nil {
			return bootSkip("no stored credentials; use 'net set'")
		}
		addr, err := cfg.Connect(creds.Name, creds.Secret, cfg.Hostname)
		if err != nil {
			return bootFail(fmt.Errorf("join %s: %w", creds.Name, err))
		}
		s.addr = addr
		s.markLinkUp()
		return bootOk("%s (%s)", creds.Name, addr)

	case s.hal.Network() != nil:
		s.markLinkUp()
		return bootOk("ready")

	default:
		return bootSkip("no network on this platform")
	}
}

// markLinkUp records the link and queues the link event so the running
// loop announces it after the banner.
func (s *System) markLinkUp() {
	s.linkUp = true
	// The session env captured a nil network on platforms that bring it
	// up here; refresh it now that it exists.
	s.sess.Env().Net = s.hal.Network()
	s.loop.Events.Push(kernel.NewEvent(uint16(proto.EvLink), proto.LinkPayload(true)))
}

func (s *System) bootRemote(cfg Config) bootResult {
	if cfg.ListenPort == 0 {
		return bootSkip("disabled")
	}
	net := s.hal.Network()
	if net == nil {
		return bootSkip("no network")
	}
	ln, err := net.Listen(cfg.ListenPort)
	if err != nil {
		return bootFail(fmt.Errorf("listen %d: %w", cfg.ListenPort, err))
	}
	s.remote = remote.New(remote.Config{
		Listener: ln,
		Loop:     s.loop,
		Mirror:   s.mirror,
		Secret:   s.storedSecret,
	})
	if res := s.loop.Tasks.Start("remote", s.remote.Tick, s.loop.Uptime()); res != kernel.StartOK {
		return bootFail(fmt.Errorf("start remote: %s", res))
	}
	return bootOk("listening on port %d", cfg.ListenPort)
}

func (s *System) bootTelemetry(cfg Config) bootResult {
	if cfg.BrokerHost == "" {
		return bootSkip("no broker")
	}
	net := s.hal.Network()
	if net == nil {
		return bootSkip("no network")
	}
	s.tele = telemetry.New(telemetry.Config{
		Net:        net,
		Loop:       s.loop,
		Log:        s.log,
		BrokerHost: cfg.BrokerHost,
		BrokerPort: cfg.BrokerPort,
		ClientID:   cfg.ClientID,
		Snapshot:   s.snapshot,
	})
	if err := s.tele.Start(); err != nil {
		return bootFail(err)
	}
	if res := s.loop.Tasks.Start("telemetry", s.tele.Tick, s.loop.Uptime()); res != kernel.StartOK {
		return bootFail(fmt.Errorf("start telemetry: %s", res))
	}
	return bootOk("broker %s:%d", cfg.BrokerHost, cfg.BrokerPort)
}

// bootTimeSync schedules wall-clock syncs from the platform clock. The
// first attempt fires on the first loop pass, so a host prompt shows
// wall time right away; later attempts keep drift bounded on the fixed
// resync cadence.
func (s *System) bootTimeSync(cfg Config) bootResult {
	if !cfg.HostClockSync {
		return bootSkip("broker-driven")
	}
	rs := timebase.NewResync(0)
	tick := func() {
		up := s.loop.Uptime()
		if !rs.Due(up) {
			return
		}
		rs.Done(up)
		s.loop.Events.Push(kernel.NewEvent(
			uint16(proto.EvTimeSync),
			proto.TimeSyncPayload(time.Now().Unix()),
		))
	}
	if res := s.loop.Tasks.Start("timesync", tick, s.loop.Uptime()); res != kernel.StartOK {
		return bootFail(fmt.Errorf("start timesync: %s", res))
	}
	return bootOk("platform clock")
}

// storedSecret fetches the credential secret for remote console logins.
// Reading per attempt means a changed secret applies without a reboot.
func (s *System) storedSecret() (string, bool) {
	creds, err := settings.LoadCredentials(s.hal.Store())
	if err != nil || creds.Secret == "" {
		return "", false
	}
	return creds.Secret, true
}
