package app

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"ember/emberos/kernel"
	"ember/emberos/proto"
	"ember/hal"
)

// fakeHAL drives the system from a test without a platform underneath.
type fakeHAL struct {
	serial *fakeSerial
	led    fakeLED
	store  *memStore
	t      *fakeTime
	net    hal.Network
}

func newFakeHAL() *fakeHAL {
	return &fakeHAL{
		serial: &fakeSerial{},
		store:  &memStore{files: map[string][]byte{}},
		t:      &fakeTime{ch: make(chan uint64, 64)},
	}
}

func (h *fakeHAL) Serial() hal.Serial   { return h.serial }
func (h *fakeHAL) LED() hal.LED         { return h.led }
func (h *fakeHAL) Store() hal.FileStore { return h.store }
func (h *fakeHAL) Time() hal.Time       { return h.t }
func (h *fakeHAL) Network() hal.Network { return h.net }
func (h *fakeHAL) Display() hal.Display { return nil }
func (h *fakeHAL) Heartbeat()           {}
func (h *fakeHAL) Reset()               {}

type fakeSerial struct {
	in  []byte
	out bytes.Buffer
}

func (s *fakeSerial) Write(p []byte) (int, error) { return s.out.Write(p) }

func (s *fakeSerial) ReadByte() (byte, bool) {
	if len(s.in) == 0 {
		return 0, false
	}
	b := s.in[0]
	s.in = s.in[1:]
	return b, true
}

type fakeLED struct{}

func (fakeLED) High() {}
func (fakeLED) Low()  {}

type memStore struct{ files map[string][]byte }

func (m *memStore) ReadFile(name string) ([]byte, error) {
	data, ok := m.files[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

func (m *memStore) WriteFile(name string, data []byte) error {
	m.files[name] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Remove(name string) error {
	delete(m.files, name)
	return nil
}

type fakeTime struct{ ch chan uint64 }

func (t *fakeTime) Ticks() <-chan uint64        { return t.ch }
func (t *fakeTime) TickInterval() time.Duration { return time.Millisecond }

type fakeNet struct{}

func (fakeNet) Probe(string, uint16, time.Duration) hal.ProbeResult { return hal.ProbeClosed }

func (fakeNet) Dial(string, uint16, time.Duration) (io.ReadWriteCloser, error) {
	return nil, hal.ErrNotImplemented
}

func (fakeNet) Listen(uint16) (hal.RemoteListener, error) { return fakeListener{}, nil }

type fakeListener struct{}

func (fakeListener) Poll() (hal.RemoteConn, bool) { return nil, false }
func (fakeListener) Close() error                 { return nil }

func TestBootServesShellWithoutNetwork(t *testing.T) {
	h := newFakeHAL()
	New(h, Config{})

	out := h.serial.out.String()
	if !strings.Contains(out, "EmberOS") {
		t.Fatalf("boot output = %q; want banner", out)
	}
	if !strings.Contains(out, "ember>") {
		t.Fatalf("boot output = %q; want first prompt", out)
	}
	if !strings.Contains(out, "boot: settings") {
		t.Fatalf("boot output = %q; want settings step report", out)
	}
	if strings.Contains(out, "boot: remote") || strings.Contains(out, "boot: telemetry") {
		t.Fatalf("network services reported without a network: %q", out)
	}
}

func TestConnectReceivesStoredCredentials(t *testing.T) {
	h := newFakeHAL()
	h.net = fakeNet{}
	h.store.files["wifi.cfg"] = []byte("attic\nhunter2")

	var gotName, gotSecret, gotHost string
	sys := New(h, Config{
		Hostname: "ember-test",
		Connect: func(name, secret, hostname string) (string, error) {
			gotName, gotSecret, gotHost = name, secret, hostname
			return "192.168.7.2", nil
		},
	})

	if gotName != "attic" || gotSecret != "hunter2" || gotHost != "ember-test" {
		t.Fatalf("Connect got (%q, %q, %q); want stored credentials", gotName, gotSecret, gotHost)
	}

	h.serial.out.Reset()
	sys.Session().Exec("status")
	if !strings.Contains(h.serial.out.String(), "192.168.7.2") {
		t.Fatalf("status = %q; want joined address", h.serial.out.String())
	}
}

func TestConnectFailureDegradesToShell(t *testing.T) {
	h := newFakeHAL()
	h.store.files["wifi.cfg"] = []byte("attic\nhunter2")

	sys := New(h, Config{
		Connect: func(string, string, string) (string, error) {
			return "", errors.New("no such network")
		},
	})

	out := h.serial.out.String()
	if !strings.Contains(out, "boot: network failed") {
		t.Fatalf("boot output = %q; want network failure report", out)
	}
	if !strings.Contains(out, "ember>") {
		t.Fatalf("boot output = %q; shell did not come up", out)
	}
	if err := sys.Step(); err != nil {
		t.Fatalf("Step after failed join: %v", err)
	}
}

func TestLinkNoticeDeliveredAfterBanner(t *testing.T) {
	h := newFakeHAL()
	h.net = fakeNet{}
	sys := New(h, Config{})

	h.serial.out.Reset()
	if err := sys.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !strings.Contains(h.serial.out.String(), "link up") {
		t.Fatalf("first step output = %q; want link notice", h.serial.out.String())
	}
}

func TestHostClockSyncAnchorsPrompt(t *testing.T) {
	h := newFakeHAL()
	sys := New(h, Config{HostClockSync: true})

	// First step queues the sync event, second delivers it.
	for i := 0; i < 2; i++ {
		if err := sys.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}

	h.serial.out.Reset()
	sys.Session().Prompt()
	out := h.serial.out.String()
	if strings.Contains(out, "[+") {
		t.Fatalf("prompt = %q; still in uptime form after sync", out)
	}
	if !strings.Contains(out, "ember>") {
		t.Fatalf("prompt = %q", out)
	}
}

func TestRemoteCommandEchoedAndRun(t *testing.T) {
	h := newFakeHAL()
	sys := New(h, Config{})

	if !sys.Loop().Post(kernel.NewEvent(uint16(proto.EvCommand), []byte("uptime"))) {
		t.Fatalf("Post refused")
	}
	h.serial.out.Reset()
	if err := sys.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	out := h.serial.out.String()
	if !strings.Contains(out, "[remote] uptime") {
		t.Fatalf("output = %q; want remote echo", out)
	}
	if !strings.Contains(out, "up ") {
		t.Fatalf("output = %q; want command result", out)
	}
}

func TestSerialInputDrivesSession(t *testing.T) {
	h := newFakeHAL()
	sys := New(h, Config{})
	h.serial.in = []byte("echo hot coals\r")

	h.serial.out.Reset()
	for i := 0; i < len("echo hot coals\r")+2; i++ {
		if err := sys.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if !strings.Contains(h.serial.out.String(), "hot coals\n") {
		t.Fatalf("output = %q; want echoed command result", h.serial.out.String())
	}
}

func TestRebootExitsThroughStep(t *testing.T) {
	h := newFakeHAL()
	sys := New(h, Config{})

	sys.Session().Exec("reboot")
	h.t.ch <- 600 // 600ms, past the grace delay
	err := sys.Step()
	if !errors.Is(err, kernel.ErrRebootRequested) {
		t.Fatalf("Step = %v; want reboot request", err)
	}
}

func TestTaskFaultReportedAndContained(t *testing.T) {
	h := newFakeHAL()
	sys := New(h, Config{})

	sys.Loop().Tasks.Start("bad", func() { panic("boom") }, 0)
	h.serial.out.Reset()
	if err := sys.Step(); err != nil {
		t.Fatalf("task fault escaped the step: %v", err)
	}
	if !strings.Contains(h.serial.out.String(), "task bad stopped: boom") {
		t.Fatalf("output = %q; want fault report", h.serial.out.String())
	}
	if sys.Loop().Tasks.Running("bad") {
		t.Fatalf("faulted task still running")
	}
	if err := sys.Step(); err != nil {
		t.Fatalf("Step after fault: %v", err)
	}
}

func TestFatalFaultProducesDiagnostic(t *testing.T) {
	h := newFakeHAL()
	sys := New(h, Config{})

	sys.Loop().OnEvent = func(kernel.Event) { panic("wires crossed") }
	sys.Loop().Events.Push(kernel.NewEvent(uint16(proto.EvLink), proto.LinkPayload(true)))

	err := sys.Step()
	if err == nil || !strings.Contains(err.Error(), "wires crossed") {
		t.Fatalf("Step = %v; want fatal fault", err)
	}
	if !strings.Contains(h.serial.out.String(), "fatal fault") {
		t.Fatalf("output = %q; want halt diagnostic", h.serial.out.String())
	}
}

func TestRemoteConsoleBootsWithListener(t *testing.T) {
	h := newFakeHAL()
	h.net = fakeNet{}
	sys := New(h, Config{ListenPort: 2323})

	if !strings.Contains(h.serial.out.String(), "boot: remote listening on port 2323") {
		t.Fatalf("boot output = %q; want remote step report", h.serial.out.String())
	}
	if !sys.Loop().Tasks.Running("remote") {
		t.Fatalf("remote service not registered")
	}
}
