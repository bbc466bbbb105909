package telemetry

import (
	"strings"
	"testing"
	"time"

	mqtt "github.com/soypat/natiu-mqtt"

	"ember/emberos/kernel"
	"ember/emberos/proto"
)

func TestTopicsRootedUnderClientID(t *testing.T) {
	status, cmd, timeSync := topicsFor("attic-pico")
	tcs := []struct {
		got  []byte
		want string
	}{
		{status, "ember/attic-pico/status"},
		{cmd, "ember/attic-pico/cmd"},
		{timeSync, "ember/attic-pico/time"},
	}
	for _, tc := range tcs {
		if string(tc.got) != tc.want {
			t.Fatalf("topic = %q; want %q", tc.got, tc.want)
		}
	}
}

func TestTickPublishesOnSchedule(t *testing.T) {
	ticks := make(chan uint64, 4)
	loop := kernel.NewLoop(ticks, time.Millisecond)
	calls := 0
	svc := New(Config{
		Loop:           loop,
		ClientID:       "dev",
		StatusInterval: 60 * time.Second,
		Snapshot: func() proto.StatusFrame {
			calls++
			return proto.StatusFrame{UptimeSeconds: uint32(calls)}
		},
	})

	svc.Tick()
	if calls != 1 {
		t.Fatalf("snapshot calls after first tick = %d; want 1", calls)
	}
	f := <-svc.frames
	if f.UptimeSeconds != 1 {
		t.Fatalf("frame uptime = %d; want 1", f.UptimeSeconds)
	}

	// Same instant again: schedule not due.
	svc.Tick()
	if calls != 1 {
		t.Fatalf("snapshot called before interval elapsed")
	}

	ticks <- 59_000
	loop.PumpTicks()
	svc.Tick()
	if calls != 1 {
		t.Fatalf("snapshot called at 59s; interval is 60s")
	}

	ticks <- 60_000
	loop.PumpTicks()
	svc.Tick()
	if calls != 2 {
		t.Fatalf("snapshot calls after interval = %d; want 2", calls)
	}
}

func TestTickDropsFrameWhenTransportBusy(t *testing.T) {
	ticks := make(chan uint64, 4)
	loop := kernel.NewLoop(ticks, time.Millisecond)
	seq := uint32(0)
	svc := New(Config{
		Loop:           loop,
		ClientID:       "dev",
		StatusInterval: time.Second,
		Snapshot: func() proto.StatusFrame {
			seq++
			return proto.StatusFrame{UptimeSeconds: seq}
		},
	})

	svc.Tick()
	ticks <- 1000
	loop.PumpTicks()
	svc.Tick() // transport never drained; this frame is dropped

	if len(svc.frames) != 1 {
		t.Fatalf("frames queued = %d; want 1", len(svc.frames))
	}
	f := <-svc.frames
	if f.UptimeSeconds != 1 {
		t.Fatalf("queued frame = %d; want the first", f.UptimeSeconds)
	}
}

func drainEvents(t *testing.T, loop *kernel.Loop) []kernel.Event {
	t.Helper()
	var got []kernel.Event
	loop.OnEvent = func(ev kernel.Event) { got = append(got, ev) }
	if err := loop.Step(); err != nil {
		t.Fatalf("Step() = %v", err)
	}
	return got
}

func TestCommandTopicFeedsEventQueue(t *testing.T) {
	loop := kernel.NewLoop(nil, 0)
	svc := New(Config{Loop: loop, ClientID: "dev"})

	err := svc.onMessage(mqtt.Header{},
		mqtt.VariablesPublish{TopicName: []byte("ember/dev/cmd")},
		strings.NewReader("status\n"))
	if err != nil {
		t.Fatalf("onMessage() = %v", err)
	}

	got := drainEvents(t, loop)
	if len(got) != 1 {
		t.Fatalf("events = %d; want 1", len(got))
	}
	if proto.Kind(got[0].Kind) != proto.EvCommand {
		t.Fatalf("event kind = %v; want %v", proto.Kind(got[0].Kind), proto.EvCommand)
	}
	if line := string(got[0].Payload()); line != "status" {
		t.Fatalf("command payload = %q; want %q", line, "status")
	}
}

func TestTimeTopicPostsSync(t *testing.T) {
	loop := kernel.NewLoop(nil, 0)
	svc := New(Config{Loop: loop, ClientID: "dev"})

	_ = svc.onMessage(mqtt.Header{},
		mqtt.VariablesPublish{TopicName: []byte("ember/dev/time")},
		strings.NewReader("1735689600\n"))

	got := drainEvents(t, loop)
	if len(got) != 1 {
		t.Fatalf("events = %d; want 1", len(got))
	}
	if proto.Kind(got[0].Kind) != proto.EvTimeSync {
		t.Fatalf("event kind = %v; want %v", proto.Kind(got[0].Kind), proto.EvTimeSync)
	}
	unix, ok := proto.DecodeTimeSyncPayload(got[0].Payload())
	if !ok || unix != 1735689600 {
		t.Fatalf("decoded sync = (%d, %v); want (1735689600, true)", unix, ok)
	}
}

func TestTimeTopicRejectsGarbage(t *testing.T) {
	tcs := []string{"soon", "", "-5", "0", "12.5"}
	for _, payload := range tcs {
		loop := kernel.NewLoop(nil, 0)
		svc := New(Config{Loop: loop, ClientID: "dev"})
		_ = svc.onMessage(mqtt.Header{},
			mqtt.VariablesPublish{TopicName: []byte("ember/dev/time")},
			strings.NewReader(payload))
		if got := drainEvents(t, loop); len(got) != 0 {
			t.Fatalf("payload %q queued %d events; want 0", payload, len(got))
		}
	}
}

func TestForeignTopicIgnored(t *testing.T) {
	loop := kernel.NewLoop(nil, 0)
	svc := New(Config{Loop: loop, ClientID: "dev"})

	_ = svc.onMessage(mqtt.Header{},
		mqtt.VariablesPublish{TopicName: []byte("ember/other/cmd")},
		strings.NewReader("reboot"))

	if got := drainEvents(t, loop); len(got) != 0 {
		t.Fatalf("foreign topic queued %d events; want 0", len(got))
	}
}

func TestPacketIDSkipsZero(t *testing.T) {
	svc := New(Config{ClientID: "dev"})
	svc.pktID = 0xfffe
	want := []uint16{0xffff, 1, 2}
	for _, w := range want {
		if got := svc.nextID(); got != w {
			t.Fatalf("nextID() = %d; want %d", got, w)
		}
	}
}
