package tasks

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"ember/emberos/kernel"
	"ember/emberos/services/shell"
	"ember/emberos/services/timebase"
)

type fakeLED struct {
	lit     bool
	toggles int
}

func (l *fakeLED) High() {
	l.lit = true
	l.toggles++
}

func (l *fakeLED) Low() {
	l.lit = false
	l.toggles++
}

func newAppSession(t *testing.T) (*shell.Session, *kernel.Loop, chan uint64, *bytes.Buffer) {
	t.Helper()
	ticks := make(chan uint64, 16)
	loop := kernel.NewLoop(ticks, time.Millisecond)
	var out bytes.Buffer
	s := shell.NewSession(&out, shell.Env{Loop: loop, Time: &timebase.TimeBase{}})
	return s, loop, ticks, &out
}

func stepAt(t *testing.T, loop *kernel.Loop, ticks chan uint64, seq uint64) {
	t.Helper()
	ticks <- seq
	if err := loop.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
}

func TestBlinkTogglesLED(t *testing.T) {
	s, loop, ticks, _ := newAppSession(t)
	led := &fakeLED{}
	s.Install(NewBlink(led))

	s.Exec("run blink")
	if loop.Tasks.Len() != 1 {
		t.Fatalf("blink task not registered")
	}

	stepAt(t, loop, ticks, 501)
	if !led.lit {
		t.Fatalf("LED off after first interval")
	}
	stepAt(t, loop, ticks, 1002)
	if led.lit {
		t.Fatalf("LED on after second interval")
	}

	s.Exec("stop")
	if loop.Tasks.Len() != 0 {
		t.Fatalf("blink task survived stop")
	}
	if led.lit {
		t.Fatalf("stop left the LED on")
	}
}

func TestBlinkSpeedBounds(t *testing.T) {
	s, _, _, out := newAppSession(t)
	led := &fakeLED{}
	s.Install(NewBlink(led))
	s.Exec("run blink")

	tcs := []string{"speed 10", "speed 9999", "speed fast"}
	for _, line := range tcs {
		out.Reset()
		s.Exec(line)
		if !strings.Contains(out.String(), "speed must be 50-5000 ms") {
			t.Fatalf("%q: output = %q", line, out.String())
		}
	}

	out.Reset()
	s.Exec("speed 100")
	if !strings.Contains(out.String(), "blink interval set to 100ms") {
		t.Fatalf("valid speed rejected: %q", out.String())
	}
}

func TestBlinkNeedsLED(t *testing.T) {
	s, loop, _, out := newAppSession(t)
	s.Install(NewBlink(nil))

	s.Exec("run blink")
	if !strings.Contains(out.String(), "no LED on this platform") {
		t.Fatalf("output = %q", out.String())
	}
	if s.ActiveApp() != nil {
		t.Fatalf("failed blink start left app active")
	}
	if loop.Tasks.Len() != 0 {
		t.Fatalf("failed blink start registered a task")
	}
}

func TestClockShowBeforeAndAfterSync(t *testing.T) {
	s, _, _, out := newAppSession(t)
	s.Install(NewClock())
	s.Exec("run clock")

	out.Reset()
	s.Exec("show")
	if !strings.Contains(out.String(), "waiting for time sync") {
		t.Fatalf("unsynced show = %q", out.String())
	}

	s.Env().Time.Set(time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC), 0)
	out.Reset()
	s.Exec("show")
	got := out.String()
	if !strings.Contains(got, "09:30:00") || !strings.Contains(got, "2024-06-01") {
		t.Fatalf("synced show = %q", got)
	}
}

func TestClockAnnouncesSync(t *testing.T) {
	s, loop, ticks, out := newAppSession(t)
	s.Install(NewClock())
	s.Exec("run clock")

	out.Reset()
	stepAt(t, loop, ticks, 1)
	if strings.Contains(out.String(), "time synced") {
		t.Fatalf("sync announced before sync: %q", out.String())
	}

	s.Env().Time.Set(time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC), 0)
	stepAt(t, loop, ticks, 2)
	if !strings.Contains(out.String(), "time synced.") {
		t.Fatalf("sync not announced: %q", out.String())
	}

	// Announced once only.
	out.Reset()
	stepAt(t, loop, ticks, 3)
	if strings.Contains(out.String(), "time synced") {
		t.Fatalf("sync announced twice")
	}
}

func TestTodoLifecycle(t *testing.T) {
	s, _, _, out := newAppSession(t)
	s.Install(NewTodo())
	s.Exec("run todo")

	s.Exec("add write tests")
	s.Exec("add ship it")

	out.Reset()
	s.Exec("add one too many")
	if !strings.Contains(out.String(), "list full (max 2 tasks)") {
		t.Fatalf("third add: %q", out.String())
	}

	s.Exec("done 1")
	out.Reset()
	s.Exec("list")
	got := out.String()
	if !strings.Contains(got, "1. [x] write tests") || !strings.Contains(got, "2. [ ] ship it") {
		t.Fatalf("list = %q", got)
	}

	s.Exec("del 1")
	out.Reset()
	s.Exec("list")
	if !strings.Contains(out.String(), "1. [ ] ship it") {
		t.Fatalf("list after del = %q", out.String())
	}

	out.Reset()
	s.Exec("done 5")
	if !strings.Contains(out.String(), "invalid task number") {
		t.Fatalf("bad slot: %q", out.String())
	}
}

func TestTodoItemsSurviveRestart(t *testing.T) {
	s, _, _, out := newAppSession(t)
	s.Install(NewTodo())

	s.Exec("run todo")
	s.Exec("add keep me")
	s.Exec("stop")

	s.Exec("run todo")
	out.Reset()
	s.Exec("list")
	if !strings.Contains(out.String(), "keep me") {
		t.Fatalf("items lost across restart: %q", out.String())
	}
}

func TestTodoTruncatesLongText(t *testing.T) {
	s, _, _, out := newAppSession(t)
	s.Install(NewTodo())
	s.Exec("run todo")

	s.Exec("add abcdefghijklmnopqrstuvwxyz")
	out.Reset()
	s.Exec("list")
	if !strings.Contains(out.String(), "abcdefghijklmn") {
		t.Fatalf("list = %q", out.String())
	}
	if strings.Contains(out.String(), "abcdefghijklmno") {
		t.Fatalf("text not truncated: %q", out.String())
	}
}
