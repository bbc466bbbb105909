package timebase

import (
	"testing"
	"time"
)

func TestNowUnsetBeforeSet(t *testing.T) {
	var tb TimeBase
	if _, ok := tb.Now(5 * time.Second); ok {
		t.Fatalf("Now before Set reported synced")
	}
	if tb.Synced() {
		t.Fatalf("Synced before Set = true; want false")
	}
}

func TestSetThenNowExact(t *testing.T) {
	var tb TimeBase
	wall := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tb.Set(wall, 90*time.Second)

	got, ok := tb.Now(90 * time.Second)
	if !ok {
		t.Fatalf("Now after Set reported unsynced")
	}
	if !got.Equal(wall) {
		t.Fatalf("Now at anchor = %v; want %v", got, wall)
	}

	got, _ = tb.Now(100 * time.Second)
	if want := wall.Add(10 * time.Second); !got.Equal(want) {
		t.Fatalf("Now 10s later = %v; want %v", got, want)
	}
}

func TestSetReplacesAnchor(t *testing.T) {
	var tb TimeBase
	tb.Set(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 10*time.Second)

	wall := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	tb.Set(wall, 20*time.Second)

	got, _ := tb.Now(20 * time.Second)
	if !got.Equal(wall) {
		t.Fatalf("Now after re-anchor = %v; want %v", got, wall)
	}
}

func TestZoneAffectsOnlyRendering(t *testing.T) {
	var tb TimeBase
	wall := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tb.Set(wall, 0)
	tb.SetZone(120)

	got, _ := tb.Now(0)
	if !got.Equal(wall) {
		t.Fatalf("Now with zone = %v; want unchanged %v", got, wall)
	}
	if local := tb.Local(got); local.Hour() != 14 {
		t.Fatalf("Local hour = %d; want 14", local.Hour())
	}
	if tb.Zone() != 120 {
		t.Fatalf("Zone = %d; want 120", tb.Zone())
	}
}

func TestResyncFixedSchedule(t *testing.T) {
	r := NewResync(10 * time.Second)

	if !r.Due(0) {
		t.Fatalf("first attempt not due at boot")
	}
	r.Done(0)

	if r.Due(9 * time.Second) {
		t.Fatalf("attempt due before interval elapsed")
	}
	if !r.Due(10 * time.Second) {
		t.Fatalf("attempt not due after interval")
	}

	// A failed attempt waits the same fixed interval, no backoff.
	r.Done(10 * time.Second)
	if r.Due(19 * time.Second) {
		t.Fatalf("retry due early; schedule must stay fixed")
	}
	if !r.Due(20 * time.Second) {
		t.Fatalf("retry not due after fixed interval")
	}
}
