// Package timebase tracks wall-clock time relative to monotonic uptime.
//
// The system boots with no idea what time it is. Once an external source
// (time sync, broker timestamp, operator command) delivers a wall-clock
// reading, Set anchors it against the uptime at which it arrived. Now then
// extrapolates from that anchor. Until the first Set, Now reports unsynced
// and callers fall back to showing raw uptime.
package timebase

import "time"

// ResyncInterval is how often a time sync attempt is scheduled. Failed
// attempts retry on the same fixed cadence.
const ResyncInterval = 15 * time.Minute

// TimeBase converts monotonic uptime into wall-clock time after a sync.
// The zero value is unsynced.
type TimeBase struct {
	synced   bool
	wall     time.Time
	anchor   time.Duration
	tzOffset time.Duration
}

// Set anchors wall-clock time wall at monotonic uptime up. Calling it
// again replaces the previous anchor wholesale.
func (tb *TimeBase) Set(wall time.Time, up time.Duration) {
	tb.wall = wall
	tb.anchor = up
	tb.synced = true
}

// Now reports the wall-clock time at uptime up. ok is false before the
// first Set, and the returned time is then meaningless.
func (tb *TimeBase) Now(up time.Duration) (t time.Time, ok bool) {
	if !tb.synced {
		return time.Time{}, false
	}
	return tb.wall.Add(up - tb.anchor), true
}

// Synced reports whether a wall-clock anchor has been established.
func (tb *TimeBase) Synced() bool { return tb.synced }

// SetZone sets the display offset from UTC in minutes. It affects only
// how Local renders times, never the stored anchor.
func (tb *TimeBase) SetZone(minutes int) {
	tb.tzOffset = time.Duration(minutes) * time.Minute
}

// Zone returns the display offset in minutes.
func (tb *TimeBase) Zone() int {
	return int(tb.tzOffset / time.Minute)
}

// Local shifts t by the configured zone offset for display.
func (tb *TimeBase) Local(t time.Time) time.Time {
	return t.Add(tb.tzOffset)
}

// Resync schedules fixed-interval sync attempts. Due reports whether an
// attempt should run at uptime up; Done records the attempt so the next
// one waits a full interval regardless of success.
type Resync struct {
	interval time.Duration
	next     time.Duration
}

// NewResync returns a scheduler that first fires immediately and then
// every interval. A zero interval uses ResyncInterval.
func NewResync(interval time.Duration) *Resync {
	if interval <= 0 {
		interval = ResyncInterval
	}
	return &Resync{interval: interval}
}

// Due reports whether a sync attempt should run at uptime up.
func (r *Resync) Due(up time.Duration) bool { return up >= r.next }

// Done records that an attempt ran at uptime up.
func (r *Resync) Done(up time.Duration) { r.next = up + r.interval }
