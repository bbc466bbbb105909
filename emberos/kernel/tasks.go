package kernel

import "time"

// maxTasks bounds the background task table.
const maxTasks = 8

// Action is one non-blocking unit of background work, invoked once per loop
// iteration while its task is running. It must return promptly; a blocking
// action stalls the whole loop.
type Action func()

// StartResult describes the outcome of a task start attempt.
type StartResult uint8

const (
	StartOK StartResult = iota
	StartErrFull
	StartErrEmptyName
	StartErrExists
)

func (r StartResult) String() string {
	switch r {
	case StartOK:
		return "ok"
	case StartErrFull:
		return "task table full"
	case StartErrEmptyName:
		return "empty task name"
	case StartErrExists:
		return "task already running"
	default:
		return "unknown"
	}
}

// TaskInfo is one row of the running-task listing.
type TaskInfo struct {
	Name    string
	Elapsed time.Duration
}

type taskEntry struct {
	name    string
	tick    Action
	since   time.Duration
	stopped bool
}

// Table is the fixed-capacity background task table.
//
// Entries keep registration order. Stopping is cooperative: the entry is
// flagged and its action simply stops being invoked; the slot is reclaimed
// at the next safe point. All methods run on the loop goroutine.
type Table struct {
	entries [maxTasks]taskEntry
	n       int
	ticking bool

	// OnFault, when set, is told about an action that panicked. The
	// offending task has been stopped by the time it runs.
	OnFault func(name string, v any)
}

// Start registers a running task. Failure leaves the table unchanged.
func (t *Table) Start(name string, tick Action, now time.Duration) StartResult {
	if name == "" {
		return StartErrEmptyName
	}
	for i := 0; i < t.n; i++ {
		if !t.entries[i].stopped && t.entries[i].name == name {
			return StartErrExists
		}
	}
	if t.running() >= maxTasks {
		return StartErrFull
	}
	if t.n == maxTasks {
		// Physically full but holding stopped entries awaiting sweep.
		if t.ticking {
			return StartErrFull
		}
		t.sweep()
	}
	t.entries[t.n] = taskEntry{name: name, tick: tick, since: now}
	t.n++
	return StartOK
}

// Stop halts the named task. It reports whether the task was running;
// stopping an unknown name is a no-op.
func (t *Table) Stop(name string) bool {
	for i := 0; i < t.n; i++ {
		e := &t.entries[i]
		if e.stopped || e.name != name {
			continue
		}
		if t.ticking {
			e.stopped = true
			e.tick = nil
		} else {
			t.removeAt(i)
		}
		return true
	}
	return false
}

// TickAll invokes every running task's action in registration order.
// A panicking action is stopped and reported; the loop keeps going.
func (t *Table) TickAll() {
	t.sweep()
	t.ticking = true
	n0 := t.n
	for i := 0; i < n0; i++ {
		e := &t.entries[i]
		if e.stopped || e.tick == nil {
			continue
		}
		if v, ok := safeTick(e.tick); !ok {
			e.stopped = true
			e.tick = nil
			if t.OnFault != nil {
				t.OnFault(e.name, v)
			}
		}
	}
	t.ticking = false
	t.sweep()
}

func safeTick(tick Action) (v any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			v = r
			ok = false
		}
	}()
	tick()
	return nil, true
}

// Snapshot lists running tasks in registration order.
func (t *Table) Snapshot(now time.Duration) []TaskInfo {
	out := make([]TaskInfo, 0, t.n)
	for i := 0; i < t.n; i++ {
		if t.entries[i].stopped {
			continue
		}
		out = append(out, TaskInfo{
			Name:    t.entries[i].name,
			Elapsed: now - t.entries[i].since,
		})
	}
	return out
}

// Running reports whether the named task is live.
func (t *Table) Running(name string) bool {
	for i := 0; i < t.n; i++ {
		if !t.entries[i].stopped && t.entries[i].name == name {
			return true
		}
	}
	return false
}

// Len reports the number of running tasks.
func (t *Table) Len() int { return t.running() }

// Cap reports the fixed table capacity.
func (t *Table) Cap() int { return maxTasks }

func (t *Table) running() int {
	live := 0
	for i := 0; i < t.n; i++ {
		if !t.entries[i].stopped {
			live++
		}
	}
	return live
}

func (t *Table) sweep() {
	i := 0
	for i < t.n {
		if t.entries[i].stopped {
			t.removeAt(i)
			continue
		}
		i++
	}
}

func (t *Table) removeAt(i int) {
	copy(t.entries[i:t.n-1], t.entries[i+1:t.n])
	t.entries[t.n-1] = taskEntry{}
	t.n--
}
