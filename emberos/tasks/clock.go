package tasks

import (
	"errors"

	"ember/emberos/kernel"
	"ember/emberos/services/shell"
)

// Clock shows wall-clock time once a sync has landed. Its background
// tick watches for the first sync and announces it.
type Clock struct {
	env      *shell.Env
	notified bool
}

func NewClock() *Clock { return &Clock{} }

func (c *Clock) Name() string { return "clock" }
func (c *Clock) Desc() string { return "Wall-clock display (needs time sync)." }

func (c *Clock) Commands() []shell.Command {
	return []shell.Command{{
		Name: "show", Usage: "show", Desc: "Display the current time.",
		Run: c.cmdShow,
	}}
}

func (c *Clock) Start(s *shell.Session) error {
	env := s.Env()
	c.env = env
	c.notified = env.Time.Synced()

	step := func() { c.step(s) }
	if res := env.Loop.Tasks.Start("clock", step, env.Loop.Uptime()); res != kernel.StartOK {
		return errors.New(res.String())
	}
	if c.notified {
		s.Print("clock started. 'show' to display the time.\n")
	} else {
		s.Print("clock started; waiting for time sync...\n")
	}
	return nil
}

func (c *Clock) Stop(s *shell.Session) {
	c.env.Loop.Tasks.Stop("clock")
	s.Print("clock stopped.\n")
}

func (c *Clock) step(s *shell.Session) {
	if c.notified || !c.env.Time.Synced() {
		return
	}
	c.notified = true
	s.Print("\ntime synced.\n")
	s.Prompt()
}

func (c *Clock) cmdShow(s *shell.Session, _ []string) error {
	env := s.Env()
	t, ok := env.Time.Now(env.Loop.Uptime())
	if !ok {
		s.Print("waiting for time sync; try again shortly.\n")
		return nil
	}
	t = env.Time.Local(t)
	s.Printf("time: %s\n", t.Format("15:04:05"))
	s.Printf("date: %s\n", t.Format("2006-01-02 Mon"))
	return nil
}
