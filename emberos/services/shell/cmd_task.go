package shell

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"ember/emberos/kernel"
)

func registerTaskCommands(r *registry) {
	for _, cmd := range []Command{
		{Name: "ps", Usage: "ps", Desc: "List background tasks.", Run: cmdPS},
		{Name: "kill", Usage: "kill <task>", Desc: "Stop a background task.", Min: 1, Max: 1, Run: cmdKill},
		{Name: "countdown", Usage: "countdown <seconds>", Desc: "Count down in the background.", Min: 1, Max: 1, Run: cmdCountdown},
	} {
		r.add(cmd)
	}
}

func cmdPS(s *Session, _ []string) error {
	env := s.Env()
	if env.Loop == nil {
		return errors.New("no loop")
	}
	infos := env.Loop.Tasks.Snapshot(env.Loop.Uptime())
	if len(infos) == 0 {
		s.Print("no background tasks.\n")
		return nil
	}
	s.Printf("%-12s %s\n", "NAME", "ELAPSED")
	for _, ti := range infos {
		s.Printf("%-12s %s\n", ti.Name, ti.Elapsed.Truncate(time.Second))
	}
	return nil
}

func cmdKill(s *Session, args []string) error {
	env := s.Env()
	if env.Loop == nil {
		return errors.New("no loop")
	}
	name := args[0]
	if !env.Loop.Tasks.Stop(name) {
		s.Printf("task not found: %s\n", name)
		return nil
	}
	s.Printf("stopped %s\n", name)
	return nil
}

func cmdCountdown(s *Session, args []string) error {
	env := s.Env()
	if env.Loop == nil {
		return errors.New("no loop")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 || n > 3600 {
		return fmt.Errorf("bad duration %q (seconds, 1..3600)", args[0])
	}

	remaining := n
	next := env.Loop.Uptime() + time.Second
	tick := func() {
		up := env.Loop.Uptime()
		if up < next {
			return
		}
		next += time.Second
		remaining--
		if remaining <= 0 {
			s.Print("countdown: done\n")
			env.Loop.Tasks.Stop("countdown")
			return
		}
		s.Printf("countdown: %d\n", remaining)
	}

	if res := env.Loop.Tasks.Start("countdown", tick, env.Loop.Uptime()); res != kernel.StartOK {
		return errors.New(res.String())
	}
	s.Printf("countdown started: %ds\n", n)
	return nil
}
