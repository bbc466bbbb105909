package shell

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ember/emberos/services/settings"
	"ember/internal/buildinfo"
)

func registerCoreCommands(r *registry) {
	for _, cmd := range []Command{
		{Name: "help", Usage: "help [command]", Desc: "Show available commands.", Max: 1, Run: cmdHelp},
		{Name: "clear", Usage: "clear", Desc: "Clear the terminal.", Run: cmdClear},
		{Name: "echo", Usage: "echo [args...]", Desc: "Print arguments.", Max: -1, Run: cmdEcho},
		{Name: "status", Usage: "status", Desc: "Show system status.", Run: cmdStatus},
		{Name: "uptime", Usage: "uptime", Desc: "Show time since boot.", Run: cmdUptime},
		{Name: "time", Usage: "time [set <unix-seconds>]", Desc: "Show or set wall-clock time.", Max: 2, Run: cmdTime},
		{Name: "tz", Usage: "tz [minutes]", Desc: "Show or set the display UTC offset.", Max: 1, Run: cmdZone},
		{Name: "log", Usage: "log [n]", Desc: "Show the last N system log lines.", Max: 1, Run: cmdLog},
		{Name: "version", Usage: "version", Desc: "Show build version.", Run: cmdVersion},
		{Name: "reboot", Usage: "reboot", Desc: "Restart the system.", Run: cmdReboot},
		{Name: "panic", Usage: "panic", Desc: "Panic the dispatcher (test).", Run: cmdPanic},
	} {
		r.add(cmd)
	}
}

func cmdHelp(s *Session, args []string) error {
	if len(args) == 1 {
		cmd, ok := s.reg.resolve(args[0])
		if !ok && s.appReg != nil {
			cmd, ok = s.appReg.resolve(args[0])
		}
		if !ok {
			return fmt.Errorf("unknown command: %s", args[0])
		}
		s.Printf("usage: %s\n", cmd.Usage)
		if cmd.Desc != "" {
			s.Print(cmd.Desc + "\n")
		}
		return nil
	}

	for _, name := range s.reg.names() {
		cmd, ok := s.reg.resolve(name)
		if !ok {
			continue
		}
		s.Printf("%-10s %s\n", cmd.Name, cmd.Desc)
	}
	if s.app != nil && s.appReg != nil {
		s.Printf("\n%s commands:\n", s.app.Name())
		for _, name := range s.appReg.names() {
			cmd, ok := s.appReg.resolve(name)
			if !ok {
				continue
			}
			s.Printf("%-10s %s\n", cmd.Name, cmd.Desc)
		}
	}
	return nil
}

func cmdClear(s *Session, _ []string) error {
	s.Print("\x1b[2J\x1b[H")
	return nil
}

func cmdEcho(s *Session, args []string) error {
	s.Print(strings.Join(args, " ") + "\n")
	return nil
}

func cmdStatus(s *Session, _ []string) error {
	env := s.Env()
	addr := ""
	if env.Addr != nil {
		addr = env.Addr()
	}
	if addr == "" {
		addr = "down"
	}
	synced := "no"
	if env.Time != nil && env.Time.Synced() {
		synced = "yes"
	}
	s.Printf("%-8s %s\n", "addr", addr)
	s.Printf("%-8s %s\n", "uptime", fmtUptime(s.uptime()))
	s.Printf("%-8s %s\n", "synced", synced)
	if env.Loop != nil {
		s.Printf("%-8s %d running\n", "tasks", env.Loop.Tasks.Len())
		s.Printf("%-8s %d dropped\n", "events", env.Loop.Events.Dropped())
	}
	return nil
}

func cmdUptime(s *Session, _ []string) error {
	s.Printf("up %s\n", fmtUptime(s.uptime()))
	return nil
}

func cmdTime(s *Session, args []string) error {
	env := s.Env()
	if env.Time == nil {
		return errors.New("no time base")
	}

	if len(args) == 0 {
		t, ok := env.Time.Now(s.uptime())
		if !ok {
			s.Printf("time not synced (up %s)\n", fmtUptime(s.uptime()))
			return nil
		}
		t = env.Time.Local(t)
		s.Printf("%s\n", t.Format("2006-01-02 15:04:05"))
		return nil
	}

	if args[0] != "set" || len(args) != 2 {
		return errors.New("usage: time [set <unix-seconds>]")
	}
	sec, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || sec <= 0 {
		return fmt.Errorf("bad timestamp %q", args[1])
	}
	env.Time.Set(time.Unix(sec, 0).UTC(), s.uptime())
	s.Print("time set.\n")
	return nil
}

func cmdZone(s *Session, args []string) error {
	env := s.Env()
	if env.Time == nil {
		return errors.New("no time base")
	}
	if len(args) == 0 {
		s.Printf("tz offset: %+d min\n", env.Time.Zone())
		return nil
	}
	minutes, err := strconv.Atoi(args[0])
	if err != nil || minutes < -14*60 || minutes > 14*60 {
		return fmt.Errorf("bad offset %q (minutes, -840..840)", args[0])
	}
	env.Time.SetZone(minutes)
	if env.Store != nil {
		if err := settings.SaveZone(env.Store, minutes); err != nil {
			return err
		}
	}
	s.Printf("tz offset set to %+d min\n", minutes)
	return nil
}

func cmdLog(s *Session, args []string) error {
	env := s.Env()
	if env.Log == nil {
		s.Print("(no log)\n")
		return nil
	}
	n := 20
	if len(args) == 1 {
		if parsed, err := strconv.Atoi(args[0]); err == nil && parsed > 0 {
			n = parsed
		}
	}
	lines := env.Log.Lines()
	start := len(lines) - n
	if start < 0 {
		start = 0
	}
	if start >= len(lines) {
		s.Print("(empty)\n")
		return nil
	}
	for _, ln := range lines[start:] {
		s.Print(ln + "\n")
	}
	return nil
}

func cmdVersion(s *Session, _ []string) error {
	s.Print(buildinfo.Line() + "\n")
	return nil
}

func cmdReboot(s *Session, _ []string) error {
	env := s.Env()
	if env.Loop == nil {
		return errors.New("no loop")
	}
	s.Print("rebooting...\n")
	env.Loop.RequestReboot(500 * time.Millisecond)
	return nil
}

func cmdPanic(_ *Session, _ []string) error {
	panic("shell panic")
}

func fmtUptime(d time.Duration) string {
	return d.Truncate(time.Second).String()
}
