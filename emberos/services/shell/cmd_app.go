package shell

import "fmt"

func registerAppCommands(r *registry) {
	for _, cmd := range []Command{
		{Name: "apps", Usage: "apps", Desc: "List installed applications.", Run: cmdApps},
		{Name: "run", Usage: "run <app>", Desc: "Start an application.", Min: 1, Max: 1, Run: cmdRun},
		{Name: "stop", Usage: "stop", Desc: "Stop the running application.", Run: cmdStop},
		{Name: "current", Usage: "current", Desc: "Show the running application.", Run: cmdCurrent},
	} {
		r.add(cmd)
	}
}

func cmdApps(s *Session, _ []string) error {
	if len(s.apps) == 0 {
		s.Print("no applications installed.\n")
		return nil
	}
	for _, app := range s.apps {
		s.Printf("%-10s %s\n", app.Name(), app.Desc())
	}
	s.Print("\nUse 'run <app>' to start one.\n")
	return nil
}

func cmdRun(s *Session, args []string) error {
	name := args[0]
	for _, app := range s.apps {
		if app.Name() == name {
			return s.startApp(app)
		}
	}
	return fmt.Errorf("unknown app: %s (try 'apps')", name)
}

func cmdStop(s *Session, _ []string) error {
	if s.app == nil {
		s.Print("no application running.\n")
		return nil
	}
	s.stopApp()
	return nil
}

func cmdCurrent(s *Session, _ []string) error {
	if s.app == nil {
		s.Print("no application running.\n")
		return nil
	}
	s.Printf("current application: %s\n", s.app.Name())
	return nil
}
