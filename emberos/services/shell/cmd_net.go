package shell

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"ember/emberos/kernel"
	"ember/emberos/services/settings"
	"ember/hal"
)

const (
	probeTimeout = 2 * time.Second
	// Scans run one port per loop iteration; the timeout stays short so a
	// closed port stalls the loop only briefly.
	scanTimeout  = 200 * time.Millisecond
	scanMaxPorts = 256
)

func registerNetCommands(r *registry) {
	for _, cmd := range []Command{
		{Name: "probe", Usage: "probe <host> <port>", Desc: "Check one TCP port.", Min: 2, Max: 2, Run: cmdProbe},
		{Name: "scan", Usage: "scan <host> <first> <last>", Desc: "Scan a TCP port range in the background.", Min: 3, Max: 3, Run: cmdScan},
		{Name: "net", Usage: "net show|set <name> [secret]|clear", Desc: "Manage stored network credentials.", Min: 1, Max: 3, Run: cmdNet},
	} {
		r.add(cmd)
	}
}

func cmdProbe(s *Session, args []string) error {
	env := s.Env()
	if env.Net == nil {
		return errors.New("no network on this platform")
	}
	port, err := parsePort(args[1])
	if err != nil {
		return err
	}
	res := env.Net.Probe(args[0], port, probeTimeout)
	s.Printf("%s:%d %s\n", args[0], port, res)
	return nil
}

func cmdScan(s *Session, args []string) error {
	env := s.Env()
	if env.Net == nil {
		return errors.New("no network on this platform")
	}
	if env.Loop == nil {
		return errors.New("no loop")
	}
	host := args[0]
	first, err := parsePort(args[1])
	if err != nil {
		return err
	}
	last, err := parsePort(args[2])
	if err != nil {
		return err
	}
	if last < first {
		return fmt.Errorf("bad range %d..%d", first, last)
	}
	if int(last)-int(first)+1 > scanMaxPorts {
		return fmt.Errorf("range too wide (max %d ports)", scanMaxPorts)
	}

	cursor := int(first)
	open := 0
	tick := func() {
		if cursor > int(last) {
			s.Printf("scan: done, %d open\n", open)
			env.Loop.Tasks.Stop("scan")
			return
		}
		port := uint16(cursor)
		cursor++
		if env.Net.Probe(host, port, scanTimeout) == hal.ProbeOpen {
			open++
			s.Printf("scan: %s:%d open\n", host, port)
		}
	}

	if res := env.Loop.Tasks.Start("scan", tick, env.Loop.Uptime()); res != kernel.StartOK {
		return errors.New(res.String())
	}
	s.Printf("scanning %s ports %d..%d ('kill scan' to abort)\n", host, first, last)
	return nil
}

func cmdNet(s *Session, args []string) error {
	env := s.Env()
	if env.Store == nil {
		return errors.New("no settings store")
	}

	switch args[0] {
	case "show":
		creds, err := settings.LoadCredentials(env.Store)
		if errors.Is(err, settings.ErrNoCredentials) {
			s.Print("no credentials stored.\n")
			return nil
		}
		if err != nil {
			return err
		}
		secret := "(none)"
		if creds.Secret != "" {
			secret = "****"
		}
		s.Printf("%-8s %s\n", "network", creds.Name)
		s.Printf("%-8s %s\n", "secret", secret)
		return nil

	case "set":
		if len(args) < 2 {
			return errors.New("usage: net set <name> [secret]")
		}
		creds := settings.Credentials{Name: args[1]}
		if len(args) == 3 {
			creds.Secret = args[2]
		} else {
			creds.Secret = s.ReadLine("secret: ", EchoMasked)
		}
		if err := settings.SaveCredentials(env.Store, creds); err != nil {
			return err
		}
		s.Print("credentials saved (applied at next boot).\n")
		return nil

	case "clear":
		if err := settings.ClearCredentials(env.Store); err != nil {
			return err
		}
		s.Print("credentials cleared.\n")
		return nil

	default:
		return fmt.Errorf("unknown subcommand %q (show, set, clear)", args[0])
	}
}

func parsePort(s string) (uint16, error) {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("bad port %q", s)
	}
	return uint16(n), nil
}
