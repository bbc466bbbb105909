// emberctl talks to the TCP remote console of a running system: one-shot
// commands, a live attach, rendered status, and saved device profiles.
package main

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

const defaultConsolePort = "2323"

func newRootCmd() *cobra.Command {
	cfg := viper.New()

	root := &cobra.Command{
		Use:           "emberctl",
		Short:         "Control a running EmberOS system over its remote console",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := root.PersistentFlags()
	pf.String("host", "", "Device address, host or host:port (default port "+defaultConsolePort+").")
	pf.String("secret", "", "Console secret; EMBERCTL_SECRET works too.")
	pf.String("profile", "", "Saved profile to take address and secret from.")

	cfg.SetEnvPrefix("EMBERCTL")
	cfg.AutomaticEnv()
	_ = cfg.BindPFlag("host", pf.Lookup("host"))
	_ = cfg.BindPFlag("secret", pf.Lookup("secret"))
	_ = cfg.BindPFlag("profile", pf.Lookup("profile"))

	root.AddCommand(
		newConsoleCmd(cfg),
		newRunCmd(cfg),
		newStatusCmd(cfg),
		newPSCmd(cfg),
		newProfileCmd(cfg),
		newVersionCmd(),
	)
	return root
}

type target struct {
	addr   string
	secret string
}

// resolveTarget produces the address and secret for a device command.
// Flags win over environment, environment over the named or default
// saved profile. A missing secret falls back to a terminal prompt.
func resolveTarget(cfg *viper.Viper) (target, error) {
	tgt := target{
		addr:   cfg.GetString("host"),
		secret: cfg.GetString("secret"),
	}

	name := cfg.GetString("profile")
	if name != "" || tgt.addr == "" {
		p, ok, err := lookupProfile(profilesPath(), name)
		if err != nil {
			return target{}, err
		}
		if !ok && name != "" {
			return target{}, fmt.Errorf("profile %q not found", name)
		}
		if ok {
			if tgt.addr == "" {
				tgt.addr = p.Host
			}
			if tgt.secret == "" {
				tgt.secret = p.Secret
			}
		}
	}

	if tgt.addr == "" {
		return target{}, errors.New("no device address: use --host, EMBERCTL_HOST, or a saved profile")
	}
	if _, _, err := net.SplitHostPort(tgt.addr); err != nil {
		tgt.addr = net.JoinHostPort(tgt.addr, defaultConsolePort)
	}
	if tgt.secret == "" {
		tgt.secret = promptSecret()
	}
	return tgt, nil
}

// promptSecret asks on the terminal when nothing else supplied a secret.
func promptSecret() string {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return ""
	}
	fmt.Fprint(os.Stderr, "secret: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return ""
	}
	return string(b)
}
