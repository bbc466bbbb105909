package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

// detachKey is Ctrl-], the classic telnet escape.
const detachKey = 0x1d

func newConsoleCmd(cfg *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Attach a live console to the system",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tgt, err := resolveTarget(cfg)
			if err != nil {
				return err
			}
			c, err := dialConsole(tgt.addr, tgt.secret)
			if err != nil {
				return err
			}
			defer c.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "attached to %s; Ctrl-] detaches.\n", tgt.addr)
			return relay(c.conn)
		},
	}
}

// relay runs the attached session: the terminal goes raw and bytes flow
// both ways until the user hits the detach key or the device drops the
// connection. The device drives echo over telnet negotiation; outside
// password entry the relay echoes keystrokes locally.
func relay(conn net.Conn) error {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		oldState, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("raw mode: %w", err)
		}
		defer term.Restore(fd, oldState)
	}

	// Detached pump so the relay can select on keys and cancellation; the
	// final blocked read dies with the process.
	keys := make(chan byte, 16)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				close(keys)
				return
			}
			if n > 0 {
				keys <- buf[0]
			}
		}
	}()

	var localEcho atomic.Bool
	localEcho.Store(true)

	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		filter := telnetFilter{echo: &localEcho}
		buf := make([]byte, 512)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				if _, werr := os.Stdout.Write(filter.strip(buf[:n])); werr != nil {
					return werr
				}
			}
			if err != nil {
				return err
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case b, ok := <-keys:
				if !ok || b == detachKey {
					_ = conn.Close()
					return nil
				}
				if localEcho.Load() {
					echoByte(b)
				}
				if _, err := conn.Write([]byte{b}); err != nil {
					return nil
				}
			}
		}
	})

	_ = g.Wait()
	fmt.Print("\r\ndetached.\r\n")
	return nil
}

func echoByte(b byte) {
	switch {
	case b == '\r':
		_, _ = os.Stdout.WriteString("\r\n")
	case b == 0x7f || b == 0x08:
		_, _ = os.Stdout.WriteString("\b \b")
	case b >= 0x20 && b < 0x7f:
		_, _ = os.Stdout.Write([]byte{b})
	}
}
