//go:build !tinygo

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"

	"ember/app"
	"ember/emberos/kernel"
	"ember/hal"
)

func main() {
	var hcfg hal.HeadlessConfig
	var headless, verbose bool
	var listen uint
	var broker, id string
	flag.BoolVar(&headless, "headless", false, "Run without a window; stdin/stdout are the console.")
	flag.IntVar(&hcfg.Hz, "hz", 100, "Step rate in headless mode.")
	flag.Uint64Var(&hcfg.Ticks, "ticks", 0, "Stop after N steps in headless mode (0 = run forever).")
	flag.UintVar(&listen, "listen", 2323, "Remote console port (0 = disabled).")
	flag.StringVar(&broker, "broker", "", "Telemetry broker, host or host:port (empty = disabled).")
	flag.StringVar(&id, "id", "ember-host", "Client id; telemetry topics live under ember/<id>/.")
	flag.BoolVar(&verbose, "verbose", false, "Mirror debug logs to stderr.")
	flag.Parse()

	if listen > 65535 {
		fmt.Fprintln(os.Stderr, "listen: port out of range")
		os.Exit(2)
	}

	cfg := app.Config{
		ListenPort:    uint16(listen),
		ClientID:      id,
		HostClockSync: true,
	}
	cfg.BrokerHost, cfg.BrokerPort = splitBroker(broker)
	if hn, err := os.Hostname(); err == nil {
		cfg.Addr = hn
		cfg.Hostname = hn
	}
	if verbose {
		cfg.LogOutput = os.Stderr
		cfg.LogLevel = slog.LevelDebug
	}

	newApp := func(h hal.HAL) func() error {
		return app.New(h, cfg).Step
	}

	var err error
	if headless {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		err = hal.RunHeadless(ctx, newApp, hcfg)
	} else {
		err = hal.RunWindow(newApp)
	}
	switch {
	case err == nil:
	case errors.Is(err, kernel.ErrRebootRequested):
		// The host analogue of a hardware reset is a clean exit.
	case errors.Is(err, context.Canceled):
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// splitBroker accepts "host" or "host:port". Port zero lets the system
// fall back to the MQTT default.
func splitBroker(s string) (host string, port uint16) {
	h, p, err := net.SplitHostPort(s)
	if err != nil {
		return s, 0
	}
	if n, err := strconv.ParseUint(p, 10, 16); err == nil {
		return h, uint16(n)
	}
	return h, 0
}
