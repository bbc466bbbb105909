//go:build tinygo

package main

import (
	"errors"
	"strconv"
	"time"

	"ember/app"
	"ember/emberos/kernel"
	"ember/hal"
)

// Flash-time settings, overridable with -ldflags:
//
//	tinygo flash -target=pico-w -scheduler=tasks \
//	    -ldflags="-X main.brokerHost=10.0.0.2" .
//
// Build with -scheduler=tasks; the network pump needs its own goroutine.
var (
	brokerHost = ""
	brokerPort = ""
	clientID   = "ember"
	listenPort = "23"
)

func main() {
	h := hal.New()

	sys := app.New(h, app.Config{
		ListenPort: parsePort(listenPort, 23),
		BrokerHost: brokerHost,
		BrokerPort: parsePort(brokerPort, 0),
		ClientID:   clientID,
		Hostname:   clientID,
		Connect: func(name, secret, hostname string) (string, error) {
			addr, err := hal.ConnectWiFi(h, name, secret, hostname)
			if err != nil {
				return "", err
			}
			return addr.String(), nil
		},
	})

	for {
		if err := sys.Step(); err != nil {
			if errors.Is(err, kernel.ErrRebootRequested) {
				h.Reset()
			}
			// Fatal fault: keep the diagnostic on the console and the
			// watchdog fed. Recovery is a physical reset.
			for {
				h.Heartbeat()
				time.Sleep(time.Second)
			}
		}
		h.Heartbeat()
		time.Sleep(5 * time.Millisecond)
	}
}

func parsePort(s string, def uint16) uint16 {
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return def
	}
	return uint16(n)
}
