//go:build !tinygo

package hal

import (
	"os"
	"sync"
)

type hostHAL struct {
	led    *hostLED
	fb     *hostFramebuffer
	kbd    *hostKeyboard
	t      *hostTime
	store  *hostStore
	net    Network
	serial *hostSerial
	window bool
}

// New returns a host HAL implementation. The serial console is stdin and
// stdout; settings live under EMBER_DATA_DIR (default ~/.ember).
func New() HAL {
	return &hostHAL{
		led:    &hostLED{},
		fb:     newHostFramebuffer(320, 240),
		kbd:    newHostKeyboard(),
		t:      newHostTime(),
		store:  newHostStore(),
		net:    newHostNetwork(),
		serial: newHostSerial(os.Stdin, os.Stdout),
	}
}

func (h *hostHAL) Serial() Serial   { return h.serial }
func (h *hostHAL) LED() LED         { return h.led }
func (h *hostHAL) Store() FileStore { return h.store }
func (h *hostHAL) Time() Time       { return h.t }
func (h *hostHAL) Network() Network { return h.net }

// Display reports a framebuffer only when a window shows it; headless runs
// have nothing to present to.
func (h *hostHAL) Display() Display {
	if !h.window {
		return nil
	}
	return hostDisplay{fb: h.fb}
}

func (h *hostHAL) Heartbeat() {}

func (h *hostHAL) Reset() { os.Exit(0) }

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostLED struct {
	mu sync.Mutex
	on bool
}

func (l *hostLED) High() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.on = true
}

func (l *hostLED) Low() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.on = false
}

// Lit reports the current LED state; the window draws it as an indicator.
func (l *hostLED) Lit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.on
}
