//go:build tinygo

package hal

import (
	"machine"
	"time"
)

const watchdogTimeoutMillis = 8000

type deviceHAL struct {
	serial *deviceSerial
	led    *pinLED
	t      *deviceTime
	store  FileStore
	net    Network

	// healthy gates every watchdog feed. Reset clears it, which also
	// silences the network pump's feeds.
	healthy bool
}

// New returns the Pico W HAL. The console is the USB serial port. The
// watchdog starts armed here, so the caller must reach the loop (which
// calls Heartbeat) within the timeout.
func New() HAL {
	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})

	machine.Watchdog.Configure(machine.WatchdogConfig{
		TimeoutMillis: watchdogTimeoutMillis,
	})
	machine.Watchdog.Start()

	return &deviceHAL{
		serial:  &deviceSerial{port: machine.Serial},
		led:     &pinLED{pin: machine.LED},
		t:       newDeviceTime(),
		store:   newFlashStore(),
		healthy: true,
	}
}

func (h *deviceHAL) Serial() Serial   { return h.serial }
func (h *deviceHAL) LED() LED         { return h.led }
func (h *deviceHAL) Store() FileStore { return h.store }
func (h *deviceHAL) Time() Time       { return h.t }
func (h *deviceHAL) Network() Network { return h.net }
func (h *deviceHAL) Display() Display { return nil }

func (h *deviceHAL) Heartbeat() {
	if h.healthy {
		machine.Watchdog.Update()
	}
}

// Reset starves the watchdog until it fires; the hardware reset it
// triggers is the only reliable restart on this chip.
func (h *deviceHAL) Reset() {
	h.healthy = false
	for {
		time.Sleep(time.Second)
	}
}

type pinLED struct {
	pin machine.Pin
}

func (l *pinLED) High() { l.pin.High() }
func (l *pinLED) Low()  { l.pin.Low() }

// deviceSerial adapts the USB serial port to the non-blocking byte
// contract.
type deviceSerial struct {
	port machine.Serialer
}

func (s *deviceSerial) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *deviceSerial) ReadByte() (byte, bool) {
	if s.port.Buffered() == 0 {
		return 0, false
	}
	b, err := s.port.ReadByte()
	if err != nil {
		return 0, false
	}
	return b, true
}

type deviceTime struct {
	ch  chan uint64
	seq uint64
}

func newDeviceTime() *deviceTime {
	t := &deviceTime{ch: make(chan uint64, 16)}
	go func() {
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for range ticker.C {
			t.seq++
			select {
			case t.ch <- t.seq:
			default:
			}
		}
	}()
	return t
}

func (t *deviceTime) Ticks() <-chan uint64 { return t.ch }

func (t *deviceTime) TickInterval() time.Duration { return time.Millisecond }
