// Package tasks holds the built-in foreground applications: blink, clock
// and todo. Each pairs a shell app with the background tick it registers.
package tasks

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"ember/emberos/kernel"
	"ember/emberos/services/shell"
	"ember/hal"
)

const (
	blinkDefault = 500 * time.Millisecond
	blinkMin     = 50 * time.Millisecond
	blinkMax     = 5 * time.Second
)

// Blink toggles the board LED on a configurable interval.
type Blink struct {
	led      hal.LED
	env      *shell.Env
	interval time.Duration
	next     time.Duration
	on       bool
}

func NewBlink(led hal.LED) *Blink { return &Blink{led: led} }

func (b *Blink) Name() string { return "blink" }
func (b *Blink) Desc() string { return "Blink the board LED." }

func (b *Blink) Commands() []shell.Command {
	return []shell.Command{{
		Name: "speed", Usage: "speed <ms>", Desc: "Set the blink interval (50-5000 ms).",
		Min: 1, Max: 1, Run: b.cmdSpeed,
	}}
}

func (b *Blink) Start(s *shell.Session) error {
	if b.led == nil {
		return errors.New("no LED on this platform")
	}
	env := s.Env()
	b.env = env
	b.interval = blinkDefault
	b.on = false
	b.next = env.Loop.Uptime() + b.interval

	if res := env.Loop.Tasks.Start("blink", b.step, env.Loop.Uptime()); res != kernel.StartOK {
		return errors.New(res.String())
	}
	s.Printf("blinking every %dms. 'speed <ms>' to change, 'stop' to exit.\n", b.interval/time.Millisecond)
	return nil
}

func (b *Blink) Stop(s *shell.Session) {
	b.env.Loop.Tasks.Stop("blink")
	b.led.Low()
	b.on = false
	s.Print("LED blink stopped.\n")
}

func (b *Blink) step() {
	up := b.env.Loop.Uptime()
	if up < b.next {
		return
	}
	b.next = up + b.interval
	b.on = !b.on
	if b.on {
		b.led.High()
	} else {
		b.led.Low()
	}
}

func (b *Blink) cmdSpeed(s *shell.Session, args []string) error {
	ms, err := strconv.Atoi(args[0])
	d := time.Duration(ms) * time.Millisecond
	if err != nil || d < blinkMin || d > blinkMax {
		return fmt.Errorf("speed must be %d-%d ms", blinkMin/time.Millisecond, blinkMax/time.Millisecond)
	}
	b.interval = d
	b.next = b.env.Loop.Uptime() + d
	s.Printf("blink interval set to %dms.\n", ms)
	return nil
}
