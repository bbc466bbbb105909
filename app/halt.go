package app

import (
	"fmt"
	"log/slog"
	"strings"
)

// halt writes the fatal fault diagnostic to the log and every console
// sink, then hands the fault to the runner as an error. There is no
// automatic restart: the runner exits (host) or parks feeding the
// watchdog (device).
func (s *System) halt(v any) error {
	s.log.Error("fault", slog.Any("panic", v))

	s.sess.Printf("\n*** fatal fault: %v ***\n", v)
	if stack := captureStack(); len(stack) > 0 {
		for _, line := range strings.Split(string(stack), "\n") {
			if line == "" {
				continue
			}
			s.sess.Print(line + "\n")
		}
	}
	s.sess.Print("system halted.\n")
	if s.term != nil {
		s.term.Flush()
	}

	if s.remote != nil {
		s.remote.Close()
	}
	if s.tele != nil {
		s.tele.Close()
	}
	return fmt.Errorf("fatal fault: %v", v)
}
