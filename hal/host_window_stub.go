//go:build !tinygo && !cgo

package hal

import "errors"

func RunWindow(_ func(h HAL) func() error) error {
	return errors.New("window mode needs cgo; rebuild with CGO_ENABLED=1 or run -headless")
}
