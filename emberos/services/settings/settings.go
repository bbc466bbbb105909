// Package settings persists the small set of operator-configurable values:
// network credentials and the display time zone. Each value lives in its own
// file on whatever store the platform provides. Files are read once at boot
// and rewritten wholesale on every change.
package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	// CredsFile holds the network name and secret, in that order, separated
	// by a single newline. There is no escaping, which is why newlines are
	// rejected inside either field.
	CredsFile = "wifi.cfg"

	// ZoneFile holds the display offset from UTC as decimal minutes.
	ZoneFile = "tz.cfg"

	// MaxFieldLen bounds each stored field.
	MaxFieldLen = 64
)

var (
	ErrNoCredentials = errors.New("no stored credentials")
	ErrMalformed     = errors.New("malformed settings file")
	ErrFieldTooLong  = errors.New("field too long")
	ErrFieldNewline  = errors.New("field contains newline")
	ErrEmptyName     = errors.New("empty network name")
)

// Store is the minimal file access the settings layer needs. Missing files
// surface as an error from ReadFile; the concrete kind is store-specific,
// so Load treats any read failure on an absent file as "not configured".
type Store interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte) error
	Remove(name string) error
}

// Credentials is a stored network name and secret.
type Credentials struct {
	Name   string
	Secret string
}

// LoadCredentials reads the credential file. It returns ErrNoCredentials
// when nothing has been stored yet.
func LoadCredentials(s Store) (Credentials, error) {
	raw, err := s.ReadFile(CredsFile)
	if err != nil {
		return Credentials{}, ErrNoCredentials
	}
	i := strings.IndexByte(string(raw), '\n')
	if i < 0 {
		return Credentials{}, fmt.Errorf("%s: %w", CredsFile, ErrMalformed)
	}
	c := Credentials{
		Name:   string(raw[:i]),
		Secret: string(raw[i+1:]),
	}
	if c.Name == "" {
		return Credentials{}, fmt.Errorf("%s: %w", CredsFile, ErrMalformed)
	}
	return c, nil
}

// SaveCredentials validates c and rewrites the credential file.
func SaveCredentials(s Store, c Credentials) error {
	if c.Name == "" {
		return ErrEmptyName
	}
	for _, f := range []string{c.Name, c.Secret} {
		if len(f) > MaxFieldLen {
			return ErrFieldTooLong
		}
		if strings.ContainsAny(f, "\r\n") {
			return ErrFieldNewline
		}
	}
	data := make([]byte, 0, len(c.Name)+1+len(c.Secret))
	data = append(data, c.Name...)
	data = append(data, '\n')
	data = append(data, c.Secret...)
	if err := s.WriteFile(CredsFile, data); err != nil {
		return fmt.Errorf("write %s: %w", CredsFile, err)
	}
	return nil
}

// ClearCredentials removes the credential file. Clearing an absent file
// is not an error.
func ClearCredentials(s Store) error {
	if err := s.Remove(CredsFile); err != nil {
		if _, rerr := s.ReadFile(CredsFile); rerr != nil {
			return nil
		}
		return fmt.Errorf("remove %s: %w", CredsFile, err)
	}
	return nil
}

// LoadZone reads the display zone offset in minutes, defaulting to 0 when
// the file is absent or unreadable.
func LoadZone(s Store) int {
	raw, err := s.ReadFile(ZoneFile)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0
	}
	return n
}

// SaveZone rewrites the zone file with offset minutes.
func SaveZone(s Store, minutes int) error {
	if err := s.WriteFile(ZoneFile, []byte(strconv.Itoa(minutes)+"\n")); err != nil {
		return fmt.Errorf("write %s: %w", ZoneFile, err)
	}
	return nil
}
