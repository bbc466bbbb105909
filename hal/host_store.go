//go:build !tinygo

package hal

import (
	"os"
	"path/filepath"

	"github.com/peterbourgon/diskv/v3"
)

// hostStore keeps settings files under one flat directory, EMBER_DATA_DIR
// or ~/.ember by default.
type hostStore struct {
	d *diskv.Diskv
}

func newHostStore() *hostStore {
	dir := os.Getenv("EMBER_DATA_DIR")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".ember")
		} else {
			dir = ".ember"
		}
	}
	return &hostStore{d: diskv.New(diskv.Options{
		BasePath:     dir,
		Transform:    func(string) []string { return []string{} },
		CacheSizeMax: 64 * 1024,
	})}
}

func (s *hostStore) ReadFile(name string) ([]byte, error) {
	return s.d.Read(name)
}

func (s *hostStore) WriteFile(name string, data []byte) error {
	return s.d.Write(name, data)
}

func (s *hostStore) Remove(name string) error {
	return s.d.Erase(name)
}
