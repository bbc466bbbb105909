//go:build tinygo

package hal

import (
	"io"
	"machine"
	"os"

	"tinygo.org/x/tinyfs/littlefs"
)

// flashStore keeps settings in a littlefs filesystem on the flash region
// behind the program image. A store that failed to mount reports
// ErrNotImplemented rather than wedging boot.
type flashStore struct {
	lfs *littlefs.LFS
	ok  bool
}

func newFlashStore() *flashStore {
	lfs := littlefs.New(machine.Flash)
	lfs.Configure(&littlefs.Config{
		CacheSize:     512,
		LookaheadSize: 512,
		BlockCycles:   100,
	})
	s := &flashStore{lfs: lfs}
	if err := lfs.Mount(); err != nil {
		// First boot: provision the filesystem.
		if err := lfs.Format(); err != nil {
			return s
		}
		if err := lfs.Mount(); err != nil {
			return s
		}
	}
	s.ok = true
	return s
}

func (s *flashStore) ReadFile(name string) ([]byte, error) {
	if !s.ok {
		return nil, ErrNotImplemented
	}
	f, err := s.lfs.OpenFile(name, os.O_RDONLY)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

func (s *flashStore) WriteFile(name string, data []byte) error {
	if !s.ok {
		return ErrNotImplemented
	}
	f, err := s.lfs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *flashStore) Remove(name string) error {
	if !s.ok {
		return ErrNotImplemented
	}
	return s.lfs.Remove(name)
}
