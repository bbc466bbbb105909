//go:build !tinygo

// mkflash builds a littlefs image preloaded with device settings, ready to
// flash into the store region alongside the firmware. A provisioned board
// joins its network on first boot without a serial `net set`.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"tinygo.org/x/tinyfs/littlefs"

	"ember/emberos/services/settings"
)

const (
	defaultImagePath = "settings.img"
	defaultImageSize = 1 << 20
	defaultEraseSize = 4096

	// writePageSize matches the NOR flash program page the device store
	// writes through.
	writePageSize = 256
)

// imageFile presents a plain file as erase-block flash. Erased bytes read
// back 0xFF and writes may only clear bits, so the image passes through the
// same littlefs code paths as the real part.
type imageFile struct {
	f         *os.File
	size      int64
	eraseSize int64

	scratch []byte
}

func openImageFile(path string, size, eraseSize int64) (*imageFile, error) {
	if eraseSize == 0 || eraseSize%writePageSize != 0 {
		return nil, fmt.Errorf("image: invalid erase size %d", eraseSize)
	}
	if size == 0 || size%eraseSize != 0 {
		return nil, fmt.Errorf("image: size %d not multiple of erase size %d", size, eraseSize)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open image %q: %w", path, err)
	}

	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("truncate image %q to %d: %w", path, size, err)
	}

	img := &imageFile{
		f:         f,
		size:      size,
		eraseSize: eraseSize,
		scratch:   make([]byte, eraseSize),
	}
	for i := range img.scratch {
		img.scratch[i] = 0xFF
	}

	if err := img.EraseBlocks(0, size/eraseSize); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("erase image %q: %w", path, err)
	}

	return img, nil
}

func (f *imageFile) Close() error { return f.f.Close() }

func (f *imageFile) Size() int64           { return f.size }
func (f *imageFile) WriteBlockSize() int64 { return writePageSize }
func (f *imageFile) EraseBlockSize() int64 { return f.eraseSize }

func (f *imageFile) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= f.size {
		return 0, fmt.Errorf("image read at %d: %w", off, os.ErrInvalid)
	}
	if max := f.size - off; int64(len(p)) > max {
		p = p[:max]
	}
	return f.f.ReadAt(p, off)
}

func (f *imageFile) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= f.size {
		return 0, fmt.Errorf("image write at %d: %w", off, os.ErrInvalid)
	}
	if max := f.size - off; int64(len(p)) > max {
		p = p[:max]
	}

	prev := make([]byte, len(p))
	if _, err := f.f.ReadAt(prev, off); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("image read before write at %d: %w", off, err)
	}
	for i := range p {
		if prev[i]&p[i] != p[i] {
			return 0, errors.New("image write requires erase")
		}
	}
	return f.f.WriteAt(p, off)
}

func (f *imageFile) EraseBlocks(start, n int64) error {
	if n == 0 {
		return nil
	}
	off := start * f.eraseSize
	end := off + n*f.eraseSize
	if start < 0 || n < 0 || off >= f.size || end > f.size {
		return fmt.Errorf("image erase start=%d n=%d: %w", start, n, os.ErrInvalid)
	}
	for ; off < end; off += f.eraseSize {
		if _, err := f.f.WriteAt(f.scratch, off); err != nil {
			return fmt.Errorf("image erase block at %d: %w", off, err)
		}
	}
	return nil
}

// lfsStore adapts a mounted filesystem to the settings store interface, so
// the image is written through the same validation the device applies.
type lfsStore struct {
	lfs *littlefs.LFS
}

func (s lfsStore) ReadFile(name string) ([]byte, error) {
	f, err := s.lfs.OpenFile(name, os.O_RDONLY)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

func (s lfsStore) WriteFile(name string, data []byte) error {
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

func (s lfsStore) Remove(name string) error { return s.lfs.Remove(name) }

func main() {
	var outPath string
	var imageSize uint
	var eraseSize uint
	var ssid string
	var secret string
	var zone string
	flag.StringVar(&outPath, "out", defaultImagePath, "Output image path.")
	flag.UintVar(&imageSize, "size", defaultImageSize, "Image size (bytes).")
	flag.UintVar(&eraseSize, "erase", defaultEraseSize, "Erase block size (bytes).")
	flag.StringVar(&ssid, "ssid", "", "Network name to store.")
	flag.StringVar(&secret, "secret", "", "Network secret to store.")
	flag.StringVar(&zone, "tz", "", "Display offset from UTC in minutes, e.g. -tz +60.")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "error: -out is required")
		os.Exit(2)
	}
	if ssid == "" && zone == "" {
		fmt.Fprintln(os.Stderr, "error: nothing to store; set -ssid or -tz")
		os.Exit(2)
	}

	if err := run(outPath, int64(imageSize), int64(eraseSize), ssid, secret, zone); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(outPath string, imageSize, eraseSize int64, ssid, secret, zone string) error {
	img, err := openImageFile(outPath, imageSize, eraseSize)
	if err != nil {
		return err
	}
	defer func() { _ = img.Close() }()

	lfs := littlefs.New(img)
	lfs.Configure(&littlefs.Config{
		CacheSize:     512,
		LookaheadSize: 512,
		BlockCycles:   100,
	})

	if err := lfs.Format(); err != nil {
		return fmt.Errorf("format image: %w", err)
	}
	if err := lfs.Mount(); err != nil {
		return fmt.Errorf("mount image: %w", err)
	}

	store := lfsStore{lfs: lfs}

	if ssid != "" {
		creds := settings.Credentials{Name: ssid, Secret: secret}
		if err := settings.SaveCredentials(store, creds); err != nil {
			return fmt.Errorf("store credentials: %w", err)
		}
	}

	if zone != "" {
		minutes, err := strconv.Atoi(strings.TrimSpace(zone))
		if err != nil {
			return fmt.Errorf("bad -tz %q: %w", zone, err)
		}
		if err := settings.SaveZone(store, minutes); err != nil {
			return fmt.Errorf("store zone: %w", err)
		}
	}

	if err := lfs.Unmount(); err != nil {
		return fmt.Errorf("unmount image: %w", err)
	}
	return nil
}
