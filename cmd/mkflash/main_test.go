//go:build !tinygo

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestImageFileErasesToFF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.img")
	img, err := openImageFile(path, 4*4096, 4096)
	if err != nil {
		t.Fatalf("openImageFile: %v", err)
	}
	defer img.Close()

	got := make([]byte, 512)
	if _, err := img.ReadAt(got, 4096); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(got, bytes.Repeat([]byte{0xFF}, len(got))) {
		t.Fatalf("fresh image not erased to 0xFF")
	}
}

func TestImageFileWriteRequiresErase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.img")
	img, err := openImageFile(path, 4*4096, 4096)
	if err != nil {
		t.Fatalf("openImageFile: %v", err)
	}
	defer img.Close()

	if _, err := img.WriteAt([]byte{0x0F}, 0); err != nil {
		t.Fatalf("first write: %v", err)
	}
	// Setting a cleared bit back needs an erase first.
	if _, err := img.WriteAt([]byte{0xF0}, 0); err == nil {
		t.Fatalf("conflicting write succeeded; want erase error")
	}
	if err := img.EraseBlocks(0, 1); err != nil {
		t.Fatalf("EraseBlocks: %v", err)
	}
	if _, err := img.WriteAt([]byte{0xF0}, 0); err != nil {
		t.Fatalf("write after erase: %v", err)
	}
}

func TestOpenImageFileRejectsBadGeometry(t *testing.T) {
	dir := t.TempDir()
	if _, err := openImageFile(filepath.Join(dir, "a.img"), 4096, 100); err == nil {
		t.Fatalf("erase size 100 accepted; want error")
	}
	if _, err := openImageFile(filepath.Join(dir, "b.img"), 5000, 4096); err == nil ||
		!strings.Contains(err.Error(), "not multiple") {
		t.Fatalf("size 5000 with erase 4096: got %v; want multiple error", err)
	}
}
