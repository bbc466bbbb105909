package console

import (
	"bytes"
	"testing"
)

func TestRingBuffersLines(t *testing.T) {
	r := NewRing(8)
	r.Write([]byte("first\nsec"))
	r.Write([]byte("ond\n"))

	got := r.Drain()
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("Drain = %v; want [first second]", got)
	}
	if r.Len() != 0 {
		t.Fatalf("Len after drain = %d; want 0", r.Len())
	}

	// The partial line is still pending and completes later.
	r.Write([]byte(" tail\n"))
	got = r.Drain()
	if len(got) != 1 || got[0] != " tail" {
		t.Fatalf("Drain = %v; want [\" tail\"]", got)
	}
}

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing(3)
	r.Write([]byte("a\nb\nc\nd\ne\n"))

	got := r.Lines()
	if len(got) != 3 || got[0] != "c" || got[1] != "d" || got[2] != "e" {
		t.Fatalf("Lines = %v; want [c d e]", got)
	}
	if r.Evicted() != 2 {
		t.Fatalf("Evicted = %d; want 2", r.Evicted())
	}
}

func TestRingStripsCR(t *testing.T) {
	r := NewRing(4)
	r.Write([]byte("hello\r\nworld\r\n"))
	got := r.Drain()
	if len(got) != 2 || got[0] != "hello" || got[1] != "world" {
		t.Fatalf("Drain = %v; want [hello world]", got)
	}
}

func TestCRLFExpands(t *testing.T) {
	tcs := []struct {
		in   []string
		want string
	}{
		{in: []string{"a\nb\n"}, want: "a\r\nb\r\n"},
		{in: []string{"a\r\nb"}, want: "a\r\nb"},
		{in: []string{"a\r", "\nb"}, want: "a\r\nb"},
		{in: []string{"\n"}, want: "\r\n"},
	}

	for _, tc := range tcs {
		var buf bytes.Buffer
		w := NewCRLF(&buf)
		total := 0
		for _, chunk := range tc.in {
			n, err := w.Write([]byte(chunk))
			if err != nil {
				t.Fatalf("Write(%q) err = %v", chunk, err)
			}
			total += n
		}
		if buf.String() != tc.want {
			t.Fatalf("CRLF(%q) = %q; want %q", tc.in, buf.String(), tc.want)
		}
		wantN := 0
		for _, chunk := range tc.in {
			wantN += len(chunk)
		}
		if total != wantN {
			t.Fatalf("CRLF(%q) consumed %d; want %d", tc.in, total, wantN)
		}
	}
}
