package console

import "io"

// Sink is where console text goes. Writes are best-effort: sinks swallow
// transport errors so shell output can never take the loop down.
type Sink interface {
	io.Writer
}

// Tee fans writes out to every sink. It always reports the full write.
type Tee struct {
	outs []io.Writer
}

// NewTee builds a fan-out sink. Nil writers are skipped.
func NewTee(outs ...io.Writer) *Tee {
	t := &Tee{}
	for _, o := range outs {
		if o != nil {
			t.outs = append(t.outs, o)
		}
	}
	return t
}

func (t *Tee) Write(p []byte) (int, error) {
	for _, o := range t.outs {
		_, _ = o.Write(p)
	}
	return len(p), nil
}
