package term

import (
	"image/color"

	"ember/hal"

	"tinygo.org/x/drivers"
)

// fbDisplay adapts a hal.Framebuffer to tinyterm's Displayer. Only
// RGB565 buffers are supported; anything else renders nothing.
type fbDisplay struct {
	fb hal.Framebuffer
}

func newFBDisplay(fb hal.Framebuffer) *fbDisplay {
	return &fbDisplay{fb: fb}
}

func (d *fbDisplay) Size() (x, y int16) {
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d *fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	buf, stride, ok := d.raster()
	if !ok {
		return
	}
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.fb.Height() {
		return
	}
	off := iy*stride + ix*2
	if off+1 >= len(buf) {
		return
	}
	putRGB565(buf[off:], c)
}

func (d *fbDisplay) Display() error {
	return d.fb.Present()
}

func (d *fbDisplay) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	buf, stride, ok := d.raster()
	if !ok {
		return nil
	}
	x0, x1 := clip(int(x), int(x)+int(width), d.fb.Width())
	y0, y1 := clip(int(y), int(y)+int(height), d.fb.Height())
	for py := y0; py < y1; py++ {
		row := py * stride
		for px := x0; px < x1; px++ {
			off := row + px*2
			if off+1 >= len(buf) {
				break
			}
			putRGB565(buf[off:], c)
		}
	}
	return nil
}

// ScrollUp shifts the buffer contents up by pixels rows and clears the
// exposed bottom band. tinyterm's software scroll discovers it via its
// optional scroller interface.
func (d *fbDisplay) ScrollUp(pixels int16, bg color.RGBA) error {
	buf, stride, ok := d.raster()
	if !ok || pixels <= 0 {
		return nil
	}
	w, h := d.fb.Width(), d.fb.Height()
	n := int(pixels)
	if n >= h {
		return d.FillRectangle(0, 0, int16(w), int16(h), bg)
	}

	keep := (h - n) * stride
	src := n * stride
	if src >= len(buf) {
		return d.FillRectangle(0, 0, int16(w), int16(h), bg)
	}
	if src+keep > len(buf) {
		keep = len(buf) - src
	}
	copy(buf[:keep], buf[src:src+keep])

	return d.FillRectangle(0, int16(h-n), int16(w), int16(n), bg)
}

// SetScroll is hardware scrolling; the framebuffer has none.
func (d *fbDisplay) SetScroll(line int16) {}

func (d *fbDisplay) SetRotation(rotation drivers.Rotation) error {
	return nil
}

func (d *fbDisplay) raster() (buf []byte, stride int, ok bool) {
	if d.fb.Format() != hal.PixelFormatRGB565 {
		return nil, 0, false
	}
	buf = d.fb.Buffer()
	if buf == nil {
		return nil, 0, false
	}
	return buf, d.fb.StrideBytes(), true
}

func putRGB565(dst []byte, c color.RGBA) {
	p := uint16(c.R>>3)<<11 | uint16(c.G>>2)<<5 | uint16(c.B>>3)
	dst[0] = byte(p)
	dst[1] = byte(p >> 8)
}

func clip(lo, hi, max int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi > max {
		hi = max
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}
