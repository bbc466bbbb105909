//go:build !tinygo && cgo

package hal

import (
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"

	"ember/internal/buildinfo"
)

// RunWindow starts a desktop window that displays the framebuffer, shows
// the LED, and feeds keystrokes into the serial console. It blocks until
// the window closes or the step function returns an error.
func RunWindow(newApp func(HAL) func() error) error {
	h := New().(*hostHAL)
	h.window = true
	step := newApp(h)

	g := &hostGame{h: h, step: step}
	ebiten.SetWindowTitle("EmberOS (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(h.fb.width*2, h.fb.height*2)
	ebiten.SetTPS(60)
	return ebiten.RunGame(g)
}

type hostGame struct {
	h       *hostHAL
	img     *image.RGBA
	fbImg   *ebiten.Image
	ledImg  *ebiten.Image
	scratch []byte
	step    func() error
}

func (g *hostGame) Update() error {
	g.h.kbd.poll()
	g.forwardKeys()
	g.h.t.step(1)
	if g.step != nil {
		if err := g.step(); err != nil {
			return err
		}
	}
	return nil
}

// forwardKeys drains pending key events into the serial channel so the
// window types into the same console as stdin. Arrows go out as VT100
// sequences, which the line reader then discards.
func (g *hostGame) forwardKeys() {
	for {
		select {
		case ev := <-g.h.kbd.ch:
			if !ev.Press {
				continue
			}
			switch {
			case ev.Rune != 0:
				if ev.Rune < 0x80 {
					g.h.serial.inject(byte(ev.Rune))
				}
			case ev.Code == KeyEnter:
				g.h.serial.inject('\r')
			case ev.Code == KeyBackspace:
				g.h.serial.inject(0x7f)
			case ev.Code == KeyDelete:
				g.h.serial.inject(0x7f)
			case ev.Code == KeyTab:
				g.h.serial.inject('\t')
			case ev.Code == KeyUp:
				g.h.serial.injectString("\x1b[A")
			case ev.Code == KeyDown:
				g.h.serial.injectString("\x1b[B")
			case ev.Code == KeyRight:
				g.h.serial.injectString("\x1b[C")
			case ev.Code == KeyLeft:
				g.h.serial.injectString("\x1b[D")
			}
		default:
			return
		}
	}
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	fb := g.h.fb
	if g.img == nil || g.img.Bounds().Dx() != fb.width || g.img.Bounds().Dy() != fb.height {
		g.img = image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
		g.scratch = make([]byte, len(fb.buf))
		if g.fbImg != nil {
			g.fbImg.Deallocate()
		}
		g.fbImg = ebiten.NewImage(fb.width, fb.height)
	}

	fb.snapshotRGB565(g.scratch)

	src := g.scratch
	dst := g.img.Pix
	for i := 0; i+1 < len(src) && i/2*4+3 < len(dst); i += 2 {
		r, gg, b := rgb888From565(uint16(src[i]) | uint16(src[i+1])<<8)
		j := (i / 2) * 4
		dst[j+0] = r
		dst[j+1] = gg
		dst[j+2] = b
		dst[j+3] = 0xFF
	}

	g.fbImg.WritePixels(g.img.Pix)
	screen.DrawImage(g.fbImg, nil)

	if g.h.led.Lit() {
		if g.ledImg == nil {
			g.ledImg = ebiten.NewImage(6, 6)
			g.ledImg.Fill(color.RGBA{R: 0x30, G: 0xe0, B: 0x30, A: 0xff})
		}
		var op ebiten.DrawImageOptions
		op.GeoM.Translate(float64(fb.width-10), 4)
		screen.DrawImage(g.ledImg, &op)
	}
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.h.fb.width, g.h.fb.height
}

func rgb888From565(p uint16) (r, g, b uint8) {
	rr := (p >> 11) & 0x1F
	gg := (p >> 5) & 0x3F
	bb := p & 0x1F

	r = uint8((rr * 255) / 31)
	g = uint8((gg * 255) / 63)
	b = uint8((bb * 255) / 31)
	return r, g, b
}
