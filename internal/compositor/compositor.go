// Package compositor renders scenes to pixels.
//
// Rendering is deterministic: the same scene, canvas and resolved assets
// always produce the same raster. Nothing here performs I/O; image sources
// must already be resolved by the time a scene is painted.
package compositor

import (
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/icons"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/scene"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// AssetLookup returns the decoded raster behind an image source, if it is
// already resolved.
type AssetLookup interface {
	Image(ref string) (image.Image, bool)
}

// AssetLookupFunc adapts a function to AssetLookup.
type AssetLookupFunc func(ref string) (image.Image, bool)

func (f AssetLookupFunc) Image(ref string) (image.Image, bool) { return f(ref) }

// Stats counts element outcomes since the compositor was created.
type Stats struct {
	Painted int64
	Skipped int64
	Failed  int64
}

// Compositor paints scenes. Safe for concurrent use.
type Compositor struct {
	assets       AssetLookup
	glyphs       icons.Provider
	fonts        *FontSet
	iconFallback bool
	logger       *slog.Logger

	painted atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
}

// Option configures a Compositor.
type Option func(*Compositor)

func WithAssets(l AssetLookup) Option { return func(c *Compositor) { c.assets = l } }

func WithGlyphs(p icons.Provider) Option { return func(c *Compositor) { c.glyphs = p } }

func WithFonts(fs *FontSet) Option { return func(c *Compositor) { c.fonts = fs } }

// WithIconFallback paints a filled square for icons whose glyph cannot be
// resolved. Thumbnail and export contexts turn it on.
func WithIconFallback(on bool) Option { return func(c *Compositor) { c.iconFallback = on } }

func WithLogger(l *slog.Logger) Option {
	return func(c *Compositor) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a compositor. Without options it has no assets, the default
// icon catalog and the Go font family.
func New(opts ...Option) *Compositor {
	c := &Compositor{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	if c.glyphs == nil {
		c.glyphs = icons.Default()
	}
	if c.fonts == nil {
		c.fonts = NewFontSet()
	}
	return c
}

// Derive returns a compositor sharing this one's assets, glyphs and fonts
// with opts applied on top.
func (c *Compositor) Derive(opts ...Option) *Compositor {
	d := &Compositor{
		assets:       c.assets,
		glyphs:       c.glyphs,
		fonts:        c.fonts,
		iconFallback: c.iconFallback,
		logger:       c.logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Stats returns a snapshot of the element counters.
func (c *Compositor) Stats() Stats {
	return Stats{
		Painted: c.painted.Load(),
		Skipped: c.skipped.Load(),
		Failed:  c.failed.Load(),
	}
}

// Render paints s onto a new canvas-sized surface.
func (c *Compositor) Render(s *scene.Scene, canvas scene.Canvas) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, canvas.Width, canvas.Height))
	c.RenderInto(dst, s)
	return dst
}

// RenderInto paints s onto dst in canvas coordinates. The whole of dst is
// filled with the scene background first, so a dst larger than the canvas
// gets background-colored margins.
func (c *Compositor) RenderInto(dst *image.RGBA, s *scene.Scene) {
	Fill(dst, s.BgColor)
	for _, el := range scene.SortByZ(s.Elements) {
		switch err := c.paintElement(dst, el); {
		case err == errSkipped:
			c.skipped.Add(1)
		case err != nil:
			c.failed.Add(1)
			c.logger.Debug("element paint failed", "scene", s.ID, "element", el.Base().ID, "kind", el.Kind(), "error", err)
		default:
			c.painted.Add(1)
		}
	}
}

// RenderFit renders s at canvas size and scales the result to fit w x h,
// centered, with the scene background in the letterbox.
func (c *Compositor) RenderFit(s *scene.Scene, canvas scene.Canvas, w, h int) *image.RGBA {
	full := c.Render(s, canvas)
	if w == canvas.Width && h == canvas.Height {
		return full
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	Fill(dst, s.BgColor)
	xdraw.CatmullRom.Scale(dst, FitRect(canvas.Width, canvas.Height, w, h), full, full.Bounds(), draw.Src, nil)
	return dst
}

// FitRect returns the largest rectangle with the aspect ratio of sw x sh
// that fits centered inside w x h.
func FitRect(sw, sh, w, h int) image.Rectangle {
	if sw <= 0 || sh <= 0 || w <= 0 || h <= 0 {
		return image.Rectangle{}
	}
	scale := math.Min(float64(w)/float64(sw), float64(h)/float64(sh))
	fw := max(1, int(math.Round(float64(sw)*scale)))
	fh := max(1, int(math.Round(float64(sh)*scale)))
	x := (w - fw) / 2
	y := (h - fh) / 2
	return image.Rect(x, y, x+fw, y+fh)
}

// Fill paints the whole of dst with a solid color.
func Fill(dst *image.RGBA, c scene.Color) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(c.RGBA()), image.Point{}, draw.Src)
}

var errSkipped = fmt.Errorf("element skipped")

// paintElement paints one element. A panic inside a painter is turned into
// an error so the rest of the scene still renders.
func (c *Compositor) paintElement(dst *image.RGBA, el scene.Element) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	base := el.Base()
	opacity := clamp01(base.Opacity)
	if opacity == 0 {
		return errSkipped
	}

	var local *image.RGBA
	switch e := el.(type) {
	case *scene.Text:
		local, err = c.paintText(e)
	case *scene.Image:
		local, err = c.paintImage(e)
	case *scene.Icon:
		local, err = c.paintIcon(e)
	default:
		return fmt.Errorf("unsupported element %T", el)
	}
	if err != nil {
		return err
	}
	if local == nil || local.Bounds().Empty() {
		return errSkipped
	}

	if opacity < 1 {
		scaleAlpha(local, opacity)
	}
	composite(dst, local, base.X, base.Y, base.Rotation)
	return nil
}

// composite draws a buffer laid out in element space (origin at the anchor)
// onto dst translated to (x, y) and rotated by deg degrees.
func composite(dst, local *image.RGBA, x, y, deg float64) {
	rot := math.Mod(deg, 360)
	if rot == 0 {
		off := image.Pt(int(math.Round(x)), int(math.Round(y)))
		r := local.Bounds().Add(off)
		draw.Draw(dst, r, local, local.Bounds().Min, draw.Over)
		return
	}
	rad := rot * math.Pi / 180
	sin, cos := math.Sincos(rad)
	s2d := f64.Aff3{
		cos, -sin, x,
		sin, cos, y,
	}
	xdraw.BiLinear.Transform(dst, s2d, local, local.Bounds(), draw.Over, nil)
}

// scaleAlpha multiplies every premultiplied channel by a.
func scaleAlpha(img *image.RGBA, a float64) {
	k := uint32(math.Round(a * 255))
	for i := range img.Pix {
		img.Pix[i] = uint8((uint32(img.Pix[i])*k + 127) / 255)
	}
}

// applyMask multiplies img by the coverage in mask. Both share bounds.
func applyMask(img *image.RGBA, mask *image.Alpha) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			m := uint32(mask.AlphaAt(x, y).A)
			if m == 255 {
				continue
			}
			i := img.PixOffset(x, y)
			for j := 0; j < 4; j++ {
				img.Pix[i+j] = uint8((uint32(img.Pix[i+j])*m + 127) / 255)
			}
		}
	}
}

// centeredRect is a w x h rectangle centered on the origin.
func centeredRect(w, h float64) image.Rectangle {
	iw := int(math.Round(w))
	ih := int(math.Round(h))
	x0 := -iw / 2
	y0 := -ih / 2
	return image.Rect(x0, y0, x0+iw, y0+ih)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
