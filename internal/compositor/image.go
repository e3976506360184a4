package compositor

import (
	"image"
	"image/draw"
	"math"

	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/scene"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// kappa places cubic control points so four curves approximate a circle.
const kappa = 0.5522847498

func (c *Compositor) paintImage(e *scene.Image) (*image.RGBA, error) {
	if e.Width <= 0 || e.Height <= 0 || c.assets == nil {
		return nil, errSkipped
	}
	src, ok := c.assets.Image(e.Src)
	if !ok || src == nil {
		return nil, errSkipped
	}

	sr := src.Bounds()
	if e.Crop != nil && e.Crop.Width > 0 && e.Crop.Height > 0 {
		crop := image.Rect(e.Crop.X, e.Crop.Y, e.Crop.X+e.Crop.Width, e.Crop.Y+e.Crop.Height).Add(sr.Min)
		sr = crop.Intersect(sr)
	}
	if sr.Empty() {
		return nil, errSkipped
	}

	out := image.NewRGBA(centeredRect(e.Width, e.Height))
	if out.Bounds().Empty() {
		return nil, errSkipped
	}
	xdraw.BiLinear.Scale(out, out.Bounds(), src, sr, draw.Src, nil)

	if e.Radius > 0 {
		applyMask(out, roundedRectMask(out.Bounds(), e.Radius))
	}
	return out, nil
}

// roundedRectMask rasterizes a rounded rectangle covering r. The radius is
// clamped to half the shorter side.
func roundedRectMask(r image.Rectangle, radius float64) *image.Alpha {
	w, h := float32(r.Dx()), float32(r.Dy())
	rad := float32(math.Min(radius, math.Min(float64(w), float64(h))/2))
	k := rad * (1 - kappa)

	z := vector.NewRasterizer(r.Dx(), r.Dy())
	z.MoveTo(rad, 0)
	z.LineTo(w-rad, 0)
	z.CubeTo(w-k, 0, w, k, w, rad)
	z.LineTo(w, h-rad)
	z.CubeTo(w, h-k, w-k, h, w-rad, h)
	z.LineTo(rad, h)
	z.CubeTo(k, h, 0, h-k, 0, h-rad)
	z.LineTo(0, rad)
	z.CubeTo(0, k, k, 0, rad, 0)
	z.ClosePath()

	mask := image.NewAlpha(r)
	z.Draw(mask, r, image.Opaque, image.Point{})
	return mask
}
