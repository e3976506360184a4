package compositor

import (
	"image"
	"image/draw"

	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/scene"
)

func (c *Compositor) paintIcon(e *scene.Icon) (*image.RGBA, error) {
	if e.Size <= 0 {
		return nil, errSkipped
	}
	out := image.NewRGBA(centeredRect(e.Size, e.Size))
	if out.Bounds().Empty() {
		return nil, errSkipped
	}
	fill := image.NewUniform(e.Color.RGBA())

	g, ok := c.glyphs.Lookup(e.Name)
	if !ok {
		if !c.iconFallback {
			return nil, errSkipped
		}
		// Placeholder so a missing glyph is visible in exported output.
		draw.Draw(out, out.Bounds(), fill, image.Point{}, draw.Src)
		return out, nil
	}

	mask := g.Mask(float64(out.Bounds().Dx()), e.StrokeWidth)
	draw.DrawMask(out, out.Bounds(), fill, image.Point{}, mask, mask.Bounds().Min, draw.Over)
	return out, nil
}
