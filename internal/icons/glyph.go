package icons

import (
	"image"
	"math"

	"golang.org/x/image/vector"
)

// curveSteps is the number of segments a curve is flattened into when stroking.
const curveSteps = 16

// Glyph is resolved vector data for one icon id.
type Glyph struct {
	Name     string
	ViewBox  float64 // square glyph space, 24 for the built-in set
	Commands []Command
	Stroke   bool
	Fill     bool
}

// Mask rasterizes the glyph into a size x size coverage mask. strokeWidth
// is in glyph units, the way icon sets specify it.
func (g *Glyph) Mask(size, strokeWidth float64) *image.Alpha {
	px := int(math.Ceil(size))
	if px <= 0 {
		return image.NewAlpha(image.Rect(0, 0, 0, 0))
	}
	mask := image.NewAlpha(image.Rect(0, 0, px, px))
	vb := g.ViewBox
	if vb <= 0 {
		vb = 24
	}
	scale := size / vb

	if g.Fill {
		z := vector.NewRasterizer(px, px)
		for _, c := range g.Commands {
			p := c.Pts
			switch c.Op {
			case MoveTo:
				z.MoveTo(f32(p[0].X*scale), f32(p[0].Y*scale))
			case LineTo:
				z.LineTo(f32(p[0].X*scale), f32(p[0].Y*scale))
			case QuadTo:
				z.QuadTo(f32(p[0].X*scale), f32(p[0].Y*scale), f32(p[1].X*scale), f32(p[1].Y*scale))
			case CubicTo:
				z.CubeTo(f32(p[0].X*scale), f32(p[0].Y*scale), f32(p[1].X*scale), f32(p[1].Y*scale), f32(p[2].X*scale), f32(p[2].Y*scale))
			case Close:
				z.ClosePath()
			}
		}
		z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	}

	if g.Stroke && strokeWidth > 0 {
		z := vector.NewRasterizer(px, px)
		half := strokeWidth * scale / 2
		for _, line := range flatten(g.Commands, curveSteps) {
			for i := range line {
				pt := Point{line[i].X * scale, line[i].Y * scale}
				addPolygon(z, disc(pt, half))
				if i == 0 {
					continue
				}
				prev := Point{line[i-1].X * scale, line[i-1].Y * scale}
				if q := segmentQuad(prev, pt, half); q != nil {
					addPolygon(z, q)
				}
			}
		}
		z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	}
	return mask
}

// segmentQuad returns the rectangle covering a segment of the given half width.
func segmentQuad(a, b Point, half float64) []Point {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return nil
	}
	nx, ny := -dy/l*half, dx/l*half
	return []Point{
		{a.X + nx, a.Y + ny},
		{b.X + nx, b.Y + ny},
		{b.X - nx, b.Y - ny},
		{a.X - nx, a.Y - ny},
	}
}

// disc approximates a round join/cap.
func disc(c Point, r float64) []Point {
	const n = 16
	pts := make([]Point, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / n
		pts[i] = Point{c.X + r*math.Cos(a), c.Y + r*math.Sin(a)}
	}
	return pts
}

// addPolygon adds a closed polygon with positive orientation. The rasterizer
// sums signed coverage, so overlapping pieces must share a winding or they
// cancel out.
func addPolygon(z *vector.Rasterizer, pts []Point) {
	area := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		area += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	if area < 0 {
		rev := make([]Point, len(pts))
		for i, p := range pts {
			rev[len(pts)-1-i] = p
		}
		pts = rev
	}
	z.MoveTo(f32(pts[0].X), f32(pts[0].Y))
	for _, p := range pts[1:] {
		z.LineTo(f32(p.X), f32(p.Y))
	}
	z.ClosePath()
}

func f32(v float64) float32 { return float32(v) }
