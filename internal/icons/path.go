package icons

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Op is a path drawing operation.
type Op uint8

const (
	MoveTo Op = iota
	LineTo
	QuadTo
	CubicTo
	Close
)

// Point is a coordinate in glyph space.
type Point struct{ X, Y float64 }

// Command is one path operation. Only the first 1 (Move/Line), 2 (Quad) or
// 3 (Cubic) points are meaningful.
type Command struct {
	Op  Op
	Pts [3]Point
}

// ParsePath parses the subset of SVG path data used by the catalog:
// M L H V C Q Z in absolute and relative forms, with implicit repeats.
func ParsePath(d string) ([]Command, error) {
	toks, err := tokenize(d)
	if err != nil {
		return nil, err
	}

	var (
		cmds  []Command
		cur   Point
		start Point
		verb  byte
		i     int
	)
	num := func() (float64, error) {
		if i >= len(toks) || toks[i].verb != 0 {
			return 0, fmt.Errorf("path %q: missing number after %c", d, verb)
		}
		v := toks[i].num
		i++
		return v, nil
	}
	pair := func(rel bool) (Point, error) {
		x, err := num()
		if err != nil {
			return Point{}, err
		}
		y, err := num()
		if err != nil {
			return Point{}, err
		}
		if rel {
			return Point{cur.X + x, cur.Y + y}, nil
		}
		return Point{x, y}, nil
	}

	for i < len(toks) {
		if toks[i].verb != 0 {
			verb = toks[i].verb
			i++
		} else if verb == 0 {
			return nil, fmt.Errorf("path %q: number before any command", d)
		}
		rel := unicode.IsLower(rune(verb))

		switch unicode.ToUpper(rune(verb)) {
		case 'M':
			p, err := pair(rel)
			if err != nil {
				return nil, err
			}
			cmds = append(cmds, Command{Op: MoveTo, Pts: [3]Point{p}})
			cur, start = p, p
			// Coordinates following a moveto are implicit linetos.
			if rel {
				verb = 'l'
			} else {
				verb = 'L'
			}
		case 'L':
			p, err := pair(rel)
			if err != nil {
				return nil, err
			}
			cmds = append(cmds, Command{Op: LineTo, Pts: [3]Point{p}})
			cur = p
		case 'H':
			x, err := num()
			if err != nil {
				return nil, err
			}
			if rel {
				x += cur.X
			}
			cur = Point{x, cur.Y}
			cmds = append(cmds, Command{Op: LineTo, Pts: [3]Point{cur}})
		case 'V':
			y, err := num()
			if err != nil {
				return nil, err
			}
			if rel {
				y += cur.Y
			}
			cur = Point{cur.X, y}
			cmds = append(cmds, Command{Op: LineTo, Pts: [3]Point{cur}})
		case 'Q':
			c, err := pair(rel)
			if err != nil {
				return nil, err
			}
			p, err := pair(rel)
			if err != nil {
				return nil, err
			}
			cmds = append(cmds, Command{Op: QuadTo, Pts: [3]Point{c, p}})
			cur = p
		case 'C':
			c1, err := pair(rel)
			if err != nil {
				return nil, err
			}
			c2, err := pair(rel)
			if err != nil {
				return nil, err
			}
			p, err := pair(rel)
			if err != nil {
				return nil, err
			}
			cmds = append(cmds, Command{Op: CubicTo, Pts: [3]Point{c1, c2, p}})
			cur = p
		case 'Z':
			cmds = append(cmds, Command{Op: Close})
			cur = start
			verb = 0
		default:
			return nil, fmt.Errorf("path %q: unsupported command %c", d, verb)
		}
	}
	return cmds, nil
}

type token struct {
	verb byte
	num  float64
}

func tokenize(d string) ([]token, error) {
	var toks []token
	for i := 0; i < len(d); {
		c := d[i]
		switch {
		case c == ' ' || c == ',' || c == '\t' || c == '\n':
			i++
		case strings.IndexByte("MmLlHhVvCcQqZz", c) >= 0:
			toks = append(toks, token{verb: c})
			i++
		default:
			j := i
			if d[j] == '-' || d[j] == '+' {
				j++
			}
			dot := false
			for j < len(d) && (d[j] >= '0' && d[j] <= '9' || d[j] == '.' && !dot) {
				if d[j] == '.' {
					dot = true
				}
				j++
			}
			if j == i {
				return nil, fmt.Errorf("path %q: unexpected %q at %d", d, c, i)
			}
			v, err := strconv.ParseFloat(d[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("path %q: %w", d, err)
			}
			toks = append(toks, token{num: v})
			i = j
		}
	}
	return toks, nil
}

// Circle returns a closed circle made of four cubic arcs.
func Circle(cx, cy, r float64) []Command {
	k := r * 4 * (math.Sqrt2 - 1) / 3
	return []Command{
		{Op: MoveTo, Pts: [3]Point{{cx + r, cy}}},
		{Op: CubicTo, Pts: [3]Point{{cx + r, cy + k}, {cx + k, cy + r}, {cx, cy + r}}},
		{Op: CubicTo, Pts: [3]Point{{cx - k, cy + r}, {cx - r, cy + k}, {cx - r, cy}}},
		{Op: CubicTo, Pts: [3]Point{{cx - r, cy - k}, {cx - k, cy - r}, {cx, cy - r}}},
		{Op: CubicTo, Pts: [3]Point{{cx + k, cy - r}, {cx + r, cy - k}, {cx + r, cy}}},
		{Op: Close},
	}
}

// flatten turns the commands into polylines, one per subpath.
func flatten(cmds []Command, steps int) [][]Point {
	var (
		lines [][]Point
		cur   []Point
	)
	last := func() Point { return cur[len(cur)-1] }
	flush := func() {
		if len(cur) > 1 {
			lines = append(lines, cur)
		}
		cur = nil
	}
	for _, c := range cmds {
		switch c.Op {
		case MoveTo:
			flush()
			cur = []Point{c.Pts[0]}
		case LineTo:
			if cur == nil {
				cur = []Point{{}}
			}
			cur = append(cur, c.Pts[0])
		case QuadTo:
			if cur == nil {
				cur = []Point{{}}
			}
			p0 := last()
			for s := 1; s <= steps; s++ {
				t := float64(s) / float64(steps)
				u := 1 - t
				cur = append(cur, Point{
					u*u*p0.X + 2*u*t*c.Pts[0].X + t*t*c.Pts[1].X,
					u*u*p0.Y + 2*u*t*c.Pts[0].Y + t*t*c.Pts[1].Y,
				})
			}
		case CubicTo:
			if cur == nil {
				cur = []Point{{}}
			}
			p0 := last()
			for s := 1; s <= steps; s++ {
				t := float64(s) / float64(steps)
				u := 1 - t
				a, b, cc, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
				cur = append(cur, Point{
					a*p0.X + b*c.Pts[0].X + cc*c.Pts[1].X + d*c.Pts[2].X,
					a*p0.Y + b*c.Pts[0].Y + cc*c.Pts[1].Y + d*c.Pts[2].Y,
				})
			}
		case Close:
			if len(cur) > 0 {
				cur = append(cur, cur[0])
				start := cur[0]
				flush()
				cur = []Point{start}
			}
		}
	}
	flush()
	return lines
}
