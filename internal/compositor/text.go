package compositor

import (
	"image"
	"image/draw"
	"math"
	"strings"

	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/scene"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

const defaultLineHeight = 1.2

// box is a float rectangle in element space.
type box struct {
	X0, Y0, X1, Y1 float64
}

func (b box) union(o box) box {
	return box{math.Min(b.X0, o.X0), math.Min(b.Y0, o.Y0), math.Max(b.X1, o.X1), math.Max(b.Y1, o.Y1)}
}

func (b box) rect() image.Rectangle {
	return image.Rect(int(math.Floor(b.X0)), int(math.Floor(b.Y0)), int(math.Ceil(b.X1)), int(math.Ceil(b.Y1)))
}

type textLine struct {
	Text     string
	Width    float64
	X        float64 // left edge of the run
	Baseline float64
}

// textLayout places a text block around the element anchor at (0, 0).
type textLayout struct {
	Lines       []textLine
	LineStep    float64
	BlockTop    float64
	BlockHeight float64
	Background  box
	Ink         box
}

// layoutText computes line positions. Lines are spaced fontSize*lineHeight
// apart and the block is vertically centered on the anchor.
func layoutText(t *scene.Text, measure func(string) float64, ascent, descent float64) textLayout {
	lh := t.LineHeight
	if lh <= 0 {
		lh = defaultLineHeight
	}
	lines := strings.Split(t.Content, "\n")
	step := t.FontSize * lh
	blockH := step * float64(len(lines))
	top := -blockH / 2

	l := textLayout{LineStep: step, BlockTop: top, BlockHeight: blockH}
	maxW := 0.0
	for i, s := range lines {
		w := measure(s)
		maxW = math.Max(maxW, w)
		var x float64
		switch t.Align {
		case scene.AlignLeft:
			x = 0
		case scene.AlignRight:
			x = -w
		default:
			x = -w / 2
		}
		lineTop := top + float64(i)*step
		l.Lines = append(l.Lines, textLine{
			Text:     s,
			Width:    w,
			X:        x,
			Baseline: lineTop + step/2 + (ascent-descent)/2,
		})
	}

	pad := math.Max(0, t.Padding)
	switch t.Align {
	case scene.AlignLeft:
		l.Background = box{-pad, top - pad, maxW + pad, top + blockH + pad}
	case scene.AlignRight:
		l.Background = box{-maxW - pad, top - pad, pad, top + blockH + pad}
	default:
		l.Background = box{-maxW/2 - pad, top - pad, maxW/2 + pad, top + blockH + pad}
	}

	l.Ink = box{0, top, 0, top + blockH}
	for _, ln := range l.Lines {
		l.Ink = l.Ink.union(box{ln.X, ln.Baseline - ascent, ln.X + ln.Width, ln.Baseline + descent})
	}
	return l
}

func (c *Compositor) paintText(t *scene.Text) (*image.RGBA, error) {
	if t.FontSize <= 0 || (t.Content == "" && t.BgColor == "") {
		return nil, errSkipped
	}

	var out *image.RGBA
	err := c.fonts.WithFace(t.FontFamily, WeightOf(t.FontWeight), t.FontSize, func(face font.Face) error {
		m := face.Metrics()
		ascent := fixedToFloat(m.Ascent)
		descent := fixedToFloat(m.Descent)
		measure := func(s string) float64 { return fixedToFloat(font.MeasureString(face, s)) }

		l := layoutText(t, measure, ascent, descent)
		bounds := l.Ink
		if t.BgColor != "" {
			bounds = bounds.union(l.Background)
		}
		out = image.NewRGBA(bounds.rect())

		if t.BgColor != "" {
			draw.Draw(out, l.Background.rect(), image.NewUniform(t.BgColor.RGBA()), image.Point{}, draw.Src)
		}
		d := &font.Drawer{Dst: out, Src: image.NewUniform(t.Color.RGBA()), Face: face}
		for _, ln := range l.Lines {
			if ln.Text == "" {
				continue
			}
			d.Dot = fixed.Point26_6{X: floatToFixed(ln.X), Y: floatToFixed(ln.Baseline)}
			d.DrawString(ln.Text)
		}
		return nil
	})
	return out, err
}

func fixedToFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }

func floatToFixed(v float64) fixed.Int26_6 { return fixed.Int26_6(math.Round(v * 64)) }
