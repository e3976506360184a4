package video

import (
	"fmt"
	"strings"
)

// Chain is an ffmpeg filter chain built left to right.
type Chain []string

func (c Chain) Add(format string, args ...any) Chain {
	return append(c, fmt.Sprintf(format, args...))
}

func (c Chain) String() string {
	return strings.Join(c, ",")
}

// Fit scales into w x h keeping the aspect ratio and pads the rest,
// centered.
func (c Chain) Fit(w, h int, pad string) Chain {
	if pad == "" {
		pad = "black"
	}
	return c.Add("scale=%d:%d:force_original_aspect_ratio=decrease", w, h).
		Add("pad=%d:%d:(ow-iw)/2:(oh-ih)/2:color=%s", w, h, pad)
}

// FadeIn fades from black over d seconds at the start.
func (c Chain) FadeIn(d float64) Chain {
	if d <= 0 {
		return c
	}
	return c.Add("fade=t=in:st=0:d=%.3f", d)
}

// FadeOut fades to black over the last d seconds of a total-second video.
func (c Chain) FadeOut(d, total float64) Chain {
	if d <= 0 || total <= 0 {
		return c
	}
	if d > total {
		d = total
	}
	return c.Add("fade=t=out:st=%.3f:d=%.3f", total-d, d)
}

// FPS resamples the frame rate.
func (c Chain) FPS(fps int) Chain {
	return c.Add("fps=%d", fps)
}

// ScaleLanczos scales to an exact size with the lanczos kernel.
func (c Chain) ScaleLanczos(w, h int) Chain {
	return c.Add("scale=%d:%d:flags=lanczos", w, h)
}

// OutputFilter builds the -vf chain for an export: optional resize to an
// output size different from the frames, and optional fades.
func OutputFilter(frameW, frameH, outW, outH int, pad string, fadeIn, fadeOut, total float64) string {
	var c Chain
	if outW > 0 && outH > 0 && (outW != frameW || outH != frameH) {
		c = c.Fit(outW, outH, pad)
	}
	c = c.FadeIn(fadeIn).FadeOut(fadeOut, total)
	return c.String()
}
