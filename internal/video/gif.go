package video

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/system"
)

// FullLength as MaxDuration converts the whole video.
const FullLength = 999

// GIFOptions bound the size of a converted GIF.
type GIFOptions struct {
	MaxDuration float64 // seconds; >= FullLength means no limit
	FPS         int
	MaxWidth    int
}

// DefaultGIFOptions returns 10 s at 10 fps, at most 500 px wide.
func DefaultGIFOptions() GIFOptions {
	return GIFOptions{MaxDuration: 10, FPS: 10, MaxWidth: 500}
}

func (o GIFOptions) withDefaults() GIFOptions {
	d := DefaultGIFOptions()
	if o.MaxDuration <= 0 {
		o.MaxDuration = d.MaxDuration
	}
	if o.FPS <= 0 {
		o.FPS = d.FPS
	}
	if o.MaxWidth <= 0 {
		o.MaxWidth = d.MaxWidth
	}
	return o
}

// GIFResult describes a finished conversion.
type GIFResult struct {
	Path     string
	Frames   int
	Width    int
	Height   int
	Duration float64 // seconds of source covered
}

// GIFSize returns the output size for a w x h source: unchanged when it
// fits maxWidth, otherwise scaled down keeping the aspect ratio.
func GIFSize(w, h, maxWidth int) (int, int) {
	if w <= maxWidth {
		return w, h
	}
	nh := int(float64(maxWidth) * float64(h) / float64(w))
	return maxWidth, max(1, nh)
}

// GIFArgs returns the ffmpeg arguments that decode in to rgba frames of
// w x h at the target rate on stdout.
func GIFArgs(in string, w, h int, o GIFOptions) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-i", in}
	if o.MaxDuration < FullLength {
		args = append(args, "-t", strconv.FormatFloat(o.MaxDuration, 'f', -1, 64))
	}
	filter := Chain{}.FPS(o.FPS).ScaleLanczos(w, h)
	return append(args, "-vf", filter.String(), "-an", "-f", "rawvideo", "-pix_fmt", "rgba", "-")
}

// ConvertToGIF decodes a video with ffmpeg and writes a looping GIF.
func ConvertToGIF(ctx context.Context, in, out string, o GIFOptions) (*GIFResult, error) {
	o = o.withDefaults()
	if _, err := system.LookTool("ffmpeg"); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFFmpegMissing, err)
	}
	if _, err := os.Stat(in); err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}

	srcW, srcH, err := system.ProbeVideoSize(ctx, in)
	if err != nil {
		return nil, err
	}
	w, h := GIFSize(srcW, srcH, o.MaxWidth)
	covered := o.MaxDuration
	if d, err := system.ProbeDuration(ctx, in); err == nil && (o.MaxDuration >= FullLength || d < covered) {
		covered = d
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", GIFArgs(in, w, h, o)...)
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	b := NewGIFBuilder(o.FPS)
	readErr := readFrames(bufio.NewReaderSize(stdout, w*h*4), w, h, b.Add)
	if readErr != nil {
		cmd.Process.Kill()
	}
	waitErr := cmd.Wait()
	switch {
	case readErr != nil:
		return nil, readErr
	case waitErr != nil:
		return nil, fmt.Errorf("ffmpeg wait error: %w%s", waitErr, stderr.suffix())
	}

	if err := writeFileAtomic(out, b.Encode); err != nil {
		return nil, err
	}
	return &GIFResult{Path: out, Frames: b.Len(), Width: w, Height: h, Duration: covered}, nil
}

// readFrames splits a rawvideo rgba stream into frames.
func readFrames(r io.Reader, w, h int, fn func(*image.RGBA)) error {
	size := w * h * 4
	for {
		frame := image.NewRGBA(image.Rect(0, 0, w, h))
		_, err := io.ReadFull(r, frame.Pix[:size])
		switch {
		case err == io.EOF:
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			return fmt.Errorf("truncated frame from ffmpeg")
		case err != nil:
			return err
		}
		fn(frame)
	}
}

// GIFBuilder quantizes frames to the Plan 9 palette with Floyd-Steinberg
// dithering and collects them into a forever-looping animation.
type GIFBuilder struct {
	anim  gif.GIF
	delay int
}

// NewGIFBuilder returns a builder for frames shown at fps.
func NewGIFBuilder(fps int) *GIFBuilder {
	if fps <= 0 {
		fps = 10
	}
	return &GIFBuilder{
		anim:  gif.GIF{LoopCount: 0},
		delay: max(1, int(math.Round(100/float64(fps)))),
	}
}

// Add appends one frame.
func (b *GIFBuilder) Add(img *image.RGBA) {
	r := img.Bounds()
	p := image.NewPaletted(r, palette.Plan9)
	draw.FloydSteinberg.Draw(p, r, img, r.Min)
	b.anim.Image = append(b.anim.Image, p)
	b.anim.Delay = append(b.anim.Delay, b.delay)
}

// Len returns the number of frames added.
func (b *GIFBuilder) Len() int { return len(b.anim.Image) }

// Encode writes the animation.
func (b *GIFBuilder) Encode(w io.Writer) error {
	if len(b.anim.Image) == 0 {
		return errors.New("no frames extracted from video")
	}
	return gif.EncodeAll(w, &b.anim)
}

// writeFileAtomic writes through a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
