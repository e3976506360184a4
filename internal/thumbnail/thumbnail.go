// Package thumbnail produces small preview images that fit a byte budget.
package thumbnail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/compositor"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/scene"
	"golang.org/x/sync/errgroup"
)

// Budgets used for project and per-scene thumbnails, in data URL bytes.
const (
	ProjectBudget = 500000
	SceneBudget   = 100000
)

// ErrTooLarge is wrapped by every *BudgetError.
var ErrTooLarge = errors.New("thumbnail too large")

// BudgetError reports a ladder that ran out of steps.
type BudgetError struct {
	Budget   int
	Smallest int // data URL length of the best attempt
	Attempts int
	Width    int
	Height   int
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("thumbnail too large: best attempt %d bytes at %dx%d after %d attempts, budget %d",
		e.Smallest, e.Width, e.Height, e.Attempts, e.Budget)
}

func (e *BudgetError) Unwrap() error { return ErrTooLarge }

// Options tune the ladder.
type Options struct {
	Width        int
	Height       int
	Quality      int
	RetryQuality int
	ShrinkFactor float64
	MinSize      int
	MaxAttempts  int
}

// DefaultOptions returns the standard 200x200 ladder.
func DefaultOptions() Options {
	return Options{
		Width:        200,
		Height:       200,
		Quality:      80,
		RetryQuality: 60,
		ShrinkFactor: 0.8,
		MinSize:      50,
		MaxAttempts:  12,
	}
}

// Thumbnail is an encoded preview within budget.
type Thumbnail struct {
	Data     []byte
	Format   string // "jpeg" or "png"
	Width    int
	Height   int
	Attempts int
}

// DataURL returns the thumbnail as an embeddable data URL.
func (t *Thumbnail) DataURL() string {
	return dataURL(t.Format, t.Data)
}

// Generator renders and encodes thumbnails.
type Generator struct {
	Compositor *compositor.Compositor
	Options    Options
}

// New returns a generator with the default ladder. Missing icons are
// painted as placeholders.
func New(c *compositor.Compositor) *Generator {
	return &Generator{
		Compositor: c.Derive(compositor.WithIconFallback(true)),
		Options:    DefaultOptions(),
	}
}

type encoding struct {
	format  string
	quality int
}

// Generate walks the degradation ladder: JPEG at Quality, JPEG at
// RetryQuality, PNG, then shrink by ShrinkFactor, re-render and repeat,
// until the data URL fits budget. A result is never over budget.
// maxAttempts <= 0 uses Options.MaxAttempts.
func (g *Generator) Generate(ctx context.Context, s *scene.Scene, canvas scene.Canvas, budget, maxAttempts int) (*Thumbnail, error) {
	opts := g.Options
	if maxAttempts <= 0 {
		maxAttempts = opts.MaxAttempts
	}
	if opts.ShrinkFactor <= 0 || opts.ShrinkFactor >= 1 {
		opts.ShrinkFactor = 0.8
	}
	ladder := []encoding{{"jpeg", opts.Quality}, {"jpeg", opts.RetryQuality}, {"png", 0}}

	w, h := opts.Width, opts.Height
	attempts := 0
	best := &BudgetError{Budget: budget, Smallest: math.MaxInt}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img := g.Compositor.RenderFit(s, canvas, w, h)

		for _, enc := range ladder {
			if attempts >= maxAttempts {
				best.Attempts = attempts
				return nil, best
			}
			attempts++

			data, err := encode(img, enc)
			if err != nil {
				return nil, fmt.Errorf("encode thumbnail: %w", err)
			}
			size := dataURLLen(enc.format, len(data))
			if size <= budget {
				return &Thumbnail{Data: data, Format: enc.format, Width: w, Height: h, Attempts: attempts}, nil
			}
			if size < best.Smallest {
				best.Smallest, best.Width, best.Height = size, w, h
			}
		}

		nw := int(math.Floor(float64(w) * opts.ShrinkFactor))
		nh := int(math.Floor(float64(h) * opts.ShrinkFactor))
		if nw < opts.MinSize || nh < opts.MinSize {
			best.Attempts = attempts
			return nil, best
		}
		w, h = nw, nh
	}
}

// ForProject renders the active scene under ProjectBudget and stores the
// data URL on the project.
func (g *Generator) ForProject(ctx context.Context, p *scene.Project) (*Thumbnail, error) {
	s := p.ActiveScene()
	if s == nil {
		return nil, errors.New("project has no scenes")
	}
	th, err := g.Generate(ctx, s, p.Canvas, ProjectBudget, 0)
	if err != nil {
		return nil, err
	}
	p.Thumbnail = th.DataURL()
	return th, nil
}

// ForScenes renders every scene in parallel under SceneBudget and stores
// each data URL on its scene. Scenes that cannot fit keep their old
// thumbnail; their errors are joined into the result.
func (g *Generator) ForScenes(ctx context.Context, p *scene.Project) ([]*Thumbnail, error) {
	out := make([]*Thumbnail, len(p.Scenes))
	errs := make([]error, len(p.Scenes))

	eg, ctx := errgroup.WithContext(ctx)
	for i, s := range p.Scenes {
		eg.Go(func() error {
			th, err := g.Generate(ctx, s, p.Canvas, SceneBudget, 0)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				errs[i] = fmt.Errorf("scene %s: %w", s.ID, err)
				return nil
			}
			out[i] = th
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return out, err
	}
	for i, th := range out {
		if th != nil {
			p.Scenes[i].Thumbnail = th.DataURL()
		}
	}
	return out, errors.Join(errs...)
}

func encode(img image.Image, enc encoding) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch enc.format {
	case "png":
		e := png.Encoder{CompressionLevel: png.BestCompression}
		err = e.Encode(&buf, img)
	default:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: enc.quality})
	}
	return buf.Bytes(), err
}

func dataURLPrefix(format string) string {
	return "data:image/" + format + ";base64,"
}

func dataURL(format string, data []byte) string {
	return dataURLPrefix(format) + base64.StdEncoding.EncodeToString(data)
}

func dataURLLen(format string, n int) int {
	return len(dataURLPrefix(format)) + base64.StdEncoding.EncodedLen(n)
}
