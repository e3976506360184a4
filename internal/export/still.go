package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/assets"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/scene"
)

// StillExporter renders one scene to a PNG.
type StillExporter struct {
	Compositor FrameRenderer
	Assets     *assets.Resolver // optional
	Now        func() time.Time
}

// Artifact is an encoded still.
type Artifact struct {
	Name    string
	SceneID string
	Data    []byte
	Width   int
	Height  int
}

// Save writes the artifact into dir under its name.
func (a *Artifact) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, a.Name)
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Still resolves the scene's images, renders it at canvas size and encodes
// it as PNG. An empty sceneID picks the active scene.
func (e *StillExporter) Still(ctx context.Context, p *scene.Project, sceneID string) (*Artifact, error) {
	if p == nil || len(p.Scenes) == 0 {
		return nil, ErrNoScenes
	}
	s := p.ActiveScene()
	if sceneID != "" {
		var ok bool
		if s, ok = p.SceneByID(sceneID); !ok {
			return nil, fmt.Errorf("scene %q not found", sceneID)
		}
	}
	if p.Canvas.Width <= 0 || p.Canvas.Height <= 0 {
		return nil, fmt.Errorf("%w: canvas %dx%d", scene.ErrInvalid, p.Canvas.Width, p.Canvas.Height)
	}
	if e.Assets != nil {
		// Unavailable images are painted as absent.
		if _, err := e.Assets.EnsureLoaded(ctx, s.ImageSources(), assets.Normalized); err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, p.Canvas.Width, p.Canvas.Height))
	e.Compositor.RenderInto(img, s)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode still: %w", err)
	}
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	return &Artifact{
		Name:    StillName(s.Name, now()),
		SceneID: s.ID,
		Data:    buf.Bytes(),
		Width:   p.Canvas.Width,
		Height:  p.Canvas.Height,
	}, nil
}

// StillName returns "<slug>_<2006-01-02_15-04-05>.png".
func StillName(sceneName string, at time.Time) string {
	return Slug(sceneName) + "_" + at.Format("2006-01-02_15-04-05") + ".png"
}

// Slug lowercases name, drops diacritics and joins the remaining letters
// and digits with dashes. Letters outside Latin are kept.
func Slug(name string) string {
	// Chains carry state; each call gets its own.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return "scene"
	}
	return b.String()
}
