package thumbnail

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math/rand"
	"strings"
	"testing"

	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/compositor"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/scene"
)

var canvas = scene.Canvas{Width: 1280, Height: 720, Background: "#ffffff"}

func flatScene() *scene.Scene {
	return &scene.Scene{ID: "flat", Name: "Flat", DurationSec: 3, BgColor: "#3b82f6"}
}

// noisyScene covers the canvas with random pixels, which neither codec
// compresses well.
func noisyScene() (*scene.Scene, compositor.AssetLookup) {
	rng := rand.New(rand.NewSource(1))
	noise := image.NewRGBA(image.Rect(0, 0, 400, 400))
	for i := range noise.Pix {
		noise.Pix[i] = uint8(rng.Intn(256))
		if i%4 == 3 {
			noise.Pix[i] = 255
		}
	}
	img := scene.NewImage("noise", "noise", 1280, 720)
	img.X, img.Y = 640, 360
	s := &scene.Scene{ID: "noisy", DurationSec: 3, BgColor: "#000000", Elements: []scene.Element{img}}
	return s, compositor.AssetLookupFunc(func(string) (image.Image, bool) { return noise, true })
}

func TestFlatSceneFitsWithoutShrinking(t *testing.T) {
	g := New(compositor.New())
	th, err := g.Generate(context.Background(), flatScene(), canvas, SceneBudget, 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if th.Width != 200 || th.Height != 200 {
		t.Errorf("size = %dx%d, want 200x200", th.Width, th.Height)
	}
	if len(th.DataURL()) > SceneBudget {
		t.Errorf("data URL %d bytes over budget", len(th.DataURL()))
	}
	if !strings.HasPrefix(th.DataURL(), "data:image/jpeg;base64,") {
		t.Errorf("unexpected prefix %q", th.DataURL()[:24])
	}
	t.Logf("flat scene: %s, %d bytes, %d attempts", th.Format, len(th.DataURL()), th.Attempts)
}

func TestPNGStepBeforeShrinking(t *testing.T) {
	// A flat 200x200 JPEG data URL is about 1.7 KB at either quality
	// because of its tables; the flat PNG is about 600 bytes.
	g := New(compositor.New())
	th, err := g.Generate(context.Background(), flatScene(), canvas, 1000, 0)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if th.Format != "png" || th.Attempts != 3 || th.Width != 200 {
		t.Errorf("got %s after %d attempts at %d px, want png on attempt 3 at 200 px", th.Format, th.Attempts, th.Width)
	}
}

func TestNeverOverBudget(t *testing.T) {
	s, lookup := noisyScene()
	g := New(compositor.New(compositor.WithAssets(lookup)))

	for _, budget := range []int{200000, 60000, 20000, 8000} {
		th, err := g.Generate(context.Background(), s, canvas, budget, 0)
		if err != nil {
			if !errors.Is(err, ErrTooLarge) {
				t.Fatalf("budget %d: unexpected error %v", budget, err)
			}
			t.Logf("budget %d: %v", budget, err)
			continue
		}
		if n := len(th.DataURL()); n > budget {
			t.Errorf("budget %d: got %d bytes", budget, n)
		}
		t.Logf("budget %d: %s %dx%d after %d attempts", budget, th.Format, th.Width, th.Height, th.Attempts)
	}
}

func TestTooLarge(t *testing.T) {
	s, lookup := noisyScene()
	g := New(compositor.New(compositor.WithAssets(lookup)))

	t.Run("attempts exhausted", func(t *testing.T) {
		_, err := g.Generate(context.Background(), s, canvas, 100, 5)
		var be *BudgetError
		if !errors.As(err, &be) {
			t.Fatalf("err = %v, want *BudgetError", err)
		}
		if be.Attempts != 5 {
			t.Errorf("attempts = %d", be.Attempts)
		}
	})
	t.Run("floor reached", func(t *testing.T) {
		_, err := g.Generate(context.Background(), s, canvas, 100, 1000)
		var be *BudgetError
		if !errors.As(err, &be) || !errors.Is(err, ErrTooLarge) {
			t.Fatalf("err = %v", err)
		}
		// 200 -> 160 -> 128 -> 102 -> 81 -> 64 -> 51, three encodings each.
		if be.Attempts != 21 {
			t.Errorf("attempts = %d, want 21", be.Attempts)
		}
	})
}

func TestForScenes(t *testing.T) {
	p := scene.NewProject("Demo", canvas)
	p.AddScene("Second")
	p.Scenes[1].BgColor = "#ff0000"

	g := New(compositor.New())
	thumbs, err := g.ForScenes(context.Background(), p)
	if err != nil {
		t.Fatalf("ForScenes: %v", err)
	}
	for i, s := range p.Scenes {
		if thumbs[i] == nil || s.Thumbnail != thumbs[i].DataURL() {
			t.Errorf("scene %d thumbnail not stored", i)
		}
	}

	if _, err := g.ForProject(context.Background(), p); err != nil {
		t.Fatalf("ForProject: %v", err)
	}
	if !strings.HasPrefix(p.Thumbnail, "data:image/") {
		t.Error("project thumbnail not stored")
	}
}

func TestLetterboxUsesSceneBackground(t *testing.T) {
	c := compositor.New()
	img := c.RenderFit(flatScene(), canvas, 200, 200)
	if got := img.RGBAAt(100, 2); got != (color.RGBA{0x3b, 0x82, 0xf6, 0xff}) {
		t.Errorf("letterbox pixel = %v", got)
	}
}
