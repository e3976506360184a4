package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func dataURL(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

func TestResolveDataURL(t *testing.T) {
	r, err := New(DefaultFetcher(""), WithCacheSize(8))
	if err != nil {
		t.Fatal(err)
	}
	ref := dataURL(pngBytes(t, 4, 3, color.NRGBA{255, 0, 0, 255}))

	a := r.Resolve(context.Background(), ref, Normalized)
	if !a.Available() {
		t.Fatalf("asset unavailable: %v", a.Err)
	}
	if a.Format != "png" {
		t.Errorf("format = %q", a.Format)
	}
	rgba, ok := a.Image.(*image.RGBA)
	if !ok {
		t.Fatalf("normalized image is %T", a.Image)
	}
	if got := rgba.RGBAAt(1, 1); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("pixel = %v", got)
	}
	if a.Bytes != nil {
		t.Error("normalized mode kept the encoded bytes")
	}

	img, ok := r.Image(ref)
	if !ok || img.Bounds().Dx() != 4 {
		t.Errorf("Image lookup = %v, %v", img, ok)
	}
}

func TestResolveRawKeepsGIFFrames(t *testing.T) {
	pal := color.Palette{color.Black, color.White}
	anim := &gif.GIF{
		Image: []*image.Paletted{
			image.NewPaletted(image.Rect(0, 0, 2, 2), pal),
			image.NewPaletted(image.Rect(0, 0, 2, 2), pal),
		},
		Delay: []int{10, 10},
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		t.Fatal(err)
	}
	ref := "data:image/gif;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	r, _ := New(DefaultFetcher(""), WithCacheSize(8))
	a := r.Resolve(context.Background(), ref, Raw)
	if !a.Available() {
		t.Fatalf("asset unavailable: %v", a.Err)
	}
	if a.Animation == nil || len(a.Animation.Image) != 2 {
		t.Fatalf("animation = %+v", a.Animation)
	}
	if !bytes.Equal(a.Bytes, buf.Bytes()) {
		t.Error("raw bytes not kept")
	}
	if _, ok := r.Lookup(ref, Normalized); ok {
		t.Error("raw resolution populated the normalized cache")
	}
}

func TestResolveFailureIsCachedUntilForget(t *testing.T) {
	var calls atomic.Int32
	var healthy atomic.Bool
	data := pngBytes(t, 2, 2, color.White)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		if !healthy.Load() {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		w.Write(data)
	}))
	defer srv.Close()

	r, _ := New(DefaultFetcher(""), WithCacheSize(8))
	ref := srv.URL + "/a.png"

	a := r.Resolve(context.Background(), ref, Normalized)
	if a.Available() || !errors.Is(a.Err, ErrUnavailable) {
		t.Fatalf("expected unavailable asset, got %+v", a)
	}
	if _, ok := r.Image(ref); ok {
		t.Error("failed source served to the compositor")
	}

	healthy.Store(true)
	r.Resolve(context.Background(), ref, Normalized)
	if n := calls.Load(); n != 1 {
		t.Errorf("failure not cached: %d requests", n)
	}

	r.Forget(ref)
	if a := r.Resolve(context.Background(), ref, Normalized); !a.Available() {
		t.Fatalf("reload after Forget failed: %v", a.Err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("requests = %d, want 2", n)
	}
}

func TestResolveDeduplicatesConcurrentLoads(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	data := pngBytes(t, 2, 2, color.White)
	f := FetcherFunc(func(ctx context.Context, ref string) ([]byte, error) {
		calls.Add(1)
		<-release
		return data, nil
	})
	r, _ := New(f, WithCacheSize(8))

	refs := []string{"same", "same", "same", "same", "same"}
	done := make(chan []*Asset)
	go func() {
		out, _ := r.EnsureLoaded(context.Background(), refs, Normalized)
		done <- out
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	out := <-done
	for i, a := range out {
		if !a.Available() {
			t.Errorf("asset %d unavailable: %v", i, a.Err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("fetches = %d, want 1", n)
	}
}

func TestResolveTimeout(t *testing.T) {
	f := FetcherFunc(func(ctx context.Context, ref string) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	r, _ := New(f, WithCacheSize(8), WithTimeout(30*time.Millisecond))

	start := time.Now()
	a := r.Resolve(context.Background(), "slow.png", Normalized)
	if a.Available() {
		t.Fatal("slow source resolved")
	}
	if !errors.Is(a.Err, context.DeadlineExceeded) {
		t.Errorf("err = %v", a.Err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("timeout not applied, took %s", time.Since(start))
	}
}

func TestResolveUndecodable(t *testing.T) {
	r, _ := New(DefaultFetcher(""), WithCacheSize(8))
	a := r.Resolve(context.Background(), "data:text/plain,hello", Normalized)
	if a.Available() {
		t.Fatal("text resolved as an image")
	}
	t.Logf("error: %v", a.Err)
}

// hugePNG returns a 1x1 PNG whose header claims w x h.
func hugePNG(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := pngBytes(t, 1, 1, color.White)
	// Signature (8), IHDR length (4), "IHDR" (4), then width and height.
	binary.BigEndian.PutUint32(data[16:], w)
	binary.BigEndian.PutUint32(data[20:], h)
	binary.BigEndian.PutUint32(data[29:], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestResolveRejectsOversizedImages(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		opts []Option
	}{
		{"declared 60000x60000", hugePNG(t, 60000, 60000), nil},
		{"over a custom limit", pngBytes(t, 20, 20, color.White), []Option{WithMaxPixels(100)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := New(DefaultFetcher(""), append([]Option{WithCacheSize(8)}, tt.opts...)...)
			a := r.Resolve(context.Background(), dataURL(tt.data), Normalized)
			if a.Available() {
				t.Fatal("oversized image resolved")
			}
			if !errors.Is(a.Err, ErrUnavailable) || !errors.Is(a.Err, ErrTooLarge) {
				t.Errorf("err = %v", a.Err)
			}
		})
	}

	r, _ := New(DefaultFetcher(""), WithCacheSize(8), WithMaxPixels(400))
	if a := r.Resolve(context.Background(), dataURL(pngBytes(t, 20, 20, color.White)), Normalized); !a.Available() {
		t.Errorf("image at the limit failed: %v", a.Err)
	}
}

func TestMultiFetcherRejectsUnknownScheme(t *testing.T) {
	_, err := DefaultFetcher("").Fetch(context.Background(), "ftp://host/a.png")
	if err == nil {
		t.Fatal("expected error for ftp scheme")
	}
}
