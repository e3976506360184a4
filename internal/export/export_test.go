package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/compositor"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/logging"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/playback"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/scene"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/video"
)

// fakeRecorder records the top-left pixel of every frame it receives.
type fakeRecorder struct {
	unavailable error
	failAt      int // 1-based frame number whose write fails; 0 never

	mu      sync.Mutex
	streams []*fakeStream
}

type fakeStream struct {
	rec     *fakeRecorder
	params  video.StreamParams
	pixels  []color.RGBA
	corner  []color.RGBA // bottom-right pixel
	closed  bool
	aborted bool
}

func (r *fakeRecorder) Available() error { return r.unavailable }

func (r *fakeRecorder) Start(_ context.Context, p video.StreamParams) (video.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &fakeStream{rec: r, params: p}
	r.streams = append(r.streams, s)
	return s, nil
}

func (r *fakeRecorder) last() *fakeStream {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.streams) == 0 {
		return nil
	}
	return r.streams[len(r.streams)-1]
}

func (s *fakeStream) WriteFrame(img *image.RGBA) error {
	if b := img.Bounds(); b.Dx() != s.params.Width || b.Dy() != s.params.Height {
		return errors.New("size mismatch")
	}
	if s.rec.failAt > 0 && len(s.pixels)+1 == s.rec.failAt {
		return errors.New("broken pipe")
	}
	s.pixels = append(s.pixels, img.RGBAAt(0, 0))
	s.corner = append(s.corner, img.RGBAAt(s.params.Width-1, s.params.Height-1))
	return nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return os.WriteFile(s.params.Path, []byte("video"), 0o644)
}

func (s *fakeStream) Abort() error {
	s.aborted = true
	return os.Remove(s.params.Path)
}

// panicRenderer fails for one scene id.
type panicRenderer struct {
	inner FrameRenderer
	bad   string
}

func (r panicRenderer) RenderInto(dst *image.RGBA, s *scene.Scene) {
	if s.ID == r.bad {
		panic("render exploded")
	}
	r.inner.RenderInto(dst, s)
}

var (
	red  = color.RGBA{R: 0xff, A: 0xff}
	blue = color.RGBA{B: 0xff, A: 0xff}
)

// twoScenes returns a 101x51 project: 1 s red, then 2 s blue.
func twoScenes() *scene.Project {
	p := scene.NewProject("Demo", scene.Canvas{Width: 101, Height: 51, Background: "#ff0000"})
	p.Scenes[0].DurationSec = 1
	s := p.AddScene("Second")
	s.DurationSec = 2
	s.BgColor = "#0000ff"
	return p
}

func newExporter(rec video.Recorder) *VideoExporter {
	return &VideoExporter{
		Compositor: compositor.New(),
		Encoder:    rec,
		FPS:        10,
		Logger:     logging.Discard(),
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestExportOrderAndFrameCounts(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "demo.webm")
	rec := &fakeRecorder{}
	p := twoScenes()
	clock := playback.NewClock(p)

	var seen []string
	exp := newExporter(rec)
	exp.Clock = clock
	exp.OnProgress = func(pr Progress) { seen = append(seen, pr.SceneID) }

	res, err := exp.Export(context.Background(), p, out)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Frames != 30 || res.DegradedFrames != 0 || res.Width != 102 || res.Height != 52 {
		t.Errorf("result = %+v", res)
	}
	if res.Duration != 3 {
		t.Errorf("duration = %v, want 3", res.Duration)
	}

	s := rec.last()
	if s.params.Format != video.FormatWebM || s.params.FPS != 10 || !s.closed {
		t.Errorf("stream = %+v closed=%v", s.params, s.closed)
	}
	if len(s.pixels) != 30 {
		t.Fatalf("got %d frames", len(s.pixels))
	}
	for i, px := range s.pixels {
		want := red
		if i >= 10 {
			want = blue
		}
		if px != want || s.corner[i] != want {
			t.Fatalf("frame %d = %v / %v, want %v", i, px, s.corner[i], want)
		}
	}

	if len(seen) < 2 || seen[0] != p.Scenes[0].ID || seen[1] != p.Scenes[1].ID {
		t.Errorf("progress order = %v", seen)
	}
	if pos := clock.Position(); pos.Index != 1 {
		t.Errorf("clock left on scene %d", pos.Index)
	}

	if names := listDir(t, dir); len(names) != 1 || names[0] != "demo.webm" {
		t.Errorf("output dir = %v", names)
	}
}

func TestExportDegradesFailingScene(t *testing.T) {
	dir := t.TempDir()
	rec := &fakeRecorder{}
	p := twoScenes()
	exp := newExporter(rec)
	exp.Compositor = panicRenderer{inner: compositor.New(), bad: p.Scenes[1].ID}

	res, err := exp.Export(context.Background(), p, filepath.Join(dir, "out.webm"))
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Frames != 30 || res.DegradedFrames != 20 {
		t.Errorf("frames=%d degraded=%d", res.Frames, res.DegradedFrames)
	}
	// The failing scene still shows its own background.
	if px := rec.last().pixels[25]; px != blue {
		t.Errorf("degraded frame = %v", px)
	}
}

func TestExportEncoderErrorDiscardsOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.mp4")
	rec := &fakeRecorder{failAt: 5}
	exp := newExporter(rec)
	exp.Format = video.FormatMP4

	_, err := exp.Export(context.Background(), twoScenes(), out)
	var encErr *EncoderError
	if !errors.As(err, &encErr) {
		t.Fatalf("err = %v, want *EncoderError", err)
	}
	if encErr.Op != "write" || encErr.Frame != 4 {
		t.Errorf("encoder error = %+v", encErr)
	}
	if !strings.Contains(err.Error(), "broken pipe") {
		t.Errorf("message lost the cause: %v", err)
	}
	if !rec.last().aborted {
		t.Error("stream not aborted")
	}
	if names := listDir(t, dir); len(names) != 0 {
		t.Errorf("leftover files: %v", names)
	}
}

func TestExportCancel(t *testing.T) {
	t.Run("between scenes", func(t *testing.T) {
		dir := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		rec := &fakeRecorder{}
		exp := newExporter(rec)
		exp.OnProgress = func(pr Progress) {
			if pr.Scene == 1 {
				cancel()
			}
		}
		_, err := exp.Export(ctx, twoScenes(), filepath.Join(dir, "out.webm"))
		if !errors.Is(err, ErrCanceled) {
			t.Fatalf("err = %v, want ErrCanceled", err)
		}
		if s := rec.last(); !s.aborted || len(s.pixels) != 10 {
			t.Errorf("aborted=%v frames=%d", s.aborted, len(s.pixels))
		}
		if names := listDir(t, dir); len(names) != 0 {
			t.Errorf("leftover files: %v", names)
		}
	})

	t.Run("job cancel during settle", func(t *testing.T) {
		dir := t.TempDir()
		exp := newExporter(&fakeRecorder{})
		exp.Settle = time.Hour
		job, err := exp.Start(context.Background(), twoScenes(), filepath.Join(dir, "out.webm"))
		if err != nil {
			t.Fatal(err)
		}
		job.Cancel()
		select {
		case <-job.Done():
		case <-time.After(5 * time.Second):
			t.Fatal("export did not stop")
		}
		if _, err := job.Wait(); !errors.Is(err, ErrCanceled) {
			t.Errorf("err = %v", err)
		}
	})
}

func TestStartPreconditions(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.webm")

	missing := &fakeRecorder{unavailable: video.ErrFFmpegMissing}
	_, err := newExporter(missing).Start(context.Background(), twoScenes(), out)
	if !errors.Is(err, ErrRecorderUnavailable) || !errors.Is(err, video.ErrFFmpegMissing) {
		t.Errorf("err = %v", err)
	}
	if missing.last() != nil {
		t.Error("recorder started despite being unavailable")
	}

	if _, err := newExporter(&fakeRecorder{}).Start(context.Background(), &scene.Project{}, out); !errors.Is(err, ErrNoScenes) {
		t.Errorf("empty project err = %v", err)
	}

	bad := twoScenes()
	bad.Scenes[0].DurationSec = 0
	if _, err := newExporter(&fakeRecorder{}).Start(context.Background(), bad, out); !errors.Is(err, scene.ErrInvalid) {
		t.Errorf("invalid project err = %v", err)
	}

	held := flock.New(out + ".lock")
	if ok, err := held.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock: %v %v", ok, err)
	}
	defer held.Unlock()
	if _, err := newExporter(&fakeRecorder{}).Start(context.Background(), twoScenes(), out); !errors.Is(err, ErrBusy) {
		t.Errorf("locked output err = %v", err)
	}
}

func TestFrameCounts(t *testing.T) {
	tests := []struct {
		durations []float64
		fps       int
		want      []int
	}{
		{[]float64{1, 2}, 10, []int{10, 20}},
		{[]float64{1.25}, 30, []int{38}},
		{[]float64{5, 3}, 30, []int{150, 90}},
		{[]float64{0.01}, 30, []int{1}},
	}
	for _, tt := range tests {
		got := FrameCounts(tt.durations, tt.fps)
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("FrameCounts(%v, %d) = %v, want %v", tt.durations, tt.fps, got, tt.want)
				break
			}
		}
	}
}

func TestReport(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	exp := newExporter(&fakeRecorder{})
	exp.Report = true
	exp.ReportOut = &buf
	exp.BenchmarkLog = filepath.Join(dir, "benchmark.log")

	if _, err := exp.Export(context.Background(), twoScenes(), filepath.Join(dir, "out.webm")); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "--- [PERFORMANCE REPORT] ---") || !strings.Contains(buf.String(), "Frames: 30") {
		t.Errorf("report = %q", buf.String())
	}
	data, err := os.ReadFile(exp.BenchmarkLog)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Project: Demo | Scenes: 2 | Frames: 30") {
		t.Errorf("benchmark line = %q", data)
	}
}

func TestStill(t *testing.T) {
	p := twoScenes()
	p.Scenes[1].Name = "Café Déjà vu!"
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	exp := &StillExporter{Compositor: compositor.New(), Now: func() time.Time { return at }}

	art, err := exp.Still(context.Background(), p, p.Scenes[1].ID)
	if err != nil {
		t.Fatalf("Still: %v", err)
	}
	if art.Name != "cafe-deja-vu_2024-03-09_14-05-07.png" {
		t.Errorf("name = %q", art.Name)
	}
	img, err := png.Decode(bytes.NewReader(art.Data))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 101 || b.Dy() != 51 {
		t.Errorf("size = %v", b)
	}
	if r, g, b, _ := img.At(50, 25).RGBA(); r != 0 || g != 0 || b != 0xffff {
		t.Errorf("pixel = %v %v %v", r, g, b)
	}

	path, err := art.Save(t.TempDir())
	if err != nil || filepath.Base(path) != art.Name {
		t.Errorf("Save = %q, %v", path, err)
	}

	if _, err := exp.Still(context.Background(), p, "nope"); err == nil {
		t.Error("unknown scene accepted")
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Intro Scene":     "intro-scene",
		"  Café  déjà vu": "cafe-deja-vu",
		"Сцена 1":         "сцена-1",
		"!!!":             "scene",
		"":                "scene",
		"Q3/Q4 results":   "q3-q4-results",
	}
	for in, want := range tests {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlugConcurrent(t *testing.T) {
	names := []string{"Café Déjà vu!", "Ünïcödé Scène", "Plain 42"}
	want := make([]string, len(names))
	for i, n := range names {
		want[i] = Slug(n)
	}

	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				k := i % len(names)
				if got := Slug(names[k]); got != want[k] {
					errs <- got
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Errorf("concurrent Slug returned %q", got)
	}
}
