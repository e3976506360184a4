// Package export turns projects into stills and timed videos.
package export

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/assets"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/compositor"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/playback"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/scene"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/system"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/video"
)

// DefaultFPS is used when VideoExporter.FPS is zero.
const DefaultFPS = 30

// FrameRenderer paints a scene into dst in canvas coordinates.
// *compositor.Compositor implements it.
type FrameRenderer interface {
	RenderInto(dst *image.RGBA, s *scene.Scene)
}

// VideoExporter records a project scene by scene into a video file.
type VideoExporter struct {
	Compositor FrameRenderer
	Assets     *assets.Resolver // optional; preloads image sources
	Clock      *playback.Clock  // optional; follows the scene being recorded
	Encoder    video.Recorder

	FPS     int
	Format  string // webm (default) or mp4
	Codec   string // empty picks per format
	Quality int    // 0 picks per codec

	// Output size; 0x0 keeps the canvas size. Frames are scaled and padded
	// by the encoder.
	Width, Height   int
	FadeIn, FadeOut float64

	// Settle is waited after each scene switch before its frames are drawn.
	Settle time.Duration

	OnProgress func(Progress)
	Logger     *slog.Logger

	// Report prints a performance report to ReportOut (stdout when nil)
	// and appends a line to BenchmarkLog when set.
	Report       bool
	ReportOut    io.Writer
	BenchmarkLog string
}

// Progress is a snapshot of a running export.
type Progress struct {
	Scene       int    `json:"scene"`
	Scenes      int    `json:"scenes"`
	SceneID     string `json:"sceneId"`
	Frames      int    `json:"frames"`
	TotalFrames int    `json:"totalFrames"`
}

// Fraction returns completion in [0, 1].
func (p Progress) Fraction() float64 {
	if p.TotalFrames == 0 {
		return 0
	}
	return float64(p.Frames) / float64(p.TotalFrames)
}

// Result describes a finished export.
type Result struct {
	Path           string
	Format         string
	Width, Height  int // frame size handed to the encoder
	Frames         int
	DegradedFrames int
	Duration       float64 // seconds of video
	Elapsed        time.Duration
}

// Job is a running export.
type Job struct {
	cancel context.CancelFunc
	done   chan struct{}
	result *Result
	err    error

	mu       sync.Mutex
	progress Progress
}

// Wait blocks until the export finishes.
func (j *Job) Wait() (*Result, error) {
	<-j.done
	return j.result, j.err
}

// Done is closed when the export finishes.
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancel stops the export and discards its output. Wait returns ErrCanceled.
func (j *Job) Cancel() { j.cancel() }

func (j *Job) Progress() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

func (j *Job) update(fn func(*Progress)) Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn(&j.progress)
	return j.progress
}

// Export runs an export to completion.
func (e *VideoExporter) Export(ctx context.Context, p *scene.Project, outPath string) (*Result, error) {
	job, err := e.Start(ctx, p, outPath)
	if err != nil {
		return nil, err
	}
	return job.Wait()
}

// Start checks the preconditions and launches the export in the
// background. Nothing is written when it returns an error.
func (e *VideoExporter) Start(ctx context.Context, p *scene.Project, outPath string) (*Job, error) {
	if p == nil || len(p.Scenes) == 0 {
		return nil, ErrNoScenes
	}
	if err := p.Check(); err != nil {
		return nil, err
	}
	if e.Compositor == nil {
		return nil, fmt.Errorf("export: no compositor configured")
	}
	if e.Encoder == nil {
		return nil, fmt.Errorf("%w: no recorder configured", ErrRecorderUnavailable)
	}
	if err := e.Encoder.Available(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecorderUnavailable, err)
	}
	format := e.format()
	if format != video.FormatWebM && format != video.FormatMP4 {
		return nil, fmt.Errorf("export: unsupported format %q", format)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure output directory: %w", err)
	}

	lock := flock.New(outPath + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire output lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBusy, outPath)
	}

	counts := FrameCounts(p.Durations(), e.fps())
	total := 0
	for _, n := range counts {
		total += n
	}

	ctx, cancel := context.WithCancel(ctx)
	job := &Job{
		cancel:   cancel,
		done:     make(chan struct{}),
		progress: Progress{Scenes: len(p.Scenes), SceneID: p.Scenes[0].ID, TotalFrames: total},
	}
	go func() {
		defer close(job.done)
		defer cancel()
		defer func() {
			_ = lock.Unlock()
			_ = os.Remove(lock.Path())
		}()
		job.result, job.err = e.run(ctx, job, p, outPath, format, counts)
	}()
	return job, nil
}

func (e *VideoExporter) run(ctx context.Context, job *Job, p *scene.Project, outPath, format string, counts []int) (*Result, error) {
	start := time.Now()
	log := e.logger()
	fps := e.fps()
	w, h := even(p.Canvas.Width), even(p.Canvas.Height)

	if e.Assets != nil {
		if _, err := e.Assets.EnsureLoaded(ctx, p.ImageSources(), assets.Normalized); err != nil && ctx.Err() != nil {
			return nil, ErrCanceled
		}
	}

	total := job.Progress().TotalFrames
	duration := float64(total) / float64(fps)

	tmp, err := tempOutput(outPath)
	if err != nil {
		return nil, err
	}
	stream, err := e.Encoder.Start(ctx, video.StreamParams{
		Path:    tmp,
		Format:  format,
		Width:   w,
		Height:  h,
		FPS:     fps,
		Encoder: e.Codec,
		Quality: e.Quality,
		Filter:  video.OutputFilter(w, h, e.Width, e.Height, string(p.Canvas.Background), e.FadeIn, e.FadeOut, duration),
	})
	if err != nil {
		_ = os.Remove(tmp)
		return nil, &EncoderError{Op: "start", Err: err}
	}
	abort := func(cause error) (*Result, error) {
		if err := stream.Abort(); err != nil {
			log.Warn("encoder abort failed", "path", tmp, "error", err)
		}
		_ = os.Remove(tmp)
		return nil, cause
	}

	frame := system.GetFrame(w, h)
	defer system.PutFrame(frame)

	res := &Result{Path: outPath, Format: format, Width: w, Height: h, Duration: duration}
	log.Info("video export started", "project", p.ID, "scenes", len(p.Scenes), "frames", total, "size", fmt.Sprintf("%dx%d", w, h), "fps", fps, "format", format)

	for i, s := range p.Scenes {
		if ctx.Err() != nil {
			return abort(ErrCanceled)
		}
		if e.Clock != nil {
			e.Clock.SeekScene(i)
		}
		e.notify(job.update(func(pr *Progress) {
			pr.Scene = i
			pr.SceneID = s.ID
		}))
		if e.Settle > 0 {
			timer := time.NewTimer(e.Settle)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return abort(ErrCanceled)
			}
		}

		ok := e.renderScene(frame, s)
		for f := 0; f < counts[i]; f++ {
			if ctx.Err() != nil {
				return abort(ErrCanceled)
			}
			if err := stream.WriteFrame(frame); err != nil {
				if ctx.Err() != nil {
					return abort(ErrCanceled)
				}
				return abort(&EncoderError{Op: "write", Frame: res.Frames, Err: err})
			}
			res.Frames++
			if !ok {
				res.DegradedFrames++
			}
		}
		job.update(func(pr *Progress) { pr.Frames = res.Frames })
		log.Debug("scene recorded", "index", i, "scene", s.ID, "frames", counts[i])
	}

	if err := stream.Close(); err != nil {
		_ = os.Remove(tmp)
		if ctx.Err() != nil {
			return nil, ErrCanceled
		}
		return nil, &EncoderError{Op: "close", Err: err}
	}
	if err := os.Rename(tmp, outPath); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("move output into place: %w", err)
	}
	e.notify(job.Progress())

	res.Elapsed = time.Since(start)
	log.Info("video export finished", "path", outPath, "frames", res.Frames, "degraded", res.DegradedFrames, "elapsed", res.Elapsed)
	if res.DegradedFrames > 0 {
		log.Warn("some frames were written as background only", "degraded", res.DegradedFrames)
	}
	if e.Report {
		e.report(ctx, p, res)
	}
	return res, nil
}

// renderScene composites s into dst. A failure leaves dst filled with the
// scene background and reports false.
func (e *VideoExporter) renderScene(dst *image.RGBA, s *scene.Scene) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger().Warn("scene render failed, using background", "scene", s.ID, "panic", r)
			compositor.Fill(dst, s.BgColor)
			ok = false
		}
	}()
	e.Compositor.RenderInto(dst, s)
	return true
}

func (e *VideoExporter) notify(p Progress) {
	if e.OnProgress != nil {
		e.OnProgress(p)
	}
}

func (e *VideoExporter) fps() int {
	if e.FPS <= 0 {
		return DefaultFPS
	}
	return e.FPS
}

func (e *VideoExporter) format() string {
	if e.Format == "" {
		return video.FormatWebM
	}
	return e.Format
}

func (e *VideoExporter) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// FrameCounts returns round(d*fps) for every duration, at least one frame
// per scene.
func FrameCounts(durations []float64, fps int) []int {
	out := make([]int, len(durations))
	for i, d := range durations {
		out[i] = max(1, int(math.Round(d*float64(fps))))
	}
	return out
}

func even(n int) int {
	return n + n%2
}

// tempOutput reserves a hidden file next to outPath so the final rename
// stays on one filesystem.
func tempOutput(outPath string) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(outPath), "."+filepath.Base(outPath)+".*.part")
	if err != nil {
		return "", fmt.Errorf("create temp output: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}
