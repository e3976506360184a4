package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/system"
)

// ErrFFmpegMissing is returned by Available when ffmpeg cannot be run.
var ErrFFmpegMissing = errors.New("ffmpeg is not available")

// Container formats.
const (
	FormatWebM = "webm"
	FormatMP4  = "mp4"
)

// StreamParams describe one encoding session.
type StreamParams struct {
	Path    string
	Format  string // webm or mp4
	Width   int
	Height  int
	FPS     int
	Encoder string // empty picks the default for Format
	Quality int    // 0 picks the encoder default
	Filter  string // optional -vf chain applied to the frames
}

// Recorder starts encoding sessions fed with raw frames.
type Recorder interface {
	Available() error
	Start(ctx context.Context, p StreamParams) (Stream, error)
}

// Stream accepts frames of exactly the size given at Start.
type Stream interface {
	WriteFrame(img *image.RGBA) error
	// Close flushes and finalizes the output.
	Close() error
	// Abort stops the encoder and removes partial output.
	Abort() error
}

// FFmpegRecorder spawns ffmpeg reading rawvideo rgba on stdin.
type FFmpegRecorder struct {
	Binary string
}

func (r *FFmpegRecorder) binary() string {
	if r.Binary == "" {
		return "ffmpeg"
	}
	return r.Binary
}

// Available reports whether ffmpeg can be found.
func (r *FFmpegRecorder) Available() error {
	if _, err := system.LookTool(r.binary()); err != nil {
		return fmt.Errorf("%w: %w", ErrFFmpegMissing, err)
	}
	return nil
}

// Start launches ffmpeg for p. The returned stream owns the process.
func (r *FFmpegRecorder) Start(ctx context.Context, p StreamParams) (Stream, error) {
	if p.Width <= 0 || p.Height <= 0 || p.FPS <= 0 {
		return nil, fmt.Errorf("invalid stream size %dx%d@%d", p.Width, p.Height, p.FPS)
	}
	if p.Encoder == "" {
		p.Encoder = DefaultEncoder(ctx, p.Format)
	}
	if p.Quality <= 0 {
		p.Quality = system.DefaultQuality(p.Encoder)
	}

	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, r.binary(), BuildArgs(p)...)
	stderr := &tailBuffer{max: 4096}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	return &ffmpegStream{
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		cancel: cancel,
		params: p,
	}, nil
}

// DefaultEncoder picks the codec for a container.
func DefaultEncoder(ctx context.Context, format string) string {
	if format == FormatMP4 {
		return system.GetBestH264Encoder(ctx)
	}
	return "libvpx-vp9"
}

// BuildArgs returns the ffmpeg arguments for a rawvideo rgba session.
func BuildArgs(p StreamParams) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-framerate", strconv.Itoa(p.FPS),
		"-i", "-",
		"-an",
	}
	if p.Filter != "" {
		args = append(args, "-vf", p.Filter)
	}
	args = append(args, "-c:v", p.Encoder, "-pix_fmt", "yuv420p", "-r", strconv.Itoa(p.FPS))
	args = append(args, system.QualityArgs(p.Encoder, p.Quality)...)

	// The output goes to a temporary name, so the muxer is named explicitly.
	switch p.Format {
	case FormatMP4:
		args = append(args, "-movflags", "+faststart", "-f", "mp4")
	default:
		args = append(args, "-f", "webm")
	}
	return append(args, p.Path)
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailBuffer
	cancel context.CancelFunc
	params StreamParams

	once   sync.Once
	err    error
	frames int
}

func (s *ffmpegStream) WriteFrame(img *image.RGBA) error {
	b := img.Bounds()
	if b.Dx() != s.params.Width || b.Dy() != s.params.Height {
		return fmt.Errorf("frame %dx%d does not match stream %dx%d", b.Dx(), b.Dy(), s.params.Width, s.params.Height)
	}
	if err := writeRawRGBA(s.stdin, img); err != nil {
		return fmt.Errorf("write raw error: %w%s", err, s.stderr.suffix())
	}
	s.frames++
	return nil
}

func (s *ffmpegStream) Close() error {
	s.once.Do(func() {
		defer s.cancel()
		if err := s.stdin.Close(); err != nil {
			s.err = fmt.Errorf("close stdin: %w", err)
		}
		if err := s.cmd.Wait(); err != nil {
			s.err = fmt.Errorf("ffmpeg wait error: %w%s", err, s.stderr.suffix())
		}
	})
	return s.err
}

func (s *ffmpegStream) Abort() error {
	s.once.Do(func() {
		s.cancel()
		s.stdin.Close()
		s.cmd.Wait()
		s.err = errors.New("stream aborted")
	})
	if err := os.Remove(s.params.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// writeRawRGBA writes tightly packed RGBA rows.
func writeRawRGBA(w io.Writer, img *image.RGBA) error {
	b := img.Bounds()
	if img.Stride == b.Dx()*4 && b.Min == (image.Point{}) {
		_, err := w.Write(img.Pix[:b.Dy()*img.Stride])
		return err
	}
	packed := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(packed, packed.Bounds(), img, b.Min, draw.Src)
	_, err := w.Write(packed.Pix)
	return err
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}

func (t *tailBuffer) suffix() string {
	if s := t.String(); s != "" {
		return ", output: " + s
	}
	return ""
}
