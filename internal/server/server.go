// Package server exposes a loaded project over HTTP for live preview:
// playback control, frames, stills, thumbnails and video export.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/assets"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/compositor"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/export"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/playback"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/scene"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/thumbnail"
)

// Options configures a Server. Project and Compositor are required.
type Options struct {
	Project    *scene.Project
	Compositor *compositor.Compositor
	Assets     *assets.Resolver
	Clock      *playback.Clock // created from Project when nil
	// Exporter holds the video settings; each export request runs on a
	// copy with the server's compositor, assets and clock.
	Exporter *export.VideoExporter
	Tick     time.Duration
	WorkDir  string // exports are staged here; os.TempDir when empty
	Logger   *slog.Logger
}

// Server serves one project. The project is treated as read-only.
type Server struct {
	project  *scene.Project
	comp     *compositor.Compositor
	assets   *assets.Resolver
	clock    *playback.Clock
	stills   *export.StillExporter
	thumbs   *thumbnail.Generator
	exporter export.VideoExporter
	tick     time.Duration
	workDir  string
	logger   *slog.Logger
	router   chi.Router
}

// New builds the server and its routes.
func New(opts Options) (*Server, error) {
	if opts.Project == nil || len(opts.Project.Scenes) == 0 {
		return nil, export.ErrNoScenes
	}
	if opts.Compositor == nil {
		return nil, errors.New("server: compositor is required")
	}
	// Normalize once here; handlers only read the project afterwards.
	if err := opts.Project.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		project: opts.Project,
		comp:    opts.Compositor,
		assets:  opts.Assets,
		clock:   opts.Clock,
		tick:    opts.Tick,
		workDir: opts.WorkDir,
		logger:  logger,
	}
	if s.clock == nil {
		s.clock = playback.NewClock(s.project, playback.WithOnSwitch(func(pos playback.Position) {
			logger.Debug("active scene changed", "index", pos.Index, "scene", pos.SceneID, "time", pos.Time)
		}))
	}
	if s.tick <= 0 {
		s.tick = 33 * time.Millisecond
	}
	if s.workDir == "" {
		s.workDir = os.TempDir()
	}
	// Exported artifacts show a placeholder for unknown icons; the live
	// frame does not.
	exportComp := s.comp.Derive(compositor.WithIconFallback(true))
	s.stills = &export.StillExporter{Compositor: exportComp, Assets: s.assets}
	s.thumbs = thumbnail.New(s.comp)
	if opts.Exporter != nil {
		s.exporter = *opts.Exporter
	}
	s.exporter.Compositor = exportComp
	s.exporter.Assets = s.assets
	s.exporter.Clock = s.clock
	s.exporter.OnProgress = nil
	if s.exporter.Logger == nil {
		s.exporter.Logger = logger
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/project", s.handleProject)
		r.Get("/playback", s.handlePlayback)
		r.Post("/playback/seek", s.handleSeek)
		r.Post("/playback/{action}", s.handlePlaybackAction)
		r.Get("/frame.png", s.handleFrame)
		r.Get("/scenes/{id}/still.png", s.handleStill)
		r.Get("/scenes/{id}/thumbnail", s.handleThumbnail)
		r.Post("/export/video", s.handleExportVideo)
	})
	s.router = r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Clock returns the playback clock driven by the server.
func (s *Server) Clock() *playback.Clock { return s.clock }

// Run serves on addr and ticks the clock until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		_ = s.clock.Run(ctx, s.tick)
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("preview server listening", "addr", addr, "project", s.project.ID)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := scene.EncodeProject(&buf, s.project); err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handlePlayback(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.clock.Tick())
}

func (s *Server) handlePlaybackAction(w http.ResponseWriter, r *http.Request) {
	var pos playback.Position
	switch action := chi.URLParam(r, "action"); action {
	case "play":
		pos = s.clock.Play()
	case "pause":
		pos = s.clock.Pause()
	case "stop":
		pos = s.clock.Stop()
	default:
		http.Error(w, fmt.Sprintf("unknown playback action %q", action), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if idx := q.Get("scene"); idx != "" {
		i, err := strconv.Atoi(idx)
		if err != nil || i < 0 || i >= len(s.project.Scenes) {
			http.Error(w, "scene must be a scene index", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, s.clock.SeekScene(i))
		return
	}
	t, err := strconv.ParseFloat(q.Get("t"), 64)
	if err != nil || math.IsNaN(t) || math.IsInf(t, 0) {
		http.Error(w, "t must be a number of seconds", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.clock.Seek(t))
}

// handleFrame renders the scene the clock is on. Optional w and h scale
// the frame to fit.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	pos := s.clock.Tick()
	sc, ok := s.project.SceneByID(pos.SceneID)
	if !ok {
		sc = s.project.Scenes[0]
	}
	s.preload(r.Context(), sc)

	canvas := s.project.Canvas
	q := r.URL.Query()
	width, err := frameSide(q.Get("w"), canvas.Width)
	if err != nil {
		http.Error(w, "w: "+err.Error(), http.StatusBadRequest)
		return
	}
	height, err := frameSide(q.Get("h"), canvas.Height)
	if err != nil {
		http.Error(w, "h: "+err.Error(), http.StatusBadRequest)
		return
	}
	img := s.comp.RenderFit(sc, canvas, width, height)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Scene-Id", sc.ID)
	if err := png.Encode(w, img); err != nil {
		s.logger.Warn("frame encode failed", "error", err)
	}
}

// MaxFrameSide bounds the w and h a frame request may ask for.
const MaxFrameSide = 4096

// frameSide parses a requested frame dimension; empty keeps def.
func frameSide(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > MaxFrameSide {
		return 0, fmt.Errorf("want an integer in [1, %d], got %q", MaxFrameSide, v)
	}
	return n, nil
}

func (s *Server) handleStill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.project.SceneByID(id); !ok {
		http.Error(w, "scene not found", http.StatusNotFound)
		return
	}
	art, err := s.stills.Still(r.Context(), s.project, id)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Name))
	_, _ = w.Write(art.Data)
}

type thumbnailResponse struct {
	SceneID  string `json:"sceneId"`
	DataURL  string `json:"dataUrl"`
	Format   string `json:"format"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Attempts int    `json:"attempts"`
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sc, ok := s.project.SceneByID(id)
	if !ok {
		http.Error(w, "scene not found", http.StatusNotFound)
		return
	}
	s.preload(r.Context(), sc)

	budget := thumbnail.SceneBudget
	if v, err := strconv.Atoi(r.URL.Query().Get("budget")); err == nil && v > 0 {
		budget = v
	}
	th, err := s.thumbs.Generate(r.Context(), sc, s.project.Canvas, budget, 0)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, thumbnail.ErrTooLarge) {
			status = http.StatusUnprocessableEntity
		}
		s.fail(w, r, status, err)
		return
	}
	writeJSON(w, http.StatusOK, thumbnailResponse{
		SceneID:  sc.ID,
		DataURL:  th.DataURL(),
		Format:   th.Format,
		Width:    th.Width,
		Height:   th.Height,
		Attempts: th.Attempts,
	})
}

// handleExportVideo records the project and streams the file back. A
// client disconnect cancels the export.
func (s *Server) handleExportVideo(w http.ResponseWriter, r *http.Request) {
	exp := s.exporter
	if f := r.URL.Query().Get("format"); f != "" {
		exp.Format = f
	}
	format := exp.Format
	if format == "" {
		format = "webm"
	}

	dir, err := os.MkdirTemp(s.workDir, "videomaker-export-")
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	defer os.RemoveAll(dir)

	name := export.Slug(s.project.Title) + "." + format
	out := filepath.Join(dir, name)
	res, err := exp.Export(r.Context(), s.project, out)
	if err != nil {
		s.fail(w, r, exportStatus(err), err)
		return
	}

	f, err := os.Open(res.Path)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "video/"+format)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("X-Frames", strconv.Itoa(res.Frames))
	w.Header().Set("X-Degraded-Frames", strconv.Itoa(res.DegradedFrames))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func exportStatus(err error) int {
	var encErr *export.EncoderError
	switch {
	case errors.Is(err, export.ErrRecorderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, export.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, scene.ErrInvalid), errors.Is(err, export.ErrNoScenes):
		return http.StatusUnprocessableEntity
	case errors.As(err, &encErr):
		return http.StatusBadGateway
	case errors.Is(err, export.ErrCanceled):
		// nginx's "client closed request"
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) preload(ctx context.Context, sc *scene.Scene) {
	if s.assets == nil {
		return
	}
	_, _ = s.assets.EnsureLoaded(ctx, sc.ImageSources(), assets.Normalized)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed",
		"path", r.URL.Path,
		"status", status,
		"request_id", middleware.GetReqID(r.Context()),
		"error", err)
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestLogger logs one line per request at debug level.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
