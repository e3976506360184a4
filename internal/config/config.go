package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	OutputDir string          `yaml:"output_dir" toml:"output_dir"`
	ShowStats bool            `yaml:"show_stats" toml:"show_stats"`
	Canvas    CanvasConfig    `yaml:"canvas" toml:"canvas"`
	Export    ExportConfig    `yaml:"export" toml:"export"`
	GIF       GIFConfig       `yaml:"gif" toml:"gif"`
	Thumbnail ThumbnailConfig `yaml:"thumbnail" toml:"thumbnail"`
	Assets    AssetsConfig    `yaml:"assets" toml:"assets"`
	Fonts     []FontConfig    `yaml:"fonts" toml:"fonts"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Store     StoreConfig     `yaml:"store" toml:"store"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// CanvasConfig is the canvas given to new projects.
type CanvasConfig struct {
	Width      int    `yaml:"width" toml:"width"`
	Height     int    `yaml:"height" toml:"height"`
	Background string `yaml:"background" toml:"background"`
}

type ExportConfig struct {
	Format  string `yaml:"format" toml:"format"` // webm or mp4
	FPS     int    `yaml:"fps" toml:"fps"`
	Encoder string `yaml:"encoder" toml:"encoder"` // empty picks per format
	Quality int    `yaml:"quality" toml:"quality"` // 0 picks per encoder
	// Preset overrides Width/Height: 16:9, 9:16 (Shorts/TikTok), 4:5 (Instagram).
	Preset    string  `yaml:"preset" toml:"preset"`
	Width     int     `yaml:"width" toml:"width"` // 0 keeps the canvas size
	Height    int     `yaml:"height" toml:"height"`
	FadeIn    float64 `yaml:"fade_in" toml:"fade_in"`
	FadeOut   float64 `yaml:"fade_out" toml:"fade_out"`
	SettleSec float64 `yaml:"settle" toml:"settle"`
}

type GIFConfig struct {
	MaxDuration float64 `yaml:"max_duration" toml:"max_duration"` // 999 = whole video
	FPS         int     `yaml:"fps" toml:"fps"`
	MaxWidth    int     `yaml:"max_width" toml:"max_width"`
}

type ThumbnailConfig struct {
	Width        int     `yaml:"width" toml:"width"`
	Height       int     `yaml:"height" toml:"height"`
	Quality      int     `yaml:"quality" toml:"quality"`
	RetryQuality int     `yaml:"retry_quality" toml:"retry_quality"`
	ShrinkFactor float64 `yaml:"shrink_factor" toml:"shrink_factor"`
	MinSize      int     `yaml:"min_size" toml:"min_size"`
	MaxAttempts  int     `yaml:"max_attempts" toml:"max_attempts"`
}

type AssetsConfig struct {
	Root       string  `yaml:"root" toml:"root"` // base for relative image paths
	CacheSize  int     `yaml:"cache_size" toml:"cache_size"`
	TimeoutSec float64 `yaml:"timeout" toml:"timeout"`
	PDFDPI     float64 `yaml:"pdf_dpi" toml:"pdf_dpi"`
	MaxPixels  int     `yaml:"max_pixels" toml:"max_pixels"`
}

type FontConfig struct {
	Family string `yaml:"family" toml:"family"`
	Weight int    `yaml:"weight" toml:"weight"`
	Path   string `yaml:"path" toml:"path"`
}

type ServerConfig struct {
	Addr   string `yaml:"addr" toml:"addr"`
	TickMs int    `yaml:"tick_ms" toml:"tick_ms"`
}

type StoreConfig struct {
	Path string `yaml:"path" toml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // text, json or empty for auto
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		OutputDir: "output",
		Canvas:    CanvasConfig{Width: 1280, Height: 720, Background: "#ffffff"},
		Export:    ExportConfig{Format: "webm", FPS: 30},
		GIF:       GIFConfig{MaxDuration: 10, FPS: 10, MaxWidth: 500},
		Thumbnail: ThumbnailConfig{
			Width:        200,
			Height:       200,
			Quality:      80,
			RetryQuality: 60,
			ShrinkFactor: 0.8,
			MinSize:      50,
			MaxAttempts:  12,
		},
		Assets:  AssetsConfig{CacheSize: 256, TimeoutSec: 10, PDFDPI: 150, MaxPixels: 50_000_000},
		Server:  ServerConfig{Addr: "127.0.0.1:8080", TickMs: 33},
		Store:   StoreConfig{Path: "videomaker.db"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML or TOML file over the defaults. An empty path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("config %s: unsupported extension (want .yaml, .yml or .toml)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Export.ApplyPreset()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyPreset replaces the output size with the preset's.
func (e *ExportConfig) ApplyPreset() {
	switch e.Preset {
	case "16:9":
		e.Width, e.Height = 1280, 720
	case "9:16":
		e.Width, e.Height = 720, 1280
	case "4:5":
		e.Width, e.Height = 1080, 1350
	}
}

// Settle returns the settle delay between scenes.
func (e ExportConfig) Settle() time.Duration {
	return time.Duration(e.SettleSec * float64(time.Second))
}

// Timeout returns the per-asset resolution timeout.
func (a AssetsConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSec * float64(time.Second))
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		add("canvas: size %dx%d must be positive", c.Canvas.Width, c.Canvas.Height)
	}
	switch c.Export.Format {
	case "webm", "mp4":
	default:
		add("export.format: %q is not webm or mp4", c.Export.Format)
	}
	if c.Export.FPS < 1 || c.Export.FPS > 120 {
		add("export.fps: %d out of range 1..120", c.Export.FPS)
	}
	switch c.Export.Preset {
	case "", "16:9", "9:16", "4:5":
	default:
		add("export.preset: unknown preset %q", c.Export.Preset)
	}
	if (c.Export.Width == 0) != (c.Export.Height == 0) || c.Export.Width < 0 || c.Export.Height < 0 {
		add("export: width and height must both be set or both be 0")
	}
	if c.Export.FadeIn < 0 || c.Export.FadeOut < 0 || c.Export.SettleSec < 0 {
		add("export: fades and settle must not be negative")
	}
	if c.GIF.FPS < 1 || c.GIF.MaxWidth < 1 || c.GIF.MaxDuration <= 0 {
		add("gif: fps, max_width and max_duration must be positive")
	}
	t := c.Thumbnail
	if t.Width < t.MinSize || t.Height < t.MinSize || t.MinSize < 1 {
		add("thumbnail: size %dx%d below min_size %d", t.Width, t.Height, t.MinSize)
	}
	if t.Quality < 1 || t.Quality > 100 || t.RetryQuality < 1 || t.RetryQuality > 100 {
		add("thumbnail: qualities must be within 1..100")
	}
	if t.ShrinkFactor <= 0 || t.ShrinkFactor >= 1 {
		add("thumbnail.shrink_factor: %v must be within (0, 1)", t.ShrinkFactor)
	}
	if t.MaxAttempts < 1 {
		add("thumbnail.max_attempts: must be at least 1")
	}
	if c.Assets.CacheSize < 1 || c.Assets.TimeoutSec <= 0 {
		add("assets: cache_size and timeout must be positive")
	}
	for i, f := range c.Fonts {
		if f.Family == "" || f.Path == "" {
			add("fonts[%d]: family and path are required", i)
		}
	}
	if c.Server.TickMs < 1 {
		add("server.tick_ms: must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
