package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/assets"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/compositor"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/config"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/export"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/logging"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/scene"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/store"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/thumbnail"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/video"
)

func newRootCommand() *cobra.Command {
	var flags rootFlags
	ctx := &commandContext{flags: &flags}

	rootCmd := &cobra.Command{
		Use:           "videomaker",
		Short:         "Сборка сцен в изображения, превью и видео",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.config, "config", "c", "", "Файл конфигурации (.yaml или .toml)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Уровень логов: debug, info, warn, error")
	pf.StringVar(&flags.db, "db", "", "Путь к базе проектов SQLite")

	rootCmd.AddCommand(newNewCommand(ctx))
	rootCmd.AddCommand(newImportCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newInfoCommand(ctx))
	rootCmd.AddCommand(newStillCommand(ctx))
	rootCmd.AddCommand(newThumbnailCommand(ctx))
	rootCmd.AddCommand(newVideoCommand(ctx))
	rootCmd.AddCommand(newGIFCommand(ctx))
	rootCmd.AddCommand(newServeCommand(ctx))

	return rootCmd
}

type rootFlags struct {
	config   string
	logLevel string
	db       string
}

// commandContext lazily builds what the subcommands share.
type commandContext struct {
	flags *rootFlags

	configOnce sync.Once
	config     *config.Config
	logger     *slog.Logger
	configErr  error

	resolverOnce sync.Once
	resolved     *assets.Resolver
	resolverErr  error
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = err
			return
		}
		if c.flags.logLevel != "" {
			cfg.Logging.Level = c.flags.logLevel
		}
		if c.flags.db != "" {
			cfg.Store.Path = c.flags.db
		}
		logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
		if err != nil {
			c.configErr = err
			return
		}
		slog.SetDefault(logger)
		c.config = cfg
		c.logger = logger
	})
	return c.config, c.configErr
}

func (c *commandContext) openStore() (*store.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Store.Path)
}

// loadProject accepts a path to a project JSON file, a store id or
// "latest" for the newest JSON in the output dir.
func (c *commandContext) loadProject(cmd *cobra.Command, ref string) (*scene.Project, error) {
	if ref == "latest" {
		path, err := scene.FindLatestProject(c.config.OutputDir)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[*] Найден последний проект: %s\n", path)
		return scene.ReadProject(path)
	}
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return scene.ReadProject(ref)
	}
	if strings.HasSuffix(strings.ToLower(ref), ".json") {
		return nil, fmt.Errorf("файл проекта не найден: %s", ref)
	}
	st, err := c.openStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.Load(cmd.Context(), ref)
}

func (c *commandContext) newCompositor() (*compositor.Compositor, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	fonts := compositor.NewFontSet()
	for _, f := range cfg.Fonts {
		if err := fonts.RegisterFile(f.Family, compositor.WeightOf(f.Weight), f.Path); err != nil {
			return nil, fmt.Errorf("шрифт %s: %w", f.Family, err)
		}
	}
	resolver, err := c.resolver()
	if err != nil {
		return nil, err
	}
	return compositor.New(
		compositor.WithFonts(fonts),
		compositor.WithAssets(resolver),
		compositor.WithLogger(c.logger),
	), nil
}

func (c *commandContext) resolver() (*assets.Resolver, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.resolverOnce.Do(func() {
		c.resolved, c.resolverErr = assets.New(
			assets.DefaultFetcher(cfg.Assets.Root),
			assets.WithCacheSize(cfg.Assets.CacheSize),
			assets.WithTimeout(cfg.Assets.Timeout()),
			assets.WithPDFDPI(cfg.Assets.PDFDPI),
			assets.WithMaxPixels(cfg.Assets.MaxPixels),
			assets.WithLogger(c.logger),
		)
	})
	return c.resolved, c.resolverErr
}

func (c *commandContext) thumbnailer(comp *compositor.Compositor) *thumbnail.Generator {
	t := c.config.Thumbnail
	g := thumbnail.New(comp)
	g.Options = thumbnail.Options{
		Width:        t.Width,
		Height:       t.Height,
		Quality:      t.Quality,
		RetryQuality: t.RetryQuality,
		ShrinkFactor: t.ShrinkFactor,
		MinSize:      t.MinSize,
		MaxAttempts:  t.MaxAttempts,
	}
	return g
}

// videoExporter maps the export config onto an exporter without a
// compositor; callers fill in the rendering side.
func (c *commandContext) videoExporter() *export.VideoExporter {
	e := c.config.Export
	return &export.VideoExporter{
		Encoder:      &video.FFmpegRecorder{},
		FPS:          e.FPS,
		Format:       e.Format,
		Codec:        e.Encoder,
		Quality:      e.Quality,
		Width:        e.Width,
		Height:       e.Height,
		FadeIn:       e.FadeIn,
		FadeOut:      e.FadeOut,
		Settle:       e.Settle(),
		Logger:       c.logger,
		Report:       c.config.ShowStats,
		BenchmarkLog: filepath.Join(c.config.OutputDir, "benchmark.log"),
	}
}

// outputPath builds "<dir>/<slug>_<timestamp>.<ext>" like the still names.
func outputPath(dir, title, ext string) string {
	name := fmt.Sprintf("%s_%s.%s", export.Slug(title), time.Now().Format("2006-01-02_15-04-05"), ext)
	return filepath.Join(dir, name)
}

// describeError turns the known failure classes into one actionable line.
func describeError(err error) string {
	var encErr *export.EncoderError
	var budget *thumbnail.BudgetError
	switch {
	case errors.Is(err, export.ErrRecorderUnavailable):
		return "запись видео недоступна: установите ffmpeg и проверьте PATH (" + err.Error() + ")"
	case errors.As(err, &encErr):
		return "ffmpeg прервал кодирование, файл не сохранён: " + err.Error()
	case errors.As(err, &budget):
		return fmt.Sprintf("превью не уложилось в лимит %d байт (минимум %d после %d попыток)", budget.Budget, budget.Smallest, budget.Attempts)
	case errors.Is(err, export.ErrBusy):
		return "этот файл уже записывает другой экспорт: " + err.Error()
	case errors.Is(err, scene.ErrInvalid):
		return "проект не прошёл проверку: " + err.Error()
	case errors.Is(err, store.ErrNotFound):
		return "проект не найден в базе: " + err.Error()
	default:
		return err.Error()
	}
}
