package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/assets"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/compositor"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/config"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/export"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/scene"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/system"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/video"
)

func newStillCommand(ctx *commandContext) *cobra.Command {
	var sceneID, outDir string
	cmd := &cobra.Command{
		Use:   "still <project.json|id>",
		Short: "Сохранить сцену в PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ctx.loadProject(cmd, args[0])
			if err != nil {
				return err
			}
			comp, err := ctx.newCompositor()
			if err != nil {
				return err
			}
			resolver, err := ctx.resolver()
			if err != nil {
				return err
			}
			comp = comp.Derive(compositor.WithIconFallback(true))
			stills := &export.StillExporter{Compositor: comp, Assets: resolver}
			art, err := stills.Still(cmd.Context(), p, sceneID)
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = ctx.config.OutputDir
			}
			path, err := art.Save(outDir)
			if err != nil {
				return err
			}
			if st := comp.Stats(); st.Skipped > 0 || st.Failed > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "[!] Пропущено элементов: %d, с ошибкой: %d\n", st.Skipped, st.Failed)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[+++] Кадр сохранён: %s (%dx%d)\n", path, art.Width, art.Height)
			return nil
		},
	}
	cmd.Flags().StringVar(&sceneID, "scene", "", "ID сцены (по умолчанию активная)")
	cmd.Flags().StringVarP(&outDir, "output", "o", "", "Папка для PNG (по умолчанию output/)")
	return cmd
}

func newThumbnailCommand(ctx *commandContext) *cobra.Command {
	var (
		perScene bool
		write    bool
		out      string
	)
	cmd := &cobra.Command{
		Use:   "thumbnail <project.json|id>",
		Short: "Сгенерировать превью проекта в пределах лимита",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ctx.loadProject(cmd, args[0])
			if err != nil {
				return err
			}
			comp, err := ctx.newCompositor()
			if err != nil {
				return err
			}
			resolver, err := ctx.resolver()
			if err != nil {
				return err
			}
			if _, err := resolver.EnsureLoaded(cmd.Context(), p.ImageSources(), assets.Normalized); err != nil && cmd.Context().Err() != nil {
				return err
			}

			gen := ctx.thumbnailer(comp)
			th, err := gen.ForProject(cmd.Context(), p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[*] Превью проекта: %s %dx%d, %d байт (попыток: %d)\n",
				th.Format, th.Width, th.Height, len(th.DataURL()), th.Attempts)
			if out != "" {
				if err := ensureDir(out); err != nil {
					return err
				}
				if err := os.WriteFile(out, th.Data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[+++] Превью сохранено: %s\n", out)
			}

			if perScene {
				thumbs, err := gen.ForScenes(cmd.Context(), p)
				for i, t := range thumbs {
					if t != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "[>] Сцена %d/%d: %s %dx%d\n", i+1, len(thumbs), t.Format, t.Width, t.Height)
					}
				}
				if err != nil {
					if cmd.Context().Err() != nil {
						return err
					}
					// Scenes that did not fit keep their previous thumbnail.
					fmt.Fprintf(cmd.OutOrStdout(), "[!] %s\n", describeError(err))
				}
			}

			if write {
				return ctx.saveProject(cmd, args[0], p)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&perScene, "scenes", false, "Также превью каждой сцены")
	cmd.Flags().BoolVar(&write, "write", false, "Записать превью обратно в проект")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Сохранить превью проекта в файл")
	return cmd
}

func newVideoCommand(ctx *commandContext) *cobra.Command {
	var (
		out      string
		format   string
		fps      int
		preset   string
		quality  int
		encoder  string
		stats    bool
		alsoGIF  bool
		settleMs int
	)
	cmd := &cobra.Command{
		Use:   "video <project.json|id>",
		Short: "Записать проект в видео (WebM или MP4)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ctx.loadProject(cmd, args[0])
			if err != nil {
				return err
			}
			comp, err := ctx.newCompositor()
			if err != nil {
				return err
			}
			resolver, err := ctx.resolver()
			if err != nil {
				return err
			}

			exp := ctx.videoExporter()
			exp.Compositor = comp.Derive(compositor.WithIconFallback(true))
			exp.Assets = resolver
			flags := cmd.Flags()
			if flags.Changed("format") {
				exp.Format = format
			}
			if flags.Changed("fps") {
				exp.FPS = fps
			}
			if flags.Changed("quality") {
				exp.Quality = quality
			}
			if flags.Changed("encoder") {
				exp.Codec = encoder
			}
			if flags.Changed("stats") {
				exp.Report = stats
			}
			if flags.Changed("settle") {
				exp.Settle = msDuration(settleMs)
			}
			if preset != "" {
				e := config.ExportConfig{Preset: preset}
				e.ApplyPreset()
				if e.Width == 0 {
					return fmt.Errorf("неизвестный пресет %q (16:9, 9:16, 4:5)", preset)
				}
				exp.Width, exp.Height = e.Width, e.Height
			}
			if exp.Format == "" {
				exp.Format = video.FormatWebM
			}
			if out == "" {
				out = outputPath(ctx.config.OutputDir, p.Title, exp.Format)
			}

			if exp.Format == video.FormatMP4 && exp.Codec == "" {
				if enc := system.GetBestH264Encoder(cmd.Context()); enc != "libx264" {
					fmt.Fprintf(cmd.OutOrStdout(), "[*] Обнаружено аппаратное ускорение: %s\n", enc)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), "--- [PROJECT: VIDEO EXPORT] ---")
			fmt.Fprintf(cmd.OutOrStdout(), "[*] Проект: %s | Сцен: %d | Длительность: %s\n", p.Title, len(p.Scenes), formatSeconds(p.TotalDuration()))
			fmt.Fprintf(cmd.OutOrStdout(), "[*] Холст: %dx%d @ %d FPS | Формат: %s\n", p.Canvas.Width, p.Canvas.Height, exp.FPS, exp.Format)
			fmt.Fprintln(cmd.OutOrStdout(), "-----------------------------")

			exp.OnProgress = func(pr export.Progress) {
				if pr.Frames < pr.TotalFrames {
					fmt.Fprintf(cmd.OutOrStdout(), "[>] Сцена %d/%d (%.0f%%)\n", pr.Scene+1, pr.Scenes, pr.Fraction()*100)
				}
			}
			res, err := exp.Export(cmd.Context(), p, out)
			if err != nil {
				return err
			}
			if res.DegradedFrames > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "[!] Кадров только с фоном: %d\n", res.DegradedFrames)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[+++] Успех! Видео сохранено: %s (%d кадров, %.1fs)\n", res.Path, res.Frames, res.Elapsed.Seconds())

			if alsoGIF {
				return convertGIF(cmd, ctx.config, res.Path, strings.TrimSuffix(res.Path, filepath.Ext(res.Path))+".gif")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&out, "output", "o", "", "Путь к видео (если пусто, генерируется в output/)")
	f.StringVar(&format, "format", "", "Контейнер: webm или mp4")
	f.IntVar(&fps, "fps", 30, "FPS")
	f.StringVar(&preset, "preset", "", "Пресет формата: 16:9, 9:16 (Shorts/TikTok), 4:5 (Instagram)")
	f.IntVar(&quality, "quality", 0, "Качество (0 - авто, x264: CRF 1-51, VideoToolbox: битрейт = Q*100кбит/с, vp9: CRF)")
	f.StringVar(&encoder, "encoder", "", "Кодек ffmpeg (по умолчанию по формату)")
	f.BoolVar(&stats, "stats", false, "Показать отчёт о производительности")
	f.BoolVar(&alsoGIF, "gif", false, "Дополнительно сохранить GIF")
	f.IntVar(&settleMs, "settle", 0, "Пауза после смены сцены (мс)")
	return cmd
}

func newGIFCommand(ctx *commandContext) *cobra.Command {
	var (
		out         string
		maxDuration float64
		fps         int
		maxWidth    int
	)
	cmd := &cobra.Command{
		Use:   "gif <video>",
		Short: "Преобразовать видео в GIF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *ctx.config
			flags := cmd.Flags()
			if flags.Changed("max-duration") {
				cfg.GIF.MaxDuration = maxDuration
			}
			if flags.Changed("fps") {
				cfg.GIF.FPS = fps
			}
			if flags.Changed("max-width") {
				cfg.GIF.MaxWidth = maxWidth
			}
			if out == "" {
				out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".gif"
			}
			return convertGIF(cmd, &cfg, args[0], out)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&out, "output", "o", "", "Путь к GIF (по умолчанию рядом с видео)")
	f.Float64Var(&maxDuration, "max-duration", 10, "Максимальная длительность (сек, 999 = всё видео)")
	f.IntVar(&fps, "fps", 10, "FPS")
	f.IntVar(&maxWidth, "max-width", 500, "Максимальная ширина")
	return cmd
}

func convertGIF(cmd *cobra.Command, cfg *config.Config, in, out string) error {
	opts := video.GIFOptions{MaxDuration: cfg.GIF.MaxDuration, FPS: cfg.GIF.FPS, MaxWidth: cfg.GIF.MaxWidth}
	fmt.Fprintf(cmd.OutOrStdout(), "[*] Конвертация в GIF: %s\n", in)
	res, err := video.ConvertToGIF(cmd.Context(), in, out, opts)
	if err != nil {
		if errors.Is(err, video.ErrFFmpegMissing) {
			return fmt.Errorf("%w: %w", export.ErrRecorderUnavailable, err)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[+++] GIF сохранён: %s (%dx%d, кадров: %d, %.1fs)\n", res.Path, res.Width, res.Height, res.Frames, res.Duration)
	return nil
}

// saveProject writes p back to where ref pointed: the JSON file or the store.
func (c *commandContext) saveProject(cmd *cobra.Command, ref string, p *scene.Project) error {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		if err := scene.WriteProject(ref, p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "[*] Проект обновлён: %s\n", ref)
		return nil
	}
	st, err := c.openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Save(cmd.Context(), p); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[*] Проект обновлён в базе: %s\n", p.ID)
	return nil
}
