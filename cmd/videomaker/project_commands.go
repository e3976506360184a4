package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/config"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/export"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/playback"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/scene"
)

func newNewCommand(ctx *commandContext) *cobra.Command {
	var (
		scenes   int
		duration float64
		preset   string
		bg       string
		out      string
		save     bool
	)
	cmd := &cobra.Command{
		Use:   "new <title>",
		Short: "Создать пустой проект",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.config
			canvas := scene.Canvas{Width: cfg.Canvas.Width, Height: cfg.Canvas.Height, Background: scene.Color(cfg.Canvas.Background)}
			if preset != "" {
				e := config.ExportConfig{Preset: preset}
				e.ApplyPreset()
				if e.Width == 0 {
					return fmt.Errorf("неизвестный пресет %q (16:9, 9:16, 4:5)", preset)
				}
				canvas.Width, canvas.Height = e.Width, e.Height
			}
			if bg != "" {
				canvas.Background = scene.Color(bg)
			}

			p := scene.NewProject(args[0], canvas)
			for i := 1; i < scenes; i++ {
				p.AddScene("")
			}
			for _, s := range p.Scenes {
				s.DurationSec = duration
			}
			if err := p.SetActiveScene(p.Scenes[0].ID); err != nil {
				return err
			}
			if err := p.Validate(); err != nil {
				return err
			}

			if out == "" {
				out = filepath.Join(cfg.OutputDir, export.Slug(p.Title)+".json")
			}
			if err := ensureDir(out); err != nil {
				return err
			}
			if err := scene.WriteProject(out, p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[+++] Проект создан: %s (%s)\n", out, p.ID)

			if save {
				st, err := ctx.openStore()
				if err != nil {
					return err
				}
				defer st.Close()
				if err := st.Save(cmd.Context(), p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[*] Сохранён в базу: %s\n", st.Path())
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&scenes, "scenes", 1, "Количество сцен")
	cmd.Flags().Float64Var(&duration, "duration", 5, "Длительность каждой сцены (сек, 1-60)")
	cmd.Flags().StringVar(&preset, "preset", "", "Пресет холста: 16:9, 9:16 (Shorts/TikTok), 4:5 (Instagram)")
	cmd.Flags().StringVar(&bg, "bg", "", "Цвет фона (#rrggbb)")
	cmd.Flags().StringVarP(&out, "output", "o", "", "Путь к JSON (по умолчанию в output/)")
	cmd.Flags().BoolVar(&save, "save", false, "Сохранить проект в базу")
	return cmd
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <project.json>...",
		Short: "Импортировать JSON-проекты в базу",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			for _, path := range args {
				p, err := scene.ReadProject(path)
				if err != nil {
					return err
				}
				if err := st.Save(cmd.Context(), p); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[>] %s -> %s (%q, сцен: %d)\n", path, p.ID, p.Title, len(p.Scenes))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[+++] Импортировано: %d\n", len(args))
			return nil
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Показать проекты из базы",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			projects, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "[*] База пуста. Добавьте проект: videomaker import <project.json>")
				return nil
			}
			rows := make([][]string, 0, len(projects))
			for _, p := range projects {
				rows = append(rows, []string{
					p.ID,
					p.Title,
					strconv.Itoa(p.SceneCount),
					formatSeconds(p.Duration),
					p.UpdatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Название", "Сцен", "Длительность", "Изменён"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
}

func newInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "info <project.json|id>",
		Short: "Показать сцены проекта и их тайминг",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := ctx.loadProject(cmd, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "--- [PROJECT: %s] ---\n", p.Title)
			fmt.Fprintf(out, "[*] ID: %s\n", p.ID)
			fmt.Fprintf(out, "[*] Холст: %dx%d | Фон: %s\n", p.Canvas.Width, p.Canvas.Height, p.Canvas.Background)
			fmt.Fprintf(out, "[*] Сцен: %d | Общая длительность: %s\n", len(p.Scenes), formatSeconds(p.TotalDuration()))

			durations := p.Durations()
			rows := make([][]string, 0, len(p.Scenes))
			for i, s := range p.Scenes {
				active := ""
				if s.ID == p.ActiveScene().ID {
					active = "*"
				}
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					active,
					s.Name,
					formatSeconds(playback.StartOf(durations, i)),
					formatSeconds(s.DurationSec),
					elementSummary(s),
					string(s.BgColor),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "", "Сцена", "Начало", "Длит.", "Элементы", "Фон"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func elementSummary(s *scene.Scene) string {
	counts := map[scene.Kind]int{}
	for _, el := range s.Elements {
		counts[el.Kind()]++
	}
	var parts []string
	for _, k := range []scene.Kind{scene.KindText, scene.KindImage, scene.KindIcon} {
		if n := counts[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", k, n))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 2, 64) + "s"
}
