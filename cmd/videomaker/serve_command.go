package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve <project.json|id>",
		Short: "Запустить сервер предпросмотра",
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
			if addr == "" {
				addr = ctx.config.Server.Addr
			}

			srv, err := server.New(server.Options{
				Project:    p,
				Compositor: comp,
				Assets:     resolver,
				Exporter:   ctx.videoExporter(),
				Tick:       msDuration(ctx.config.Server.TickMs),
				Logger:     ctx.logger,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[*] Предпросмотр %q: http://%s/api/frame.png\n", p.Title, addr)
			return srv.Run(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Адрес сервера (по умолчанию из конфигурации)")
	return cmd
}
