package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/system"
)

func main() {
	// Raise the open file limit (macOS/Linux).
	system.InitResourceLimits()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "[-] Ошибка: %s\n", describeError(err))
		}
		stop()
		os.Exit(1)
	}
}
