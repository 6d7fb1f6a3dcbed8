// Command tidy extracts error lines from log files and normalizes CSV exports.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/tidy/internal/apperr"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		fmt.Fprintln(os.Stderr, "tidy:", apperr.FormatUserError(err))
		stop()
		os.Exit(1)
	}
}
