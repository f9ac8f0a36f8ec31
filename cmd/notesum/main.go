package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/yanqian/ai-notesum/internal/infra/notify"
	"github.com/yanqian/ai-notesum/internal/interface/cli"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	if err := cli.NewRootCommand(version, cli.DefaultLoader).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, notify.String(err))
		os.Exit(1)
	}
}
