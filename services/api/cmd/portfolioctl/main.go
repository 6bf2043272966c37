package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"termfolio/internal/util"
	"termfolio/services/api/internal/cli"
	"termfolio/services/api/internal/config"
)

func main() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	util.InitLogger("portfolioctl", level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := cli.NewRootCmd(cli.FromConfig(config.ConfigPath))
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
