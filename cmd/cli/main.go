package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/mkartavenko/taskhub/internal/buildinfo"
	"github.com/mkartavenko/taskhub/internal/client/cli"
	"github.com/mkartavenko/taskhub/internal/client/config"
	"github.com/mkartavenko/taskhub/internal/logging"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)
}
