package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"transrelay/internal/app"
	"transrelay/pkg/config"
	"transrelay/pkg/logger"
	"transrelay/pkg/shutdown"
)

// build metadata, set via ldflags during release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")

	flags := config.ParseConfigFlags()
	fileCfg, fileExists, err := config.ParseConfigFile(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	eff, err := config.LoadEffectiveConfig(flags, fileCfg, fileExists)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve config: %v\n", err)
		os.Exit(1)
	}
	logger.InitWithLevel(eff.Config.Logging.Level, eff.Config.Logging.Format)
	logger.Info("config_loaded", "source", eff.Source, "addr", eff.Addr, "db", eff.DBPath)

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	a, err := app.New(eff, version, commit, buildDate)
	if err != nil {
		shutdown.Abort("app_init", err, eff.DBPath)
	}
	if err := a.Run(ctx); err != nil {
		logger.Error("relay_exited", "error", err)
		cancel()
		os.Exit(1)
	}
}
