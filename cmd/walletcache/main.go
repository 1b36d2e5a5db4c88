package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/olehkaliuzhnyi/wallet-cache/internal/config"
)

var (
	datadirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "directory holding the wallet cache (overrides WALLETCACHE_DATADIR)",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "debug, info, warn or error (overrides WALLETCACHE_LOG_LEVEL)",
	}
)

func main() {
	app := cli.NewApp()

	app.Name = "walletcache"
	app.Usage = "inspect and exercise the cache-first wallet loader"
	app.Flags = []cli.Flag{datadirFlag, logLevelFlag}
	app.Commands = append(
		app.Commands,
		&inspect,
		&demo,
	)

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

// loadConfig reads the environment, applies global flags and installs the
// default logger.
func loadConfig(ctx *cli.Context) (config.Config, error) {
	cfg := config.FromEnv()
	if v := ctx.String(datadirFlag.Name); v != "" {
		cfg.Datadir = v
	}
	if v := ctx.String(logLevelFlag.Name); v != "" {
		cfg.LogLevel = v
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}

	level, _ := cfg.Level()
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return cfg, nil
}

func fatal(err error) {
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.ExitCode())
	}
	_, _ = fmt.Fprintf(os.Stderr, "[walletcache] %v\n", err)
	os.Exit(1)
}
