package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/scott-cotton/cli"

	"github.com/born-ml/splatexport/internal/config"
)

const version = "v0.1.0"

const usageText = `splatexport - dynamic Gaussian scene exporter

Usage:
  splatexport export [--out dir] [--network file.yaml] [--workers n] [--clean] <ckpt.safetensors>...
  splatexport inspect [--color] <bundle-dir>
  splatexport synth [--out dir] [--points n] [--sh-degree d] [--planes k]
  splatexport version

Environment:
  SPLATEXPORT_OUT          default output directory (out)
  SPLATEXPORT_NETWORK      default network shape file
  SPLATEXPORT_WORKERS      parallel blob writers, 0 = one per CPU
  SPLATEXPORT_CLEAN        remove stale bundle files before writing
  SPLATEXPORT_LOG_LEVEL    debug, info, warn or error
  SPLATEXPORT_LOG_FORMAT   text or json`

// Root returns the root command.
func Root() *cli.Command {
	return cli.NewCommand("splatexport").
		WithSynopsis("splatexport - dynamic Gaussian scene exporter").
		WithDescription(usageText).
		WithSubs(
			ExportCommand(),
			InspectCommand(),
			SynthCommand(),
			VersionCommand(),
		)
}

// VersionCommand returns the version subcommand.
func VersionCommand() *cli.Command {
	return cli.NewCommand("version").
		WithSynopsis("version - Print the version").
		WithRun(func(cc *cli.Context, _ []string) error {
			fmt.Fprintf(cc.Out, "splatexport %s\n", version)
			return nil
		})
}

// environment loads the environment configuration and its logger. Logs go to
// stderr so that command output stays machine readable.
func environment(verbose bool) (config.Config, *slog.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, nil, err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	logger, err := config.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
