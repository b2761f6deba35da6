package main

import (
	"fmt"

	"github.com/scott-cotton/cli"

	"github.com/born-ml/splatexport/internal/config"
	"github.com/born-ml/splatexport/internal/export"
	"github.com/born-ml/splatexport/internal/loader"
)

type exportConfig struct {
	*cli.Command
	Out     string `cli:"name=out aliases=o desc='output bundle directory'"`
	Network string `cli:"name=network aliases=n desc='network shape YAML file'"`
	Workers int    `cli:"name=workers aliases=w desc='parallel blob writers, 0 = one per CPU'"`
	Clean   bool   `cli:"name=clean desc='remove stale .raw files and manifest first'"`
	Verbose bool   `cli:"name=v aliases=verbose desc='debug logging'"`
}

// ExportCommand returns the export subcommand.
func ExportCommand() *cli.Command {
	cfg := &exportConfig{}
	opts, _ := cli.StructOpts(cfg)
	return cli.NewCommandAt(&cfg.Command, "export").
		WithSynopsis("export [--out dir] [--network file.yaml] [--workers n] [--clean] <ckpt.safetensors>... - Export a checkpoint as a runtime bundle").
		WithOpts(opts...).
		WithRun(cfg.run)
}

// merge applies flags given on the command line over the environment.
func (cfg *exportConfig) merge(env config.Config) config.Config {
	if cfg.Out != "" {
		env.Out = cfg.Out
	}
	if cfg.Network != "" {
		env.Network = cfg.Network
	}
	if cfg.Workers > 0 {
		env.Workers = cfg.Workers
	}
	if cfg.Clean {
		env.Clean = true
	}
	return env
}

func (cfg *exportConfig) run(cc *cli.Context, args []string) error {
	args, err := cfg.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: export requires at least one checkpoint file", cli.ErrUsage)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("%w: --workers must be >= 0", cli.ErrUsage)
	}

	env, logger, err := environment(cfg.Verbose)
	if err != nil {
		return err
	}
	settings := cfg.merge(env)

	m, err := loader.Load(args, loader.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if settings.Network != "" {
		shape, err := config.LoadNetworkShape(settings.Network)
		if err != nil {
			return err
		}
		m.Network = &shape
	}

	e := export.New(settings.Out,
		export.WithLogger(logger),
		export.WithParallel(settings.Parallel()),
		export.WithClean(settings.Clean))
	doc, err := e.Export(m)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Fprintf(cc.Out, "exported %d gaussians (sh degree %d), %d planes, %d trunk layers, %d heads, %d files to %s\n",
		doc.NumGaussians, doc.SHDegree, doc.HexPlane.Len(), len(doc.MLP.Trunk), doc.MLP.Heads.Len(),
		len(doc.Tensors()), settings.Out)
	return nil
}
