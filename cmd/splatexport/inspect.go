package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/scott-cotton/cli"

	"github.com/born-ml/splatexport/internal/bundle"
	"github.com/born-ml/splatexport/internal/config"
	"github.com/born-ml/splatexport/internal/manifest"
)

type inspectConfig struct {
	*cli.Command
	Color   bool `cli:"name=color desc='force coloured output'"`
	NoColor bool `cli:"name=no-color desc='disable coloured output'"`
	Files   bool `cli:"name=files aliases=f desc='list every tensor file'"`
	Network bool `cli:"name=network desc='print only the network shape as YAML, usable as export --network'"`
}

// InspectCommand returns the inspect subcommand.
func InspectCommand() *cli.Command {
	cfg := &inspectConfig{}
	opts, _ := cli.StructOpts(cfg)
	return cli.NewCommandAt(&cfg.Command, "inspect").
		WithSynopsis("inspect [--color] [--files] [--network] <bundle-dir> - Verify a bundle against its manifest").
		WithOpts(opts...).
		WithRun(cfg.run)
}

func (cfg *inspectConfig) run(cc *cli.Context, args []string) error {
	args, err := cfg.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: inspect requires one bundle directory", cli.ErrUsage)
	}
	if cfg.Color && cfg.NoColor {
		return fmt.Errorf("%w: cannot use --color and --no-color together", cli.ErrUsage)
	}

	if cfg.Network {
		return writeNetwork(cc.Out, args[0])
	}

	r, err := bundle.Verify(args[0])
	if err != nil {
		return err
	}
	newPalette(cfg.useColor(cc.Out)).print(cc.Out, r, cfg.Files)
	if err := r.Err(); err != nil {
		return fmt.Errorf("bundle %s is invalid: %w", args[0], err)
	}
	return nil
}

// writeNetwork prints the bundle's network shape in the YAML form read by
// export --network.
func writeNetwork(w io.Writer, dir string) error {
	m, err := manifest.Open(dir)
	if err != nil {
		return err
	}
	data, err := config.MarshalNetworkShape(m.Network)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (cfg *inspectConfig) useColor(w io.Writer) bool {
	switch {
	case cfg.Color:
		return true
	case cfg.NoColor:
		return false
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

type palette struct {
	title, key, ok, warn, bad *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		title: color.New(color.Bold),
		key:   color.New(color.FgCyan),
		ok:    color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		bad:   color.New(color.FgRed, color.Bold),
	}
	for _, c := range []*color.Color{p.title, p.key, p.ok, p.warn, p.bad} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) print(w io.Writer, r *bundle.Report, files bool) {
	m := r.Manifest
	p.title.Fprintf(w, "bundle %s\n", r.Dir)
	fmt.Fprintf(w, "  %s %d\n", p.key.Sprint("gaussians:"), m.NumGaussians)
	fmt.Fprintf(w, "  %s %d\n", p.key.Sprint("sh degree:"), m.SHDegree)
	if len(m.AABB) == 0 {
		fmt.Fprintf(w, "  %s %s\n", p.key.Sprint("aabb:"), p.warn.Sprint("missing"))
	} else {
		fmt.Fprintf(w, "  %s %v .. %v\n", p.key.Sprint("aabb:"), m.AABB[0], m.AABB[1])
	}
	kind := "static"
	if n := len(r.TemporalPlanes()); n > 0 {
		kind = fmt.Sprintf("%d temporal", n)
	}
	fmt.Fprintf(w, "  %s %s (%s)\n", p.key.Sprint("planes:"), strings.Join(m.HexPlane.Keys(), " "), kind)
	fmt.Fprintf(w, "  %s %d\n", p.key.Sprint("trunk layers:"), len(m.MLP.Trunk))
	for _, name := range m.MLP.Heads.Keys() {
		h, _ := m.MLP.Heads.Get(name)
		fmt.Fprintf(w, "  %s %d layers, output_dim %d\n", p.key.Sprint(name+":"), len(h.Layers), h.OutputDim)
	}
	fmt.Fprintf(w, "  %s feature_dim=%d mlp_width=%d mlp_depth=%d\n", p.key.Sprint("network:"),
		m.Network.FeatureDim, m.Network.MLPWidth, m.Network.MLPDepth)

	if files {
		for _, f := range r.Files {
			status := p.ok.Sprint("ok")
			if !f.OK() {
				status = p.bad.Sprint("FAIL")
			}
			fmt.Fprintf(w, "    %-4s %-36s %-14s %.12s\n", status, f.File, fmt.Sprint(f.Shape), f.SHA256)
		}
	}

	for _, err := range r.Problems() {
		fmt.Fprintf(w, "  %s %v\n", p.bad.Sprint("error:"), err)
	}
	if n := r.NonFinite(); n > 0 {
		fmt.Fprintf(w, "  %s %d non-finite values\n", p.warn.Sprint("warning:"), n)
	}
	for _, o := range r.Orphans {
		fmt.Fprintf(w, "  %s unreferenced file %s\n", p.warn.Sprint("stale:"), o)
	}

	if r.OK() {
		fmt.Fprintf(w, "%s %d files, %d bytes\n", p.ok.Sprint("valid:"), len(r.Files), r.TotalBytes())
	} else {
		fmt.Fprintf(w, "%s %d of %d files failed\n", p.bad.Sprint("invalid:"), len(r.Problems()), len(r.Files))
	}
}
