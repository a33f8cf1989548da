// Command qslim simplifies triangle meshes with the quadric error metric.
//
// It decimates either an OBJ file:
//
//	qslim -in bunny.obj -ratio 0.1 -out bunny-small.obj
//
// or the parts declared by a job script, meshed first by the sdfx marching
// cubes kernel or, in builds tagged manifold, the Manifold kernel:
//
//	qslim -script parts.lisp -config qslim.yaml -progress
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/chazu/qslim/pkg/config"
	"github.com/chazu/qslim/pkg/decimate"
	"github.com/chazu/qslim/pkg/meshio"
	"github.com/schollz/progressbar/v3"
)

// errScript is returned when the job script has errors; they are printed
// before returning.
var errScript = errors.New("script has errors")

type options struct {
	in, script, configPath, out string
	progress                    bool
	cfg                         config.Config
}

// parseFlags parses args over the config file named by -config. Flags the
// user set override the file.
func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("qslim", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.in, "in", "", "OBJ mesh to decimate")
	fs.StringVar(&o.script, "script", "", "job script declaring parts to mesh and decimate")
	fs.StringVar(&o.configPath, "config", "", "YAML config file")
	fs.StringVar(&o.out, "out", "", "output OBJ path (default stdout for -in, <part>.obj for -script)")
	fs.BoolVar(&o.progress, "progress", false, "show a progress bar per part")
	ratio := fs.Float64("ratio", 0, "fraction of faces to keep")
	faces := fs.Int("faces", 0, "number of faces to stop at (overrides -ratio)")
	maxCost := fs.Float64("max-cost", 0, "stop before collapses costing more than this")
	kern := fs.String("kernel", "", "geometry kernel for script parts (sdfx, manifold)")
	cells := fs.Int("cells", 0, "marching cubes resolution for script parts")
	weld := fs.Float64("weld", 0, "vertex weld tolerance")
	level := fs.String("log-level", "", "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if (o.in == "") == (o.script == "") {
		return o, fmt.Errorf("exactly one of -in or -script is required")
	}

	o.cfg = config.Default()
	if o.configPath != "" {
		cfg, err := config.Load(o.configPath)
		if err != nil {
			return o, err
		}
		o.cfg = cfg
	}

	var err error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ratio":
			o.cfg.Decimate.TargetRatio = *ratio
			if !isSet(fs, "faces") {
				o.cfg.Decimate.TargetFaces = 0
			}
		case "faces":
			o.cfg.Decimate.TargetFaces = *faces
		case "max-cost":
			o.cfg.Decimate.MaxCost = *maxCost
		case "kernel":
			o.cfg.Mesh.Kernel = *kern
		case "cells":
			o.cfg.Mesh.Cells = *cells
		case "weld":
			o.cfg.Mesh.WeldTolerance = *weld
		case "log-level":
			var lvl slog.Level
			if e := lvl.UnmarshalText([]byte(*level)); e != nil {
				err = fmt.Errorf("invalid -log-level %q: %w", *level, e)
			}
			o.cfg.Log.Level = config.Level(lvl)
		}
	})
	if err != nil {
		return o, err
	}
	return o, o.cfg.Validate()
}

func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// outputPath picks where a part is written. With several parts an explicit
// -out path gets the part name appended before the extension.
func outputPath(out, part string, parts int) string {
	if out == "" {
		return part + ".obj"
	}
	if parts == 1 {
		return out
	}
	ext := filepath.Ext(out)
	return strings.TrimSuffix(out, ext) + "-" + part + ext
}

// progressBars shows one bar per part on w.
func progressBars(w io.Writer) func(part string, s decimate.Stats) {
	var (
		bar     *progressbar.ProgressBar
		current string
	)
	return func(part string, s decimate.Stats) {
		total := s.InitialFaces - s.TargetFaces
		if bar == nil || part != current {
			if bar != nil {
				bar.Finish()
			}
			current = part
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionSetDescription(part),
				progressbar.OptionShowCount(),
				progressbar.OptionThrottle(65*time.Millisecond),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
			)
		}
		bar.Set(min(s.InitialFaces-s.FinalFaces, total))
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: o.cfg.Log.Level.Level()}))
	app, err := NewApp(o.cfg, logger)
	if err != nil {
		return err
	}
	if o.progress {
		app.Progress = progressBars(stderr)
	}

	if o.in != "" {
		km, err := meshio.ReadOBJFile(o.in)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.Base(o.in), filepath.Ext(o.in))
		part, err := app.Decimate(ctx, name, km, o.cfg.Decimate)
		if err != nil {
			return err
		}
		if o.out == "" {
			return meshio.WriteOBJ(stdout, part.Mesh)
		}
		return meshio.WriteOBJFile(o.out, part.Mesh)
	}

	source, err := os.ReadFile(o.script)
	if err != nil {
		return err
	}
	result, err := app.Evaluate(ctx, string(source))
	if err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			fmt.Fprintf(stderr, "%s: %s\n", o.script, e.Error())
		}
		return errScript
	}
	for _, part := range result.Parts {
		path := outputPath(o.out, part.Name, len(result.Parts))
		if err := meshio.WriteOBJFile(path, part.Mesh); err != nil {
			return err
		}
		logger.Info("part written",
			"part", part.Name,
			"path", path,
			"faces", part.Stats.FinalFaces,
			"max_cost", part.Stats.MaxCost)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "qslim: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
