package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chazu/qslim/pkg/config"
	"github.com/chazu/qslim/pkg/decimate"
	"github.com/chazu/qslim/pkg/engine"
	"github.com/chazu/qslim/pkg/halfedge"
	"github.com/chazu/qslim/pkg/kernel"
	"github.com/chazu/qslim/pkg/kernel/manifold"
	"github.com/chazu/qslim/pkg/kernel/sdfx"
	"github.com/chazu/qslim/pkg/quadric"
	"github.com/chazu/qslim/pkg/tessellate"
)

// residualTolerance flags vertex quadrics that do not vanish at their own
// vertex, which points at broken input geometry.
const residualTolerance = 1e-6

// App runs the decimation pipeline: script or mesh in, decimated parts out.
type App struct {
	engine *engine.Engine
	kernel kernel.Kernel
	cfg    config.Config
	logger *slog.Logger

	// Progress, when set, is called after every collapse of a part.
	Progress func(part string, s decimate.Stats)
}

// PartResult is one decimated mesh.
type PartResult struct {
	Name  string
	Mesh  *kernel.Mesh
	Stats decimate.Stats
}

// EvalResult is the result of running a script. Errors holds problems in
// the script itself; when it is non-empty Parts is empty.
type EvalResult struct {
	Parts  []PartResult
	Errors []engine.EvalError
}

// NewApp creates an App meshing script solids with the kernel named by
// cfg.Mesh.Kernel.
func NewApp(cfg config.Config, logger *slog.Logger) (*App, error) {
	k, err := newKernel(cfg.Mesh)
	if err != nil {
		return nil, err
	}
	return &App{
		engine: engine.NewEngine(k),
		kernel: k,
		cfg:    cfg,
		logger: logger,
	}, nil
}

func newKernel(mc config.MeshConfig) (kernel.Kernel, error) {
	switch mc.Kernel {
	case config.KernelManifold:
		return manifold.New()
	case config.KernelSDFX, "":
		return sdfx.NewWithCells(mc.Cells), nil
	default:
		return nil, fmt.Errorf("unknown kernel %q", mc.Kernel)
	}
}

// Evaluate runs a job script and decimates every part it declares, in
// declaration order.
func (a *App) Evaluate(ctx context.Context, source string) (EvalResult, error) {
	var result EvalResult

	// Step 1: Evaluate the script into jobs.
	prog, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		return result, fmt.Errorf("evaluating script: %w", err)
	}
	if len(evalErrs) > 0 {
		result.Errors = evalErrs
		return result, nil
	}
	if len(prog.Jobs) == 0 {
		a.logger.Warn("script declared no decimate jobs")
		return result, nil
	}

	// Step 2: Mesh every part.
	a.logger.Info("meshing parts", "parts", len(prog.Jobs), "kernel", a.cfg.Mesh.Kernel)
	meshed, err := tessellate.Tessellate(ctx, prog, a.kernel)
	if err != nil {
		return result, err
	}

	// Step 3: Weld and decimate each part.
	for _, p := range meshed {
		part, err := a.Decimate(ctx, p.Job.Name, p.Mesh, p.Job.Options(a.cfg.Decimate))
		if err != nil {
			return result, err
		}
		result.Parts = append(result.Parts, part)
	}
	return result, nil
}

// Decimate welds km into a half-edge mesh and decimates it with opts.
func (a *App) Decimate(ctx context.Context, name string, km *kernel.Mesh, opts decimate.Options) (PartResult, error) {
	m, err := halfedge.FromMesh(km, a.cfg.Mesh.WeldTolerance)
	if err != nil {
		return PartResult{}, fmt.Errorf("building %s: %w", name, err)
	}
	logger := a.logger.With("part", name)
	bmin, bmax := km.Bounds()
	logger.Info("mesh welded",
		"input_vertices", km.VertexCount(),
		"vertices", m.VertexCount(),
		"faces", m.LiveFaceCount(),
		"bounds_min", bmin,
		"bounds_max", bmax)

	policy := decimate.NewQuadricPolicy(m, opts.MaxCondition,
		quadric.WithReporter(quadric.SlogReporter{Logger: logger, Tolerance: residualTolerance}))
	d, err := decimate.New(m, policy, opts)
	if err != nil {
		return PartResult{}, fmt.Errorf("decimating %s: %w", name, err)
	}
	d.Logger = logger
	if a.Progress != nil {
		d.Progress = func(s decimate.Stats) { a.Progress(name, s) }
	}

	stats, err := d.Run(ctx)
	if err != nil {
		return PartResult{}, fmt.Errorf("decimating %s: %w", name, err)
	}

	out := m.ToMesh()
	out.PartName = name
	return PartResult{Name: name, Mesh: out, Stats: stats}, nil
}
