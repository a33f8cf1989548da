// Package tessellate turns the jobs of an evaluated script into triangle
// meshes using a geometry kernel. One mesh is produced per job.
package tessellate

import (
	"context"
	"fmt"

	"github.com/chazu/qslim/pkg/engine"
	"github.com/chazu/qslim/pkg/kernel"
)

// Part is a job together with its mesh.
type Part struct {
	Job  engine.Job
	Mesh *kernel.Mesh
}

// Tessellate meshes every job of prog with k, in declaration order. Each
// mesh is named after its job. The program is never mutated.
func Tessellate(ctx context.Context, prog *engine.Program, k kernel.Kernel) ([]Part, error) {
	if prog == nil {
		return nil, nil
	}

	parts := make([]Part, 0, len(prog.Jobs))
	for _, job := range prog.Jobs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mesh, err := Job(k, job)
		if err != nil {
			return nil, err
		}
		parts = append(parts, Part{Job: job, Mesh: mesh})
	}
	return parts, nil
}

// Job meshes a single job's solid.
func Job(k kernel.Kernel, job engine.Job) (*kernel.Mesh, error) {
	if job.Solid == nil {
		return nil, fmt.Errorf("tessellate: part %s has no solid", job.Name)
	}
	mesh, err := k.ToMesh(job.Solid)
	if err != nil {
		return nil, fmt.Errorf("tessellate: ToMesh failed for part %s: %w", job.Name, err)
	}
	if mesh.IsEmpty() {
		return nil, fmt.Errorf("tessellate: part %s: %w", job.Name, ErrEmptyPart)
	}
	mesh.PartName = job.Name
	return mesh, nil
}
