// Package decimate simplifies half-edge meshes by repeatedly collapsing the
// cheapest edge.
//
// The Decimator owns the loop and the priority queue; a Policy decides where
// each collapse places the surviving vertex and what it costs. QuadricPolicy
// is the Garland–Heckbert quadric error metric: each vertex carries the sum
// of the plane quadrics of its faces, and an edge collapse is placed at the
// minimizer of the endpoints' combined quadric.
package decimate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chazu/qslim/pkg/halfedge"
)

// Stats summarizes a decimation run.
type Stats struct {
	InitialFaces int
	FinalFaces   int
	TargetFaces  int
	Collapses    int
	// Rejected counts popped collapses the topology engine refused.
	Rejected  int
	Fallbacks int
	MaxCost   float64
}

// Decimator drives edge collapses on a mesh.
type Decimator struct {
	mesh   *halfedge.Mesh
	policy Policy
	opts   Options
	queue  *queue

	// Logger receives per-run summaries and rejected collapses at debug level.
	Logger *slog.Logger
	// Progress, when set, is called after every successful collapse.
	Progress func(Stats)
}

// New returns a decimator over m using p.
func New(m *halfedge.Mesh, p Policy, opts Options) (*Decimator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	m.FlipThreshold = opts.FlipThreshold
	return &Decimator{
		mesh:   m,
		policy: p,
		opts:   opts,
		queue:  newQueue(),
		Logger: slog.Default(),
	}, nil
}

// NewQuadric returns a decimator using QuadricPolicy.
func NewQuadric(m *halfedge.Mesh, opts Options) (*Decimator, error) {
	return New(m, NewQuadricPolicy(m, opts.MaxCondition), opts)
}

// Run decimates until the target face count is reached, no legal collapse
// is left, or the cheapest collapse exceeds MaxCost. The context is checked
// between collapses.
func (d *Decimator) Run(ctx context.Context) (Stats, error) {
	stats := Stats{
		InitialFaces: d.mesh.LiveFaceCount(),
		TargetFaces:  d.opts.Target(d.mesh.LiveFaceCount()),
	}

	d.policy.Initialize()
	for _, h := range d.mesh.Edges() {
		d.enqueue(h)
	}

	for d.mesh.LiveFaceCount() > stats.TargetFaces {
		if err := ctx.Err(); err != nil {
			stats.FinalFaces = d.mesh.LiveFaceCount()
			return stats, fmt.Errorf("decimate: interrupted after %d collapses: %w", stats.Collapses, err)
		}

		if d.opts.MaxCost > 0 {
			if top, ok := d.queue.peek(); ok && top.cost > d.opts.MaxCost {
				break
			}
		}
		it, ok := d.queue.popMin()
		if !ok {
			break
		}

		h, ok := d.resolve(it)
		if !ok {
			continue
		}
		a, b := d.mesh.Endpoints(h)
		// Edges around b are renamed onto a by the collapse, so their keys
		// must be captured first.
		var stale []EdgeKey
		for _, e := range append(d.mesh.VertexEdges(a), d.mesh.VertexEdges(b)...) {
			u, w := d.mesh.Endpoints(e)
			stale = append(stale, edgeKey(u, w))
		}

		affected, err := d.mesh.Collapse(h, it.c.Position)
		if errors.Is(err, halfedge.ErrIllegalCollapse) {
			stats.Rejected++
			d.Logger.Debug("collapse rejected", "lo", it.key.Lo, "hi", it.key.Hi, "cost", it.cost, "reason", err)
			continue
		}
		if err != nil {
			stats.FinalFaces = d.mesh.LiveFaceCount()
			return stats, fmt.Errorf("decimate: collapse %d-%d: %w", it.key.Lo, it.key.Hi, err)
		}

		stats.Collapses++
		if it.c.Branch == Fallback {
			stats.Fallbacks++
		}
		if it.cost > stats.MaxCost {
			stats.MaxCost = it.cost
		}

		for _, k := range stale {
			d.queue.remove(k)
		}

		for _, v := range affected {
			d.policy.VertexUpdated(v)
		}
		seen := make(map[EdgeKey]bool)
		for _, v := range affected {
			for _, e := range d.mesh.VertexEdges(v) {
				u, w := d.mesh.Endpoints(e)
				if k := edgeKey(u, w); !seen[k] {
					seen[k] = true
					d.enqueue(e)
				}
			}
		}

		if d.Progress != nil {
			stats.FinalFaces = d.mesh.LiveFaceCount()
			d.Progress(stats)
		}
	}

	stats.FinalFaces = d.mesh.LiveFaceCount()
	d.Logger.Info("decimation finished",
		"initial_faces", stats.InitialFaces,
		"final_faces", stats.FinalFaces,
		"target_faces", stats.TargetFaces,
		"collapses", stats.Collapses,
		"rejected", stats.Rejected,
		"fallbacks", stats.Fallbacks,
		"max_cost", stats.MaxCost)
	return stats, nil
}

// enqueue evaluates the edge of h and (re)places it in the queue.
func (d *Decimator) enqueue(h int) {
	c := &Collapse{HalfEdge: h}
	d.policy.Evaluate(c)
	u, w := d.mesh.Endpoints(h)
	d.queue.push(edgeKey(u, w), c)
}

// resolve returns a live half-edge for the popped item's edge.
func (d *Decimator) resolve(it queueItem) (int, bool) {
	h := it.c.HalfEdge
	if !d.mesh.Face(d.mesh.HalfEdge(h).Face).Removed {
		if u, w := d.mesh.Endpoints(h); edgeKey(u, w) == it.key {
			return h, true
		}
	}
	return d.mesh.Find(it.key.Lo, it.key.Hi)
}
