package decimate

import (
	"github.com/chazu/qslim/pkg/quadric"
)

// Policy decides where collapses go and what they cost. The Decimator calls
// Initialize once, Evaluate for every candidate it queues, and
// VertexUpdated once per affected vertex after each collapse.
type Policy interface {
	Initialize()
	Evaluate(c *Collapse)
	VertexUpdated(v int)
}

// Mesh is what QuadricPolicy needs from the topology engine.
type Mesh interface {
	quadric.Geometry
	Topology
}

// QuadricPolicy places collapses with the Garland–Heckbert quadric error
// metric.
type QuadricPolicy struct {
	acc  *quadric.Accumulator
	eval *Evaluator
}

var _ Policy = (*QuadricPolicy)(nil)

// NewQuadricPolicy returns a quadric policy over m.
func NewQuadricPolicy(m Mesh, maxCondition float64, opts ...quadric.Option) *QuadricPolicy {
	acc := quadric.NewAccumulator(m, opts...)
	return &QuadricPolicy{
		acc:  acc,
		eval: NewEvaluator(m, acc, maxCondition),
	}
}

// Initialize computes every vertex quadric.
func (p *QuadricPolicy) Initialize() { p.acc.Initialize() }

// Evaluate places c.
func (p *QuadricPolicy) Evaluate(c *Collapse) { p.eval.Evaluate(c) }

// VertexUpdated refreshes the quadric of v.
func (p *QuadricPolicy) VertexUpdated(v int) { p.acc.VertexUpdated(v) }

// Accumulator exposes the quadric store.
func (p *QuadricPolicy) Accumulator() *quadric.Accumulator { return p.acc }

// Evaluator exposes the collapse evaluator.
func (p *QuadricPolicy) Evaluator() *Evaluator { return p.eval }
