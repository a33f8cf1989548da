package decimate

import (
	"github.com/chazu/qslim/pkg/quadric"
	"gonum.org/v1/gonum/spatial/r3"
)

// Topology is the part of the mesh the evaluator reads.
type Topology interface {
	// Endpoints returns the two vertices joined by half-edge h.
	Endpoints(h int) (int, int)
	Position(v int) r3.Vec
}

// QuadricSource supplies the stored quadric of a vertex.
type QuadricSource interface {
	Quadric(v int) quadric.Quadric
}

// Collapse is a candidate edge collapse. The driver owns it; Evaluate fills
// in everything but HalfEdge.
type Collapse struct {
	HalfEdge  int
	Position  r3.Vec
	Cost      float64
	Branch    Branch
	Candidate Candidate
}

// Evaluator places edge collapses from endpoint quadrics.
type Evaluator struct {
	topo         Topology
	quadrics     QuadricSource
	maxCondition float64
}

// NewEvaluator returns an evaluator reading topology from t and quadrics
// from q. See Solve for maxCondition.
func NewEvaluator(t Topology, q QuadricSource, maxCondition float64) *Evaluator {
	return &Evaluator{topo: t, quadrics: q, maxCondition: maxCondition}
}

// EvaluateEdge returns the optimal placement and cost of collapsing h.
// It has no side effects, so repeated calls on the same mesh state agree.
func (e *Evaluator) EvaluateEdge(h int) Result {
	v1, v2 := e.topo.Endpoints(h)
	q := e.quadrics.Quadric(v1).Add(e.quadrics.Quadric(v2))
	return Solve(q, e.topo.Position(v1), e.topo.Position(v2), e.maxCondition)
}

// Evaluate writes the placement of c.HalfEdge back onto c.
func (e *Evaluator) Evaluate(c *Collapse) {
	res := e.EvaluateEdge(c.HalfEdge)
	c.Position = res.Position
	c.Cost = res.Cost
	c.Branch = res.Branch
	c.Candidate = res.Candidate
}
