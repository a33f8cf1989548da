package quadric

import (
	"context"
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"
)

// Geometry is the read-only view of the mesh the accumulator needs.
// Indices passed to it are always ones the mesh produced itself.
type Geometry interface {
	VertexCount() int
	Position(v int) r3.Vec
	// FaceNormal returns the unit normal of face f.
	FaceNormal(f int) r3.Vec
	// FacePoint returns any point lying on face f.
	FacePoint(f int) r3.Vec
	// NeighborFaces returns the faces currently incident to vertex v.
	NeighborFaces(v int) []int
}

// ResidualReporter receives the error of each vertex evaluated against its
// own quadric during Initialize. The value should be numerically close to
// zero since a vertex lies on all of its incident planes.
type ResidualReporter interface {
	Residual(v int, residual float64)
}

// Accumulator owns one quadric per vertex of a Geometry.
type Accumulator struct {
	geom     Geometry
	quadrics []Quadric
	reporter ResidualReporter
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithReporter sends initialization residuals to r.
func WithReporter(r ResidualReporter) Option {
	return func(a *Accumulator) { a.reporter = r }
}

// NewAccumulator returns an accumulator over g. Initialize must be called
// before any stored quadric is read.
func NewAccumulator(g Geometry, opts ...Option) *Accumulator {
	a := &Accumulator{geom: g}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FaceQuadric returns the plane quadric of face f.
func (a *Accumulator) FaceQuadric(f int) Quadric {
	return PlaneThrough(a.geom.FaceNormal(f), a.geom.FacePoint(f))
}

// VertexQuadric returns the sum of the face quadrics of every face incident
// to v. An isolated vertex yields the zero quadric.
func (a *Accumulator) VertexQuadric(v int) Quadric {
	var q Quadric
	for _, f := range a.geom.NeighborFaces(v) {
		q = q.Add(a.FaceQuadric(f))
	}
	return q
}

// Initialize computes and stores the quadric of every vertex.
func (a *Accumulator) Initialize() {
	n := a.geom.VertexCount()
	a.quadrics = make([]Quadric, n)
	for v := 0; v < n; v++ {
		a.quadrics[v] = a.VertexQuadric(v)
		if a.reporter != nil {
			a.reporter.Residual(v, a.quadrics[v].Eval(a.geom.Position(v)))
		}
	}
}

// VertexUpdated recomputes the stored quadric of v. The topology engine
// calls it once for each vertex whose incident faces changed.
func (a *Accumulator) VertexUpdated(v int) {
	a.quadrics[v] = a.VertexQuadric(v)
}

// Quadric returns the stored quadric of v.
func (a *Accumulator) Quadric(v int) Quadric {
	return a.quadrics[v]
}

// Len returns the number of stored quadrics.
func (a *Accumulator) Len() int {
	return len(a.quadrics)
}

// SlogReporter logs residuals at debug level and flags ones whose magnitude
// exceeds Tolerance at warn level.
type SlogReporter struct {
	Logger    *slog.Logger
	Tolerance float64
}

// Residual implements ResidualReporter.
func (r SlogReporter) Residual(v int, residual float64) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if r.Tolerance > 0 && (residual > r.Tolerance || residual < -r.Tolerance) {
		logger.Warn("vertex quadric residual above tolerance", "vertex", v, "residual", residual, "tolerance", r.Tolerance)
		return
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		logger.Debug("vertex quadric residual", "vertex", v, "residual", residual)
	}
}

// ResidualFunc adapts a function to ResidualReporter.
type ResidualFunc func(v int, residual float64)

// Residual implements ResidualReporter.
func (f ResidualFunc) Residual(v int, residual float64) { f(v, residual) }
