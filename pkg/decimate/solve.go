package decimate

import (
	"math"

	"github.com/chazu/qslim/pkg/quadric"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultMaxCondition is the largest condition number of the placement
// system still treated as solvable.
const DefaultMaxCondition = 1e12

// Branch tells which path produced a collapse placement.
type Branch int

const (
	// Solved means the closed-form minimizer was used.
	Solved Branch = iota
	// Fallback means the system was singular and one of three discrete
	// candidates was picked.
	Fallback
)

func (b Branch) String() string {
	switch b {
	case Solved:
		return "solved"
	case Fallback:
		return "fallback"
	}
	return "unknown"
}

// Candidate names a fallback placement.
type Candidate int

const (
	NoCandidate Candidate = iota
	FirstEndpoint
	Midpoint
	SecondEndpoint
)

func (c Candidate) String() string {
	switch c {
	case FirstEndpoint:
		return "first-endpoint"
	case Midpoint:
		return "midpoint"
	case SecondEndpoint:
		return "second-endpoint"
	}
	return "none"
}

// Result is the outcome of placing a collapse.
type Result struct {
	Branch    Branch
	Candidate Candidate // NoCandidate when Branch is Solved
	Position  r3.Vec
	Cost      float64
	// Condition is the condition number of the placement system, +Inf when
	// it is exactly singular.
	Condition float64
}

// placementSystem returns the upper three rows of q with the homogeneous
// constraint row [0 0 0 1] appended.
func placementSystem(q quadric.Quadric) *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		q.At(0, 0), q.At(0, 1), q.At(0, 2), q.At(0, 3),
		q.At(0, 1), q.At(1, 1), q.At(1, 2), q.At(1, 3),
		q.At(0, 2), q.At(1, 2), q.At(2, 2), q.At(2, 3),
		0, 0, 0, 1,
	})
}

// Solve places the collapse of an edge (p1, p2) under the combined quadric q.
//
// The minimizer of pᵀQp with p.w = 1 is the last column of the inverse of
// the placement system. When that system is singular, its condition number
// exceeds maxCond, or the solution is not finite, the cheapest of p1, the
// midpoint and p2 is chosen instead, preferring earlier candidates on ties.
// A NaN candidate cost counts as +Inf.
// A non-positive maxCond selects DefaultMaxCondition.
func Solve(q quadric.Quadric, p1, p2 r3.Vec, maxCond float64) Result {
	if maxCond <= 0 {
		maxCond = DefaultMaxCondition
	}

	var lu mat.LU
	lu.Factorize(placementSystem(q))
	cond := lu.Cond()
	if lu.Det() != 0 && cond <= maxCond {
		x := mat.NewVecDense(4, nil)
		err := lu.SolveVecTo(x, false, mat.NewVecDense(4, []float64{0, 0, 0, 1}))
		p := r3.Vec{X: x.AtVec(0), Y: x.AtVec(1), Z: x.AtVec(2)}
		if err == nil && finite(p) {
			return Result{
				Branch:    Solved,
				Position:  p,
				Cost:      q.Eval(p),
				Condition: cond,
			}
		}
	}

	res := fallback(q, p1, p2)
	res.Condition = cond
	return res
}

func fallback(q quadric.Quadric, p1, p2 r3.Vec) Result {
	candidates := [3]struct {
		c Candidate
		p r3.Vec
	}{
		{FirstEndpoint, p1},
		{Midpoint, r3.Scale(0.5, r3.Add(p1, p2))},
		{SecondEndpoint, p2},
	}

	best := Result{Branch: Fallback, Cost: math.Inf(1)}
	for _, cand := range candidates {
		cost := q.Eval(cand.p)
		if math.IsNaN(cost) {
			cost = math.Inf(1)
		}
		if best.Candidate == NoCandidate || cost < best.Cost {
			best.Candidate = cand.c
			best.Position = cand.p
			best.Cost = cost
		}
	}
	return best
}

func finite(p r3.Vec) bool {
	for _, v := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
