package decimate_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/chazu/qslim/pkg/decimate"
	"github.com/chazu/qslim/pkg/quadric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func randomVec(rng *rand.Rand) r3.Vec {
	return r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
}

func randomFullRank(rng *rand.Rand, planes int) quadric.Quadric {
	var q quadric.Quadric
	for i := 0; i < planes; i++ {
		n := r3.Unit(randomVec(rng))
		q = q.Add(quadric.PlaneThrough(n, randomVec(rng)))
	}
	return q
}

func TestSolveFallbackOrder(t *testing.T) {
	origin := r3.Vec{}
	unitX := r3.Vec{X: 1}

	tests := []struct {
		name     string
		q        quadric.Quadric
		p1, p2   r3.Vec
		want     decimate.Candidate
		wantPos  r3.Vec
		wantCost float64
	}{
		{
			name: "first endpoint on plane",
			q:    quadric.Plane(r3.Vec{X: 1}, 0),
			p1:   origin, p2: unitX,
			want: decimate.FirstEndpoint, wantPos: origin, wantCost: 0,
		},
		{
			name: "second endpoint on plane",
			q:    quadric.Plane(r3.Vec{X: 1}, 0),
			p1:   unitX, p2: origin,
			want: decimate.SecondEndpoint, wantPos: origin, wantCost: 0,
		},
		{
			name: "midpoint on plane",
			q:    quadric.Plane(r3.Vec{X: 1}, -0.5),
			p1:   origin, p2: unitX,
			want: decimate.Midpoint, wantPos: r3.Vec{X: 0.5}, wantCost: 0,
		},
		{
			name: "midpoint wins tie with second endpoint",
			q:    quadric.Plane(r3.Vec{X: 1}, -0.75),
			p1:   origin, p2: unitX,
			want: decimate.Midpoint, wantPos: r3.Vec{X: 0.5}, wantCost: 0.0625,
		},
		{
			name: "first endpoint wins tie with midpoint",
			q:    quadric.Plane(r3.Vec{X: 1}, -0.25),
			p1:   origin, p2: unitX,
			want: decimate.FirstEndpoint, wantPos: origin, wantCost: 0.0625,
		},
		{
			name: "zero quadric ties everywhere",
			q:    quadric.Quadric{},
			p1:   r3.Vec{X: 3, Y: 1}, p2: unitX,
			want: decimate.FirstEndpoint, wantPos: r3.Vec{X: 3, Y: 1}, wantCost: 0,
		},
		{
			name: "two parallel planes",
			q:    quadric.Plane(r3.Vec{Z: 1}, 0).Add(quadric.Plane(r3.Vec{Z: 1}, -1)),
			p1:   origin, p2: r3.Vec{Z: 1},
			want: decimate.Midpoint, wantPos: r3.Vec{Z: 0.5}, wantCost: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := decimate.Solve(tt.q, tt.p1, tt.p2, 0)
			assert.Equal(t, decimate.Fallback, res.Branch)
			assert.Equal(t, tt.want, res.Candidate)
			assert.Equal(t, tt.wantPos, res.Position)
			assert.InDelta(t, tt.wantCost, res.Cost, 1e-15)
			assert.True(t, math.IsInf(res.Condition, 1) || res.Condition > decimate.DefaultMaxCondition)
		})
	}
}

func TestSolveFallbackSkipsNaNCost(t *testing.T) {
	// The first endpoint and the midpoint evaluate to NaN; the second
	// endpoint must still win with its finite cost.
	p1 := r3.Vec{X: math.NaN()}
	p2 := r3.Vec{X: 1}
	res := decimate.Solve(quadric.Plane(r3.Vec{X: 1}, 0), p1, p2, 0)

	assert.Equal(t, decimate.Fallback, res.Branch)
	assert.Equal(t, decimate.SecondEndpoint, res.Candidate)
	assert.Equal(t, p2, res.Position)
	assert.InDelta(t, 1, res.Cost, 1e-15)
}

func TestSolveFullRankIsMinimum(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		q := randomFullRank(rng, 3+rng.Intn(5))
		p1, p2 := randomVec(rng), randomVec(rng)

		res := decimate.Solve(q, p1, p2, 0)
		if res.Branch != decimate.Solved {
			// Random planes are almost surely in general position.
			t.Fatalf("trial %d: expected solved branch, got %v (cond %g)", i, res.Branch, res.Condition)
		}
		assert.Equal(t, decimate.NoCandidate, res.Candidate)
		assert.GreaterOrEqual(t, res.Cost, -1e-9)

		mid := r3.Scale(0.5, r3.Add(p1, p2))
		for _, p := range []r3.Vec{p1, mid, p2} {
			assert.LessOrEqual(t, res.Cost, q.Eval(p)+1e-9)
		}
		assert.InDelta(t, q.Eval(res.Position), res.Cost, 1e-12)
	}
}

func TestSolveZeroesGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		q := randomFullRank(rng, 4)
		res := decimate.Solve(q, r3.Vec{}, r3.Vec{X: 1}, 0)
		require.Equal(t, decimate.Solved, res.Branch)

		p := [4]float64{res.Position.X, res.Position.Y, res.Position.Z, 1}
		for r := 0; r < 3; r++ {
			var g float64
			for c := 0; c < 4; c++ {
				g += q.At(r, c) * p[c]
			}
			assert.InDelta(t, 0, g, 1e-9)
		}
	}
}

func TestSolveIllConditionedFallsBack(t *testing.T) {
	// Full rank but strongly anisotropic: condition number around 1e6.
	q := quadric.Plane(r3.Vec{X: 1}, 0).
		Add(quadric.Plane(r3.Vec{Y: 1}, 0)).
		Add(quadric.Plane(r3.Vec{Z: 1}, 0).Scale(1e-6))

	solved := decimate.Solve(q, r3.Vec{X: 1}, r3.Vec{Y: 1}, 0)
	assert.Equal(t, decimate.Solved, solved.Branch)
	assert.InDelta(t, 0, r3.Norm(solved.Position), 1e-9)

	res := decimate.Solve(q, r3.Vec{X: 1}, r3.Vec{Y: 1}, 1e3)
	assert.Equal(t, decimate.Fallback, res.Branch)
	assert.Equal(t, decimate.Midpoint, res.Candidate)
	assert.Greater(t, res.Condition, 1e3)
	assert.False(t, math.IsInf(res.Condition, 0))
}

func TestBranchAndCandidateStrings(t *testing.T) {
	assert.Equal(t, "solved", decimate.Solved.String())
	assert.Equal(t, "fallback", decimate.Fallback.String())
	assert.Equal(t, "midpoint", decimate.Midpoint.String())
	assert.Equal(t, "none", decimate.NoCandidate.String())
}
