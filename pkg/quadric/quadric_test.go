package quadric_test

import (
	"bytes"
	"log/slog"
	"math"
	"math/rand"
	"testing"

	"github.com/chazu/qslim/internal/testmesh"
	"github.com/chazu/qslim/pkg/halfedge"
	"github.com/chazu/qslim/pkg/quadric"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const tol = 1e-12

func assertQuadricsEqual(t *testing.T, want, got quadric.Quadric, delta float64) {
	t.Helper()
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			assert.InDeltaf(t, want.At(r, c), got.At(r, c), delta, "entry (%d,%d)", r, c)
		}
	}
}

func randomUnit(rng *rand.Rand) r3.Vec {
	for {
		v := r3.Vec{X: rng.Float64()*2 - 1, Y: rng.Float64()*2 - 1, Z: rng.Float64()*2 - 1}
		if n := r3.Norm(v); n > 0.1 {
			return r3.Scale(1/n, v)
		}
	}
}

func TestPlane(t *testing.T) {
	q := quadric.Plane(r3.Vec{Z: 1}, -2)

	assert.Equal(t, 1.0, q.At(2, 2))
	assert.Equal(t, -2.0, q.At(2, 3))
	assert.Equal(t, -2.0, q.At(3, 2))
	assert.Equal(t, 4.0, q.At(3, 3))
	assert.Equal(t, 0.0, q.At(0, 0))

	assert.Equal(t, 0.0, q.Eval(r3.Vec{X: 5, Y: -3, Z: 2}))
	assert.Equal(t, 1.0, q.Eval(r3.Vec{Z: 3}))
	assert.Equal(t, 4.0, q.Eval(r3.Vec{}))
}

func TestEvalIsSquaredPlaneDistance(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		n := randomUnit(rng)
		on := r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		q := quadric.PlaneThrough(n, on)

		p := r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		dist := r3.Dot(n, r3.Sub(p, on))
		assert.InDelta(t, dist*dist, q.Eval(p), 1e-9)
		assert.InDelta(t, 0, q.Eval(on), 1e-9)
	}
}

func TestQuadricIsSymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	q := quadric.PlaneThrough(randomUnit(rng), r3.Vec{X: 1, Y: 2, Z: 3}).
		Add(quadric.PlaneThrough(randomUnit(rng), r3.Vec{X: -1}))
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			assert.Equal(t, q.At(r, c), q.At(c, r))
		}
	}
}

func TestSummationOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	var planes []quadric.Quadric
	for i := 0; i < 12; i++ {
		p := r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		planes = append(planes, quadric.PlaneThrough(randomUnit(rng), p))
	}

	var forward quadric.Quadric
	for _, q := range planes {
		forward = forward.Add(q)
	}
	for trial := 0; trial < 10; trial++ {
		var shuffled quadric.Quadric
		for _, i := range rng.Perm(len(planes)) {
			shuffled = shuffled.Add(planes[i])
		}
		assertQuadricsEqual(t, forward, shuffled, 1e-9)
	}

	// Grouping does not matter either.
	var left, right quadric.Quadric
	for i, q := range planes {
		if i < len(planes)/2 {
			left = left.Add(q)
		} else {
			right = right.Add(q)
		}
	}
	assertQuadricsEqual(t, forward, right.Add(left), 1e-9)
}

func TestInitializeResidualsNearZero(t *testing.T) {
	meshes := map[string]*halfedge.Mesh{
		"flat square":      testmesh.FlatSquare(),
		"trihedral corner": testmesh.TrihedralCorner(),
		"chamfered corner": testmesh.ChamferedCorner(0.3),
		"octahedron":       testmesh.Octahedron(),
		"grid":             testmesh.Grid(4),
	}
	for name, m := range meshes {
		t.Run(name, func(t *testing.T) {
			seen := make(map[int]float64)
			acc := quadric.NewAccumulator(m, quadric.WithReporter(quadric.ResidualFunc(func(v int, r float64) {
				seen[v] = r
			})))
			acc.Initialize()

			require.Equal(t, m.VertexCount(), acc.Len())
			require.Len(t, seen, m.VertexCount())
			for v, r := range seen {
				assert.InDeltaf(t, 0, r, tol, "vertex %d", v)
				assert.InDeltaf(t, 0, acc.Quadric(v).Eval(m.Position(v)), tol, "vertex %d", v)
			}
		})
	}
}

func TestFlatSquareCornerIsSinglePlane(t *testing.T) {
	m := testmesh.FlatSquare()
	acc := quadric.NewAccumulator(m)
	acc.Initialize()

	plane := quadric.Plane(r3.Vec{Z: 1}, 0)
	// Vertices 0 and 2 lie on both triangles, 1 and 3 on one.
	assertQuadricsEqual(t, plane.Scale(2), acc.Quadric(0), tol)
	assertQuadricsEqual(t, plane, acc.Quadric(1), tol)
	assertQuadricsEqual(t, plane.Scale(2), acc.Quadric(2), tol)
	assertQuadricsEqual(t, plane, acc.Quadric(3), tol)

	for f := 0; f < m.FaceCount(); f++ {
		assertQuadricsEqual(t, plane, acc.FaceQuadric(f), tol)
	}
}

func TestTrihedralCornerIsFullRank(t *testing.T) {
	m := testmesh.TrihedralCorner()
	acc := quadric.NewAccumulator(m)
	q := acc.VertexQuadric(testmesh.CornerO)

	block := mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			block.Set(r, c, q.At(r, c))
		}
	}
	assert.InDelta(t, 8, mat.Det(block), tol)
	assert.True(t, mat.Equal(block, mat.NewDense(3, 3, []float64{2, 0, 0, 0, 2, 0, 0, 0, 2})))

	// Corners of a single square only see two planes.
	qx := acc.VertexQuadric(testmesh.CornerX)
	assert.Equal(t, 0.0, qx.At(0, 0))
	assert.Equal(t, 1.0, qx.At(1, 1))
	assert.Equal(t, 1.0, qx.At(2, 2))
}

func TestIsolatedVertexHasZeroQuadric(t *testing.T) {
	m, err := halfedge.Build(
		[]r3.Vec{{}, {X: 1}, {Y: 1}, {X: 5, Y: 5, Z: 5}},
		[][3]int{{0, 1, 2}},
	)
	require.NoError(t, err)

	acc := quadric.NewAccumulator(m)
	acc.Initialize()
	assert.True(t, acc.Quadric(3).IsZero())
	assert.False(t, acc.Quadric(0).IsZero())
}

func TestDegenerateFaceContributesNothing(t *testing.T) {
	// Collinear triangle: zero-area, zero normal.
	m, err := halfedge.Build(
		[]r3.Vec{{}, {X: 1}, {X: 2}},
		[][3]int{{0, 1, 2}},
	)
	require.NoError(t, err)

	acc := quadric.NewAccumulator(m)
	assert.True(t, acc.FaceQuadric(0).IsZero())
	assert.True(t, acc.VertexQuadric(1).IsZero())
}

func TestVertexUpdatedRefreshesAfterCollapse(t *testing.T) {
	m := testmesh.Grid(2)
	acc := quadric.NewAccumulator(m)
	acc.Initialize()

	// Centre vertex 4 absorbs vertex 5 (to its right).
	h, ok := m.Find(4, 5)
	require.True(t, ok)
	if a, _ := m.Endpoints(h); a != 4 {
		h = m.HalfEdge(h).Pair
	}
	before := acc.Quadric(4)

	affected, err := m.Collapse(h, m.Position(4))
	require.NoError(t, err)
	require.Equal(t, 4, affected[0])

	for _, v := range affected {
		acc.VertexUpdated(v)
	}
	for _, v := range affected {
		assertQuadricsEqual(t, acc.VertexQuadric(v), acc.Quadric(v), tol)
	}
	// The centre lost two incident faces and gained the ones around 5.
	assert.NotEqual(t, before, acc.Quadric(4))
	assert.InDelta(t, float64(len(m.NeighborFaces(4))), acc.Quadric(4).At(2, 2), tol)
}

func TestSlogReporter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	r := quadric.SlogReporter{Logger: logger, Tolerance: 1e-6}

	r.Residual(1, 1e-9)
	assert.Empty(t, buf.String())

	r.Residual(7, 0.5)
	assert.Contains(t, buf.String(), "vertex=7")
	assert.Contains(t, buf.String(), "residual above tolerance")

	assert.False(t, math.IsNaN(quadric.Quadric{}.Eval(r3.Vec{X: 1})))
}
