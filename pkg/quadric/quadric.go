// Package quadric implements Garland–Heckbert error quadrics and the
// per-vertex quadric store used by the decimator.
//
// A quadric is a symmetric 4x4 matrix Q. For a homogeneous point
// p = (x, y, z, 1) the error pᵀQp is the sum of squared distances from p to
// every plane folded into Q.
package quadric

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Quadric is a symmetric 4x4 error matrix stored row major.
// The zero value is the zero quadric.
type Quadric [4][4]float64

// Plane returns the quadric of the plane n·x + d = 0, the outer product of
// (n.X, n.Y, n.Z, d) with itself.
func Plane(n r3.Vec, d float64) Quadric {
	p := [4]float64{n.X, n.Y, n.Z, d}
	var q Quadric
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			q[r][c] = p[r] * p[c]
		}
	}
	return q
}

// PlaneThrough returns the quadric of the plane with normal n containing p.
func PlaneThrough(n, p r3.Vec) Quadric {
	return Plane(n, -r3.Dot(n, p))
}

// Add returns the entrywise sum q + o.
func (q Quadric) Add(o Quadric) Quadric {
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			q[r][c] += o[r][c]
		}
	}
	return q
}

// Scale returns q with every entry multiplied by s.
func (q Quadric) Scale(s float64) Quadric {
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			q[r][c] *= s
		}
	}
	return q
}

// At returns the entry at row r, column c.
func (q Quadric) At(r, c int) float64 {
	return q[r][c]
}

// Eval returns pᵀQp for the homogeneous point (p.X, p.Y, p.Z, 1).
func (q Quadric) Eval(p r3.Vec) float64 {
	v := [4]float64{p.X, p.Y, p.Z, 1}
	var sum float64
	for r := 0; r < 4; r++ {
		var row float64
		for c := 0; c < 4; c++ {
			row += q[r][c] * v[c]
		}
		sum += v[r] * row
	}
	return sum
}

// IsZero reports whether every entry of q is zero.
func (q Quadric) IsZero() bool {
	return q == Quadric{}
}

func (q Quadric) String() string {
	return fmt.Sprintf("[%g %g %g %g; %g %g %g %g; %g %g %g %g; %g %g %g %g]",
		q[0][0], q[0][1], q[0][2], q[0][3],
		q[1][0], q[1][1], q[1][2], q[1][3],
		q[2][0], q[2][1], q[2][2], q[2][3],
		q[3][0], q[3][1], q[3][2], q[3][3])
}
