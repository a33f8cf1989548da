// Package testmesh builds small half-edge meshes with known geometry for
// tests.
package testmesh

import (
	"github.com/chazu/qslim/pkg/halfedge"
	"gonum.org/v1/gonum/spatial/r3"
)

func must(m *halfedge.Mesh, err error) *halfedge.Mesh {
	if err != nil {
		panic(err)
	}
	return m
}

// FlatSquare is the unit square in z=0 split along the diagonal 0-2.
//
//	3 --- 2
//	|   / |
//	| /   |
//	0 --- 1
func FlatSquare() *halfedge.Mesh {
	return must(halfedge.Build(
		[]r3.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		[][3]int{{0, 1, 2}, {0, 2, 3}},
	))
}

// Trihedral corner vertex names.
const (
	CornerO = iota
	CornerX
	CornerY
	CornerZ
	CornerXY
	CornerXZ
	CornerYZ
)

// TrihedralCorner is three unit squares on the planes x=0, y=0 and z=0
// meeting at the origin, each split along the diagonal through the origin.
func TrihedralCorner() *halfedge.Mesh {
	return must(halfedge.Build(
		[]r3.Vec{
			CornerO:  {},
			CornerX:  {X: 1},
			CornerY:  {Y: 1},
			CornerZ:  {Z: 1},
			CornerXY: {X: 1, Y: 1},
			CornerXZ: {X: 1, Z: 1},
			CornerYZ: {Y: 1, Z: 1},
		},
		[][3]int{
			{CornerO, CornerX, CornerXY}, {CornerO, CornerXY, CornerY}, // z=0
			{CornerO, CornerXZ, CornerX}, {CornerO, CornerZ, CornerXZ}, // y=0
			{CornerO, CornerY, CornerYZ}, {CornerO, CornerYZ, CornerZ}, // x=0
		},
	))
}

// Chamfered corner vertex names.
const (
	ChamferC1 = iota // (h, 0, 0)
	ChamferC2        // (0, h, 0)
	ChamferC3        // (0, 0, h)
	ChamferX
	ChamferY
	ChamferZ
	ChamferXY
	ChamferXZ
	ChamferYZ
)

// ChamferedCorner is TrihedralCorner with the corner cut off by the plane
// x+y+z=h, leaving a triangle C1 C2 C3 whose first half-edge (index 0)
// runs C1->C2.
func ChamferedCorner(h float64) *halfedge.Mesh {
	return must(halfedge.Build(
		[]r3.Vec{
			ChamferC1: {X: h},
			ChamferC2: {Y: h},
			ChamferC3: {Z: h},
			ChamferX:  {X: 1},
			ChamferY:  {Y: 1},
			ChamferZ:  {Z: 1},
			ChamferXY: {X: 1, Y: 1},
			ChamferXZ: {X: 1, Z: 1},
			ChamferYZ: {Y: 1, Z: 1},
		},
		[][3]int{
			{ChamferC1, ChamferC2, ChamferC3},
			// z=0
			{ChamferC1, ChamferX, ChamferXY}, {ChamferC1, ChamferXY, ChamferY}, {ChamferC1, ChamferY, ChamferC2},
			// x=0
			{ChamferC2, ChamferY, ChamferYZ}, {ChamferC2, ChamferYZ, ChamferZ}, {ChamferC2, ChamferZ, ChamferC3},
			// y=0
			{ChamferC3, ChamferZ, ChamferXZ}, {ChamferC3, ChamferXZ, ChamferX}, {ChamferC3, ChamferX, ChamferC1},
		},
	))
}

// Octahedron is the closed unit octahedron centered on the origin.
func Octahedron() *halfedge.Mesh {
	const (
		px = iota
		nx
		py
		ny
		pz
		nz
	)
	return must(halfedge.Build(
		[]r3.Vec{
			px: {X: 1}, nx: {X: -1},
			py: {Y: 1}, ny: {Y: -1},
			pz: {Z: 1}, nz: {Z: -1},
		},
		[][3]int{
			{px, py, pz}, {py, nx, pz}, {nx, ny, pz}, {ny, px, pz},
			{py, px, nz}, {nx, py, nz}, {ny, nx, nz}, {px, ny, nz},
		},
	))
}

// Grid is an n by n grid of unit squares in z=0, two triangles per square.
func Grid(n int) *halfedge.Mesh {
	var positions []r3.Vec
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			positions = append(positions, r3.Vec{X: float64(x), Y: float64(y)})
		}
	}
	idx := func(x, y int) int { return y*(n+1) + x }
	var tris [][3]int
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			a, b, c, d := idx(x, y), idx(x+1, y), idx(x+1, y+1), idx(x, y+1)
			tris = append(tris, [3]int{a, b, c}, [3]int{a, c, d})
		}
	}
	return must(halfedge.Build(positions, tris))
}
