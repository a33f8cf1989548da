package halfedge

import (
	"fmt"
	"math"

	"github.com/chazu/qslim/pkg/kernel"
	"gonum.org/v1/gonum/spatial/r3"
)

// FromMesh builds a half-edge mesh from a flat kernel mesh. Vertices within
// weldTol of an earlier vertex along every axis are merged into it first, so
// triangle soups such as marching cubes output become connected surfaces. A
// weldTol of zero merges only bit-identical positions. Triangles that
// collapse to fewer than three distinct vertices after welding are dropped.
func FromMesh(km *kernel.Mesh, weldTol float64) (*Mesh, error) {
	if err := km.Validate(); err != nil {
		return nil, fmt.Errorf("halfedge: %w", err)
	}

	w := newWelder(weldTol)
	remap := make([]int, km.VertexCount())
	for i := range remap {
		remap[i] = w.add(r3.Vec{
			X: float64(km.Vertices[3*i]),
			Y: float64(km.Vertices[3*i+1]),
			Z: float64(km.Vertices[3*i+2]),
		})
	}
	positions := w.positions

	tris := make([][3]int, 0, km.TriangleCount())
	for t := 0; t < km.TriangleCount(); t++ {
		a := remap[km.Indices[3*t]]
		b := remap[km.Indices[3*t+1]]
		c := remap[km.Indices[3*t+2]]
		if a == b || b == c || a == c {
			continue
		}
		tris = append(tris, [3]int{a, b, c})
	}

	return Build(positions, tris)
}

// ToMesh returns the live geometry as a flat kernel mesh with area-weighted
// vertex normals.
func (m *Mesh) ToMesh() *kernel.Mesh {
	positions, tris := m.Indexed()

	normals := make([]r3.Vec, len(positions))
	for _, t := range tris {
		pa, pb, pc := positions[t[0]], positions[t[1]], positions[t[2]]
		n := r3.Cross(r3.Sub(pb, pa), r3.Sub(pc, pa))
		for _, v := range t {
			normals[v] = r3.Add(normals[v], n)
		}
	}

	out := &kernel.Mesh{
		Vertices: make([]float32, 0, 3*len(positions)),
		Normals:  make([]float32, 0, 3*len(positions)),
		Indices:  make([]uint32, 0, 3*len(tris)),
	}
	for i, p := range positions {
		n := unitOrZero(normals[i])
		out.Vertices = append(out.Vertices, float32(p.X), float32(p.Y), float32(p.Z))
		out.Normals = append(out.Normals, float32(n.X), float32(n.Y), float32(n.Z))
	}
	for _, t := range tris {
		out.Indices = append(out.Indices, uint32(t[0]), uint32(t[1]), uint32(t[2]))
	}
	return out
}

type cell [3]int64

// welder merges positions on a grid of weldTol cells. A position is compared
// against the 27 cells around its own, so neighbours straddling a cell
// boundary still merge.
type welder struct {
	tol       float64
	cells     map[cell][]int
	positions []r3.Vec
}

func newWelder(tol float64) *welder {
	return &welder{tol: tol, cells: make(map[cell][]int)}
}

func (w *welder) cellOf(p r3.Vec) cell {
	if w.tol <= 0 {
		return cell{
			int64(math.Float64bits(p.X)),
			int64(math.Float64bits(p.Y)),
			int64(math.Float64bits(p.Z)),
		}
	}
	return cell{
		int64(math.Floor(p.X / w.tol)),
		int64(math.Floor(p.Y / w.tol)),
		int64(math.Floor(p.Z / w.tol)),
	}
}

// add returns the index of the position p merges into, appending p when
// nothing is close enough.
func (w *welder) add(p r3.Vec) int {
	c := w.cellOf(p)
	if w.tol <= 0 {
		if idx, ok := w.cells[c]; ok {
			return idx[0]
		}
	} else {
		for dx := int64(-1); dx <= 1; dx++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for dz := int64(-1); dz <= 1; dz++ {
					for _, j := range w.cells[cell{c[0] + dx, c[1] + dy, c[2] + dz}] {
						if w.near(w.positions[j], p) {
							return j
						}
					}
				}
			}
		}
	}
	j := len(w.positions)
	w.positions = append(w.positions, p)
	w.cells[c] = append(w.cells[c], j)
	return j
}

func (w *welder) near(a, b r3.Vec) bool {
	return math.Abs(a.X-b.X) <= w.tol &&
		math.Abs(a.Y-b.Y) <= w.tol &&
		math.Abs(a.Z-b.Z) <= w.tol
}
