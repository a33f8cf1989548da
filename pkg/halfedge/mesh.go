// Package halfedge implements a triangle half-edge mesh with edge collapse.
//
// Every face owns exactly three half-edges: face f owns 3f, 3f+1 and 3f+2,
// linked in that cyclic order through Next. Indices of vertices, faces and
// half-edges are stable for the lifetime of the mesh; removed elements are
// flagged rather than compacted so callers can key per-vertex data by index.
package halfedge

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// NoPair marks a boundary half-edge without a twin.
const NoPair = -1

var (
	// ErrBadIndex is returned when a triangle references a missing vertex.
	ErrBadIndex = errors.New("halfedge: vertex index out of range")
	// ErrDegenerateFace is returned for a triangle repeating a vertex.
	ErrDegenerateFace = errors.New("halfedge: triangle repeats a vertex")
	// ErrNonManifold is returned when a directed edge is used twice.
	ErrNonManifold = errors.New("halfedge: non-manifold or inconsistently oriented edge")
	// ErrIllegalCollapse is returned when a collapse would break the surface.
	ErrIllegalCollapse = errors.New("halfedge: illegal collapse")
)

// Vertex is a mesh vertex.
type Vertex struct {
	Pos     r3.Vec
	Removed bool
}

// HalfEdge is a directed edge. Vert is the origin vertex; the destination
// is the origin of Next (and of Pair, when the edge is interior).
type HalfEdge struct {
	Vert int
	Pair int
	Next int
	Face int
}

// Face is a triangle. Edge is its first half-edge.
type Face struct {
	Edge    int
	Normal  r3.Vec
	Removed bool
}

type dirEdge struct {
	from, to int
}

// Mesh is a triangle half-edge mesh.
type Mesh struct {
	verts    []Vertex
	edges    []HalfEdge
	faces    []Face
	vfaces   [][]int
	directed map[dirEdge]int

	liveVerts int
	liveFaces int

	// FlipThreshold is the minimum dot product allowed between a face
	// normal before and after a collapse. Values below -1 disable the check.
	FlipThreshold float64
}

// Build creates a mesh from vertex positions and counter-clockwise
// triangles. Faces must be consistently oriented and every directed edge
// may appear at most once.
func Build(positions []r3.Vec, tris [][3]int) (*Mesh, error) {
	m := &Mesh{
		verts:     make([]Vertex, len(positions)),
		edges:     make([]HalfEdge, 0, 3*len(tris)),
		faces:     make([]Face, 0, len(tris)),
		vfaces:    make([][]int, len(positions)),
		directed:  make(map[dirEdge]int, 3*len(tris)),
		liveVerts: len(positions),
	}
	for i, p := range positions {
		m.verts[i] = Vertex{Pos: p}
	}

	for f, tri := range tris {
		for k, v := range tri {
			if v < 0 || v >= len(positions) {
				return nil, fmt.Errorf("face %d corner %d: %w", f, k, ErrBadIndex)
			}
		}
		if tri[0] == tri[1] || tri[1] == tri[2] || tri[0] == tri[2] {
			return nil, fmt.Errorf("face %d %v: %w", f, tri, ErrDegenerateFace)
		}
		for k := 0; k < 3; k++ {
			h := 3*f + k
			key := dirEdge{tri[k], tri[(k+1)%3]}
			if prev, ok := m.directed[key]; ok {
				return nil, fmt.Errorf("edge %d->%d in faces %d and %d: %w",
					key.from, key.to, m.edges[prev].Face, f, ErrNonManifold)
			}
			m.directed[key] = h
			m.edges = append(m.edges, HalfEdge{
				Vert: tri[k],
				Pair: NoPair,
				Next: 3*f + (k+1)%3,
				Face: f,
			})
			m.vfaces[tri[k]] = append(m.vfaces[tri[k]], f)
		}
		m.faces = append(m.faces, Face{Edge: 3 * f})
	}
	m.liveFaces = len(tris)

	for h := range m.edges {
		m.pairEdge(h)
	}
	for f := range m.faces {
		m.faces[f].Normal = m.faceNormal(f)
	}
	return m, nil
}

// pairEdge links h to its reverse half-edge, if any.
func (m *Mesh) pairEdge(h int) {
	rev := dirEdge{m.Dest(h), m.edges[h].Vert}
	if p, ok := m.directed[rev]; ok {
		m.edges[h].Pair = p
		m.edges[p].Pair = h
		return
	}
	m.edges[h].Pair = NoPair
}

func (m *Mesh) faceNormal(f int) r3.Vec {
	a, b, c := m.FaceVerts(f)
	pa, pb, pc := m.verts[a].Pos, m.verts[b].Pos, m.verts[c].Pos
	return unitOrZero(r3.Cross(r3.Sub(pb, pa), r3.Sub(pc, pa)))
}

func unitOrZero(v r3.Vec) r3.Vec {
	if r3.Norm(v) == 0 {
		return r3.Vec{}
	}
	return r3.Unit(v)
}

// VertexCount returns the number of vertex slots, including removed ones.
func (m *Mesh) VertexCount() int { return len(m.verts) }

// LiveVertexCount returns the number of vertices not yet collapsed away.
func (m *Mesh) LiveVertexCount() int { return m.liveVerts }

// FaceCount returns the number of face slots, including removed ones.
func (m *Mesh) FaceCount() int { return len(m.faces) }

// LiveFaceCount returns the number of faces still present.
func (m *Mesh) LiveFaceCount() int { return m.liveFaces }

// Vertex returns vertex v.
func (m *Mesh) Vertex(v int) Vertex { return m.verts[v] }

// Face returns face f.
func (m *Mesh) Face(f int) Face { return m.faces[f] }

// HalfEdge returns half-edge h.
func (m *Mesh) HalfEdge(h int) HalfEdge { return m.edges[h] }

// Position returns the position of vertex v.
func (m *Mesh) Position(v int) r3.Vec { return m.verts[v].Pos }

// FaceNormal returns the unit normal of face f, or the zero vector for a
// zero-area face.
func (m *Mesh) FaceNormal(f int) r3.Vec { return m.faces[f].Normal }

// FacePoint returns the position of the origin of the face's first half-edge.
func (m *Mesh) FacePoint(f int) r3.Vec {
	return m.verts[m.edges[m.faces[f].Edge].Vert].Pos
}

// FaceVerts returns the three vertices of face f in winding order.
func (m *Mesh) FaceVerts(f int) (int, int, int) {
	h := m.faces[f].Edge
	return m.edges[h].Vert, m.edges[h+1].Vert, m.edges[h+2].Vert
}

// NeighborFaces returns the faces incident to v. The slice must not be
// modified.
func (m *Mesh) NeighborFaces(v int) []int { return m.vfaces[v] }

// Neighbors returns the vertices sharing a face with v, in first-seen order.
func (m *Mesh) Neighbors(v int) []int {
	var out []int
	for _, f := range m.vfaces[v] {
		a, b, c := m.FaceVerts(f)
		for _, w := range [3]int{a, b, c} {
			if w != v && !contains(out, w) {
				out = append(out, w)
			}
		}
	}
	return out
}

// Dest returns the destination vertex of half-edge h.
func (m *Mesh) Dest(h int) int { return m.edges[m.edges[h].Next].Vert }

// Prev returns the half-edge preceding h around its face.
func (m *Mesh) Prev(h int) int { return 3*(h/3) + (h%3+2)%3 }

// Endpoints returns the origin and destination of half-edge h.
func (m *Mesh) Endpoints(h int) (int, int) {
	return m.edges[h].Vert, m.Dest(h)
}

// Find returns a half-edge joining u and w in either direction.
func (m *Mesh) Find(u, w int) (int, bool) {
	if h, ok := m.directed[dirEdge{u, w}]; ok {
		return h, true
	}
	h, ok := m.directed[dirEdge{w, u}]
	return h, ok
}

// Edges returns one half-edge per undirected edge of the live faces.
func (m *Mesh) Edges() []int {
	out := make([]int, 0, len(m.directed)/2+1)
	for f := range m.faces {
		if m.faces[f].Removed {
			continue
		}
		for h := 3 * f; h < 3*f+3; h++ {
			if p := m.edges[h].Pair; p == NoPair || h < p {
				out = append(out, h)
			}
		}
	}
	return out
}

// VertexEdges returns one half-edge per undirected edge incident to v.
func (m *Mesh) VertexEdges(v int) []int {
	var out []int
	for _, w := range m.Neighbors(v) {
		if h, ok := m.Find(v, w); ok {
			out = append(out, h)
		}
	}
	return out
}

// IsBoundaryVertex reports whether v lies on an open boundary.
func (m *Mesh) IsBoundaryVertex(v int) bool {
	for _, f := range m.vfaces[v] {
		for h := 3 * f; h < 3*f+3; h++ {
			if m.edges[h].Pair != NoPair {
				continue
			}
			if m.edges[h].Vert == v || m.Dest(h) == v {
				return true
			}
		}
	}
	return false
}

// Indexed returns the live geometry as compacted positions and triangles.
func (m *Mesh) Indexed() ([]r3.Vec, [][3]int) {
	remap := make([]int, len(m.verts))
	positions := make([]r3.Vec, 0, m.liveVerts)
	for v, vert := range m.verts {
		remap[v] = -1
		if vert.Removed || len(m.vfaces[v]) == 0 {
			continue
		}
		remap[v] = len(positions)
		positions = append(positions, vert.Pos)
	}
	tris := make([][3]int, 0, m.liveFaces)
	for f := range m.faces {
		if m.faces[f].Removed {
			continue
		}
		a, b, c := m.FaceVerts(f)
		tris = append(tris, [3]int{remap[a], remap[b], remap[c]})
	}
	return positions, tris
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func remove(s []int, v int) []int {
	for i, x := range s {
		if x == v {
			return append(s[:i], s[i+1:]...)
		}
	}
	return s
}
