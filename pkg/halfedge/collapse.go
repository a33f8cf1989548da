package halfedge

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// sharedFaces returns the faces containing both a and b.
func (m *Mesh) sharedFaces(a, b int) []int {
	var out []int
	for _, f := range m.vfaces[a] {
		x, y, z := m.FaceVerts(f)
		if x == b || y == b || z == b {
			out = append(out, f)
		}
	}
	return out
}

// opposite returns the vertex of f that is neither a nor b.
func (m *Mesh) opposite(f, a, b int) int {
	x, y, z := m.FaceVerts(f)
	for _, v := range [3]int{x, y, z} {
		if v != a && v != b {
			return v
		}
	}
	return -1
}

// CanCollapse reports whether merging the destination of h into its origin,
// with the survivor moved to pos, keeps the surface a manifold without
// flipping any face. It returns nil when the collapse is legal and an error
// wrapping ErrIllegalCollapse otherwise.
func (m *Mesh) CanCollapse(h int, pos r3.Vec) error {
	if h < 0 || h >= len(m.edges) || m.faces[m.edges[h].Face].Removed {
		return fmt.Errorf("half-edge %d is not live: %w", h, ErrIllegalCollapse)
	}
	a, b := m.Endpoints(h)
	shared := m.sharedFaces(a, b)

	// Link condition: the common neighbours of a and b must be exactly the
	// apexes of the faces on the edge.
	var apexes []int
	for _, f := range shared {
		apexes = append(apexes, m.opposite(f, a, b))
	}
	nb := m.Neighbors(b)
	for _, w := range m.Neighbors(a) {
		if w == b || !contains(nb, w) {
			continue
		}
		if !contains(apexes, w) {
			return fmt.Errorf("edge %d-%d fails link condition at %d: %w", a, b, w, ErrIllegalCollapse)
		}
	}

	if len(shared) == 2 && m.IsBoundaryVertex(a) && m.IsBoundaryVertex(b) {
		return fmt.Errorf("interior edge %d-%d joins two boundaries: %w", a, b, ErrIllegalCollapse)
	}

	existing := make(map[[3]int]bool, len(m.vfaces[a]))
	for _, f := range m.vfaces[a] {
		if !contains(shared, f) {
			x, y, z := m.FaceVerts(f)
			existing[sortedTri(x, y, z)] = true
		}
	}
	for _, f := range m.vfaces[b] {
		if contains(shared, f) {
			continue
		}
		x, y, z := m.FaceVerts(f)
		x, y, z = relabel(x, b, a), relabel(y, b, a), relabel(z, b, a)
		if existing[sortedTri(x, y, z)] {
			return fmt.Errorf("edge %d-%d would duplicate face %d: %w", a, b, f, ErrIllegalCollapse)
		}
		for _, e := range [3]dirEdge{{x, y}, {y, z}, {z, x}} {
			if e.from != a && e.to != a {
				continue
			}
			if g, ok := m.directed[e]; ok && !contains(shared, m.edges[g].Face) && m.edges[g].Face != f {
				return fmt.Errorf("edge %d-%d would reuse edge %d->%d: %w", a, b, e.from, e.to, ErrIllegalCollapse)
			}
		}
	}

	if m.FlipThreshold >= -1 {
		for _, v := range [2]int{a, b} {
			for _, f := range m.vfaces[v] {
				if contains(shared, f) {
					continue
				}
				if err := m.checkFlip(f, a, b, pos); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (m *Mesh) checkFlip(f, a, b int, pos r3.Vec) error {
	old := m.faces[f].Normal
	if r3.Norm(old) == 0 {
		return nil
	}
	x, y, z := m.FaceVerts(f)
	p := func(v int) r3.Vec {
		if v == a || v == b {
			return pos
		}
		return m.verts[v].Pos
	}
	n := r3.Cross(r3.Sub(p(y), p(x)), r3.Sub(p(z), p(x)))
	if r3.Norm(n) == 0 {
		return fmt.Errorf("face %d would degenerate: %w", f, ErrIllegalCollapse)
	}
	if r3.Dot(old, r3.Unit(n)) < m.FlipThreshold {
		return fmt.Errorf("face %d would flip: %w", f, ErrIllegalCollapse)
	}
	return nil
}

// Collapse merges the destination of h into its origin and moves the
// surviving vertex to pos. The faces on the edge are removed.
//
// It returns the vertices whose incident faces changed: the survivor first,
// followed by its one-ring. Callers must refresh any per-vertex data for each
// of them before reading it again.
func (m *Mesh) Collapse(h int, pos r3.Vec) ([]int, error) {
	if err := m.CanCollapse(h, pos); err != nil {
		return nil, err
	}
	a, b := m.Endpoints(h)

	for _, f := range m.sharedFaces(a, b) {
		m.removeFace(f)
	}

	moved := append([]int(nil), m.vfaces[b]...)
	for _, f := range moved {
		for g := 3 * f; g < 3*f+3; g++ {
			if m.edges[g].Vert == b || m.Dest(g) == b {
				delete(m.directed, dirEdge{m.edges[g].Vert, m.Dest(g)})
			}
		}
	}
	for _, f := range moved {
		for g := 3 * f; g < 3*f+3; g++ {
			if m.edges[g].Vert == b {
				m.edges[g].Vert = a
			}
		}
	}
	for _, f := range moved {
		for g := 3 * f; g < 3*f+3; g++ {
			if m.edges[g].Vert == a || m.Dest(g) == a {
				m.directed[dirEdge{m.edges[g].Vert, m.Dest(g)}] = g
			}
		}
	}
	m.vfaces[a] = append(m.vfaces[a], moved...)
	m.vfaces[b] = nil
	m.verts[b].Removed = true
	m.liveVerts--

	m.verts[a].Pos = pos
	for _, f := range m.vfaces[a] {
		for g := 3 * f; g < 3*f+3; g++ {
			m.pairEdge(g)
		}
	}
	for _, f := range m.vfaces[a] {
		m.faces[f].Normal = m.faceNormal(f)
	}

	return append([]int{a}, m.Neighbors(a)...), nil
}

func (m *Mesh) removeFace(f int) {
	for g := 3 * f; g < 3*f+3; g++ {
		delete(m.directed, dirEdge{m.edges[g].Vert, m.Dest(g)})
		if p := m.edges[g].Pair; p != NoPair {
			m.edges[p].Pair = NoPair
		}
		m.edges[g].Pair = NoPair
	}
	x, y, z := m.FaceVerts(f)
	for _, v := range [3]int{x, y, z} {
		m.vfaces[v] = remove(m.vfaces[v], f)
	}
	m.faces[f].Removed = true
	m.liveFaces--
}

func relabel(v, from, to int) int {
	if v == from {
		return to
	}
	return v
}

func sortedTri(x, y, z int) [3]int {
	t := []int{x, y, z}
	sort.Ints(t)
	return [3]int{t[0], t[1], t[2]}
}
