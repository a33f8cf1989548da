// Package meshio reads and writes Wavefront OBJ triangle meshes.
//
// Only geometry is kept: vertex positions and faces. Texture coordinates,
// groups and materials are skipped on read; polygons are fan-triangulated.
package meshio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chazu/qslim/pkg/kernel"
)

// ErrFormat is wrapped by every parse failure.
var ErrFormat = errors.New("meshio: malformed OBJ")

// ReadOBJ parses an OBJ stream. Faces may reference vertices as i, i/t,
// i//n or i/t/n, with negative indices counting back from the latest vertex.
func ReadOBJ(r io.Reader) (*kernel.Mesh, error) {
	m := &kernel.Mesh{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: vertex needs 3 coordinates", ErrFormat, line)
			}
			for _, f := range fields[1:4] {
				x, err := strconv.ParseFloat(f, 32)
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrFormat, line, err)
				}
				m.Vertices = append(m.Vertices, float32(x))
			}
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: face needs at least 3 vertices", ErrFormat, line)
			}
			idx := make([]uint32, 0, len(fields)-1)
			for _, f := range fields[1:] {
				i, err := faceIndex(f, m.VertexCount())
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrFormat, line, err)
				}
				idx = append(idx, i)
			}
			for k := 1; k+1 < len(idx); k++ {
				m.Indices = append(m.Indices, idx[0], idx[k], idx[k+1])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading OBJ: %w", err)
	}
	return m, nil
}

// faceIndex resolves one face corner to a zero-based vertex index.
func faceIndex(corner string, count int) (uint32, error) {
	ref, _, _ := strings.Cut(corner, "/")
	i, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("bad vertex reference %q", corner)
	}
	switch {
	case i > 0 && i <= count:
		return uint32(i - 1), nil
	case i < 0 && -i <= count:
		return uint32(count + i), nil
	}
	return 0, fmt.Errorf("vertex reference %d out of range (%d vertices)", i, count)
}

// WriteOBJ writes m as OBJ. Normals, when present, are written as vn
// records shared index-for-index with the vertices.
func WriteOBJ(w io.Writer, m *kernel.Mesh) error {
	if err := m.Validate(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	if m.PartName != "" {
		fmt.Fprintf(bw, "o %s\n", m.PartName)
	}

	buf := make([]byte, 0, 64)
	writeTriple := func(tag string, xs []float32) {
		buf = append(buf[:0], tag...)
		for _, x := range xs {
			buf = append(buf, ' ')
			buf = strconv.AppendFloat(buf, float64(x), 'g', -1, 32)
		}
		buf = append(buf, '\n')
		bw.Write(buf)
	}
	for i := 0; i < len(m.Vertices); i += 3 {
		writeTriple("v", m.Vertices[i:i+3])
	}
	for i := 0; i < len(m.Normals); i += 3 {
		writeTriple("vn", m.Normals[i:i+3])
	}

	withNormals := len(m.Normals) > 0
	for i := 0; i < len(m.Indices); i += 3 {
		a, b, c := m.Indices[i]+1, m.Indices[i+1]+1, m.Indices[i+2]+1
		if withNormals {
			fmt.Fprintf(bw, "f %d//%d %d//%d %d//%d\n", a, a, b, b, c, c)
		} else {
			fmt.Fprintf(bw, "f %d %d %d\n", a, b, c)
		}
	}
	return bw.Flush()
}

// ReadOBJFile reads an OBJ file and names the mesh after the path.
func ReadOBJFile(path string) (*kernel.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := ReadOBJ(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.PartName = path
	return m, nil
}

// WriteOBJFile writes m to path, replacing any existing file.
func WriteOBJFile(path string, m *kernel.Mesh) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteOBJ(f, m); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
