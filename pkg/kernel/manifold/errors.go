package manifold

import "errors"

// DefaultSegments is the number of circular segments used for spheres and
// for cylinders that do not ask for a count.
const DefaultSegments = 64

var (
	// ErrUnavailable is returned by New when built without the manifold tag.
	ErrUnavailable = errors.New("manifold kernel not available: build with -tags=manifold")
	// ErrEmptyMesh is returned by ToMesh for a solid with no triangles.
	ErrEmptyMesh = errors.New("manifold: solid has no triangles")
)
