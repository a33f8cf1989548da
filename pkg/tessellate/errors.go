package tessellate

import "errors"

// ErrEmptyPart is returned when a kernel meshes a part to no triangles.
var ErrEmptyPart = errors.New("mesh has no triangles")
