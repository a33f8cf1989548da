package decimate

import (
	"errors"
	"fmt"
)

// ErrInvalidOptions is wrapped by Options.Validate failures.
var ErrInvalidOptions = errors.New("decimate: invalid options")

// Options controls a decimation run.
type Options struct {
	// TargetFaces stops decimation once at most this many faces remain.
	// It takes precedence over TargetRatio when positive.
	TargetFaces int `yaml:"target_faces"`
	// TargetRatio is the fraction of the initial faces to keep.
	TargetRatio float64 `yaml:"target_ratio"`
	// MaxCost stops decimation before any collapse costing more.
	// Zero means unbounded.
	MaxCost float64 `yaml:"max_cost"`
	// MaxCondition bounds the condition number of the placement system;
	// above it the three-point fallback is used.
	MaxCondition float64 `yaml:"max_condition"`
	// FlipThreshold is the minimum normal dot product a face may have
	// across a collapse. Values below -1 disable the check.
	FlipThreshold float64 `yaml:"flip_threshold"`
}

// DefaultOptions halves the face count.
func DefaultOptions() Options {
	return Options{
		TargetRatio:   0.5,
		MaxCondition:  DefaultMaxCondition,
		FlipThreshold: 0,
	}
}

// Validate reports the first out-of-range field.
func (o Options) Validate() error {
	switch {
	case o.TargetFaces < 0:
		return fmt.Errorf("%w: target_faces %d is negative", ErrInvalidOptions, o.TargetFaces)
	case o.TargetRatio < 0 || o.TargetRatio > 1:
		return fmt.Errorf("%w: target_ratio %g outside [0, 1]", ErrInvalidOptions, o.TargetRatio)
	case o.MaxCost < 0:
		return fmt.Errorf("%w: max_cost %g is negative", ErrInvalidOptions, o.MaxCost)
	case o.MaxCondition < 0:
		return fmt.Errorf("%w: max_condition %g is negative", ErrInvalidOptions, o.MaxCondition)
	case o.FlipThreshold > 1:
		return fmt.Errorf("%w: flip_threshold %g above 1", ErrInvalidOptions, o.FlipThreshold)
	}
	return nil
}

// Target returns the face count to stop at for a mesh with faces faces.
func (o Options) Target(faces int) int {
	if o.TargetFaces > 0 {
		return o.TargetFaces
	}
	return int(o.TargetRatio * float64(faces))
}
