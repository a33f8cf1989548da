package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/qslim/pkg/kernel"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// preprocessSource rewrites script source into something zygomys accepts:
//
//  1. :keyword becomes the string literal "__kw_keyword", so keywords need
//     no global bindings and cannot clash with user variables.
//  2. ; comments become // comments.
//  3. Hyphens inside identifiers become underscores (max-cost -> max_cost),
//     since zygomys reads a bare hyphen as subtraction.
//
// String literals pass through untouched.
func preprocessSource(source string) string {
	s := &scanner{src: []byte(source), out: make([]byte, 0, len(source)+len(source)/4)}
	for s.i < len(s.src) {
		switch c := s.src[s.i]; {
		case c == '"':
			s.quoted('"', true)
		case c == '`':
			s.quoted('`', false)
		case c == ';':
			s.comment()
		case c == ':' && s.peek(1) == '=':
			s.emit(2)
		case c == ':' && isLetter(s.peek(1)):
			s.keyword()
		case c == '-' && s.i > 0 && isIdentChar(s.src[s.i-1]) && isLetter(s.peek(1)):
			s.out = append(s.out, '_')
			s.i++
		default:
			s.emit(1)
		}
	}
	return string(s.out)
}

type scanner struct {
	src []byte
	out []byte
	i   int
}

func (s *scanner) peek(n int) byte {
	if s.i+n < len(s.src) {
		return s.src[s.i+n]
	}
	return 0
}

func (s *scanner) emit(n int) {
	end := s.i + n
	if end > len(s.src) {
		end = len(s.src)
	}
	s.out = append(s.out, s.src[s.i:end]...)
	s.i = end
}

func (s *scanner) quoted(delim byte, escapes bool) {
	s.emit(1)
	for s.i < len(s.src) && s.src[s.i] != delim {
		if escapes && s.src[s.i] == '\\' {
			s.emit(2)
			continue
		}
		s.emit(1)
	}
	s.emit(1)
}

func (s *scanner) comment() {
	s.out = append(s.out, '/', '/')
	for s.i < len(s.src) && s.src[s.i] == ';' {
		s.i++
	}
	for s.i < len(s.src) && s.src[s.i] != '\n' {
		s.emit(1)
	}
}

func (s *scanner) keyword() {
	j := s.i + 1
	for j < len(s.src) && isKWChar(s.src[j]) {
		j++
	}
	s.out = append(s.out, '"')
	s.out = append(s.out, kwPrefix...)
	s.out = append(s.out, s.src[s.i+1:j]...)
	s.out = append(s.out, '"')
	s.i = j
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpSolid wraps a kernel.Solid built by a primitive, boolean or transform.
type sexpSolid struct {
	solid kernel.Solid
	desc  string
}

func (s *sexpSolid) SexpString(ps *zygo.PrintState) string { return s.desc }
func (s *sexpSolid) Type() *zygo.RegisteredType { return nil }

type vec3 struct {
	X, Y, Z float64
}

type sexpVec3 struct {
	vec vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Argument parsing
// ---------------------------------------------------------------------------

// isKW reports whether s is a preprocessed keyword and returns its name.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates keyword arguments from positional ones. A trailing
// keyword with no value maps to SexpNull.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// number returns the keyword argument key, falling back to positional
// argument pos (pos < 0 disables the fallback).
func (a kwArgs) number(key string, pos int) (float64, bool, error) {
	v, ok := a.kw[key]
	if !ok && pos >= 0 && pos < len(a.positional) {
		v, ok = a.positional[pos], true
	}
	if !ok {
		return 0, false, nil
	}
	f, err := toFloat64(v)
	return f, true, err
}

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

func toSolid(s zygo.Sexp) (*sexpSolid, error) {
	if v, ok := s.(*sexpSolid); ok {
		return v, nil
	}
	return nil, fmt.Errorf("expected solid, got %T (%s)", s, s.SexpString(nil))
}

func toVec3(s zygo.Sexp) (vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// vecOrNumbers accepts either a single vec3 or three numbers.
func vecOrNumbers(args []zygo.Sexp) (vec3, error) {
	switch len(args) {
	case 1:
		return toVec3(args[0])
	case 3:
		var xyz [3]float64
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return vec3{}, fmt.Errorf("component %d: %w", i, err)
			}
			xyz[i] = f
		}
		return vec3{xyz[0], xyz[1], xyz[2]}, nil
	}
	return vec3{}, fmt.Errorf("expected a vec3 or three numbers, got %d arguments", len(args))
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the modeling and job builtins. Solids are built
// with k; decimate appends to prog.
//
// Source code must go through preprocessSource first so that :keyword
// tokens reach the builtins as recognizable strings.
func registerBuiltins(env *zygo.Zlisp, k kernel.Kernel, prog *Program) {

	// (vec3 1 2 3)
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}
		v, err := vecOrNumbers(args)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: %w", err)
		}
		return &sexpVec3{vec: v}, nil
	})

	// (box 10 20 30) or (box (vec3 10 20 30)); min corner at the origin.
	env.AddFunction("box", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		size, err := vecOrNumbers(args)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box: %w", err)
		}
		if size.X <= 0 || size.Y <= 0 || size.Z <= 0 {
			return zygo.SexpNull, fmt.Errorf("box: dimensions must be positive, got %g %g %g", size.X, size.Y, size.Z)
		}
		return &sexpSolid{
			solid: k.Box(size.X, size.Y, size.Z),
			desc:  fmt.Sprintf("(box %g %g %g)", size.X, size.Y, size.Z),
		}, nil
	})

	// (cylinder :height 50 :radius 10) or (cylinder 50 10)
	env.AddFunction("cylinder", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		h, okH, err := pa.number("height", 0)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: height: %w", err)
		}
		r, okR, err := pa.number("radius", 1)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: radius: %w", err)
		}
		if !okH || !okR {
			return zygo.SexpNull, fmt.Errorf("cylinder requires height and radius")
		}
		if h <= 0 || r <= 0 {
			return zygo.SexpNull, fmt.Errorf("cylinder: height and radius must be positive, got %g %g", h, r)
		}
		segments, _, err := pa.number("segments", -1)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder: segments: %w", err)
		}
		return &sexpSolid{
			solid: k.Cylinder(h, r, int(segments)),
			desc:  fmt.Sprintf("(cylinder %g %g)", h, r),
		}, nil
	})

	// (sphere 5) or (sphere :radius 5)
	env.AddFunction("sphere", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		r, ok, err := parseArgs(args).number("radius", 0)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere: radius: %w", err)
		}
		if !ok {
			return zygo.SexpNull, fmt.Errorf("sphere requires a radius")
		}
		if r <= 0 {
			return zygo.SexpNull, fmt.Errorf("sphere: radius must be positive, got %g", r)
		}
		return &sexpSolid{solid: k.Sphere(r), desc: fmt.Sprintf("(sphere %g)", r)}, nil
	})

	// (union a b ...), (difference a b ...), (intersection a b ...) fold
	// left over two or more solids.
	booleans := map[string]func(a, b kernel.Solid) kernel.Solid{
		"union":        k.Union,
		"difference":   k.Difference,
		"intersection": k.Intersection,
	}
	for op, fn := range booleans {
		env.AddFunction(op, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) < 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires at least two solids, got %d", op, len(args))
			}
			acc, err := toSolid(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: argument 0: %w", op, err)
			}
			solid, parts := acc.solid, []string{acc.desc}
			for i, a := range args[1:] {
				next, err := toSolid(a)
				if err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: argument %d: %w", op, i+1, err)
				}
				solid = fn(solid, next.solid)
				parts = append(parts, next.desc)
			}
			return &sexpSolid{solid: solid, desc: "(" + op + " " + strings.Join(parts, " ") + ")"}, nil
		})
	}

	// (translate s (vec3 1 2 3)) or (translate s 1 2 3)
	// (rotate s (vec3 0 0 90)); Euler angles in degrees.
	transforms := map[string]func(s kernel.Solid, x, y, z float64) kernel.Solid{
		"translate": k.Translate,
		"rotate":    k.Rotate,
	}
	for op, fn := range transforms {
		env.AddFunction(op, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) < 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires a solid and an offset", op)
			}
			s, err := toSolid(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", op, err)
			}
			v, err := vecOrNumbers(args[1:])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", op, err)
			}
			return &sexpSolid{
				solid: fn(s.solid, v.X, v.Y, v.Z),
				desc:  fmt.Sprintf("(%s %s %g %g %g)", op, s.desc, v.X, v.Y, v.Z),
			}, nil
		})
	}

	// (decimate solid :name "part" :ratio 0.25 :faces 500 :max-cost 0.01)
	env.AddFunction("decimate", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("decimate requires exactly one solid, got %d", len(pa.positional))
		}
		s, err := toSolid(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("decimate: %w", err)
		}

		job := Job{Name: fmt.Sprintf("part-%d", len(prog.Jobs)+1), Solid: s.solid}
		if v, ok := pa.kw["name"]; ok {
			if job.Name, err = toString(v); err != nil {
				return zygo.SexpNull, fmt.Errorf("decimate: name: %w", err)
			}
		}
		if prog.Lookup(job.Name) != nil {
			return zygo.SexpNull, fmt.Errorf("decimate: duplicate job name %q", job.Name)
		}

		ratio, _, err := pa.number("ratio", -1)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("decimate: ratio: %w", err)
		}
		if ratio < 0 || ratio > 1 {
			return zygo.SexpNull, fmt.Errorf("decimate: ratio %g outside [0, 1]", ratio)
		}
		faces, _, err := pa.number("faces", -1)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("decimate: faces: %w", err)
		}
		if faces < 0 {
			return zygo.SexpNull, fmt.Errorf("decimate: faces %g is negative", faces)
		}
		maxCost, _, err := pa.number("max-cost", -1)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("decimate: max-cost: %w", err)
		}
		if maxCost < 0 {
			return zygo.SexpNull, fmt.Errorf("decimate: max-cost %g is negative", maxCost)
		}
		job.TargetRatio, job.TargetFaces, job.MaxCost = ratio, int(faces), maxCost

		prog.Jobs = append(prog.Jobs, job)
		return s, nil
	})
}
