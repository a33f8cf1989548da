// Package engine evaluates decimation job scripts. Scripts are zygomys Lisp
// run in a sandbox; builtins build solids through a kernel.Kernel and
// register them as decimation jobs.
//
//	(def body (difference (box 40 40 40) (translate (sphere 24) (vec3 20 20 20))))
//	(decimate body :name "carved" :ratio 0.1)
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/chazu/qslim/pkg/decimate"
	"github.com/chazu/qslim/pkg/kernel"
	zygo "github.com/glycerine/zygomys/zygo"
)

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Job is one solid to mesh and decimate. Zero-valued targets defer to the
// caller's defaults.
type Job struct {
	Name        string
	Solid       kernel.Solid
	TargetRatio float64
	TargetFaces int
	MaxCost     float64
}

// Options overlays the job's targets on base.
func (j Job) Options(base decimate.Options) decimate.Options {
	opts := base
	if j.TargetFaces > 0 {
		opts.TargetFaces = j.TargetFaces
	}
	if j.TargetRatio > 0 {
		opts.TargetRatio = j.TargetRatio
		if j.TargetFaces == 0 {
			opts.TargetFaces = 0
		}
	}
	if j.MaxCost > 0 {
		opts.MaxCost = j.MaxCost
	}
	return opts
}

// Program is the result of evaluating a script: the jobs in the order they
// were declared.
type Program struct {
	Jobs []Job
}

// Lookup returns the job with the given name, or nil.
func (p *Program) Lookup(name string) *Job {
	for i := range p.Jobs {
		if p.Jobs[i].Name == name {
			return &p.Jobs[i]
		}
	}
	return nil
}

// Engine wraps the zygomys interpreter. It is safe for concurrent use; each
// call to Evaluate creates a fresh sandboxed environment.
type Engine struct {
	kernel kernel.Kernel

	mu         sync.Mutex
	generation uint64
}

// NewEngine creates an engine building solids with k.
func NewEngine(k kernel.Kernel) *Engine {
	return &Engine{kernel: k}
}

// Evaluate runs source and returns the jobs it declared.
//
// Return semantics:
//   - On success: returns program + nil errors + nil error
//   - On parse/eval failure: returns nil program + eval errors + nil error
//   - On fatal failure (timeout, panic): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*Program, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		p, evalErrs, err := e.evaluate(source)
		ch <- evalResult{program: p, errors: evalErrs, err: err}
	}()

	return waitWithTimeout(ch, gen, &e.mu, &e.generation)
}

func (e *Engine) evaluate(source string) (*Program, []EvalError, error) {
	prog := &Program{}
	if strings.TrimSpace(source) == "" {
		return prog, nil, nil
	}

	// Sandbox mode keeps scripts away from the filesystem and syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, e.kernel, prog)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err), nil
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err), nil
	}
	return prog, nil, nil
}

// zygomys reports positions as "Error on line N: ..." or "line N: ...".
var linePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`),
	regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`),
}

// parseZygomysError converts a zygomys error into EvalError values, keeping
// the line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range linePatterns {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
