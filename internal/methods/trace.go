package methods

import (
	"fmt"
	"math"
	"time"

	"github.com/rendis/rootfinder/pkg/schema"
)

// run accumulates the trace of one algorithm execution and builds the final
// result. Entries are only appended.
type run struct {
	method  schema.Method
	start   time.Time
	entries []schema.TraceEntry
	steps   int
	failed  bool
}

func newRun(m schema.Method) *run {
	return &run{method: m, start: time.Now()}
}

// record appends a numeric step. Indices must be 1, 2, 3, ...
func (r *run) record(s schema.NumericStep) {
	if r.failed {
		panic("methods: step recorded after failure note")
	}
	if s.Index() != r.steps+1 {
		panic(fmt.Sprintf("methods: step index %d, want %d", s.Index(), r.steps+1))
	}
	r.entries = append(r.entries, s)
	r.steps++
}

// fail appends the terminating FailureNote.
func (r *run) fail(kind schema.FailureKind, format string, args ...any) {
	if r.failed {
		panic("methods: second failure note")
	}
	r.entries = append(r.entries, schema.FailureNote{Failure: kind, Reason: fmt.Sprintf(format, args...)})
	r.failed = true
}

func (r *run) result(root, errEstimate schema.Real, converged bool) schema.MethodResult {
	return schema.MethodResult{
		Method:        r.method,
		MethodName:    r.method.DisplayName(),
		Root:          root,
		Iterations:    r.steps,
		Error:         errEstimate,
		Converged:     converged,
		ExecutionTime: time.Since(r.start),
		History:       r.entries,
	}
}

func (r *run) converged(root, errEstimate float64) schema.MethodResult {
	return r.result(schema.Defined(root), schema.Defined(errEstimate), true)
}

func (r *run) stopped(root, errEstimate schema.Real) schema.MethodResult {
	return r.result(root, errEstimate, false)
}

// checkBudget validates the arguments shared by every method.
func (r *run) checkBudget(tol float64, maxIter int) bool {
	switch {
	case math.IsNaN(tol) || tol <= 0:
		r.fail(schema.FailurePrecondition, "tolerance must be positive, got %g", tol)
	case maxIter <= 0:
		r.fail(schema.FailurePrecondition, "max_iterations must be positive, got %d", maxIter)
	default:
		return true
	}
	return false
}

func (r *run) precondition(format string, args ...any) schema.MethodResult {
	r.fail(schema.FailurePrecondition, format, args...)
	return r.stopped(schema.Undefined(), schema.Undefined())
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Rejected builds the result of a run refused before its first iteration.
func Rejected(m schema.Method, format string, args ...any) schema.MethodResult {
	return newRun(m).precondition(format, args...)
}
