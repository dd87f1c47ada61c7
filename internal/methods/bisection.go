package methods

import (
	"math"

	"github.com/rendis/rootfinder/pkg/schema"
)

// Bisection halves the bracket [a, b] until |f(c)| < tol or the half-width
// drops below tol.
func Bisection(f Evaluator, a, b, tol float64, maxIter int) schema.MethodResult {
	r := newRun(schema.MethodBisection)

	if !finite(a, b) || a >= b {
		return r.precondition("invalid interval [%g, %g]: a must be less than b", a, b)
	}
	if !r.checkBudget(tol, maxIter) {
		return r.stopped(schema.Undefined(), schema.Undefined())
	}

	fa, err := f.Eval(a)
	if err != nil {
		return r.precondition("cannot evaluate f(a): %v", err)
	}
	fb, err := f.Eval(b)
	if err != nil {
		return r.precondition("cannot evaluate f(b): %v", err)
	}

	if fa*fb > 0 {
		return r.precondition("root not bracketed in initial interval")
	}
	if math.Abs(fa) < tol {
		return r.converged(a, math.Abs(fa))
	}
	if math.Abs(fb) < tol {
		return r.converged(b, math.Abs(fb))
	}

	for i := 1; i <= maxIter; i++ {
		c := (a + b) / 2
		fc, err := f.Eval(c)
		if err != nil {
			r.fail(schema.FailureEvaluation, "cannot evaluate f(c) at iteration %d: %v", i, err)
			return r.stopped(schema.Defined(c), schema.Defined(math.Abs(b-a)/2))
		}

		errEstimate := math.Abs(b-a) / 2
		r.record(schema.BisectionStep{
			Iteration:     i,
			A:             a,
			B:             b,
			C:             c,
			FC:            fc,
			Error:         errEstimate,
			IntervalWidth: b - a,
		})

		if math.Abs(fc) < tol || errEstimate < tol {
			return r.converged(c, errEstimate)
		}

		if fa*fc < 0 {
			b = c
		} else {
			a, fa = c, fc
		}
	}

	return r.stopped(schema.Defined((a+b)/2), schema.Defined(math.Abs(b-a)/2))
}
