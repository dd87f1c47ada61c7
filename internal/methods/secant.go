package methods

import (
	"math"

	"github.com/rendis/rootfinder/pkg/schema"
)

// Secant runs the secant method from the guesses x0 and x1. It stops hard
// when |f(x1)-f(x0)| < SecantEpsilon.
func Secant(f Evaluator, x0, x1, tol float64, maxIter int) schema.MethodResult {
	r := newRun(schema.MethodSecant)

	if !finite(x0, x1) {
		return r.precondition("initial guesses must be finite, got %g and %g", x0, x1)
	}
	if x0 == x1 {
		return r.precondition("initial guesses are identical")
	}
	if !r.checkBudget(tol, maxIter) {
		return r.stopped(schema.Undefined(), schema.Undefined())
	}

	fx0, err := f.Eval(x0)
	if err != nil {
		return r.precondition("cannot evaluate f(x0): %v", err)
	}
	fx1, err := f.Eval(x1)
	if err != nil {
		return r.precondition("cannot evaluate f(x1): %v", err)
	}

	for i := 1; i <= maxIter; i++ {
		denom := fx1 - fx0
		if math.Abs(denom) < SecantEpsilon {
			r.fail(schema.FailureDegeneracy, "function values too close")
			return r.stopped(schema.Defined(x1), schema.Defined(math.Abs(fx1)))
		}

		x2 := x1 - fx1*(x1-x0)/denom
		if !finite(x2) {
			r.fail(schema.FailureDegeneracy, "secant step from x1=%g diverged", x1)
			return r.stopped(schema.Defined(x1), schema.Defined(math.Abs(fx1)))
		}
		fx2, err := f.Eval(x2)
		if err != nil {
			r.fail(schema.FailureEvaluation, "cannot evaluate f(x2) at iteration %d: %v", i, err)
			return r.stopped(schema.Defined(x1), schema.Defined(math.Abs(fx1)))
		}

		errEstimate := math.Abs(x2 - x1)
		r.record(schema.SecantStep{
			Iteration:   i,
			X0:          x0,
			X1:          x1,
			FX0:         fx0,
			FX1:         fx1,
			X2:          x2,
			FX2:         fx2,
			Error:       errEstimate,
			SecantSlope: denom / (x1 - x0),
		})

		if errEstimate < tol || math.Abs(fx2) < tol {
			return r.converged(x2, errEstimate)
		}

		x0, fx0 = x1, fx1
		x1, fx1 = x2, fx2
	}

	return r.stopped(schema.Defined(x1), schema.Defined(math.Abs(fx1)))
}
