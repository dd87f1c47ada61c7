package methods

import (
	"math"

	"github.com/rendis/rootfinder/pkg/schema"
)

// Newton runs Newton-Raphson from x0 using the derivative df. It stops hard
// when |f'(x)| < DerivativeEpsilon.
func Newton(f, df Evaluator, x0, tol float64, maxIter int) schema.MethodResult {
	r := newRun(schema.MethodNewton)

	if !finite(x0) {
		return r.precondition("initial guess must be finite, got %g", x0)
	}
	if !r.checkBudget(tol, maxIter) {
		return r.stopped(schema.Undefined(), schema.Undefined())
	}

	x := x0
	for i := 1; i <= maxIter; i++ {
		fx, err := f.Eval(x)
		if err != nil {
			r.fail(schema.FailureEvaluation, "cannot evaluate f(x) at iteration %d: %v", i, err)
			return r.stopped(schema.Defined(x), schema.Undefined())
		}
		dfx, err := df.Eval(x)
		if err != nil {
			r.fail(schema.FailureEvaluation, "cannot evaluate f'(x) at iteration %d: %v", i, err)
			return r.stopped(schema.Defined(x), schema.Defined(math.Abs(fx)))
		}

		if math.Abs(dfx) < DerivativeEpsilon {
			r.fail(schema.FailureDegeneracy, "derivative too close to zero")
			return r.stopped(schema.Defined(x), schema.Defined(math.Abs(fx)))
		}

		step := fx / dfx
		xNew := x - step
		if !finite(xNew) {
			r.fail(schema.FailureDegeneracy, "step from x=%g diverged", x)
			return r.stopped(schema.Defined(x), schema.Defined(math.Abs(fx)))
		}

		errEstimate := math.Abs(xNew - x)
		r.record(schema.NewtonStep{
			Iteration: i,
			X:         x,
			FX:        fx,
			DFX:       dfx,
			XNew:      xNew,
			Error:     errEstimate,
			StepSize:  math.Abs(step),
		})

		if errEstimate < tol || math.Abs(fx) < tol {
			return r.converged(xNew, errEstimate)
		}
		x = xNew
	}

	residual := schema.Undefined()
	if fx, err := f.Eval(x); err == nil {
		residual = schema.Defined(math.Abs(fx))
	}
	return r.stopped(schema.Defined(x), residual)
}
