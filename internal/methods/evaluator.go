// Package methods implements the bisection, Newton-Raphson and secant root
// finders. Every run returns a schema.MethodResult; only programming errors
// panic.
package methods

import (
	"fmt"
	"math"
)

// Evaluator is a real function of one variable that may fail at a point.
// *expressions.Function satisfies it.
type Evaluator interface {
	Eval(x float64) (float64, error)
}

// Func adapts a plain Go function. Non-finite values are reported as
// evaluation failures.
type Func func(x float64) float64

// Eval implements Evaluator.
func (f Func) Eval(x float64) (float64, error) {
	v := f(x)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v, fmt.Errorf("non-finite value %g at x=%g", v, x)
	}
	return v, nil
}

// Degeneracy thresholds.
const (
	// DerivativeEpsilon is the smallest |f'(x)| Newton will divide by.
	DerivativeEpsilon = 1e-12
	// SecantEpsilon is the smallest |f(x1)-f(x0)| the secant step will divide by.
	SecantEpsilon = 1e-12
)
