package engine

import (
	"fmt"
	"math"

	"github.com/rendis/rootfinder/internal/expressions"
	"github.com/rendis/rootfinder/pkg/schema"
)

// minVerifyTolerance floors the tolerance used to judge a residual.
const minVerifyTolerance = 1e-9

// Verifier re-evaluates f at every converged root with an evaluator that
// shares no code with the one the algorithms used.
type Verifier struct {
	engine *expressions.ExprEngine
}

// NewVerifier creates a verifier backed by expr-lang.
func NewVerifier() *Verifier {
	return &Verifier{engine: expressions.NewExprEngine()}
}

// Verify checks each converged result: verified iff |f(root)| <= max(tol, 1e-9)*10.
// Non-converged results are skipped.
func (v *Verifier) Verify(expression string, tol float64, results map[schema.Method]schema.MethodResult) map[schema.Method]schema.Verification {
	out := make(map[schema.Method]schema.Verification)

	fn, compileErr := v.engine.CompileFunction(expression)
	limit := math.Max(tol, minVerifyTolerance) * 10

	for m, r := range results {
		root, ok := r.Root.Value()
		if !r.Converged || !ok {
			continue
		}
		if compileErr != nil {
			out[m] = schema.Verification{
				Residual: schema.Undefined(),
				Note:     fmt.Sprintf("verification skipped: %v", compileErr),
			}
			continue
		}
		fx, err := fn.At(root)
		if err != nil {
			out[m] = schema.Verification{
				Residual: schema.Undefined(),
				Note:     fmt.Sprintf("cannot evaluate f(%g): %v", root, err),
			}
			continue
		}
		residual := schema.Defined(math.Abs(fx))
		verified := residual.IsDefined() && math.Abs(fx) <= limit
		vr := schema.Verification{Residual: residual, Verified: verified}
		if !verified {
			vr.Note = fmt.Sprintf("|f(root)| exceeds %g", limit)
		}
		out[m] = vr
	}
	return out
}
