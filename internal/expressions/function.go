package expressions

import (
	"fmt"
	"math"

	"github.com/rendis/rootfinder/pkg/schema"
)

// EvaluationError reports that a function could not be evaluated at X.
type EvaluationError struct {
	X          float64
	Expression string
	Reason     string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("cannot evaluate %s at x=%g: %s", e.Expression, e.X, e.Reason)
}

// Unwrap exposes the structured form so schema.IsCode(err, ErrCodeEvaluation)
// matches.
func (e *EvaluationError) Unwrap() error {
	return schema.NewErrorf(schema.ErrCodeEvaluation, "%s", e.Error()).
		WithDetails(map[string]any{"x": e.X, "expression": e.Expression})
}

// Function is a compiled real function of x. It holds no mutable state and
// is safe for concurrent use.
type Function struct {
	expr   string
	scalar scalarFunc
	vector vectorFunc
}

func newFunction(n node) *Function {
	return &Function{
		expr:   format(n),
		scalar: compileScalar(n),
		vector: compileVector(n),
	}
}

// Eval evaluates the function at x. Domain violations, division by zero,
// overflow and NaN results are returned as *EvaluationError.
func (f *Function) Eval(x float64) (float64, error) {
	v, err := f.scalar(x)
	if err != nil {
		reason := err.Error()
		if pe, ok := asPointError(err); ok {
			reason = pe.reason
		}
		return math.NaN(), &EvaluationError{X: x, Expression: f.expr, Reason: reason}
	}
	return v, nil
}

// EvalMany evaluates the function over xs. Points that cannot be evaluated
// are NaN in the output.
func (f *Function) EvalMany(xs []float64) []float64 {
	if out, err := f.vector(xs); err == nil {
		return out
	}
	out := make([]float64, len(xs))
	for i, x := range xs {
		v, err := f.Eval(x)
		if err != nil {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}

// Expression returns the canonical printed form of the function.
func (f *Function) Expression() string { return f.expr }

func (f *Function) String() string { return f.expr }

// Compiled is the result of compiling an expression: the function and, when
// requested, its derivative.
type Compiled struct {
	Source string
	F      *Function
	DF     *Function
}

// Compile parses text into a Function. When withDerivative is set the
// symbolic derivative is built and compiled as well. Every call parses
// independently; nothing is cached.
func Compile(text string, withDerivative bool) (*Compiled, error) {
	tree, err := parse(text)
	if err != nil {
		return nil, err
	}
	c := &Compiled{Source: text, F: newFunction(tree)}
	if withDerivative {
		d, err := derive(tree)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeInvalidExpression,
				"cannot differentiate %q: %s", text, err.Error()).
				WithCause(err).
				WithDetails(map[string]any{"expression": text})
		}
		c.DF = newFunction(d)
	}
	return c, nil
}
