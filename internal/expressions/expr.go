package expressions

import (
	"context"
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rendis/rootfinder/pkg/schema"
)

// ExprEngine implements the Engine interface using expr-lang/expr. It is an
// evaluator independent of the compiler in this package and is used to
// re-check reported roots. The math functions accepted by Compile are
// available, plus the constants pi and e.
type ExprEngine struct{}

// NewExprEngine creates a new Expr expression engine.
func NewExprEngine() *ExprEngine {
	return &ExprEngine{}
}

// Name returns the engine identifier.
func (e *ExprEngine) Name() string {
	return "expr"
}

// Evaluate compiles and runs an expression with data as its environment, on
// top of the math environment.
func (e *ExprEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty expr expression")
	}

	env := mathEnv()
	for k, v := range data {
		env[k] = v
	}

	prg, err := expr.Compile(expression, expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, compileError(expression, err)
	}

	out, err := vm.Run(prg, env)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"expr evaluation failed for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}
	return out, nil
}

// ExprFunction is an expression compiled by expr-lang as a function of x.
type ExprFunction struct {
	expression string
	program    *vm.Program
}

// CompileFunction compiles text as a float-valued function of x. The program
// lives only as long as the returned value.
func (e *ExprEngine) CompileFunction(expression string) (*ExprFunction, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty expr expression")
	}
	env := mathEnv()
	env["x"] = 0.0
	prg, err := expr.Compile(expression, expr.Env(env), expr.AsFloat64())
	if err != nil {
		return nil, compileError(expression, err)
	}
	return &ExprFunction{expression: expression, program: prg}, nil
}

// At evaluates the function at x.
func (f *ExprFunction) At(x float64) (float64, error) {
	env := mathEnv()
	env["x"] = x
	out, err := vm.Run(f.program, env)
	if err != nil {
		return math.NaN(), schema.NewErrorf(schema.ErrCodeEvaluation,
			"expr evaluation of %q at x=%g failed: %s", f.expression, x, err.Error()).
			WithCause(err)
	}
	v, ok := out.(float64)
	if !ok {
		return math.NaN(), schema.NewErrorf(schema.ErrCodeEvaluation,
			"expr evaluation of %q returned %T", f.expression, out)
	}
	return v, nil
}

func compileError(expression string, err error) error {
	return schema.NewErrorf(schema.ErrCodeValidation,
		"expr compile error in %q: %s", expression, err.Error()).
		WithCause(err).
		WithDetails(map[string]any{"expression": expression})
}

// mathEnv returns a fresh environment with the math functions. abs is an
// expr builtin and is not redefined.
func mathEnv() map[string]any {
	return map[string]any{
		"pi":    math.Pi,
		"e":     math.E,
		"sin":   math.Sin,
		"cos":   math.Cos,
		"tan":   math.Tan,
		"asin":  math.Asin,
		"acos":  math.Acos,
		"atan":  math.Atan,
		"sinh":  math.Sinh,
		"cosh":  math.Cosh,
		"tanh":  math.Tanh,
		"exp":   math.Exp,
		"log":   math.Log,
		"ln":    math.Log,
		"log10": math.Log10,
		"log2":  math.Log2,
		"sqrt":  math.Sqrt,
	}
}

func (f *ExprFunction) String() string { return fmt.Sprintf("expr(%s)", f.expression) }

var _ Engine = (*ExprEngine)(nil)
