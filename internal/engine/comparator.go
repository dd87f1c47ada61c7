package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rendis/rootfinder/internal/expressions"
	"github.com/rendis/rootfinder/internal/logging"
	"github.com/rendis/rootfinder/internal/methods"
	"github.com/rendis/rootfinder/pkg/schema"
)

// Call-site thresholds applied by Solve before an algorithm starts.
const (
	precheckDerivative = 1e-14
	precheckSpacing    = 1e-14
)

// Comparator compiles a problem once and runs the selected methods on a
// shared worker pool.
type Comparator struct {
	pool     *WorkerPool
	verifier *Verifier
	logger   *slog.Logger
}

// ComparatorOption configures a Comparator.
type ComparatorOption func(*Comparator)

// WithLogger sets the logger. The default drops everything.
func WithLogger(l *slog.Logger) ComparatorOption {
	return func(c *Comparator) { c.logger = l }
}

// WithVerifier enables re-evaluation of converged roots.
func WithVerifier(v *Verifier) ComparatorOption {
	return func(c *Comparator) { c.verifier = v }
}

// NewComparator creates a comparator on pool. A nil pool gets one slot per
// method.
func NewComparator(pool *WorkerPool, opts ...ComparatorOption) *Comparator {
	if pool == nil {
		pool = NewWorkerPool(len(schema.Methods))
	}
	c := &Comparator{pool: pool, logger: logging.Discard()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompareAll runs every method selected in req.Params on the same compiled
// function. An invalid request or expression aborts before any method runs;
// failures of individual methods stay inside their MethodResult.
func (c *Comparator) CompareAll(ctx context.Context, req schema.ComparisonRequest) (*schema.ComparisonResult, error) {
	req.ApplyDefaults()
	if err := validateBudget(req.Tolerance, req.MaxIterations); err != nil {
		return nil, err
	}
	selected := req.Params.Selected()
	if len(selected) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "no methods selected: params must include bisection, newton or secant")
	}

	ctx = logging.EnsureRequestID(ctx)
	compiled, err := expressions.Compile(req.Expression, req.Params.Newton != nil)
	if err != nil {
		c.logger.WarnContext(ctx, "rejecting expression", "function", req.Expression, "error", err)
		return nil, err
	}

	results, err := c.runAll(ctx, compiled, selected, req.Params, req.Tolerance, req.MaxIterations)
	if err != nil {
		return nil, err
	}

	out := &schema.ComparisonResult{
		ID:            uuid.NewString(),
		Expression:    req.Expression,
		Tolerance:     req.Tolerance,
		MaxIterations: req.MaxIterations,
		Params:        req.Params,
		Results:       results,
		Summary:       Summarize(results),
	}
	if c.verifier != nil {
		out.Verification = c.verifier.Verify(req.Expression, req.Tolerance, results)
	}

	c.logger.InfoContext(ctx, "comparison finished",
		"function", req.Expression,
		"methods", len(results),
		"converged", out.Summary.ConvergedCount,
		"fastest", out.Summary.Fastest,
	)
	return out, nil
}

// Solve runs a single method after the call-site prechecks. A failed
// precheck is reported as a non-converged result, not as an error.
func (c *Comparator) Solve(ctx context.Context, req schema.SolveRequest) (*schema.MethodResult, error) {
	req.ApplyDefaults()
	if !req.Method.Valid() {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown method %q", req.Method)
	}
	if err := validateBudget(req.Tolerance, req.MaxIterations); err != nil {
		return nil, err.WithMethod(req.Method)
	}
	if req.Params.For(req.Method) == nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "missing %s parameters", req.Method).WithMethod(req.Method)
	}

	ctx = logging.WithMethod(logging.EnsureRequestID(ctx), string(req.Method))
	compiled, err := expressions.Compile(req.Expression, req.Method == schema.MethodNewton)
	if err != nil {
		return nil, err
	}

	if rejected, ok := precheck(compiled, req.Method, req.Params); !ok {
		c.logger.InfoContext(ctx, "precheck failed", "reason", rejected.FailureReason())
		return &rejected, nil
	}

	results, err := c.runAll(ctx, compiled, []schema.Method{req.Method}, req.Params, req.Tolerance, req.MaxIterations)
	if err != nil {
		return nil, err
	}
	r := results[req.Method]
	return &r, nil
}

// runAll fans the methods out on the pool and joins them by method key.
func (c *Comparator) runAll(ctx context.Context, compiled *expressions.Compiled, selected []schema.Method,
	params schema.MethodParams, tol float64, maxIter int) (map[schema.Method]schema.MethodResult, error) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[schema.Method]schema.MethodResult, len(selected))
		panics  = make(map[schema.Method]any)
	)

	for _, m := range selected {
		mctx := logging.WithMethod(ctx, string(m))
		wg.Add(1)
		// wg.Done runs at the end of the job, or in the panic hook.
		err := c.pool.Go(ctx, func() {
			start := time.Now()
			r := runMethod(compiled, m, params, tol, maxIter)
			c.logger.DebugContext(mctx, "method finished",
				"converged", r.Converged,
				"iterations", r.Iterations,
				"root", r.Root.String(),
				"elapsed", time.Since(start),
			)
			mu.Lock()
			results[m] = r
			mu.Unlock()
			wg.Done()
		}, func(v any) {
			mu.Lock()
			panics[m] = v
			mu.Unlock()
			wg.Done()
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, schema.NewErrorf(schema.ErrCodeExecution, "schedule %s: %v", m, err).WithMethod(m).WithCause(err)
		}
	}
	wg.Wait()

	for m, v := range panics {
		c.logger.ErrorContext(ctx, "method panicked", "method", m, "panic", v)
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "%s panicked: %v", m, v).WithMethod(m)
	}
	return results, nil
}

func runMethod(compiled *expressions.Compiled, m schema.Method, p schema.MethodParams, tol float64, maxIter int) schema.MethodResult {
	switch m {
	case schema.MethodBisection:
		return methods.Bisection(compiled.F, p.Bisection.A, p.Bisection.B, tol, maxIter)
	case schema.MethodNewton:
		return methods.Newton(compiled.F, compiled.DF, p.Newton.X0, tol, maxIter)
	case schema.MethodSecant:
		return methods.Secant(compiled.F, p.Secant.X0, p.Secant.X1, tol, maxIter)
	}
	panic(fmt.Sprintf("engine: unknown method %q", m))
}

// precheck applies the request-level checks of a single-method solve.
// Evaluation failures are left to the algorithm, which reports them itself.
func precheck(c *expressions.Compiled, m schema.Method, p schema.MethodParams) (schema.MethodResult, bool) {
	switch m {
	case schema.MethodBisection:
		a, b := p.Bisection.A, p.Bisection.B
		if a >= b {
			return methods.Rejected(m, "invalid interval: a (%g) must be less than b (%g)", a, b), false
		}
		fa, errA := c.F.Eval(a)
		fb, errB := c.F.Eval(b)
		if errA == nil && errB == nil && fa*fb > 0 {
			return methods.Rejected(m, "function has the same sign at both endpoints: f(%g)=%g, f(%g)=%g", a, fa, b, fb), false
		}
	case schema.MethodNewton:
		x0 := p.Newton.X0
		if dfx, err := c.DF.Eval(x0); err == nil && math.Abs(dfx) < precheckDerivative {
			return methods.Rejected(m, "derivative is zero at initial guess x0=%g", x0), false
		}
	case schema.MethodSecant:
		x0, x1 := p.Secant.X0, p.Secant.X1
		if math.Abs(x1-x0) < precheckSpacing {
			return methods.Rejected(m, "initial guesses are too close: x0=%g, x1=%g", x0, x1), false
		}
		f0, err0 := c.F.Eval(x0)
		f1, err1 := c.F.Eval(x1)
		if err0 == nil && err1 == nil && math.Abs(f1-f0) < precheckSpacing {
			return methods.Rejected(m, "function values at the initial guesses are too close: f(x0)=%g, f(x1)=%g", f0, f1), false
		}
	}
	return schema.MethodResult{}, true
}

func validateBudget(tol float64, maxIter int) *schema.SolverError {
	if math.IsNaN(tol) || math.IsInf(tol, 0) || tol <= 0 {
		return schema.NewErrorf(schema.ErrCodeValidation, "tolerance must be a positive number, got %g", tol)
	}
	if maxIter <= 0 {
		return schema.NewErrorf(schema.ErrCodeValidation, "max_iterations must be positive, got %d", maxIter)
	}
	return nil
}
