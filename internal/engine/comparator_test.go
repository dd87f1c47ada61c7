package engine

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/rendis/rootfinder/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allParams(a, b, x0, s0, s1 float64) schema.MethodParams {
	return schema.MethodParams{
		Bisection: &schema.BisectionParams{A: a, B: b},
		Newton:    &schema.NewtonParams{X0: x0},
		Secant:    &schema.SecantParams{X0: s0, X1: s1},
	}
}

func newTestComparator(t *testing.T, opts ...ComparatorOption) *Comparator {
	t.Helper()
	pool := NewWorkerPool(3)
	t.Cleanup(pool.Shutdown)
	return NewComparator(pool, opts...)
}

func TestCompareAll_CosMinusX(t *testing.T) {
	c := newTestComparator(t, WithVerifier(NewVerifier()))

	res, err := c.CompareAll(context.Background(), schema.ComparisonRequest{
		Expression: "cos(x) - x",
		Params:     allParams(0, 1, 0.5, 0, 1),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, schema.DefaultTolerance, res.Tolerance)
	assert.Equal(t, schema.DefaultMaxIterations, res.MaxIterations)
	require.Len(t, res.Results, 3)

	for _, m := range schema.Methods {
		r, ok := res.Result(m)
		require.True(t, ok, m)
		assert.True(t, r.Converged, m)
		assert.InDelta(t, 0.739085, r.Root.Float64(), 1e-5, m)

		v, ok := res.Verification[m]
		require.True(t, ok, m)
		assert.True(t, v.Verified, m)
	}

	b, n, s := res.Results[schema.MethodBisection], res.Results[schema.MethodNewton], res.Results[schema.MethodSecant]
	assert.LessOrEqual(t, n.Iterations, s.Iterations)
	assert.LessOrEqual(t, s.Iterations, b.Iterations)

	sum := res.Summary
	assert.Equal(t, 3, sum.ConvergedCount)
	assert.True(t, sum.AllConverged)
	assert.Equal(t, schema.MethodNewton, sum.Fastest)
	assert.Equal(t, schema.MethodNewton, sum.MostAccurate)
	assert.True(t, sum.RootSpread.IsDefined())
	assert.Less(t, sum.RootSpread.Float64(), 1e-6)
}

func TestCompareAll_Cubic(t *testing.T) {
	c := newTestComparator(t)

	res, err := c.CompareAll(context.Background(), schema.ComparisonRequest{
		Expression:    "x^3 - 6*x^2 + 11*x - 6",
		Tolerance:     1e-6,
		MaxIterations: 100,
		Params:        allParams(0.5, 1.5, 0.5, 0.5, 1.5),
	})
	require.NoError(t, err)

	bis := res.Results[schema.MethodBisection]
	assert.True(t, bis.Converged)
	assert.Less(t, bis.Iterations, 25)
	assert.InDelta(t, 1.0, bis.Root.Float64(), 1e-6)

	newton := res.Results[schema.MethodNewton]
	assert.True(t, newton.Converged)
	assert.Less(t, newton.Iterations, 10)
	assert.InDelta(t, 1.0, newton.Root.Float64(), 1e-6)

	sec := res.Results[schema.MethodSecant]
	assert.True(t, sec.Converged)
	assert.InDelta(t, 1.0, sec.Root.Float64(), 1e-5)

	assert.Nil(t, res.Verification)
}

func TestCompareAll_SubsetAndFailuresStayLocal(t *testing.T) {
	c := newTestComparator(t)

	res, err := c.CompareAll(context.Background(), schema.ComparisonRequest{
		Expression: "x^2 - 1",
		Params: schema.MethodParams{
			Bisection: &schema.BisectionParams{A: 2, B: 3},
			Newton:    &schema.NewtonParams{X0: 0},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	_, ran := res.Result(schema.MethodSecant)
	assert.False(t, ran)

	assert.Equal(t, "root not bracketed in initial interval", res.Results[schema.MethodBisection].FailureReason())
	assert.Equal(t, "derivative too close to zero", res.Results[schema.MethodNewton].FailureReason())
	assert.Equal(t, 0, res.Summary.ConvergedCount)
	assert.False(t, res.Summary.AllConverged)
	assert.False(t, res.Summary.RootSpread.IsDefined())
	assert.Empty(t, res.Summary.Fastest)
}

func TestCompareAll_Rejections(t *testing.T) {
	c := newTestComparator(t)
	params := allParams(0, 1, 0.5, 0, 1)

	tests := []struct {
		name string
		req  schema.ComparisonRequest
		code string
	}{
		{"invalid expression", schema.ComparisonRequest{Expression: "cos(x", Params: params}, schema.ErrCodeInvalidExpression},
		{"empty expression", schema.ComparisonRequest{Expression: "", Params: params}, schema.ErrCodeInvalidExpression},
		{"unknown function", schema.ComparisonRequest{Expression: "foo(x)", Params: params}, schema.ErrCodeInvalidExpression},
		{"no methods", schema.ComparisonRequest{Expression: "x"}, schema.ErrCodeValidation},
		{"negative tolerance", schema.ComparisonRequest{Expression: "x", Tolerance: -1, Params: params}, schema.ErrCodeValidation},
		{"negative budget", schema.ComparisonRequest{Expression: "x", MaxIterations: -5, Params: params}, schema.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.CompareAll(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, schema.IsCode(err, tt.code), err.Error())
		})
	}
}

func TestCompareAll_Idempotent(t *testing.T) {
	c := newTestComparator(t)
	req := schema.ComparisonRequest{Expression: "x*exp(x) - 1", Params: allParams(0, 1, 0.5, 0, 1)}

	first, err := c.CompareAll(context.Background(), req)
	require.NoError(t, err)
	second, err := c.CompareAll(context.Background(), req)
	require.NoError(t, err)

	opts := cmp.Options{
		cmpopts.IgnoreFields(schema.MethodResult{}, "ExecutionTime"),
		cmp.AllowUnexported(schema.Real{}),
	}
	if diff := cmp.Diff(first.Results, second.Results, opts); diff != "" {
		t.Errorf("results differ (-first +second):\n%s", diff)
	}
}

func TestCompareAll_CancelledWhileWaitingForPool(t *testing.T) {
	pool := NewWorkerPool(1)
	defer pool.Shutdown()

	block := make(chan struct{})
	require.NoError(t, pool.Go(context.Background(), func() { <-block }, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := NewComparator(pool)
	_, err := c.CompareAll(ctx, schema.ComparisonRequest{Expression: "x", Params: allParams(-1, 1, 1, -1, 1)})
	close(block)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeExecution))
}

// --- Solve ---

func TestSolve(t *testing.T) {
	c := newTestComparator(t)

	r, err := c.Solve(context.Background(), schema.SolveRequest{
		Expression: "exp(x) - 3*x**2",
		Method:     schema.MethodNewton,
		Params:     schema.MethodParams{Newton: &schema.NewtonParams{X0: 0.5}},
	})
	require.NoError(t, err)
	assert.True(t, r.Converged)
	assert.InDelta(t, 0.9100075725, r.Root.Float64(), 1e-6)
	assert.Equal(t, "Newton-Raphson", r.MethodName)
}

func TestSolve_Prechecks(t *testing.T) {
	c := newTestComparator(t)

	tests := []struct {
		name   string
		req    schema.SolveRequest
		reason string
	}{
		{
			"reversed interval",
			schema.SolveRequest{Expression: "x", Method: schema.MethodBisection,
				Params: schema.MethodParams{Bisection: &schema.BisectionParams{A: 1, B: -1}}},
			"invalid interval",
		},
		{
			"same sign",
			schema.SolveRequest{Expression: "x^2 - 2", Method: schema.MethodBisection,
				Params: schema.MethodParams{Bisection: &schema.BisectionParams{A: 2, B: 3}}},
			"same sign at both endpoints: f(2)=2, f(3)=7",
		},
		{
			"flat start",
			schema.SolveRequest{Expression: "x^2 - 1", Method: schema.MethodNewton,
				Params: schema.MethodParams{Newton: &schema.NewtonParams{X0: 0}}},
			"derivative is zero",
		},
		{
			"close guesses",
			schema.SolveRequest{Expression: "x - 1", Method: schema.MethodSecant,
				Params: schema.MethodParams{Secant: &schema.SecantParams{X0: 1, X1: 1 + 1e-15}}},
			"initial guesses are too close",
		},
		{
			"equal values",
			schema.SolveRequest{Expression: "x^2 + 1", Method: schema.MethodSecant,
				Params: schema.MethodParams{Secant: &schema.SecantParams{X0: -1, X1: 1}}},
			"function values at the initial guesses are too close",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := c.Solve(context.Background(), tt.req)
			require.NoError(t, err)
			assert.False(t, r.Converged)
			assert.Equal(t, 0, r.Iterations)
			note, ok := r.FailureNote()
			require.True(t, ok)
			assert.Equal(t, schema.FailurePrecondition, note.Failure)
			assert.True(t, strings.Contains(note.Reason, tt.reason), note.Reason)
		})
	}
}

func TestSolve_Validation(t *testing.T) {
	c := newTestComparator(t)

	_, err := c.Solve(context.Background(), schema.SolveRequest{Expression: "x", Method: "halley"})
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	_, err = c.Solve(context.Background(), schema.SolveRequest{Expression: "x", Method: schema.MethodSecant})
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	_, err = c.Solve(context.Background(), schema.SolveRequest{
		Expression: "x +", Method: schema.MethodNewton,
		Params: schema.MethodParams{Newton: &schema.NewtonParams{X0: 1}},
	})
	assert.True(t, schema.IsCode(err, schema.ErrCodeInvalidExpression))

	_, err = c.Solve(context.Background(), schema.SolveRequest{
		Expression: "x", Method: schema.MethodNewton, Tolerance: math.NaN(),
		Params: schema.MethodParams{Newton: &schema.NewtonParams{X0: 1}},
	})
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}
