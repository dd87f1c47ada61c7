package expressions

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/rendis/rootfinder/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() map[string]any {
	return map[string]any{
		"id":             "calc-1",
		"function":       "cos(x) - x",
		"method":         "newton",
		"method_name":    "Newton-Raphson",
		"root":           0.7390851332151607,
		"iterations":     4.0,
		"error":          1.1e-10,
		"converged":      true,
		"execution_time": 0.0001,
		"tolerance":      1e-6,
		"max_iterations": 100.0,
		"iteration_history": []any{
			map[string]any{"iteration": 1.0, "x": 0.5},
			map[string]any{"iteration": 2.0, "x": 0.755},
		},
	}
}

// --- Interface compliance ---

func TestEngines_ImplementEngine(t *testing.T) {
	var _ Engine = (*CELEngine)(nil)
	var _ Engine = (*GoJQEngine)(nil)
	var _ Engine = (*ExprEngine)(nil)
}

// --- CEL ---

func TestCEL_Matches(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	assert.Equal(t, "cel", e.Name())

	tests := []struct {
		expr string
		want bool
	}{
		{"converged && iterations < 10", true},
		{"iterations >= 10", false},
		{`method == "newton"`, true},
		{`function.contains("cos")`, true},
		{"error < tolerance", true},
		{`method in ["bisection", "secant"]`, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			ok, err := e.Matches(context.Background(), tt.expr, sampleRecord())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestCEL_Errors(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		_, err := e.Matches(context.Background(), "", sampleRecord())
		assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
	})

	t.Run("compile error", func(t *testing.T) {
		_, err := e.Matches(context.Background(), "converged &&", sampleRecord())
		assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
	})

	t.Run("unknown variable", func(t *testing.T) {
		_, err := e.Matches(context.Background(), "steps > 1", sampleRecord())
		assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
	})

	t.Run("non-bool predicate", func(t *testing.T) {
		_, err := e.Matches(context.Background(), "method", sampleRecord())
		assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
	})
}

func TestCEL_ConcurrentCache(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := e.Matches(context.Background(), "converged", sampleRecord())
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()
}

// --- GoJQ ---

func TestGoJQ_Project(t *testing.T) {
	e := NewGoJQEngine()
	assert.Equal(t, "jq", e.Name())

	t.Run("single output", func(t *testing.T) {
		out, err := e.Evaluate(context.Background(), "{method, steps: (.iteration_history | length)}", sampleRecord())
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"method": "newton", "steps": 2}, out)
	})

	t.Run("multiple outputs", func(t *testing.T) {
		out, err := e.Evaluate(context.Background(), ".iteration_history[].x", sampleRecord())
		require.NoError(t, err)
		assert.Equal(t, []any{0.5, 0.755}, out)
	})

	t.Run("no output", func(t *testing.T) {
		out, err := e.Evaluate(context.Background(), "empty", sampleRecord())
		require.NoError(t, err)
		assert.Nil(t, out)
	})

	t.Run("parse error", func(t *testing.T) {
		_, err := e.Evaluate(context.Background(), ".[", sampleRecord())
		assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
	})

	t.Run("runtime error", func(t *testing.T) {
		_, err := e.Evaluate(context.Background(), `error("boom")`, sampleRecord())
		assert.True(t, schema.IsCode(err, schema.ErrCodeExecution))
	})

	t.Run("env is hidden", func(t *testing.T) {
		out, err := e.Evaluate(context.Background(), "$ENV | length", sampleRecord())
		require.NoError(t, err)
		assert.Equal(t, 0, out)
	})
}

// --- Expr ---

func TestExpr_CompileFunction(t *testing.T) {
	e := NewExprEngine()
	assert.Equal(t, "expr", e.Name())

	tests := []struct {
		text string
		x    float64
		want float64
	}{
		{"cos(x) - x", 0.5, math.Cos(0.5) - 0.5},
		{"x^3 - 6*x^2 + 11*x - 6", 2, 0},
		{"x**2", 3, 9},
		{"exp(x) - 3*x**2", 1, math.E - 3},
		{"ln(x) + log10(x)", 10, math.Log(10) + 1},
		{"sin(pi/2)", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			f, err := e.CompileFunction(tt.text)
			require.NoError(t, err)
			got, err := f.At(tt.x)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}

	t.Run("agrees with Compile", func(t *testing.T) {
		text := "x*exp(x) - 1"
		f, err := e.CompileFunction(text)
		require.NoError(t, err)
		c := mustCompile(t, text, false)
		for _, x := range []float64{-1, 0, 0.567, 2} {
			got, err := f.At(x)
			require.NoError(t, err)
			assert.InDelta(t, evalAt(t, c.F, x), got, 1e-12)
		}
	})

	t.Run("compile error", func(t *testing.T) {
		_, err := e.CompileFunction("x +")
		assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
	})
}

func TestExpr_Evaluate(t *testing.T) {
	e := NewExprEngine()
	out, err := e.Evaluate(context.Background(), "root > 0.7 && converged", sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, true, out)

	_, err = e.Evaluate(context.Background(), "", nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}
