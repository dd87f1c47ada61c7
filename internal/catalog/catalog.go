// Package catalog holds the built-in test functions and their default
// starting parameters.
package catalog

import (
	"sort"

	"github.com/rendis/rootfinder/pkg/schema"
)

// Function is a named test problem with its known roots.
type Function struct {
	Name        string              `json:"name"`
	Expression  string              `json:"expression"`
	Description string              `json:"description"`
	Roots       []float64           `json:"roots"`
	Domain      [2]float64          `json:"domain"`
	Defaults    schema.MethodParams `json:"defaults"`
}

// Request builds a comparison request running every method from the
// function's default parameters.
func (f Function) Request(tol float64, maxIter int) schema.ComparisonRequest {
	return schema.ComparisonRequest{
		Name:          f.Name,
		Expression:    f.Expression,
		Tolerance:     tol,
		MaxIterations: maxIter,
		Params:        f.Defaults,
	}
}

var functions = map[string]Function{
	"polynomial": {
		Name:        "polynomial",
		Expression:  "x**3 - 6*x**2 + 11*x - 6",
		Description: "f(x) = x³ - 6x² + 11x - 6 (roots at x = 1, 2, 3)",
		Roots:       []float64{1, 2, 3},
		Domain:      [2]float64{0, 4},
		Defaults:    params(0.5, 1.5, 0.5, 0.5, 1.5),
	},
	"transcendental1": {
		Name:        "transcendental1",
		Expression:  "cos(x) - x",
		Description: "f(x) = cos(x) - x (root ≈ 0.739)",
		Roots:       []float64{0.7390851332},
		Domain:      [2]float64{-2, 2},
		Defaults:    params(0, 1, 0.5, 0, 1),
	},
	"transcendental2": {
		Name:        "transcendental2",
		Expression:  "exp(x) - 3*x**2",
		Description: "f(x) = eˣ - 3x² (roots ≈ -0.459, 0.910 in the domain)",
		Roots:       []float64{-0.4589622675, 0.9100075725},
		Domain:      [2]float64{-1, 3},
		Defaults:    params(0, 1, 0.5, 0, 1),
	},
	"trigonometric": {
		Name:        "trigonometric",
		Expression:  "sin(x) - x/2",
		Description: "f(x) = sin(x) - x/2 (roots at 0 and ≈ 1.895)",
		Roots:       []float64{0, 1.8954942670},
		Domain:      [2]float64{-1, 3},
		Defaults:    params(1, 3, 2, 1.5, 2.5),
	},
	"exponential": {
		Name:        "exponential",
		Expression:  "x*exp(x) - 1",
		Description: "f(x) = x·eˣ - 1 (root ≈ 0.567)",
		Roots:       []float64{0.5671432904},
		Domain:      [2]float64{0, 1},
		Defaults:    params(0, 1, 0.5, 0, 1),
	},
}

func params(a, b, x0, s0, s1 float64) schema.MethodParams {
	return schema.MethodParams{
		Bisection: &schema.BisectionParams{A: a, B: b},
		Newton:    &schema.NewtonParams{X0: x0},
		Secant:    &schema.SecantParams{X0: s0, X1: s1},
	}
}

// Names returns the catalog names in sorted order.
func Names() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every function sorted by name.
func All() []Function {
	out := make([]Function, 0, len(functions))
	for _, name := range Names() {
		out = append(out, Lookup(name))
	}
	return out
}

// Lookup returns the named function, or the zero Function.
func Lookup(name string) Function {
	f, ok := functions[name]
	if !ok {
		return Function{}
	}
	f.Roots = append([]float64(nil), f.Roots...)
	f.Defaults = params(
		f.Defaults.Bisection.A, f.Defaults.Bisection.B,
		f.Defaults.Newton.X0,
		f.Defaults.Secant.X0, f.Defaults.Secant.X1,
	)
	return f
}

// Get returns the named function or a NOT_FOUND error.
func Get(name string) (Function, error) {
	f := Lookup(name)
	if f.Name == "" {
		return Function{}, schema.NewErrorf(schema.ErrCodeNotFound, "unknown test function %q", name).
			WithDetails(map[string]any{"available": Names()})
	}
	return f, nil
}
