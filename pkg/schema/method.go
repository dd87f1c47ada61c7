package schema

// Method identifies a root-finding algorithm.
type Method string

const (
	MethodBisection Method = "bisection"
	MethodNewton    Method = "newton"
	MethodSecant    Method = "secant"
)

// Methods lists every supported method in display order.
var Methods = []Method{MethodBisection, MethodNewton, MethodSecant}

// DisplayName returns the human-readable algorithm name.
func (m Method) DisplayName() string {
	switch m {
	case MethodBisection:
		return "Bisection"
	case MethodNewton:
		return "Newton-Raphson"
	case MethodSecant:
		return "Secant"
	}
	return string(m)
}

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	switch m {
	case MethodBisection, MethodNewton, MethodSecant:
		return true
	}
	return false
}

// Default solver settings.
const (
	DefaultTolerance     = 1e-6
	DefaultMaxIterations = 100
)

// BisectionParams is the initial bracket for bisection.
type BisectionParams struct {
	A float64 `json:"a" yaml:"a"`
	B float64 `json:"b" yaml:"b"`
}

// NewtonParams is the initial guess for Newton-Raphson.
type NewtonParams struct {
	X0 float64 `json:"x0" yaml:"x0"`
}

// SecantParams are the two initial guesses for the secant method.
type SecantParams struct {
	X0 float64 `json:"x0" yaml:"x0"`
	X1 float64 `json:"x1" yaml:"x1"`
}

// MethodParams carries the parameters of every selected method. A nil
// field means the method is not selected.
type MethodParams struct {
	Bisection *BisectionParams `json:"bisection,omitempty" yaml:"bisection,omitempty"`
	Newton    *NewtonParams    `json:"newton,omitempty" yaml:"newton,omitempty"`
	Secant    *SecantParams    `json:"secant,omitempty" yaml:"secant,omitempty"`
}

// Selected returns the selected methods in display order.
func (p MethodParams) Selected() []Method {
	var out []Method
	if p.Bisection != nil {
		out = append(out, MethodBisection)
	}
	if p.Newton != nil {
		out = append(out, MethodNewton)
	}
	if p.Secant != nil {
		out = append(out, MethodSecant)
	}
	return out
}

// For returns the parameters of a single method as a generic map, or nil.
func (p MethodParams) For(m Method) map[string]float64 {
	switch m {
	case MethodBisection:
		if p.Bisection != nil {
			return map[string]float64{"a": p.Bisection.A, "b": p.Bisection.B}
		}
	case MethodNewton:
		if p.Newton != nil {
			return map[string]float64{"x0": p.Newton.X0}
		}
	case MethodSecant:
		if p.Secant != nil {
			return map[string]float64{"x0": p.Secant.X0, "x1": p.Secant.X1}
		}
	}
	return nil
}

// SolveRequest asks for a single method run.
type SolveRequest struct {
	Expression    string       `json:"function" yaml:"function"`
	Method        Method       `json:"method" yaml:"method"`
	Tolerance     float64      `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
	MaxIterations int          `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	Params        MethodParams `json:"params" yaml:"params"`
}

// ComparisonRequest asks for several methods on the same problem.
type ComparisonRequest struct {
	Name          string       `json:"name,omitempty" yaml:"name,omitempty"`
	Expression    string       `json:"function" yaml:"function"`
	Tolerance     float64      `json:"tolerance,omitempty" yaml:"tolerance,omitempty"`
	MaxIterations int          `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	Params        MethodParams `json:"params" yaml:"params"`
}

// ApplyDefaults fills zero tolerance / iteration budget with the defaults.
func (r *ComparisonRequest) ApplyDefaults() {
	if r.Tolerance == 0 {
		r.Tolerance = DefaultTolerance
	}
	if r.MaxIterations == 0 {
		r.MaxIterations = DefaultMaxIterations
	}
}

// ApplyDefaults fills zero tolerance / iteration budget with the defaults.
func (r *SolveRequest) ApplyDefaults() {
	if r.Tolerance == 0 {
		r.Tolerance = DefaultTolerance
	}
	if r.MaxIterations == 0 {
		r.MaxIterations = DefaultMaxIterations
	}
}
