package expressions

import (
	"math"
	"sort"
)

// builtin describes a unary function callable from expressions.
type builtin struct {
	eval func(u float64) (float64, error)
	// deriv returns d/du f(u) as a tree in u.
	deriv func(u node) node
}

func plain(f func(float64) float64) func(float64) (float64, error) {
	return func(u float64) (float64, error) { return f(u), nil }
}

var builtins map[string]builtin

func init() {
	one := constNode{value: 1}
	builtins = map[string]builtin{
		"sin": {eval: plain(math.Sin), deriv: func(u node) node { return callNode{fn: "cos", arg: u} }},
		"cos": {eval: plain(math.Cos), deriv: func(u node) node { return neg(callNode{fn: "sin", arg: u}) }},
		"tan": {eval: plain(math.Tan), deriv: func(u node) node {
			return add(one, pow(callNode{fn: "tan", arg: u}, constNode{value: 2}))
		}},
		"asin": {eval: unitDomain("asin", math.Asin), deriv: func(u node) node {
			return pow(sub(one, pow(u, constNode{value: 2})), constNode{value: -0.5})
		}},
		"acos": {eval: unitDomain("acos", math.Acos), deriv: func(u node) node {
			return neg(pow(sub(one, pow(u, constNode{value: 2})), constNode{value: -0.5}))
		}},
		"atan": {eval: plain(math.Atan), deriv: func(u node) node {
			return div(one, add(one, pow(u, constNode{value: 2})))
		}},
		"sinh": {eval: plain(math.Sinh), deriv: func(u node) node { return callNode{fn: "cosh", arg: u} }},
		"cosh": {eval: plain(math.Cosh), deriv: func(u node) node { return callNode{fn: "sinh", arg: u} }},
		"tanh": {eval: plain(math.Tanh), deriv: func(u node) node {
			return sub(one, pow(callNode{fn: "tanh", arg: u}, constNode{value: 2}))
		}},
		"exp": {eval: plain(math.Exp), deriv: func(u node) node { return callNode{fn: "exp", arg: u} }},
		"log": {eval: positiveDomain("log", math.Log), deriv: func(u node) node { return div(one, u) }},
		"log10": {eval: positiveDomain("log10", math.Log10), deriv: func(u node) node {
			return div(one, mul(u, constNode{value: math.Ln10}))
		}},
		"log2": {eval: positiveDomain("log2", math.Log2), deriv: func(u node) node {
			return div(one, mul(u, constNode{value: math.Ln2}))
		}},
		"sqrt": {eval: sqrtDomain, deriv: func(u node) node {
			return div(one, mul(constNode{value: 2}, callNode{fn: "sqrt", arg: u}))
		}},
		"abs":  {eval: plain(math.Abs), deriv: func(u node) node { return callNode{fn: "sign", arg: u} }},
		"sign": {eval: plain(sign), deriv: func(node) node { return constNode{value: 0} }},
	}
	builtins["ln"] = builtins["log"]
}

// canonicalName maps aliases to the name used when printing.
func canonicalName(name string) string {
	if name == "ln" {
		return "log"
	}
	return name
}

// FunctionNames lists the function names accepted in expressions.
func FunctionNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		if name == "sign" {
			// only produced by differentiating abs
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sign(u float64) float64 {
	switch {
	case u > 0:
		return 1
	case u < 0:
		return -1
	}
	return 0
}

func unitDomain(name string, f func(float64) float64) func(float64) (float64, error) {
	return func(u float64) (float64, error) {
		if u < -1 || u > 1 {
			return math.NaN(), domainErrorf("%s argument %g outside [-1, 1]", name, u)
		}
		return f(u), nil
	}
}

func positiveDomain(name string, f func(float64) float64) func(float64) (float64, error) {
	return func(u float64) (float64, error) {
		if u <= 0 {
			return math.NaN(), domainErrorf("%s of non-positive value %g", name, u)
		}
		return f(u), nil
	}
}

func sqrtDomain(u float64) (float64, error) {
	if u < 0 {
		return math.NaN(), domainErrorf("sqrt of negative value %g", u)
	}
	return math.Sqrt(u), nil
}
