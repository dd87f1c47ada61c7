package expressions

import (
	"errors"
	"fmt"
	"math"
)

// pointError is a failure of the expression at a single input.
type pointError struct{ reason string }

func (e *pointError) Error() string { return e.reason }

func domainErrorf(format string, args ...any) error {
	return &pointError{reason: fmt.Sprintf(format, args...)}
}

var errDivisionByZero = &pointError{reason: "division by zero"}

type scalarFunc func(x float64) (float64, error)

type vectorFunc func(xs []float64) ([]float64, error)

// checked validates the result of an operation on finite operands.
func checked(v float64, operands ...float64) (float64, error) {
	if !math.IsNaN(v) && !math.IsInf(v, 0) {
		return v, nil
	}
	for _, o := range operands {
		if math.IsNaN(o) || math.IsInf(o, 0) {
			return v, nil
		}
	}
	if math.IsInf(v, 0) {
		return v, domainErrorf("overflow")
	}
	return v, domainErrorf("undefined result")
}

func apply(op byte, l, r float64) (float64, error) {
	switch op {
	case '+':
		return checked(l+r, l, r)
	case '-':
		return checked(l-r, l, r)
	case '*':
		return checked(l*r, l, r)
	case '/':
		if r == 0 {
			return math.NaN(), errDivisionByZero
		}
		return checked(l/r, l, r)
	}
	v, err := checked(math.Pow(l, r), l, r)
	if err != nil && !math.IsInf(v, 0) && l < 0 {
		return v, domainErrorf("negative base %g raised to non-integer power %g", l, r)
	}
	return v, err
}

func callBuiltin(b builtin, fn string, u float64) (float64, error) {
	v, err := b.eval(u)
	if err != nil {
		return v, err
	}
	v, err = checked(v, u)
	if err != nil {
		return v, domainErrorf("%s(%g): %v", fn, u, err)
	}
	return v, nil
}

// compileScalar turns a tree into a closure evaluating one point.
func compileScalar(n node) scalarFunc {
	switch t := n.(type) {
	case constNode:
		v := t.value
		return func(float64) (float64, error) { return v, nil }
	case varNode:
		return func(x float64) (float64, error) { return x, nil }
	case negNode:
		arg := compileScalar(t.arg)
		return func(x float64) (float64, error) {
			v, err := arg(x)
			return -v, err
		}
	case callNode:
		arg := compileScalar(t.arg)
		b, fn := builtins[t.fn], t.fn
		return func(x float64) (float64, error) {
			u, err := arg(x)
			if err != nil {
				return u, err
			}
			return callBuiltin(b, fn, u)
		}
	case binaryNode:
		left, right, op := compileScalar(t.left), compileScalar(t.right), t.op
		return func(x float64) (float64, error) {
			l, err := left(x)
			if err != nil {
				return l, err
			}
			r, err := right(x)
			if err != nil {
				return r, err
			}
			return apply(op, l, r)
		}
	}
	panic(fmt.Sprintf("expressions: unknown node %T", n))
}

// compileVector turns a tree into a closure evaluating a whole slice node by
// node. Any point failure fails the whole call.
func compileVector(n node) vectorFunc {
	switch t := n.(type) {
	case constNode:
		v := t.value
		return func(xs []float64) ([]float64, error) {
			out := make([]float64, len(xs))
			for i := range out {
				out[i] = v
			}
			return out, nil
		}
	case varNode:
		return func(xs []float64) ([]float64, error) {
			out := make([]float64, len(xs))
			copy(out, xs)
			return out, nil
		}
	case negNode:
		arg := compileVector(t.arg)
		return func(xs []float64) ([]float64, error) {
			vs, err := arg(xs)
			if err != nil {
				return nil, err
			}
			for i := range vs {
				vs[i] = -vs[i]
			}
			return vs, nil
		}
	case callNode:
		arg := compileVector(t.arg)
		b, fn := builtins[t.fn], t.fn
		return func(xs []float64) ([]float64, error) {
			us, err := arg(xs)
			if err != nil {
				return nil, err
			}
			for i, u := range us {
				if us[i], err = callBuiltin(b, fn, u); err != nil {
					return nil, err
				}
			}
			return us, nil
		}
	case binaryNode:
		left, right, op := compileVector(t.left), compileVector(t.right), t.op
		return func(xs []float64) ([]float64, error) {
			ls, err := left(xs)
			if err != nil {
				return nil, err
			}
			rs, err := right(xs)
			if err != nil {
				return nil, err
			}
			for i := range ls {
				if ls[i], err = apply(op, ls[i], rs[i]); err != nil {
					return nil, err
				}
			}
			return ls, nil
		}
	}
	panic(fmt.Sprintf("expressions: unknown node %T", n))
}

func asPointError(err error) (*pointError, bool) {
	var pe *pointError
	ok := errors.As(err, &pe)
	return pe, ok
}
