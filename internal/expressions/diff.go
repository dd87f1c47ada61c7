package expressions

import (
	"fmt"
	"math"
)

// derive returns d/dx of the tree. Constant subtrees are folded first so the
// power rule can treat exponents such as 1/2 as constants.
func derive(n node) (node, error) {
	return diff(fold(n))
}

func diff(n node) (node, error) {
	switch t := n.(type) {
	case constNode:
		return constNode{value: 0}, nil
	case varNode:
		return constNode{value: 1}, nil
	case negNode:
		du, err := diff(t.arg)
		if err != nil {
			return nil, err
		}
		return neg(du), nil
	case callNode:
		b, ok := builtins[t.fn]
		if !ok {
			return nil, fmt.Errorf("no derivative rule for %s", t.fn)
		}
		du, err := diff(t.arg)
		if err != nil {
			return nil, err
		}
		return mul(b.deriv(t.arg), du), nil
	case binaryNode:
		return diffBinary(t)
	}
	return nil, fmt.Errorf("unsupported node %T", n)
}

func diffBinary(t binaryNode) (node, error) {
	u, v := t.left, t.right
	du, err := diff(u)
	if err != nil {
		return nil, err
	}
	dv, err := diff(v)
	if err != nil {
		return nil, err
	}
	switch t.op {
	case '+':
		return add(du, dv), nil
	case '-':
		return sub(du, dv), nil
	case '*':
		return add(mul(du, v), mul(u, dv)), nil
	case '/':
		return div(sub(mul(du, v), mul(u, dv)), pow(v, constNode{value: 2})), nil
	case '^':
		switch {
		case !hasVar(v):
			// d(u^c) = c * u^(c-1) * u'
			return mul(mul(v, pow(u, sub(v, constNode{value: 1}))), du), nil
		case !hasVar(u):
			// d(c^v) = c^v * ln(c) * v'
			return mul(mul(t, callNode{fn: "log", arg: u}), dv), nil
		default:
			// d(u^v) = u^v * (v' ln(u) + v u'/u)
			return mul(t, add(mul(dv, callNode{fn: "log", arg: u}), div(mul(v, du), u))), nil
		}
	}
	return nil, fmt.Errorf("unsupported operator %q", t.op)
}

// fold replaces variable-free subtrees by their value when that value is
// finite and evaluates without error.
func fold(n node) node {
	switch t := n.(type) {
	case negNode:
		return neg(fold(t.arg))
	case binaryNode:
		return binary(t.op, fold(t.left), fold(t.right))
	case callNode:
		arg := fold(t.arg)
		if c, ok := arg.(constNode); ok {
			if v, err := builtins[t.fn].eval(c.value); err == nil && finite(v) {
				return constNode{value: v}
			}
		}
		return callNode{fn: t.fn, arg: arg}
	}
	return n
}

func binary(op byte, l, r node) node {
	switch op {
	case '+':
		return add(l, r)
	case '-':
		return sub(l, r)
	case '*':
		return mul(l, r)
	case '/':
		return div(l, r)
	}
	return pow(l, r)
}

// The constructors below apply local identities (0 and 1 elimination,
// constant folding) while building derivative trees.

func neg(a node) node {
	switch t := a.(type) {
	case constNode:
		return constNode{value: -t.value}
	case negNode:
		return t.arg
	}
	return negNode{arg: a}
}

func add(a, b node) node {
	if ca, ok := a.(constNode); ok {
		if cb, ok := b.(constNode); ok {
			return constNode{value: ca.value + cb.value}
		}
	}
	if isConst(a, 0) {
		return b
	}
	if isConst(b, 0) {
		return a
	}
	if nb, ok := b.(negNode); ok {
		return binaryNode{op: '-', left: a, right: nb.arg}
	}
	return binaryNode{op: '+', left: a, right: b}
}

func sub(a, b node) node {
	if ca, ok := a.(constNode); ok {
		if cb, ok := b.(constNode); ok {
			return constNode{value: ca.value - cb.value}
		}
	}
	if isConst(b, 0) {
		return a
	}
	if isConst(a, 0) {
		return neg(b)
	}
	if nb, ok := b.(negNode); ok {
		return binaryNode{op: '+', left: a, right: nb.arg}
	}
	return binaryNode{op: '-', left: a, right: b}
}

func mul(a, b node) node {
	ca, aConst := a.(constNode)
	cb, bConst := b.(constNode)
	switch {
	case aConst && bConst:
		return constNode{value: ca.value * cb.value}
	case isConst(a, 0) || isConst(b, 0):
		return constNode{value: 0}
	case isConst(a, 1):
		return b
	case isConst(b, 1):
		return a
	case isConst(a, -1):
		return neg(b)
	case isConst(b, -1):
		return neg(a)
	case bConst:
		// Keep constant coefficients on the left.
		return mul(b, a)
	}
	if aConst {
		if inner, ok := b.(binaryNode); ok && inner.op == '*' {
			if ci, ok := inner.left.(constNode); ok {
				return mul(constNode{value: ca.value * ci.value}, inner.right)
			}
		}
	}
	if na, ok := a.(negNode); ok {
		return neg(mul(na.arg, b))
	}
	if nb, ok := b.(negNode); ok {
		return neg(mul(a, nb.arg))
	}
	return binaryNode{op: '*', left: a, right: b}
}

func div(a, b node) node {
	ca, aConst := a.(constNode)
	cb, bConst := b.(constNode)
	switch {
	case aConst && bConst && cb.value != 0:
		return constNode{value: ca.value / cb.value}
	case isConst(a, 0) && !isConst(b, 0):
		return constNode{value: 0}
	case isConst(b, 1):
		return a
	}
	return binaryNode{op: '/', left: a, right: b}
}

func pow(a, b node) node {
	ca, aConst := a.(constNode)
	cb, bConst := b.(constNode)
	switch {
	case aConst && bConst:
		if v := math.Pow(ca.value, cb.value); finite(v) {
			return constNode{value: v}
		}
	case isConst(b, 0):
		return constNode{value: 1}
	case isConst(b, 1):
		return a
	}
	return binaryNode{op: '^', left: a, right: b}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
