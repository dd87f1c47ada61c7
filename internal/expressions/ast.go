package expressions

import (
	"strconv"
	"strings"
)

// node is an element of a parsed expression tree over the single variable x.
// Trees are immutable once built and may be shared between derivative trees.
type node interface {
	prec() int
	write(sb *strings.Builder)
}

// Operator precedence used for printing.
const (
	precSum = iota + 1
	precProduct
	precUnary
	precPower
	precAtom
)

type constNode struct{ value float64 }

type varNode struct{}

type negNode struct{ arg node }

type binaryNode struct {
	op          byte // one of + - * / ^
	left, right node
}

type callNode struct {
	fn  string
	arg node
}

func (constNode) prec() int {
	return precAtom
}

func (n constNode) write(sb *strings.Builder) {
	if n.value < 0 {
		sb.WriteByte('(')
		sb.WriteString(strconv.FormatFloat(n.value, 'g', -1, 64))
		sb.WriteByte(')')
		return
	}
	sb.WriteString(strconv.FormatFloat(n.value, 'g', -1, 64))
}

func (varNode) prec() int                 { return precAtom }
func (varNode) write(sb *strings.Builder) { sb.WriteByte('x') }
func (negNode) prec() int                 { return precUnary }
func (n callNode) prec() int              { return precAtom }
func (n binaryNode) prec() int            { return opPrec(n.op) }
func (n negNode) write(sb *strings.Builder) {
	sb.WriteByte('-')
	writeOperand(sb, n.arg, precUnary, false)
}
func (n callNode) write(sb *strings.Builder) {
	sb.WriteString(n.fn)
	sb.WriteByte('(')
	n.arg.write(sb)
	sb.WriteByte(')')
}

func (n binaryNode) write(sb *strings.Builder) {
	p := opPrec(n.op)
	// ^ is right-associative; - and / are not associative on the right.
	writeOperand(sb, n.left, p, n.op == '^')
	switch n.op {
	case '+', '-':
		sb.WriteByte(' ')
		sb.WriteByte(n.op)
		sb.WriteByte(' ')
	default:
		sb.WriteByte(n.op)
	}
	writeOperand(sb, n.right, p, n.op == '-' || n.op == '/')
}

func writeOperand(sb *strings.Builder, n node, parent int, strict bool) {
	p := n.prec()
	if p < parent || (strict && p == parent) {
		sb.WriteByte('(')
		n.write(sb)
		sb.WriteByte(')')
		return
	}
	n.write(sb)
}

func opPrec(op byte) int {
	switch op {
	case '+', '-':
		return precSum
	case '*', '/':
		return precProduct
	}
	return precPower
}

// format renders a tree in canonical infix form.
func format(n node) string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

// hasVar reports whether x occurs anywhere in the tree.
func hasVar(n node) bool {
	switch t := n.(type) {
	case varNode:
		return true
	case negNode:
		return hasVar(t.arg)
	case binaryNode:
		return hasVar(t.left) || hasVar(t.right)
	case callNode:
		return hasVar(t.arg)
	}
	return false
}

func isConst(n node, v float64) bool {
	c, ok := n.(constNode)
	return ok && c.value == v
}
