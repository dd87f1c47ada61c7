package expressions

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rendis/rootfinder/pkg/schema"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp // + - * / ^ (** is normalized to ^)
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	num  float64
	op   byte
	pos  int
}

func (t token) describe() string {
	if t.kind == tokEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.text)
}

// syntaxError carries the byte offset of the failure.
type syntaxError struct {
	msg string
	pos int
}

func (e *syntaxError) Error() string { return fmt.Sprintf("%s at offset %d", e.msg, e.pos) }

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			i = scanNumber(src, i)
			v, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil || math.IsInf(v, 0) {
				return nil, &syntaxError{msg: fmt.Sprintf("malformed number %q", src[start:i]), pos: start}
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], num: v, pos: start})
		case isLetter(c):
			start := i
			for i < len(src) && (isLetter(src[i]) || isDigit(src[i])) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		case c == '*' && i+1 < len(src) && src[i+1] == '*':
			toks = append(toks, token{kind: tokOp, text: "**", op: '^', pos: i})
			i += 2
		case strings.IndexByte("+-*/^", c) >= 0:
			toks = append(toks, token{kind: tokOp, text: string(c), op: c, pos: i})
			i++
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		default:
			return nil, &syntaxError{msg: fmt.Sprintf("unexpected character %q", c), pos: i}
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

func scanNumber(src string, i int) int {
	for i < len(src) && isDigit(src[i]) {
		i++
	}
	if i < len(src) && src[i] == '.' {
		i++
		for i < len(src) && isDigit(src[i]) {
			i++
		}
	}
	// An exponent needs at least one digit; otherwise the e is left for the
	// identifier scanner.
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && isDigit(src[j]) {
			for j < len(src) && isDigit(src[j]) {
				j++
			}
			i = j
		}
	}
	return i
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }

type parser struct {
	toks []token
	pos  int
}

// parse builds the tree for src or returns an InvalidExpression error.
func parse(src string) (node, error) {
	n, err := parseTree(src)
	if err != nil {
		offset := 0
		if se, ok := err.(*syntaxError); ok {
			offset = se.pos
		}
		return nil, schema.NewErrorf(schema.ErrCodeInvalidExpression, "invalid expression %q: %v", src, err).
			WithDetails(map[string]any{"expression": src, "offset": offset})
	}
	return n, nil
}

func parseTree(src string) (node, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &syntaxError{msg: "empty expression", pos: 0}
	}
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, &syntaxError{msg: "unexpected " + t.describe(), pos: t.pos}
	}
	return n, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) atOp(ops string) (byte, bool) {
	t := p.peek()
	if t.kind == tokOp && strings.IndexByte(ops, t.op) >= 0 {
		return t.op, true
	}
	return 0, false
}

func (p *parser) expr() (node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.atOp("+-")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) term() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.atOp("*/")
		if !ok {
			return left, nil
		}
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}
}

func (p *parser) unary() (node, error) {
	if op, ok := p.atOp("+-"); ok {
		p.next()
		arg, err := p.unary()
		if err != nil {
			return nil, err
		}
		if op == '-' {
			return negNode{arg: arg}, nil
		}
		return arg, nil
	}
	return p.power()
}

func (p *parser) power() (node, error) {
	base, err := p.primary()
	if err != nil {
		return nil, err
	}
	if _, ok := p.atOp("^"); !ok {
		return base, nil
	}
	p.next()
	exp, err := p.unary()
	if err != nil {
		return nil, err
	}
	return binaryNode{op: '^', left: base, right: exp}, nil
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return constNode{value: t.num}, nil
	case tokLParen:
		n, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return n, nil
	case tokIdent:
		return p.identifier(t)
	}
	return nil, &syntaxError{msg: "unexpected " + t.describe(), pos: t.pos}
}

func (p *parser) identifier(t token) (node, error) {
	switch t.text {
	case "x":
		return varNode{}, nil
	case "pi":
		return constNode{value: math.Pi}, nil
	case "e":
		return constNode{value: math.E}, nil
	}
	if _, ok := builtins[t.text]; !ok || t.text == "sign" {
		return nil, &syntaxError{msg: fmt.Sprintf("unknown identifier %q", t.text), pos: t.pos}
	}
	if err := p.expect(tokLParen, fmt.Sprintf("'(' after %s", t.text)); err != nil {
		return nil, err
	}
	arg, err := p.expr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return callNode{fn: canonicalName(t.text), arg: arg}, nil
}

func (p *parser) expect(kind tokenKind, what string) error {
	t := p.peek()
	if t.kind != kind {
		return &syntaxError{msg: fmt.Sprintf("expected %s, found %s", what, t.describe()), pos: t.pos}
	}
	p.next()
	return nil
}
