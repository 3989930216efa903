package expr

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/template"
)

// SyntaxError reports an expression that does not parse.
type SyntaxError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expr %q at %d: %s", e.Expr, e.Pos, e.Msg)
}

type node interface {
	eval(vars map[string]any) any
}

type literal struct{ v any }

func (n literal) eval(map[string]any) any { return n.v }

type path struct{ name string }

func (n path) eval(vars map[string]any) any {
	if v, ok := template.Lookup(vars, n.name); ok {
		return v
	}
	return n.name
}

type not struct{ x node }

func (n not) eval(vars map[string]any) any { return !IsTruthy(n.x.eval(vars)) }

type logical struct {
	and         bool
	left, right node
}

func (n logical) eval(vars map[string]any) any {
	l := IsTruthy(n.left.eval(vars))
	if n.and {
		return l && IsTruthy(n.right.eval(vars))
	}
	return l || IsTruthy(n.right.eval(vars))
}

type binary struct {
	fn          BinaryOp
	left, right node
}

func (n binary) eval(vars map[string]any) any {
	return n.fn(n.left.eval(vars), n.right.eval(vars))
}

type parser struct {
	src    string
	toks   []token
	pos    int
	custom map[string]BinaryOp
}

func parse(src string, custom map[string]BinaryOp) (node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks, custom: custom}
	if p.peek().kind == tokEOF {
		return literal{false}, nil
	}
	n, err := p.or()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %q", t.text)
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

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Expr: p.src, Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) word(t token, words ...string) bool {
	if t.kind == tokOp {
		for _, w := range words {
			if t.text == w {
				return true
			}
		}
		return false
	}
	if t.kind != tokIdent {
		return false
	}
	for _, w := range words {
		if strings.EqualFold(t.text, w) {
			return true
		}
	}
	return false
}

func (p *parser) or() (node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.word(p.peek(), "or", "||") {
		p.next()
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = logical{and: false, left: left, right: right}
	}
	return left, nil
}

func (p *parser) and() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.word(p.peek(), "and", "&&") {
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = logical{and: true, left: left, right: right}
	}
	return left, nil
}

func (p *parser) unary() (node, error) {
	if p.word(p.peek(), "not", "!") {
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return not{x}, nil
	}
	return p.compare()
}

func (p *parser) compare() (node, error) {
	left, err := p.operand()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	fn, ok := p.operator(t)
	if !ok {
		return left, nil
	}
	p.next()
	right, err := p.operand()
	if err != nil {
		return nil, err
	}
	return binary{fn: fn, left: left, right: right}, nil
}

func (p *parser) operator(t token) (BinaryOp, bool) {
	switch t.kind {
	case tokOp:
		fn, ok := builtins[t.text]
		return fn, ok
	case tokIdent:
		if strings.EqualFold(t.text, "contains") {
			return builtins["contains"], true
		}
		fn, ok := p.custom[t.text]
		return fn, ok
	}
	return nil, false
}

func (p *parser) operand() (node, error) {
	t := p.next()
	switch t.kind {
	case tokLParen:
		n, err := p.or()
		if err != nil {
			return nil, err
		}
		if c := p.next(); c.kind != tokRParen {
			return nil, p.errorf(c, "expected )")
		}
		return n, nil
	case tokString:
		return literal{t.text}, nil
	case tokNumber:
		v, ok := parseNumber(t.text)
		if !ok {
			return nil, p.errorf(t, "bad number %q", t.text)
		}
		return literal{v}, nil
	case tokIdent:
		switch strings.ToLower(t.text) {
		case "true":
			return literal{true}, nil
		case "false":
			return literal{false}, nil
		case "null", "nil":
			return literal{nil}, nil
		case "and", "or", "not", "contains":
			return nil, p.errorf(t, "unexpected %q", t.text)
		}
		return path{t.text}, nil
	case tokEOF:
		return nil, p.errorf(t, "unexpected end of expression")
	default:
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
}
