package expr

import (
	"sync"
)

// BinaryOp compares two operand values.
type BinaryOp func(left, right any) bool

// Program is a compiled expression.
type Program struct {
	src  string
	root node
}

// String returns the source text.
func (p *Program) String() string { return p.src }

// Eval runs the program against vars.
func (p *Program) Eval(vars map[string]any) bool {
	return IsTruthy(p.root.eval(vars))
}

// Evaluator compiles and evaluates expressions. It is safe for concurrent
// use.
type Evaluator struct {
	customOps map[string]BinaryOp
	cache     sync.Map // string → *Program
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCustomOperator registers a binary operator used as a whole word.
func WithCustomOperator(name string, fn BinaryOp) Option {
	return func(e *Evaluator) {
		if e.customOps == nil {
			e.customOps = make(map[string]BinaryOp)
		}
		e.customOps[name] = fn
	}
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compile parses src. Programs are cached per source text.
func (e *Evaluator) Compile(src string) (*Program, error) {
	if p, ok := e.cache.Load(src); ok {
		return p.(*Program), nil
	}
	root, err := parse(src, e.customOps)
	if err != nil {
		return nil, err
	}
	p := &Program{src: src, root: root}
	e.cache.Store(src, p)
	return p, nil
}

// Evaluate compiles and runs src against vars. An empty expression is
// false.
func (e *Evaluator) Evaluate(src string, vars map[string]any) (bool, error) {
	p, err := e.Compile(src)
	if err != nil {
		return false, err
	}
	return p.Eval(vars), nil
}

var defaultEvaluator = New()

// Eval evaluates src with the default evaluator.
func Eval(src string, vars map[string]any) (bool, error) {
	return defaultEvaluator.Evaluate(src, vars)
}

// Check reports whether src parses with the default evaluator.
func Check(src string) error {
	_, err := defaultEvaluator.Compile(src)
	return err
}
