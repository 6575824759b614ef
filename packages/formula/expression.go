package formula

import (
	"slices"
	"strings"
	"time"
)

// Expression owns formula text, its compiled AST and the cached value of
// the last evaluation. The AST is discarded whenever the text changes and
// rebuilt lazily on the next read.
type Expression struct {
	text  string
	owner OwnerRef
	env   *Environment

	root          Node
	compiled      bool
	macrosPending bool // text still holds backtick macros to expand
	compileErr    error
	reduced       bool

	cached    Value
	valid     bool
	cacheable bool

	evaluations int
}

// NewExpression creates an uncompiled expression. Macros in text are not
// expanded; use SetText for that.
func NewExpression(text string, owner OwnerRef, env *Environment) *Expression {
	if env == nil {
		env = DefaultEnvironment()
	}
	return &Expression{text: text, owner: owner, env: env}
}

func (e *Expression) Text() string      { return e.text }
func (e *Expression) Owner() OwnerRef   { return e.owner }
func (e *Expression) Root() Node        { return e.root }
func (e *Expression) Evaluations() int  { return e.evaluations }
func (e *Expression) Cacheable() bool   { return e.cacheable }
func (e *Expression) CompileErr() error { return e.compileErr }

// SetText replaces the formula text and drops the compiled tree. Backtick
// macros are evaluated now and spliced into the stored text as literals; a
// macro that fails leaves the expression unchanged.
func (e *Expression) SetText(text string) error {
	if strings.ContainsRune(text, '`') {
		expanded, err := e.expandMacros(text)
		if err != nil {
			return err
		}
		text = expanded
	}
	e.text, e.macrosPending = text, false
	e.root, e.compiled, e.compileErr, e.reduced = nil, false, nil, false
	e.Invalidate()
	return nil
}

func (e *Expression) expandMacros(text string) (string, error) {
	root, err := ParseFormula(text)
	if err != nil {
		return "", err
	}
	var macros []*ImmediateEvalNode
	Walk(root, func(n Node) bool {
		if m, ok := n.(*ImmediateEvalNode); ok {
			macros = append(macros, m)
			return false
		}
		return true
	})

	ctx := NewContext(e.env, e.owner, nil)
	runes := []rune(text)
	// splice from the end so earlier offsets stay valid
	slices.SortFunc(macros, func(a, b *ImmediateEvalNode) int { return b.Position.Start - a.Position.Start })
	for _, m := range macros {
		v, err := m.Inner.Eval(ctx)
		if err != nil {
			return "", err
		}
		lit, err := v.FormulaText()
		if err != nil {
			return "", err
		}
		runes = slices.Concat(runes[:m.Position.Start], []rune(lit), runes[m.Position.End:])
	}
	return string(runes), nil
}

// Compile parses the text. Blank text compiles to Null. A failed compile is
// remembered and returned by every read until the text changes. Pending
// macros are expanded first; if that fails the expression stays uncompiled
// and the next call tries again.
func (e *Expression) Compile() error {
	if e.macrosPending {
		expanded, err := e.expandMacros(e.text)
		if err != nil {
			countError(err)
			return err
		}
		e.text, e.macrosPending = expanded, false
	}
	start := time.Now()
	var root Node
	var err error
	if strings.TrimSpace(e.text) == "" {
		root = &ImmediateNode{Value: Null}
	} else {
		root, err = ParseFormula(e.text)
	}
	compileDuration.Observe(time.Since(start).Seconds())

	e.compiled, e.reduced = true, false
	e.Invalidate()
	if err != nil {
		compileTotal.WithLabelValues("error").Inc()
		countError(err)
		e.root, e.compileErr = nil, err
		logger().Debug("formula compile failed", "formula", e.text, "error", err)
		return err
	}
	compileTotal.WithLabelValues("ok").Inc()
	e.root, e.compileErr = root, nil
	return nil
}

// NeedsEvaluation reports whether the next Value call will evaluate the AST
func (e *Expression) NeedsEvaluation() bool {
	return !e.compiled || !e.valid || !e.cacheable
}

// Value returns the cached value or evaluates the AST, reporting every
// PropertyDependent read to sink. The first successful evaluation folds the
// tree.
func (e *Expression) Value(sink DependencySink) (Value, error) {
	if !e.compiled {
		if err := e.Compile(); err != nil {
			return Null, err
		}
	}
	if e.compileErr != nil {
		return Null, e.compileErr
	}
	if e.valid && e.cacheable {
		cacheHitTotal.Inc()
		return e.cached, nil
	}

	e.evaluations++
	evaluationTotal.Inc()
	v, err := e.root.Eval(NewContext(e.env, e.owner, sink))
	if err != nil {
		e.valid = false
		countError(err)
		return Null, err
	}
	if !e.reduced {
		e.root = Reduce(e.root)
		e.reduced = true
	}
	e.cacheable = Volatility(e.root) != Variable
	e.cached, e.valid = v, true
	return v, nil
}

// Invalidate drops the cached value and keeps the AST
func (e *Expression) Invalidate() {
	e.cached, e.valid = Null, false
}

// DataSource returns the root when it is a two-way @ reference, compiling
// first if needed.
func (e *Expression) DataSource() (*DataSourceNode, bool) {
	if !e.compiled {
		if err := e.Compile(); err != nil {
			return nil, false
		}
	}
	ds, ok := e.root.(*DataSourceNode)
	return ds, ok
}

// context creates an untracked evaluation context for writes
func (e *Expression) context() *Context {
	return NewContext(e.env, e.owner, nil)
}
