package formula

import (
	"fmt"
	"image/color"
	"slices"
	"time"
)

// FormulaChangingFunc is called before a formula change is applied. A
// non-nil error vetoes the change; its message is reported to the caller.
type FormulaChangingFunc func(p *FormulaProperty, oldText, newText string) error

// ValueChangedFunc is called after the formula changed or the cached value
// was invalidated. It must not read formula values synchronously.
type ValueChangedFunc func(p *FormulaProperty)

type changingHandler struct{ fn FormulaChangingFunc }
type changedHandler struct{ fn ValueChangedFunc }

// FormulaProperty is one formula-backed field of a host object: a value
// formula, an optional lock formula computing its LockLevel, and the
// dependency edges both built during their last evaluation.
type FormulaProperty struct {
	name  string
	owner OwnerRef
	env   *Environment

	value *Expression
	lock  *Expression // nil means Enabled

	valueEdges  *edgeSet
	lockEdges   *edgeSet
	subscribers map[*edgeSet]struct{}

	changing []*changingHandler
	changed  []*changedHandler

	lockText string // pending WithLockFormula text

	evaluating bool
	writing    bool
	disposed   bool
}

// Option configures a FormulaProperty
type Option func(*FormulaProperty)

// WithEnvironment evaluates the property in env instead of the default one
func WithEnvironment(env *Environment) Option {
	return func(p *FormulaProperty) { p.env = env }
}

// WithLockFormula sets the formula computing the property's LockLevel
func WithLockFormula(text string) Option {
	return func(p *FormulaProperty) { p.lockText = text }
}

// NewFormulaProperty creates a property holding formula. owner may be nil
// for free-standing cells.
func NewFormulaProperty(name string, owner OwnerRef, formula string, opts ...Option) *FormulaProperty {
	p := &FormulaProperty{
		name:        name,
		owner:       owner,
		subscribers: map[*edgeSet]struct{}{},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.env == nil {
		p.env = DefaultEnvironment()
	}
	if p.lockText != "" {
		p.lock = NewExpression(p.lockText, owner, p.env)
	}
	p.valueEdges = newEdgeSet(p, p.invalidate)
	p.lockEdges = newEdgeSet(p, func(map[*FormulaProperty]struct{}) {
		if p.lock != nil {
			p.lock.Invalidate()
		}
	})

	p.value = NewExpression("", owner, p.env)
	if err := p.value.SetText(formula); err != nil {
		// expansion is retried on read
		logger().Warn("default formula macro failed", "property", name, "formula", formula, "error", err)
		p.value = NewExpression(formula, owner, p.env)
		p.value.macrosPending = true
	}
	return p
}

func (p *FormulaProperty) Name() string            { return p.name }
func (p *FormulaProperty) Owner() OwnerRef         { return p.owner }
func (p *FormulaProperty) Formula() string         { return p.value.Text() }
func (p *FormulaProperty) Disposed() bool          { return p.disposed }
func (p *FormulaProperty) Evaluations() int        { return p.value.Evaluations() }
func (p *FormulaProperty) Expression() *Expression { return p.value }

func (p *FormulaProperty) String() string {
	return fmt.Sprintf("%s = %s", p.name, p.value.Text())
}

// Value returns the cached value, or evaluates the formula, rebuilding the
// dependency edges from the reads it makes.
func (p *FormulaProperty) Value() (Value, error) {
	if p.disposed {
		return Null, NewError(ErrorCodeNoOwner, p.name+" has been disposed")
	}
	if p.evaluating {
		return Null, errorf(ErrorCodeCircular, "circular reference through %s", p.name)
	}
	if !p.value.NeedsEvaluation() {
		return p.value.Value(nil)
	}

	p.evaluating = true
	defer func() { p.evaluating = false }()
	p.valueEdges.clear()
	v, err := p.value.Value(p.valueEdges.sink())
	if err != nil {
		logger().Debug("formula evaluation failed", "property", p.name, "formula", p.value.Text(), "error", err)
	}
	return v, err
}

// SetFormula replaces the formula text. The change is ignored when the lock
// level does not admit level, and rejected when a FormulaChanging handler
// vetoes it.
func (p *FormulaProperty) SetFormula(text string, level EditingLevel) error {
	if p.disposed {
		return NewError(ErrorCodeNoOwner, p.name+" has been disposed")
	}
	if !p.CanEdit(level) {
		p.gated(level)
		return nil
	}
	return p.setFormula(text)
}

func (p *FormulaProperty) setFormula(text string) error {
	old := p.value.Text()
	for _, h := range slices.Clone(p.changing) {
		if err := h.fn(p, old, text); err != nil {
			logger().Debug("formula change vetoed", "property", p.name, "formula", text, "reason", err)
			return NewApplicationError(FailedPrecondition, err.Error())
		}
	}
	if err := p.value.SetText(text); err != nil {
		return err
	}
	p.valueEdges.clear()
	p.Invalidate()
	return nil
}

// SetValue stores v. When the formula is a two-way @ reference the value is
// written through to the referenced property; otherwise the formula is
// replaced by a literal of v.
func (p *FormulaProperty) SetValue(v Value, level EditingLevel) error {
	if p.disposed {
		return NewError(ErrorCodeNoOwner, p.name+" has been disposed")
	}
	if !p.CanEdit(level) {
		p.gated(level)
		return nil
	}
	if ds, ok := p.value.DataSource(); ok {
		if p.writing {
			return errorf(ErrorCodeCircular, "circular write through %s", p.name)
		}
		p.writing = true
		err := ds.SetValue(p.value.context(), v)
		p.writing = false
		if err != nil {
			return err
		}
		p.Invalidate()
		return nil
	}
	text, err := v.FormulaText()
	if err != nil {
		return err
	}
	return p.setFormula(text)
}

// IsDataSource reports whether the formula is a two-way @ reference
func (p *FormulaProperty) IsDataSource() bool {
	_, ok := p.value.DataSource()
	return ok
}

func (p *FormulaProperty) gated(level EditingLevel) {
	gatedWriteTotal.Inc()
	logger().Debug("write ignored by lock level", "property", p.name, "editing_level", level)
}

// Invalidate drops the cached values of p and of everything depending on
// it, then notifies ValueChanged observers.
func (p *FormulaProperty) Invalidate() {
	p.invalidate(map[*FormulaProperty]struct{}{})
}

func (p *FormulaProperty) invalidate(visited map[*FormulaProperty]struct{}) {
	if _, ok := visited[p]; ok {
		return
	}
	visited[p] = struct{}{}

	invalidationTotal.Inc()
	p.value.Invalidate()
	for _, h := range slices.Clone(p.changed) {
		h.fn(p)
	}
	for es := range p.subscribers {
		es.fire(visited)
	}
}

// LockFormula returns the lock formula text, empty when unlocked
func (p *FormulaProperty) LockFormula() string {
	if p.lock == nil {
		return ""
	}
	return p.lock.Text()
}

// SetLockFormula replaces the lock formula. Empty text removes it.
func (p *FormulaProperty) SetLockFormula(text string) error {
	p.lockEdges.clear()
	if text == "" {
		p.lock = nil
		return nil
	}
	if p.lock == nil {
		p.lock = NewExpression("", p.owner, p.env)
	}
	return p.lock.SetText(text)
}

// LockLevel evaluates the lock formula
func (p *FormulaProperty) LockLevel() (LockLevel, error) {
	if p.lock == nil {
		return Enabled, nil
	}
	if p.lock.NeedsEvaluation() {
		p.lockEdges.clear()
	}
	v, err := p.lock.Value(p.lockEdges.sink())
	if err != nil {
		return Disabled, err
	}
	return lockLevelOf(v)
}

// CanEdit reports whether an edit at level would be applied. A lock formula
// that fails to evaluate locks the property.
func (p *FormulaProperty) CanEdit(level EditingLevel) bool {
	lock, err := p.LockLevel()
	if err != nil {
		logger().Warn("lock formula failed", "property", p.name, "formula", p.LockFormula(), "error", err)
		return false
	}
	return lock.Allows(level)
}

// OnFormulaChanging registers a veto hook and returns a function removing it
func (p *FormulaProperty) OnFormulaChanging(fn FormulaChangingFunc) func() {
	h := &changingHandler{fn: fn}
	p.changing = append(p.changing, h)
	return func() {
		p.changing = slices.DeleteFunc(p.changing, func(x *changingHandler) bool { return x == h })
	}
}

// OnValueChanged registers an observer and returns a function removing it
func (p *FormulaProperty) OnValueChanged(fn ValueChangedFunc) func() {
	h := &changedHandler{fn: fn}
	p.changed = append(p.changed, h)
	return func() {
		p.changed = slices.DeleteFunc(p.changed, func(x *changedHandler) bool { return x == h })
	}
}

// Dispose invalidates the dependents of p and unsubscribes it from every
// source. A disposed property reports a NoOwner error on read.
func (p *FormulaProperty) Dispose() {
	if p.disposed {
		return
	}
	p.Invalidate()
	p.valueEdges.clear()
	p.lockEdges.clear()
	for es := range p.subscribers {
		es.remove(p)
	}
	p.subscribers = map[*edgeSet]struct{}{}
	p.changing, p.changed = nil, nil
	p.disposed = true
}

// Float reads the value as a number. Distances are in millimeters and angles
// in degrees.
func (p *FormulaProperty) Float() (float64, error) {
	v, err := p.Value()
	if err != nil {
		return 0, err
	}
	f, ok := v.Float()
	if !ok {
		return 0, p.kindError(v, "a number")
	}
	return f, nil
}

func (p *FormulaProperty) Int() (int64, error) {
	v, err := p.Value()
	if err != nil {
		return 0, err
	}
	n, ok := v.Int()
	if !ok {
		return 0, p.kindError(v, "an integer")
	}
	return n, nil
}

// Text renders any value for display
func (p *FormulaProperty) Text() (string, error) {
	v, err := p.Value()
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

func (p *FormulaProperty) Bool() (bool, error) {
	v, err := p.Value()
	if err != nil {
		return false, err
	}
	b, ok := v.Bool()
	if !ok {
		return false, p.kindError(v, "a Boolean")
	}
	return b, nil
}

// Distance reads a length. Plain numbers are taken in the configured
// default unit.
func (p *FormulaProperty) Distance() (Distance, error) {
	v, err := p.Value()
	if err != nil {
		return Distance{}, err
	}
	if v.Kind() == KindDistance {
		return v.Distance(), nil
	}
	if f, ok := v.Float(); ok && v.Kind().IsNumeric() {
		u, _ := LengthUnit(p.env.Config.DefaultUnit)
		return Distance{Value: f, Unit: u}, nil
	}
	return Distance{}, p.kindError(v, "a Distance")
}

// Angle reads an angle. Plain numbers are degrees.
func (p *FormulaProperty) Angle() (Angle, error) {
	v, err := p.Value()
	if err != nil {
		return Angle{}, err
	}
	if v.Kind() == KindAngle {
		return v.Angle(), nil
	}
	if f, ok := v.Float(); ok && v.Kind().IsNumeric() {
		return Angle{Degrees: f}, nil
	}
	return Angle{}, p.kindError(v, "an Angle")
}

func (p *FormulaProperty) Color() (color.RGBA, error) {
	v, err := p.Value()
	if err != nil {
		return color.RGBA{}, err
	}
	if v.Kind() != KindColor {
		return color.RGBA{}, p.kindError(v, "a Color")
	}
	return v.Color(), nil
}

func (p *FormulaProperty) Time() (time.Time, error) {
	v, err := p.Value()
	if err != nil {
		return time.Time{}, err
	}
	if v.Kind() != KindDateTime {
		return time.Time{}, p.kindError(v, "a DateTime")
	}
	return v.Time(), nil
}

func (p *FormulaProperty) kindError(v Value, want string) error {
	return errorf(ErrorCodeValue, "%s is %s, not %s", p.name, v.Kind(), want)
}
