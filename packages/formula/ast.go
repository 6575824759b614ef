package formula

import (
	"strings"
)

// EvalSpec classifies how a node's value may change. The order is from
// least to most volatile.
type EvalSpec uint8

const (
	// Constant never changes
	Constant EvalSpec = iota
	// FunctionalDependent is a pure function of its arguments
	FunctionalDependent
	// PropertyDependent changes only when a tracked dependency signals
	PropertyDependent
	// Variable may differ on every evaluation
	Variable
)

func (s EvalSpec) String() string {
	switch s {
	case Constant:
		return "Constant"
	case FunctionalDependent:
		return "FunctionalDependent"
	case PropertyDependent:
		return "PropertyDependent"
	}
	return "Variable"
}

type NodePosition struct {
	Start int
	End   int
}

// Node is a node of the formula AST. Nodes form a strict tree; Reduce may
// replace subtrees with ImmediateNodes after the first evaluation.
type Node interface {
	Eval(ctx *Context) (Value, error)
	// Spec is the node's own volatility, not counting its children.
	Spec() EvalSpec
	Children() []Node
	GetPosition() NodePosition
	ToString() string

	// lastValue returns the value of the most recent successful Eval.
	lastValue() (Value, bool)
}

// evalState remembers a node's last result so Reduce can fold it
type evalState struct {
	value     Value
	evaluated bool
}

func (s *evalState) record(v Value, err error) (Value, error) {
	if err != nil {
		s.evaluated = false
		return Null, err
	}
	s.value, s.evaluated = v, true
	return v, nil
}

func (s *evalState) lastValue() (Value, bool) { return s.value, s.evaluated }

// ImmediateNode holds a literal or a folded value
type ImmediateNode struct {
	Value    Value
	Text     string // source text, if any
	Position NodePosition
}

func (n *ImmediateNode) Eval(ctx *Context) (Value, error) { return n.Value, nil }
func (n *ImmediateNode) Spec() EvalSpec                   { return Constant }
func (n *ImmediateNode) Children() []Node                 { return nil }
func (n *ImmediateNode) GetPosition() NodePosition        { return n.Position }
func (n *ImmediateNode) lastValue() (Value, bool)         { return n.Value, true }

func (n *ImmediateNode) ToString() string {
	if n.Text != "" {
		return n.Text
	}
	s, err := n.Value.FormulaText()
	if err != nil {
		return n.Value.String()
	}
	return s
}

// BinaryOpNode represents a binary operation
type BinaryOpNode struct {
	evalState
	Op       BinaryOp
	Left     Node
	Right    Node
	Position NodePosition
}

func (n *BinaryOpNode) Eval(ctx *Context) (Value, error) {
	left, err := n.Left.Eval(ctx)
	if err != nil {
		return n.record(Null, err)
	}
	right, err := n.Right.Eval(ctx)
	if err != nil {
		return n.record(Null, err)
	}
	v, err := ApplyBinary(n.Op, left, right)
	return n.record(v, atPosition(err, n.Position))
}

func (n *BinaryOpNode) Spec() EvalSpec            { return FunctionalDependent }
func (n *BinaryOpNode) Children() []Node          { return []Node{n.Left, n.Right} }
func (n *BinaryOpNode) GetPosition() NodePosition { return n.Position }

func (n *BinaryOpNode) ToString() string {
	return n.Left.ToString() + n.Op.String() + n.Right.ToString()
}

// UnaryOpNode represents a unary operation
type UnaryOpNode struct {
	evalState
	Op       UnaryOp
	Operand  Node
	Position NodePosition
}

func (n *UnaryOpNode) Eval(ctx *Context) (Value, error) {
	v, err := n.Operand.Eval(ctx)
	if err != nil {
		return n.record(Null, err)
	}
	v, err = ApplyUnary(n.Op, v)
	return n.record(v, atPosition(err, n.Position))
}

func (n *UnaryOpNode) Spec() EvalSpec            { return FunctionalDependent }
func (n *UnaryOpNode) Children() []Node          { return []Node{n.Operand} }
func (n *UnaryOpNode) GetPosition() NodePosition { return n.Position }
func (n *UnaryOpNode) ToString() string          { return n.Op.String() + n.Operand.ToString() }

// GroupNode is a parenthesised expression. It is transparent for evaluation.
type GroupNode struct {
	evalState
	Inner    Node
	Position NodePosition
}

func (n *GroupNode) Eval(ctx *Context) (Value, error) { return n.record(n.Inner.Eval(ctx)) }
func (n *GroupNode) Spec() EvalSpec                   { return FunctionalDependent }
func (n *GroupNode) Children() []Node                 { return []Node{n.Inner} }
func (n *GroupNode) GetPosition() NodePosition        { return n.Position }
func (n *GroupNode) ToString() string                 { return "(" + n.Inner.ToString() + ")" }

// PropertyNode reads a named property, optionally indexed, of an optional
// target.
type PropertyNode struct {
	evalState
	Target   Node // nil resolves against owner, built-ins and constants
	Name     string
	Args     []Node
	Indexed  bool
	Position NodePosition

	spec EvalSpec
}

func (n *PropertyNode) Eval(ctx *Context) (Value, error) {
	target, args, err := evalOperands(ctx, n.Target, n.Args)
	if err != nil {
		return n.record(Null, err)
	}
	v, spec, err := ctx.ResolveProperty(target, n.Target != nil, n.Name, args)
	if err == nil {
		n.spec = spec
	}
	return n.record(v, atPosition(err, n.Position))
}

// Spec is the volatility recorded by the last resolution, Variable before
// the node has been evaluated.
func (n *PropertyNode) Spec() EvalSpec {
	if !n.evaluated {
		return Variable
	}
	return n.spec
}

func (n *PropertyNode) Children() []Node          { return withTarget(n.Target, n.Args) }
func (n *PropertyNode) GetPosition() NodePosition { return n.Position }

func (n *PropertyNode) ToString() string {
	var sb strings.Builder
	if n.Target != nil {
		sb.WriteString(n.Target.ToString())
		sb.WriteByte('.')
	}
	sb.WriteString(n.Name)
	if n.Indexed {
		sb.WriteByte('[')
		writeArgs(&sb, n.Args)
		sb.WriteByte(']')
	}
	return sb.String()
}

// setValue writes v back through the same resolution path as Eval
func (n *PropertyNode) setValue(ctx *Context, v Value) error {
	target, args, err := evalOperands(ctx, n.Target, n.Args)
	if err != nil {
		return err
	}
	return atPosition(ctx.SetProperty(target, n.Target != nil, n.Name, args, v), n.Position)
}

// MethodNode calls a named method or built-in function
type MethodNode struct {
	evalState
	Target   Node
	Name     string
	Args     []Node
	Position NodePosition

	spec EvalSpec
}

func (n *MethodNode) Eval(ctx *Context) (Value, error) {
	target, args, err := evalOperands(ctx, n.Target, n.Args)
	if err != nil {
		return n.record(Null, err)
	}
	v, spec, err := ctx.ResolveMethod(target, n.Target != nil, n.Name, args)
	if err == nil {
		n.spec = spec
	}
	return n.record(v, atPosition(err, n.Position))
}

func (n *MethodNode) Spec() EvalSpec {
	if !n.evaluated {
		return Variable
	}
	return n.spec
}

func (n *MethodNode) Children() []Node          { return withTarget(n.Target, n.Args) }
func (n *MethodNode) GetPosition() NodePosition { return n.Position }

func (n *MethodNode) ToString() string {
	var sb strings.Builder
	if n.Target != nil {
		sb.WriteString(n.Target.ToString())
		sb.WriteByte('.')
	}
	sb.WriteString(n.Name)
	sb.WriteByte('(')
	writeArgs(&sb, n.Args)
	sb.WriteByte(')')
	return sb.String()
}

// DataSourceNode is the two-way reference @Prop or @Prop,unit. Reads convert
// a plain number into the unit; writes convert back before storing.
type DataSourceNode struct {
	evalState
	Property *PropertyNode
	Unit     string
	Position NodePosition
}

func (n *DataSourceNode) Eval(ctx *Context) (Value, error) {
	v, err := n.Property.Eval(ctx)
	if err != nil || n.Unit == "" {
		return n.record(v, err)
	}
	return n.record(toUnit(v, n.Unit))
}

// Spec is PropertyDependent so the node is never folded away; writes need
// the property path.
func (n *DataSourceNode) Spec() EvalSpec            { return PropertyDependent }
func (n *DataSourceNode) Children() []Node          { return []Node{n.Property} }
func (n *DataSourceNode) GetPosition() NodePosition { return n.Position }

func (n *DataSourceNode) ToString() string {
	if n.Unit != "" {
		return "@" + n.Property.ToString() + "," + n.Unit
	}
	return "@" + n.Property.ToString()
}

// SetValue writes v to the referenced property. With a unit, a distance or
// angle is converted into that unit, and stored as a plain number when the
// property currently holds one.
func (n *DataSourceNode) SetValue(ctx *Context, v Value) error {
	if n.Unit != "" {
		current, err := n.Property.Eval(ctx)
		if err != nil {
			return err
		}
		v, err = fromUnit(v, n.Unit, current.Kind().IsNumeric())
		if err != nil {
			return err
		}
	}
	return n.Property.setValue(ctx, v)
}

func toUnit(v Value, unit string) (Value, error) {
	switch v.Kind() {
	case KindDistance:
		if u, ok := LengthUnit(unit); ok {
			return DistanceValue(v.Distance().In(u)), nil
		}
	case KindAngle:
		if _, ok := angleUnits[strings.ToLower(unit)]; ok {
			return v, nil
		}
	default:
		if f, ok := v.Float(); ok {
			if uv, ok := UnitValue(f, unit); ok {
				return uv, nil
			}
		}
	}
	return Null, errorf(ErrorCodeValue, "cannot convert %s to %s", v.Kind(), unit)
}

func fromUnit(v Value, unit string, numeric bool) (Value, error) {
	unit = strings.ToLower(unit)
	switch v.Kind() {
	case KindDistance:
		u, ok := LengthUnit(unit)
		if !ok {
			break
		}
		d := v.Distance().In(u)
		if numeric {
			return FloatValue(d.Value), nil
		}
		return DistanceValue(d), nil
	case KindAngle:
		perUnit, ok := angleUnits[unit]
		if !ok {
			break
		}
		if numeric {
			return FloatValue(v.Angle().Degrees / perUnit), nil
		}
		return v, nil
	default:
		if !v.Kind().IsNumeric() {
			break
		}
		if numeric {
			return v, nil
		}
		// a plain number is taken in the data source unit
		f, _ := v.Float()
		if uv, ok := UnitValue(f, unit); ok {
			return uv, nil
		}
	}
	return Null, errorf(ErrorCodeValue, "cannot store %s as %s", v.Kind(), unit)
}

// ImmediateEvalNode is a backtick macro. It is evaluated once when the
// formula text is assigned and replaced by its literal result.
type ImmediateEvalNode struct {
	evalState
	Inner    Node
	Position NodePosition
}

func (n *ImmediateEvalNode) Eval(ctx *Context) (Value, error) { return n.record(n.Inner.Eval(ctx)) }
func (n *ImmediateEvalNode) Spec() EvalSpec                   { return Variable }
func (n *ImmediateEvalNode) Children() []Node                 { return []Node{n.Inner} }
func (n *ImmediateEvalNode) GetPosition() NodePosition        { return n.Position }
func (n *ImmediateEvalNode) ToString() string                 { return "`" + n.Inner.ToString() + "`" }

// ReservedCallNode is IF, AND, OR, NOT or CASE applied to arguments. These
// parse but have no evaluation semantics.
type ReservedCallNode struct {
	evalState
	Word     string
	Args     []Node
	Position NodePosition
}

func (n *ReservedCallNode) Eval(ctx *Context) (Value, error) {
	return n.record(Null, &Error{
		Code:    ErrorCodeNotImplemented,
		Pos:     n.Position.Start,
		Message: n.Word + " is not implemented",
	})
}

func (n *ReservedCallNode) Spec() EvalSpec            { return FunctionalDependent }
func (n *ReservedCallNode) Children() []Node          { return n.Args }
func (n *ReservedCallNode) GetPosition() NodePosition { return n.Position }

func (n *ReservedCallNode) ToString() string {
	var sb strings.Builder
	sb.WriteString(n.Word)
	sb.WriteByte('(')
	writeArgs(&sb, n.Args)
	sb.WriteByte(')')
	return sb.String()
}

func evalOperands(ctx *Context, target Node, args []Node) (Value, []Value, error) {
	var tv Value
	if target != nil {
		v, err := target.Eval(ctx)
		if err != nil {
			return Null, nil, err
		}
		tv = v
	}
	var vals []Value
	if len(args) > 0 {
		vals = make([]Value, len(args))
		for i, a := range args {
			v, err := a.Eval(ctx)
			if err != nil {
				return Null, nil, err
			}
			vals[i] = v
		}
	}
	return tv, vals, nil
}

func withTarget(target Node, args []Node) []Node {
	if target == nil {
		return args
	}
	return append([]Node{target}, args...)
}

func writeArgs(sb *strings.Builder, args []Node) {
	for i, a := range args {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(a.ToString())
	}
}

// atPosition attaches a position to a formula error that has none
func atPosition(err error, pos NodePosition) error {
	if fe, ok := err.(*Error); ok && fe.Pos == NoPosition {
		return &Error{Code: fe.Code, Pos: pos.Start, Message: fe.Message}
	}
	return err
}
