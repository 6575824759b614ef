package formula

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpEqual
	BinOpNotEqual
	BinOpLess
	BinOpLessEqual
	BinOpGreater
	BinOpGreaterEqual
)

var binaryOpText = [...]string{
	BinOpAdd:          "+",
	BinOpSubtract:     "-",
	BinOpMultiply:     "*",
	BinOpDivide:       "/",
	BinOpEqual:        "=",
	BinOpNotEqual:     "<>",
	BinOpLess:         "<",
	BinOpLessEqual:    "<=",
	BinOpGreater:      ">",
	BinOpGreaterEqual: ">=",
}

func (op BinaryOp) String() string { return binaryOpText[op] }

// IsComparison reports whether op yields a Bool
func (op BinaryOp) IsComparison() bool { return op >= BinOpEqual }

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
)

func (op UnaryOp) String() string {
	if op == UnaryOpMinus {
		return "-"
	}
	return "+"
}

type binaryFunc func(l, r Value) (Value, error)
type unaryFunc func(v Value) (Value, error)

type binaryKey struct {
	op   BinaryOp
	l, r Kind
}

type unaryKey struct {
	op UnaryOp
	k  Kind
}

// binaryTable is the closed set of operator/kind combinations. Anything not
// listed is a #VALUE! error.
var (
	binaryTable = map[binaryKey]binaryFunc{}
	unaryTable  = map[unaryKey]unaryFunc{}
)

var (
	numericKinds  = []Kind{KindInt32, KindInt64, KindUint64, KindDecimal, KindFloat}
	allKinds      = []Kind{KindNull, KindInt32, KindInt64, KindUint64, KindDecimal, KindFloat, KindString, KindBool, KindDistance, KindAngle, KindColor, KindDateTime, KindEnum, KindObject}
	orderedKinds  = []Kind{KindString, KindDistance, KindAngle, KindDateTime, KindEnum}
	unitKinds     = []Kind{KindDistance, KindAngle}
	arithmeticOps = []BinaryOp{BinOpAdd, BinOpSubtract, BinOpMultiply, BinOpDivide}
	comparisonOps = []BinaryOp{BinOpEqual, BinOpNotEqual, BinOpLess, BinOpLessEqual, BinOpGreater, BinOpGreaterEqual}
	equalityOps   = []BinaryOp{BinOpEqual, BinOpNotEqual}
	additiveOps   = []BinaryOp{BinOpAdd, BinOpSubtract}
	scalingOps    = []BinaryOp{BinOpMultiply, BinOpDivide}
)

func registerBinary(op BinaryOp, l, r Kind, f binaryFunc) {
	binaryTable[binaryKey{op, l, r}] = f
}

func registerUnary(op UnaryOp, k Kind, f unaryFunc) {
	unaryTable[unaryKey{op, k}] = f
}

func init() {
	for _, l := range numericKinds {
		for _, r := range numericKinds {
			for _, op := range arithmeticOps {
				registerBinary(op, l, r, numericArithmetic(op))
			}
			for _, op := range comparisonOps {
				registerBinary(op, l, r, compareWith(op, compareNumeric))
			}
		}
	}

	// string concatenation accepts any right or left operand
	for _, k := range allKinds {
		registerBinary(BinOpAdd, KindString, k, concat)
		registerBinary(BinOpAdd, k, KindString, concat)
	}

	for _, k := range orderedKinds {
		for _, op := range comparisonOps {
			registerBinary(op, k, k, compareWith(op, compareSameKind))
		}
	}
	for _, k := range []Kind{KindBool, KindColor, KindObject} {
		for _, op := range equalityOps {
			registerBinary(op, k, k, compareWith(op, compareSameKind))
		}
	}
	// Null compares equal only to Null
	for _, k := range allKinds {
		for _, op := range equalityOps {
			registerBinary(op, KindNull, k, compareWith(op, compareSameKind))
			registerBinary(op, k, KindNull, compareWith(op, compareSameKind))
		}
	}

	for _, k := range unitKinds {
		for _, op := range additiveOps {
			registerBinary(op, k, k, unitAdditive(op))
		}
		registerBinary(BinOpDivide, k, k, unitRatio)
		for _, n := range numericKinds {
			for _, op := range scalingOps {
				registerBinary(op, k, n, unitScale(op))
			}
			registerBinary(BinOpMultiply, n, k, func(l, r Value) (Value, error) {
				return unitScale(BinOpMultiply)(r, l)
			})
		}
	}

	for _, n := range numericKinds {
		for _, op := range additiveOps {
			registerBinary(op, KindDateTime, n, dateShift(op))
		}
		registerBinary(BinOpAdd, n, KindDateTime, func(l, r Value) (Value, error) {
			return dateShift(BinOpAdd)(r, l)
		})
	}
	registerBinary(BinOpSubtract, KindDateTime, KindDateTime, dateDiff)

	for _, k := range allKinds {
		registerUnary(UnaryOpPlus, k, func(v Value) (Value, error) { return v, nil })
	}
	for _, k := range numericKinds {
		registerUnary(UnaryOpMinus, k, negateNumeric)
	}
	registerUnary(UnaryOpMinus, KindDistance, func(v Value) (Value, error) {
		d := v.Distance()
		d.Value = -d.Value
		return DistanceValue(d), nil
	})
	registerUnary(UnaryOpMinus, KindAngle, func(v Value) (Value, error) {
		return AngleValue(Angle{Degrees: -v.f}), nil
	})
}

// ApplyBinary applies op to l and r through the dispatch table.
func ApplyBinary(op BinaryOp, l, r Value) (Value, error) {
	f, ok := binaryTable[binaryKey{op, l.kind, r.kind}]
	if !ok {
		return Null, errorf(ErrorCodeValue, "operator %s is not defined for %s and %s", op, l.kind, r.kind)
	}
	return f(l, r)
}

// ApplyUnary applies op to v through the dispatch table.
func ApplyUnary(op UnaryOp, v Value) (Value, error) {
	f, ok := unaryTable[unaryKey{op, v.kind}]
	if !ok {
		return Null, errorf(ErrorCodeValue, "unary %s is not defined for %s", op, v.kind)
	}
	return f(v)
}

// Operation is one entry of the operator dispatch table
type Operation struct {
	Op    string
	Left  Kind
	Right Kind // KindNull for unary operations
	Unary bool
}

// SupportedOperations enumerates every operator and operand kind
// combination the engine evaluates, in a stable order.
func SupportedOperations() []Operation {
	ops := make([]Operation, 0, len(binaryTable)+len(unaryTable))
	for k := range binaryTable {
		ops = append(ops, Operation{Op: k.op.String(), Left: k.l, Right: k.r})
	}
	for k := range unaryTable {
		ops = append(ops, Operation{Op: k.op.String(), Left: k.k, Unary: true})
	}
	slices.SortFunc(ops, func(a, b Operation) int {
		return cmp.Or(
			cmp.Compare(a.Op, b.Op),
			cmp.Compare(a.Left, b.Left),
			cmp.Compare(a.Right, b.Right),
			boolCompare(a.Unary, b.Unary),
		)
	})
	return ops
}

func boolCompare(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	}
	return -1
}

func isSigned(k Kind) bool { return k == KindInt32 || k == KindInt64 }

func numericArithmetic(op BinaryOp) binaryFunc {
	return func(l, r Value) (Value, error) {
		if op == BinOpDivide {
			return divideNumeric(l, r)
		}
		switch {
		case l.kind == KindFloat || r.kind == KindFloat:
			a, _ := l.Float()
			b, _ := r.Float()
			return FloatValue(floatArith(op, a, b)), nil
		case isSigned(l.kind) && isSigned(r.kind):
			if v, ok := intArith(op, l.i, r.i); ok {
				return IntValue(v), nil
			}
		}
		a, _ := l.Decimal()
		b, _ := r.Decimal()
		d := decimalArith(op, a, b)
		if l.kind == KindDecimal || r.kind == KindDecimal {
			return DecimalValue(d), nil
		}
		return narrowInteger(d), nil
	}
}

// divideNumeric divides in decimal when either side is a Decimal and in
// floating point otherwise.
func divideNumeric(l, r Value) (Value, error) {
	if l.kind == KindDecimal || r.kind == KindDecimal {
		a, _ := l.Decimal()
		b, ok := r.Decimal()
		if !ok {
			return Null, errorf(ErrorCodeValue, "cannot divide a Decimal by %s", r)
		}
		if b.IsZero() {
			return Null, NewError(ErrorCodeDiv0, "division by zero")
		}
		return DecimalValue(a.Div(b)), nil
	}
	a, _ := l.Float()
	b, _ := r.Float()
	if b == 0 {
		return Null, NewError(ErrorCodeDiv0, "division by zero")
	}
	return FloatValue(a / b), nil
}

func floatArith(op BinaryOp, a, b float64) float64 {
	switch op {
	case BinOpAdd:
		return a + b
	case BinOpSubtract:
		return a - b
	case BinOpMultiply:
		return a * b
	}
	return a / b
}

// intArith reports false on overflow
func intArith(op BinaryOp, a, b int64) (int64, bool) {
	switch op {
	case BinOpAdd:
		r := a + b
		if (a > 0 && b > 0 && r < 0) || (a < 0 && b < 0 && r >= 0) {
			return 0, false
		}
		return r, true
	case BinOpSubtract:
		r := a - b
		if (a >= 0 && b < 0 && r < 0) || (a < 0 && b > 0 && r >= 0) {
			return 0, false
		}
		return r, true
	case BinOpMultiply:
		if a == 0 || b == 0 {
			return 0, true
		}
		r := a * b
		if r/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
			return 0, false
		}
		return r, true
	}
	return 0, false
}

func decimalArith(op BinaryOp, a, b decimal.Decimal) decimal.Decimal {
	switch op {
	case BinOpAdd:
		return a.Add(b)
	case BinOpSubtract:
		return a.Sub(b)
	}
	return a.Mul(b)
}

// narrowInteger returns the smallest integer kind holding an integral
// decimal, or the decimal itself.
func narrowInteger(d decimal.Decimal) Value {
	if !d.IsInteger() {
		return DecimalValue(d)
	}
	bi := d.BigInt()
	if bi.IsInt64() {
		return IntValue(bi.Int64())
	}
	if bi.IsUint64() {
		return Uint64Value(bi.Uint64())
	}
	return DecimalValue(d)
}

func negateNumeric(v Value) (Value, error) {
	switch v.kind {
	case KindInt32, KindInt64:
		if v.i != math.MinInt64 {
			return IntValue(-v.i), nil
		}
	case KindFloat:
		return FloatValue(-v.f), nil
	case KindDecimal:
		return DecimalValue(v.dec.Neg()), nil
	}
	d, _ := v.Decimal()
	return narrowInteger(d.Neg()), nil
}

func compareWith(op BinaryOp, compare func(l, r Value) (int, error)) binaryFunc {
	return func(l, r Value) (Value, error) {
		c, err := compare(l, r)
		if err != nil {
			return Null, err
		}
		switch op {
		case BinOpEqual:
			return BoolValue(c == 0), nil
		case BinOpNotEqual:
			return BoolValue(c != 0), nil
		case BinOpLess:
			return BoolValue(c < 0), nil
		case BinOpLessEqual:
			return BoolValue(c <= 0), nil
		case BinOpGreater:
			return BoolValue(c > 0), nil
		}
		return BoolValue(c >= 0), nil
	}
}

func compareNumeric(l, r Value) (int, error) {
	switch {
	case isSigned(l.kind) && isSigned(r.kind):
		return cmp.Compare(l.i, r.i), nil
	case l.kind == KindUint64 && r.kind == KindUint64:
		return cmp.Compare(l.u, r.u), nil
	case l.kind == KindFloat || r.kind == KindFloat:
		a, _ := l.Float()
		b, _ := r.Float()
		return cmp.Compare(a, b), nil
	}
	a, _ := l.Decimal()
	b, _ := r.Decimal()
	return a.Cmp(b), nil
}

// compareSameKind orders two values of one kind. Values of different kinds
// are only ever unequal.
func compareSameKind(l, r Value) (int, error) {
	if l.kind != r.kind {
		return 1, nil
	}
	switch l.kind {
	case KindString:
		return strings.Compare(l.s, r.s), nil
	case KindDistance:
		return cmp.Compare(l.f, r.Distance().In(l.Distance().Unit).Value), nil
	case KindAngle:
		return cmp.Compare(l.f, r.f), nil
	case KindDateTime:
		return l.t.Compare(r.t), nil
	case KindEnum:
		if l.typ != r.typ {
			return 0, errorf(ErrorCodeValue, "cannot compare %s with %s", l.typ, r.typ)
		}
		return cmp.Compare(l.i, r.i), nil
	}
	if l.Equal(r) {
		return 0, nil
	}
	return 1, nil
}

func concat(l, r Value) (Value, error) {
	return StringValue(l.String() + r.String()), nil
}

func unitAdditive(op BinaryOp) binaryFunc {
	return func(l, r Value) (Value, error) {
		if l.kind == KindAngle {
			return AngleValue(Angle{Degrees: floatArith(op, l.f, r.f)}), nil
		}
		d := l.Distance()
		d.Value = floatArith(op, d.Value, r.Distance().In(d.Unit).Value)
		return DistanceValue(d), nil
	}
}

func unitRatio(l, r Value) (Value, error) {
	var b float64
	if l.kind == KindAngle {
		b = r.f
	} else {
		b = r.Distance().In(l.Distance().Unit).Value
	}
	if b == 0 {
		return Null, NewError(ErrorCodeDiv0, "division by zero")
	}
	return FloatValue(l.f / b), nil
}

func unitScale(op BinaryOp) binaryFunc {
	return func(l, r Value) (Value, error) {
		f, _ := r.Float()
		if op == BinOpDivide && f == 0 {
			return Null, NewError(ErrorCodeDiv0, "division by zero")
		}
		if l.kind == KindAngle {
			return AngleValue(Angle{Degrees: floatArith(op, l.f, f)}), nil
		}
		d := l.Distance()
		d.Value = floatArith(op, d.Value, f)
		return DistanceValue(d), nil
	}
}

const day = 24 * time.Hour

// dateShift adds or subtracts a number of days
func dateShift(op BinaryOp) binaryFunc {
	return func(l, r Value) (Value, error) {
		days, _ := r.Float()
		if op == BinOpSubtract {
			days = -days
		}
		return TimeValue(l.t.Add(time.Duration(days * float64(day)))), nil
	}
}

// dateDiff yields the difference in days
func dateDiff(l, r Value) (Value, error) {
	return FloatValue(float64(l.t.Sub(r.t)) / float64(day)), nil
}
