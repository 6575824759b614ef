package formula

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the tag of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt32
	KindInt64
	KindUint64
	KindDecimal
	KindFloat
	KindString
	KindBool
	KindDistance
	KindAngle
	KindColor
	KindDateTime
	KindEnum
	KindObject
)

var kindNames = [...]string{
	KindNull:     "Null",
	KindInt32:    "Int32",
	KindInt64:    "Int64",
	KindUint64:   "UInt64",
	KindDecimal:  "Decimal",
	KindFloat:    "Double",
	KindString:   "String",
	KindBool:     "Boolean",
	KindDistance: "Distance",
	KindAngle:    "Angle",
	KindColor:    "Color",
	KindDateTime: "DateTime",
	KindEnum:     "Enum",
	KindObject:   "Object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// IsNumeric reports whether the kind is one of the primitive numeric kinds.
func (k Kind) IsNumeric() bool {
	return k >= KindInt32 && k <= KindFloat
}

// Value is the closed set of values a formula can produce. The zero Value is
// Null.
type Value struct {
	kind Kind
	i    int64 // Int32, Int64, enum ordinal
	u    uint64
	f    float64 // Float, Distance value, Angle degrees
	s    string  // String, enum member
	b    bool
	dec  decimal.Decimal
	t    time.Time
	c    color.RGBA
	unit Distance // unit carrier for KindDistance; Value field unused
	typ  string   // enum type name
	obj  Object
}

// Null is the empty value
var Null = Value{}

func Int32Value(v int32) Value     { return Value{kind: KindInt32, i: int64(v)} }
func Int64Value(v int64) Value     { return Value{kind: KindInt64, i: v} }
func Uint64Value(v uint64) Value   { return Value{kind: KindUint64, u: v} }
func FloatValue(v float64) Value   { return Value{kind: KindFloat, f: v} }
func StringValue(v string) Value   { return Value{kind: KindString, s: v} }
func BoolValue(v bool) Value       { return Value{kind: KindBool, b: v} }
func ColorValue(c color.RGBA) Value { return Value{kind: KindColor, c: c} }
func TimeValue(t time.Time) Value  { return Value{kind: KindDateTime, t: t} }
func AngleValue(a Angle) Value     { return Value{kind: KindAngle, f: a.Degrees} }

func DecimalValue(d decimal.Decimal) Value {
	return Value{kind: KindDecimal, dec: d}
}

func DistanceValue(d Distance) Value {
	return Value{kind: KindDistance, f: d.Value, unit: Distance{Unit: d.Unit}}
}

// EnumValue builds a member of a registered enumeration.
func EnumValue(typeName, member string, ordinal int) Value {
	return Value{kind: KindEnum, typ: typeName, s: member, i: int64(ordinal)}
}

// ObjectValue wraps a host object. A nil object yields Null.
func ObjectValue(o Object) Value {
	if o == nil {
		return Null
	}
	return Value{kind: KindObject, obj: o}
}

// IntValue returns the smallest integer kind holding v.
func IntValue(v int64) Value {
	if v >= math.MinInt32 && v <= math.MaxInt32 {
		return Int32Value(int32(v))
	}
	return Int64Value(v)
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float converts any numeric, distance (millimeters) or angle (degrees) value
// to float64.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindInt32, KindInt64:
		return float64(v.i), true
	case KindUint64:
		return float64(v.u), true
	case KindDecimal:
		return v.dec.InexactFloat64(), true
	case KindFloat, KindAngle:
		return v.f, true
	case KindDistance:
		return v.Distance().Millimeters(), true
	}
	return 0, false
}

// Int converts integral values to int64. Floats are truncated.
func (v Value) Int() (int64, bool) {
	switch v.kind {
	case KindInt32, KindInt64, KindEnum:
		return v.i, true
	case KindUint64:
		if v.u > math.MaxInt64 {
			return 0, false
		}
		return int64(v.u), true
	case KindDecimal:
		if !v.dec.IsInteger() {
			return v.dec.IntPart(), true
		}
		bi := v.dec.BigInt()
		if !bi.IsInt64() {
			return 0, false
		}
		return bi.Int64(), true
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return 0, false
		}
		return int64(v.f), true
	}
	return 0, false
}

// Decimal converts a numeric value to an arbitrary precision decimal.
func (v Value) Decimal() (decimal.Decimal, bool) {
	switch v.kind {
	case KindInt32, KindInt64:
		return decimal.NewFromInt(v.i), true
	case KindUint64:
		return decimal.RequireFromString(strconv.FormatUint(v.u, 10)), true
	case KindDecimal:
		return v.dec, true
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v.f), true
	}
	return decimal.Zero, false
}

func (v Value) Uint() (uint64, bool) {
	switch v.kind {
	case KindUint64:
		return v.u, true
	case KindInt32, KindInt64:
		if v.i < 0 {
			return 0, false
		}
		return uint64(v.i), true
	}
	return 0, false
}

func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Text returns the string payload of a String value.
func (v Value) Text() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// Distance returns the distance payload. Only meaningful for KindDistance.
func (v Value) Distance() Distance {
	return Distance{Value: v.f, Unit: v.unit.Unit}
}

// Angle returns the angle payload. Only meaningful for KindAngle.
func (v Value) Angle() Angle {
	return Angle{Degrees: v.f}
}

func (v Value) Color() color.RGBA { return v.c }
func (v Value) Time() time.Time   { return v.t }
func (v Value) Object() Object    { return v.obj }

// Enum returns the enumeration type, member name and ordinal.
func (v Value) Enum() (typeName, member string, ordinal int) {
	return v.typ, v.s, int(v.i)
}

// Equal reports whether two values are identical in kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInt32, KindInt64:
		return v.i == o.i
	case KindUint64:
		return v.u == o.u
	case KindDecimal:
		return v.dec.Equal(o.dec)
	case KindFloat, KindAngle:
		return v.f == o.f
	case KindDistance:
		return v.f == o.f && v.unit.Unit == o.unit.Unit
	case KindString:
		return v.s == o.s
	case KindBool:
		return v.b == o.b
	case KindColor:
		return v.c == o.c
	case KindDateTime:
		return v.t.Equal(o.t)
	case KindEnum:
		return v.typ == o.typ && v.i == o.i
	case KindObject:
		return v.obj == o.obj
	}
	return false
}

// String renders the value for display.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindInt32, KindInt64:
		return strconv.FormatInt(v.i, 10)
	case KindUint64:
		return strconv.FormatUint(v.u, 10)
	case KindDecimal:
		return v.dec.String()
	case KindFloat:
		return formatFloat(v.f)
	case KindString:
		return v.s
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	case KindDistance:
		return v.Distance().String()
	case KindAngle:
		return v.Angle().String()
	case KindColor:
		return FormatColor(v.c)
	case KindDateTime:
		return v.t.Format(time.RFC3339)
	case KindEnum:
		return v.s
	case KindObject:
		if s, ok := v.obj.(fmt.Stringer); ok {
			return s.String()
		}
		return v.obj.TypeInfo().Name
	}
	return ""
}

// FormulaText renders the value as literal formula text that compiles back
// to an equal value.
func (v Value) FormulaText() (string, error) {
	switch v.kind {
	case KindNull:
		return "Null", nil
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return "", errorf(ErrorCodeValue, "%s has no literal form", formatFloat(v.f))
		}
		s := formatFloat(math.Abs(v.f))
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		if v.f < 0 {
			s = "-" + s
		}
		return s, nil
	case KindString:
		return QuoteString(v.s), nil
	case KindDateTime:
		return "ParseDate(" + QuoteString(v.t.Format(time.RFC3339Nano)) + ")", nil
	case KindObject:
		return "", errorf(ErrorCodeValue, "an object value has no literal form")
	}
	return v.String(), nil
}

// QuoteString quotes s as a formula string literal.
func QuoteString(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// FormatColor renders a color as #AARRGGBB.
func FormatColor(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X%02X", c.A, c.R, c.G, c.B)
}

// ParseColor parses #AARRGGBB.
func ParseColor(s string) (color.RGBA, error) {
	if len(s) != 9 || s[0] != '#' {
		return color.RGBA{}, errorf(ErrorCodeSyntax, "invalid hex color: %s", s)
	}
	n, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, errorf(ErrorCodeSyntax, "invalid hex color: %s", s)
	}
	return color.RGBA{A: uint8(n >> 24), R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n)}, nil
}

// ParseNumber converts a numeric literal. Literals with a fractional part or
// an exponent are floats; others take the smallest of Int32, Int64, UInt64
// and Decimal that holds them.
func ParseNumber(text string) (Value, error) {
	if strings.ContainsAny(text, ".eE") {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Null, errorf(ErrorCodeSyntax, "invalid number: %s", text)
		}
		return FloatValue(f), nil
	}
	if i, err := strconv.ParseInt(text, 10, 32); err == nil {
		return Int32Value(int32(i)), nil
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return Int64Value(i), nil
	}
	if u, err := strconv.ParseUint(text, 10, 64); err == nil {
		return Uint64Value(u), nil
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return Null, errorf(ErrorCodeSyntax, "invalid number: %s", text)
	}
	return DecimalValue(d), nil
}
