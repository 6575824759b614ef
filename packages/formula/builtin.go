package formula

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (w *WallClock) Now() time.Time {
	return time.Now()
}

// RandomGenerator interface provides random number generation for testing
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library's rand package
type DefaultRandomGenerator struct{}

func (d *DefaultRandomGenerator) Float64() float64 {
	return rand.Float64()
}

func constantProperty(name string, v Value) *PropertyInfo {
	return &PropertyInfo{
		Name:       name,
		Annotated:  true,
		Volatility: Constant,
		Get:        func(Value, []Value) (Value, error) { return v, nil },
	}
}

// pureProperty reads a value derived only from its target
func pureProperty(name string, get func(self Value) (Value, error)) *PropertyInfo {
	return &PropertyInfo{
		Name:       name,
		Annotated:  true,
		Volatility: FunctionalDependent,
		Get:        func(self Value, _ []Value) (Value, error) { return get(self) },
	}
}

func volatileProperty(name string, get func() Value) *PropertyInfo {
	return &PropertyInfo{
		Name:       name,
		Annotated:  true,
		Volatility: Variable,
		Get:        func(Value, []Value) (Value, error) { return get(), nil },
	}
}

func pure(name string, minArgs, maxArgs int, f func(self Value, args []Value) (Value, error)) *MethodInfo {
	return &MethodInfo{
		Name:    name,
		MinArgs: minArgs,
		MaxArgs: maxArgs,
		Invoke:  func(_ *Context, self Value, args []Value) (Value, error) { return f(self, args) },
	}
}

func volatile(name string, minArgs, maxArgs int, f func(args []Value) (Value, error)) *MethodInfo {
	return &MethodInfo{
		Name:       name,
		MinArgs:    minArgs,
		MaxArgs:    maxArgs,
		Annotated:  true,
		Volatility: Variable,
		Invoke:     func(_ *Context, _ Value, args []Value) (Value, error) { return f(args) },
	}
}

func floatArg(fn string, args []Value, i int) (float64, error) {
	f, ok := args[i].Float()
	if !ok {
		return 0, errorf(ErrorCodeValue, "%s: argument %d must be a number, got %s", fn, i+1, args[i].Kind())
	}
	return f, nil
}

func intArg(fn string, args []Value, i int) (int64, error) {
	n, ok := args[i].Int()
	if !ok {
		return 0, errorf(ErrorCodeValue, "%s: argument %d must be an integer, got %s", fn, i+1, args[i].Kind())
	}
	return n, nil
}

func textArg(fn string, args []Value, i int) (string, error) {
	s, ok := args[i].Text()
	if !ok {
		return "", errorf(ErrorCodeValue, "%s: argument %d must be a string, got %s", fn, i+1, args[i].Kind())
	}
	return s, nil
}

func timeArg(fn string, args []Value, i int) (time.Time, error) {
	if args[i].Kind() != KindDateTime {
		return time.Time{}, errorf(ErrorCodeValue, "%s: argument %d must be a DateTime, got %s", fn, i+1, args[i].Kind())
	}
	return args[i].Time(), nil
}

// radiansArg accepts an Angle or a plain number of radians
func radiansArg(fn string, args []Value, i int) (float64, error) {
	if args[i].Kind() == KindAngle {
		return args[i].Angle().Radians(), nil
	}
	return floatArg(fn, args, i)
}

func degrees(rad float64) Value {
	return AngleValue(Angle{Degrees: rad * 180 / math.Pi})
}

// newBuiltins creates the static types searched, in order, for names the
// owner does not define.
func newBuiltins(env *Environment) []*TypeInfo {
	return []*TypeInfo{
		mathType(),
		dateTimeType(env),
		unitsType(env),
		randomType(env),
		settingsType(env),
	}
}

func mathType() *TypeInfo {
	t := NewTypeInfo("Math")
	t.AddProperty(constantProperty("PI", FloatValue(math.Pi)))
	t.AddProperty(constantProperty("E", FloatValue(math.E)))

	t.AddMethod(pure("Abs", 1, 1, func(_ Value, args []Value) (Value, error) {
		f, err := floatArg("Abs", args, 0)
		if err != nil {
			return Null, err
		}
		if f < 0 {
			return ApplyUnary(UnaryOpMinus, args[0])
		}
		return args[0], nil
	}))
	t.AddMethod(pure("Sign", 1, 1, func(_ Value, args []Value) (Value, error) {
		f, err := floatArg("Sign", args, 0)
		if err != nil {
			return Null, err
		}
		switch {
		case f > 0:
			return Int32Value(1), nil
		case f < 0:
			return Int32Value(-1), nil
		}
		return Int32Value(0), nil
	}))
	t.AddMethod(floatFunc("Sqrt", func(x float64) (float64, error) {
		if x < 0 {
			return 0, errorf(ErrorCodeValue, "Sqrt: negative argument %s", formatFloat(x))
		}
		return math.Sqrt(x), nil
	}))
	t.AddMethod(floatFunc("Exp", func(x float64) (float64, error) { return math.Exp(x), nil }))
	t.AddMethod(floatFunc("Log", func(x float64) (float64, error) {
		if x <= 0 {
			return 0, errorf(ErrorCodeValue, "Log: argument must be positive")
		}
		return math.Log(x), nil
	}))
	t.AddMethod(pure("Pow", 2, 2, func(_ Value, args []Value) (Value, error) {
		x, err := floatArg("Pow", args, 0)
		if err != nil {
			return Null, err
		}
		y, err := floatArg("Pow", args, 1)
		if err != nil {
			return Null, err
		}
		return FloatValue(math.Pow(x, y)), nil
	}))

	for name, f := range map[string]func(float64) float64{"Sin": math.Sin, "Cos": math.Cos, "Tan": math.Tan} {
		t.AddMethod(pure(name, 1, 1, func(_ Value, args []Value) (Value, error) {
			r, err := radiansArg(name, args, 0)
			if err != nil {
				return Null, err
			}
			return FloatValue(f(r)), nil
		}))
	}
	for name, f := range map[string]func(float64) float64{"Asin": math.Asin, "Acos": math.Acos, "Atan": math.Atan} {
		t.AddMethod(pure(name, 1, 1, func(_ Value, args []Value) (Value, error) {
			x, err := floatArg(name, args, 0)
			if err != nil {
				return Null, err
			}
			return degrees(f(x)), nil
		}))
	}
	t.AddMethod(pure("Atan2", 2, 2, func(_ Value, args []Value) (Value, error) {
		y, err := floatArg("Atan2", args, 0)
		if err != nil {
			return Null, err
		}
		x, err := floatArg("Atan2", args, 1)
		if err != nil {
			return Null, err
		}
		return degrees(math.Atan2(y, x)), nil
	}))
	t.AddMethod(pure("Hypot", 2, 2, hypot))

	t.AddMethod(pure("Min", 1, Variadic, func(_ Value, args []Value) (Value, error) {
		return extreme(BinOpLess, args)
	}))
	t.AddMethod(pure("Max", 1, Variadic, func(_ Value, args []Value) (Value, error) {
		return extreme(BinOpGreater, args)
	}))
	t.AddMethod(pure("Round", 1, 2, func(_ Value, args []Value) (Value, error) {
		var places int64
		if len(args) == 2 {
			n, err := intArg("Round", args, 1)
			if err != nil {
				return Null, err
			}
			places = n
		}
		scale := math.Pow(10, float64(places))
		return rounding(args[0], "Round",
			func(f float64) float64 { return math.Round(f*scale) / scale },
			func(d decimal.Decimal) decimal.Decimal { return d.Round(int32(places)) })
	}))
	t.AddMethod(pure("Floor", 1, 1, func(_ Value, args []Value) (Value, error) {
		return rounding(args[0], "Floor", math.Floor, decimal.Decimal.Floor)
	}))
	t.AddMethod(pure("Ceiling", 1, 1, func(_ Value, args []Value) (Value, error) {
		return rounding(args[0], "Ceiling", math.Ceil, decimal.Decimal.Ceil)
	}))
	return t
}

func floatFunc(name string, f func(float64) (float64, error)) *MethodInfo {
	return pure(name, 1, 1, func(_ Value, args []Value) (Value, error) {
		x, err := floatArg(name, args, 0)
		if err != nil {
			return Null, err
		}
		r, err := f(x)
		if err != nil {
			return Null, err
		}
		return FloatValue(r), nil
	})
}

// hypot keeps the unit of the first argument when both are distances
func hypot(_ Value, args []Value) (Value, error) {
	if args[0].Kind() == KindDistance && args[1].Kind() == KindDistance {
		a := args[0].Distance()
		b := args[1].Distance().In(a.Unit)
		return DistanceValue(Distance{Value: math.Hypot(a.Value, b.Value), Unit: a.Unit}), nil
	}
	x, err := floatArg("Hypot", args, 0)
	if err != nil {
		return Null, err
	}
	y, err := floatArg("Hypot", args, 1)
	if err != nil {
		return Null, err
	}
	return FloatValue(math.Hypot(x, y)), nil
}

// extreme returns the argument for which op holds against every other one
func extreme(op BinaryOp, args []Value) (Value, error) {
	best := args[0]
	for _, v := range args[1:] {
		cmp, err := ApplyBinary(op, v, best)
		if err != nil {
			return Null, err
		}
		if b, _ := cmp.Bool(); b {
			best = v
		}
	}
	return best, nil
}

// rounding applies f to floats, distances and angles and fd to decimals.
// Integers are returned unchanged.
func rounding(v Value, fn string, f func(float64) float64, fd func(decimal.Decimal) decimal.Decimal) (Value, error) {
	switch v.Kind() {
	case KindInt32, KindInt64, KindUint64:
		return v, nil
	case KindDecimal:
		d, _ := v.Decimal()
		return DecimalValue(fd(d)), nil
	case KindFloat:
		return FloatValue(f(v.f)), nil
	case KindDistance:
		d := v.Distance()
		return DistanceValue(Distance{Value: f(d.Value), Unit: d.Unit}), nil
	case KindAngle:
		return AngleValue(Angle{Degrees: f(v.Angle().Degrees)}), nil
	}
	return Null, errorf(ErrorCodeValue, "%s: cannot round %s", fn, v.Kind())
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses the date layouts accepted by the DateTime.ParseDate
// built-in.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errorf(ErrorCodeValue, "ParseDate: cannot parse %q", s)
}

func dateTimeType(env *Environment) *TypeInfo {
	t := NewTypeInfo("DateTime")
	t.AddProperty(volatileProperty("Now", func() Value { return TimeValue(env.clock.Now()) }))
	t.AddProperty(volatileProperty("Today", func() Value {
		now := env.clock.Now()
		return TimeValue(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()))
	}))
	t.AddMethod(pure("ParseDate", 1, 1, func(_ Value, args []Value) (Value, error) {
		s, err := textArg("ParseDate", args, 0)
		if err != nil {
			return Null, err
		}
		d, err := ParseDate(s)
		if err != nil {
			return Null, err
		}
		return TimeValue(d), nil
	}))
	t.AddMethod(pure("Date", 3, 3, func(_ Value, args []Value) (Value, error) {
		var ymd [3]int64
		for i := range ymd {
			n, err := intArg("Date", args, i)
			if err != nil {
				return Null, err
			}
			ymd[i] = n
		}
		return TimeValue(time.Date(int(ymd[0]), time.Month(ymd[1]), int(ymd[2]), 0, 0, 0, 0, time.UTC)), nil
	}))
	t.AddMethod(pure("AddDays", 2, 2, func(_ Value, args []Value) (Value, error) {
		d, err := timeArg("AddDays", args, 0)
		if err != nil {
			return Null, err
		}
		n, err := floatArg("AddDays", args, 1)
		if err != nil {
			return Null, err
		}
		return TimeValue(d.Add(time.Duration(n * float64(24*time.Hour)))), nil
	}))
	return t
}

func unitsType(env *Environment) *TypeInfo {
	t := NewTypeInfo("Units")
	for name, suffix := range map[string]string{
		"Mm": "mm", "Cm": "cm", "Inch": "in", "Pt": "pt", "Px": "px",
		"Deg": "deg", "Rad": "rad",
	} {
		t.AddMethod(pure(name, 1, 1, func(_ Value, args []Value) (Value, error) {
			return convertUnit(args[0], suffix)
		}))
	}
	t.AddMethod(pure("Length", 1, 1, func(_ Value, args []Value) (Value, error) {
		return convertUnit(args[0], env.Config.DefaultUnit)
	}))
	t.AddMethod(pure("Convert", 2, 2, func(_ Value, args []Value) (Value, error) {
		suffix, err := textArg("Convert", args, 1)
		if err != nil {
			return Null, err
		}
		if !IsUnitSuffix(suffix) {
			return Null, errorf(ErrorCodeValue, "Convert: unknown unit %q", suffix)
		}
		return convertUnit(args[0], suffix)
	}))
	return t
}

// convertUnit turns a number into a unit value, or re-expresses a distance
// in another length unit.
func convertUnit(v Value, suffix string) (Value, error) {
	switch v.Kind() {
	case KindDistance:
		if u, ok := LengthUnit(suffix); ok {
			return DistanceValue(v.Distance().In(u)), nil
		}
	case KindAngle:
		if _, ok := angleUnits[strings.ToLower(suffix)]; ok {
			return v, nil
		}
	default:
		if f, ok := v.Float(); ok {
			if uv, ok := UnitValue(f, suffix); ok {
				return uv, nil
			}
		}
	}
	return Null, errorf(ErrorCodeValue, "cannot convert %s to %s", v.Kind(), suffix)
}

func randomType(env *Environment) *TypeInfo {
	t := NewTypeInfo("Random")
	t.AddMethod(volatile("Next", 0, 0, func([]Value) (Value, error) {
		return FloatValue(env.rng.Float64()), nil
	}))
	t.AddMethod(volatile("Between", 2, 2, func(args []Value) (Value, error) {
		lo, err := floatArg("Between", args, 0)
		if err != nil {
			return Null, err
		}
		hi, err := floatArg("Between", args, 1)
		if err != nil {
			return Null, err
		}
		return FloatValue(lo + (hi-lo)*env.rng.Float64()), nil
	}))
	return t
}

func settingsType(env *Environment) *TypeInfo {
	t := NewTypeInfo("Settings")
	t.AddProperty(&PropertyInfo{
		Name: "DefaultUnit", Annotated: true, Volatility: Constant,
		Get: func(Value, []Value) (Value, error) { return StringValue(env.Config.DefaultUnit), nil },
	})
	t.AddProperty(&PropertyInfo{
		Name: "GridSize", Annotated: true, Volatility: Constant,
		Get: func(Value, []Value) (Value, error) { return env.gridSize, nil },
	})
	return t
}

// newValueTypes creates the member tables of non-object values, such as
// (2.5cm).Millimeters or "abc".Length.
func newValueTypes() map[Kind]*TypeInfo {
	return map[Kind]*TypeInfo{
		KindDistance: distanceMembers(),
		KindAngle:    angleMembers(),
		KindColor:    colorMembers(),
		KindDateTime: dateMembers(),
		KindString:   stringMembers(),
	}
}

func distanceMembers() *TypeInfo {
	t := NewTypeInfo("Distance")
	t.AddProperty(pureProperty("Value", func(self Value) (Value, error) {
		return FloatValue(self.Distance().Value), nil
	}))
	t.AddProperty(pureProperty("Unit", func(self Value) (Value, error) {
		return StringValue(UnitSuffix(self.Distance().Unit)), nil
	}))
	for name, suffix := range map[string]string{"Millimeters": "mm", "Inches": "in", "Points": "pt", "Pixels": "px"} {
		u, _ := LengthUnit(suffix)
		t.AddProperty(pureProperty(name, func(self Value) (Value, error) {
			return FloatValue(self.Distance().In(u).Value), nil
		}))
	}
	t.AddMethod(pure("In", 1, 1, func(self Value, args []Value) (Value, error) {
		suffix, err := textArg("In", args, 0)
		if err != nil {
			return Null, err
		}
		u, ok := LengthUnit(suffix)
		if !ok {
			return Null, errorf(ErrorCodeValue, "In: unknown length unit %q", suffix)
		}
		return DistanceValue(self.Distance().In(u)), nil
	}))
	return t
}

func angleMembers() *TypeInfo {
	t := NewTypeInfo("Angle")
	t.AddProperty(pureProperty("Degrees", func(self Value) (Value, error) {
		return FloatValue(self.Angle().Degrees), nil
	}))
	t.AddProperty(pureProperty("Radians", func(self Value) (Value, error) {
		return FloatValue(self.Angle().Radians()), nil
	}))
	t.AddMethod(pure("Normalize", 0, 0, func(self Value, _ []Value) (Value, error) {
		d := math.Mod(self.Angle().Degrees, 360)
		if d < 0 {
			d += 360
		}
		return AngleValue(Angle{Degrees: d}), nil
	}))
	return t
}

func colorMembers() *TypeInfo {
	t := NewTypeInfo("Color")
	channels := map[string]func(Value) uint8{
		"A": func(v Value) uint8 { return v.Color().A },
		"R": func(v Value) uint8 { return v.Color().R },
		"G": func(v Value) uint8 { return v.Color().G },
		"B": func(v Value) uint8 { return v.Color().B },
	}
	for name, ch := range channels {
		t.AddProperty(pureProperty(name, func(self Value) (Value, error) {
			return Int32Value(int32(ch(self))), nil
		}))
	}
	t.AddMethod(pure("WithAlpha", 1, 1, func(self Value, args []Value) (Value, error) {
		a, err := intArg("WithAlpha", args, 0)
		if err != nil {
			return Null, err
		}
		if a < 0 || a > 255 {
			return Null, errorf(ErrorCodeValue, "WithAlpha: %d is out of range", a)
		}
		c := self.Color()
		c.A = uint8(a)
		return ColorValue(c), nil
	}))
	return t
}

func dateMembers() *TypeInfo {
	t := NewTypeInfo("DateTime")
	fields := map[string]func(time.Time) int{
		"Year":      time.Time.Year,
		"Month":     func(d time.Time) int { return int(d.Month()) },
		"Day":       time.Time.Day,
		"Hour":      time.Time.Hour,
		"Minute":    time.Time.Minute,
		"Second":    time.Time.Second,
		"DayOfWeek": func(d time.Time) int { return int(d.Weekday()) },
		"DayOfYear": time.Time.YearDay,
	}
	for name, f := range fields {
		t.AddProperty(pureProperty(name, func(self Value) (Value, error) {
			return Int32Value(int32(f(self.Time()))), nil
		}))
	}
	t.AddProperty(pureProperty("Date", func(self Value) (Value, error) {
		d := self.Time()
		return TimeValue(time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())), nil
	}))
	return t
}

func stringMembers() *TypeInfo {
	t := NewTypeInfo("String")
	t.AddProperty(pureProperty("Length", func(self Value) (Value, error) {
		s, _ := self.Text()
		return Int32Value(int32(utf8.RuneCountInString(s))), nil
	}))
	for name, f := range map[string]func(string) string{
		"ToUpper": strings.ToUpper,
		"ToLower": strings.ToLower,
		"Trim":    strings.TrimSpace,
	} {
		t.AddMethod(pure(name, 0, 0, func(self Value, _ []Value) (Value, error) {
			s, _ := self.Text()
			return StringValue(f(s)), nil
		}))
	}
	t.AddMethod(pure("Contains", 1, 1, func(self Value, args []Value) (Value, error) {
		s, _ := self.Text()
		sub, err := textArg("Contains", args, 0)
		if err != nil {
			return Null, err
		}
		return BoolValue(strings.Contains(s, sub)), nil
	}))
	t.AddMethod(pure("Substring", 1, 2, substring))
	return t
}

func substring(self Value, args []Value) (Value, error) {
	s, _ := self.Text()
	runes := []rune(s)
	start, err := intArg("Substring", args, 0)
	if err != nil {
		return Null, err
	}
	end := int64(len(runes))
	if len(args) == 2 {
		n, err := intArg("Substring", args, 1)
		if err != nil {
			return Null, err
		}
		end = start + n
	}
	if start < 0 || start > end || end > int64(len(runes)) {
		return Null, NewError(ErrorCodeValue, fmt.Sprintf("Substring: range %d..%d is outside %q", start, end, s))
	}
	return StringValue(string(runes[start:end])), nil
}
