package formula

import (
	"math"
	"testing"
	"time"

	"cogentcore.org/core/styles/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinExactResults(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		formula string
		want    Value
	}{
		// Math
		{"Math.Abs(-3)", Int32Value(3)},
		{"Abs(-2.5cm)", cm(2.5)},
		{"Sign(-4)", Int32Value(-1)},
		{"Sign(0)", Int32Value(0)},
		{"Sqrt(16)", FloatValue(4)},
		{"Pow(2, 10)", FloatValue(1024)},
		{"Round(2.5)", FloatValue(3)},
		{"Round(1.25, 1)", FloatValue(1.3)},
		{"Floor(2.7)", FloatValue(2)},
		{"Floor(7)", Int32Value(7)},
		{"Ceiling(2.1)", FloatValue(3)},
		{"Max(1, 5, 3)", Int32Value(5)},
		{"Min(2cm, 5mm)", mm(5)},
		{"Sin(90deg)", FloatValue(1)},
		{"Cos(0)", FloatValue(1)},
		{"Hypot(3cm, 4cm)", cm(5)},
		{"Hypot(3, 4)", FloatValue(5)},

		// DateTime
		{"DateTime.Now", TimeValue(testNow)},
		{"DateTime.Today", TimeValue(time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC))},
		{"DateTime.Date(2024, 2, 29).DayOfYear", Int32Value(60)},
		{`DateTime.ParseDate("2024-03-15").Day`, Int32Value(15)},
		{`ParseDate("2024-03-15 08:30:00").Hour`, Int32Value(8)},
		{"DateTime.AddDays(DateTime.Now, 1).Day", Int32Value(16)},
		{"DateTime.Now.Hour", Int32Value(13)},
		{"DateTime.Now.DayOfWeek", Int32Value(int32(time.Friday))},
		{"Date(2024, 3, 15) = DateTime.Today", BoolValue(true)},
		{"DateTime.Now.Date.Minute", Int32Value(0)},

		// Units
		{"Units.Cm(2)", cm(2)},
		{"Units.Length(4)", mm(4)},
		{"Units.Deg(90)", AngleValue(Angle{Degrees: 90})},
		{`Units.Convert(2, "in")`, DistanceValue(Distance{Value: 2, Unit: units.UnitIn})},
		{"Units.Mm(5mm)", mm(5)},

		// Random
		{"Random.Next()", FloatValue(0.25)},
		{"Random.Between(10, 20)", FloatValue(12.5)},

		// Settings
		{"Settings.DefaultUnit", StringValue("mm")},
		{"Settings.GridSize", mm(5)},

		// value members
		{"(2.5cm).Value", FloatValue(2.5)},
		{"(2.5cm).Unit", StringValue("cm")},
		{"(1in).Points", FloatValue(72)},
		{`"abc".Length`, Int32Value(3)},
		{`"héllo".Length`, Int32Value(5)},
		{`" x ".Trim()`, StringValue("x")},
		{`"abc".ToUpper()`, StringValue("ABC")},
		{`"ABC".ToLower()`, StringValue("abc")},
		{`"abc".Contains("b")`, BoolValue(true)},
		{`"abcdef".Substring(1, 3)`, StringValue("bcd")},
		{`"abc".Substring(1)`, StringValue("bc")},
		{"#FF102030.R", Int32Value(16)},
		{"#FF102030.A", Int32Value(255)},
		{"#FF102030.WithAlpha(128).A", Int32Value(128)},
		{"(370deg).Normalize().Degrees", FloatValue(10)},
		{"(-90deg).Normalize().Degrees", FloatValue(270)},
		{"DateTime.Date(2024, 3, 15).Month", Int32Value(3)},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			v, err := evalText(t, env, nil, tt.formula)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(v), "got %s (%s), want %s (%s)", v, v.Kind(), tt.want, tt.want.Kind())
		})
	}
}

func TestBuiltinApproximateResults(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		formula string
		want    float64 // millimeters for distances, degrees for angles
		kind    Kind
	}{
		{"Math.PI", math.Pi, KindFloat},
		{"Math.E", math.E, KindFloat},
		{"Exp(1)", math.E, KindFloat},
		{"Log(Math.E)", 1, KindFloat},
		{"Atan2(1, 1)", 45, KindAngle},
		{"Asin(1)", 90, KindAngle},
		{"Acos(1)", 0, KindAngle},
		{"Atan(1)", 45, KindAngle},
		{"Tan(Math.PI/4)", 1, KindFloat},
		{"(2.5cm).Millimeters", 25, KindFloat},
		{"(1in).Pixels", 96, KindFloat},
		{"(25.4mm).Inches", 1, KindFloat},
		{"(180deg).Radians", math.Pi, KindFloat},
		{"Units.Rad(Math.PI)", 180, KindAngle},
		{"Units.Inch(2.54cm)", 25.4, KindDistance},
		{`(2cm).In("mm")`, 20, KindDistance},
		{`Units.Convert(1cm, "pt")`, 10, KindDistance},
	}

	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			v, err := evalText(t, env, nil, tt.formula)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, v.Kind())
			f, ok := v.Float()
			require.True(t, ok)
			assert.InDelta(t, tt.want, f, 1e-9)
		})
	}
}

func TestBuiltinErrors(t *testing.T) {
	env := newTestEnv(t)

	for _, text := range []string{
		"Sqrt(-1)",
		"Log(0)",
		`Sqrt("x")`,
		`Round(1.5, "x")`,
		`Round("x")`,
		`DateTime.ParseDate("yesterday")`,
		"DateTime.AddDays(1, 1)",
		`Units.Convert(2, "furlong")`,
		`Units.Cm("x")`,
		`(2cm).In("deg")`,
		"#FF102030.WithAlpha(300)",
		`"abc".Substring(-1)`,
		`"abc".Contains(1)`,
		"Max(1, \"a\")",
	} {
		t.Run(text, func(t *testing.T) {
			_, err := evalText(t, env, nil, text)
			require.Error(t, err)
			assert.True(t, IsValueError(err), err.Error())
		})
	}
}

func TestBuiltinVolatility(t *testing.T) {
	env := newTestEnv(t)

	for formula, want := range map[string]EvalSpec{
		"Math.PI":                  Constant,
		"Sqrt(2)":                  FunctionalDependent,
		`"abc".Length`:             FunctionalDependent,
		"DateTime.Now":             Variable,
		"DateTime.Today":           Variable,
		"Random.Next()":            Variable,
		"Random.Between(1, 2) + 1": Variable,
		"Settings.GridSize":        Constant,
	} {
		root, err := ParseFormula(formula)
		require.NoError(t, err)
		_, err = root.Eval(NewContext(env, nil, nil))
		require.NoError(t, err)
		assert.Equal(t, want, Volatility(root), formula)
	}
}

func TestParseDateLayouts(t *testing.T) {
	for _, s := range []string{
		"2024-03-15T13:45:30Z",
		"2024-03-15T13:45:30.5+02:00",
		"2024-03-15T13:45:30",
		"2024-03-15 13:45:30",
		"2024-03-15",
	} {
		d, err := ParseDate(s)
		require.NoError(t, err, s)
		assert.Equal(t, 2024, d.Year())
		assert.Equal(t, 15, d.Day())
	}

	_, err := ParseDate("15/03/2024")
	assert.True(t, IsValueError(err))
}
