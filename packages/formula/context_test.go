package formula

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextResolutionOrder(t *testing.T) {
	env := newTestEnv(t)
	obj := newTestObject(env, "a")

	// owner extras shadow built-ins, built-ins shadow constants
	v, err := evalText(t, env, testRef{obj}, "PI")
	require.NoError(t, err)
	assert.Equal(t, FloatValue(math.Pi), v)

	obj.addExtra("PI", "3")
	v, err = evalText(t, env, testRef{obj}, "PI")
	require.NoError(t, err)
	assert.Equal(t, Int32Value(3), v)

	obj.addExtra("True", `"shadowed"`)
	v, err = evalText(t, env, testRef{obj}, "True")
	require.NoError(t, err)
	assert.Equal(t, StringValue("shadowed"), v)

	v, err = evalText(t, env, nil, "True")
	require.NoError(t, err)
	assert.Equal(t, BoolValue(true), v)

	v, err = evalText(t, env, nil, "GridSize")
	require.NoError(t, err)
	assert.True(t, mm(5).Equal(v))
}

func TestContextConstants(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		formula string
		want    Value
	}{
		{"true", BoolValue(true)},
		{"FALSE", BoolValue(false)},
		{"null", Null},
		{"Enabled", EnumValue("LockLevel", "Enabled", 3)},
		{"enabled", EnumValue("LockLevel", "Enabled", 3)},
		{"LockLevel.KnobDisabled", EnumValue("LockLevel", "KnobDisabled", 2)},
		{"EditByKnob", EnumValue("EditingLevel", "EditByKnob", 2)},
		{"Math.PI", FloatValue(math.Pi)},
		{"Math.E", FloatValue(math.E)},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			v, err := evalText(t, env, nil, tt.formula)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(v), "got %s", v)
		})
	}
}

func TestContextNameErrors(t *testing.T) {
	env := newTestEnv(t)
	obj := newTestObject(env, "a")

	for _, text := range []string{"Nope", "Math.Nope", "Nope()", "Math.Nope()", "Peer2.X", "Double2(1)"} {
		t.Run(text, func(t *testing.T) {
			_, err := evalText(t, env, testRef{obj}, text)
			require.Error(t, err)
			assert.True(t, IsNameError(err), err.Error())
		})
	}

	// without an owner the declared properties are unknown
	_, err := evalText(t, env, nil, "X")
	assert.True(t, IsNameError(err))
}

func TestContextValueErrors(t *testing.T) {
	env := newTestEnv(t)
	obj := newTestObject(env, "a")

	for _, text := range []string{
		"Item",
		"X[1]",
		"Double(1,2)",
		"Math.Sqrt()",
		"Math.Sqrt(-1)",
		"Peer.X",
		`"abc".Substring(2,5)`,
		"True.Length",
	} {
		t.Run(text, func(t *testing.T) {
			_, err := evalText(t, env, testRef{obj}, text)
			require.Error(t, err)
			assert.True(t, IsValueError(err), err.Error())
		})
	}
}

func TestContextOwnerMembers(t *testing.T) {
	env := newTestEnv(t)
	obj := newTestObject(env, "a")
	obj.set(t, "X", "4").set(t, "Y", "1.5")

	tests := []struct {
		formula string
		want    Value
	}{
		{"Double(X)", Int32Value(8)},
		{"Sum()", FloatValue(5.5)},
		{"Item[3]", Int32Value(30)},
		{"Name", StringValue("a")},
		{"Width", mm(10)},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			v, err := evalText(t, env, testRef{obj}, tt.formula)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(v), "got %s (%s)", v, v.Kind())
		})
	}
}

func TestContextPeerAndExtras(t *testing.T) {
	env := newTestEnv(t)
	a := newTestObject(env, "a")
	b := newTestObject(env, "b")
	a.peer = b
	b.set(t, "X", "42")
	b.addExtra("Label", `"bee"`)

	v, err := evalText(t, env, testRef{a}, "Peer.X")
	require.NoError(t, err)
	assert.Equal(t, Int32Value(42), v)

	v, err = evalText(t, env, testRef{a}, "Peer.Label")
	require.NoError(t, err)
	assert.Equal(t, StringValue("bee"), v)

	v, err = evalText(t, env, testRef{a}, "Peer.Sum()")
	require.NoError(t, err)
	assert.Equal(t, Int32Value(42), v)

	_, err = evalText(t, env, testRef{a}, "Label")
	assert.True(t, IsNameError(err))
}

func TestContextDisposedOwner(t *testing.T) {
	env := newTestEnv(t)
	obj := newTestObject(env, "a")
	obj.alive = false

	_, err := evalText(t, env, testRef{obj}, "X")
	assert.Equal(t, ErrorCodeNoOwner, CodeOf(err))

	_, err = evalText(t, env, testRef{obj}, "Double(1)")
	assert.Equal(t, ErrorCodeNoOwner, CodeOf(err))

	// literals do not need the owner
	v, err := evalText(t, env, testRef{obj}, "1+2")
	require.NoError(t, err)
	assert.Equal(t, Int32Value(3), v)
}

func TestContextSinkReceivesPropertyReads(t *testing.T) {
	env := newTestEnv(t)
	obj := newTestObject(env, "a")
	obj.addExtra("Extra", "1")

	var reads []string
	sink := func(o Object, p *PropertyInfo) {
		reads = append(reads, o.(*testObject).name+"."+p.Name)
	}

	root, err := ParseFormula("X + Sum() + Extra + Len(Name)")
	require.NoError(t, err)
	_, _ = root.Eval(NewContext(env, testRef{obj}, sink))
	// Len is unknown: the reads before the failure are still reported
	assert.Equal(t, []string{"a.X", "a.X", "a.Y", "a.Extra"}, reads)

	reads = nil
	root, err = ParseFormula("Name + Math.PI + Item[1]")
	require.NoError(t, err)
	_, err = root.Eval(NewContext(env, testRef{obj}, sink))
	require.NoError(t, err)
	assert.Empty(t, reads)
}

func TestContextSetProperty(t *testing.T) {
	env := newTestEnv(t)
	obj := newTestObject(env, "a")
	ctx := NewContext(env, testRef{obj}, nil)

	require.NoError(t, ctx.SetProperty(Null, false, "X", nil, Int32Value(7)))
	assert.Equal(t, "7", obj.prop("X").Formula())

	err := ctx.SetProperty(Null, false, "Name", nil, StringValue("b"))
	assert.True(t, IsValueError(err))

	err = ctx.SetProperty(Null, false, "Nope", nil, Int32Value(1))
	assert.True(t, IsNameError(err))
}

func TestReservedWordsAreNotImplemented(t *testing.T) {
	env := newTestEnv(t)
	for _, text := range []string{"IF(1,2,3)", "and(True,False)", "NOT(True)", "Or(1)", "CASE(1,2)"} {
		_, err := evalText(t, env, nil, text)
		assert.Equal(t, ErrorCodeNotImplemented, CodeOf(err), text)
	}
}
