package formula

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type fixedRandom struct{ next float64 }

func (r *fixedRandom) Float64() float64 { return r.next }

var testNow = time.Date(2024, time.March, 15, 13, 45, 30, 0, time.UTC)

func newTestEnv(t testing.TB, opts ...EnvOption) *Environment {
	t.Helper()
	opts = append([]EnvOption{
		WithClock(&fixedClock{now: testNow}),
		WithRandom(&fixedRandom{next: 0.25}),
	}, opts...)
	env, err := NewEnvironment(DefaultConfig(), opts...)
	require.NoError(t, err)
	return env
}

// testObject is a minimal formula host with three declared properties, extra
// properties and a reference to a peer object.
type testObject struct {
	name  string
	props []*FormulaProperty
	extra map[string]*FormulaProperty
	peer  *testObject
	alive bool
	env   *Environment
}

var testDefs = func() *PropertyDefCollection {
	c := NewPropertyDefCollection(nil)
	c.Add("X", "0")
	c.Add("Y", "0")
	c.Add("Width", "10mm")
	return c
}()

var testType = func() *TypeInfo {
	t := NewTypeInfo("TestObject")
	testDefs.Bind(t)
	t.AddProperty(&PropertyInfo{
		Name: "Name",
		Get: func(self Value, _ []Value) (Value, error) {
			return StringValue(self.Object().(*testObject).name), nil
		},
	})
	t.AddProperty(&PropertyInfo{
		Name:       "Peer",
		Annotated:  true,
		Volatility: FunctionalDependent,
		Get: func(self Value, _ []Value) (Value, error) {
			peer := self.Object().(*testObject).peer
			if peer == nil {
				return Null, nil
			}
			return ObjectValue(peer), nil
		},
	})
	t.AddProperty(&PropertyInfo{
		Name:    "Item",
		Indexed: true,
		Get: func(_ Value, args []Value) (Value, error) {
			n, _ := args[0].Int()
			return IntValue(n * 10), nil
		},
	})
	t.AddMethod(&MethodInfo{
		Name:    "Double",
		MinArgs: 1,
		MaxArgs: 1,
		Invoke: func(_ *Context, _ Value, args []Value) (Value, error) {
			return ApplyBinary(BinOpMultiply, args[0], Int32Value(2))
		},
	})
	t.AddMethod(&MethodInfo{
		Name:    "Sum",
		MinArgs: 0,
		MaxArgs: 0,
		Invoke: func(ctx *Context, self Value, _ []Value) (Value, error) {
			x, err := ctx.Read(self.Object(), "X")
			if err != nil {
				return Null, err
			}
			y, err := ctx.Read(self.Object(), "Y")
			if err != nil {
				return Null, err
			}
			return ApplyBinary(BinOpAdd, x, y)
		},
	})
	return t
}()

type testRef struct{ obj *testObject }

func (r testRef) Resolve() (Object, bool) {
	if r.obj == nil || !r.obj.alive {
		return nil, false
	}
	return r.obj, true
}

func newTestObject(env *Environment, name string) *testObject {
	o := &testObject{name: name, extra: map[string]*FormulaProperty{}, alive: true, env: env}
	o.props = testDefs.NewProperties(testRef{o}, WithEnvironment(env))
	return o
}

func (o *testObject) TypeInfo() *TypeInfo { return testType }
func (o *testObject) String() string      { return o.name }

func (o *testObject) FormulaProperty(index int) *FormulaProperty {
	if index < 0 || index >= len(o.props) {
		return nil
	}
	return o.props[index]
}

func (o *testObject) ExtraProperty(name string) (*FormulaProperty, bool) {
	p, ok := o.extra[name]
	return p, ok
}

func (o *testObject) addExtra(name, formula string) *FormulaProperty {
	p := NewFormulaProperty(name, testRef{o}, formula, WithEnvironment(o.env))
	o.extra[name] = p
	return p
}

func (o *testObject) prop(name string) *FormulaProperty {
	d, ok := testDefs.Get(name)
	if !ok {
		return o.extra[name]
	}
	return o.props[d.Index]
}

// set assigns a formula at EditByFormula level and fails the test on error
func (o *testObject) set(t *testing.T, name, formula string) *testObject {
	t.Helper()
	require.NoError(t, o.prop(name).SetFormula(formula, EditByFormula))
	return o
}

// evalText compiles and evaluates text against owner
func evalText(t *testing.T, env *Environment, owner OwnerRef, text string) (Value, error) {
	t.Helper()
	root, err := ParseFormula(text)
	if err != nil {
		return Null, err
	}
	return root.Eval(NewContext(env, owner, nil))
}
