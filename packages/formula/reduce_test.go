package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalAndReduce(t *testing.T, env *Environment, owner OwnerRef, text string) (Node, Value) {
	t.Helper()
	root, err := ParseFormula(text)
	require.NoError(t, err)
	v, err := root.Eval(NewContext(env, owner, nil))
	require.NoError(t, err)
	return Reduce(root), v
}

func TestReduceFoldsConstantArithmetic(t *testing.T) {
	env := newTestEnv(t)
	root, v := evalAndReduce(t, env, nil, "2+3*4")

	imm, ok := root.(*ImmediateNode)
	require.True(t, ok, "root is %T", root)
	assert.Equal(t, Int32Value(14), imm.Value)
	assert.Equal(t, Int32Value(14), v)
	assert.Equal(t, "2+3*4", imm.ToString())
	assert.Equal(t, NodePosition{Start: 0, End: 5}, imm.Position)
}

func TestReduceFoldsConstantsAndPureCalls(t *testing.T) {
	env := newTestEnv(t)
	for _, text := range []string{
		"Math.PI*2",
		"Sqrt(16)+1",
		"Enabled",
		"LockLevel.Disabled",
		"(2.5cm).Millimeters",
		`"abc".ToUpper()`,
		"Settings.GridSize",
	} {
		t.Run(text, func(t *testing.T) {
			root, err := ParseFormula(text)
			require.NoError(t, err)
			v, err := root.Eval(NewContext(env, nil, nil))
			require.NoError(t, err)
			reduced := Reduce(root)
			imm, ok := reduced.(*ImmediateNode)
			require.True(t, ok, "root is %T", reduced)
			assert.True(t, v.Equal(imm.Value))
			assert.Equal(t, Constant, Volatility(reduced))
		})
	}
}

func TestReduceKeepsPropertyReads(t *testing.T) {
	env := newTestEnv(t)
	obj := newTestObject(env, "a")
	obj.set(t, "X", "5")

	root, v := evalAndReduce(t, env, testRef{obj}, "X+2*3")
	assert.Equal(t, Int32Value(11), v)

	add, ok := root.(*BinaryOpNode)
	require.True(t, ok, "root is %T", root)
	_, ok = add.Left.(*PropertyNode)
	assert.True(t, ok)
	right, ok := add.Right.(*ImmediateNode)
	require.True(t, ok)
	assert.Equal(t, Int32Value(6), right.Value)
	assert.Equal(t, PropertyDependent, Volatility(root))
}

func TestReduceKeepsDataSource(t *testing.T) {
	env := newTestEnv(t)
	obj := newTestObject(env, "a")

	root, _ := evalAndReduce(t, env, testRef{obj}, "@Width,cm")
	ds, ok := root.(*DataSourceNode)
	require.True(t, ok)
	assert.Equal(t, "Width", ds.Property.Name)
}

func TestVolatility(t *testing.T) {
	env := newTestEnv(t)
	obj := newTestObject(env, "a")

	tests := []struct {
		formula string
		want    EvalSpec
	}{
		{"7", Constant},
		{"1+2", FunctionalDependent},
		{"Sqrt(4)", FunctionalDependent},
		{"X*2", PropertyDependent},
		{"Name", Variable},
		{"Random.Next()+X", Variable},
		{"DateTime.Now", Variable},
	}
	for _, tt := range tests {
		t.Run(tt.formula, func(t *testing.T) {
			root, err := ParseFormula(tt.formula)
			require.NoError(t, err)
			_, err = root.Eval(NewContext(env, testRef{obj}, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, Volatility(root))
		})
	}
}

func TestUnevaluatedMembersAreVariable(t *testing.T) {
	root, err := ParseFormula("Sqrt(4)")
	require.NoError(t, err)
	assert.Equal(t, Variable, Volatility(root))
	assert.Same(t, root, Reduce(root))
}

func TestFoldableRequiresEveryChild(t *testing.T) {
	env := newTestEnv(t)
	obj := newTestObject(env, "a")

	root, err := ParseFormula("Double(X)")
	require.NoError(t, err)
	_, err = root.Eval(NewContext(env, testRef{obj}, nil))
	require.NoError(t, err)
	assert.False(t, Foldable(root))

	call := Reduce(root).(*MethodNode)
	assert.IsType(t, &PropertyNode{}, call.Args[0])
}

func TestWalk(t *testing.T) {
	root, err := ParseFormula("Math.Max(1, X, `2`)")
	require.NoError(t, err)

	var kinds []string
	Walk(root, func(n Node) bool {
		switch n.(type) {
		case *MethodNode:
			kinds = append(kinds, "method")
		case *PropertyNode:
			kinds = append(kinds, "prop")
		case *ImmediateNode:
			kinds = append(kinds, "imm")
		case *ImmediateEvalNode:
			kinds = append(kinds, "macro")
			return false
		}
		return true
	})
	assert.Equal(t, []string{"method", "prop", "imm", "prop", "macro"}, kinds)
}
