package formula

import (
	"fmt"
	"testing"
)

func benchCell(b *testing.B, obj *testObject, name, formula string) *FormulaProperty {
	b.Helper()
	if p, ok := obj.extra[name]; ok {
		if err := p.SetFormula(formula, EditByFormula); err != nil {
			b.Fatal(err)
		}
		return p
	}
	return obj.addExtra(name, formula)
}

func benchRead(b *testing.B, p *FormulaProperty) {
	if _, err := p.Value(); err != nil {
		b.Fatal(err)
	}
}

func BenchmarkCompile(b *testing.B) {
	formulas := []string{
		"1+2*3",
		"Math.Max(X, Y, Width/2) + 3mm",
		`"label: " + Name + " " + (2.5cm).Millimeters`,
		"@Peer.Item[1,2],cm",
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, f := range formulas {
			if _, err := ParseFormula(f); err != nil {
				b.Fatal(err)
			}
		}
	}
}

func BenchmarkFormulaDependencyChain(b *testing.B) {
	env := newTestEnv(b)
	obj := newTestObject(env, "a")

	benchCell(b, obj, "C1", "1")
	for i := 2; i <= 100; i++ {
		benchCell(b, obj, fmt.Sprintf("C%d", i), fmt.Sprintf("C%d+1", i-1))
	}
	last := obj.extra["C100"]
	benchRead(b, last)
	first := obj.extra["C1"]

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		first.Invalidate()
		benchRead(b, last)
	}
}

func BenchmarkWideDependencyFanOut(b *testing.B) {
	env := newTestEnv(b)
	obj := newTestObject(env, "a")

	var cells []*FormulaProperty
	for i := 0; i < 500; i++ {
		cells = append(cells, benchCell(b, obj, fmt.Sprintf("F%d", i), "X*2"))
	}
	x := obj.prop("X")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := x.SetValue(Int32Value(int32(i)), EditByValue); err != nil {
			b.Fatal(err)
		}
		for _, c := range cells {
			benchRead(b, c)
		}
	}
}

func BenchmarkCascadingUpdates(b *testing.B) {
	env := newTestEnv(b)
	var rows [][]*FormulaProperty
	var heads []*testObject
	for row := 0; row < 50; row++ {
		obj := newTestObject(env, fmt.Sprintf("r%d", row))
		heads = append(heads, obj)
		var cells []*FormulaProperty
		for col := 1; col < 10; col++ {
			prev := "X"
			if col > 1 {
				prev = fmt.Sprintf("K%d", col-1)
			}
			cells = append(cells, benchCell(b, obj, fmt.Sprintf("K%d", col), prev+"*2"))
		}
		rows = append(rows, cells)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := heads[0].prop("X").SetValue(Int32Value(int32(i%100)), EditByValue); err != nil {
			b.Fatal(err)
		}
		for _, cells := range rows {
			benchRead(b, cells[len(cells)-1])
		}
	}
}

func BenchmarkVolatileFunctions(b *testing.B) {
	env := newTestEnv(b)
	obj := newTestObject(env, "a")

	var cells []*FormulaProperty
	for i := 0; i < 50; i++ {
		benchCell(b, obj, fmt.Sprintf("R%d", i), "Random.Next()")
		cells = append(cells, benchCell(b, obj, fmt.Sprintf("S%d", i), fmt.Sprintf("R%d*100", i)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, c := range cells {
			benchRead(b, c)
		}
	}
}

func BenchmarkCircularReferenceDetection(b *testing.B) {
	env := newTestEnv(b)
	for i := 0; i < b.N; i++ {
		obj := newTestObject(env, "a")
		names := []string{"A", "B", "C", "D", "E", "F", "G", "H"}
		for j, n := range names {
			next := names[(j+1)%len(names)]
			benchCell(b, obj, n, next+"+1")
		}
		if _, err := obj.extra["A"].Value(); CodeOf(err) != ErrorCodeCircular {
			b.Fatalf("expected a circular reference, got %v", err)
		}
	}
}

func BenchmarkManySmallFormulas(b *testing.B) {
	env := newTestEnv(b)
	var cells []*FormulaProperty
	var objs []*testObject
	for row := 0; row < 100; row++ {
		obj := newTestObject(env, fmt.Sprintf("o%d", row))
		objs = append(objs, obj)
		benchCell(b, obj, "B", "X*2")
		benchCell(b, obj, "C", "B+X")
		cells = append(cells, benchCell(b, obj, "D", "C/2"))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, obj := range objs {
			obj.prop("X").Invalidate()
		}
		for _, c := range cells {
			benchRead(b, c)
		}
	}
}

func BenchmarkStringConcatenation(b *testing.B) {
	env := newTestEnv(b)
	obj := newTestObject(env, "a")

	var cells []*FormulaProperty
	for i := 0; i < 100; i++ {
		benchCell(b, obj, fmt.Sprintf("T%d", i), fmt.Sprintf(`"text%d"`, i))
		cells = append(cells, benchCell(b, obj, fmt.Sprintf("U%d", i), fmt.Sprintf(`T%d+"-suffix"`, i)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, c := range cells {
			c.Invalidate()
			benchRead(b, c)
		}
	}
}

func BenchmarkDirtyPropagation(b *testing.B) {
	env := newTestEnv(b)
	obj := newTestObject(env, "a")

	const grid = 20
	name := func(row, col int) string { return fmt.Sprintf("G%d_%d", row, col) }
	for row := 0; row < grid; row++ {
		for col := 0; col < grid; col++ {
			var formula string
			switch {
			case row == 0 && col == 0:
				formula = "X"
			case row == 0:
				formula = name(row, col-1) + "+1"
			case col == 0:
				formula = name(row-1, col) + "+1"
			default:
				formula = name(row, col-1) + "+" + name(row-1, col)
			}
			benchCell(b, obj, name(row, col), formula)
		}
	}
	corner := obj.extra[name(grid-1, grid-1)]
	benchRead(b, corner)
	x := obj.prop("X")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := x.SetValue(Int32Value(int32(i%100)), EditByValue); err != nil {
			b.Fatal(err)
		}
		benchRead(b, corner)
	}
}
