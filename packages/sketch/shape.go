package sketch

import (
	"fmt"
	"math"

	"cogentcore.org/core/styles/units"
	"github.com/calc33/Sketch.NET-sub000/packages/formula"
)

// shapeDefs declares the formula-backed properties every shape carries
var shapeDefs = func() *formula.PropertyDefCollection {
	c := formula.NewPropertyDefCollection(nil)
	c.Add("X", "0mm")
	c.Add("Y", "0mm")
	c.Add("Width", "10mm")
	c.Add("Height", "10mm")
	c.Add("Angle", "0deg")
	c.Add("LineWidth", "0.25mm")
	c.Add("FillColor", "#FFFFFFFF")
	c.Add("Visible", "True")
	return c
}()

// shapeRef is a weak handle to a shape. It stops resolving once the shape is
// removed from its document.
type shapeRef struct {
	doc *Document
	id  ObjectID
}

func (r shapeRef) Resolve() (formula.Object, bool) {
	shape, ok := r.doc.Lookup(r.id)
	if !ok {
		return nil, false
	}
	return shape, true
}

// Shape is a named drawing object whose geometry and style are formulas.
type Shape struct {
	id    ObjectID
	name  string
	doc   *Document
	props []*formula.FormulaProperty

	extra      map[string]*formula.FormulaProperty
	extraOrder []string
}

func newShape(doc *Document, id ObjectID, name string) *Shape {
	s := &Shape{
		id:    id,
		name:  name,
		doc:   doc,
		extra: make(map[string]*formula.FormulaProperty),
	}
	s.props = shapeDefs.NewProperties(s.ref(), formula.WithEnvironment(doc.env))
	return s
}

func (s *Shape) ID() ObjectID                { return s.id }
func (s *Shape) Name() string                { return s.name }
func (s *Shape) Document() *Document         { return s.doc }
func (s *Shape) TypeInfo() *formula.TypeInfo { return shapeType }
func (s *Shape) String() string              { return s.name }
func (s *Shape) ref() formula.OwnerRef       { return shapeRef{doc: s.doc, id: s.id} }
func (s *Shape) ExtraNames() []string        { return append([]string(nil), s.extraOrder...) }

// Declared returns the defs of the properties every shape carries, in index
// order.
func (s *Shape) Declared() []*formula.PropertyDef {
	return shapeDefs.All()
}

// FormulaProperty returns the declared property at index
func (s *Shape) FormulaProperty(index int) *formula.FormulaProperty {
	if index < 0 || index >= len(s.props) {
		return nil
	}
	return s.props[index]
}

// ExtraProperty returns a property added with AddProperty
func (s *Shape) ExtraProperty(name string) (*formula.FormulaProperty, bool) {
	p, ok := s.extra[name]
	return p, ok
}

// Property returns the declared or extra property called name
func (s *Shape) Property(name string) (*formula.FormulaProperty, bool) {
	if d, ok := shapeDefs.Get(name); ok {
		return s.props[d.Index], true
	}
	return s.ExtraProperty(name)
}

// AddProperty adds a dynamic property holding text
func (s *Shape) AddProperty(name, text string, opts ...formula.Option) (*formula.FormulaProperty, error) {
	if name == "" {
		return nil, formula.NewApplicationError(formula.InvalidArgument, "property name must not be empty")
	}
	if _, exists := s.Property(name); exists {
		return nil, formula.NewApplicationError(formula.AlreadyExists, fmt.Sprintf("%s already has a property %s", s.name, name))
	}
	if _, member := shapeType.Property(name); member {
		return nil, formula.NewApplicationError(formula.AlreadyExists, fmt.Sprintf("%s is a member of %s", name, shapeType.Name))
	}
	opts = append([]formula.Option{formula.WithEnvironment(s.doc.env)}, opts...)
	p := formula.NewFormulaProperty(name, s.ref(), text, opts...)
	s.extra[name] = p
	s.extraOrder = append(s.extraOrder, name)
	return p, nil
}

// RemoveProperty disposes and removes an extra property
func (s *Shape) RemoveProperty(name string) error {
	p, ok := s.extra[name]
	if !ok {
		return formula.NewApplicationError(formula.NotFound, fmt.Sprintf("%s has no extra property %s", s.name, name))
	}
	p.Dispose()
	delete(s.extra, name)
	for i, n := range s.extraOrder {
		if n == name {
			s.extraOrder = append(s.extraOrder[:i], s.extraOrder[i+1:]...)
			break
		}
	}
	return nil
}

// Value reads the property called name
func (s *Shape) Value(name string) (formula.Value, error) {
	p, err := s.lookup(name)
	if err != nil {
		return formula.Null, err
	}
	return p.Value()
}

// SetFormula replaces the formula of the property called name
func (s *Shape) SetFormula(name, text string, level formula.EditingLevel) error {
	p, err := s.lookup(name)
	if err != nil {
		return err
	}
	return p.SetFormula(text, level)
}

// SetValue stores v into the property called name
func (s *Shape) SetValue(name string, v formula.Value, level formula.EditingLevel) error {
	p, err := s.lookup(name)
	if err != nil {
		return err
	}
	return p.SetValue(v, level)
}

func (s *Shape) lookup(name string) (*formula.FormulaProperty, error) {
	p, ok := s.Property(name)
	if !ok {
		return nil, formula.NewApplicationError(formula.NotFound, fmt.Sprintf("%s has no property %s", s.name, name))
	}
	return p, nil
}

func (s *Shape) all() []*formula.FormulaProperty {
	all := append([]*formula.FormulaProperty(nil), s.props...)
	for _, name := range s.extraOrder {
		all = append(all, s.extra[name])
	}
	return all
}

func (s *Shape) invalidate() {
	for _, p := range s.all() {
		p.Invalidate()
	}
}

func (s *Shape) dispose() {
	for _, p := range s.all() {
		p.Dispose()
	}
}

// position reads X and Y in millimeters with dependency tracking
func position(ctx *formula.Context, s *Shape) (float64, float64, error) {
	coords := [2]float64{}
	for i, name := range []string{"X", "Y"} {
		v, err := ctx.Read(s, name)
		if err != nil {
			return 0, 0, err
		}
		f, ok := v.Float()
		if !ok {
			return 0, 0, formula.NewError(formula.ErrorCodeValue, fmt.Sprintf("%s.%s is not a distance", s.name, name))
		}
		coords[i] = f
	}
	return coords[0], coords[1], nil
}

var shapeType = func() *formula.TypeInfo {
	t := formula.NewTypeInfo("Shape")
	shapeDefs.Bind(t)
	t.AddProperty(&formula.PropertyInfo{
		Name: "Name",
		Get: func(self formula.Value, _ []formula.Value) (formula.Value, error) {
			return formula.StringValue(self.Object().(*Shape).name), nil
		},
	})
	t.AddProperty(&formula.PropertyInfo{
		Name:       "Document",
		Annotated:  true,
		Volatility: formula.FunctionalDependent,
		Get: func(self formula.Value, _ []formula.Value) (formula.Value, error) {
			return formula.ObjectValue(self.Object().(*Shape).doc), nil
		},
	})
	t.AddProperty(&formula.PropertyInfo{
		Name:       "Shape",
		Indexed:    true,
		Annotated:  true,
		Volatility: formula.PropertyDependent,
		Get: func(self formula.Value, args []formula.Value) (formula.Value, error) {
			return shapeByName(self.Object().(*Shape).doc, args)
		},
	})
	t.AddMethod(&formula.MethodInfo{
		Name:    "Distance",
		MinArgs: 1,
		MaxArgs: 1,
		Invoke: func(ctx *formula.Context, self formula.Value, args []formula.Value) (formula.Value, error) {
			other, ok := args[0].Object().(*Shape)
			if !ok {
				return formula.Null, formula.NewError(formula.ErrorCodeValue, fmt.Sprintf("Distance expects a shape, got %s", args[0].Kind()))
			}
			x1, y1, err := position(ctx, self.Object().(*Shape))
			if err != nil {
				return formula.Null, err
			}
			x2, y2, err := position(ctx, other)
			if err != nil {
				return formula.Null, err
			}
			return formula.DistanceValue(formula.Distance{Value: math.Hypot(x2-x1, y2-y1), Unit: units.UnitMm}), nil
		},
	})
	return t
}()
