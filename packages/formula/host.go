package formula

import "slices"

// Object is anything a formula can name: host domain objects and the built-in
// static types.
type Object interface {
	TypeInfo() *TypeInfo
}

// FormulaHost is an object whose declared properties are backed by formula
// cells, addressed by PropertyDef index.
type FormulaHost interface {
	Object
	FormulaProperty(index int) *FormulaProperty
}

// ExtraPropertyHost is an object carrying dynamically added properties.
type ExtraPropertyHost interface {
	Object
	ExtraProperty(name string) (*FormulaProperty, bool)
}

// OwnerRef is a non-owning handle to the object a formula belongs to.
// Resolve reports false once the object no longer exists.
type OwnerRef interface {
	Resolve() (Object, bool)
}

// Getter reads a property. self is Null for static types.
type Getter func(self Value, args []Value) (Value, error)

// Setter writes a property.
type Setter func(self Value, args []Value, v Value) error

// PropertyInfo describes one readable property of a type.
type PropertyInfo struct {
	Name    string
	Get     Getter
	Set     Setter // nil for read-only properties
	Indexed bool   // accepts [args]

	// Volatility is used only when Annotated is set.
	Volatility EvalSpec
	Annotated  bool

	// Def associates the property with the FormulaProperty at Def.Index on
	// a FormulaHost. Nil for plain properties.
	Def *PropertyDef

	cell *FormulaProperty // set for extra properties
}

// Spec returns the volatility of reading the property
func (p *PropertyInfo) Spec() EvalSpec {
	switch {
	case p.Annotated:
		return p.Volatility
	case p.Def != nil || p.cell != nil:
		return PropertyDependent
	}
	return Variable
}

// Cell returns the formula cell behind the property on obj, if any.
func (p *PropertyInfo) Cell(obj Object) (*FormulaProperty, bool) {
	if p.cell != nil {
		return p.cell, true
	}
	if p.Def == nil {
		return nil, false
	}
	host, ok := obj.(FormulaHost)
	if !ok {
		return nil, false
	}
	fp := host.FormulaProperty(p.Def.Index)
	return fp, fp != nil
}

// Variadic is the MaxArgs of a method accepting any number of arguments
const Variadic = -1

// MethodInfo describes one callable member of a type.
type MethodInfo struct {
	Name    string
	MinArgs int
	MaxArgs int // Variadic for no limit
	Invoke  func(ctx *Context, self Value, args []Value) (Value, error)

	// Volatility is used only when Annotated is set; it must be Variable or
	// FunctionalDependent.
	Volatility EvalSpec
	Annotated  bool
}

// Spec returns the volatility of calling the method
func (m *MethodInfo) Spec() EvalSpec {
	if m.Annotated && m.Volatility == Variable {
		return Variable
	}
	return FunctionalDependent
}

func (m *MethodInfo) accepts(n int) bool {
	return n >= m.MinArgs && (m.MaxArgs == Variadic || n <= m.MaxArgs)
}

// TypeInfo is the capability table of a host type: its properties and
// methods by name. It is built once when the type is defined.
type TypeInfo struct {
	Name       string
	properties map[string]*PropertyInfo
	methods    map[string][]*MethodInfo
}

// NewTypeInfo creates an empty capability table
func NewTypeInfo(name string) *TypeInfo {
	return &TypeInfo{
		Name:       name,
		properties: map[string]*PropertyInfo{},
		methods:    map[string][]*MethodInfo{},
	}
}

// AddProperty registers p, replacing any property of the same name.
func (t *TypeInfo) AddProperty(p *PropertyInfo) *TypeInfo {
	t.properties[p.Name] = p
	return t
}

// AddMethod registers an overload of m.Name.
func (t *TypeInfo) AddMethod(m *MethodInfo) *TypeInfo {
	t.methods[m.Name] = append(t.methods[m.Name], m)
	return t
}

// Property looks up a property by name.
func (t *TypeInfo) Property(name string) (*PropertyInfo, bool) {
	p, ok := t.properties[name]
	return p, ok
}

// Method looks up the overload of name accepting argc arguments.
func (t *TypeInfo) Method(name string, argc int) (*MethodInfo, bool) {
	for _, m := range t.methods[name] {
		if m.accepts(argc) {
			return m, true
		}
	}
	return nil, false
}

// HasMethod reports whether any overload of name exists
func (t *TypeInfo) HasMethod(name string) bool {
	return len(t.methods[name]) > 0
}

// PropertyNames lists property names in sorted order
func (t *TypeInfo) PropertyNames() []string {
	names := make([]string, 0, len(t.properties))
	for n := range t.properties {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// MethodNames lists method names in sorted order
func (t *TypeInfo) MethodNames() []string {
	names := make([]string, 0, len(t.methods))
	for n := range t.methods {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// staticType is the Object a built-in type name resolves to, so that
// Math.PI reads the same as PI.
type staticType struct {
	info *TypeInfo
}

func (s *staticType) TypeInfo() *TypeInfo { return s.info }
func (s *staticType) String() string      { return s.info.Name }
