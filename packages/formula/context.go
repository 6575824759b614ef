package formula

import (
	"fmt"
)

// DependencySink receives every PropertyDependent read made during an
// evaluation.
type DependencySink func(obj Object, prop *PropertyInfo)

// Context resolves names for one evaluation. Lookup order for a name without
// a target: the owner's type, the owner's extra properties, the built-in
// static types in order, then (properties only, without index arguments)
// the constant registry.
type Context struct {
	env   *Environment
	owner OwnerRef
	sink  DependencySink
}

// NewContext creates an evaluation context. owner and sink may be nil.
func NewContext(env *Environment, owner OwnerRef, sink DependencySink) *Context {
	if env == nil {
		env = DefaultEnvironment()
	}
	return &Context{env: env, owner: owner, sink: sink}
}

func (c *Context) Environment() *Environment { return c.env }

// Owner resolves the owner handle
func (c *Context) Owner() (Object, bool) {
	if c.owner == nil {
		return nil, false
	}
	return c.owner.Resolve()
}

// ownerObject returns nil without error when the formula has no owner, and a
// NoOwner error when the owner has been disposed.
func (c *Context) ownerObject() (Object, error) {
	if c.owner == nil {
		return nil, nil
	}
	obj, ok := c.owner.Resolve()
	if !ok {
		return nil, NewError(ErrorCodeNoOwner, "owner no longer exists")
	}
	return obj, nil
}

// typeOf returns the capability table of a target value: the object's own
// type, or the value type table for unit, color, date and string values.
func (c *Context) typeOf(target Value, member string) (*TypeInfo, error) {
	switch target.Kind() {
	case KindObject:
		return target.Object().TypeInfo(), nil
	case KindNull:
		return nil, errorf(ErrorCodeValue, "cannot read %s of Null", member)
	}
	if t, ok := c.env.valueTypes[target.Kind()]; ok {
		return t, nil
	}
	return nil, errorf(ErrorCodeValue, "%s has no member %s", target.Kind(), member)
}

// ResolveProperty reads a property by name. It returns the value together
// with the volatility of the read.
func (c *Context) ResolveProperty(target Value, hasTarget bool, name string, args []Value) (Value, EvalSpec, error) {
	if hasTarget {
		t, err := c.typeOf(target, name)
		if err != nil {
			return Null, Variable, err
		}
		if p, ok := c.findProperty(target, t, name); ok {
			return c.read(target, p, args)
		}
		return Null, Variable, c.notFound(t.Name, name)
	}

	owner, err := c.ownerObject()
	if err != nil {
		return Null, Variable, err
	}
	if owner != nil {
		self := ObjectValue(owner)
		if p, ok := c.findProperty(self, owner.TypeInfo(), name); ok {
			return c.read(self, p, args)
		}
	}
	for _, t := range c.env.builtins {
		if p, ok := t.Property(name); ok {
			return c.read(Null, p, args)
		}
	}
	if len(args) == 0 {
		if v, ok := c.env.Registry.Lookup(name); ok {
			return v, Constant, nil
		}
	}
	return Null, Variable, c.notFound("", name)
}

// findProperty looks in the type table, then in the object's extra
// properties.
func (c *Context) findProperty(self Value, t *TypeInfo, name string) (*PropertyInfo, bool) {
	if p, ok := t.Property(name); ok {
		return p, true
	}
	host, ok := self.Object().(ExtraPropertyHost)
	if !ok {
		return nil, false
	}
	cell, ok := host.ExtraProperty(name)
	if !ok {
		return nil, false
	}
	return extraPropertyInfo(name, cell), true
}

func extraPropertyInfo(name string, cell *FormulaProperty) *PropertyInfo {
	return &PropertyInfo{
		Name: name,
		cell: cell,
		Get: func(Value, []Value) (Value, error) {
			return cell.Value()
		},
		Set: func(_ Value, _ []Value, v Value) error {
			return cell.SetValue(v, EditByFormula)
		},
	}
}

func (c *Context) read(self Value, p *PropertyInfo, args []Value) (Value, EvalSpec, error) {
	if err := checkIndex(p, args); err != nil {
		return Null, Variable, err
	}
	spec := p.Spec()
	if spec == PropertyDependent && c.sink != nil && self.Kind() == KindObject {
		c.sink(self.Object(), p)
	}
	v, err := p.Get(self, args)
	if err != nil {
		return Null, spec, err
	}
	return v, spec, nil
}

func checkIndex(p *PropertyInfo, args []Value) error {
	switch {
	case len(args) > 0 && !p.Indexed:
		return errorf(ErrorCodeValue, "%s is not indexed", p.Name)
	case len(args) == 0 && p.Indexed:
		return errorf(ErrorCodeValue, "%s requires an index", p.Name)
	}
	return nil
}

// ResolveMethod calls a method by name. Constants are not consulted.
func (c *Context) ResolveMethod(target Value, hasTarget bool, name string, args []Value) (Value, EvalSpec, error) {
	if hasTarget {
		t, err := c.typeOf(target, name)
		if err != nil {
			return Null, Variable, err
		}
		return c.call(target, t, name, args)
	}

	owner, err := c.ownerObject()
	if err != nil {
		return Null, Variable, err
	}
	if owner != nil && owner.TypeInfo().HasMethod(name) {
		return c.call(ObjectValue(owner), owner.TypeInfo(), name, args)
	}
	for _, t := range c.env.builtins {
		if t.HasMethod(name) {
			return c.call(Null, t, name, args)
		}
	}
	return Null, Variable, c.notFound("", name+"()")
}

func (c *Context) call(self Value, t *TypeInfo, name string, args []Value) (Value, EvalSpec, error) {
	m, ok := t.Method(name, len(args))
	if !ok {
		if t.HasMethod(name) {
			return Null, Variable, errorf(ErrorCodeValue, "%s.%s does not take %d arguments", t.Name, name, len(args))
		}
		return Null, Variable, c.notFound(t.Name, name+"()")
	}
	spec := m.Spec()
	v, err := m.Invoke(c, self, args)
	if err != nil {
		return Null, spec, err
	}
	return v, spec, nil
}

// SetProperty writes a property through the same lookup as ResolveProperty.
func (c *Context) SetProperty(target Value, hasTarget bool, name string, args []Value, v Value) error {
	self, p, err := c.lookupSettable(target, hasTarget, name)
	if err != nil {
		return err
	}
	if err := checkIndex(p, args); err != nil {
		return err
	}
	if p.Set == nil {
		return errorf(ErrorCodeValue, "%s is read-only", name)
	}
	return p.Set(self, args, v)
}

func (c *Context) lookupSettable(target Value, hasTarget bool, name string) (Value, *PropertyInfo, error) {
	if hasTarget {
		t, err := c.typeOf(target, name)
		if err != nil {
			return Null, nil, err
		}
		if p, ok := c.findProperty(target, t, name); ok {
			return target, p, nil
		}
		return Null, nil, c.notFound(t.Name, name)
	}
	owner, err := c.ownerObject()
	if err != nil {
		return Null, nil, err
	}
	if owner != nil {
		self := ObjectValue(owner)
		if p, ok := c.findProperty(self, owner.TypeInfo(), name); ok {
			return self, p, nil
		}
	}
	for _, t := range c.env.builtins {
		if p, ok := t.Property(name); ok {
			return Null, p, nil
		}
	}
	return Null, nil, c.notFound("", name)
}

// Read resolves a property of obj by name with dependency tracking. Methods
// of host types use it to read other properties.
func (c *Context) Read(obj Object, name string) (Value, error) {
	v, _, err := c.ResolveProperty(ObjectValue(obj), true, name, nil)
	return v, err
}

func (c *Context) notFound(typeName, name string) error {
	if typeName != "" {
		return NewError(ErrorCodeName, fmt.Sprintf("%s has no member %s", typeName, name))
	}
	return NewError(ErrorCodeName, "unknown name "+name)
}
