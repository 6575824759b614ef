package formula

import "fmt"

// PropertyDef declares one formula-backed property of a host type.
type PropertyDef struct {
	Name           string
	DefaultFormula string
	Index          int
}

// PropertyDefCollection is the ordered set of PropertyDefs of a host type.
// Indexes are stable and dense, starting after the base collection's.
type PropertyDefCollection struct {
	defs   []*PropertyDef
	byName map[string]*PropertyDef
}

// NewPropertyDefCollection creates a collection that starts with the defs of
// base, which may be nil.
func NewPropertyDefCollection(base *PropertyDefCollection) *PropertyDefCollection {
	c := &PropertyDefCollection{byName: map[string]*PropertyDef{}}
	if base != nil {
		for _, d := range base.defs {
			c.defs = append(c.defs, d)
			c.byName[d.Name] = d
		}
	}
	return c
}

// Add declares a property. Redeclaring a name inherited from the base
// collection overrides its default formula and keeps its index.
func (c *PropertyDefCollection) Add(name, defaultFormula string) *PropertyDef {
	if old, ok := c.byName[name]; ok {
		d := &PropertyDef{Name: name, DefaultFormula: defaultFormula, Index: old.Index}
		c.defs[old.Index] = d
		c.byName[name] = d
		return d
	}
	d := &PropertyDef{Name: name, DefaultFormula: defaultFormula, Index: len(c.defs)}
	c.defs = append(c.defs, d)
	c.byName[name] = d
	return d
}

// Get looks up a def by name
func (c *PropertyDefCollection) Get(name string) (*PropertyDef, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// At returns the def with the given index
func (c *PropertyDefCollection) At(index int) *PropertyDef {
	return c.defs[index]
}

func (c *PropertyDefCollection) Len() int { return len(c.defs) }

// All returns the defs in index order
func (c *PropertyDefCollection) All() []*PropertyDef {
	return append([]*PropertyDef(nil), c.defs...)
}

// NewProperties creates one FormulaProperty per def, holding its default
// formula, indexed like the defs.
func (c *PropertyDefCollection) NewProperties(owner OwnerRef, opts ...Option) []*FormulaProperty {
	props := make([]*FormulaProperty, len(c.defs))
	for i, d := range c.defs {
		props[i] = NewFormulaProperty(d.Name, owner, d.DefaultFormula, opts...)
	}
	return props
}

// Bind adds one PropertyInfo per def to t. Reads return the cell's value;
// writes go through the cell at EditByFormula level.
func (c *PropertyDefCollection) Bind(t *TypeInfo) {
	for _, d := range c.defs {
		t.AddProperty(&PropertyInfo{
			Name: d.Name,
			Def:  d,
			Get: func(self Value, _ []Value) (Value, error) {
				fp, err := cellOf(self, d)
				if err != nil {
					return Null, err
				}
				return fp.Value()
			},
			Set: func(self Value, _ []Value, v Value) error {
				fp, err := cellOf(self, d)
				if err != nil {
					return err
				}
				return fp.SetValue(v, EditByFormula)
			},
		})
	}
}

func cellOf(self Value, d *PropertyDef) (*FormulaProperty, error) {
	host, ok := self.Object().(FormulaHost)
	if !ok {
		return nil, errorf(ErrorCodeValue, "%s is not a formula host", self.Kind())
	}
	fp := host.FormulaProperty(d.Index)
	if fp == nil {
		return nil, NewError(ErrorCodeName, fmt.Sprintf("%s has no cell for %s", host.TypeInfo().Name, d.Name))
	}
	return fp, nil
}
