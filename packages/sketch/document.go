package sketch

import (
	"fmt"
	"log/slog"

	"github.com/calc33/Sketch.NET-sub000/packages/formula"
	"github.com/google/uuid"
)

// ObjectID identifies a shape for the lifetime of its document. IDs are never
// reused, so a handle to a removed shape stays dead.
type ObjectID = uuid.UUID

// shapeTable manages shape storage and ID mappings
type shapeTable struct {
	nameToID map[string]ObjectID // name -> ID for all shapes
	idToName map[ObjectID]string // ID -> name for all shapes
	shapes   map[ObjectID]*Shape // ID -> shape
	order    []ObjectID          // insertion order
}

func newShapeTable() *shapeTable {
	return &shapeTable{
		nameToID: make(map[string]ObjectID),
		idToName: make(map[ObjectID]string),
		shapes:   make(map[ObjectID]*Shape),
	}
}

// define adds shape under name. returns false if the name is taken.
func (st *shapeTable) define(name string, shape *Shape) bool {
	if _, exists := st.nameToID[name]; exists {
		return false
	}
	st.nameToID[name] = shape.id
	st.idToName[shape.id] = name
	st.shapes[shape.id] = shape
	st.order = append(st.order, shape.id)
	return true
}

// undefine removes a shape completely from all tracking maps
func (st *shapeTable) undefine(id ObjectID) {
	name := st.idToName[id]
	delete(st.nameToID, name)
	delete(st.idToName, id)
	delete(st.shapes, id)
	for i, other := range st.order {
		if other == id {
			st.order = append(st.order[:i], st.order[i+1:]...)
			break
		}
	}
}

func (st *shapeTable) rename(id ObjectID, name string) {
	delete(st.nameToID, st.idToName[id])
	st.nameToID[name] = id
	st.idToName[id] = name
}

func (st *shapeTable) byName(name string) (*Shape, bool) {
	id, exists := st.nameToID[name]
	if !exists {
		return nil, false
	}
	return st.byID(id)
}

func (st *shapeTable) byID(id ObjectID) (*Shape, bool) {
	shape, exists := st.shapes[id]
	return shape, exists
}

// Document owns a set of named shapes and the environment their formulas are
// evaluated in.
type Document struct {
	env    *formula.Environment
	table  *shapeTable
	logger *slog.Logger
}

// Option configures a Document
type Option func(*Document)

// WithLogger routes document logging to l
func WithLogger(l *slog.Logger) Option {
	return func(d *Document) { d.logger = l }
}

// NewDocument creates an empty document. A nil env uses the default
// environment.
func NewDocument(env *formula.Environment, opts ...Option) *Document {
	if env == nil {
		env = formula.DefaultEnvironment()
	}
	d := &Document{
		env:    env,
		table:  newShapeTable(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Document) Environment() *formula.Environment { return d.env }

func (d *Document) TypeInfo() *formula.TypeInfo { return documentType }

func (d *Document) String() string {
	return fmt.Sprintf("Document(%d shapes)", d.Count())
}

// Count returns the number of shapes
func (d *Document) Count() int {
	return len(d.table.order)
}

// AddShape creates a shape with the default formulas under name
func (d *Document) AddShape(name string) (*Shape, error) {
	if name == "" {
		return nil, formula.NewApplicationError(formula.InvalidArgument, "shape name must not be empty")
	}
	if _, exists := d.table.byName(name); exists {
		return nil, formula.NewApplicationError(formula.AlreadyExists, fmt.Sprintf("shape %s already exists", name))
	}
	shape := newShape(d, uuid.New(), name)
	d.table.define(name, shape)
	d.logger.Debug("shape added", "shape", name, "id", shape.id)
	return shape, nil
}

// Shape returns the shape called name
func (d *Document) Shape(name string) (*Shape, bool) {
	return d.table.byName(name)
}

// Lookup returns the shape with the given ID, if it still exists
func (d *Document) Lookup(id ObjectID) (*Shape, bool) {
	return d.table.byID(id)
}

// Shapes returns the shapes in the order they were added
func (d *Document) Shapes() []*Shape {
	shapes := make([]*Shape, 0, len(d.table.order))
	for _, id := range d.table.order {
		shapes = append(shapes, d.table.shapes[id])
	}
	return shapes
}

// RemoveShape removes the shape called name and disposes its properties.
// Formulas reading them are invalidated and fail on their next evaluation.
func (d *Document) RemoveShape(name string) error {
	shape, exists := d.table.byName(name)
	if !exists {
		return formula.NewApplicationError(formula.NotFound, fmt.Sprintf("shape %s not found", name))
	}
	d.table.undefine(shape.id)
	shape.dispose()
	d.logger.Debug("shape removed", "shape", name, "id", shape.id)
	return nil
}

// RenameShape changes a shape's name. Formulas reading the shape are
// invalidated, since they may have found it by its old name.
func (d *Document) RenameShape(oldName, newName string) error {
	shape, exists := d.table.byName(oldName)
	if !exists {
		return formula.NewApplicationError(formula.NotFound, fmt.Sprintf("shape %s not found", oldName))
	}
	if oldName == newName {
		return nil
	}
	if newName == "" {
		return formula.NewApplicationError(formula.InvalidArgument, "shape name must not be empty")
	}
	if _, taken := d.table.byName(newName); taken {
		return formula.NewApplicationError(formula.AlreadyExists, fmt.Sprintf("shape %s already exists", newName))
	}
	d.table.rename(shape.id, newName)
	shape.name = newName
	shape.invalidate()
	d.logger.Debug("shape renamed", "from", oldName, "to", newName, "id", shape.id)
	return nil
}

// shapeByName is the getter behind the indexed Shape[name] property of both
// documents and shapes.
func shapeByName(doc *Document, args []formula.Value) (formula.Value, error) {
	name, ok := args[0].Text()
	if !ok {
		return formula.Null, formula.NewError(formula.ErrorCodeValue, fmt.Sprintf("shape name must be a string, got %s", args[0].Kind()))
	}
	shape, exists := doc.Shape(name)
	if !exists {
		return formula.Null, formula.NewError(formula.ErrorCodeName, "unknown shape "+name)
	}
	return formula.ObjectValue(shape), nil
}

var documentType = func() *formula.TypeInfo {
	t := formula.NewTypeInfo("Document")
	t.AddProperty(&formula.PropertyInfo{
		Name:       "Shape",
		Indexed:    true,
		Annotated:  true,
		Volatility: formula.PropertyDependent,
		Get: func(self formula.Value, args []formula.Value) (formula.Value, error) {
			return shapeByName(self.Object().(*Document), args)
		},
	})
	t.AddProperty(&formula.PropertyInfo{
		Name: "Count",
		Get: func(self formula.Value, _ []formula.Value) (formula.Value, error) {
			return formula.Int32Value(int32(self.Object().(*Document).Count())), nil
		},
	})
	return t
}()
