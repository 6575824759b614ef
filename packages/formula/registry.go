package formula

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"cogentcore.org/core/base/errors"
	"cogentcore.org/core/colors"
)

// Registry is the constant table consulted last during name resolution:
// booleans, Null, enum members, named colors and the built-in type names.
// Lookups ignore case. It is filled once and then frozen.
type Registry struct {
	constants map[string]Value
	names     []string
	enums     map[string]*TypeInfo
	frozen    bool
}

// NewRegistry creates a registry holding True, False and Null
func NewRegistry() *Registry {
	r := &Registry{
		constants: map[string]Value{},
		enums:     map[string]*TypeInfo{},
	}
	r.mustRegister("True", BoolValue(true))
	r.mustRegister("False", BoolValue(false))
	r.mustRegister("Null", Null)
	return r
}

func (r *Registry) mustRegister(name string, v Value) {
	if err := r.Register(name, v); err != nil {
		panic(err)
	}
}

// Register adds a named constant
func (r *Registry) Register(name string, v Value) error {
	if r.frozen {
		return NewApplicationError(FailedPrecondition, "registry is frozen")
	}
	key := strings.ToLower(name)
	if _, ok := r.constants[key]; ok {
		return NewApplicationError(AlreadyExists, fmt.Sprintf("constant %s already registered", name))
	}
	r.constants[key] = v
	r.names = append(r.names, name)
	return nil
}

// RegisterEnum registers each member as a constant, plus the type name as an
// object whose properties are the members, so that both Enabled and
// LockLevel.Enabled resolve.
func (r *Registry) RegisterEnum(typeName string, members ...string) error {
	t := NewTypeInfo(typeName)
	for i, m := range members {
		v := EnumValue(typeName, m, i)
		if err := r.Register(m, v); err != nil {
			return err
		}
		t.AddProperty(constantProperty(m, v))
	}
	r.enums[typeName] = t
	return r.RegisterType(t)
}

// RegisterType makes a static type reachable by its name
func (r *Registry) RegisterType(t *TypeInfo) error {
	return r.Register(t.Name, ObjectValue(&staticType{info: t}))
}

// RegisterNamedColors adds the CSS color names. Names already taken by
// another constant are skipped.
func (r *Registry) RegisterNamedColors() {
	names := make([]string, 0, len(colors.Map))
	for name := range colors.Map {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if _, taken := r.constants[strings.ToLower(name)]; taken {
			logger().Debug("named color shadowed by constant", "name", name)
			continue
		}
		errors.Log(r.Register(name, ColorValue(colors.Map[name])))
	}
}

// Enum returns the member table of a registered enumeration
func (r *Registry) Enum(typeName string) (*TypeInfo, bool) {
	t, ok := r.enums[typeName]
	return t, ok
}

// Lookup resolves a constant by name, ignoring case
func (r *Registry) Lookup(name string) (Value, bool) {
	v, ok := r.constants[strings.ToLower(name)]
	return v, ok
}

// Names lists constants in registration order
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Freeze makes the registry read-only
func (r *Registry) Freeze()      { r.frozen = true }
func (r *Registry) Frozen() bool { return r.frozen }

// Environment is everything an evaluation reads besides its owner: the
// frozen registry, the built-in static types and the clock and random
// sources behind them.
type Environment struct {
	Registry *Registry
	Config   Config

	clock      Clock
	rng        RandomGenerator
	builtins   []*TypeInfo
	valueTypes map[Kind]*TypeInfo
	gridSize   Value
	setup      []func(*Registry) error
}

// EnvOption configures NewEnvironment
type EnvOption func(*Environment)

// WithClock replaces the wall clock behind DateTime.Now and Today
func WithClock(c Clock) EnvOption {
	return func(e *Environment) { e.clock = c }
}

// WithRandom replaces the source behind the Random built-ins
func WithRandom(r RandomGenerator) EnvOption {
	return func(e *Environment) { e.rng = r }
}

// WithRegistrySetup runs fn against the registry before it is frozen, to
// register host enums and constants.
func WithRegistrySetup(fn ...func(*Registry) error) EnvOption {
	return func(e *Environment) { e.setup = append(e.setup, fn...) }
}

// NewEnvironment builds and freezes an environment. Most callers use Init
// and DefaultEnvironment instead; tests build their own.
func NewEnvironment(cfg Config, opts ...EnvOption) (*Environment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	env := &Environment{
		Registry: NewRegistry(),
		Config:   cfg,
		clock:    &WallClock{},
		rng:      &DefaultRandomGenerator{},
	}
	for _, opt := range opts {
		opt(env)
	}

	reg := env.Registry
	if err := registerLevels(reg); err != nil {
		return nil, err
	}
	env.builtins = newBuiltins(env)
	env.valueTypes = newValueTypes()
	for _, t := range env.builtins {
		if err := reg.RegisterType(t); err != nil {
			return nil, err
		}
	}
	for _, fn := range env.setup {
		if err := fn(reg); err != nil {
			return nil, fmt.Errorf("registry setup: %w", err)
		}
	}
	if cfg.NamedColors {
		reg.RegisterNamedColors()
	}

	grid, err := env.evalLiteral(cfg.GridSize)
	if err != nil {
		return nil, fmt.Errorf("config grid_size: %w", err)
	}
	env.gridSize = grid

	names := make([]string, 0, len(cfg.Constants))
	for name := range cfg.Constants {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		v, err := env.evalLiteral(cfg.Constants[name])
		if err != nil {
			return nil, fmt.Errorf("config constant %s: %w", name, err)
		}
		if err := reg.Register(name, v); err != nil {
			return nil, err
		}
	}

	reg.Freeze()
	logger().Debug("formula environment ready", "constants", len(reg.names), "builtins", len(env.builtins))
	return env, nil
}

// evalLiteral evaluates ownerless formula text
func (e *Environment) evalLiteral(text string) (Value, error) {
	if text == "" {
		return Null, nil
	}
	root, err := ParseFormula(text)
	if err != nil {
		return Null, err
	}
	return root.Eval(NewContext(e, nil, nil))
}

// Builtins returns the built-in static types in lookup order
func (e *Environment) Builtins() []*TypeInfo { return slices.Clone(e.builtins) }

func (e *Environment) Clock() Clock { return e.clock }

var (
	initOnce   sync.Once
	defaultEnv *Environment
	initErr    error
)

// Init builds the process-wide environment. It must run before any engine
// use; later calls fail with AlreadyExists.
func Init(cfg Config, setup ...func(*Registry) error) error {
	ran := false
	initOnce.Do(func() {
		ran = true
		defaultEnv, initErr = NewEnvironment(cfg, WithRegistrySetup(setup...))
		if initErr != nil {
			logger().Error("formula init failed", "error", initErr)
		}
	})
	if !ran {
		return NewApplicationError(AlreadyExists, "formula environment already initialized")
	}
	return initErr
}

// DefaultEnvironment returns the environment built by Init, initializing
// it with DefaultConfig on first use.
func DefaultEnvironment() *Environment {
	initOnce.Do(func() {
		defaultEnv, initErr = NewEnvironment(DefaultConfig())
	})
	if defaultEnv == nil {
		// Init failed; fall back so evaluation can still report errors
		defaultEnv = errors.Log1(NewEnvironment(DefaultConfig()))
	}
	return defaultEnv
}
