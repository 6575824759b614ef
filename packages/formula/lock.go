package formula

// LockLevel is how far a property may be edited. It is itself computed by
// a formula, usually one of the LockLevel enum constants.
type LockLevel int

const (
	Disabled LockLevel = iota
	ValueDisabled
	KnobDisabled
	Enabled
)

var lockLevelNames = [...]string{"Disabled", "ValueDisabled", "KnobDisabled", "Enabled"}

func (l LockLevel) String() string {
	if l >= 0 && int(l) < len(lockLevelNames) {
		return lockLevelNames[l]
	}
	return "LockLevel(?)"
}

// EditingLevel is the kind of edit being attempted.
type EditingLevel int

const (
	// EditByFormula replaces the formula text
	EditByFormula EditingLevel = iota
	// EditByValue sets a value typed by the user
	EditByValue
	// EditByKnob drags a handle on the canvas
	EditByKnob
)

var editingLevelNames = [...]string{"EditByFormula", "EditByValue", "EditByKnob"}

func (e EditingLevel) String() string {
	if e >= 0 && int(e) < len(editingLevelNames) {
		return editingLevelNames[e]
	}
	return "EditingLevel(?)"
}

// Allows reports whether an edit at level e passes lock level l. Each lock
// level admits the edits ranked strictly below it, so Enabled admits all
// three and Disabled none.
func (l LockLevel) Allows(e EditingLevel) bool {
	return int(e) < int(l)
}

func registerLevels(r *Registry) error {
	if err := r.RegisterEnum("LockLevel", lockLevelNames[:]...); err != nil {
		return err
	}
	return r.RegisterEnum("EditingLevel", editingLevelNames[:]...)
}

// lockLevelOf converts the value of a lock formula. LockLevel members and
// integers are accepted; anything else is a Value error.
func lockLevelOf(v Value) (LockLevel, error) {
	switch v.Kind() {
	case KindEnum:
		typ, member, ordinal := v.Enum()
		if typ != "LockLevel" {
			return Disabled, errorf(ErrorCodeValue, "lock formula gave %s.%s", typ, member)
		}
		return LockLevel(ordinal), nil
	case KindInt32, KindInt64, KindUint64, KindDecimal:
		n, ok := v.Int()
		if ok && n >= int64(Disabled) && n <= int64(Enabled) {
			return LockLevel(n), nil
		}
	}
	return Disabled, errorf(ErrorCodeValue, "lock formula gave %s %s", v.Kind(), v)
}
