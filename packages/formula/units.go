package formula

import (
	"math"
	"strconv"
	"strings"

	"cogentcore.org/core/styles/units"
)

// Distance is a length together with the unit it was written in. Arithmetic
// between distances converts the right operand into the left one's unit.
type Distance struct {
	Value float64
	Unit  units.Units
}

// Angle is an angle held in degrees.
type Angle struct {
	Degrees float64
}

// lengthUnits maps formula suffixes to length units
var lengthUnits = map[string]units.Units{
	"mm": units.UnitMm,
	"cm": units.UnitCm,
	"in": units.UnitIn,
	"pt": units.UnitPt,
	"px": units.UnitPx,
	"pc": units.UnitPc,
	"q":  units.UnitQ,
}

// angleUnits maps formula suffixes to the number of degrees per unit
var angleUnits = map[string]float64{
	"deg":  1,
	"rad":  180 / math.Pi,
	"grad": 0.9,
}

// LengthUnit returns the length unit for a suffix such as "cm".
func LengthUnit(suffix string) (units.Units, bool) {
	u, ok := lengthUnits[strings.ToLower(suffix)]
	return u, ok
}

// IsUnitSuffix reports whether s is a recognised length or angle suffix.
func IsUnitSuffix(s string) bool {
	s = strings.ToLower(s)
	if _, ok := lengthUnits[s]; ok {
		return true
	}
	_, ok := angleUnits[s]
	return ok
}

// UnitValue builds the Distance or Angle value for a number and a suffix.
func UnitValue(v float64, suffix string) (Value, bool) {
	s := strings.ToLower(suffix)
	if u, ok := lengthUnits[s]; ok {
		return DistanceValue(Distance{Value: v, Unit: u}), true
	}
	if f, ok := angleUnits[s]; ok {
		return AngleValue(Angle{Degrees: v * f}), true
	}
	return Null, false
}

// UnitSuffix returns the formula suffix of a length unit
func UnitSuffix(u units.Units) string {
	for s, lu := range lengthUnits {
		if lu == u {
			return s
		}
	}
	return "px"
}

func perInch(u units.Units) float64 {
	switch u {
	case units.UnitMm:
		return units.MmPerInch
	case units.UnitCm:
		return units.CmPerInch
	case units.UnitIn:
		return 1
	case units.UnitPt:
		return units.PtPerInch
	case units.UnitPc:
		return units.PcPerInch
	case units.UnitQ:
		return units.MmPerInch * 4
	default:
		return units.PxPerInch
	}
}

// In converts the distance to the given unit.
func (d Distance) In(u units.Units) Distance {
	if d.Unit == u {
		return d
	}
	return Distance{Value: d.Value / perInch(d.Unit) * perInch(u), Unit: u}
}

// Millimeters returns the distance in millimeters
func (d Distance) Millimeters() float64 {
	return d.In(units.UnitMm).Value
}

func (d Distance) String() string {
	return formatFloat(d.Value) + UnitSuffix(d.Unit)
}

// Radians returns the angle in radians
func (a Angle) Radians() float64 {
	return a.Degrees * math.Pi / 180
}

func (a Angle) String() string {
	return formatFloat(a.Degrees) + "deg"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
