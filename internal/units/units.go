// Package units provides shared constants, validation and conversion for
// temperature units.
package units

import (
	"fmt"
	"strings"
)

// Unit constants
const (
	Kelvin     = "K"
	Celsius    = "C"
	Fahrenheit = "F"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Kelvin, Celsius, Fahrenheit}

// Normalize maps the accepted spellings of a unit ("c", "celsius",
// "Kelvin", ...) onto its constant. ok is false for anything else.
func Normalize(unit string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "k", "kelvin":
		return Kelvin, true
	case "c", "celsius":
		return Celsius, true
	case "f", "fahrenheit":
		return Fahrenheit, true
	default:
		return "", false
	}
}

// IsValid checks if the given unit is an accepted spelling of a unit.
func IsValid(unit string) bool {
	_, ok := Normalize(unit)
	return ok
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ToKelvin converts a temperature in unit to Kelvin.
func ToKelvin(value float64, unit string) (float64, error) {
	u, ok := Normalize(unit)
	if !ok {
		return 0, fmt.Errorf("unknown temperature unit %q (want %s)", unit, GetValidUnitsString())
	}
	switch u {
	case Celsius:
		return value + 273.15, nil
	case Fahrenheit:
		return (value-32)*5/9 + 273.15, nil
	default:
		return value, nil
	}
}

// FromKelvin converts a temperature in Kelvin to unit. Unknown units are
// returned in Kelvin.
func FromKelvin(kelvin float64, unit string) float64 {
	u, _ := Normalize(unit)
	switch u {
	case Celsius:
		return kelvin - 273.15
	case Fahrenheit:
		return (kelvin-273.15)*9/5 + 32
	default:
		return kelvin
	}
}
