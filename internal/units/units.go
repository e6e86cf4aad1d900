// Package units provides shared constants and validation for the measurement
// unit shown next to a reading.
package units

import (
	"sort"
	"strings"
)

// Unit constants
const (
	Volt      = "V"
	Millivolt = "mV"
	Ampere    = "A"
	Milliamp  = "mA"
	Ohm       = "Ohm"
	Kiloohm   = "kOhm"
	Hertz     = "Hz"
	Farad     = "F"
	Celsius   = "C"
	Percent   = "%"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Volt, Millivolt, Ampere, Milliamp, Ohm, Kiloohm, Hertz, Farad, Celsius, Percent}

// aliases maps loose operator spellings onto the canonical unit. Keys are
// lower case since lookups fold case first.
var aliases = map[string]string{
	"v":     Volt,
	"volt":  Volt,
	"volts": Volt,
	"mv":    Millivolt,
	"a":     Ampere,
	"amp":   Ampere,
	"amps":  Ampere,
	"ma":    Milliamp,
	"ohm":   Ohm,
	"ohms":  Ohm,
	"ω":     Ohm,
	"kohm":  Kiloohm,
	"kω":    Kiloohm,
	"hz":    Hertz,
	"f":     Farad,
	"c":     Celsius,
	"degc":  Celsius,
	"°c":    Celsius,
	"%":     Percent,
}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// Canonical resolves an operator-supplied unit to its canonical spelling.
// The second return is false when the unit is unknown.
func Canonical(unit string) (string, bool) {
	unit = strings.TrimSpace(unit)
	if IsValid(unit) {
		return unit, true
	}
	if c, ok := aliases[strings.ToLower(unit)]; ok {
		return c, true
	}
	return unit, false
}

// Symbol returns the display symbol for a canonical unit.
func Symbol(unit string) string {
	switch unit {
	case Ohm:
		return "Ω"
	case Kiloohm:
		return "kΩ"
	case Celsius:
		return "°C"
	default:
		return unit
	}
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	sorted := append([]string(nil), ValidUnits...)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}
