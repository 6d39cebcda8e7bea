// Package units provides shared constants and conversion for reported
// mass and area units.
package units

import "strings"

// Mass unit constants
const (
	KG = "kg"
	MG = "Mg" // megagram
	T  = "t"  // metric tonne
	LB = "lb"
)

// ValidMassUnits contains all valid mass unit values
var ValidMassUnits = []string{KG, MG, T, LB}

// IsValidMass checks if the given unit is a valid mass unit
func IsValidMass(unit string) bool {
	for _, valid := range ValidMassUnits {
		if unit == valid {
			return true
		}
	}
	return false
}

// GetValidMassUnitsString returns a comma-separated list for error messages
func GetValidMassUnitsString() string {
	return strings.Join(ValidMassUnits, ", ")
}

// ConvertMass converts kilograms to the target units.
// Model predictions are always in kilograms.
func ConvertMass(kg float64, targetUnits string) float64 {
	switch targetUnits {
	case MG, T:
		return kg / 1000
	case LB:
		return kg * 2.20462262
	default:
		return kg
	}
}

// HectaresFromSquareMetres converts an area in m² to hectares.
func HectaresFromSquareMetres(m2 float64) float64 {
	return m2 / 10000
}
