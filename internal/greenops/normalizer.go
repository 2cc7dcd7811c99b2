package greenops

import (
	"math"
	"strings"
)

// getUnitFactor returns the conversion factor to kilograms for the provided
// unit and whether the unit is recognized. Matching is case-insensitive:
// "g"/"gCO2e", "kg"/"kgCO2e", "t"/"tCO2e" and "lb"/"lbCO2e".
func getUnitFactor(unit string) (float64, bool) {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "g", "gco2e":
		return GramsToKg, true
	case "kg", "kgco2e":
		return KgToKg, true
	case "t", "tco2e", "tonne", "tonnes":
		return TonsToKg, true
	case "lb", "lbco2e":
		return PoundsToKg, true
	default:
		return 0, false
	}
}

// NormalizeToKg converts a mass from the provided unit to kilograms.
//
// It returns ErrNegativeValue if value is less than zero, ErrInvalidUnit if
// the unit is not recognized, and ErrCalculationOverflow if the input is Inf
// or NaN or if the multiplication overflows.
func NormalizeToKg(value float64, unit string) (float64, error) {
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, ErrCalculationOverflow
	}

	if value < 0 {
		return 0, ErrNegativeValue
	}

	factor, ok := getUnitFactor(unit)
	if !ok {
		return 0, ErrInvalidUnit
	}

	result := value * factor
	if math.IsInf(result, 0) {
		return 0, ErrCalculationOverflow
	}

	return result, nil
}

// IsRecognizedUnit reports whether unit is a supported mass unit.
func IsRecognizedUnit(unit string) bool {
	_, ok := getUnitFactor(unit)
	return ok
}
