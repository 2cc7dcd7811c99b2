package greenops

import "math"

// ComputeEmissions returns quantity × factor.
//
// Negative quantities and factors are validation errors; they are never
// clamped to zero. NaN or infinite inputs, or a product that overflows,
// return ErrCalculationOverflow.
func ComputeEmissions(quantity, factor float64) (float64, error) {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return 0, ErrCalculationOverflow
	}
	if quantity < 0 {
		return 0, &ValidationError{Field: "quantity", Value: quantity, Err: ErrNegativeQuantity}
	}
	if factor < 0 {
		return 0, &ValidationError{Field: "emission_factor_value", Value: factor, Err: ErrNegativeFactor}
	}
	result := quantity * factor
	if math.IsInf(result, 0) {
		return 0, ErrCalculationOverflow
	}
	return result, nil
}

// UncertaintyKg converts the entry's relative uncertainty into an absolute
// standard uncertainty in kilograms of CO2e. The boolean is false when the
// entry carries no uncertainty figure.
func (e ActivityEntry) UncertaintyKg(gwp GWPTable) (float64, bool, error) {
	if e.UncertaintyPercent == nil {
		return 0, false, nil
	}
	co2e, err := e.CO2eKg(gwp)
	if err != nil {
		return 0, true, err
	}
	const percent = 100.0
	return co2e * *e.UncertaintyPercent / percent, true, nil
}
