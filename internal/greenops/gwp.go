package greenops

import (
	"math"
	"strings"
)

// Gas identifies a greenhouse gas.
type Gas string

// Gases with a GWP in every table.
const (
	GasCO2     Gas = "CO2"
	GasCH4     Gas = "CH4"
	GasN2O     Gas = "N2O"
	GasSF6     Gas = "SF6"
	GasHFC134a Gas = "HFC-134a"
	GasNF3     Gas = "NF3"
)

// Gases lists the supported gases.
func Gases() []Gas {
	return []Gas{GasCO2, GasCH4, GasN2O, GasSF6, GasHFC134a, GasNF3}
}

// ParseGas matches a gas name case-insensitively; "" means CO2.
func ParseGas(s string) (Gas, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return GasCO2, nil
	}
	for _, g := range Gases() {
		if strings.EqualFold(string(g), trimmed) {
			return g, nil
		}
	}
	switch strings.ToLower(trimmed) {
	case "co2e", "co2eq":
		// Factors already expressed in CO2e carry a GWP of one.
		return GasCO2, nil
	case "hfc134a", "r134a", "r-134a":
		return GasHFC134a, nil
	}
	return "", &ValidationError{Field: "gas", Value: s, Err: ErrUnknownGas}
}

// IsKnownGas reports whether g has a GWP.
func IsKnownGas(g Gas) bool {
	for _, known := range Gases() {
		if g == known {
			return true
		}
	}
	return false
}

// GWPTable maps gases to their 100-year Global Warming Potential.
type GWPTable struct {
	Name   string
	Values map[Gas]float64
}

// LookupGWPTable returns a named table; "" selects DefaultGWPSet.
func LookupGWPTable(name string) (GWPTable, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", GWPSetAR4:
		return AR4(), nil
	case GWPSetAR5:
		return AR5(), nil
	case GWPSetAR6:
		return AR6(), nil
	default:
		return GWPTable{}, &ValidationError{Field: "gwp_set", Value: name, Err: ErrUnknownGWPSet}
	}
}

// AR4 returns the IPCC AR4 table.
func AR4() GWPTable {
	return GWPTable{Name: GWPSetAR4, Values: map[Gas]float64{
		GasCO2: GWPCO2, GasCH4: AR4CH4, GasN2O: AR4N2O,
		GasSF6: AR4SF6, GasHFC134a: AR4HFC134a, GasNF3: AR4NF3,
	}}
}

// AR5 returns the IPCC AR5 table.
func AR5() GWPTable {
	return GWPTable{Name: GWPSetAR5, Values: map[Gas]float64{
		GasCO2: GWPCO2, GasCH4: AR5CH4, GasN2O: AR5N2O,
		GasSF6: AR5SF6, GasHFC134a: AR5HFC134a, GasNF3: AR5NF3,
	}}
}

// AR6 returns the IPCC AR6 table.
func AR6() GWPTable {
	return GWPTable{Name: GWPSetAR6, Values: map[Gas]float64{
		GasCO2: GWPCO2, GasCH4: AR6CH4, GasN2O: AR6N2O,
		GasSF6: AR6SF6, GasHFC134a: AR6HFC134a, GasNF3: AR6NF3,
	}}
}

// Factor returns the GWP of g. "" is treated as CO2.
func (t GWPTable) Factor(g Gas) (float64, error) {
	if g == "" {
		g = GasCO2
	}
	v, ok := t.Values[g]
	if !ok {
		return 0, &ValidationError{Field: "gas", Value: string(g), Err: ErrUnknownGas}
	}
	return v, nil
}

// ToCO2e converts a gas mass in kilograms into kilograms of CO2e.
func (t GWPTable) ToCO2e(massKg float64, g Gas) (float64, error) {
	if math.IsInf(massKg, 0) || math.IsNaN(massKg) {
		return 0, ErrCalculationOverflow
	}
	if massKg < 0 {
		return 0, &ValidationError{Field: "mass", Value: massKg, Err: ErrNegativeValue}
	}
	factor, err := t.Factor(g)
	if err != nil {
		return 0, err
	}
	result := massKg * factor
	if math.IsInf(result, 0) {
		return 0, ErrCalculationOverflow
	}
	return result, nil
}
