package esg

import (
	"maps"
	"math"
	"slices"

	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/sector"
)

// Values holds indicator values keyed by indicator ID. Binary indicators are
// stored as 1 (true) or 0 (false). The zero value is ready to use.
type Values struct {
	m map[string]float64
}

// NewValues builds Values from a plain map, applying Set to each pair.
func NewValues(raw map[string]float64) (Values, error) {
	var v Values
	for _, id := range slices.Sorted(maps.Keys(raw)) {
		if err := v.Set(id, raw[id]); err != nil {
			return Values{}, err
		}
	}
	return v, nil
}

// Set records a user-supplied value. Calculated indicators are rejected.
func (v *Values) Set(id string, value float64) error {
	ind, ok := Lookup(id)
	if !ok {
		return &greenops.ValidationError{Field: "indicator", Value: id, Err: ErrUnknownIndicator}
	}
	if ind.Type == Calculated {
		return &greenops.ValidationError{Field: id, Value: value, Err: ErrCalculatedIndicator}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return &greenops.ValidationError{Field: id, Value: value, Err: ErrInvalidValue}
	}
	if ind.Type == Binary && value != 0 && value != 1 {
		return &greenops.ValidationError{Field: id, Value: value, Err: ErrInvalidBinary}
	}
	v.put(id, value)
	return nil
}

// SetBool records a binary indicator.
func (v *Values) SetBool(id string, value bool) error {
	if value {
		return v.Set(id, 1)
	}
	return v.Set(id, 0)
}

// Get returns the value of id and whether it is present.
func (v Values) Get(id string) (float64, bool) {
	x, ok := v.m[id]
	return x, ok
}

// Len returns the number of values present.
func (v Values) Len() int { return len(v.m) }

// Map returns a copy of the values.
func (v Values) Map() map[string]float64 {
	return maps.Clone(v.m)
}

// Clone returns an independent copy.
func (v Values) Clone() Values {
	return Values{m: maps.Clone(v.m)}
}

func (v *Values) put(id string, value float64) {
	if v.m == nil {
		v.m = make(map[string]float64)
	}
	v.m[id] = value
}

func (v *Values) drop(id string) {
	delete(v.m, id)
}

// Derive returns a copy of values with every calculated indicator recomputed
// from its dependencies. A calculated indicator whose inputs are missing is
// absent from the result. A nil revenue leaves the intensities absent; a
// non-positive or infinite revenue is an error.
func Derive(values Values, revenueK *float64) (Values, error) {
	if revenueK != nil {
		if err := sector.CheckRevenue(*revenueK); err != nil {
			return Values{}, err
		}
	}

	out := values.Clone()
	for _, ind := range Catalog() {
		if ind.Type == Calculated {
			out.drop(ind.ID)
		}
	}

	perRevenue := func(target, source string) {
		x, ok := values.Get(source)
		if ok && revenueK != nil {
			out.put(target, x/(*revenueK))
		}
	}
	perRevenue(CarbonIntensity, TotalEmissions)
	perRevenue(EnergyIntensity, EnergyConsumption)
	perRevenue(WaterIntensity, WaterConsumption)

	recycled, okR := values.Get(WasteRecycled)
	generated, okG := values.Get(WasteGenerated)
	if okR && okG && generated > 0 {
		const percent = 100.0
		out.put(RecyclingRate, recycled/generated*percent)
	}
	return out, nil
}
