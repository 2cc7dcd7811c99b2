// Package greenops holds the emission accounting core: activity entries,
// greenhouse gases and their Global Warming Potentials, and the aggregation
// of entries into scope-level CO2-equivalent totals.
//
// All functions in this package are pure. They never log and never keep
// state between calls.
package greenops

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Scope is a GHG Protocol emission scope.
type Scope string

// The three GHG Protocol scopes.
const (
	// Scope1 covers direct emissions from owned or controlled sources.
	Scope1 Scope = "scope1"
	// Scope2 covers indirect emissions from purchased energy.
	Scope2 Scope = "scope2"
	// Scope3 covers all other value-chain emissions.
	Scope3 Scope = "scope3"
)

// Scopes lists every scope in reporting order.
func Scopes() []Scope {
	return []Scope{Scope1, Scope2, Scope3}
}

// ParseScope accepts "scope1", "Scope 1", "1" and similar spellings.
func ParseScope(s string) (Scope, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	switch normalized {
	case "scope1", "1":
		return Scope1, nil
	case "scope2", "2":
		return Scope2, nil
	case "scope3", "3":
		return Scope3, nil
	default:
		return "", &ValidationError{Field: "scope", Value: s, Err: ErrInvalidScope}
	}
}

// IsValid reports whether s is one of the three scopes.
func (s Scope) IsValid() bool {
	return s == Scope1 || s == Scope2 || s == Scope3
}

// EntryStatus tells whether an entry counts toward reporting.
type EntryStatus string

const (
	// StatusValidated entries were recorded or confirmed by a person.
	StatusValidated EntryStatus = "validated"
	// StatusDraft entries come from document ingestion and await review.
	StatusDraft EntryStatus = "draft"
)

// ActivityEntry is one recorded consumption or activity fact.
//
// Emissions are never stored: Emissions() derives them from Quantity and
// EmissionFactorValue on every call.
type ActivityEntry struct {
	ID                   string      `json:"id"                              yaml:"id"`
	Scope                Scope       `json:"scope"                           yaml:"scope"`
	Category             string      `json:"category"                        yaml:"category"`
	Subcategory          string      `json:"subcategory,omitempty"           yaml:"subcategory,omitempty"`
	Type                 string      `json:"type,omitempty"                  yaml:"type,omitempty"`
	Description          string      `json:"description,omitempty"           yaml:"description,omitempty"`
	FormulaDetail        string      `json:"formula_detail,omitempty"        yaml:"formula_detail,omitempty"`
	Quantity             float64     `json:"quantity"                        yaml:"quantity"`
	Unit                 string      `json:"unit"                            yaml:"unit"`
	Gas                  Gas         `json:"gas,omitempty"                   yaml:"gas,omitempty"`
	EmissionFactorValue  float64     `json:"emission_factor_value"           yaml:"emission_factor_value"`
	EmissionFactorUnit   string      `json:"emission_factor_unit,omitempty"  yaml:"emission_factor_unit,omitempty"`
	EmissionFactorSource string      `json:"emission_factor_source,omitempty" yaml:"emission_factor_source,omitempty"`
	UncertaintyPercent   *float64    `json:"uncertainty_percent,omitempty"   yaml:"uncertainty_percent,omitempty"`
	Status               EntryStatus `json:"status,omitempty"                yaml:"status,omitempty"`
	Confidence           float64     `json:"confidence,omitempty"            yaml:"confidence,omitempty"`
	CreatedAt            time.Time   `json:"created_at"                      yaml:"created_at,omitempty"`
	UpdatedAt            time.Time   `json:"updated_at"                      yaml:"updated_at,omitempty"`
}

// Emissions returns Quantity × EmissionFactorValue, expressed in the mass
// unit of the emission factor.
func (e ActivityEntry) Emissions() float64 {
	return e.Quantity * e.EmissionFactorValue
}

// IsDraft reports whether the entry still awaits human validation.
func (e ActivityEntry) IsDraft() bool {
	return e.Status == StatusDraft
}

// EffectiveGas returns the entry gas, defaulting to CO2.
func (e ActivityEntry) EffectiveGas() Gas {
	if e.Gas == "" {
		return GasCO2
	}
	return e.Gas
}

// FactorUnit returns the emission factor mass unit, defaulting to kilograms.
func (e ActivityEntry) FactorUnit() string {
	if e.EmissionFactorUnit == "" {
		return "kg"
	}
	return e.EmissionFactorUnit
}

// Canonical returns the entry with scope and gas rewritten to their
// canonical spellings, so "Scope 1" and "ch4" load like "scope1" and "CH4".
// An empty gas stays empty.
func (e ActivityEntry) Canonical() (ActivityEntry, error) {
	scope, err := ParseScope(string(e.Scope))
	if err != nil {
		return ActivityEntry{}, err
	}
	e.Scope = scope
	if e.Gas != "" {
		gas, gasErr := ParseGas(string(e.Gas))
		if gasErr != nil {
			return ActivityEntry{}, gasErr
		}
		e.Gas = gas
	}
	return e, nil
}

// Validate checks the entry at the input boundary.
func (e ActivityEntry) Validate() error {
	if !e.Scope.IsValid() {
		return &ValidationError{Field: "scope", Value: string(e.Scope), Err: ErrInvalidScope}
	}
	if _, err := ComputeEmissions(e.Quantity, e.EmissionFactorValue); err != nil {
		return err
	}
	if !IsKnownGas(e.EffectiveGas()) {
		return &ValidationError{Field: "gas", Value: string(e.Gas), Err: ErrUnknownGas}
	}
	if !IsRecognizedUnit(e.FactorUnit()) {
		return &ValidationError{Field: "emission_factor_unit", Value: e.EmissionFactorUnit, Err: ErrInvalidUnit}
	}
	if e.UncertaintyPercent != nil && *e.UncertaintyPercent < 0 {
		return &ValidationError{Field: "uncertainty_percent", Value: *e.UncertaintyPercent, Err: ErrNegativeUncertainty}
	}
	switch e.Status {
	case "", StatusValidated, StatusDraft:
	default:
		return &ValidationError{Field: "status", Value: string(e.Status), Err: ErrInvalidStatus}
	}
	return nil
}

// CO2eKg returns the entry emissions in kilograms of CO2 equivalent: the
// factor mass unit is normalized to kilograms and multiplied by the GWP of
// the entry gas.
func (e ActivityEntry) CO2eKg(gwp GWPTable) (float64, error) {
	emissions, err := ComputeEmissions(e.Quantity, e.EmissionFactorValue)
	if err != nil {
		return 0, err
	}
	kg, err := NormalizeToKg(emissions, e.FactorUnit())
	if err != nil {
		return 0, &ValidationError{Field: "emission_factor_unit", Value: e.EmissionFactorUnit, Err: err}
	}
	return gwp.ToCO2e(kg, e.EffectiveGas())
}

// MarshalJSON adds the derived emissions to the serialized entry.
func (e ActivityEntry) MarshalJSON() ([]byte, error) {
	type alias ActivityEntry
	return json.Marshal(struct {
		alias

		Emissions float64 `json:"emissions"`
	}{
		alias:     alias(e),
		Emissions: e.Emissions(),
	})
}

// ScopeTotals holds CO2e totals in kilograms.
type ScopeTotals struct {
	Scope1     float64         `json:"scope1_kg"`
	Scope2     float64         `json:"scope2_kg"`
	Scope3     float64         `json:"scope3_kg"`
	Total      float64         `json:"total_kg"`
	ByGas      map[Gas]float64 `json:"by_gas_kg,omitempty"`
	EntryCount map[Scope]int   `json:"entry_count,omitempty"`
}

// ForScope returns the total for one scope.
func (t ScopeTotals) ForScope(s Scope) float64 {
	switch s {
	case Scope1:
		return t.Scope1
	case Scope2:
		return t.Scope2
	case Scope3:
		return t.Scope3
	default:
		return 0
	}
}

// TotalTonnes returns the grand total in tonnes of CO2e.
func (t ScopeTotals) TotalTonnes() float64 {
	return t.Total / TonsToKg
}

// IsEmpty reports whether no entry contributed to the totals.
func (t ScopeTotals) IsEmpty() bool {
	n := 0
	for _, c := range t.EntryCount {
		n += c
	}
	return n == 0
}

// String renders the totals for debugging.
func (t ScopeTotals) String() string {
	return fmt.Sprintf("scope1=%.3f scope2=%.3f scope3=%.3f total=%.3f kgCO2e",
		t.Scope1, t.Scope2, t.Scope3, t.Total)
}
