// Package esg scores Environmental, Social and Governance indicators and
// combines the three pillar scores into a weighted composite grade.
package esg

import "slices"

type constError string

func (e constError) Error() string { return string(e) }

// Sentinel errors.
const (
	ErrUnknownIndicator    = constError("unknown ESG indicator")
	ErrCalculatedIndicator = constError("calculated indicator cannot be set directly")
	ErrInvalidBinary       = constError("binary indicator must be 0 or 1")
	ErrInvalidValue        = constError("indicator value must be finite")
	ErrInvalidWeights      = constError("pillar weights must be non-negative and sum to 1")
	ErrInvalidBands        = constError("invalid ESG grade bands")
)

// Pillar is one of E, S or G.
type Pillar string

// The three pillars.
const (
	Environment Pillar = "E"
	Social      Pillar = "S"
	Governance  Pillar = "G"
)

// Pillars lists pillars in reporting order.
func Pillars() []Pillar { return []Pillar{Environment, Social, Governance} }

// IndicatorType tells how an indicator gets its value.
type IndicatorType string

const (
	// Numeric indicators carry a measured value.
	Numeric IndicatorType = "numeric"
	// Binary indicators are yes/no, stored as 1 or 0.
	Binary IndicatorType = "binary"
	// Calculated indicators are derived from other indicators and revenue.
	Calculated IndicatorType = "calculated"
)

// Direction tells whether a higher value is better.
type Direction string

const (
	HigherIsBetter Direction = "higher"
	LowerIsBetter  Direction = "lower"
)

// Range is the reference interval a numeric value is normalised against.
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Indicator describes one ESG indicator.
//
// A numeric or calculated indicator without DefaultRange is informational:
// it feeds calculations but is not scored itself.
type Indicator struct {
	ID           string        `json:"id"`
	Label        string        `json:"label"`
	Pillar       Pillar        `json:"pillar"`
	Type         IndicatorType `json:"type"`
	Unit         string        `json:"unit,omitempty"`
	Direction    Direction     `json:"direction,omitempty"`
	DefaultRange *Range        `json:"default_range,omitempty"`
	PointsTrue   float64       `json:"points_true,omitempty"`
	PointsFalse  float64       `json:"points_false,omitempty"`
	DependsOn    []string      `json:"depends_on,omitempty"`
}

// Scored reports whether the indicator contributes to its pillar score.
func (i Indicator) Scored() bool {
	return i.Type == Binary || i.DefaultRange != nil
}

// Indicator IDs referenced by calculations.
const (
	TotalEmissions    = "total_emissions"
	CarbonIntensity   = "carbon_intensity"
	EnergyConsumption = "energy_consumption"
	EnergyIntensity   = "energy_intensity"
	WaterConsumption  = "water_consumption"
	WaterIntensity    = "water_intensity"
	WasteGenerated    = "waste_generated"
	WasteRecycled     = "waste_recycled"
	RecyclingRate     = "recycling_rate"
)

func numeric(id, label string, p Pillar, unit string, d Direction, r *Range) Indicator {
	return Indicator{ID: id, Label: label, Pillar: p, Type: Numeric, Unit: unit, Direction: d, DefaultRange: r}
}

func binary(id, label string, p Pillar) Indicator {
	return Indicator{ID: id, Label: label, Pillar: p, Type: Binary, PointsTrue: 100, PointsFalse: 0}
}

func calculated(id, label string, unit string, d Direction, r *Range, deps ...string) Indicator {
	return Indicator{ID: id, Label: label, Pillar: Environment, Type: Calculated, Unit: unit, Direction: d, DefaultRange: r, DependsOn: deps}
}

// Catalog returns the fixed indicator set: 12 environmental, 10 social and
// 10 governance indicators.
func Catalog() []Indicator {
	return []Indicator{
		numeric(TotalEmissions, "Émissions totales", Environment, "tCO2e", LowerIsBetter, nil),
		calculated(CarbonIntensity, "Intensité carbone", "tCO2e/k€", LowerIsBetter, &Range{Min: 0, Max: 1}, TotalEmissions),
		numeric(EnergyConsumption, "Consommation d'énergie", Environment, "MWh", LowerIsBetter, nil),
		calculated(EnergyIntensity, "Intensité énergétique", "MWh/k€", LowerIsBetter, &Range{Min: 0, Max: 1}, EnergyConsumption),
		numeric("renewable_energy_share", "Part d'énergie renouvelable", Environment, "%", HigherIsBetter, &Range{Min: 0, Max: 100}),
		numeric(WaterConsumption, "Consommation d'eau", Environment, "m3", LowerIsBetter, nil),
		calculated(WaterIntensity, "Intensité eau", "m3/k€", LowerIsBetter, &Range{Min: 0, Max: 5}, WaterConsumption),
		numeric(WasteGenerated, "Déchets produits", Environment, "t", LowerIsBetter, nil),
		numeric(WasteRecycled, "Déchets recyclés", Environment, "t", HigherIsBetter, nil),
		calculated(RecyclingRate, "Taux de recyclage", "%", HigherIsBetter, &Range{Min: 0, Max: 100}, WasteRecycled, WasteGenerated),
		binary("iso14001_certified", "Certification ISO 14001", Environment),
		binary("climate_target", "Objectif climat publié", Environment),

		numeric("gender_pay_gap", "Écart de rémunération femmes-hommes", Social, "%", LowerIsBetter, &Range{Min: 0, Max: 25}),
		numeric("women_in_management", "Femmes dans l'encadrement", Social, "%", HigherIsBetter, &Range{Min: 0, Max: 50}),
		numeric("employee_turnover", "Rotation du personnel", Social, "%", LowerIsBetter, &Range{Min: 0, Max: 30}),
		numeric("training_hours_per_employee", "Heures de formation par salarié", Social, "h", HigherIsBetter, &Range{Min: 0, Max: 40}),
		numeric("lost_time_injury_rate", "Taux de fréquence des accidents", Social, "", LowerIsBetter, &Range{Min: 0, Max: 10}),
		numeric("employee_satisfaction", "Satisfaction des salariés", Social, "%", HigherIsBetter, &Range{Min: 0, Max: 100}),
		binary("health_safety_policy", "Politique santé et sécurité", Social),
		binary("living_wage_commitment", "Engagement salaire décent", Social),
		binary("supplier_code_of_conduct", "Code de conduite fournisseurs", Social),
		numeric("community_investment_share", "Investissement communautaire", Social, "% CA", HigherIsBetter, &Range{Min: 0, Max: 2}),

		numeric("board_independence", "Indépendance du conseil", Governance, "%", HigherIsBetter, &Range{Min: 0, Max: 100}),
		numeric("board_women_share", "Femmes au conseil", Governance, "%", HigherIsBetter, &Range{Min: 0, Max: 50}),
		binary("anti_corruption_policy", "Politique anticorruption", Governance),
		binary("whistleblowing_channel", "Dispositif d'alerte", Governance),
		binary("esg_linked_remuneration", "Rémunération liée à l'ESG", Governance),
		binary("data_protection_policy", "Politique de protection des données", Governance),
		binary("audit_committee", "Comité d'audit", Governance),
		numeric("ethics_training_coverage", "Couverture formation éthique", Governance, "%", HigherIsBetter, &Range{Min: 0, Max: 100}),
		binary("esg_report_published", "Rapport ESG publié", Governance),
		binary("tax_transparency", "Transparence fiscale", Governance),
	}
}

// Lookup returns the catalog entry for id.
func Lookup(id string) (Indicator, bool) {
	catalog := Catalog()
	i := slices.IndexFunc(catalog, func(ind Indicator) bool { return ind.ID == id })
	if i < 0 {
		return Indicator{}, false
	}
	return catalog[i], true
}

// ByPillar returns the catalog entries of p in catalog order.
func ByPillar(p Pillar) []Indicator {
	var out []Indicator
	for _, ind := range Catalog() {
		if ind.Pillar == p {
			out = append(out, ind)
		}
	}
	return out
}
