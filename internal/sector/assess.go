package sector

import "strings"

// Status separates a real score from a missing one.
type Status string

const (
	// StatusScored means every input was present.
	StatusScored Status = "scored"
	// StatusInsufficientData means revenue or sector was not provided.
	StatusInsufficientData Status = "insufficient_data"
)

// Assessment is the sector-relative grade of an organisation.
type Assessment struct {
	Status    Status     `json:"status"`
	Sector    Sector     `json:"sector,omitempty"`
	Intensity float64    `json:"intensity"`
	Unit      string     `json:"unit"`
	Grade     Grade      `json:"grade,omitempty"`
	Score     int        `json:"score"`
	Benchmark *Benchmark `json:"benchmark,omitempty"`
	Missing   []string   `json:"missing,omitempty"`
}

// Assess grades totalKg against the benchmark of sectorKey.
//
// A nil revenue or an empty sector key yields StatusInsufficientData with a
// zero score, never an error. A non-positive revenue or an unknown sector is
// a validation error.
func Assess(totalKg float64, revenueK *float64, sectorKey string, benchmarks Benchmarks, ladder Ladder) (Assessment, error) {
	a := Assessment{Unit: IntensityUnit}

	if revenueK == nil {
		a.Missing = append(a.Missing, "revenue")
	}
	if strings.TrimSpace(sectorKey) == "" {
		a.Missing = append(a.Missing, "sector")
	}
	if len(a.Missing) > 0 {
		a.Status = StatusInsufficientData
		return a, nil
	}

	s, err := ParseSector(sectorKey)
	if err != nil {
		return Assessment{}, err
	}
	b, err := benchmarks.Lookup(s)
	if err != nil {
		return Assessment{}, err
	}
	intensity, err := Intensity(totalKg, *revenueK)
	if err != nil {
		return Assessment{}, err
	}

	a.Status = StatusScored
	a.Sector = s
	a.Intensity = intensity
	a.Benchmark = &b
	a.Grade, a.Score = ladder.Grade(intensity, b)
	return a, nil
}
