// Package sector grades an organisation's carbon intensity against the
// benchmark of its industry sector.
package sector

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/rshade/greenledger/internal/greenops"
)

type constError string

func (e constError) Error() string { return string(e) }

// Sentinel errors.
const (
	ErrUnknownSector      = constError("unknown sector")
	ErrNonPositiveRevenue = constError("revenue must be positive and finite")
	ErrInvalidBenchmark   = constError("invalid sector benchmark")
	ErrInvalidLadder      = constError("invalid grading ladder")
)

// Sector is a key of the fixed sector enumeration.
type Sector string

// Supported sectors.
const (
	Manufacturing Sector = "manufacturing"
	Services      Sector = "services"
	Retail        Sector = "retail"
	Transport     Sector = "transport"
	Construction  Sector = "construction"
	Agriculture   Sector = "agriculture"
	Energy        Sector = "energy"
	Technology    Sector = "technology"
)

// Sectors lists every sector in display order.
func Sectors() []Sector {
	return []Sector{Manufacturing, Services, Retail, Transport, Construction, Agriculture, Energy, Technology}
}

// ParseSector matches a sector key case-insensitively.
func ParseSector(key string) (Sector, error) {
	s := Sector(strings.ToLower(strings.TrimSpace(key)))
	if slices.Contains(Sectors(), s) {
		return s, nil
	}
	return "", &greenops.ValidationError{Field: "sector", Value: key, Err: ErrUnknownSector}
}

// IntensityUnit is the unit of Intensity and of every Benchmark figure.
const IntensityUnit = "tCO2e/k€"

// Benchmark holds the reference intensities of one sector.
type Benchmark struct {
	Sector        Sector  `json:"sector"         yaml:"sector"`
	Name          string  `json:"name"           yaml:"name"`
	Average       float64 `json:"average"        yaml:"average"`
	TopPerformers float64 `json:"top_performers" yaml:"top_performers"`
	Threshold     float64 `json:"threshold"      yaml:"threshold"`
	Unit          string  `json:"unit"           yaml:"unit"`
}

// Validate requires 0 < TopPerformers ≤ Average ≤ Threshold.
func (b Benchmark) Validate() error {
	if _, err := ParseSector(string(b.Sector)); err != nil {
		return err
	}
	if b.TopPerformers <= 0 || b.TopPerformers > b.Average || b.Average > b.Threshold {
		return fmt.Errorf("%w: %s: want 0 < top (%g) <= average (%g) <= threshold (%g)",
			ErrInvalidBenchmark, b.Sector, b.TopPerformers, b.Average, b.Threshold)
	}
	return nil
}

// Benchmarks indexes benchmarks by sector.
type Benchmarks map[Sector]Benchmark

// NewBenchmarks validates list and indexes it. Later entries replace earlier
// ones for the same sector.
func NewBenchmarks(list []Benchmark) (Benchmarks, error) {
	out := make(Benchmarks, len(list))
	for _, b := range list {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		if b.Unit == "" {
			b.Unit = IntensityUnit
		}
		out[b.Sector] = b
	}
	return out, nil
}

// Lookup returns the benchmark of s.
func (bs Benchmarks) Lookup(s Sector) (Benchmark, error) {
	b, ok := bs[s]
	if !ok {
		return Benchmark{}, &greenops.ValidationError{Field: "sector", Value: string(s), Err: ErrUnknownSector}
	}
	return b, nil
}

// DefaultBenchmarks returns the built-in sector table, in tCO2e per thousand
// euros of revenue.
func DefaultBenchmarks() Benchmarks {
	list := []Benchmark{
		{Sector: Manufacturing, Name: "Industrie manufacturière", Average: 0.35, TopPerformers: 0.15, Threshold: 0.60},
		{Sector: Services, Name: "Services", Average: 0.05, TopPerformers: 0.02, Threshold: 0.10},
		{Sector: Retail, Name: "Commerce", Average: 0.12, TopPerformers: 0.05, Threshold: 0.25},
		{Sector: Transport, Name: "Transport et logistique", Average: 0.80, TopPerformers: 0.40, Threshold: 1.50},
		{Sector: Construction, Name: "Construction", Average: 0.30, TopPerformers: 0.12, Threshold: 0.55},
		{Sector: Agriculture, Name: "Agriculture", Average: 0.90, TopPerformers: 0.45, Threshold: 1.60},
		{Sector: Energy, Name: "Énergie", Average: 1.20, TopPerformers: 0.50, Threshold: 2.50},
		{Sector: Technology, Name: "Technologies", Average: 0.04, TopPerformers: 0.015, Threshold: 0.09},
	}
	bs, err := NewBenchmarks(list)
	if err != nil {
		panic(err)
	}
	return bs
}

// CheckRevenue rejects a revenue that is not a finite positive number.
func CheckRevenue(revenueK float64) error {
	if math.IsNaN(revenueK) || math.IsInf(revenueK, 0) || revenueK <= 0 {
		return &greenops.ValidationError{Field: "revenue_k", Value: revenueK, Err: ErrNonPositiveRevenue}
	}
	return nil
}

// Intensity returns emissions per thousand euros of revenue, in tCO2e/k€.
func Intensity(totalEmissionsKg, revenueK float64) (float64, error) {
	if err := CheckRevenue(revenueK); err != nil {
		return 0, err
	}
	if math.IsNaN(totalEmissionsKg) || math.IsInf(totalEmissionsKg, 0) {
		return 0, greenops.ErrCalculationOverflow
	}
	if totalEmissionsKg < 0 {
		return 0, &greenops.ValidationError{Field: "total_emissions", Value: totalEmissionsKg, Err: greenops.ErrNegativeValue}
	}
	return totalEmissionsKg / greenops.TonsToKg / revenueK, nil
}
