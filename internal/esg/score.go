package esg

import (
	"fmt"
	"math"

	"github.com/rshade/greenledger/internal/sector"
)

// Weights are the pillar weights of the composite score.
type Weights struct {
	Environment float64 `json:"environment" yaml:"environment"`
	Social      float64 `json:"social"      yaml:"social"`
	Governance  float64 `json:"governance"  yaml:"governance"`
}

// weightTolerance absorbs rounding in user-supplied weights.
const weightTolerance = 1e-6

// DefaultWeights returns E 40%, S 30%, G 30%.
func DefaultWeights() Weights {
	return Weights{Environment: 0.4, Social: 0.3, Governance: 0.3}
}

// Validate requires finite non-negative weights summing to 1.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Environment, w.Social, w.Governance} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: weights must be finite, got %+v", ErrInvalidWeights, w)
		}
	}
	if w.Environment < 0 || w.Social < 0 || w.Governance < 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidWeights, w)
	}
	if sum := w.Environment + w.Social + w.Governance; math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: sum is %g", ErrInvalidWeights, sum)
	}
	return nil
}

// For returns the weight of p.
func (w Weights) For(p Pillar) float64 {
	switch p {
	case Environment:
		return w.Environment
	case Social:
		return w.Social
	case Governance:
		return w.Governance
	default:
		return 0
	}
}

// Bands are the minimum composite scores of each grade; anything below C
// is D.
type Bands struct {
	APlus float64 `json:"a_plus" yaml:"a_plus"`
	A     float64 `json:"a"      yaml:"a"`
	BPlus float64 `json:"b_plus" yaml:"b_plus"`
	B     float64 `json:"b"      yaml:"b"`
	C     float64 `json:"c"      yaml:"c"`
}

// DefaultBands returns A+ ≥ 85, A ≥ 75, B+ ≥ 65, B ≥ 55, C ≥ 40.
func DefaultBands() Bands {
	return Bands{APlus: 85, A: 75, BPlus: 65, B: 55, C: 40}
}

// Validate requires strictly decreasing bands within [0, 100].
func (b Bands) Validate() error {
	bounds := []float64{b.APlus, b.A, b.BPlus, b.B, b.C}
	prev := math.Inf(1)
	for _, x := range bounds {
		if x < 0 || x > 100 || x >= prev {
			return fmt.Errorf("%w: %v", ErrInvalidBands, bounds)
		}
		prev = x
	}
	return nil
}

// Grade maps a composite score to a letter grade. Bounds are inclusive.
func (b Bands) Grade(score float64) sector.Grade {
	switch {
	case score >= b.APlus:
		return sector.GradeAPlus
	case score >= b.A:
		return sector.GradeA
	case score >= b.BPlus:
		return sector.GradeBPlus
	case score >= b.B:
		return sector.GradeB
	case score >= b.C:
		return sector.GradeC
	default:
		return sector.GradeD
	}
}

// RangesFor returns the reference range of every scored numeric or
// calculated indicator. With a benchmark, carbon intensity is normalised
// between the sector's top performers (best) and its threshold (worst).
func RangesFor(benchmark *sector.Benchmark) map[string]Range {
	ranges := make(map[string]Range)
	for _, ind := range Catalog() {
		if ind.DefaultRange != nil {
			ranges[ind.ID] = *ind.DefaultRange
		}
	}
	if benchmark != nil {
		ranges[CarbonIntensity] = Range{Min: benchmark.TopPerformers, Max: benchmark.Threshold}
	}
	return ranges
}

// Normalize maps v into [0, 100] against r in direction d, clamping values
// outside the range. A degenerate range scores 100 at or past the best end
// and 0 otherwise.
func Normalize(v float64, r Range, d Direction) float64 {
	span := r.Max - r.Min
	if span <= 0 {
		if (d == LowerIsBetter && v <= r.Min) || (d != LowerIsBetter && v >= r.Max) {
			return 100
		}
		return 0
	}
	var frac float64
	if d == LowerIsBetter {
		frac = (r.Max - v) / span
	} else {
		frac = (v - r.Min) / span
	}
	return math.Max(0, math.Min(1, frac)) * 100
}

// IndicatorScore is the contribution of one indicator to its pillar.
type IndicatorScore struct {
	ID     string  `json:"id"`
	Value  float64 `json:"value"`
	Points float64 `json:"points"`
}

// PillarScore is the mean of the scored indicators of one pillar.
type PillarScore struct {
	Pillar     Pillar           `json:"pillar"`
	Score      float64          `json:"score"`
	Weight     float64          `json:"weight"`
	Scored     int              `json:"scored"`
	Available  int              `json:"available"`
	Indicators []IndicatorScore `json:"indicators"`
}

// HasData reports whether at least one indicator was scored.
func (p PillarScore) HasData() bool { return p.Scored > 0 }

// ScorePillar scores the indicators of p present in values. Values must
// already be derived.
func ScorePillar(p Pillar, values Values, ranges map[string]Range) PillarScore {
	ps := PillarScore{Pillar: p, Indicators: []IndicatorScore{}}
	sum := 0.0
	for _, ind := range ByPillar(p) {
		if !ind.Scored() {
			continue
		}
		ps.Available++
		v, ok := values.Get(ind.ID)
		if !ok {
			continue
		}

		var points float64
		if ind.Type == Binary {
			points = ind.PointsFalse
			if v == 1 {
				points = ind.PointsTrue
			}
		} else {
			r, ok := ranges[ind.ID]
			if !ok {
				continue
			}
			points = Normalize(v, r, ind.Direction)
		}

		ps.Indicators = append(ps.Indicators, IndicatorScore{ID: ind.ID, Value: v, Points: points})
		ps.Scored++
		sum += points
	}
	if ps.Scored > 0 {
		ps.Score = round2(sum / float64(ps.Scored))
	}
	return ps
}

// Assessment is the ESG composite of an organisation.
type Assessment struct {
	Status    sector.Status      `json:"status"`
	Composite float64            `json:"composite"`
	Grade     sector.Grade       `json:"grade,omitempty"`
	Pillars   []PillarScore      `json:"pillars"`
	Weights   Weights            `json:"weights"`
	Derived   map[string]float64 `json:"derived,omitempty"`
	Missing   []Pillar           `json:"missing,omitempty"`
}

// Evaluate derives calculated indicators, scores each pillar and combines
// them: composite = Σ pillar score × weight, rounded to two decimals. When a
// pillar has no scored indicator the status is insufficient data and the
// composite stays zero.
func Evaluate(values Values, revenueK *float64, benchmark *sector.Benchmark, weights Weights, bands Bands) (Assessment, error) {
	if err := weights.Validate(); err != nil {
		return Assessment{}, err
	}
	if err := bands.Validate(); err != nil {
		return Assessment{}, err
	}
	derived, err := Derive(values, revenueK)
	if err != nil {
		return Assessment{}, err
	}

	ranges := RangesFor(benchmark)
	a := Assessment{Weights: weights, Derived: map[string]float64{}}
	for _, ind := range Catalog() {
		if ind.Type != Calculated {
			continue
		}
		if v, ok := derived.Get(ind.ID); ok {
			a.Derived[ind.ID] = v
		}
	}

	composite := 0.0
	for _, p := range Pillars() {
		ps := ScorePillar(p, derived, ranges)
		ps.Weight = weights.For(p)
		a.Pillars = append(a.Pillars, ps)
		if !ps.HasData() {
			a.Missing = append(a.Missing, p)
			continue
		}
		composite += ps.Score * ps.Weight
	}

	if len(a.Missing) > 0 {
		a.Status = sector.StatusInsufficientData
		return a, nil
	}
	a.Status = sector.StatusScored
	a.Composite = round2(composite)
	a.Grade = bands.Grade(a.Composite)
	return a, nil
}

// Composite combines pillar scores with weights without any indicator work.
func Composite(scores map[Pillar]float64, weights Weights) (float64, error) {
	if err := weights.Validate(); err != nil {
		return 0, err
	}
	total := 0.0
	for _, p := range Pillars() {
		total += scores[p] * weights.For(p)
	}
	return round2(total), nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
