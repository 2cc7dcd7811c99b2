package sector

import (
	"fmt"
	"math"
)

// Grade is a letter grade shared by sector and ESG scoring.
type Grade string

// Grades from best to worst.
const (
	GradeAPlus Grade = "A+"
	GradeA     Grade = "A"
	GradeBPlus Grade = "B+"
	GradeB     Grade = "B"
	GradeC     Grade = "C"
	GradeD     Grade = "D"
)

// Grades lists grades from best to worst.
func Grades() []Grade {
	return []Grade{GradeAPlus, GradeA, GradeBPlus, GradeB, GradeC, GradeD}
}

// Ladder turns an intensity into a (grade, score) pair relative to a
// benchmark. Each factor multiplies the sector average to give the upper
// bound of its rung; bounds are inclusive.
type Ladder struct {
	AFactor     float64 `json:"a_factor"      yaml:"a_factor"`
	BPlusFactor float64 `json:"b_plus_factor" yaml:"b_plus_factor"`
	BFactor     float64 `json:"b_factor"      yaml:"b_factor"`
	CFactor     float64 `json:"c_factor"      yaml:"c_factor"`

	Points map[Grade]int `json:"points" yaml:"points"`
}

// DefaultLadder returns the standard ladder:
//
//	A+ 95  intensity ≤ top performers
//	A  85  intensity ≤ average × 0.8
//	B+ 70  intensity ≤ average
//	B  60  intensity ≤ average × 1.2
//	C  45  intensity ≤ average × 1.5
//	D  25  otherwise
func DefaultLadder() Ladder {
	return Ladder{
		AFactor:     0.8,
		BPlusFactor: 1.0,
		BFactor:     1.2,
		CFactor:     1.5,
		Points: map[Grade]int{
			GradeAPlus: 95, GradeA: 85, GradeBPlus: 70, GradeB: 60, GradeC: 45, GradeD: 25,
		},
	}
}

// Validate requires finite, increasing, positive factors and non-increasing points
// within [0, 100] for every grade.
func (l Ladder) Validate() error {
	factors := []float64{l.AFactor, l.BPlusFactor, l.BFactor, l.CFactor}
	prev := 0.0
	for _, f := range factors {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: factors must be finite, got %v", ErrInvalidLadder, factors)
		}
		if f <= prev {
			return fmt.Errorf("%w: factors must be positive and increasing, got %v", ErrInvalidLadder, factors)
		}
		prev = f
	}

	last := 101
	for _, g := range Grades() {
		p, ok := l.Points[g]
		if !ok {
			return fmt.Errorf("%w: no points for grade %s", ErrInvalidLadder, g)
		}
		if p < 0 || p > 100 || p > last {
			return fmt.Errorf("%w: points for %s must be within [0,100] and not above the grade before it", ErrInvalidLadder, g)
		}
		last = p
	}
	return nil
}

// Grade applies the ladder. It is a total function of its inputs.
func (l Ladder) Grade(intensity float64, b Benchmark) (Grade, int) {
	var g Grade
	switch {
	case intensity <= b.TopPerformers:
		g = GradeAPlus
	case intensity <= b.Average*l.AFactor:
		g = GradeA
	case intensity <= b.Average*l.BPlusFactor:
		g = GradeBPlus
	case intensity <= b.Average*l.BFactor:
		g = GradeB
	case intensity <= b.Average*l.CFactor:
		g = GradeC
	default:
		g = GradeD
	}
	return g, l.Points[g]
}
