// Package uncertainty propagates independent standard uncertainties with the
// GUM root-sum-square rule and derives expanded uncertainty bands per scope.
package uncertainty

import (
	"fmt"
	"math"
	"strings"

	"github.com/rshade/greenledger/internal/greenops"
)

type constError string

func (e constError) Error() string { return string(e) }

// Sentinel errors.
const (
	ErrUnknownUncertainty = constError("uncertainty unknown for a contributing source")
	ErrInvalidCoverage    = constError("coverage factor must be positive")
	ErrInvalidPolicy      = constError("invalid unknown-uncertainty policy")
)

// DefaultCoverageFactor gives roughly 95% coverage for a normal distribution.
const DefaultCoverageFactor = 2.0

// Policy decides what an unknown uncertainty means.
type Policy string

const (
	// PolicyZero counts unknown sources as zero uncertainty and reports them.
	PolicyZero Policy = "zero"
	// PolicyInvalidate fails the combination when any source is unknown.
	PolicyInvalidate Policy = "invalidate"
)

// ParsePolicy accepts "zero" or "invalidate"; "" means PolicyZero.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyZero:
		return PolicyZero, nil
	case PolicyInvalidate:
		return PolicyInvalidate, nil
	default:
		return "", &greenops.ValidationError{Field: "unknown_policy", Value: s, Err: ErrInvalidPolicy}
	}
}

// Combine returns √Σuᵢ². It is zero for no values. Each uᵢ is squared, so the
// sign of an input does not matter.
func Combine(values []float64) float64 {
	sum := 0.0
	for _, u := range values {
		sum += u * u
	}
	return math.Sqrt(sum)
}

// Expand returns U = k × uc.
func Expand(uc, k float64) (float64, error) {
	if !(k > 0) || math.IsInf(k, 0) {
		return 0, &greenops.ValidationError{Field: "coverage_factor", Value: k, Err: ErrInvalidCoverage}
	}
	return k * uc, nil
}

// Contribution is one source of uncertainty. Known is false when the source
// carries no uncertainty figure.
type Contribution struct {
	Source string
	Value  float64
	Known  bool
}

// Combined is the result of CombineContributions.
type Combined struct {
	Standard float64  `json:"standard"`
	Unknown  []string `json:"unknown,omitempty"`
}

// CombineContributions combines the known contributions. Unknown ones follow
// policy: listed in Unknown under PolicyZero, or an error naming the first
// one under PolicyInvalidate.
func CombineContributions(contribs []Contribution, policy Policy) (Combined, error) {
	var (
		res    Combined
		values = make([]float64, 0, len(contribs))
	)
	for _, c := range contribs {
		if c.Known {
			values = append(values, c.Value)
			continue
		}
		switch policy {
		case PolicyInvalidate:
			return Combined{}, fmt.Errorf("%s: %w", c.Source, ErrUnknownUncertainty)
		case PolicyZero:
			res.Unknown = append(res.Unknown, c.Source)
		default:
			return Combined{}, &greenops.ValidationError{Field: "unknown_policy", Value: string(policy), Err: ErrInvalidPolicy}
		}
	}
	res.Standard = Combine(values)
	return res, nil
}
