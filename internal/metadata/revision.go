package metadata

import (
	"fmt"
	"slices"
	"sort"
	"time"
)

// Revision lists the fields to change; nil fields keep their value.
type Revision struct {
	FactorSource       *FactorSource       `json:"factor_source,omitempty"`
	FactorValue        *float64            `json:"factor_value,omitempty"`
	Methodology        *string             `json:"methodology,omitempty"`
	UncertaintyPercent *float64            `json:"uncertainty_percent,omitempty"`
	UncertaintyMethod  *UncertaintyMethod  `json:"uncertainty_method,omitempty"`
	VerificationStatus *VerificationStatus `json:"verification_status,omitempty"`
	Assumptions        *[]Assumption       `json:"assumptions,omitempty"`
	Reason             string              `json:"reason,omitempty"`
	By                 string              `json:"by,omitempty"`
}

// transitions lists the allowed verification moves.
//
//nolint:gochecknoglobals // Read-only lookup table.
var transitions = map[VerificationStatus][]VerificationStatus{
	Unverified: {Pending},
	Pending:    {Verified, Rejected},
	Rejected:   {Pending},
	Verified:   {},
}

// CanTransition reports whether a record may move from one verification
// status to another.
func CanTransition(from, to VerificationStatus) bool {
	return slices.Contains(transitions[from], to)
}

// Revise returns the version after prev with r applied. prev is left
// untouched.
//
// A change to the emission factor, its source or the methodology resets the
// verification status to unverified unless the revision sets one explicitly.
// A revision that changes nothing returns ErrNoChange.
func Revise(prev CalculationMetadata, r Revision, at time.Time) (CalculationMetadata, error) {
	next := prev
	next.UncertaintyPercent = clonePtr(prev.UncertaintyPercent)
	next.Assumptions = slices.Clone(prev.Assumptions)

	substantive := false
	changed := false
	if r.FactorSource != nil && *r.FactorSource != prev.FactorSource {
		next.FactorSource = *r.FactorSource
		substantive = true
	}
	if r.FactorValue != nil && *r.FactorValue != prev.FactorValue {
		next.FactorValue = *r.FactorValue
		substantive = true
	}
	if r.Methodology != nil && *r.Methodology != prev.Methodology {
		next.Methodology = *r.Methodology
		substantive = true
	}
	if r.UncertaintyPercent != nil && (prev.UncertaintyPercent == nil || *r.UncertaintyPercent != *prev.UncertaintyPercent) {
		next.UncertaintyPercent = clonePtr(r.UncertaintyPercent)
		changed = true
	}
	if r.UncertaintyMethod != nil && *r.UncertaintyMethod != prev.UncertaintyMethod {
		next.UncertaintyMethod = *r.UncertaintyMethod
		changed = true
	}
	if r.Assumptions != nil && !slices.Equal(*r.Assumptions, prev.Assumptions) {
		next.Assumptions = slices.Clone(*r.Assumptions)
		changed = true
	}
	changed = changed || substantive

	switch {
	case r.VerificationStatus != nil && *r.VerificationStatus != prev.VerificationStatus:
		if !CanTransition(prev.VerificationStatus, *r.VerificationStatus) {
			return CalculationMetadata{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, prev.VerificationStatus, *r.VerificationStatus)
		}
		next.VerificationStatus = *r.VerificationStatus
		changed = true
	case substantive:
		next.VerificationStatus = Unverified
	}

	if !changed {
		return CalculationMetadata{}, ErrNoChange
	}

	next.ID = newID(at)
	next.Version = prev.Version + 1
	next.PreviousVersionID = prev.ID
	next.Reason = r.Reason
	next.CreatedAt = stamp(at)
	next.CreatedBy = r.By
	if err := next.Validate(); err != nil {
		return CalculationMetadata{}, err
	}
	next.Digest = ComputeDigest(next, prev.Digest)
	return next, nil
}

// VerifyChain checks that history forms one unbroken chain for a single
// subject: versions numbered from 1 without gaps, each linked to its
// predecessor, each digest matching its content. The input may be in any
// order; it is not modified.
func VerifyChain(history []CalculationMetadata) error {
	if len(history) == 0 {
		return nil
	}
	sorted := slices.Clone(history)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	prevID, prevDigest := "", ""
	for i, m := range sorted {
		if m.Version != i+1 {
			return fmt.Errorf("%w: expected version %d, got %d", ErrBrokenChain, i+1, m.Version)
		}
		if m.SubjectID != sorted[0].SubjectID {
			return fmt.Errorf("%w: version %d belongs to subject %q", ErrBrokenChain, m.Version, m.SubjectID)
		}
		if m.PreviousVersionID != prevID {
			return fmt.Errorf("%w: version %d links to %q, want %q", ErrBrokenChain, m.Version, m.PreviousVersionID, prevID)
		}
		if got := ComputeDigest(m, prevDigest); got != m.Digest {
			return fmt.Errorf("%w: version %d", ErrDigestMismatch, m.Version)
		}
		prevID, prevDigest = m.ID, m.Digest
	}
	return nil
}

// Latest returns the highest version in history.
func Latest(history []CalculationMetadata) (CalculationMetadata, bool) {
	if len(history) == 0 {
		return CalculationMetadata{}, false
	}
	return slices.MaxFunc(history, func(a, b CalculationMetadata) int { return a.Version - b.Version }), true
}
