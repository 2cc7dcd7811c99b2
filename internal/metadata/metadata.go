// Package metadata keeps the traceability record of an emission calculation
// as an append-only chain of versions. A revision never mutates a stored
// version: it produces the next one, linked to its predecessor by ID and by
// a chained content digest.
package metadata

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rshade/greenledger/internal/greenops"
)

type constError string

func (e constError) Error() string { return string(e) }

// Sentinel errors.
const (
	ErrNoChange          = constError("revision changes nothing")
	ErrInvalidTransition = constError("invalid verification transition")
	ErrInvalidRecord     = constError("invalid calculation metadata")
	ErrBrokenChain       = constError("broken version chain")
	ErrDigestMismatch    = constError("version digest mismatch")
)

// FactorSource tells where an emission factor comes from.
type FactorSource string

const (
	SourceEUDefault FactorSource = "EU_DEFAULT"
	SourceActual    FactorSource = "ACTUAL"
	SourceHybrid    FactorSource = "HYBRID"
	SourceCustom    FactorSource = "CUSTOM"
)

// UncertaintyMethod tells how the uncertainty figure was obtained.
type UncertaintyMethod string

const (
	MethodStatistical    UncertaintyMethod = "statistical"
	MethodConservative   UncertaintyMethod = "conservative"
	MethodExpertJudgment UncertaintyMethod = "expert_judgment"
)

// VerificationStatus is the third-party verification state.
type VerificationStatus string

const (
	Unverified VerificationStatus = "unverified"
	Pending    VerificationStatus = "pending"
	Verified   VerificationStatus = "verified"
	Rejected   VerificationStatus = "rejected"
)

// Impact grades how much an assumption can move the result.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// Assumption is one documented hypothesis behind a calculation.
type Assumption struct {
	Description string `json:"description" yaml:"description"`
	Impact      Impact `json:"impact"      yaml:"impact"`
}

// CalculationMetadata is one immutable version of a calculation's
// traceability record.
type CalculationMetadata struct {
	ID                 string             `json:"id"`
	SubjectID          string             `json:"subject_id"`
	Version            int                `json:"version"`
	PreviousVersionID  string             `json:"previous_version_id,omitempty"`
	FactorSource       FactorSource       `json:"factor_source"`
	FactorValue        float64            `json:"factor_value"`
	Methodology        string             `json:"methodology"`
	UncertaintyPercent *float64           `json:"uncertainty_percent,omitempty"`
	UncertaintyMethod  UncertaintyMethod  `json:"uncertainty_method,omitempty"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	Assumptions        []Assumption       `json:"assumptions,omitempty"`
	Reason             string             `json:"reason,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	CreatedBy          string             `json:"created_by,omitempty"`
	Digest             string             `json:"digest"`
}

// Validate checks enumerations and numeric ranges.
func (m CalculationMetadata) Validate() error {
	invalid := func(field string, value any) error {
		return &greenops.ValidationError{Field: field, Value: value, Err: ErrInvalidRecord}
	}
	if m.SubjectID == "" {
		return invalid("subject_id", m.SubjectID)
	}
	if !slices.Contains([]FactorSource{SourceEUDefault, SourceActual, SourceHybrid, SourceCustom}, m.FactorSource) {
		return invalid("factor_source", m.FactorSource)
	}
	if m.FactorValue < 0 || math.IsNaN(m.FactorValue) || math.IsInf(m.FactorValue, 0) {
		return invalid("factor_value", m.FactorValue)
	}
	if m.UncertaintyPercent != nil && (*m.UncertaintyPercent < 0 || math.IsNaN(*m.UncertaintyPercent)) {
		return invalid("uncertainty_percent", *m.UncertaintyPercent)
	}
	if m.UncertaintyMethod != "" &&
		!slices.Contains([]UncertaintyMethod{MethodStatistical, MethodConservative, MethodExpertJudgment}, m.UncertaintyMethod) {
		return invalid("uncertainty_method", m.UncertaintyMethod)
	}
	if !slices.Contains([]VerificationStatus{Unverified, Pending, Verified, Rejected}, m.VerificationStatus) {
		return invalid("verification_status", m.VerificationStatus)
	}
	for _, a := range m.Assumptions {
		if a.Description == "" || !slices.Contains([]Impact{ImpactLow, ImpactMedium, ImpactHigh}, a.Impact) {
			return invalid("assumptions", a)
		}
	}
	return nil
}

// Draft is the content of a first version.
type Draft struct {
	SubjectID          string            `json:"subject_id"          yaml:"subject_id"`
	FactorSource       FactorSource      `json:"factor_source"       yaml:"factor_source"`
	FactorValue        float64           `json:"factor_value"        yaml:"factor_value"`
	Methodology        string            `json:"methodology"         yaml:"methodology"`
	UncertaintyPercent *float64          `json:"uncertainty_percent" yaml:"uncertainty_percent"`
	UncertaintyMethod  UncertaintyMethod `json:"uncertainty_method"  yaml:"uncertainty_method"`
	Assumptions        []Assumption      `json:"assumptions"         yaml:"assumptions"`
	CreatedBy          string            `json:"created_by"          yaml:"created_by"`
}

// NewRecord creates version 1 of a subject's metadata, unverified.
func NewRecord(d Draft, at time.Time) (CalculationMetadata, error) {
	m := CalculationMetadata{
		ID:                 newID(at),
		SubjectID:          d.SubjectID,
		Version:            1,
		FactorSource:       d.FactorSource,
		FactorValue:        d.FactorValue,
		Methodology:        d.Methodology,
		UncertaintyPercent: clonePtr(d.UncertaintyPercent),
		UncertaintyMethod:  d.UncertaintyMethod,
		VerificationStatus: Unverified,
		Assumptions:        slices.Clone(d.Assumptions),
		CreatedAt:          stamp(at),
		CreatedBy:          d.CreatedBy,
	}
	if err := m.Validate(); err != nil {
		return CalculationMetadata{}, err
	}
	m.Digest = ComputeDigest(m, "")
	return m, nil
}

func newID(at time.Time) string {
	return ulid.MustNew(ulid.Timestamp(at), rand.Reader).String()
}

// stamp normalises a creation time to UTC microseconds, the finest
// precision every store keeps, so digests survive a round trip.
func stamp(at time.Time) time.Time {
	return at.UTC().Truncate(time.Microsecond)
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// digestContent is the hashed form of a version. Field order is fixed by the
// struct, so the JSON encoding is canonical.
type digestContent struct {
	ID                 string             `json:"id"`
	SubjectID          string             `json:"subject_id"`
	Version            int                `json:"version"`
	PreviousVersionID  string             `json:"previous_version_id"`
	PreviousDigest     string             `json:"previous_digest"`
	FactorSource       FactorSource       `json:"factor_source"`
	FactorValue        float64            `json:"factor_value"`
	Methodology        string             `json:"methodology"`
	UncertaintyPercent *float64           `json:"uncertainty_percent"`
	UncertaintyMethod  UncertaintyMethod  `json:"uncertainty_method"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	Assumptions        []Assumption       `json:"assumptions"`
	Reason             string             `json:"reason"`
	CreatedAt          string             `json:"created_at"`
	CreatedBy          string             `json:"created_by"`
}

// ComputeDigest hashes the content of m chained with the digest of the
// previous version ("" for version 1).
func ComputeDigest(m CalculationMetadata, previousDigest string) string {
	assumptions := m.Assumptions
	if len(assumptions) == 0 {
		assumptions = nil
	}
	data, err := json.Marshal(digestContent{
		ID:                 m.ID,
		SubjectID:          m.SubjectID,
		Version:            m.Version,
		PreviousVersionID:  m.PreviousVersionID,
		PreviousDigest:     previousDigest,
		FactorSource:       m.FactorSource,
		FactorValue:        m.FactorValue,
		Methodology:        m.Methodology,
		UncertaintyPercent: m.UncertaintyPercent,
		UncertaintyMethod:  m.UncertaintyMethod,
		VerificationStatus: m.VerificationStatus,
		Assumptions:        assumptions,
		Reason:             m.Reason,
		CreatedAt:          m.CreatedAt.UTC().Format(time.RFC3339Nano),
		CreatedBy:          m.CreatedBy,
	})
	if err != nil {
		// Every field is a plain value; Marshal cannot fail on finite input.
		panic(fmt.Sprintf("metadata: marshal digest content: %v", err))
	}
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:])
}
