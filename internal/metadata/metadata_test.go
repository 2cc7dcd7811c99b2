package metadata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

var t0 = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func firstVersion(t *testing.T) CalculationMetadata {
	t.Helper()
	m, err := NewRecord(Draft{
		SubjectID:          "steel-import-2026Q1",
		FactorSource:       SourceEUDefault,
		FactorValue:        1.89,
		Methodology:        "CBAM default values, annex IV",
		UncertaintyPercent: ptr(15.0),
		UncertaintyMethod:  MethodConservative,
		Assumptions: []Assumption{
			{Description: "Blast furnace route", Impact: ImpactHigh},
		},
		CreatedBy: "analyst",
	}, t0)
	require.NoError(t, err)
	return m
}

func TestNewRecord(t *testing.T) {
	m := firstVersion(t)

	assert.Equal(t, 1, m.Version)
	assert.Empty(t, m.PreviousVersionID)
	assert.Equal(t, Unverified, m.VerificationStatus)
	assert.NotEmpty(t, m.ID)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, m.Digest)
	assert.Equal(t, ComputeDigest(m, ""), m.Digest)
}

func TestNewRecord_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		draft Draft
	}{
		{name: "no subject", draft: Draft{FactorSource: SourceActual}},
		{name: "bad source", draft: Draft{SubjectID: "s", FactorSource: "GUESS"}},
		{name: "negative factor", draft: Draft{SubjectID: "s", FactorSource: SourceActual, FactorValue: -1}},
		{name: "negative uncertainty", draft: Draft{SubjectID: "s", FactorSource: SourceActual, UncertaintyPercent: ptr(-2.0)}},
		{name: "bad method", draft: Draft{SubjectID: "s", FactorSource: SourceActual, UncertaintyMethod: "vibes"}},
		{
			name:  "bad assumption impact",
			draft: Draft{SubjectID: "s", FactorSource: SourceActual, Assumptions: []Assumption{{Description: "x", Impact: "huge"}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRecord(tt.draft, t0)
			require.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestRevise_CreatesNewVersion(t *testing.T) {
	v1 := firstVersion(t)
	snapshot := v1
	snapshot.Assumptions = append([]Assumption(nil), v1.Assumptions...)

	v2, err := Revise(v1, Revision{
		FactorSource: ptr(SourceActual),
		FactorValue:  ptr(1.42),
		Reason:       "supplier installation data received",
		By:           "analyst",
	}, t0.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, v1.ID, v2.PreviousVersionID)
	assert.NotEqual(t, v1.ID, v2.ID)
	assert.Equal(t, SourceActual, v2.FactorSource)
	assert.InDelta(t, 1.42, v2.FactorValue, 0)
	assert.Equal(t, "supplier installation data received", v2.Reason)
	assert.NotEqual(t, v1.Digest, v2.Digest)

	assert.Equal(t, snapshot, v1, "previous version untouched")
	require.NoError(t, VerifyChain([]CalculationMetadata{v1, v2}))
}

func TestRevise_NoChange(t *testing.T) {
	v1 := firstVersion(t)

	_, err := Revise(v1, Revision{}, t0)
	require.ErrorIs(t, err, ErrNoChange)

	_, err = Revise(v1, Revision{FactorValue: ptr(v1.FactorValue), Methodology: ptr(v1.Methodology)}, t0)
	require.ErrorIs(t, err, ErrNoChange)
}

func TestRevise_VerificationTransitions(t *testing.T) {
	tests := []struct {
		from, to VerificationStatus
		ok       bool
	}{
		{Unverified, Pending, true},
		{Unverified, Verified, false},
		{Unverified, Rejected, false},
		{Pending, Verified, true},
		{Pending, Rejected, true},
		{Pending, Unverified, false},
		{Rejected, Pending, true},
		{Rejected, Verified, false},
		{Verified, Pending, false},
		{Verified, Rejected, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))

			start := firstVersion(t)
			start.VerificationStatus = tt.from
			_, err := Revise(start, Revision{VerificationStatus: ptr(tt.to)}, t0)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalidTransition)
			}
		})
	}
}

func TestRevise_FactorChangeResetsVerification(t *testing.T) {
	v1 := firstVersion(t)
	v2, err := Revise(v1, Revision{VerificationStatus: ptr(Pending)}, t0.Add(time.Minute))
	require.NoError(t, err)
	v3, err := Revise(v2, Revision{VerificationStatus: ptr(Verified), By: "verifier"}, t0.Add(2*time.Minute))
	require.NoError(t, err)
	require.Equal(t, Verified, v3.VerificationStatus)

	v4, err := Revise(v3, Revision{Methodology: ptr("monitoring plan v2")}, t0.Add(3*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, Unverified, v4.VerificationStatus)

	v5, err := Revise(v4, Revision{Assumptions: &[]Assumption{}}, t0.Add(4*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, v5.Assumptions)
	assert.Equal(t, Unverified, v5.VerificationStatus)

	require.NoError(t, VerifyChain([]CalculationMetadata{v5, v3, v1, v4, v2}))
	latest, ok := Latest([]CalculationMetadata{v2, v5, v1})
	require.True(t, ok)
	assert.Equal(t, v5.ID, latest.ID)
}

func TestVerifyChain_DetectsTampering(t *testing.T) {
	v1 := firstVersion(t)
	v2, err := Revise(v1, Revision{FactorValue: ptr(2.1)}, t0.Add(time.Hour))
	require.NoError(t, err)
	v3, err := Revise(v2, Revision{UncertaintyPercent: ptr(8.0)}, t0.Add(2*time.Hour))
	require.NoError(t, err)

	tampered := v2
	tampered.FactorValue = 0.5
	require.ErrorIs(t, VerifyChain([]CalculationMetadata{v1, tampered, v3}), ErrDigestMismatch)

	relinked := v3
	relinked.PreviousVersionID = v1.ID
	require.ErrorIs(t, VerifyChain([]CalculationMetadata{v1, v2, relinked}), ErrBrokenChain)

	require.ErrorIs(t, VerifyChain([]CalculationMetadata{v1, v3}), ErrBrokenChain, "gap")

	// rewriting v1 breaks every later digest even when v1 is re-hashed
	rewritten := v1
	rewritten.FactorValue = 9
	rewritten.Digest = ComputeDigest(rewritten, "")
	require.ErrorIs(t, VerifyChain([]CalculationMetadata{rewritten, v2, v3}), ErrDigestMismatch)

	require.NoError(t, VerifyChain(nil))
}

func TestComputeDigest_StableAcrossEmptyAssumptions(t *testing.T) {
	m := firstVersion(t)
	m.Assumptions = nil
	withEmpty := m
	withEmpty.Assumptions = []Assumption{}
	assert.Equal(t, ComputeDigest(m, ""), ComputeDigest(withEmpty, ""))
}

func TestStamp_TruncatesToMicroseconds(t *testing.T) {
	m, err := NewRecord(Draft{SubjectID: "s", FactorSource: SourceCustom}, t0.Add(1234*time.Nanosecond))
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Microsecond), m.CreatedAt)
}
