package sector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/greenledger/internal/greenops"
)

func f64(v float64) *float64 { return &v }

func TestLadder_ExactBoundaries(t *testing.T) {
	l := DefaultLadder()
	for _, b := range DefaultBenchmarks() {
		t.Run(string(b.Sector), func(t *testing.T) {
			tests := []struct {
				intensity float64
				grade     Grade
				score     int
			}{
				{0, GradeAPlus, 95},
				{b.TopPerformers, GradeAPlus, 95},
				{math.Nextafter(b.TopPerformers, math.Inf(1)), GradeA, 85},
				{b.Average * l.AFactor, GradeA, 85},
				{math.Nextafter(b.Average*l.AFactor, math.Inf(1)), GradeBPlus, 70},
				{b.Average * l.BPlusFactor, GradeBPlus, 70},
				{math.Nextafter(b.Average*l.BPlusFactor, math.Inf(1)), GradeB, 60},
				{b.Average * l.BFactor, GradeB, 60},
				{math.Nextafter(b.Average*l.BFactor, math.Inf(1)), GradeC, 45},
				{b.Average * l.CFactor, GradeC, 45},
				{math.Nextafter(b.Average*l.CFactor, math.Inf(1)), GradeD, 25},
				{b.Threshold * 10, GradeD, 25},
			}
			for _, tt := range tests {
				g, s := l.Grade(tt.intensity, b)
				assert.Equal(t, tt.grade, g, "intensity %v", tt.intensity)
				assert.Equal(t, tt.score, s, "intensity %v", tt.intensity)
			}
		})
	}
}

func TestLadder_Deterministic(t *testing.T) {
	l := DefaultLadder()
	b := DefaultBenchmarks()[Retail]
	for _, x := range []float64{0.01, 0.05, 0.1, 0.13, 0.2, 3} {
		g1, s1 := l.Grade(x, b)
		g2, s2 := l.Grade(x, b)
		assert.Equal(t, g1, g2)
		assert.Equal(t, s1, s2)
	}
}

func TestLadder_Validate(t *testing.T) {
	require.NoError(t, DefaultLadder().Validate())

	bad := DefaultLadder()
	bad.BFactor = 0.9
	require.ErrorIs(t, bad.Validate(), ErrInvalidLadder)

	missing := DefaultLadder()
	missing.Points = map[Grade]int{GradeAPlus: 95}
	require.ErrorIs(t, missing.Validate(), ErrInvalidLadder)

	inverted := DefaultLadder()
	inverted.Points = map[Grade]int{GradeAPlus: 50, GradeA: 85, GradeBPlus: 70, GradeB: 60, GradeC: 45, GradeD: 25}
	require.ErrorIs(t, inverted.Validate(), ErrInvalidLadder)

	nan := DefaultLadder()
	nan.AFactor = math.NaN()
	require.ErrorIs(t, nan.Validate(), ErrInvalidLadder)

	inf := DefaultLadder()
	inf.CFactor = math.Inf(1)
	require.ErrorIs(t, inf.Validate(), ErrInvalidLadder)
}

func TestIntensity(t *testing.T) {
	got, err := Intensity(456000, 1000)
	require.NoError(t, err)
	assert.InDelta(t, 0.456, got, 1e-12)

	_, err = Intensity(1, 0)
	require.ErrorIs(t, err, ErrNonPositiveRevenue)
	_, err = Intensity(1, -10)
	require.ErrorIs(t, err, ErrNonPositiveRevenue)
	_, err = Intensity(5e6, math.Inf(1))
	require.ErrorIs(t, err, ErrNonPositiveRevenue)
	_, err = Intensity(1, math.NaN())
	require.ErrorIs(t, err, ErrNonPositiveRevenue)
	_, err = Intensity(-1, 10)
	require.ErrorIs(t, err, greenops.ErrNegativeValue)
}

func TestAssess(t *testing.T) {
	bs := DefaultBenchmarks()
	l := DefaultLadder()

	tests := []struct {
		name     string
		totalKg  float64
		revenueK *float64
		sector   string
		wantErr  error
		status   Status
		grade    Grade
		score    int
		missing  []string
	}{
		{name: "services top performer", totalKg: 10000, revenueK: f64(1000), sector: "services", status: StatusScored, grade: GradeAPlus, score: 95},
		{name: "manufacturing average", totalKg: 350000, revenueK: f64(1000), sector: "Manufacturing", status: StatusScored, grade: GradeBPlus, score: 70},
		{name: "transport laggard", totalKg: 5e6, revenueK: f64(1000), sector: "transport", status: StatusScored, grade: GradeD, score: 25},
		{name: "missing revenue", totalKg: 1000, sector: "retail", status: StatusInsufficientData, missing: []string{"revenue"}},
		{name: "missing sector", totalKg: 1000, revenueK: f64(100), status: StatusInsufficientData, missing: []string{"sector"}},
		{name: "missing both", totalKg: 1000, status: StatusInsufficientData, missing: []string{"revenue", "sector"}},
		{name: "zero revenue", totalKg: 1000, revenueK: f64(0), sector: "retail", wantErr: ErrNonPositiveRevenue},
		{name: "infinite revenue", totalKg: 5e6, revenueK: f64(math.Inf(1)), sector: "manufacturing", wantErr: ErrNonPositiveRevenue},
		{name: "unknown sector", totalKg: 1000, revenueK: f64(100), sector: "mining", wantErr: ErrUnknownSector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Assess(tt.totalKg, tt.revenueK, tt.sector, bs, l)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, greenops.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.status, a.Status)
			assert.Equal(t, tt.grade, a.Grade)
			assert.Equal(t, tt.score, a.Score)
			assert.Equal(t, tt.missing, a.Missing)
			if tt.status == StatusInsufficientData {
				assert.Nil(t, a.Benchmark)
			}
		})
	}
}

func TestNewBenchmarks(t *testing.T) {
	bs, err := NewBenchmarks([]Benchmark{{Sector: Retail, Average: 0.2, TopPerformers: 0.1, Threshold: 0.3}})
	require.NoError(t, err)
	assert.Equal(t, IntensityUnit, bs[Retail].Unit)

	_, err = NewBenchmarks([]Benchmark{{Sector: Retail, Average: 0.1, TopPerformers: 0.2, Threshold: 0.3}})
	require.ErrorIs(t, err, ErrInvalidBenchmark)

	_, err = NewBenchmarks([]Benchmark{{Sector: "mining", Average: 0.2, TopPerformers: 0.1, Threshold: 0.3}})
	require.ErrorIs(t, err, ErrUnknownSector)

	_, err = bs.Lookup(Energy)
	require.ErrorIs(t, err, ErrUnknownSector)
}

func TestDefaultBenchmarks_CoverEverySector(t *testing.T) {
	bs := DefaultBenchmarks()
	for _, s := range Sectors() {
		b, err := bs.Lookup(s)
		require.NoError(t, err, s)
		require.NoError(t, b.Validate())
	}
}
