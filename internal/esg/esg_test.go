package esg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/sector"
)

func f64(v float64) *float64 { return &v }

func TestCatalog_Shape(t *testing.T) {
	counts := map[Pillar]int{}
	seen := map[string]bool{}
	for _, ind := range Catalog() {
		require.False(t, seen[ind.ID], "duplicate %s", ind.ID)
		seen[ind.ID] = true
		counts[ind.Pillar]++

		for _, dep := range ind.DependsOn {
			_, ok := Lookup(dep)
			assert.True(t, ok, "%s depends on unknown %s", ind.ID, dep)
		}
		if ind.Type == Calculated {
			assert.NotEmpty(t, ind.DependsOn, ind.ID)
		}
	}
	assert.Len(t, Catalog(), 32)
	assert.Equal(t, map[Pillar]int{Environment: 12, Social: 10, Governance: 10}, counts)
}

func TestValues_Set(t *testing.T) {
	var v Values

	require.NoError(t, v.Set("renewable_energy_share", 40))
	require.NoError(t, v.SetBool("audit_committee", true))

	err := v.Set(CarbonIntensity, 0.1)
	require.ErrorIs(t, err, ErrCalculatedIndicator)
	assert.True(t, greenops.IsValidation(err))

	require.ErrorIs(t, v.Set("not_an_indicator", 1), ErrUnknownIndicator)
	require.ErrorIs(t, v.Set("audit_committee", 0.5), ErrInvalidBinary)

	got, ok := v.Get("audit_committee")
	assert.True(t, ok)
	assert.InDelta(t, 1.0, got, 0)
	assert.Equal(t, 2, v.Len())
}

func TestNewValues_RejectsCalculated(t *testing.T) {
	_, err := NewValues(map[string]float64{"recycling_rate": 80})
	require.ErrorIs(t, err, ErrCalculatedIndicator)
}

func TestDerive(t *testing.T) {
	v, err := NewValues(map[string]float64{
		TotalEmissions:    500,
		EnergyConsumption: 200,
		WasteGenerated:    10,
		WasteRecycled:     4,
	})
	require.NoError(t, err)

	d, err := Derive(v, f64(1000))
	require.NoError(t, err)

	ci, ok := d.Get(CarbonIntensity)
	require.True(t, ok)
	assert.InDelta(t, 0.5, ci, 1e-12)
	ei, _ := d.Get(EnergyIntensity)
	assert.InDelta(t, 0.2, ei, 1e-12)
	rr, _ := d.Get(RecyclingRate)
	assert.InDelta(t, 40.0, rr, 1e-12)
	_, ok = d.Get(WaterIntensity)
	assert.False(t, ok, "no water consumption, no water intensity")

	_, ok = v.Get(CarbonIntensity)
	assert.False(t, ok, "input untouched")
}

func TestDerive_RecomputesFromCurrentInputs(t *testing.T) {
	v, err := NewValues(map[string]float64{TotalEmissions: 500})
	require.NoError(t, err)
	first, err := Derive(v, f64(1000))
	require.NoError(t, err)

	require.NoError(t, v.Set(TotalEmissions, 100))
	second, err := Derive(first, f64(1000))
	require.NoError(t, err)
	third, err := Derive(v, f64(1000))
	require.NoError(t, err)

	got, _ := second.Get(CarbonIntensity)
	assert.InDelta(t, 0.5, got, 1e-12)
	got, _ = third.Get(CarbonIntensity)
	assert.InDelta(t, 0.1, got, 1e-12)
}

func TestDerive_Revenue(t *testing.T) {
	v, err := NewValues(map[string]float64{TotalEmissions: 500})
	require.NoError(t, err)

	d, err := Derive(v, nil)
	require.NoError(t, err)
	_, ok := d.Get(CarbonIntensity)
	assert.False(t, ok)

	_, err = Derive(v, f64(0))
	require.ErrorIs(t, err, sector.ErrNonPositiveRevenue)
	_, err = Derive(v, f64(math.Inf(1)))
	require.ErrorIs(t, err, sector.ErrNonPositiveRevenue)
}

func TestNormalize(t *testing.T) {
	r := Range{Min: 0, Max: 50}
	assert.InDelta(t, 50.0, Normalize(25, r, HigherIsBetter), 1e-12)
	assert.InDelta(t, 100.0, Normalize(80, r, HigherIsBetter), 0)
	assert.InDelta(t, 0.0, Normalize(-5, r, HigherIsBetter), 0)
	assert.InDelta(t, 80.0, Normalize(10, r, LowerIsBetter), 1e-12)
	assert.InDelta(t, 100.0, Normalize(0, r, LowerIsBetter), 0)
	assert.InDelta(t, 0.0, Normalize(60, r, LowerIsBetter), 0)
	assert.InDelta(t, 100.0, Normalize(1, Range{Min: 1, Max: 1}, LowerIsBetter), 0)
}

func TestComposite_AllHundred(t *testing.T) {
	got, err := Composite(map[Pillar]float64{Environment: 100, Social: 100, Governance: 100}, Weights{0.4, 0.3, 0.3})
	require.NoError(t, err)
	assert.Equal(t, 100.0, got)
}

func TestComposite_Weighted(t *testing.T) {
	got, err := Composite(map[Pillar]float64{Environment: 50, Social: 80, Governance: 70}, DefaultWeights())
	require.NoError(t, err)
	assert.InDelta(t, 65.0, got, 1e-9)
}

func TestWeights_Validate(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())
	require.NoError(t, Weights{0.3333333, 0.3333333, 0.3333334}.Validate())
	require.ErrorIs(t, Weights{0.5, 0.3, 0.3}.Validate(), ErrInvalidWeights)
	require.ErrorIs(t, Weights{1.2, -0.1, -0.1}.Validate(), ErrInvalidWeights)
	require.ErrorIs(t, Weights{math.NaN(), 0.5, 0.5}.Validate(), ErrInvalidWeights)
	require.ErrorIs(t, Weights{math.Inf(1), 0, 0}.Validate(), ErrInvalidWeights)

	_, err := Composite(map[Pillar]float64{Environment: 50, Social: 50, Governance: 50}, Weights{math.NaN(), 0.5, 0.5})
	require.ErrorIs(t, err, ErrInvalidWeights)
}

func TestBands(t *testing.T) {
	b := DefaultBands()
	require.NoError(t, b.Validate())

	tests := []struct {
		score float64
		want  sector.Grade
	}{
		{100, sector.GradeAPlus},
		{85, sector.GradeAPlus},
		{84.99, sector.GradeA},
		{75, sector.GradeA},
		{65, sector.GradeBPlus},
		{55, sector.GradeB},
		{40, sector.GradeC},
		{39.99, sector.GradeD},
		{0, sector.GradeD},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, b.Grade(tt.score), "score %v", tt.score)
	}

	require.ErrorIs(t, Bands{APlus: 50, A: 75, BPlus: 65, B: 55, C: 40}.Validate(), ErrInvalidBands)
}

func fullValues(t *testing.T) Values {
	t.Helper()
	raw := map[string]float64{TotalEmissions: 100}
	for _, ind := range Catalog() {
		switch {
		case ind.Type == Binary:
			raw[ind.ID] = 1
		case ind.Type == Numeric && ind.DefaultRange != nil:
			if ind.Direction == LowerIsBetter {
				raw[ind.ID] = ind.DefaultRange.Min
			} else {
				raw[ind.ID] = ind.DefaultRange.Max
			}
		}
	}
	v, err := NewValues(raw)
	require.NoError(t, err)
	return v
}

func TestEvaluate_PerfectScores(t *testing.T) {
	b := sector.DefaultBenchmarks()[sector.Services]
	// 100 t over 10 M€ is 0.01 tCO2e/k€, below the services top performers.
	a, err := Evaluate(fullValues(t), f64(10000), &b, DefaultWeights(), DefaultBands())
	require.NoError(t, err)

	assert.Equal(t, sector.StatusScored, a.Status)
	for _, p := range a.Pillars {
		assert.Equal(t, 100.0, p.Score, p.Pillar)
	}
	assert.Equal(t, 100.0, a.Composite)
	assert.Equal(t, sector.GradeAPlus, a.Grade)
	assert.InDelta(t, 0.01, a.Derived[CarbonIntensity], 1e-12)
}

func TestEvaluate_InsufficientData(t *testing.T) {
	var v Values
	require.NoError(t, v.SetBool("climate_target", true))
	require.NoError(t, v.SetBool("audit_committee", true))

	a, err := Evaluate(v, nil, nil, DefaultWeights(), DefaultBands())
	require.NoError(t, err)
	assert.Equal(t, sector.StatusInsufficientData, a.Status)
	assert.Equal(t, []Pillar{Social}, a.Missing)
	assert.Zero(t, a.Composite)
	assert.Empty(t, a.Grade)
}

func TestEvaluate_Mixed(t *testing.T) {
	var v Values
	require.NoError(t, v.Set("renewable_energy_share", 50))
	require.NoError(t, v.SetBool("iso14001_certified", false))
	require.NoError(t, v.Set("women_in_management", 25))
	require.NoError(t, v.SetBool("anti_corruption_policy", true))

	a, err := Evaluate(v, nil, nil, DefaultWeights(), DefaultBands())
	require.NoError(t, err)

	require.Len(t, a.Pillars, 3)
	assert.InDelta(t, 25.0, a.Pillars[0].Score, 1e-9)
	assert.InDelta(t, 50.0, a.Pillars[1].Score, 1e-9)
	assert.InDelta(t, 100.0, a.Pillars[2].Score, 1e-9)
	assert.InDelta(t, 25*0.4+50*0.3+100*0.3, a.Composite, 1e-9)
	assert.Equal(t, sector.GradeB, a.Grade)
}

func TestEvaluate_CarbonIntensityUsesBenchmark(t *testing.T) {
	b := sector.Benchmark{Sector: sector.Retail, Average: 0.12, TopPerformers: 0.05, Threshold: 0.25}
	r := RangesFor(&b)
	assert.Equal(t, Range{Min: 0.05, Max: 0.25}, r[CarbonIntensity])

	def := RangesFor(nil)
	assert.Equal(t, Range{Min: 0, Max: 1}, def[CarbonIntensity])
}

func TestEvaluate_InvalidConfig(t *testing.T) {
	_, err := Evaluate(Values{}, nil, nil, Weights{1, 1, 1}, DefaultBands())
	require.ErrorIs(t, err, ErrInvalidWeights)

	_, err = Evaluate(Values{}, nil, nil, DefaultWeights(), Bands{})
	require.ErrorIs(t, err, ErrInvalidBands)
}
