package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/store"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadEntries_Formats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml document",
			file: "entries.yaml",
			content: `
entries:
  - id: gas
    scope: scope1
    category: Chauffage
    quantity: 1000
    unit: kWh
    emission_factor_value: 0.227
    uncertainty_percent: 5
  - id: elec
    scope: scope2
    category: Électricité
    quantity: 12000
    unit: kWh
    emission_factor_value: 0.052
`,
		},
		{
			name: "yaml list",
			file: "entries.yml",
			content: `
- {id: gas, scope: scope1, quantity: 1000, emission_factor_value: 0.227, uncertainty_percent: 5}
- {id: elec, scope: scope2, quantity: 12000, emission_factor_value: 0.052}
`,
		},
		{
			name: "json with derived field ignored",
			file: "entries.json",
			content: `{"entries": [
  {"id": "gas", "scope": "scope1", "quantity": 1000, "emission_factor_value": 0.227, "uncertainty_percent": 5, "emissions": 9999},
  {"id": "elec", "scope": "scope2", "quantity": 12000, "emission_factor_value": 0.052}
]}`,
		},
		{
			name: "csv",
			file: "entries.csv",
			content: "ID,Scope,Category,Quantity,Unit,Emission_Factor_Value,Uncertainty_Percent,Notes\n" +
				"gas,1,Chauffage,1000,kWh,0.227,5%,boiler\n" +
				"elec,scope2,Électricité,12000,kWh,0.052,,\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := LoadEntries(context.Background(), writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			require.Len(t, entries, 2)

			assert.Equal(t, "gas", entries[0].ID)
			assert.Equal(t, greenops.Scope1, entries[0].Scope)
			assert.InDelta(t, 227.0, entries[0].Emissions(), 1e-9)
			require.NotNil(t, entries[0].UncertaintyPercent)
			assert.InDelta(t, 5.0, *entries[0].UncertaintyPercent, 0)

			assert.Equal(t, greenops.Scope2, entries[1].Scope)
			assert.Nil(t, entries[1].UncertaintyPercent)
		})
	}
}

func TestLoadEntries_LenientSpellings(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "yaml", file: "methane.yaml", content: "- {id: m, scope: Scope 1, gas: ch4, quantity: 10, emission_factor_value: 1}\n"},
		{name: "json", file: "methane.json", content: `[{"id": "m", "scope": "1", "gas": "Ch4", "quantity": 10, "emission_factor_value": 1}]`},
		{name: "csv", file: "methane.csv", content: "id,scope,gas,quantity,emission_factor_value\nm,Scope 1,ch4,10,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := LoadEntries(context.Background(), writeFile(t, tt.file, tt.content))
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, greenops.Scope1, entries[0].Scope)
			assert.Equal(t, greenops.GasCH4, entries[0].Gas)
		})
	}

	_, err := LoadEntries(context.Background(), writeFile(t, "xenon.csv", "scope,gas,quantity,emission_factor_value\n1,xenon,1,1\n"))
	require.ErrorIs(t, err, greenops.ErrUnknownGas)
}

func TestLoadEntries_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := LoadEntries(ctx, writeFile(t, "entries.txt", "x"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = LoadEntries(ctx, writeFile(t, "bad.yaml", "entries:\n  - {id: x, scope: scope1, quantity: -3, emission_factor_value: 1}\n"))
	require.Error(t, err)
	assert.True(t, greenops.IsValidation(err))
	assert.Contains(t, err.Error(), "entry 1 (x)")

	_, err = LoadEntries(ctx, writeFile(t, "bad.csv", "scope,quantity\n1,2\n"))
	require.Error(t, err)

	_, err = LoadEntries(ctx, writeFile(t, "bad2.csv", "scope,quantity,emission_factor_value\n1,lots,2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	_, err = LoadEntries(ctx, filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)

	entries, err := LoadEntries(ctx, writeFile(t, "empty.json", "  "))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

const ocrPayload = `{
  "document": {"id": "INV-2026-041", "supplier": "EDF", "confidence": 0.9},
  "lines": [
    {"description": "Consommation électricité mars", "quantity": 4200, "unit": "kWh", "scope": "scope2", "category": "Électricité", "emission_factor": 0.052, "confidence": "87%"},
    {"label": "Abonnement", "qty": 1, "unit": "month", "scope": "3", "factor": 0},
    {"description": "Total TTC", "amount": 812.40},
    {"description": "Gaz", "quantity": 300, "scope": "scope9"},
    {"description": "Blurry line", "quantity": 12, "scope": "scope1", "confidence": 0.2}
  ]
}`

func TestParseOCRResult(t *testing.T) {
	res, err := ParseOCRResult(context.Background(), []byte(ocrPayload), OCROptions{MinConfidence: 0.5})
	require.NoError(t, err)

	assert.Equal(t, "INV-2026-041", res.DocumentID)
	require.Len(t, res.Entries, 2)

	first := res.Entries[0]
	assert.Equal(t, "INV-2026-041-1", first.ID)
	assert.Equal(t, greenops.StatusDraft, first.Status)
	assert.True(t, first.IsDraft())
	assert.InDelta(t, 0.87, first.Confidence, 1e-12)
	assert.Equal(t, greenops.Scope2, first.Scope)
	assert.Equal(t, "EDF", first.Subcategory)
	assert.InDelta(t, 218.4, first.Emissions(), 1e-9)

	second := res.Entries[1]
	assert.Equal(t, greenops.Scope3, second.Scope)
	assert.Equal(t, "Abonnement", second.Description)
	assert.InDelta(t, 0.9, second.Confidence, 1e-12, "inherits document confidence")

	require.Len(t, res.Skipped, 3)
	assert.Contains(t, res.Skipped[0], "line 3: no quantity")
	assert.Contains(t, res.Skipped[1], "line 4")
	assert.Contains(t, res.Skipped[2], "below")
}

func TestParseOCRResult_DefaultsAndErrors(t *testing.T) {
	ctx := context.Background()

	res, err := ParseOCRResult(ctx, []byte(`{"items": [{"quantity": 10, "emission_factor": 2}]}`), OCROptions{DefaultScope: greenops.Scope3})
	require.NoError(t, err)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, greenops.Scope3, res.Entries[0].Scope)
	assert.InDelta(t, 1.0, res.Entries[0].Confidence, 0)
	assert.Empty(t, res.Entries[0].ID, "no document id, the store assigns one")

	res, err = ParseOCRResult(ctx, []byte(`{"items": [{"quantity": 10}]}`), OCROptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"line 1: no scope"}, res.Skipped)

	_, err = ParseOCRResult(ctx, []byte(`{"lines": `), OCROptions{})
	require.ErrorIs(t, err, ErrInvalidOCRPayload)
	_, err = ParseOCRResult(ctx, []byte(`{"document": {}}`), OCROptions{})
	require.ErrorIs(t, err, ErrInvalidOCRPayload)
}

func manyEntries(n int) []greenops.ActivityEntry {
	out := make([]greenops.ActivityEntry, n)
	for i := range out {
		out[i] = greenops.ActivityEntry{
			ID: fmt.Sprintf("e%03d", i), Scope: greenops.Scope3, Quantity: float64(i), EmissionFactorValue: 1,
		}
	}
	return out
}

func TestImporter_Batches(t *testing.T) {
	mem := store.NewMemory()
	var seen []Progress
	im, err := NewImporter(mem.Entries(), 10)
	require.NoError(t, err)
	im.WithProgress(func(p Progress) { seen = append(seen, p) })

	summary, err := im.Import(context.Background(), manyEntries(25))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Batches)
	assert.Len(t, summary.Imported, 25)

	require.Len(t, seen, 3)
	assert.Equal(t, 10, seen[0].ProcessedItems)
	assert.InDelta(t, 100.0, seen[2].PercentComplete(), 1e-9)

	list, err := mem.Entries().List(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Len(t, list, 25)
}

type failingWriter struct {
	calls int
}

func (f *failingWriter) Add(_ context.Context, entries ...greenops.ActivityEntry) ([]greenops.ActivityEntry, error) {
	f.calls++
	if f.calls == 2 {
		return nil, errors.New("disk full")
	}
	return entries, nil
}

func TestImporter_StopsOnError(t *testing.T) {
	w := &failingWriter{}
	im, err := NewImporter(w, 10)
	require.NoError(t, err)

	summary, err := im.Import(context.Background(), manyEntries(25))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "batch 1 failed"))
	assert.Len(t, summary.Imported, 10)
	assert.Equal(t, 2, w.calls)
}

func TestImporter_Cancelled(t *testing.T) {
	im, err := NewImporter(&failingWriter{}, 5)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := im.Import(ctx, manyEntries(12))
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, summary.Imported)
}

func TestNewImporter_InvalidBatchSize(t *testing.T) {
	for _, size := range []int{0, -1, 1001} {
		_, err := NewImporter(store.NewMemory().Entries(), size)
		require.ErrorIs(t, err, ErrInvalidBatchSize)
	}
}

func TestBatchBounds(t *testing.T) {
	assert.Equal(t, [][2]int{{0, 10}, {10, 20}, {20, 25}}, batchBounds(25, 10))
	assert.Empty(t, batchBounds(0, 10))
}
