package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/greenledger/internal/config"
)

func fixtureReport(t *testing.T) Report {
	t.Helper()
	r, err := newTestEngine(t).Compute(context.Background(), Input{
		Params:  Params{RevenueK: ptr(100), Sector: "manufacturing"},
		Entries: fixtureEntries(),
	})
	require.NoError(t, err)
	return r
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, fixtureReport(t), 2))
	out := buf.String()

	assert.Contains(t, out, "SCOPE")
	assert.Contains(t, out, "2.27 tCO2e")
	assert.Contains(t, out, "5.00 tCO2e")
	assert.Contains(t, out, "± 227.00 kgCO2e")
	assert.Contains(t, out, "[1 unknown]")
	assert.Contains(t, out, "33/100")
	assert.Contains(t, out, "Émissions fugitives")
	assert.Contains(t, out, "manufacturing A+ (95/100)")
	assert.Contains(t, out, "no S data")
	assert.Contains(t, out, "WARNING")
}

func TestRenderTable_InsufficientData(t *testing.T) {
	e := newTestEngine(t, func(s *config.ScoringConfig) { s.UnknownUncertainty = "invalidate" })
	r, err := e.Compute(context.Background(), Input{Entries: fixtureEntries()})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderTable(&buf, r, 1))
	out := buf.String()
	assert.Contains(t, out, "insufficient data (missing revenue, sector)")
	assert.Contains(t, out, "UNCERTAINTY (k=-)")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderJSON(&buf, fixtureReport(t)))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	for _, key := range []string{"totals", "compliance", "sector", "esg", "uncertainty", "snapshot_digest"} {
		assert.Contains(t, decoded, key)
	}
	totals, ok := decoded["totals"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 5000.0, totals["total_kg"], 1e-9)
}

func TestRenderNDJSON(t *testing.T) {
	r := fixtureReport(t)
	var buf bytes.Buffer
	require.NoError(t, RenderNDJSON(&buf, r))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	sections := make([]string, 0, len(lines))
	for _, line := range lines {
		var rec struct {
			Section string `json:"section"`
			Digest  string `json:"snapshot_digest"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		assert.Equal(t, r.SnapshotDigest, rec.Digest)
		sections = append(sections, rec.Section)
	}
	assert.Equal(t, []string{"totals", "compliance", "sector", "esg", "uncertainty", "warning"}, sections)
}
