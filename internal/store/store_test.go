package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/greenledger/internal/config"
	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/metadata"
)

func pct(v float64) *float64 { return &v }

// openers lists every adapter the suite runs against. PostgreSQL joins when
// GREENLEDGER_TEST_POSTGRES_URL points at a disposable database.
func openers(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	out := map[string]func(t *testing.T) Store{
		"memory": func(_ *testing.T) Store { return NewMemory() },
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "greenledger.db"))
			require.NoError(t, err)
			return s
		},
	}
	if url := os.Getenv("GREENLEDGER_TEST_POSTGRES_URL"); url != "" {
		out["postgres"] = func(t *testing.T) Store {
			s, err := OpenPostgres(context.Background(), url)
			require.NoError(t, err)
			_, err = s.Entries().Purge(context.Background())
			require.NoError(t, err)
			_, err = s.pool.Exec(context.Background(), "DELETE FROM calculation_metadata")
			require.NoError(t, err)
			return s
		}
	}
	return out
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, open := range openers(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
}

func sample() []greenops.ActivityEntry {
	return []greenops.ActivityEntry{
		{ID: "01-gas", Scope: greenops.Scope1, Category: "Chauffage", Type: "Gaz naturel", Quantity: 1000, Unit: "kWh", EmissionFactorValue: 0.227, UncertaintyPercent: pct(5)},
		{ID: "02-elec", Scope: greenops.Scope2, Category: "Électricité", Quantity: 12000, Unit: "kWh", EmissionFactorValue: 0.052},
		{ID: "03-ocr", Scope: greenops.Scope3, Category: "Achats", Quantity: 3, Unit: "t", EmissionFactorValue: 1.2, EmissionFactorUnit: "t", Status: greenops.StatusDraft, Confidence: 0.82},
	}
}

func TestEntries_CRUD(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		repo := s.Entries()

		added, err := repo.Add(ctx, sample()...)
		require.NoError(t, err)
		require.Len(t, added, 3)
		assert.Equal(t, greenops.StatusValidated, added[0].Status, "status defaults to validated")
		assert.False(t, added[0].CreatedAt.IsZero())

		got, err := repo.Get(ctx, "01-gas")
		require.NoError(t, err)
		assert.Equal(t, added[0], got)
		require.NotNil(t, got.UncertaintyPercent)
		assert.InDelta(t, 5.0, *got.UncertaintyPercent, 0)
		assert.InDelta(t, 227.0, got.Emissions(), 1e-9)

		got.Quantity = 2000
		updated, err := repo.Update(ctx, got)
		require.NoError(t, err)
		assert.Equal(t, added[0].CreatedAt, updated.CreatedAt)
		reread, err := repo.Get(ctx, "01-gas")
		require.NoError(t, err)
		assert.InDelta(t, 454.0, reread.Emissions(), 1e-9, "emissions follow the stored inputs")

		require.NoError(t, repo.Delete(ctx, "02-elec"))
		require.ErrorIs(t, repo.Delete(ctx, "02-elec"), ErrNotFound)
		_, err = repo.Get(ctx, "02-elec")
		require.ErrorIs(t, err, ErrNotFound)
		_, err = repo.Update(ctx, greenops.ActivityEntry{ID: "missing", Scope: greenops.Scope1})
		require.ErrorIs(t, err, ErrNotFound)

		n, err := repo.Purge(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		list, err := repo.List(ctx, Filter{})
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestEntries_ListFiltersAndCopies(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		repo := s.Entries()
		_, err := repo.Add(ctx, sample()...)
		require.NoError(t, err)

		all, err := repo.List(ctx, Filter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, []string{"01-gas", "02-elec", "03-ocr"}, []string{all[0].ID, all[1].ID, all[2].ID})

		drafts, err := repo.List(ctx, Filter{Status: greenops.StatusDraft})
		require.NoError(t, err)
		require.Len(t, drafts, 1)
		assert.InDelta(t, 0.82, drafts[0].Confidence, 1e-12)

		scope2, err := repo.List(ctx, Filter{Scope: greenops.Scope2})
		require.NoError(t, err)
		require.Len(t, scope2, 1)

		all[0].Quantity = 0
		*all[0].UncertaintyPercent = 99
		again, err := repo.List(ctx, Filter{})
		require.NoError(t, err)
		assert.InDelta(t, 1000.0, again[0].Quantity, 0, "List returns copies")
		assert.InDelta(t, 5.0, *again[0].UncertaintyPercent, 0)
	})
}

func TestEntries_AddIsAtomic(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		repo := s.Entries()

		batch := sample()
		batch[2].Quantity = -1
		_, err := repo.Add(ctx, batch...)
		require.Error(t, err)
		assert.True(t, greenops.IsValidation(err))

		list, err := repo.List(ctx, Filter{})
		require.NoError(t, err)
		assert.Empty(t, list, "a rejected batch writes nothing")

		_, err = repo.Add(ctx, sample()[0])
		require.NoError(t, err)
		_, err = repo.Add(ctx, sample()[0])
		require.ErrorIs(t, err, ErrConflict)
	})
}

func TestEntries_GeneratesULIDs(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		added, err := s.Entries().Add(context.Background(), greenops.ActivityEntry{
			Scope: greenops.Scope1, Quantity: 1, EmissionFactorValue: 1,
		})
		require.NoError(t, err)
		assert.Len(t, added[0].ID, 26)
	})
}

func metadataChain(t *testing.T) []metadata.CalculationMetadata {
	t.Helper()
	t0 := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	v1, err := metadata.NewRecord(metadata.Draft{
		SubjectID:          "steel-2026Q1",
		FactorSource:       metadata.SourceEUDefault,
		FactorValue:        1.89,
		Methodology:        "CBAM default values",
		UncertaintyPercent: pct(15),
		UncertaintyMethod:  metadata.MethodConservative,
		Assumptions:        []metadata.Assumption{{Description: "Blast furnace route", Impact: metadata.ImpactHigh}},
	}, t0)
	require.NoError(t, err)
	source := metadata.SourceActual
	value := 1.42
	v2, err := metadata.Revise(v1, metadata.Revision{FactorSource: &source, FactorValue: &value, Reason: "supplier data"}, t0.Add(time.Hour))
	require.NoError(t, err)
	return []metadata.CalculationMetadata{v1, v2}
}

func TestMetadata_AppendAndHistory(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		repo := s.Metadata()
		chain := metadataChain(t)

		_, err := repo.Latest(ctx, "steel-2026Q1")
		require.ErrorIs(t, err, ErrNotFound)

		require.ErrorIs(t, repo.Append(ctx, chain[1]), ErrConflict, "version 2 before version 1")
		require.NoError(t, repo.Append(ctx, chain[0]))
		require.ErrorIs(t, repo.Append(ctx, chain[0]), ErrConflict, "duplicate version")
		require.NoError(t, repo.Append(ctx, chain[1]))

		history, err := repo.History(ctx, "steel-2026Q1")
		require.NoError(t, err)
		assert.Equal(t, chain, history)
		require.NoError(t, metadata.VerifyChain(history), "digests survive storage")

		latest, err := repo.Latest(ctx, "steel-2026Q1")
		require.NoError(t, err)
		assert.Equal(t, 2, latest.Version)

		subjects, err := repo.Subjects(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"steel-2026Q1"}, subjects)
	})
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StorageConfig{Driver: config.DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, config.StorageConfig{Driver: config.DriverSQLite, DSN: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.StorageConfig{Driver: "mongo"})
	require.Error(t, err)
}

func TestSQLite_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "greenledger.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	_, err = s.Entries().Add(ctx, sample()...)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	list, err := s.Entries().List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, list, 3)
}
