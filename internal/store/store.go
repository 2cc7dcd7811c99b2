// Package store persists activity entries and calculation metadata behind
// two repository ports. Adapters exist for memory, SQLite and PostgreSQL;
// scoring code never sees which one is in use.
package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rshade/greenledger/internal/config"
	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/logging"
	"github.com/rshade/greenledger/internal/metadata"
)

type constError string

func (e constError) Error() string { return string(e) }

// Sentinel errors.
const (
	ErrNotFound = constError("not found")
	ErrConflict = constError("conflicting write")
)

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Scope  greenops.Scope
	Status greenops.EntryStatus
}

func (f Filter) match(e greenops.ActivityEntry) bool {
	if f.Scope != "" && e.Scope != f.Scope {
		return false
	}
	if f.Status != "" && effectiveStatus(e.Status) != f.Status {
		return false
	}
	return true
}

// EntryRepository stores activity entries. List returns copies ordered by ID;
// callers may modify them freely.
type EntryRepository interface {
	Add(ctx context.Context, entries ...greenops.ActivityEntry) ([]greenops.ActivityEntry, error)
	Update(ctx context.Context, e greenops.ActivityEntry) (greenops.ActivityEntry, error)
	Get(ctx context.Context, id string) (greenops.ActivityEntry, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f Filter) ([]greenops.ActivityEntry, error)
	Purge(ctx context.Context) (int, error)
}

// MetadataRepository stores calculation metadata chains. Append only
// accepts the version directly after the stored latest one.
type MetadataRepository interface {
	Append(ctx context.Context, m metadata.CalculationMetadata) error
	Latest(ctx context.Context, subjectID string) (metadata.CalculationMetadata, error)
	History(ctx context.Context, subjectID string) ([]metadata.CalculationMetadata, error)
	Subjects(ctx context.Context) ([]string, error)
}

// Store bundles both repositories with the adapter lifecycle.
type Store interface {
	Entries() EntryRepository
	Metadata() MetadataRepository
	Close() error
}

// Open returns the adapter selected by cfg.Driver and applies pending
// migrations for SQL drivers.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	logger := logging.FromContext(ctx).With().
		Str("component", "store").
		Str("driver", cfg.Driver).
		Logger()

	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case config.DriverMemory:
		s = NewMemory()
	case config.DriverSQLite:
		s, err = OpenSQLite(ctx, cfg.DSN)
	case config.DriverPostgres:
		s, err = OpenPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to open store")
		return nil, err
	}
	logger.Debug().Msg("store opened")
	return s, nil
}

// prepareNew validates e and fills its ID and timestamps.
func prepareNew(e greenops.ActivityEntry, now time.Time) (greenops.ActivityEntry, error) {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.Status == "" {
		e.Status = greenops.StatusValidated
	}
	if err := e.Validate(); err != nil {
		return greenops.ActivityEntry{}, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	now = now.UTC().Truncate(time.Microsecond)
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	} else {
		e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Microsecond)
	}
	e.UpdatedAt = now
	return e, nil
}

// prepareUpdate validates e and carries the creation time over from prev.
func prepareUpdate(prev, e greenops.ActivityEntry, now time.Time) (greenops.ActivityEntry, error) {
	if e.Status == "" {
		e.Status = prev.Status
	}
	if err := e.Validate(); err != nil {
		return greenops.ActivityEntry{}, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	e.CreatedAt = prev.CreatedAt
	e.UpdatedAt = now.UTC().Truncate(time.Microsecond)
	return e, nil
}

func effectiveStatus(s greenops.EntryStatus) greenops.EntryStatus {
	if s == "" {
		return greenops.StatusValidated
	}
	return s
}

func checkAppend(history []metadata.CalculationMetadata, m metadata.CalculationMetadata) error {
	if err := m.Validate(); err != nil {
		return err
	}
	wantVersion, wantPrev := 1, ""
	if latest, ok := metadata.Latest(history); ok {
		wantVersion, wantPrev = latest.Version+1, latest.ID
	}
	if m.Version != wantVersion || m.PreviousVersionID != wantPrev {
		return fmt.Errorf("%w: subject %s expects version %d after %q, got version %d after %q",
			ErrConflict, m.SubjectID, wantVersion, wantPrev, m.Version, m.PreviousVersionID)
	}
	return nil
}

func sortEntries(entries []greenops.ActivityEntry) {
	slices.SortFunc(entries, func(a, b greenops.ActivityEntry) int { return strings.Compare(a.ID, b.ID) })
}
