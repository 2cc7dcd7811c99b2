package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/metadata"
)

// Memory keeps everything in process memory. It is the adapter used by
// tests and by the memory storage driver.
type Memory struct {
	mu       sync.RWMutex
	entries  map[string]greenops.ActivityEntry
	metadata map[string][]metadata.CalculationMetadata
	now      func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries:  make(map[string]greenops.ActivityEntry),
		metadata: make(map[string][]metadata.CalculationMetadata),
		now:      time.Now,
	}
}

// Entries implements Store.
func (m *Memory) Entries() EntryRepository { return memoryEntries{m} }

// Metadata implements Store.
func (m *Memory) Metadata() MetadataRepository { return memoryMetadata{m} }

// Close implements Store.
func (m *Memory) Close() error { return nil }

type memoryEntries struct{ m *Memory }

func (r memoryEntries) Add(_ context.Context, entries ...greenops.ActivityEntry) ([]greenops.ActivityEntry, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	now := r.m.now()
	out := make([]greenops.ActivityEntry, 0, len(entries))
	for _, e := range entries {
		prepared, err := prepareNew(e, now)
		if err != nil {
			return nil, err
		}
		if _, exists := r.m.entries[prepared.ID]; exists {
			return nil, fmt.Errorf("%w: entry %s already exists", ErrConflict, prepared.ID)
		}
		if slices.ContainsFunc(out, func(o greenops.ActivityEntry) bool { return o.ID == prepared.ID }) {
			return nil, fmt.Errorf("%w: entry %s repeated in batch", ErrConflict, prepared.ID)
		}
		out = append(out, prepared)
	}
	for _, e := range out {
		r.m.entries[e.ID] = cloneEntry(e)
	}
	return out, nil
}

func (r memoryEntries) Update(_ context.Context, e greenops.ActivityEntry) (greenops.ActivityEntry, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	prev, ok := r.m.entries[e.ID]
	if !ok {
		return greenops.ActivityEntry{}, fmt.Errorf("entry %s: %w", e.ID, ErrNotFound)
	}
	updated, err := prepareUpdate(prev, e, r.m.now())
	if err != nil {
		return greenops.ActivityEntry{}, err
	}
	r.m.entries[e.ID] = cloneEntry(updated)
	return updated, nil
}

func (r memoryEntries) Get(_ context.Context, id string) (greenops.ActivityEntry, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	e, ok := r.m.entries[id]
	if !ok {
		return greenops.ActivityEntry{}, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return cloneEntry(e), nil
}

func (r memoryEntries) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.entries[id]; !ok {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	delete(r.m.entries, id)
	return nil
}

func (r memoryEntries) List(_ context.Context, f Filter) ([]greenops.ActivityEntry, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := make([]greenops.ActivityEntry, 0, len(r.m.entries))
	for _, e := range r.m.entries {
		if f.match(e) {
			out = append(out, cloneEntry(e))
		}
	}
	sortEntries(out)
	return out, nil
}

func (r memoryEntries) Purge(_ context.Context) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	n := len(r.m.entries)
	clear(r.m.entries)
	return n, nil
}

type memoryMetadata struct{ m *Memory }

func (r memoryMetadata) Append(_ context.Context, md metadata.CalculationMetadata) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	history := r.m.metadata[md.SubjectID]
	if err := checkAppend(history, md); err != nil {
		return err
	}
	r.m.metadata[md.SubjectID] = append(history, cloneMetadata(md))
	return nil
}

func (r memoryMetadata) Latest(_ context.Context, subjectID string) (metadata.CalculationMetadata, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	latest, ok := metadata.Latest(r.m.metadata[subjectID])
	if !ok {
		return metadata.CalculationMetadata{}, fmt.Errorf("metadata for %s: %w", subjectID, ErrNotFound)
	}
	return cloneMetadata(latest), nil
}

func (r memoryMetadata) History(_ context.Context, subjectID string) ([]metadata.CalculationMetadata, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	history := r.m.metadata[subjectID]
	if len(history) == 0 {
		return nil, fmt.Errorf("metadata for %s: %w", subjectID, ErrNotFound)
	}
	out := make([]metadata.CalculationMetadata, len(history))
	for i, md := range history {
		out[i] = cloneMetadata(md)
	}
	return out, nil
}

func (r memoryMetadata) Subjects(_ context.Context) ([]string, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := make([]string, 0, len(r.m.metadata))
	for s := range r.m.metadata {
		out = append(out, s)
	}
	slices.Sort(out)
	return out, nil
}

func cloneEntry(e greenops.ActivityEntry) greenops.ActivityEntry {
	if e.UncertaintyPercent != nil {
		v := *e.UncertaintyPercent
		e.UncertaintyPercent = &v
	}
	return e
}

func cloneMetadata(m metadata.CalculationMetadata) metadata.CalculationMetadata {
	if m.UncertaintyPercent != nil {
		v := *m.UncertaintyPercent
		m.UncertaintyPercent = &v
	}
	m.Assumptions = slices.Clone(m.Assumptions)
	return m
}
