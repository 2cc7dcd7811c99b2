package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/logging"
	"github.com/rshade/greenledger/internal/store"
)

// EntrySource lists the entries a report is computed from.
type EntrySource interface {
	List(ctx context.Context, filter store.Filter) ([]greenops.ActivityEntry, error)
}

// Listener receives a report after each recompute that changed it.
type Listener func(Report)

// Tracker keeps the latest report of an entry source. Consumers call
// Recompute when they know the entries or parameters changed and Subscribe
// to hear about new reports; there is no polling.
//
// Concurrent Recompute calls over the same inputs share one pass. A pass
// over the same entries and parameters as the previous one returns the
// cached report and notifies nobody.
type Tracker struct {
	engine *Engine
	source EntrySource
	group  singleflight.Group

	mu         sync.Mutex
	params     Params
	latest     *Report
	listeners  map[int]Listener
	nextID     int
	listSeq    uint64
	appliedSeq uint64
}

// NewTracker returns a tracker with no report yet.
func NewTracker(engine *Engine, source EntrySource, params Params) *Tracker {
	return &Tracker{
		engine:    engine,
		source:    source,
		params:    cloneParams(params),
		listeners: make(map[int]Listener),
	}
}

// SetParams replaces the organisation parameters. It takes effect on the
// next Recompute.
func (t *Tracker) SetParams(p Params) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.params = cloneParams(p)
}

// Params returns the current parameters.
func (t *Tracker) Params() Params {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneParams(t.params)
}

// Subscribe registers fn and returns the function that removes it.
func (t *Tracker) Subscribe(fn Listener) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.listeners, id)
	}
}

// Latest returns the last computed report.
func (t *Tracker) Latest() (Report, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		return Report{}, false
	}
	return *t.latest, true
}

// Recompute reads the source, computes a report and notifies listeners when
// it differs from the previous one. changed is false when the input digest
// matched the cached report.
//
// Every call lists the source itself; only callers that read identical
// inputs share a pass. A pass over an older listing never replaces the
// report of a newer one.
func (t *Tracker) Recompute(ctx context.Context) (Report, bool, error) {
	type outcome struct {
		report  Report
		changed bool
	}

	t.mu.Lock()
	t.listSeq++
	seq := t.listSeq
	t.mu.Unlock()

	entries, err := t.source.List(ctx, store.Filter{})
	if err != nil {
		return Report{}, false, fmt.Errorf("listing entries: %w", err)
	}
	params := t.Params()
	digest := InputDigest(NewSnapshot(entries), params)

	v, err, _ := t.group.Do(digest, func() (any, error) {
		report, changed, err := t.recompute(ctx, seq, entries, params, digest)
		return outcome{report: report, changed: changed}, err
	})
	if err != nil {
		return Report{}, false, err
	}
	out, _ := v.(outcome)
	return out.report, out.changed, nil
}

func (t *Tracker) recompute(
	ctx context.Context,
	seq uint64,
	entries []greenops.ActivityEntry,
	params Params,
	digest string,
) (Report, bool, error) {
	log := logging.FromContext(ctx)

	t.mu.Lock()
	if t.latest != nil && t.latest.InputDigest == digest {
		cached := *t.latest
		t.mu.Unlock()
		log.Debug().
			Str("component", "engine").
			Str("operation", "recompute").
			Str("input_digest", digest).
			Msg("inputs unchanged, keeping report")
		return cached, false, nil
	}
	t.mu.Unlock()

	report, err := t.engine.Compute(ctx, Input{Params: params, Entries: entries})
	if err != nil {
		return Report{}, false, err
	}

	t.mu.Lock()
	if seq < t.appliedSeq {
		t.mu.Unlock()
		log.Debug().
			Str("component", "engine").
			Str("operation", "recompute").
			Str("input_digest", digest).
			Msg("newer report already published, dropping stale pass")
		return report, false, nil
	}
	t.appliedSeq = seq
	t.latest = &report
	listeners := make([]Listener, 0, len(t.listeners))
	for _, id := range sortedKeys(t.listeners) {
		listeners = append(listeners, t.listeners[id])
	}
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(report)
	}
	log.Debug().
		Str("component", "engine").
		Str("operation", "recompute").
		Str("input_digest", digest).
		Int("listener_count", len(listeners)).
		Msg("report updated")
	return report, true, nil
}

func cloneParams(p Params) Params {
	out := p
	if p.RevenueK != nil {
		r := *p.RevenueK
		out.RevenueK = &r
	}
	out.Indicators = maps.Clone(p.Indicators)
	return out
}

func sortedKeys(m map[int]Listener) []int {
	return slices.Sorted(maps.Keys(m))
}
