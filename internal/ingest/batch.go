package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rshade/greenledger/internal/greenops"
	"github.com/rshade/greenledger/internal/logging"
)

// Batch size bounds.
const (
	DefaultBatchSize = 100
	MinBatchSize     = 1
	MaxBatchSize     = 1000
)

// ErrInvalidBatchSize is returned by NewImporter for out-of-range sizes.
var ErrInvalidBatchSize = errors.New("batch size must be between 1 and 1000") //nolint:gochecknoglobals // sentinel

// EntryWriter is the part of the entry repository the importer needs.
type EntryWriter interface {
	Add(ctx context.Context, entries ...greenops.ActivityEntry) ([]greenops.ActivityEntry, error)
}

// Progress reports how far an import got.
type Progress struct {
	TotalItems       int
	ProcessedItems   int
	TotalBatches     int
	ProcessedBatches int
	StartTime        time.Time
}

// PercentComplete returns the completion percentage (0-100).
func (p Progress) PercentComplete() float64 {
	if p.TotalItems == 0 {
		return 0
	}
	return float64(p.ProcessedItems) / float64(p.TotalItems) * 100
}

// ProgressFunc is called after every committed batch.
type ProgressFunc func(Progress)

// Summary describes a finished import.
type Summary struct {
	Imported []greenops.ActivityEntry
	Batches  int
	Elapsed  time.Duration
}

// Importer writes entries through an EntryWriter in fixed-size batches. Each
// batch is atomic; a failure stops the import and leaves earlier batches in
// place.
type Importer struct {
	writer     EntryWriter
	batchSize  int
	onProgress ProgressFunc

	mu sync.Mutex
}

// NewImporter returns an importer writing batchSize entries at a time.
func NewImporter(writer EntryWriter, batchSize int) (*Importer, error) {
	if batchSize < MinBatchSize || batchSize > MaxBatchSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, batchSize)
	}
	return &Importer{writer: writer, batchSize: batchSize}, nil
}

// WithProgress sets the progress callback.
func (im *Importer) WithProgress(fn ProgressFunc) *Importer {
	im.onProgress = fn
	return im
}

// Import writes entries batch by batch, checking ctx between batches.
func (im *Importer) Import(ctx context.Context, entries []greenops.ActivityEntry) (Summary, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	log := logging.FromContext(ctx)
	bounds := batchBounds(len(entries), im.batchSize)
	progress := Progress{TotalItems: len(entries), TotalBatches: len(bounds), StartTime: time.Now()}
	summary := Summary{Imported: make([]greenops.ActivityEntry, 0, len(entries))}

	for i, b := range bounds {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = time.Since(progress.StartTime)
			return summary, err
		}

		added, err := im.writer.Add(ctx, entries[b[0]:b[1]]...)
		if err != nil {
			summary.Elapsed = time.Since(progress.StartTime)
			return summary, fmt.Errorf("batch %d failed: %w", i, err)
		}
		summary.Imported = append(summary.Imported, added...)
		summary.Batches++

		progress.ProcessedItems += len(added)
		progress.ProcessedBatches++
		if im.onProgress != nil {
			im.onProgress(progress)
		}
		log.Debug().
			Str("component", "ingest").
			Str("operation", "import").
			Int("batch", i).
			Float64("percent_complete", progress.PercentComplete()).
			Msg("batch imported")
	}

	summary.Elapsed = time.Since(progress.StartTime)
	return summary, nil
}

// batchBounds returns [start, end) pairs covering total items.
func batchBounds(total, size int) [][2]int {
	out := make([][2]int, 0, (total+size-1)/size)
	for start := 0; start < total; start += size {
		out = append(out, [2]int{start, min(start+size, total)})
	}
	return out
}
