package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/rshade/greenledger/internal/greenops"
)

// Snapshot is an immutable copy of the entry set one compute pass works on.
type Snapshot struct {
	entries []greenops.ActivityEntry
	digest  string
}

// NewSnapshot copies entries and hashes their content. The digest does not
// depend on entry order, nor on the bookkeeping timestamps.
func NewSnapshot(entries []greenops.ActivityEntry) Snapshot {
	copied := make([]greenops.ActivityEntry, len(entries))
	for i, e := range entries {
		if e.UncertaintyPercent != nil {
			u := *e.UncertaintyPercent
			e.UncertaintyPercent = &u
		}
		copied[i] = e
	}
	return Snapshot{entries: copied, digest: digestEntries(copied)}
}

// Entries returns a copy of the snapshot entries.
func (s Snapshot) Entries() []greenops.ActivityEntry {
	return slices.Clone(s.entries)
}

// Len returns the number of entries.
func (s Snapshot) Len() int { return len(s.entries) }

// Digest returns the content digest.
func (s Snapshot) Digest() string { return s.digest }

func digestEntries(entries []greenops.ActivityEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		e.CreatedAt, e.UpdatedAt = zeroTime, zeroTime
		data, err := json.Marshal(e)
		if err != nil {
			// A non-finite number is the only input Marshal rejects; hash its
			// textual form so the digest still changes with it.
			data = fmt.Appendf(nil, "%#v", e)
		}
		lines = append(lines, string(data))
	}
	slices.Sort(lines)
	return hashString(strings.Join(lines, "\n"))
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return "sha256:" + hex.EncodeToString(h[:])
}
