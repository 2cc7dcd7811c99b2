package compliance

import (
	"math"

	"github.com/rshade/greenledger/internal/greenops"
)

// Evidence names the first entry that filled a category.
type Evidence struct {
	CategoryID string `json:"category_id"`
	EntryID    string `json:"entry_id"`
	Keyword    string `json:"keyword"`
}

// Result is the completeness of an entry set against a taxonomy.
type Result struct {
	Score             int        `json:"score"`
	FilledCount       int        `json:"filled_count"`
	TotalCount        int        `json:"total_count"`
	FilledCategories  []Category `json:"filled_categories"`
	MissingCategories []Category `json:"missing_categories"`
	Evidence          []Evidence `json:"evidence,omitempty"`
	FullyCompliant    bool       `json:"fully_compliant"`
}

// Evaluate scores entries against the taxonomy.
//
// Score is round(filled/total × 100). Category lists follow taxonomy order and
// evidence cites the earliest qualifying entry by ID, so the result is the
// same for any ordering of entries. Evaluate reads entries and never
// modifies them.
func Evaluate(t *Taxonomy, entries []greenops.ActivityEntry) Result {
	res := Result{
		TotalCount:        t.Len(),
		FilledCategories:  []Category{},
		MissingCategories: []Category{},
	}

	for i, c := range t.categories {
		ev, ok := firstMatch(t.matchers[i], entries)
		if !ok {
			res.MissingCategories = append(res.MissingCategories, c)
			continue
		}
		ev.CategoryID = c.ID
		res.FilledCategories = append(res.FilledCategories, c)
		res.Evidence = append(res.Evidence, ev)
	}

	res.FilledCount = len(res.FilledCategories)
	if res.TotalCount > 0 {
		res.Score = int(math.Round(float64(res.FilledCount) / float64(res.TotalCount) * 100))
	}
	res.FullyCompliant = res.TotalCount > 0 && res.FilledCount == res.TotalCount
	return res
}

// firstMatch returns the qualifying entry with the smallest ID.
func firstMatch(m *Matcher, entries []greenops.ActivityEntry) (Evidence, bool) {
	var best Evidence
	found := false
	for _, e := range entries {
		kw := m.MatchedKeyword(e)
		if kw == "" {
			continue
		}
		if !found || e.ID < best.EntryID || (e.ID == best.EntryID && kw < best.Keyword) {
			best = Evidence{EntryID: e.ID, Keyword: kw}
			found = true
		}
	}
	return best, found
}

// CategoryIDs returns the IDs of categories, preserving order.
func CategoryIDs(categories []Category) []string {
	ids := make([]string, len(categories))
	for i, c := range categories {
		ids[i] = c.ID
	}
	return ids
}
