package compliance

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rshade/greenledger/internal/greenops"
)

// errNoKeywords is wrapped into ErrCorruptTaxonomy by NewTaxonomy.
var errNoKeywords = errors.New("no usable keywords")

// Matcher decides whether an entry belongs to a category. Keywords are folded
// once at compile time; entry text is folded on every call.
type Matcher struct {
	scope    greenops.Scope
	keywords []string
}

// CompileMatcher folds keywords and drops blanks. It fails when nothing is left.
func CompileMatcher(scope greenops.Scope, keywords []string) (*Matcher, error) {
	m := &Matcher{scope: scope}
	for _, k := range keywords {
		folded := Fold(k)
		if folded == "" {
			continue
		}
		m.keywords = append(m.keywords, folded)
	}
	if len(m.keywords) == 0 {
		return nil, errNoKeywords
	}
	return m, nil
}

// MatchedKeyword returns the first keyword found in the entry text, or ""
// when the entry does not qualify.
//
// An entry qualifies when it is validated (drafts never count), belongs to
// the matcher scope, has strictly positive emissions and its text contains a
// keyword. A keyword hit with zero emissions does not qualify.
func (m *Matcher) MatchedKeyword(e greenops.ActivityEntry) string {
	if e.IsDraft() || e.Scope != m.scope || e.Emissions() <= 0 {
		return ""
	}
	text := Fold(entryText(e))
	for _, k := range m.keywords {
		if strings.Contains(text, k) {
			return k
		}
	}
	return ""
}

// Match reports whether the entry qualifies for the category.
func (m *Matcher) Match(e greenops.ActivityEntry) bool {
	return m.MatchedKeyword(e) != ""
}

// entryText joins the free-text fields used for keyword matching.
func entryText(e greenops.ActivityEntry) string {
	return strings.Join([]string{e.Type, e.Description, e.FormulaDetail, e.Category, e.Subcategory}, " ")
}

// Fold lower-cases s with Unicode case folding and strips diacritics, so
// "Électricité" and "electricite" compare equal. Runs of whitespace become a
// single space.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), cases.Fold(), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(folded), " ")
}
