// Package compliance measures how completely a set of activity entries covers
// the mandatory reporting categories of a carbon assessment.
package compliance

import (
	"fmt"

	"github.com/rshade/greenledger/internal/greenops"
)

// constError is an immutable error type for sentinel errors.
type constError string

func (e constError) Error() string { return string(e) }

// ErrCorruptTaxonomy is returned when a category table cannot be used for
// scoring: duplicate IDs, missing keywords or an invalid scope.
const ErrCorruptTaxonomy = constError("corrupt category taxonomy")

// Category is one mandatory reporting category.
type Category struct {
	ID       string         `json:"id"       yaml:"id"`
	Name     string         `json:"name"     yaml:"name"`
	Scope    greenops.Scope `json:"scope"    yaml:"scope"`
	Keywords []string       `json:"keywords" yaml:"keywords"`
}

// Taxonomy is an ordered, validated list of categories. Build one with
// NewTaxonomy; the zero value has no categories.
type Taxonomy struct {
	categories []Category
	matchers   []*Matcher
}

// NewTaxonomy validates categories and compiles their keyword matchers.
func NewTaxonomy(categories []Category) (*Taxonomy, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: no categories", ErrCorruptTaxonomy)
	}

	seen := make(map[string]struct{}, len(categories))
	t := &Taxonomy{
		categories: make([]Category, 0, len(categories)),
		matchers:   make([]*Matcher, 0, len(categories)),
	}
	for _, c := range categories {
		if c.ID == "" {
			return nil, fmt.Errorf("%w: category %q has no id", ErrCorruptTaxonomy, c.Name)
		}
		if _, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrCorruptTaxonomy, c.ID)
		}
		seen[c.ID] = struct{}{}
		if !c.Scope.IsValid() {
			return nil, fmt.Errorf("%w: category %q has scope %q", ErrCorruptTaxonomy, c.ID, c.Scope)
		}

		m, err := CompileMatcher(c.Scope, c.Keywords)
		if err != nil {
			return nil, fmt.Errorf("%w: category %q: %w", ErrCorruptTaxonomy, c.ID, err)
		}

		c.Keywords = append([]string(nil), c.Keywords...)
		t.categories = append(t.categories, c)
		t.matchers = append(t.matchers, m)
	}
	return t, nil
}

// MustTaxonomy is NewTaxonomy for tables fixed at compile time. It panics on
// a corrupt table.
func MustTaxonomy(categories []Category) *Taxonomy {
	t, err := NewTaxonomy(categories)
	if err != nil {
		panic(err)
	}
	return t
}

// Categories returns a copy of the categories in taxonomy order.
func (t *Taxonomy) Categories() []Category {
	out := make([]Category, len(t.categories))
	copy(out, t.categories)
	return out
}

// Len returns the number of categories.
func (t *Taxonomy) Len() int { return len(t.categories) }

// DefaultCategories returns the nine mandatory categories of a regulatory
// carbon assessment: three direct, two energy-indirect and four value-chain.
// Keywords cover French and English wording; matching ignores case and
// accents, so "électricité" and "Electricite" both match "electricite".
func DefaultCategories() []Category {
	return []Category{
		{
			ID: "heating", Name: "Chauffage", Scope: greenops.Scope1,
			Keywords: []string{"chauffage", "gaz naturel", "fioul", "fuel oil", "heating", "natural gas", "chaudiere", "boiler", "propane"},
		},
		{
			ID: "vehicle_fleet", Name: "Flotte de véhicules", Scope: greenops.Scope1,
			Keywords: []string{"flotte", "vehicule", "gasoil", "diesel", "essence", "carburant", "petrol", "gasoline", "fleet", "vehicle"},
		},
		{
			ID: "fugitive_emissions", Name: "Émissions fugitives", Scope: greenops.Scope1,
			Keywords: []string{"fugitive", "refrigerant", "frigorigene", "climatisation", "fuite", "leak", "hfc", "r134a", "r410a"},
		},
		{
			ID: "electricity", Name: "Électricité", Scope: greenops.Scope2,
			Keywords: []string{"electricite", "electricity", "kwh", "power"},
		},
		{
			ID: "district_heating", Name: "Réseau de chaleur/froid", Scope: greenops.Scope2,
			Keywords: []string{"reseau de chaleur", "reseau de froid", "district heating", "district cooling", "vapeur", "steam"},
		},
		{
			ID: "purchases", Name: "Achats de biens et services", Scope: greenops.Scope3,
			Keywords: []string{"achat", "purchase", "fourniture", "supplies", "materiel", "equipment", "service"},
		},
		{
			ID: "waste", Name: "Déchets", Scope: greenops.Scope3,
			Keywords: []string{"dechet", "waste", "recyclage", "recycling", "ordures", "landfill"},
		},
		{
			ID: "business_travel", Name: "Déplacements professionnels", Scope: greenops.Scope3,
			Keywords: []string{"deplacement", "voyage", "business travel", "avion", "flight", "train", "hotel", "taxi"},
		},
		{
			ID: "freight", Name: "Transport de marchandises", Scope: greenops.Scope3,
			Keywords: []string{"fret", "freight", "transport de marchandises", "livraison", "delivery", "logistique", "logistics", "shipping"},
		},
	}
}

// DefaultTaxonomy returns the compiled default category table.
func DefaultTaxonomy() *Taxonomy {
	return MustTaxonomy(DefaultCategories())
}
