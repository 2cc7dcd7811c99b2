package uncertainty

import (
	"fmt"
	"math"

	"github.com/rshade/greenledger/internal/greenops"
)

// Options configures ScopeBands. Zero fields select the defaults.
type Options struct {
	CoverageFactor float64
	Policy         Policy
	IncludeDrafts  bool
}

// DefaultOptions returns k = 2 with unknown sources counted as zero.
func DefaultOptions() Options {
	return Options{CoverageFactor: DefaultCoverageFactor, Policy: PolicyZero}
}

// Band is the uncertainty of one scope, all masses in kg CO2e.
type Band struct {
	Scope           greenops.Scope `json:"scope"`
	Emissions       float64        `json:"emissions_kg"`
	Standard        float64        `json:"standard_kg"`
	Expanded        float64        `json:"expanded_kg"`
	RelativePercent float64        `json:"relative_percent"`
	Lower           float64        `json:"lower_kg"`
	Upper           float64        `json:"upper_kg"`
	Unknown         []string       `json:"unknown_sources,omitempty"`
}

// Bands holds one Band per scope plus the combined total.
type Bands struct {
	CoverageFactor float64                 `json:"coverage_factor"`
	Policy         Policy                  `json:"policy"`
	Scopes         map[greenops.Scope]Band `json:"scopes"`
	Total          Band                    `json:"total"`
}

// ScopeBands computes the expanded uncertainty of each scope from the
// relative uncertainty of its entries. Sources are independent, so scope
// uncertainties combine into the total by root-sum-square as well. The lower
// bound is clamped at zero.
func ScopeBands(entries []greenops.ActivityEntry, gwp greenops.GWPTable, opts Options) (Bands, error) {
	if opts.CoverageFactor == 0 {
		opts.CoverageFactor = DefaultCoverageFactor
	}
	if opts.Policy == "" {
		opts.Policy = PolicyZero
	}
	if _, err := Expand(0, opts.CoverageFactor); err != nil {
		return Bands{}, err
	}

	totals, err := greenops.AggregateByScope(entries, gwp, greenops.AggregateOptions{IncludeDrafts: opts.IncludeDrafts})
	if err != nil {
		return Bands{}, err
	}

	out := Bands{
		CoverageFactor: opts.CoverageFactor,
		Policy:         opts.Policy,
		Scopes:         make(map[greenops.Scope]Band, len(greenops.Scopes())),
	}
	var scopeStd []float64
	var allUnknown []string
	for _, scope := range greenops.Scopes() {
		contribs, err := contributions(greenops.FilterScope(entries, scope), gwp, opts.IncludeDrafts)
		if err != nil {
			return Bands{}, err
		}
		combined, err := CombineContributions(contribs, opts.Policy)
		if err != nil {
			return Bands{}, fmt.Errorf("%s: %w", scope, err)
		}
		band := newBand(scope, totals.ForScope(scope), combined, opts.CoverageFactor)
		out.Scopes[scope] = band
		scopeStd = append(scopeStd, band.Standard)
		allUnknown = append(allUnknown, band.Unknown...)
	}

	out.Total = newBand("", totals.Total, Combined{Standard: Combine(scopeStd), Unknown: allUnknown}, opts.CoverageFactor)
	return out, nil
}

func contributions(entries []greenops.ActivityEntry, gwp greenops.GWPTable, includeDrafts bool) ([]Contribution, error) {
	out := make([]Contribution, 0, len(entries))
	for i, e := range entries {
		if e.IsDraft() && !includeDrafts {
			continue
		}
		u, known, err := e.UncertaintyKg(gwp)
		if err != nil {
			return nil, fmt.Errorf("entry %d (%s): %w", i, e.ID, err)
		}
		source := e.ID
		if source == "" {
			source = fmt.Sprintf("%s#%d", e.Scope, i)
		}
		out = append(out, Contribution{Source: source, Value: u, Known: known})
	}
	return out, nil
}

func newBand(scope greenops.Scope, emissions float64, c Combined, k float64) Band {
	expanded := k * c.Standard
	b := Band{
		Scope:     scope,
		Emissions: emissions,
		Standard:  c.Standard,
		Expanded:  expanded,
		Lower:     math.Max(0, emissions-expanded),
		Upper:     emissions + expanded,
		Unknown:   c.Unknown,
	}
	if emissions > 0 {
		b.RelativePercent = expanded / emissions * 100
	}
	return b
}
