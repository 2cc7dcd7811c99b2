package greenops

import (
	"fmt"
	"slices"
)

// AggregateOptions tunes AggregateByScope.
type AggregateOptions struct {
	// IncludeDrafts counts entries still awaiting validation.
	IncludeDrafts bool
}

// AggregateByScope sums the CO2e of entries per scope.
//
// The result is independent of entry order: per-scope contributions are
// summed in ascending order, so any permutation of the input produces
// bit-identical totals. An empty input yields all-zero totals. Total is
// always Scope1 + Scope2 + Scope3. The first invalid entry aborts the
// aggregation with an error naming its position and ID.
func AggregateByScope(entries []ActivityEntry, gwp GWPTable, opts ...AggregateOptions) (ScopeTotals, error) {
	var opt AggregateOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	totals := ScopeTotals{
		ByGas:      make(map[Gas]float64),
		EntryCount: make(map[Scope]int, len(Scopes())),
	}
	perScope := make(map[Scope][]float64, len(Scopes()))
	perGas := make(map[Gas][]float64)

	for i, e := range entries {
		if e.IsDraft() && !opt.IncludeDrafts {
			continue
		}
		if err := e.Validate(); err != nil {
			return ScopeTotals{}, fmt.Errorf("entry %d (%s): %w", i, e.ID, err)
		}
		co2e, err := e.CO2eKg(gwp)
		if err != nil {
			return ScopeTotals{}, fmt.Errorf("entry %d (%s): %w", i, e.ID, err)
		}

		perScope[e.Scope] = append(perScope[e.Scope], co2e)
		perGas[e.EffectiveGas()] = append(perGas[e.EffectiveGas()], co2e)
		totals.EntryCount[e.Scope]++
	}

	totals.Scope1 = sortedSum(perScope[Scope1])
	totals.Scope2 = sortedSum(perScope[Scope2])
	totals.Scope3 = sortedSum(perScope[Scope3])
	for g, values := range perGas {
		totals.ByGas[g] = sortedSum(values)
	}
	totals.Total = totals.Scope1 + totals.Scope2 + totals.Scope3
	return totals, nil
}

// FilterScope returns the entries of one scope, preserving order.
func FilterScope(entries []ActivityEntry, scope Scope) []ActivityEntry {
	var out []ActivityEntry
	for _, e := range entries {
		if e.Scope == scope {
			out = append(out, e)
		}
	}
	return out
}

// sortedSum adds values in ascending order so the result does not depend on
// the order the caller supplied them in.
func sortedSum(values []float64) float64 {
	slices.Sort(values)
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum
}
