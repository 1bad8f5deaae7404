package searcher

import (
	"sort"

	"github.com/dshills/medsearch-mcp/pkg/types"
)

// RankOptions controls how scored records are filtered and ordered
type RankOptions struct {
	// KeepUnmatched retains zero-scored records (sorted last) instead of
	// dropping them
	KeepUnmatched bool

	// PreferStandalone breaks score ties in favor of records that are not
	// package components (no parent_service_id)
	PreferStandalone bool

	// Limit caps the number of ranked records returned (0 = no limit)
	Limit int
}

// Rank scores every record against query and returns them sorted by
// descending score. Equal scores keep their input order.
func Rank(records []types.ServiceRecord, query string, opts RankOptions) []types.ScoredRecord {
	scored := make([]types.ScoredRecord, 0, len(records))
	for _, rec := range records {
		score := Score(rec, query)
		if score == 0 && !opts.KeepUnmatched {
			continue
		}
		scored = append(scored, types.ScoredRecord{
			ServiceRecord:  rec,
			RelevanceScore: score,
		})
	}

	sortScored(scored, opts.PreferStandalone)

	if opts.Limit > 0 && len(scored) > opts.Limit {
		scored = scored[:opts.Limit]
	}

	for i := range scored {
		scored[i].Rank = i + 1
	}

	return scored
}

// sortScored sorts by score (descending), optionally preferring standalone
// records on ties. The sort is stable.
func sortScored(scored []types.ScoredRecord, preferStandalone bool) {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].RelevanceScore != scored[j].RelevanceScore {
			return scored[i].RelevanceScore > scored[j].RelevanceScore
		}
		if preferStandalone {
			return !scored[i].IsComponent() && scored[j].IsComponent()
		}
		return false
	})
}

// Partition splits search candidates into packages and individual tests.
// Custom bundles are listed with packages. Package components (packages with
// a parent) and unknown types are dropped.
func Partition(records []types.ServiceRecord) (packages, tests []types.ServiceRecord) {
	packages = make([]types.ServiceRecord, 0)
	tests = make([]types.ServiceRecord, 0)

	for _, rec := range records {
		switch {
		case rec.IsPackage() && !rec.IsComponent():
			packages = append(packages, rec)
		case rec.ServiceType == types.ServiceTypeCustomBundle:
			packages = append(packages, rec)
		case rec.IsIndividualTest():
			tests = append(tests, rec)
		}
	}

	return packages, tests
}

// serverRanked wraps records already ordered by the API. Relevance scores are
// computed for display only; the server's order is kept.
func serverRanked(records []types.ServiceRecord, query string) []types.ScoredRecord {
	ranked := make([]types.ScoredRecord, len(records))
	for i, rec := range records {
		ranked[i] = types.ScoredRecord{
			ServiceRecord:  rec,
			RelevanceScore: Score(rec, query),
			Rank:           i + 1,
		}
	}
	return ranked
}
