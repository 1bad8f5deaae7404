// Package searcher ranks medical tests and packages returned by the remote
// search API.
//
// The remote /search endpoint returns a loose superset of candidates. The
// searcher partitions them into packages and individual tests, scores each
// against the query and returns both lists ranked independently.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(client, searcher.Options{})
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    Query:    "xét nghiệm máu",
//	    Limit:    10,
//	    UseCache: true,
//	})
//
//	for _, r := range resp.Tests {
//	    fmt.Printf("[%d] %s (score: %d)\n", r.Rank, r.Name, r.RelevanceScore)
//	}
//
// # Scoring
//
// Query and record text are normalized first (lowercase, accents stripped),
// so "xet nghiem" matches "Xét nghiệm". Exactly one tier applies:
//
//	100  normalized name equals the query
//	 80  name starts with the query
//	 60  query appears as a phrase inside the name
//	 40  every query word appears in the name (+10 if they sit close together)
//	 20  every query word appears in the description only
//	  5  some query words appear anywhere (no bonuses)
//	  0  nothing matches; the record is dropped
//
// Then +10 for packages, +5 per query word found as a whole word in the name
// and -5 for names over 100 characters. Query words shorter than three
// characters are ignored for word matching.
//
// Equal scores keep the server's order. With PreferStandalone, standalone
// tests rank above package components on ties.
//
// # Unified Search
//
// UnifiedSearch calls the /v2/search endpoint, which ranks results itself and
// parses locations out of the query. Its order is kept. When the endpoint is
// unavailable the searcher falls back to Search.
//
// # Caching
//
// Raw candidates are cached per query for five minutes in a FIFO cache of 20
// entries, so the same query with different ranking options does not refetch.
// Smart-search responses are cached per query, pathway and patient filters.
// Suggestions use a small LRU.
//
// # Stale Responses
//
// Each operation carries a monotonic token. A response that arrives after a
// newer request of the same kind was issued returns ErrSuperseded instead of
// overwriting fresher results.
//
// # Degradation
//
// Network failures never surface as errors from Search, Suggest or
// SmartSearch. They return empty results, flagged Degraded where the
// response type has the field. Failures are never cached.
package searcher
