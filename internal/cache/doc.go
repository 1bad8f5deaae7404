// Package cache provides the session cache for reference data and query
// results.
//
// Two independent families are kept:
//
//   - Reference cache (Manager): pathways, canonical services, popular
//     services and providers. One global timestamp covers all four and
//     expires after the TTL (30 minutes by default). Values live in an
//     in-memory map and are mirrored, best effort, to a storage.SessionStore.
//   - Query cache (QueryCache): a FIFO map bounded to 20 entries. Each entry
//     carries its own timestamp and the caller decides when it is stale.
//
// # Reference cache states
//
//	EMPTY --Initialize--> FRESH --TTL elapses--> STALE --Initialize--> FRESH
//	FRESH --Initialize(force)--> FRESH
//
// # Usage
//
//	mgr := cache.NewManager(apiClient, store, cache.Options{})
//	snap := mgr.Initialize(ctx, false)
//	for category, pathways := range types.GroupPathways(snap.Pathways) {
//	    ...
//	}
//
//	providers := mgr.Providers(ctx) // memory first, then store
package cache
