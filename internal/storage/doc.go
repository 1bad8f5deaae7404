// Package storage provides session-scoped key/value persistence for the
// reference-data cache.
//
// A SessionStore behaves like browser sessionStorage: string values keyed by
// name, visible to one session only, and discarded when the session ends.
// Three backends are available:
//
//   - memory: in-process map with a byte quota (default 5 MB)
//   - sqlite: rows in a local database file, shared by many sessions
//   - redis:  keys under medsearch:session:<id>: with a sliding TTL
//
// # Basic Usage
//
//	store, err := storage.Open(ctx, storage.Config{
//	    Backend: storage.BackendSQLite,
//	    Path:    "~/.medsearch/session.db",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	if err := store.Set(ctx, "hh_cache_timestamp", "1700000000000"); err != nil {
//	    // ErrQuotaExceeded and backend errors are non-fatal for callers
//	}
//
//	v, err := store.Get(ctx, "hh_cache_timestamp")
//	if errors.Is(err, storage.ErrNotFound) {
//	    // never written in this session
//	}
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migrations (semantic versions)
//   - session_entries: (session_id, key) -> value, updated_at in unix ms
//
// Sessions whose newest entry is older than the session TTL are purged when
// a SQLite store is opened.
//
// # Build Tags
//
// CGO Build (sqlite_cgo tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Requires C compiler
//
//     CGO_ENABLED=1 go build -tags "sqlite_cgo"
//
// Pure Go Build (default, or purego tag):
//
//   - Uses modernc.org/sqlite driver
//
//   - No C compiler needed
//
//     CGO_ENABLED=0 go build -tags "purego"
package storage
