package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/medsearch-mcp/internal/storage"
	"github.com/dshills/medsearch-mcp/pkg/types"
)

// Defaults
const (
	DefaultTTL          = 30 * time.Minute
	DefaultFetchTimeout = 5 * time.Second
)

// State is the reference cache lifecycle state
type State string

const (
	StateEmpty State = "EMPTY" // never initialized, or cleared
	StateFresh State = "FRESH" // timestamp within the TTL
	StateStale State = "STALE" // timestamp older than the TTL
)

// ReferenceSource fetches the four reference datasets from the remote API
type ReferenceSource interface {
	ClinicalPathways(ctx context.Context) ([]types.PathwayRecord, error)
	CanonicalServices(ctx context.Context) ([]types.CanonicalService, error)
	PopularServices(ctx context.Context) ([]types.ServiceRecord, error)
	Providers(ctx context.Context) ([]types.Provider, error)
}

// Snapshot holds the reference datasets returned by Initialize. Lists are
// never nil. A Snapshot may be shared between concurrent callers and must be
// treated as read-only.
type Snapshot struct {
	Pathways          []types.PathwayRecord    `json:"pathways"`
	CanonicalServices []types.CanonicalService `json:"canonicalServices"`
	PopularServices   []types.ServiceRecord    `json:"popularServices"`
	Providers         []types.Provider         `json:"providers"`
	FromCache         bool                     `json:"fromCache"`
}

// Dataset returns one dataset of the snapshot by short name or store key,
// with its length
func (s *Snapshot) Dataset(name string) (data any, count int, ok bool) {
	key, ok := DatasetKey(name)
	if !ok {
		return nil, 0, false
	}
	switch key {
	case KeyPathways:
		return s.Pathways, len(s.Pathways), true
	case KeyCanonicalServices:
		return s.CanonicalServices, len(s.CanonicalServices), true
	case KeyPopularServices:
		return s.PopularServices, len(s.PopularServices), true
	default:
		return s.Providers, len(s.Providers), true
	}
}

// Status describes the reference cache for diagnostics
type Status struct {
	State     State          `json:"state"`
	UpdatedAt *time.Time     `json:"updated_at,omitempty"`
	Age       string         `json:"age,omitempty"`
	TTL       string         `json:"ttl"`
	Datasets  map[string]int `json:"datasets"`
}

// Options configures a Manager. Zero values select the defaults.
type Options struct {
	TTL          time.Duration
	FetchTimeout time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
}

// Manager is a two-tier cache for the reference datasets: an in-memory map
// in front of a session store. All datasets share one global timestamp and
// expire together. The Manager never returns errors; fetch and storage
// failures are logged and degrade to empty lists or memory-only caching.
type Manager struct {
	source       ReferenceSource
	store        storage.SessionStore
	ttl          time.Duration
	fetchTimeout time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu     sync.RWMutex
	memory map[string]any

	flight singleflight.Group
}

// NewManager creates a Manager reading from source and persisting to store.
// A nil store selects an in-process MemoryStore.
func NewManager(source ReferenceSource, store storage.SessionStore, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if store == nil {
		store = storage.NewMemoryStore(storage.DefaultQuotaBytes)
	}

	return &Manager{
		source:       source,
		store:        store,
		ttl:          opts.TTL,
		fetchTimeout: opts.FetchTimeout,
		logger:       opts.Logger.With("component", "cache"),
		now:          opts.Now,
		memory:       make(map[string]any),
	}
}

// TTL returns the reference cache lifetime
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Initialize returns the reference datasets. Unless forceRefresh is set and
// while the cache is fresh, the datasets are served from the cache.
// Otherwise all four are fetched concurrently; each failed fetch yields an
// empty list and leaves that dataset's cached copy untouched. The global
// timestamp is rewritten after every fetch round, even a fully failed one.
//
// Concurrent calls with the same forceRefresh share one fetch round.
func (m *Manager) Initialize(ctx context.Context, forceRefresh bool) *Snapshot {
	if !forceRefresh && m.isValid(ctx) {
		m.logger.Debug("using cached reference data")
		return &Snapshot{
			Pathways:          m.Pathways(ctx),
			CanonicalServices: m.CanonicalServices(ctx),
			PopularServices:   m.PopularServices(ctx),
			Providers:         m.Providers(ctx),
			FromCache:         true,
		}
	}

	key := "initialize"
	if forceRefresh {
		key = "initialize:force"
	}

	// The shared round must not die with the first caller's context
	shared := context.WithoutCancel(ctx)
	v, _, _ := m.flight.Do(key, func() (interface{}, error) {
		return m.refresh(shared), nil
	})
	return v.(*Snapshot)
}

// refresh fetches all four datasets concurrently
func (m *Manager) refresh(ctx context.Context) *Snapshot {
	startTime := time.Now()
	m.logger.Info("fetching reference data")

	snap := &Snapshot{}
	var g errgroup.Group

	g.Go(func() error {
		snap.Pathways = fetchDataset(ctx, m, KeyPathways, m.source.ClinicalPathways)
		return nil
	})
	g.Go(func() error {
		snap.CanonicalServices = fetchDataset(ctx, m, KeyCanonicalServices, m.source.CanonicalServices)
		return nil
	})
	g.Go(func() error {
		snap.PopularServices = fetchDataset(ctx, m, KeyPopularServices, m.source.PopularServices)
		return nil
	})
	g.Go(func() error {
		snap.Providers = fetchDataset(ctx, m, KeyProviders, m.source.Providers)
		return nil
	})
	_ = g.Wait()

	m.writeTimestamp(ctx, m.now())

	m.logger.Info("reference data refreshed",
		"pathways", len(snap.Pathways),
		"canonical_services", len(snap.CanonicalServices),
		"popular_services", len(snap.PopularServices),
		"providers", len(snap.Providers),
		"duration", time.Since(startTime),
	)
	return snap
}

// fetchDataset runs one fetch under the per-fetch timeout and caches the
// result on success
func fetchDataset[T any](ctx context.Context, m *Manager, key string, fetch func(context.Context) ([]T, error)) []T {
	fctx, cancel := context.WithTimeout(ctx, m.fetchTimeout)
	defer cancel()

	data, err := fetch(fctx)
	if err != nil {
		m.logger.Warn("reference fetch failed", "dataset", key, "error", err)
		return []T{}
	}
	if data == nil {
		data = []T{}
	}
	m.Save(ctx, key, data)
	return data
}

// Get returns the dataset stored under key, checking memory first and then
// the session store. A missing or undecodable entry yields an empty list.
func Get[T any](ctx context.Context, m *Manager, key string) []T {
	m.mu.RLock()
	v, ok := m.memory[key]
	m.mu.RUnlock()
	if ok {
		if typed, ok := v.([]T); ok {
			return typed
		}
		// Saved with another shape; memory stays authoritative, so convert
		// it rather than reading a store copy that may never have been written
		converted, err := convert[T](v)
		if err == nil {
			m.mu.Lock()
			m.memory[key] = converted
			m.mu.Unlock()
			return converted
		}
		m.logger.Warn("cache entry has unexpected shape", "key", key, "error", err)
	}

	raw, err := m.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn("cache read failed", "key", key, "error", err)
		}
		return []T{}
	}

	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		m.logger.Warn("cache entry corrupt, ignoring", "key", key, "error", err)
		return []T{}
	}
	if out == nil {
		out = []T{}
	}

	m.mu.Lock()
	m.memory[key] = out
	m.mu.Unlock()
	return out
}

// convert re-decodes v as []T through its JSON form
func convert[T any](v any) ([]T, error) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// Save writes data to the memory tier and, best effort, to the session
// store. A store failure leaves the key memory-only.
func (m *Manager) Save(ctx context.Context, key string, data any) {
	m.mu.Lock()
	m.memory[key] = data
	m.mu.Unlock()

	encoded, err := json.Marshal(data)
	if err != nil {
		m.logger.Warn("cache write failed", "key", key, "error", err)
		return
	}
	if err := m.store.Set(ctx, key, string(encoded)); err != nil {
		m.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// Clear removes the four datasets and the timestamp from both tiers
func (m *Manager) Clear(ctx context.Context) {
	keys := append(append([]string{}, DatasetKeys...), KeyTimestamp)

	m.mu.Lock()
	for _, key := range keys {
		delete(m.memory, key)
	}
	m.mu.Unlock()

	for _, key := range keys {
		if err := m.store.Remove(ctx, key); err != nil {
			m.logger.Warn("cache remove failed", "key", key, "error", err)
		}
	}
}

// State reports whether the reference cache is empty, fresh or stale
func (m *Manager) State(ctx context.Context) State {
	ts, ok := m.timestamp(ctx)
	if !ok {
		return StateEmpty
	}
	if m.now().Sub(ts) < m.ttl {
		return StateFresh
	}
	return StateStale
}

// Status reports the cache state and dataset sizes
func (m *Manager) Status(ctx context.Context) Status {
	st := Status{
		State: m.State(ctx),
		TTL:   m.ttl.String(),
		Datasets: map[string]int{
			"pathways":           len(m.Pathways(ctx)),
			"canonical_services": len(m.CanonicalServices(ctx)),
			"popular_services":   len(m.PopularServices(ctx)),
			"providers":          len(m.Providers(ctx)),
		},
	}
	if ts, ok := m.timestamp(ctx); ok {
		st.UpdatedAt = &ts
		st.Age = m.now().Sub(ts).Truncate(time.Second).String()
	}
	return st
}

func (m *Manager) isValid(ctx context.Context) bool {
	return m.State(ctx) == StateFresh
}

// timestamp reads the global timestamp, memory tier first, then the session
// store
func (m *Manager) timestamp(ctx context.Context) (time.Time, bool) {
	m.mu.RLock()
	raw, ok := m.memory[KeyTimestamp].(string)
	m.mu.RUnlock()

	if !ok {
		var err error
		raw, err = m.store.Get(ctx, KeyTimestamp)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				m.logger.Warn("cache read failed", "key", KeyTimestamp, "error", err)
			}
			return time.Time{}, false
		}
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func (m *Manager) writeTimestamp(ctx context.Context, t time.Time) {
	raw := strconv.FormatInt(t.UnixMilli(), 10)

	m.mu.Lock()
	m.memory[KeyTimestamp] = raw
	m.mu.Unlock()

	if err := m.store.Set(ctx, KeyTimestamp, raw); err != nil {
		m.logger.Warn("cache write failed", "key", KeyTimestamp, "error", err)
	}
}

// Pathways returns the cached clinical pathways
func (m *Manager) Pathways(ctx context.Context) []types.PathwayRecord {
	return Get[types.PathwayRecord](ctx, m, KeyPathways)
}

// CanonicalServices returns the cached canonical services
func (m *Manager) CanonicalServices(ctx context.Context) []types.CanonicalService {
	return Get[types.CanonicalService](ctx, m, KeyCanonicalServices)
}

// PopularServices returns the cached popular services
func (m *Manager) PopularServices(ctx context.Context) []types.ServiceRecord {
	return Get[types.ServiceRecord](ctx, m, KeyPopularServices)
}

// Providers returns the cached providers
func (m *Manager) Providers(ctx context.Context) []types.Provider {
	return Get[types.Provider](ctx, m, KeyProviders)
}

// Dataset returns a reference dataset by short name or store key, as a
// JSON-friendly value
func (m *Manager) Dataset(ctx context.Context, name string) (any, bool) {
	key, ok := DatasetKey(name)
	if !ok {
		return nil, false
	}
	switch key {
	case KeyPathways:
		return m.Pathways(ctx), true
	case KeyCanonicalServices:
		return m.CanonicalServices(ctx), true
	case KeyPopularServices:
		return m.PopularServices(ctx), true
	default:
		return m.Providers(ctx), true
	}
}
