package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a key is absent from the store
	ErrNotFound = errors.New("not found")
	// ErrQuotaExceeded is returned when a write would exceed the store's size limit
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrClosed is returned when the session store has been closed
	ErrClosed = errors.New("session store closed")
)

// SessionStore is a session-scoped string key/value store. Values written
// through one store are visible only to that session and are discarded when
// the session ends (Close).
type SessionStore interface {
	// Get returns the value for key, or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error

	// Remove deletes key; removing an absent key is not an error
	Remove(ctx context.Context, key string) error

	// Close ends the session, discarding its keys, and releases resources
	Close() error
}

// Backend names a SessionStore implementation
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendSQLite Backend = "sqlite"
	BackendRedis  Backend = "redis"
)

// Defaults
const (
	DefaultSessionTTL = 12 * time.Hour
	DefaultQuotaBytes = 5 * 1024 * 1024 // browser sessionStorage quota
)

// Config selects and configures a SessionStore backend
type Config struct {
	Backend    Backend
	SessionID  string        // Generated when empty
	Path       string        // SQLite database file
	RedisURL   string        // redis://... URL or host:port
	SessionTTL time.Duration // Idle sessions older than this are discarded
	QuotaBytes int           // Memory backend size limit (0 = DefaultQuotaBytes, <0 = unlimited)
}

// NewSessionID returns a fresh random session id
func NewSessionID() string {
	return uuid.NewString()
}

// Open creates the SessionStore selected by cfg
func Open(ctx context.Context, cfg Config) (SessionStore, error) {
	if cfg.SessionID == "" {
		cfg.SessionID = NewSessionID()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}

	switch Backend(strings.ToLower(string(cfg.Backend))) {
	case BackendMemory, "":
		quota := cfg.QuotaBytes
		if quota == 0 {
			quota = DefaultQuotaBytes
		}
		return NewMemoryStore(quota), nil
	case BackendSQLite:
		store, err := NewSQLiteStore(ctx, cfg.Path, cfg.SessionID, cfg.SessionTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite session store: %w", err)
		}
		return store, nil
	case BackendRedis:
		client, err := Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return NewRedisStore(client, cfg.SessionID, cfg.SessionTTL), nil
	default:
		return nil, fmt.Errorf("unknown session store backend %q", cfg.Backend)
	}
}
