package searcher

import (
	"context"
	"sync"
)

type sessionKey struct{}

// WithSession scopes request sequencing to session. Requests from different
// sessions never supersede each other; an empty session is shared.
func WithSession(ctx context.Context, session string) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the session set by WithSession, or ""
func SessionFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(sessionKey{}).(string); ok {
		return s
	}
	return ""
}

// Sequencer hands out monotonic request tokens per logical operation and
// session so that only the most recently issued request's response is
// accepted.
type Sequencer struct {
	mu      sync.Mutex
	counter uint64
	latest  map[string]uint64
}

// NewSequencer creates an empty sequencer
func NewSequencer() *Sequencer {
	return &Sequencer{latest: make(map[string]uint64)}
}

func sequenceKey(op, session string) string {
	return op + ":" + session
}

// Next issues a new token for op within session, superseding every earlier
// token for the same pair. Tokens are unique across all pairs.
func (s *Sequencer) Next(op, session string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	s.latest[sequenceKey(op, session)] = s.counter
	return s.counter
}

// IsLatest reports whether token is still the newest issued for op within
// session
func (s *Sequencer) IsLatest(op, session string, token uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest[sequenceKey(op, session)] == token
}

// Done releases the entry for op within session if token is still the
// newest, keeping the table bounded by the number of requests in flight
func (s *Sequencer) Done(op, session string, token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sequenceKey(op, session)
	if s.latest[key] == token {
		delete(s.latest, key)
	}
}

// Len returns the number of tracked operation/session pairs
func (s *Sequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.latest)
}
