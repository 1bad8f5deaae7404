package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// SQLiteStore implements SessionStore on a SQLite database. Several sessions
// may share one database file; each store only sees its own session's rows.
type SQLiteStore struct {
	db        *sql.DB
	sessionID string
	now       func() time.Time

	closeOnce sync.Once
	closeErr  error
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and binds
// the store to sessionID. Sessions idle for longer than sessionTTL are
// purged on open.
func NewSQLiteStore(ctx context.Context, dbPath, sessionID string, sessionTTL time.Duration) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &SQLiteStore{
		db:        db,
		sessionID: sessionID,
		now:       time.Now,
	}

	if sessionTTL > 0 {
		if _, err := s.PurgeIdleSessions(ctx, sessionTTL); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return s, nil
}

// SessionID returns the session this store is bound to
func (s *SQLiteStore) SessionID() string {
	return s.sessionID
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM session_entries WHERE session_id = ? AND key = ?",
		s.sessionID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO session_entries (session_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, s.sessionID, key, value, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM session_entries WHERE session_id = ? AND key = ?",
		s.sessionID, key,
	)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// Keys lists the keys stored for this session
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key FROM session_entries WHERE session_id = ? ORDER BY key",
		s.sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// PurgeIdleSessions deletes every session (including other sessions sharing
// the file) whose newest entry is older than maxIdle
func (s *SQLiteStore) PurgeIdleSessions(ctx context.Context, maxIdle time.Duration) (int64, error) {
	cutoff := s.now().Add(-maxIdle).UnixMilli()
	query := `
		DELETE FROM session_entries WHERE session_id IN (
			SELECT session_id FROM session_entries
			GROUP BY session_id
			HAVING MAX(updated_at) < ?
		)
	`
	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge idle sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close discards this session's entries and closes the database
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() {
		_, delErr := s.db.Exec("DELETE FROM session_entries WHERE session_id = ?", s.sessionID)
		closeErr := s.db.Close()
		s.closeErr = errors.Join(delErr, closeErr)
	})
	return s.closeErr
}
