package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTimeout is the sliding lifetime of a visitor session
const DefaultSessionTimeout = 30 * 24 * time.Hour

// ErrSessionNotFound is returned for unknown or expired visitor sessions
var ErrSessionNotFound = errors.New("invalid or expired session")

// VisitorSession identifies one browser that records moods
type VisitorSession struct {
	ID         string
	RemoteIP   string
	CreatedAt  time.Time
	LastSeenAt time.Time
	ExpiresAt  time.Time
}

// CreateVisitorSession creates a new visitor session
func (db *Database) CreateVisitorSession(ctx context.Context, remoteIP string) (*VisitorSession, error) {
	now := time.Now().UTC()
	session := &VisitorSession{
		ID:         uuid.NewString(),
		RemoteIP:   remoteIP,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(db.dbconfig.SessionTimeout),
	}

	query := `INSERT INTO visitor_sessions (id, remote_ip, created_at, last_seen_at, expires_at) VALUES (?, ?, ?, ?, ?)`
	_, err := retryableExec(ctx, db.mainDB, query, session.ID, session.RemoteIP, session.CreatedAt, session.LastSeenAt, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create visitor session: %w", err)
	}
	return session, nil
}

// ValidateVisitorSession checks if the session is valid and extends expiration
func (db *Database) ValidateVisitorSession(ctx context.Context, sessionID string) (*VisitorSession, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	now := time.Now().UTC()
	var session VisitorSession
	query := `SELECT id, remote_ip, created_at, last_seen_at, expires_at FROM visitor_sessions WHERE id = ? AND expires_at > ?`
	err := retryableQueryRowScan(ctx, db.mainDB, query, []interface{}{sessionID, now},
		&session.ID, &session.RemoteIP, &session.CreatedAt, &session.LastSeenAt, &session.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load visitor session: %w", err)
	}

	// Extend session expiration (sliding timeout)
	session.LastSeenAt = now
	session.ExpiresAt = now.Add(db.dbconfig.SessionTimeout)
	updateQuery := `UPDATE visitor_sessions SET last_seen_at = ?, expires_at = ? WHERE id = ?`
	if _, err := retryableExec(ctx, db.mainDB, updateQuery, session.LastSeenAt, session.ExpiresAt, session.ID); err != nil {
		// Log error but don't fail validation
		db.log.WithError(err).Warn("Failed to extend session expiration")
	}
	return &session, nil
}

// CleanupExpiredSessions removes expired visitor sessions. Their mood entries are kept.
func (db *Database) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	result, err := retryableExec(ctx, db.mainDB, `DELETE FROM visitor_sessions WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up sessions: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		db.log.Infof("Cleaned up %d expired sessions", rowsAffected)
	}
	return rowsAffected, nil
}

// CountActiveSessions returns the number of unexpired visitor sessions
func (db *Database) CountActiveSessions(ctx context.Context) (int, error) {
	var n int
	err := retryableQueryRowScan(ctx, db.mainDB, `SELECT COUNT(*) FROM visitor_sessions WHERE expires_at > ?`, []interface{}{time.Now().UTC()}, &n)
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}
