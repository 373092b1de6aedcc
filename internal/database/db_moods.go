package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/go-while/go-moodtracker/internal/models"
)

const moodEntryColumns = `id, visitor_id, date, exact_time, timestamp, mood, mood_value, note, weekday`

// InsertMoodEntry stores an entry for its visitor. An empty ID is filled with a new UUID.
func (db *Database) InsertMoodEntry(ctx context.Context, entry *models.MoodEntry) error {
	if entry.VisitorID == "" {
		return fmt.Errorf("mood entry without visitor")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	query := `INSERT INTO mood_entries (` + moodEntryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := retryableExec(ctx, db.mainDB, query,
		entry.ID, entry.VisitorID, entry.Date, entry.ExactTime, entry.Timestamp,
		string(entry.Mood), entry.MoodValue, entry.Note, entry.Weekday)
	if err != nil {
		return fmt.Errorf("failed to insert mood entry: %w", err)
	}
	return nil
}

// GetMoodEntries returns a visitor's entries, newest first. limit <= 0 returns all.
func (db *Database) GetMoodEntries(ctx context.Context, visitorID string, limit int) ([]*models.MoodEntry, error) {
	query := `SELECT ` + moodEntryColumns + ` FROM mood_entries WHERE visitor_id = ? ORDER BY timestamp DESC, id DESC`
	args := []interface{}{visitorID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return db.queryMoodEntries(ctx, query, args...)
}

// GetMoodEntriesSince returns a visitor's entries at or after sinceMillis, oldest first
func (db *Database) GetMoodEntriesSince(ctx context.Context, visitorID string, sinceMillis int64) ([]*models.MoodEntry, error) {
	query := `SELECT ` + moodEntryColumns + ` FROM mood_entries WHERE visitor_id = ? AND timestamp >= ? ORDER BY timestamp ASC, id ASC`
	return db.queryMoodEntries(ctx, query, visitorID, sinceMillis)
}

// CountMoodDays returns the number of distinct dates a visitor has recorded
func (db *Database) CountMoodDays(ctx context.Context, visitorID string) (int, error) {
	var n int
	err := retryableQueryRowScan(ctx, db.mainDB, `SELECT COUNT(DISTINCT date) FROM mood_entries WHERE visitor_id = ?`, []interface{}{visitorID}, &n)
	if err != nil {
		return 0, fmt.Errorf("failed to count mood days: %w", err)
	}
	return n, nil
}

// DeleteMoodEntries removes all of a visitor's entries and returns how many were removed
func (db *Database) DeleteMoodEntries(ctx context.Context, visitorID string) (int64, error) {
	var n int64
	err := retryableTransactionExec(ctx, db.mainDB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM mood_entries WHERE visitor_id = ?`, visitorID)
		if err != nil {
			return err
		}
		n, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete mood entries: %w", err)
	}
	return n, nil
}

// ListVisitors returns visitor IDs that have entries, most recently active first
func (db *Database) ListVisitors(ctx context.Context) ([]string, error) {
	rows, err := retryableQuery(ctx, db.mainDB, `SELECT visitor_id FROM mood_entries GROUP BY visitor_id ORDER BY MAX(timestamp) DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list visitors: %w", err)
	}
	defer rows.Close()

	var visitors []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		visitors = append(visitors, id)
	}
	return visitors, rows.Err()
}

func (db *Database) queryMoodEntries(ctx context.Context, query string, args ...interface{}) ([]*models.MoodEntry, error) {
	rows, err := retryableQuery(ctx, db.mainDB, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mood entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.MoodEntry
	for rows.Next() {
		var e models.MoodEntry
		var mood string
		if err := rows.Scan(&e.ID, &e.VisitorID, &e.Date, &e.ExactTime, &e.Timestamp, &mood, &e.MoodValue, &e.Note, &e.Weekday); err != nil {
			return nil, fmt.Errorf("failed to scan mood entry: %w", err)
		}
		e.Mood = models.Mood(mood)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mood entries: %w", err)
	}
	return entries, nil
}
