package database

import (
	"context"
	"database/sql"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	maxRetries = 100
	baseDelay  = 10 * time.Millisecond
	maxDelay   = 25 * time.Millisecond
)

// isRetryableError checks if the error is a retryable SQLite error
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked") ||
		strings.Contains(errStr, "busy") ||
		strings.Contains(errStr, "locked")
}

// backoff sleeps before the next attempt. It returns false when ctx is done.
func backoff(ctx context.Context, attempt int) bool {
	// Exponential backoff with jitter
	delay := time.Duration(attempt+1) * baseDelay
	if delay > maxDelay {
		delay = maxDelay
	}
	// Add random jitter (up to 50% of delay)
	jitter := time.Duration(rand.Int63n(int64(delay) / 2))

	t := time.NewTimer(delay + jitter)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryableExec executes a SQL statement with retry logic for lock conflicts
func retryableExec(ctx context.Context, db *sql.DB, query string, args ...interface{}) (sql.Result, error) {
	var result sql.Result
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		result, err = db.ExecContext(ctx, query, args...)
		if !isRetryableError(err) {
			return result, err
		}
		logrus.Warnf("SQLite retry attempt %d/%d for query (first 50 chars): %s... Error: %v",
			attempt+1, maxRetries, truncateString(query, 50), err)
		if !backoff(ctx, attempt) {
			return result, ctx.Err()
		}
	}

	return result, err
}

// retryableQueryRowScan executes a QueryRow and Scan with retry logic
func retryableQueryRowScan(ctx context.Context, db *sql.DB, query string, args []interface{}, dest ...interface{}) error {
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err = db.QueryRowContext(ctx, query, args...).Scan(dest...)
		if !isRetryableError(err) {
			return err
		}
		logrus.Warnf("SQLite retry attempt %d/%d for QueryRow scan (first 50 chars): %s... Error: %v",
			attempt+1, maxRetries, truncateString(query, 50), err)
		if !backoff(ctx, attempt) {
			return ctx.Err()
		}
	}

	return err
}

// retryableQuery executes a query that returns multiple rows with retry logic
func retryableQuery(ctx context.Context, db *sql.DB, query string, args ...interface{}) (*sql.Rows, error) {
	var rows *sql.Rows
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		rows, err = db.QueryContext(ctx, query, args...)
		if !isRetryableError(err) {
			return rows, err
		}
		logrus.Warnf("SQLite retry attempt %d/%d for query (first 50 chars): %s... Error: %v",
			attempt+1, maxRetries, truncateString(query, 50), err)
		if !backoff(ctx, attempt) {
			return nil, ctx.Err()
		}
	}

	return rows, err
}

// retryableTransactionExec executes a transaction with retry logic
func retryableTransactionExec(ctx context.Context, db *sql.DB, txFunc func(*sql.Tx) error) error {
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err = runTx(ctx, db, txFunc)
		if !isRetryableError(err) {
			return err
		}
		logrus.Warnf("SQLite retry attempt %d/%d for transaction: %v", attempt+1, maxRetries, err)
		if !backoff(ctx, attempt) {
			return ctx.Err()
		}
	}

	return err
}

func runTx(ctx context.Context, db *sql.DB, txFunc func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := txFunc(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// truncateString truncates a string to the specified length
func truncateString(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length]
}
