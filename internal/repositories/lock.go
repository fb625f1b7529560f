package repositories

import (
	"database/sql"
	"fmt"
	"time"
)

// LockRepository holds the per-config run markers. Every process sharing the database sees the
// same markers, so a daemon and a one-shot command never run one config at the same time.
type LockRepository struct {
	db *sql.DB
}

// NewLockRepository creates a new LockRepository with the given database connection
func NewLockRepository(db *sql.DB) *LockRepository {
	return &LockRepository{db: db}
}

// Acquire checks and sets the marker for configID in one statement.
//
// A marker older than stale is taken over; stale <= 0 never expires markers. It reports whether
// token now owns the marker.
func (r *LockRepository) Acquire(configID, token string, at time.Time, stale time.Duration) (bool, error) {
	var (
		result sql.Result
		err    error
	)
	if stale > 0 {
		result, err = r.db.Exec(`
			INSERT INTO run_locks (config_id, token, since) VALUES (?, ?, ?)
			ON CONFLICT (config_id) DO UPDATE SET token = excluded.token, since = excluded.since
			WHERE run_locks.since <= ?
		`, configID, token, at.UnixMilli(), at.Add(-stale).UnixMilli())
	} else {
		result, err = r.db.Exec(`
			INSERT INTO run_locks (config_id, token, since) VALUES (?, ?, ?)
			ON CONFLICT (config_id) DO NOTHING
		`, configID, token, at.UnixMilli())
	}
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	return rows == 1, nil
}

// Release drops the marker if token still owns it.
func (r *LockRepository) Release(configID, token string) error {
	if _, err := r.db.Exec(`DELETE FROM run_locks WHERE config_id = ? AND token = ?`, configID, token); err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

// Held reports whether any marker exists for configID, stale or not.
func (r *LockRepository) Held(configID string) (bool, error) {
	var held bool
	if err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM run_locks WHERE config_id = ?)`, configID).Scan(&held); err != nil {
		return false, fmt.Errorf("failed to check run lock: %w", err)
	}
	return held, nil
}

// ClearStale drops markers older than stale and returns how many were dropped. stale <= 0 keeps all.
func (r *LockRepository) ClearStale(at time.Time, stale time.Duration) (int64, error) {
	if stale <= 0 {
		return 0, nil
	}
	result, err := r.db.Exec(`DELETE FROM run_locks WHERE since <= ?`, at.Add(-stale).UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to clear stale run locks: %w", err)
	}
	return result.RowsAffected()
}
