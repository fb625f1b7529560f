package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/plx/internal/governor"
)

// GovernorRepository stores the single shared rate-limit window and implements
// [governor.StateStore].
type GovernorRepository struct {
	db *sql.DB
}

// NewGovernorRepository creates a new GovernorRepository with the given database connection
func NewGovernorRepository(db *sql.DB) *GovernorRepository {
	return &GovernorRepository{db: db}
}

var _ governor.StateStore = (*GovernorRepository)(nil)

// LoadStatus returns the stored window, or a closed one when nothing was ever recorded.
func (r *GovernorRepository) LoadStatus() (governor.Status, error) {
	var (
		st                governor.Status
		kind              string
		until, retryAfter int64
	)
	err := r.db.QueryRow(`
		SELECT kind, open_until, retry_after_ms, rate_limits, updated_at FROM governor_state WHERE id = 1
	`).Scan(&kind, &until, &retryAfter, &st.Trips, &st.DetectedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return governor.Status{Kind: governor.None}, nil
	}
	if err != nil {
		return governor.Status{}, fmt.Errorf("failed to load governor state: %w", err)
	}

	st.Kind = governor.Kind(kind)
	st.RetryAfter = time.Duration(retryAfter) * time.Millisecond
	if until > 0 {
		st.Until = time.UnixMilli(until).UTC()
	}
	return st, nil
}

// RecordTrip stores st as the open window and counts one rate limit.
func (r *GovernorRepository) RecordTrip(st governor.Status) error {
	detected := st.DetectedAt
	if detected.IsZero() {
		detected = now()
	}
	_, err := r.db.Exec(`
		INSERT INTO governor_state (id, kind, open_until, retry_after_ms, rate_limits, updated_at)
		VALUES (1, ?, ?, ?, 1, ?)
		ON CONFLICT (id) DO UPDATE SET
			kind = excluded.kind,
			open_until = excluded.open_until,
			retry_after_ms = excluded.retry_after_ms,
			rate_limits = governor_state.rate_limits + 1,
			updated_at = excluded.updated_at
	`, string(st.Kind), st.Until.UnixMilli(), st.RetryAfter.Milliseconds(), detected.UTC())
	if err != nil {
		return fmt.Errorf("failed to store governor state: %w", err)
	}
	return nil
}

// ClearStatus closes the stored window and keeps the rate limit count.
func (r *GovernorRepository) ClearStatus() error {
	_, err := r.db.Exec(`UPDATE governor_state SET kind = ?, open_until = 0 WHERE id = 1`, string(governor.None))
	if err != nil {
		return fmt.Errorf("failed to clear governor state: %w", err)
	}
	return nil
}
