package repositories

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/shared"
)

var runColumns = []string{
	"id", "sequence", "config_id", "playlist_id", "started_at", "finished_at", "status",
	"tracks_processed", "error_message", "warning_message", "triggered_by", "snapshot_id", "change_set_id",
}

// RunRepository implements models.Repository[*models.RunHistory].
//
// Entries are written when a run starts and updated in place when it reaches a terminal state.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run with a generated ID and sequence
func (r *RunRepository) Create(run *models.RunHistory) error {
	if err := run.Validate(); err != nil {
		return err
	}

	sequence, err := NextSequence(r.db, "run_history")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if run.ID == "" {
		run.ID = shared.GenerateID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = now()
	}
	run.Sequence = sequence

	_, err = r.db.Exec(`
		INSERT INTO run_history (
			id, sequence, config_id, playlist_id, started_at, finished_at, status, tracks_processed,
			error_message, warning_message, triggered_by, snapshot_id, change_set_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Sequence, run.ConfigID, run.PlaylistID, run.StartedAt, nullTime(run.FinishedAt), run.Status,
		run.TracksProcessed, nullString(run.ErrorMessage), nullString(run.WarningMessage), run.TriggeredBy,
		nullString(run.SnapshotID), nullString(run.ChangeSetID))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(id string) (*models.RunHistory, error) {
	b := sq.Select(runColumns...).From("run_history").Where(sq.Eq{"id": id})
	return queryOne(r.db, b, "run", id, scanRun)
}

// Update records the outcome of a run
func (r *RunRepository) Update(run *models.RunHistory) error {
	if err := run.Validate(); err != nil {
		return err
	}

	result, err := r.db.Exec(`
		UPDATE run_history
		SET playlist_id = ?, finished_at = ?, status = ?, tracks_processed = ?, error_message = ?,
			warning_message = ?, snapshot_id = ?, change_set_id = ?
		WHERE id = ?
	`, run.PlaylistID, nullTime(run.FinishedAt), run.Status, run.TracksProcessed, nullString(run.ErrorMessage),
		nullString(run.WarningMessage), nullString(run.SnapshotID), nullString(run.ChangeSetID), run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return checkAffected(result, "run", run.ID)
}

// Delete removes a run
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM run_history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return checkAffected(result, "run", id)
}

// List retrieves runs newest first.
//
// Supported criteria: "config_id" (string), "status" ([models.RunStatus]), "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.RunHistory, error) {
	b := sq.Select(runColumns...).From("run_history")
	if configID, ok := criteria["config_id"].(string); ok && configID != "" {
		b = b.Where(sq.Eq{"config_id": configID})
	}
	if status, ok := criteria["status"].(models.RunStatus); ok && status != "" {
		b = b.Where(sq.Eq{"status": string(status)})
	}
	b = applyLimit(b.OrderBy("sequence DESC"), criteria)
	return queryAll(r.db, b, scanRun)
}

// Latest returns the most recent run for a config.
func (r *RunRepository) Latest(configID string) (*models.RunHistory, error) {
	runs, err := r.List(map[string]any{"config_id": configID, "limit": 1})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no runs for config %s", shared.ErrNotFound, configID)
	}
	return runs[0], nil
}

// MarkInterrupted fails every run still marked running whose config holds no run lock, so a crash
// never leaves a run open. Runs owned by a live process keep their lock and are left alone.
// It returns the number of runs closed.
func (r *RunRepository) MarkInterrupted(at time.Time, reason string) (int64, error) {
	result, err := r.db.Exec(`
		UPDATE run_history SET status = ?, finished_at = ?, error_message = ?
		WHERE status = ? AND config_id NOT IN (SELECT config_id FROM run_locks)
	`, models.RunFailed, at, reason, models.RunRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to close interrupted runs: %w", err)
	}
	return result.RowsAffected()
}

// MarkInterruptedFor fails the runs of one config still marked running. Called after the caller
// takes over that config's run lock.
func (r *RunRepository) MarkInterruptedFor(configID string, at time.Time, reason string) (int64, error) {
	result, err := r.db.Exec(`
		UPDATE run_history SET status = ?, finished_at = ?, error_message = ?
		WHERE status = ? AND config_id = ?
	`, models.RunFailed, at, reason, models.RunRunning, configID)
	if err != nil {
		return 0, fmt.Errorf("failed to close interrupted runs: %w", err)
	}
	return result.RowsAffected()
}

func scanRun(s scanner) (*models.RunHistory, error) {
	var (
		run                                  models.RunHistory
		finishedAt                           sql.NullTime
		errMsg, warnMsg, snapshot, changeSet sql.NullString
	)
	err := s.Scan(
		&run.ID, &run.Sequence, &run.ConfigID, &run.PlaylistID, &run.StartedAt, &finishedAt, &run.Status,
		&run.TracksProcessed, &errMsg, &warnMsg, &run.TriggeredBy, &snapshot, &changeSet,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.FinishedAt = timePtr(finishedAt)
	run.ErrorMessage, run.WarningMessage = errMsg.String, warnMsg.String
	run.SnapshotID, run.ChangeSetID = snapshot.String, changeSet.String
	return &run, nil
}
