package repositories

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/shared"
)

var scheduleColumns = []string{"id", "config_id", "cron_expression", "enabled", "last_run", "next_run", "created_at", "updated_at"}

// ScheduleRepository implements models.Repository[*models.Schedule].
type ScheduleRepository struct {
	db *sql.DB
}

// NewScheduleRepository creates a new ScheduleRepository with the given database connection
func NewScheduleRepository(db *sql.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Create inserts a schedule. The referenced config must exist.
func (r *ScheduleRepository) Create(s *models.Schedule) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = shared.GenerateID()
	}
	s.CreatedAt = now()
	s.UpdatedAt = s.CreatedAt

	_, err := r.db.Exec(`
		INSERT INTO schedules (id, config_id, cron_expression, enabled, last_run, next_run, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.ConfigID, s.CronExpression, s.Enabled, nullTime(s.LastRun), nullTime(s.NextRun), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert schedule: %w", err)
	}
	return nil
}

// Get retrieves a schedule by ID
func (r *ScheduleRepository) Get(id string) (*models.Schedule, error) {
	b := sq.Select(scheduleColumns...).From("schedules").Where(sq.Eq{"id": id})
	return queryOne(r.db, b, "schedule", id, scanSchedule)
}

// Update writes every mutable field, including run bookkeeping
func (r *ScheduleRepository) Update(s *models.Schedule) error {
	if err := s.Validate(); err != nil {
		return err
	}
	s.UpdatedAt = now()

	result, err := r.db.Exec(`
		UPDATE schedules
		SET cron_expression = ?, enabled = ?, last_run = ?, next_run = ?, updated_at = ?
		WHERE id = ?
	`, s.CronExpression, s.Enabled, nullTime(s.LastRun), nullTime(s.NextRun), s.UpdatedAt, s.ID)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	return checkAffected(result, "schedule", s.ID)
}

// Delete removes a schedule
func (r *ScheduleRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return checkAffected(result, "schedule", id)
}

// List retrieves schedules in creation order.
//
// Supported criteria: "config_id" (string), "enabled" (bool), "limit" (int).
func (r *ScheduleRepository) List(criteria map[string]any) ([]*models.Schedule, error) {
	b := sq.Select(scheduleColumns...).From("schedules")
	if configID, ok := criteria["config_id"].(string); ok && configID != "" {
		b = b.Where(sq.Eq{"config_id": configID})
	}
	if enabled, ok := criteria["enabled"].(bool); ok {
		b = b.Where(sq.Eq{"enabled": enabled})
	}
	b = applyLimit(b.OrderBy("created_at ASC", "id ASC"), criteria)
	return queryAll(r.db, b, scanSchedule)
}

// Due returns enabled schedules whose next run is at or before at.
func (r *ScheduleRepository) Due(at time.Time) ([]*models.Schedule, error) {
	all, err := r.List(map[string]any{"enabled": true})
	if err != nil {
		return nil, err
	}
	var due []*models.Schedule
	for _, s := range all {
		if s.NextRun != nil && !s.NextRun.After(at) {
			due = append(due, s)
		}
	}
	return due, nil
}

func scanSchedule(sc scanner) (*models.Schedule, error) {
	var (
		s                models.Schedule
		lastRun, nextRun sql.NullTime
	)
	if err := sc.Scan(&s.ID, &s.ConfigID, &s.CronExpression, &s.Enabled, &lastRun, &nextRun, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan schedule: %w", err)
	}
	s.LastRun, s.NextRun = timePtr(lastRun), timePtr(nextRun)
	return &s, nil
}
