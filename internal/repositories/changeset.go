package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/shared"
)

var changeSetColumns = []string{"payload", "state", "created_at", "updated_at"}

// ChangeSetRepository implements models.Repository[*models.ChangeSet].
//
// The change set is stored whole as JSON; state is mirrored into a column for filtering.
type ChangeSetRepository struct {
	db *sql.DB
}

// NewChangeSetRepository creates a new ChangeSetRepository with the given database connection
func NewChangeSetRepository(db *sql.DB) *ChangeSetRepository {
	return &ChangeSetRepository{db: db}
}

// Create stores a change set, defaulting its state to awaiting approval
func (r *ChangeSetRepository) Create(cs *models.ChangeSet) error {
	if cs.State == "" {
		cs.State = models.StateAwaitingApproval
	}
	if err := cs.Validate(); err != nil {
		return err
	}
	if cs.ID == "" {
		cs.ID = shared.GenerateID()
	}
	cs.CreatedAt = now()
	cs.UpdatedAt = cs.CreatedAt

	payload, err := json.Marshal(cs)
	if err != nil {
		return fmt.Errorf("failed to encode change set: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO change_sets (id, config_id, playlist_id, state, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, cs.ID, cs.ConfigID, cs.PlaylistID, cs.State, string(payload), cs.CreatedAt, cs.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert change set: %w", err)
	}
	return nil
}

// Get retrieves a change set by ID
func (r *ChangeSetRepository) Get(id string) (*models.ChangeSet, error) {
	b := sq.Select(changeSetColumns...).From("change_sets").Where(sq.Eq{"id": id})
	return queryOne(r.db, b, "change set", id, scanChangeSet)
}

// Update rewrites the payload and state
func (r *ChangeSetRepository) Update(cs *models.ChangeSet) error {
	if err := cs.Validate(); err != nil {
		return err
	}
	cs.UpdatedAt = now()

	payload, err := json.Marshal(cs)
	if err != nil {
		return fmt.Errorf("failed to encode change set: %w", err)
	}

	result, err := r.db.Exec(`
		UPDATE change_sets SET state = ?, payload = ?, updated_at = ? WHERE id = ?
	`, cs.State, string(payload), cs.UpdatedAt, cs.ID)
	if err != nil {
		return fmt.Errorf("failed to update change set: %w", err)
	}
	return checkAffected(result, "change set", cs.ID)
}

// Delete removes a change set
func (r *ChangeSetRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM change_sets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete change set: %w", err)
	}
	return checkAffected(result, "change set", id)
}

// List retrieves change sets newest first.
//
// Supported criteria: "playlist_id" (string), "config_id" (string), "state" ([models.ChangeSetState]), "limit" (int).
func (r *ChangeSetRepository) List(criteria map[string]any) ([]*models.ChangeSet, error) {
	b := sq.Select(changeSetColumns...).From("change_sets")
	where := sq.And{}
	if playlistID, ok := criteria["playlist_id"].(string); ok && playlistID != "" {
		where = append(where, sq.Eq{"playlist_id": playlistID})
	}
	if configID, ok := criteria["config_id"].(string); ok && configID != "" {
		where = append(where, sq.Eq{"config_id": configID})
	}
	if state, ok := criteria["state"].(models.ChangeSetState); ok && state != "" {
		where = append(where, sq.Eq{"state": string(state)})
	}
	if len(where) > 0 {
		b = b.Where(where)
	}
	b = applyLimit(b.OrderBy("created_at DESC", "rowid DESC"), criteria)
	return queryAll(r.db, b, scanChangeSet)
}

func scanChangeSet(s scanner) (*models.ChangeSet, error) {
	var (
		cs               models.ChangeSet
		payload          string
		state            models.ChangeSetState
		created, updated time.Time
	)
	if err := s.Scan(&payload, &state, &created, &updated); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan change set: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &cs); err != nil {
		return nil, fmt.Errorf("failed to decode change set: %w", err)
	}
	cs.State, cs.CreatedAt, cs.UpdatedAt = state, created, updated
	return &cs, nil
}
