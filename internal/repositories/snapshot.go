package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/shared"
)

var snapshotColumns = []string{"id", "playlist_id", "uris", "description", "created_at"}

// SnapshotRepository implements models.Repository[*models.Snapshot].
//
// Snapshots are immutable: Update only touches the description.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates a new SnapshotRepository with the given database connection
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Create stores a copy of the uri sequence
func (r *SnapshotRepository) Create(s *models.Snapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = shared.GenerateID()
	}
	if s.URIs == nil {
		s.URIs = []string{}
	}
	s.CreatedAt = now()

	uris, err := json.Marshal(s.URIs)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO snapshots (id, playlist_id, uris, description, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.ID, s.PlaylistID, string(uris), s.Description, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// Get retrieves a snapshot by ID
func (r *SnapshotRepository) Get(id string) (*models.Snapshot, error) {
	b := sq.Select(snapshotColumns...).From("snapshots").Where(sq.Eq{"id": id})
	return queryOne(r.db, b, "snapshot", id, scanSnapshot)
}

// Update changes the description of a snapshot
func (r *SnapshotRepository) Update(s *models.Snapshot) error {
	result, err := r.db.Exec(`UPDATE snapshots SET description = ? WHERE id = ?`, s.Description, s.ID)
	if err != nil {
		return fmt.Errorf("failed to update snapshot: %w", err)
	}
	return checkAffected(result, "snapshot", s.ID)
}

// Delete removes a snapshot
func (r *SnapshotRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM snapshots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return checkAffected(result, "snapshot", id)
}

// List retrieves snapshots newest first.
//
// Supported criteria: "playlist_id" (string), "limit" (int).
func (r *SnapshotRepository) List(criteria map[string]any) ([]*models.Snapshot, error) {
	b := sq.Select(snapshotColumns...).From("snapshots")
	if playlistID, ok := criteria["playlist_id"].(string); ok && playlistID != "" {
		b = b.Where(sq.Eq{"playlist_id": playlistID})
	}
	b = applyLimit(b.OrderBy("created_at DESC", "rowid DESC"), criteria)
	return queryAll(r.db, b, scanSnapshot)
}

func scanSnapshot(sc scanner) (*models.Snapshot, error) {
	var (
		s    models.Snapshot
		uris string
	)
	if err := sc.Scan(&s.ID, &s.PlaylistID, &uris, &s.Description, &s.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(uris), &s.URIs); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", s.ID, err)
	}
	return &s, nil
}
