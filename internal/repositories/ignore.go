package repositories

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/shared"
)

var ignoreColumns = []string{"id", "kind", "normalized_title", "normalized_artist", "candidate_id", "created_at"}

// IgnoreRepository implements models.Repository[*models.IgnoreEntry].
type IgnoreRepository struct {
	db *sql.DB
}

// NewIgnoreRepository creates a new IgnoreRepository with the given database connection
func NewIgnoreRepository(db *sql.DB) *IgnoreRepository {
	return &IgnoreRepository{db: db}
}

// Create pins a (song, candidate) pair. Pinning an existing pair is a no-op that loads the stored entry.
func (r *IgnoreRepository) Create(e *models.IgnoreEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = shared.GenerateID()
	}
	e.CreatedAt = now()

	result, err := r.db.Exec(`
		INSERT INTO ignore_entries (id, kind, normalized_title, normalized_artist, candidate_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, normalized_title, normalized_artist, candidate_id) DO NOTHING
	`, e.ID, e.Kind, e.Key.Title, e.Key.Artist, e.CandidateID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert ignore entry: %w", err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		b := sq.Select(ignoreColumns...).From("ignore_entries").Where(sq.Eq{
			"kind":              string(e.Kind),
			"normalized_title":  e.Key.Title,
			"normalized_artist": e.Key.Artist,
			"candidate_id":      e.CandidateID,
		})
		existing, err := queryOne(r.db, b, "ignore entry", e.CandidateID, scanIgnore)
		if err != nil {
			return err
		}
		*e = *existing
	}
	return nil
}

// Get retrieves an entry by ID
func (r *IgnoreRepository) Get(id string) (*models.IgnoreEntry, error) {
	b := sq.Select(ignoreColumns...).From("ignore_entries").Where(sq.Eq{"id": id})
	return queryOne(r.db, b, "ignore entry", id, scanIgnore)
}

// Update rewrites the kind, key and candidate of an entry
func (r *IgnoreRepository) Update(e *models.IgnoreEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	result, err := r.db.Exec(`
		UPDATE ignore_entries SET kind = ?, normalized_title = ?, normalized_artist = ?, candidate_id = ?
		WHERE id = ?
	`, e.Kind, e.Key.Title, e.Key.Artist, e.CandidateID, e.ID)
	if err != nil {
		return fmt.Errorf("failed to update ignore entry: %w", err)
	}
	return checkAffected(result, "ignore entry", e.ID)
}

// Delete removes an entry so the candidate may be proposed again
func (r *IgnoreRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM ignore_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ignore entry: %w", err)
	}
	return checkAffected(result, "ignore entry", id)
}

// List retrieves entries oldest first.
//
// Supported criteria: "kind" ([models.IgnoreKind]), "title" (string), "artist" (string), "limit" (int).
// Title and artist are normalized values.
func (r *IgnoreRepository) List(criteria map[string]any) ([]*models.IgnoreEntry, error) {
	b := sq.Select(ignoreColumns...).From("ignore_entries")
	if kind, ok := criteria["kind"].(models.IgnoreKind); ok && kind != "" {
		b = b.Where(sq.Eq{"kind": string(kind)})
	}
	if title, ok := criteria["title"].(string); ok && title != "" {
		b = b.Where(sq.Eq{"normalized_title": title})
	}
	if artist, ok := criteria["artist"].(string); ok && artist != "" {
		b = b.Where(sq.Eq{"normalized_artist": artist})
	}
	b = applyLimit(b.OrderBy("created_at ASC", "rowid ASC"), criteria)
	return queryAll(r.db, b, scanIgnore)
}

// Set loads every entry into a lookup for the dedup and version stages.
func (r *IgnoreRepository) Set() (models.IgnoreSet, error) {
	entries, err := r.List(nil)
	if err != nil {
		return nil, err
	}
	return models.NewIgnoreSet(entries), nil
}

// Clear removes every entry and returns how many were dropped.
func (r *IgnoreRepository) Clear() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM ignore_entries`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear ignore entries: %w", err)
	}
	return result.RowsAffected()
}

func scanIgnore(s scanner) (*models.IgnoreEntry, error) {
	var e models.IgnoreEntry
	if err := s.Scan(&e.ID, &e.Kind, &e.Key.Title, &e.Key.Artist, &e.CandidateID, &e.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan ignore entry: %w", err)
	}
	return &e, nil
}
