package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/shared"
)

var configColumns = []string{"id", "sequence", "name", "target_playlist_id", "definition", "enabled", "created_at", "updated_at"}

// ConfigRepository implements models.Repository[*models.DynamicPlaylistConfig].
//
// The full definition is stored as JSON; name, target and enabled are mirrored into columns for filtering.
type ConfigRepository struct {
	db *sql.DB
}

// NewConfigRepository creates a new ConfigRepository with the given database connection
func NewConfigRepository(db *sql.DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Create inserts a new config with generated ID and sequence. Names are unique among live configs.
func (r *ConfigRepository) Create(cfg *models.DynamicPlaylistConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := r.GetByName(cfg.Name); err == nil {
		return fmt.Errorf("%w: config named %q already exists", shared.ErrValidation, cfg.Name)
	} else if !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	sequence, err := NextSequence(r.db, "configs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if cfg.ID == "" {
		cfg.ID = shared.GenerateID()
	}
	cfg.Sequence = sequence
	cfg.CreatedAt = now()
	cfg.UpdatedAt = cfg.CreatedAt

	definition, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO configs (id, sequence, name, target_playlist_id, definition, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, cfg.ID, cfg.Sequence, cfg.Name, cfg.TargetPlaylistID, string(definition), cfg.Enabled, cfg.CreatedAt, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}
	return nil
}

// Get retrieves a config by ID, excluding soft-deleted configs
func (r *ConfigRepository) Get(id string) (*models.DynamicPlaylistConfig, error) {
	b := sq.Select(configColumns...).From("configs").Where(sq.Eq{"id": id, "deleted_at": nil})
	return queryOne(r.db, b, "config", id, scanConfig)
}

// GetByName retrieves a live config by its name
func (r *ConfigRepository) GetByName(name string) (*models.DynamicPlaylistConfig, error) {
	b := sq.Select(configColumns...).From("configs").Where(sq.Eq{"name": name, "deleted_at": nil})
	return queryOne(r.db, b, "config", name, scanConfig)
}

// Resolve looks a config up by ID, falling back to its name.
func (r *ConfigRepository) Resolve(ref string) (*models.DynamicPlaylistConfig, error) {
	cfg, err := r.Get(ref)
	if errors.Is(err, shared.ErrNotFound) {
		return r.GetByName(ref)
	}
	return cfg, err
}

// Update rewrites the stored definition
func (r *ConfigRepository) Update(cfg *models.DynamicPlaylistConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if other, err := r.GetByName(cfg.Name); err == nil && other.ID != cfg.ID {
		return fmt.Errorf("%w: config named %q already exists", shared.ErrValidation, cfg.Name)
	}
	cfg.UpdatedAt = now()

	definition, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	result, err := r.db.Exec(`
		UPDATE configs
		SET name = ?, target_playlist_id = ?, definition = ?, enabled = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, cfg.Name, cfg.TargetPlaylistID, string(definition), cfg.Enabled, cfg.UpdatedAt, cfg.ID)
	if err != nil {
		return fmt.Errorf("failed to update config: %w", err)
	}
	return checkAffected(result, "config", cfg.ID)
}

// Delete soft-deletes a config and removes its schedules. Run history is kept.
func (r *ConfigRepository) Delete(id string) error {
	return shared.WithTx(r.db, func(tx *sql.Tx) error {
		result, err := tx.Exec(`UPDATE configs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, now(), id)
		if err != nil {
			return fmt.Errorf("failed to delete config: %w", err)
		}
		if err := checkAffected(result, "config", id); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM schedules WHERE config_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete schedules for config: %w", err)
		}
		return nil
	})
}

// List retrieves live configs in sequence order.
//
// Supported criteria: "enabled" (bool), "target_playlist_id" (string), "limit" (int).
func (r *ConfigRepository) List(criteria map[string]any) ([]*models.DynamicPlaylistConfig, error) {
	b := sq.Select(configColumns...).From("configs").Where(sq.Eq{"deleted_at": nil})
	if enabled, ok := criteria["enabled"].(bool); ok {
		b = b.Where(sq.Eq{"enabled": enabled})
	}
	if target, ok := criteria["target_playlist_id"].(string); ok && target != "" {
		b = b.Where(sq.Eq{"target_playlist_id": target})
	}
	b = applyLimit(b.OrderBy("sequence ASC"), criteria)
	return queryAll(r.db, b, scanConfig)
}

// scanConfig decodes the definition and overlays the authoritative columns.
func scanConfig(s scanner) (*models.DynamicPlaylistConfig, error) {
	var (
		cfg        models.DynamicPlaylistConfig
		definition string
		id, name   string
		target     string
		sequence   int
		enabled    bool
	)
	if err := s.Scan(&id, &sequence, &name, &target, &definition, &enabled, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan config: %w", err)
	}

	created, updated := cfg.CreatedAt, cfg.UpdatedAt
	if err := json.Unmarshal([]byte(definition), &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", id, err)
	}
	cfg.ID, cfg.Sequence, cfg.Name, cfg.TargetPlaylistID, cfg.Enabled = id, sequence, name, target, enabled
	cfg.CreatedAt, cfg.UpdatedAt = created, updated
	return &cfg, nil
}
