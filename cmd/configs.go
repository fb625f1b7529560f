package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/plx/internal/formatter"
	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/shared"
	"github.com/urfave/cli/v3"
)

// ConfigsList prints every live config.
func (r *Runner) ConfigsList(ctx context.Context, cmd *cli.Command) error {
	store, err := r.requireStore()
	if err != nil {
		return err
	}

	configs, err := store.Configs.List(nil)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(configs, cmd.Bool("pretty"))
	}

	if len(configs) == 0 {
		return r.writePlain("No configs. Create one with 'plx configs create'.\n")
	}
	for _, cfg := range configs {
		status := "enabled"
		if !cfg.Enabled {
			status = "disabled"
		}
		sources := make([]string, 0, len(cfg.Sources)+1)
		for _, src := range cfg.Sources {
			sources = append(sources, src.String())
		}
		if cfg.IncludeLikedSongs {
			sources = append(sources, "liked songs")
		}
		r.writePlain("%s  %s [%s, %s]\n", cfg.ID, cfg.Name, cfg.UpdateMode, status)
		r.writePlain("    target: %s\n    sources: %s\n", cfg.TargetPlaylistID, strings.Join(sources, ", "))
	}
	return nil
}

// ConfigsShow prints one config as YAML, or JSON with --json.
func (r *Runner) ConfigsShow(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.resolveConfig(cmd.Args().First())
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(cfg, cmd.Bool("pretty"))
	}

	data, err := formatter.ExportConfigs([]*models.DynamicPlaylistConfig{cfg})
	if err != nil {
		return err
	}
	r.writePlain("# id: %s\n", cfg.ID)
	return r.writeBytes(data)
}

// ConfigsCreate stores a config built from flags, or every config in --file.
func (r *Runner) ConfigsCreate(ctx context.Context, cmd *cli.Command) error {
	store, err := r.requireStore()
	if err != nil {
		return err
	}

	var configs []*models.DynamicPlaylistConfig
	if path := cmd.String("file"); path != "" {
		if configs, err = formatter.ReadConfigImport(path); err != nil {
			return err
		}
	} else {
		cfg, err := configFromFlags(cmd)
		if err != nil {
			return err
		}
		configs = append(configs, cfg)
	}

	for _, cfg := range configs {
		if err := store.Configs.Create(cfg); err != nil {
			return fmt.Errorf("failed to create config %q: %w", cfg.Name, err)
		}
		r.logger.Info("config created", "id", cfg.ID, "name", cfg.Name)
		r.writePlain("✓ Created config %s (%s)\n", cfg.Name, cfg.ID)
	}
	return nil
}

// ConfigsDelete removes a config and its schedules.
func (r *Runner) ConfigsDelete(ctx context.Context, cmd *cli.Command) error {
	cfg, err := r.resolveConfig(cmd.Args().First())
	if err != nil {
		return err
	}
	if err := r.store.Configs.Delete(cfg.ID); err != nil {
		return err
	}
	return r.writePlain("✓ Deleted config %s. Run history is kept.\n", cfg.Name)
}

// ConfigsExport writes every config to a YAML file.
func (r *Runner) ConfigsExport(ctx context.Context, cmd *cli.Command) error {
	store, err := r.requireStore()
	if err != nil {
		return err
	}
	configs, err := store.Configs.List(nil)
	if err != nil {
		return err
	}

	path, err := formatter.WriteConfigExport(configs, cmd.String("output"))
	if err != nil {
		return err
	}
	return r.writePlain("✓ Exported %d configs to %s\n", len(configs), path)
}

// ConfigsImport creates every config in a YAML file. An invalid document is rejected whole; configs whose name is taken are skipped.
func (r *Runner) ConfigsImport(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("%w: path to a YAML file", shared.ErrMissingArgument)
	}

	configs, err := formatter.ReadConfigImport(path)
	if err != nil {
		return err
	}
	store, err := r.requireStore()
	if err != nil {
		return err
	}

	created := 0
	for _, cfg := range configs {
		if err := store.Configs.Create(cfg); err != nil {
			r.logger.Warn("skipping config", "name", cfg.Name, "error", err)
			continue
		}
		created++
	}
	return r.writePlain("✓ Imported %d of %d configs from %s\n", created, len(configs), path)
}

// resolveConfig looks up a config by id or name.
func (r *Runner) resolveConfig(ref string) (*models.DynamicPlaylistConfig, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: config name or id", shared.ErrMissingArgument)
	}
	store, err := r.requireStore()
	if err != nil {
		return nil, err
	}
	return store.Configs.Resolve(ref)
}

// configNames maps config ids to names for reports.
func (r *Runner) configNames() formatter.Names {
	names := formatter.Names{}
	if r.store == nil {
		return names
	}
	configs, err := r.store.Configs.List(nil)
	if err != nil {
		r.logger.Debug("failed to list configs", "error", err)
		return names
	}
	for _, cfg := range configs {
		names[cfg.ID] = cfg.Name
	}
	return names
}
