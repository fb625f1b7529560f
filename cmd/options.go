package main

import (
	"fmt"
	"strings"

	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/services"
	"github.com/desertthunder/plx/internal/shared"
	"github.com/urfave/cli/v3"
)

// parseSortRule reads criterion[:asc|desc].
func parseSortRule(s string) (models.SortRule, error) {
	name, dir, _ := strings.Cut(strings.TrimSpace(s), ":")
	rule := models.SortRule{Criterion: models.Criterion(strings.ToLower(name))}
	if !rule.Criterion.Valid() {
		return rule, fmt.Errorf("%w: unknown sort criterion %q", shared.ErrInvalidArgument, name)
	}

	switch strings.ToLower(dir) {
	case "", "asc":
	case "desc":
		rule.Descending = true
	default:
		return rule, fmt.Errorf("%w: sort direction must be asc or desc, got %q", shared.ErrInvalidArgument, dir)
	}
	return rule, nil
}

// parseVersionPreference reads scope:pick, e.g. artist:oldest. A bare scope picks the oldest release.
func parseVersionPreference(s string) (models.VersionPreference, error) {
	scope, pick, _ := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")
	if pick == "" {
		pick = string(models.PickOldest)
	}
	pref := models.VersionPreference{Scope: models.VersionScope(scope), Pick: models.VersionPick(pick)}
	if err := pref.Validate(); err != nil {
		return pref, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}
	return pref, nil
}

// processingOptions builds the stage toggles from --sort, --dedupe and --versions.
func processingOptions(cmd *cli.Command) (models.ProcessingOptions, error) {
	var opts models.ProcessingOptions

	for _, s := range cmd.StringSlice("sort") {
		rule, err := parseSortRule(s)
		if err != nil {
			return opts, err
		}
		opts.SortRules = append(opts.SortRules, rule)
	}
	opts.Sort = len(opts.SortRules) > 0

	if pref := cmd.String("dedupe"); pref != "" {
		opts.Dedupe = true
		opts.DupePreference = models.DupePreference(strings.ToLower(pref))
		if !opts.DupePreference.Valid() {
			return opts, fmt.Errorf("%w: --dedupe must be oldest, newest, first or last", shared.ErrInvalidArgument)
		}
	}

	if v := cmd.String("versions"); v != "" {
		pref, err := parseVersionPreference(v)
		if err != nil {
			return opts, err
		}
		opts.Versions = true
		opts.Version = pref
	}
	return opts, nil
}

// playlistIDs resolves ids or open.spotify.com links.
func playlistIDs(refs []string) ([]string, error) {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		if strings.TrimSpace(ref) == "" {
			continue
		}
		id, err := services.PlaylistID(ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// configFromFlags builds a config from the create flags.
func configFromFlags(cmd *cli.Command) (*models.DynamicPlaylistConfig, error) {
	cfg := &models.DynamicPlaylistConfig{
		Name:              cmd.String("name"),
		UpdateMode:        models.UpdateMode(strings.ToLower(cmd.String("mode"))),
		SamplePerSource:   cmd.Int("sample"),
		IncludeLikedSongs: cmd.Bool("liked"),
		Enabled:           !cmd.Bool("disabled"),
		Filter: models.FilterConfig{
			ExcludeLiked:     cmd.Bool("exclude-liked"),
			KeywordBlacklist: cmd.StringSlice("blacklist"),
		},
	}

	if target := cmd.String("target"); target != "" {
		id, err := services.PlaylistID(target)
		if err != nil {
			return nil, err
		}
		cfg.TargetPlaylistID = id
	}

	sources, err := playlistIDs(cmd.StringSlice("source"))
	if err != nil {
		return nil, err
	}
	for _, id := range sources {
		cfg.Sources = append(cfg.Sources, models.Source{Kind: models.SourcePlaylist, PlaylistID: id})
	}

	if cfg.Processing, err = processingOptions(cmd); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
