package main

import (
	"context"

	"github.com/desertthunder/plx/internal/formatter"
	"github.com/urfave/cli/v3"
)

// History prints run history newest first, optionally for one config.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	store, err := r.requireStore()
	if err != nil {
		return err
	}

	criteria := map[string]any{"limit": cmd.Int("limit")}
	if ref := cmd.Args().First(); ref != "" {
		cfg, err := store.Configs.Resolve(ref)
		if err != nil {
			return err
		}
		criteria["config_id"] = cfg.ID
	}

	runs, err := store.Runs.List(criteria)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(runs, cmd.Bool("pretty"))
	}
	return r.writeBytes(formatter.RunsReport(runs, r.configNames(), r.now()))
}

// SnapshotsList prints stored snapshots newest first.
func (r *Runner) SnapshotsList(ctx context.Context, cmd *cli.Command) error {
	store, err := r.requireStore()
	if err != nil {
		return err
	}

	criteria := map[string]any{"limit": cmd.Int("limit")}
	if playlist := cmd.String("playlist"); playlist != "" {
		ids, err := playlistIDs([]string{playlist})
		if err != nil {
			return err
		}
		criteria["playlist_id"] = ids[0]
	}

	snapshots, err := store.Snapshots.List(criteria)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(snapshots, cmd.Bool("pretty"))
	}
	return r.writeBytes(formatter.SnapshotsReport(snapshots, r.now()))
}

// IgnoresList prints remembered rejections.
func (r *Runner) IgnoresList(ctx context.Context, cmd *cli.Command) error {
	store, err := r.requireStore()
	if err != nil {
		return err
	}
	entries, err := store.Ignores.List(nil)
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(entries, cmd.Bool("pretty"))
	}
	return r.writeBytes(formatter.IgnoresReport(entries))
}

// IgnoresClear forgets every rejection after confirmation.
func (r *Runner) IgnoresClear(ctx context.Context, cmd *cli.Command) error {
	store, err := r.requireStore()
	if err != nil {
		return err
	}

	if !cmd.Bool("yes") {
		ok, err := r.confirm("Clear the ignore list?", "Rejected replacements and duplicate removals may be proposed again.")
		if err != nil {
			return err
		}
		if !ok {
			return r.writePlain("Nothing cleared\n")
		}
	}

	n, err := store.Ignores.Clear()
	if err != nil {
		return err
	}
	return r.writePlain("✓ Cleared %d ignore entries\n", n)
}
