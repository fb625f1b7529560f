package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/desertthunder/plx/internal/formatter"
	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/shared"
	"github.com/desertthunder/plx/internal/tasks"
	"github.com/desertthunder/plx/internal/ui"
	"github.com/urfave/cli/v3"
)

// Run runs a config now and applies its changes.
//
// With --review the change set is opened in the TUI first and only the approved subset is written.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.Args().First()
	if ref == "" {
		return fmt.Errorf("%w: config name or id", shared.ErrMissingArgument)
	}

	engine, err := r.requireEngine(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("review") {
		m := ui.NewModel(ctx, func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*models.ComputedResult, error) {
			return engine.PreviewConfig(ctx, ref, progress)
		})
		return r.reviewAndApply(ctx, m)
	}

	var run *models.RunHistory
	err = r.spin(ctx, "Running "+ref+"...", func(ctx context.Context) error {
		return r.withProgress(func(progress chan<- tasks.ProgressUpdate) error {
			var err error
			run, err = engine.RunNow(ctx, ref, models.TriggerManual, progress)
			return err
		})
	})
	if run == nil {
		return err
	}

	switch run.Status {
	case models.RunSkipped:
		r.writePlain("Skipped: a run of %s is already in progress\n", ref)
	case models.RunFailed:
		r.writePlain("✗ Run %d failed: %s\n", run.Sequence, run.ErrorMessage)
	default:
		r.writePlain("✓ Run %d finished: %d tracks\n", run.Sequence, run.TracksProcessed)
	}
	if run.ChangeSetID == "" && run.Status == models.RunSuccess {
		r.writePlain("Playlist already up to date\n")
	}
	if run.SnapshotID != "" {
		r.writePlain("Snapshot: %s (restore with: plx restore %s)\n", run.SnapshotID, run.SnapshotID)
	}
	if run.WarningMessage != "" {
		r.writePlain("warning: %s\n", run.WarningMessage)
	}
	return err
}

// Preview computes a config, or cleans up a single --playlist, and stores the pending change set.
func (r *Runner) Preview(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.Args().First()
	playlist := cmd.String("playlist")
	if ref == "" && playlist == "" {
		return fmt.Errorf("%w: config name or --playlist", shared.ErrMissingArgument)
	}

	var load func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*models.ComputedResult, error)
	if playlist != "" {
		id, err := playlistIDs([]string{playlist})
		if err != nil {
			return err
		}
		opts, err := processingOptions(cmd)
		if err != nil {
			return err
		}
		if !opts.Sort && !opts.Dedupe && !opts.Versions {
			return fmt.Errorf("%w: pass at least one of --sort, --dedupe or --versions", shared.ErrMissingArgument)
		}
		load = func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*models.ComputedResult, error) {
			return r.engine.PreviewPlaylist(ctx, id[0], opts, progress)
		}
	} else {
		load = func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*models.ComputedResult, error) {
			return r.engine.PreviewConfig(ctx, ref, progress)
		}
	}

	if _, err := r.requireEngine(ctx); err != nil {
		return err
	}

	var res *models.ComputedResult
	err := r.spin(ctx, "Computing changes...", func(ctx context.Context) error {
		return r.withProgress(func(progress chan<- tasks.ProgressUpdate) error {
			var err error
			res, err = load(ctx, progress)
			return err
		})
	})
	if err != nil {
		return err
	}

	if path := cmd.String("csv"); path != "" {
		if err := r.writeCSV(res.FinalTracks, path); err != nil {
			return err
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(res, cmd.Bool("pretty"))
	}
	if err := r.writeBytes(formatter.ResultReport(res)); err != nil {
		return err
	}
	if res.ChangeSet.Empty() {
		return r.writePlain("No changes\n")
	}
	return r.writePlain("\nChange set %s is awaiting approval.\nApply with: plx approve %s --all\n", res.ChangeSet.ID, res.ChangeSet.ID)
}

// Approve applies a pending change set: every change with --all, a subset with --ids, or a set picked in the TUI with --review.
func (r *Runner) Approve(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("%w: change set id", shared.ErrMissingArgument)
	}

	engine, err := r.requireEngine(ctx)
	if err != nil {
		return err
	}
	cs, err := engine.Store().ChangeSets.Get(id)
	if err != nil {
		return err
	}
	if cs.State != models.StateAwaitingApproval {
		return fmt.Errorf("%w: change set %s is %s", shared.ErrChangeSetClosed, cs.ID, cs.State)
	}

	var approved []string
	switch {
	case cmd.Bool("review"):
		return r.reviewAndApply(ctx, ui.NewReviewModel(ctx, cs))
	case cmd.Bool("all"):
		approved = cs.ChangeIDs()
	case len(cmd.StringSlice("ids")) > 0:
		approved = cmd.StringSlice("ids")
	default:
		return fmt.Errorf("%w: pass --all, --ids or --review", shared.ErrMissingArgument)
	}

	return r.apply(ctx, cs.ID, approved)
}

// Cancel discards a pending change set.
func (r *Runner) Cancel(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("%w: change set id", shared.ErrMissingArgument)
	}

	store, err := r.requireStore()
	if err != nil {
		return err
	}
	engine := r.engine
	if engine == nil {
		engine = tasks.NewPlaylistEngine(nil, store, tasks.WithLogger(r.logger), tasks.WithClock(r.now))
	}
	if err := engine.Cancel(id); err != nil {
		return err
	}
	return r.writePlain("✓ Change set %s cancelled\n", id)
}

// Restore writes a snapshot back to its playlist after confirmation.
func (r *Runner) Restore(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("%w: snapshot id", shared.ErrMissingArgument)
	}

	engine, err := r.requireEngine(ctx)
	if err != nil {
		return err
	}
	snap, err := engine.Store().Snapshots.Get(id)
	if err != nil {
		return err
	}

	if !cmd.Bool("yes") {
		ok, err := r.confirm(
			fmt.Sprintf("Restore playlist %s?", snap.PlaylistID),
			fmt.Sprintf("Its contents will be replaced with the %d tracks saved %s.", len(snap.URIs), formatter.RelTime(snap.CreatedAt, r.now())),
		)
		if err != nil {
			return err
		}
		if !ok {
			return r.writePlain("Restore cancelled\n")
		}
	}

	var res *tasks.RestoreResult
	err = r.spin(ctx, "Restoring snapshot...", func(ctx context.Context) error {
		var err error
		res, err = engine.Restore(ctx, snap.ID)
		return err
	})
	if err != nil {
		return err
	}

	r.writePlain("✓ Restored %d tracks to %s\n", len(res.Restored.URIs), res.Restored.PlaylistID)
	if res.Before != nil {
		r.writePlain("Previous contents saved as snapshot %s\n", res.Before.ID)
	}
	if res.Warning != "" {
		r.writePlain("warning: %s\n", res.Warning)
	}
	return nil
}

// reviewAndApply runs the TUI and applies the approved changes once confirmed.
func (r *Runner) reviewAndApply(ctx context.Context, m *ui.Model) error {
	final, err := r.review(ctx, m)
	if err != nil {
		return err
	}
	if err := final.Err(); err != nil {
		return err
	}

	cs := final.ChangeSet()
	if cs == nil || cs.Empty() {
		return r.writePlain("No changes\n")
	}
	if !final.Confirmed() {
		return r.writePlain("Review closed. Change set %s is still awaiting approval.\n", cs.ID)
	}
	return r.apply(ctx, cs.ID, final.Approved())
}

func (r *Runner) apply(ctx context.Context, id string, approved []string) error {
	var res *tasks.ApplyResult
	err := r.spin(ctx, "Applying changes...", func(ctx context.Context) error {
		var err error
		res, err = r.engine.Apply(ctx, id, approved)
		return err
	})
	if err != nil {
		if errors.Is(err, shared.ErrChangeSetClosed) {
			return fmt.Errorf("change set %s can no longer be applied: %w", id, err)
		}
		return err
	}
	return r.writeBytes(formatter.ApplyReport(res))
}

func (r *Runner) writeCSV(tracks []models.Track, path string) error {
	data, err := formatter.ExportToCSV(tracks)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	r.logger.Info("track list written", "path", path, "tracks", len(tracks))
	return nil
}
