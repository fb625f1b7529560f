package tasks

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/shared"
)

// Running reports whether a run for configID holds the config's run lock in any process.
func (e *PlaylistEngine) Running(configID string) bool {
	held, err := e.store.Locks.Held(configID)
	if err != nil {
		e.logger.Error("failed to check run lock", "config", configID, "error", err)
		return false
	}
	return held
}

// RunNow computes a config and applies every change without review.
//
// At most one run per config is in flight across every process sharing the store. A trigger that
// finds a run in progress is recorded as a skipped run and returns without error. Failures finish
// the run as failed with the error message.
func (e *PlaylistEngine) RunNow(ctx context.Context, configRef string, trigger models.Trigger, progress chan<- ProgressUpdate) (*models.RunHistory, error) {
	cfg, err := e.store.Configs.Resolve(configRef)
	if err != nil {
		return nil, err
	}

	logger := shared.WithLogger(e.logger, "config", cfg.Name, "trigger", trigger)
	run := &models.RunHistory{
		ConfigID:    cfg.ID,
		PlaylistID:  cfg.TargetPlaylistID,
		StartedAt:   e.now(),
		TriggeredBy: trigger,
	}

	token := shared.GenerateID()
	ok, err := e.store.Locks.Acquire(cfg.ID, token, e.now(), e.stale)
	if err != nil {
		return nil, err
	}
	if !ok {
		run.Finish(models.RunSkipped, e.now(), shared.ErrConcurrentRun)
		if err := e.store.Runs.Create(run); err != nil {
			return nil, fmt.Errorf("failed to record skipped run: %w", err)
		}
		logger.Warn("run skipped", "reason", shared.ErrConcurrentRun)
		return run, nil
	}
	defer func() {
		if err := e.store.Locks.Release(cfg.ID, token); err != nil {
			logger.Error("failed to release run lock", "error", err)
		}
	}()

	if n, err := e.store.Runs.MarkInterruptedFor(cfg.ID, e.now(), "interrupted"); err != nil {
		return nil, err
	} else if n > 0 {
		logger.Warn("closed runs left by a stale lock", "count", n)
	}

	run.Status = models.RunRunning
	if err := e.store.Runs.Create(run); err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	logger = shared.WithLogger(logger, "run", run.Sequence)
	logger.Info("run started", "target", cfg.TargetPlaylistID)

	runErr := e.execute(ctx, cfg, run, progress)

	status := models.RunSuccess
	if runErr != nil {
		status = models.RunFailed
	}
	run.Finish(status, e.now(), runErr)
	if err := e.store.Runs.Update(run); err != nil {
		logger.Error("failed to record run outcome", "error", err)
	}

	if runErr != nil {
		logger.Error("run failed", "error", runErr)
		return run, runErr
	}
	logger.Info("run finished", "tracks", run.TracksProcessed, "snapshot", run.SnapshotID)
	return run, nil
}

func (e *PlaylistEngine) execute(ctx context.Context, cfg *models.DynamicPlaylistConfig, run *models.RunHistory, progress chan<- ProgressUpdate) error {
	res, err := e.Compute(ctx, cfg, progress)
	if err != nil {
		return err
	}
	run.TracksProcessed = len(res.FinalTracks)

	cs := res.ChangeSet
	if cs.Empty() {
		return nil
	}
	if err := e.store.ChangeSets.Create(cs); err != nil {
		return fmt.Errorf("failed to store change set: %w", err)
	}
	run.ChangeSetID = cs.ID

	e.sendProgress(progress, writeTracksUpdate(cfg.TargetPlaylistID, len(res.FinalTracks)))
	applied, err := e.apply(ctx, cs, cs.ChangeIDs())
	if applied != nil {
		if applied.Snapshot != nil {
			run.SnapshotID = applied.Snapshot.ID
		}
		run.WarningMessage = strings.Join(warnings(res.Warnings, applied.Warning), "; ")
	}
	if err != nil {
		return err
	}

	cs.State = models.StateApplied
	if err := e.store.ChangeSets.Update(cs); err != nil {
		return fmt.Errorf("failed to close change set: %w", err)
	}
	return nil
}

// ReconcileInterrupted drops stale run locks and fails every running run whose config no longer
// holds a lock. Runs owned by another live process are left alone. Called once at startup before
// any trigger fires.
func (e *PlaylistEngine) ReconcileInterrupted() (int64, error) {
	if _, err := e.store.Locks.ClearStale(e.now(), e.stale); err != nil {
		return 0, err
	}
	n, err := e.store.Runs.MarkInterrupted(e.now(), "interrupted")
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.logger.Warn("closed interrupted runs", "count", n)
	}
	return n, nil
}

func warnings(list []string, extra ...string) []string {
	out := make([]string, 0, len(list)+len(extra))
	seen := make(map[string]bool)
	for _, w := range slices.Concat(list, extra) {
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
