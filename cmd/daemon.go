package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/plx/internal/formatter"
	"github.com/desertthunder/plx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Scan cleans up several playlists in one pass until done or interrupted.
//
// SIGINT stops the scan between playlists; playlists already applied stay applied.
func (r *Runner) Scan(ctx context.Context, cmd *cli.Command) error {
	opts, err := processingOptions(cmd)
	if err != nil {
		return err
	}
	ids, err := playlistIDs(cmd.StringSlice("playlists"))
	if err != nil {
		return err
	}

	engine, err := r.requireEngine(ctx)
	if err != nil {
		return err
	}

	if len(ids) == 0 {
		playlists, err := r.catalog.GetPlaylists(ctx)
		if err != nil {
			return fmt.Errorf("failed to list playlists: %w", err)
		}
		for _, p := range playlists {
			ids = append(ids, p.ID)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.ScanPlaylist:
				r.writePlain("%s\n", update.Message)
			default:
				r.logger.Debug(update.Message, "phase", update.Phase)
			}
		}
	}()

	res, err := engine.Scan(ctx, ids, tasks.ScanOpts{
		Processing: opts,
		Apply:      cmd.Bool("apply"),
		RateLimit:  cmd.Float("rate"),
	}, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	r.writePlain("\n")
	return r.writeBytes(formatter.ScanReport(res))
}

// Daemon runs the scheduler loop until SIGINT or SIGTERM.
func (r *Runner) Daemon(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.requireEngine(ctx)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := r.scheduler(engine)
	upcoming, err := sched.Upcoming(5)
	if err == nil && len(upcoming) > 0 {
		r.logger.Info("next scheduled run", "config", r.configNames()[upcoming[0].ConfigID], "at", upcoming[0].NextRun)
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}

	gate := r.requireGate()
	if status := gate.Status(); status.Trips > 0 {
		r.logger.Info("governor", "trips", status.Trips, "last", status.Kind)
	}
	return nil
}

// GovernorStatus prints the cooldown window shared by every plx process on the database.
func (r *Runner) GovernorStatus(ctx context.Context, cmd *cli.Command) error {
	gate := r.requireGate()
	return r.writeBytes(formatter.GovernorReport(gate.Status(), gate.LockThreshold(), r.now()))
}
