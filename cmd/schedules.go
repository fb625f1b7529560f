package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/plx/internal/formatter"
	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/scheduler"
	"github.com/desertthunder/plx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SchedulesList prints enabled schedules by next activation, then disabled ones.
func (r *Runner) SchedulesList(ctx context.Context, cmd *cli.Command) error {
	store, err := r.requireStore()
	if err != nil {
		return err
	}

	schedules, err := r.scheduler(nil).Upcoming(0)
	if err != nil {
		return err
	}
	disabled, err := store.Schedules.List(map[string]any{"enabled": false})
	if err != nil {
		return err
	}
	schedules = append(schedules, disabled...)

	if cmd.Bool("json") {
		return r.writeJSON(schedules, cmd.Bool("pretty"))
	}
	return r.writeBytes(formatter.SchedulesReport(schedules, r.configNames(), describeCron, r.now()))
}

// SchedulesAdd schedules a config on a cron expression.
//
// The expression may be passed as one quoted argument or as five separate fields.
func (r *Runner) SchedulesAdd(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) < 2 {
		return fmt.Errorf("%w: config name or id and a cron expression", shared.ErrMissingArgument)
	}
	if _, err := r.requireStore(); err != nil {
		return err
	}

	expr := strings.Join(args[1:], " ")
	sched, err := r.scheduler(nil).Add(args[0], expr, !cmd.Bool("disabled"))
	if err != nil {
		return err
	}
	r.logger.Info("schedule created", "id", sched.ID, "cron", sched.CronExpression)
	return r.writeSchedule("Created", sched)
}

// SchedulesEdit replaces a schedule's cron expression.
func (r *Runner) SchedulesEdit(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	if len(args) < 2 {
		return fmt.Errorf("%w: schedule id and a cron expression", shared.ErrMissingArgument)
	}
	if _, err := r.requireStore(); err != nil {
		return err
	}

	sched, err := r.scheduler(nil).SetExpression(args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	return r.writeSchedule("Updated", sched)
}

// SchedulesRemove deletes a schedule.
func (r *Runner) SchedulesRemove(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("%w: schedule id", shared.ErrMissingArgument)
	}
	if _, err := r.requireStore(); err != nil {
		return err
	}
	if err := r.scheduler(nil).Remove(id); err != nil {
		return err
	}
	return r.writePlain("✓ Removed schedule %s\n", id)
}

func (r *Runner) SchedulesEnable(ctx context.Context, cmd *cli.Command) error {
	return r.toggleSchedule(cmd.Args().First(), true)
}

func (r *Runner) SchedulesDisable(ctx context.Context, cmd *cli.Command) error {
	return r.toggleSchedule(cmd.Args().First(), false)
}

func (r *Runner) toggleSchedule(id string, enabled bool) error {
	if id == "" {
		return fmt.Errorf("%w: schedule id", shared.ErrMissingArgument)
	}
	if _, err := r.requireStore(); err != nil {
		return err
	}

	sched, err := r.scheduler(nil).SetEnabled(id, enabled)
	if err != nil {
		return err
	}
	if enabled {
		return r.writeSchedule("Enabled", sched)
	}
	return r.writeSchedule("Disabled", sched)
}

func (r *Runner) writeSchedule(verb string, sched *models.Schedule) error {
	r.writePlain("✓ %s schedule %s: %s (%s)\n", verb, sched.ID, sched.CronExpression, describeCron(sched.CronExpression))
	if sched.NextRun != nil {
		r.writePlain("Next run: %s (%s)\n", sched.NextRun.Local().Format("2006-01-02 15:04"), formatter.RelTime(*sched.NextRun, r.now()))
	}
	return nil
}

// describeCron renders a cron expression as a simple frequency.
func describeCron(expr string) string {
	f := scheduler.Decompose(expr)
	if f.Lossy {
		return "custom"
	}
	return f.String()
}
