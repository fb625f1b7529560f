package formatter

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/plx/internal/governor"
	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/tasks"
	"github.com/dustin/go-humanize"
)

// Names maps config ids to display names. Missing ids print as the id.
type Names map[string]string

func (n Names) get(id string) string {
	if name, ok := n[id]; ok && name != "" {
		return name
	}
	return id
}

// RelTime renders t relative to now ("3 hours ago", "2 minutes from now").
func RelTime(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

// ChangeSetReport lists a change set's numbered changes followed by its stats.
func ChangeSetReport(cs *models.ChangeSet) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Change set %s for playlist %s (%s)\n", cs.ID, cs.PlaylistID, cs.State)
	if len(cs.Changes) == 0 {
		buf.WriteString("No changes.\n")
	} else {
		fmt.Fprintf(&buf, "%d changes:\n", len(cs.Changes))
		for i, c := range cs.Changes {
			fmt.Fprintf(&buf, "%3d. [%s] %s\n", i+1, c.ID, c)
		}
	}
	buf.WriteString("\n")
	buf.Write(StatsReport(cs.Stats))
	return buf.Bytes()
}

// StatsReport prints the non-zero stage counters.
func StatsReport(s models.Stats) []byte {
	var buf bytes.Buffer
	rows := []struct {
		label string
		n     int
	}{
		{"Source tracks", s.SourceTracks},
		{"Filtered", s.Filtered},
		{"Duplicates removed", s.DuplicatesRemoved},
		{"Versions replaced", s.VersionsReplaced},
		{"Added", s.Added},
		{"Removed", s.Removed},
		{"Local files skipped", s.LocalSkipped},
	}
	for _, row := range rows {
		if row.n > 0 {
			fmt.Fprintf(&buf, "%-20s %s\n", row.label+":", humanize.Comma(int64(row.n)))
		}
	}
	fmt.Fprintf(&buf, "%-20s %s\n", "Final count:", humanize.Comma(int64(s.FinalCount)))
	return buf.Bytes()
}

// ResultReport renders a computed result with its change set and warnings.
func ResultReport(r *models.ComputedResult) []byte {
	var buf bytes.Buffer
	if r.ChangeSet != nil {
		buf.Write(ChangeSetReport(r.ChangeSet))
	} else {
		buf.Write(StatsReport(r.Stats))
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&buf, "warning: %s\n", w)
	}
	return buf.Bytes()
}

// ApplyReport summarizes an apply.
func ApplyReport(r *tasks.ApplyResult) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Applied %d of %d changes to %s\n", r.Approved, len(r.ChangeSet.Changes), r.ChangeSet.PlaylistID)
	if r.Snapshot != nil {
		fmt.Fprintf(&buf, "Snapshot: %s (restore with: plx restore %s)\n", r.Snapshot.ID, r.Snapshot.ID)
	}
	if r.Ignored > 0 {
		fmt.Fprintf(&buf, "Rejected changes remembered: %d\n", r.Ignored)
	}
	if r.LocalSkipped > 0 {
		fmt.Fprintf(&buf, "Local files left untouched: %d\n", r.LocalSkipped)
	}
	if r.Warning != "" {
		fmt.Fprintf(&buf, "warning: %s\n", r.Warning)
	}
	return buf.Bytes()
}

// RunsReport lists run history newest first.
func RunsReport(runs []*models.RunHistory, names Names, now time.Time) []byte {
	var buf bytes.Buffer
	if len(runs) == 0 {
		buf.WriteString("No runs recorded.\n")
		return buf.Bytes()
	}

	for _, run := range runs {
		took := "running"
		if run.FinishedAt != nil {
			took = run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(&buf, "#%-4d %-8s %-8s %-20s %s (%s, %s tracks)\n",
			run.Sequence, run.Status, run.TriggeredBy, names.get(run.ConfigID),
			RelTime(run.StartedAt, now), took, humanize.Comma(int64(run.TracksProcessed)))
		if run.ErrorMessage != "" {
			fmt.Fprintf(&buf, "      error: %s\n", run.ErrorMessage)
		}
		if run.WarningMessage != "" {
			fmt.Fprintf(&buf, "      warning: %s\n", run.WarningMessage)
		}
		if run.SnapshotID != "" {
			fmt.Fprintf(&buf, "      snapshot: %s\n", run.SnapshotID)
		}
	}
	return buf.Bytes()
}

// FrequencyFunc describes a cron expression in words.
type FrequencyFunc func(expr string) string

// SchedulesReport lists schedules with their next and last activations.
func SchedulesReport(schedules []*models.Schedule, names Names, describe FrequencyFunc, now time.Time) []byte {
	var buf bytes.Buffer
	if len(schedules) == 0 {
		buf.WriteString("No schedules.\n")
		return buf.Bytes()
	}

	for _, s := range schedules {
		state := "enabled"
		if !s.Enabled {
			state = "disabled"
		}
		desc := s.CronExpression
		if describe != nil {
			desc = fmt.Sprintf("%s (%s)", s.CronExpression, describe(s.CronExpression))
		}
		fmt.Fprintf(&buf, "%s  %-20s %-8s %s\n", s.ID, names.get(s.ConfigID), state, desc)

		next, last := "-", "never"
		if s.NextRun != nil {
			next = RelTime(*s.NextRun, now)
		}
		if s.LastRun != nil {
			last = RelTime(*s.LastRun, now)
		}
		fmt.Fprintf(&buf, "      next: %s, last: %s\n", next, last)
	}
	return buf.Bytes()
}

// SnapshotsReport lists snapshots newest first.
func SnapshotsReport(snapshots []*models.Snapshot, now time.Time) []byte {
	var buf bytes.Buffer
	if len(snapshots) == 0 {
		buf.WriteString("No snapshots.\n")
		return buf.Bytes()
	}
	for _, s := range snapshots {
		fmt.Fprintf(&buf, "%s  %-12s %s tracks  %s", s.ID, RelTime(s.CreatedAt, now), humanize.Comma(int64(len(s.URIs))), s.PlaylistID)
		if s.Description != "" {
			fmt.Fprintf(&buf, "  %s", s.Description)
		}
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

// IgnoresReport lists remembered rejections.
func IgnoresReport(entries []*models.IgnoreEntry) []byte {
	var buf bytes.Buffer
	if len(entries) == 0 {
		buf.WriteString("Ignore list is empty.\n")
		return buf.Bytes()
	}
	for _, e := range entries {
		fmt.Fprintf(&buf, "%-9s %-40s %-24s %s\n", e.Kind, e.Key.Title, e.Key.Artist, e.CandidateID)
	}
	return buf.Bytes()
}

// ScanReport summarizes a multi-playlist scan.
func ScanReport(r *tasks.ScanResult) []byte {
	var buf bytes.Buffer
	for _, pr := range r.Results {
		name := pr.PlaylistName
		if name == "" {
			name = pr.PlaylistID
		}
		switch {
		case pr.Error != nil:
			fmt.Fprintf(&buf, "✗ %s: %v\n", name, pr.Error)
		case pr.Changes() == 0:
			fmt.Fprintf(&buf, "· %s: no changes\n", name)
		case pr.Applied != nil:
			fmt.Fprintf(&buf, "✓ %s: %d changes applied\n", name, pr.Changes())
		default:
			fmt.Fprintf(&buf, "• %s: %d changes pending in %s\n", name, pr.Changes(), pr.Result.ChangeSet.ID)
		}
	}

	summary := []string{
		fmt.Sprintf("%d playlists", r.Total),
		fmt.Sprintf("%d changed", r.Changed),
		fmt.Sprintf("%d unchanged", r.Unchanged),
	}
	if r.Failed > 0 {
		summary = append(summary, fmt.Sprintf("%d failed", r.Failed))
	}
	fmt.Fprintf(&buf, "\n%s\n", strings.Join(summary, ", "))
	if r.Cancelled {
		buf.WriteString("Scan cancelled before every playlist was visited.\n")
	}
	return buf.Bytes()
}

// CooldownNotice explains an open rate limit window to the user. It is empty when no window is open.
func CooldownNotice(s governor.Status, now time.Time) string {
	switch s.Kind {
	case governor.Lock:
		return fmt.Sprintf("Spotify suspended this credential until %s (%s); re-authorize with 'plx auth' or wait",
			s.Until.UTC().Format(time.RFC3339), RelTime(s.Until, now))
	case governor.LocalCooldown:
		return fmt.Sprintf("Spotify is throttling requests, resuming in %s", s.Remaining(now).Round(time.Second))
	default:
		return ""
	}
}

// GovernorReport describes the rate-limit gate.
func GovernorReport(s governor.Status, threshold time.Duration, now time.Time) []byte {
	var buf bytes.Buffer
	if !s.Active(now) {
		fmt.Fprintf(&buf, "No active cooldown (%d rate limits seen).\n", s.Trips)
		return buf.Bytes()
	}

	fmt.Fprintf(&buf, "Cooldown: %s\n", s.Kind)
	fmt.Fprintf(&buf, "Retry-After: %s (lock threshold %s)\n", s.RetryAfter, threshold)
	fmt.Fprintf(&buf, "Detected: %s\n", RelTime(s.DetectedAt, now))
	fmt.Fprintf(&buf, "Remaining: %s (until %s)\n", s.Remaining(now).Round(time.Second), s.Until.Format(time.RFC3339))
	return buf.Bytes()
}
