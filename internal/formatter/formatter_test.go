package formatter

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/plx/internal/governor"
	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/shared"
	"github.com/desertthunder/plx/internal/tasks"
	tu "github.com/desertthunder/plx/internal/testing"
)

func sampleConfig(name string) *models.DynamicPlaylistConfig {
	return &models.DynamicPlaylistConfig{
		ID:               "cfg-" + name,
		Name:             name,
		TargetPlaylistID: "target",
		Sources: []models.Source{
			{Kind: models.SourcePlaylist, PlaylistID: "A"},
			{Kind: models.SourceLiked},
		},
		Filter:          models.FilterConfig{KeywordBlacklist: []string{"live"}},
		UpdateMode:      models.ModeMerge,
		SamplePerSource: 10,
		Processing: models.ProcessingOptions{
			Sort:           true,
			SortRules:      []models.SortRule{{Criterion: models.ByReleaseDate, Descending: true}},
			Dedupe:         true,
			DupePreference: models.KeepOldest,
		},
		Enabled: true,
	}
}

func TestConfigExchange(t *testing.T) {
	t.Run("export then import", func(t *testing.T) {
		data, err := ExportConfigs([]*models.DynamicPlaylistConfig{sampleConfig("one"), sampleConfig("two")})
		if err != nil {
			t.Fatalf("ExportConfigs failed: %v", err)
		}
		out := string(data)
		for _, want := range []string{"configs:", "name: one", "update_mode: merge", "criterion: release_date", "- live"} {
			if !strings.Contains(out, want) {
				t.Errorf("export missing %q:\n%s", want, out)
			}
		}
		if strings.Contains(out, "created_at") || strings.Contains(out, "sequence") {
			t.Errorf("export should not carry bookkeeping fields:\n%s", out)
		}

		configs, err := ImportConfigs(data)
		if err != nil {
			t.Fatalf("ImportConfigs failed: %v", err)
		}
		if len(configs) != 2 {
			t.Fatalf("expected 2 configs, got %d", len(configs))
		}
		got := configs[1]
		if got.ID != "" {
			t.Errorf("imported config should have its id cleared, got %q", got.ID)
		}
		if got.Name != "two" || got.UpdateMode != models.ModeMerge || len(got.Sources) != 2 || got.Sources[1].Kind != models.SourceLiked {
			t.Errorf("unexpected config: %+v", got)
		}
		if !got.Processing.Dedupe || got.Processing.DupePreference != models.KeepOldest {
			t.Errorf("processing options lost: %+v", got.Processing)
		}
	})

	t.Run("single document", func(t *testing.T) {
		doc := "name: solo\ntarget_playlist_id: T\nupdate_mode: replace\nsources:\n  - kind: playlist\n    playlist_id: A\n"
		configs, err := ImportConfigs([]byte(doc))
		if err != nil {
			t.Fatalf("ImportConfigs failed: %v", err)
		}
		if len(configs) != 1 || configs[0].Name != "solo" {
			t.Errorf("unexpected configs: %+v", configs)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name string
			doc  string
			want error
		}{
			{name: "malformed", doc: "configs: [", want: shared.ErrInvalidInput},
			{name: "empty", doc: "{}", want: shared.ErrInvalidInput},
			{name: "fails validation", doc: "configs:\n  - name: bad\n    target_playlist_id: T\n    update_mode: replace\n", want: shared.ErrValidation},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := ImportConfigs([]byte(tt.doc)); !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})

	t.Run("WriteConfigExport", func(t *testing.T) {
		tempDir := t.TempDir()
		originalDir := tu.MustGetwd(t)
		tu.MustChdir(t, tempDir)
		defer tu.MustChdir(t, originalDir)

		path, err := WriteConfigExport([]*models.DynamicPlaylistConfig{sampleConfig("one")}, "")
		if err != nil {
			t.Fatalf("WriteConfigExport failed: %v", err)
		}
		if path != DefaultConfigFile {
			t.Errorf("expected default path, got %s", path)
		}
		tu.AssertFileExists(t, filepath.Join(tempDir, path))

		configs, err := ReadConfigImport(path)
		if err != nil || len(configs) != 1 {
			t.Errorf("expected to read back one config, got %v, %v", configs, err)
		}

		if _, err := ReadConfigImport(filepath.Join(tempDir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected not-exist error, got %v", err)
		}
	})
}

func TestExportToCSV(t *testing.T) {
	tracks := []models.Track{
		{URI: "spotify:track:1", Title: "Song One", Artists: []string{"Artist One", "Guest"}, Album: "Album", ReleaseDate: models.ParseReleaseDate("2019-04"), DurationMS: 185000},
		{URI: "spotify:local:x", Title: "Demo"},
	}
	data, err := ExportToCSV(tracks)
	if err != nil {
		t.Fatalf("ExportToCSV failed: %v", err)
	}
	out := string(data)
	if !strings.HasPrefix(out, "URI,Title,Artist,Album,Release Date,Duration\n") {
		t.Errorf("CSV missing headers, got: %s", out)
	}
	if !strings.Contains(out, `spotify:track:1,Song One,"Artist One, Guest",Album,2019-04,3:05`) {
		t.Errorf("unexpected first record: %s", out)
	}
	if !strings.Contains(out, "spotify:local:x,Demo,,,,-") {
		t.Errorf("unexpected local record: %s", out)
	}
}

func TestReports(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := models.Track{ID: "a", URI: "spotify:track:a", Title: "Alpha", Artists: []string{"X"}}

	t.Run("ChangeSetReport", func(t *testing.T) {
		cs := &models.ChangeSet{
			ID:         "cs1",
			PlaylistID: "T",
			State:      models.StateAwaitingApproval,
			Changes:    []models.Change{{ID: "c1", Kind: models.ChangeRemove, Removed: &a, CurrentIndex: 0}},
			Stats:      models.Stats{Removed: 1, FinalCount: 1200},
		}
		out := string(ChangeSetReport(cs))
		for _, want := range []string{"Change set cs1 for playlist T (awaiting_approval)", "1. [c1] remove X - Alpha", "Removed:", "1,200"} {
			if !strings.Contains(out, want) {
				t.Errorf("report missing %q:\n%s", want, out)
			}
		}
		if strings.Contains(out, "Added:") {
			t.Errorf("zero counters should be omitted:\n%s", out)
		}
	})

	t.Run("ResultReport warnings", func(t *testing.T) {
		out := string(ResultReport(&models.ComputedResult{Warnings: []string{"1 local file skipped"}}))
		if !strings.Contains(out, "warning: 1 local file skipped") || !strings.Contains(out, "Final count:") {
			t.Errorf("unexpected report:\n%s", out)
		}
	})

	t.Run("RunsReport", func(t *testing.T) {
		finished := now.Add(-3*time.Hour + 1500*time.Millisecond)
		runs := []*models.RunHistory{
			{Sequence: 2, ConfigID: "c", Status: models.RunFailed, TriggeredBy: models.TriggerSchedule, StartedAt: now.Add(-3 * time.Hour), FinishedAt: &finished, ErrorMessage: "boom"},
			{Sequence: 1, ConfigID: "other", Status: models.RunRunning, TriggeredBy: models.TriggerManual, StartedAt: now.Add(-2 * time.Minute)},
		}
		out := string(RunsReport(runs, Names{"c": "mix"}, now))
		for _, want := range []string{"#2", "failed", "mix", "3 hours ago", "1.5s", "error: boom", "other", "running"} {
			if !strings.Contains(out, want) {
				t.Errorf("report missing %q:\n%s", want, out)
			}
		}
		if got := string(RunsReport(nil, nil, now)); got != "No runs recorded.\n" {
			t.Errorf("unexpected empty report %q", got)
		}
	})

	t.Run("SchedulesReport", func(t *testing.T) {
		next := now.Add(2 * time.Minute)
		schedules := []*models.Schedule{
			{ID: "s1", ConfigID: "c", CronExpression: "0 */6 * * *", Enabled: true, NextRun: &next},
			{ID: "s2", ConfigID: "c", CronExpression: "0 9 * * *"},
		}
		describe := func(string) string { return "described" }
		out := string(SchedulesReport(schedules, Names{"c": "mix"}, describe, now))
		for _, want := range []string{"s1", "0 */6 * * * (described)", "next: 2 minutes from now, last: never", "disabled"} {
			if !strings.Contains(out, want) {
				t.Errorf("report missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("SnapshotsReport", func(t *testing.T) {
		snaps := []*models.Snapshot{{ID: "snap1", PlaylistID: "T", URIs: make([]string, 1500), Description: "before apply", CreatedAt: now.Add(-time.Hour)}}
		out := string(SnapshotsReport(snaps, now))
		if !strings.Contains(out, "1,500 tracks") || !strings.Contains(out, "1 hour ago") || !strings.Contains(out, "before apply") {
			t.Errorf("unexpected report:\n%s", out)
		}
	})

	t.Run("ApplyReport", func(t *testing.T) {
		r := &tasks.ApplyResult{
			ChangeSet: &models.ChangeSet{PlaylistID: "T", Changes: make([]models.Change, 3)},
			Snapshot:  &models.Snapshot{ID: "snap1"},
			Approved:  2,
			Ignored:   1,
		}
		out := string(ApplyReport(r))
		for _, want := range []string{"Applied 2 of 3 changes to T", "plx restore snap1", "remembered: 1"} {
			if !strings.Contains(out, want) {
				t.Errorf("report missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("ScanReport", func(t *testing.T) {
		r := &tasks.ScanResult{
			Total: 2, Unchanged: 1, Failed: 1, Cancelled: true,
			Results: []tasks.PlaylistScanResult{
				{PlaylistID: "p1", PlaylistName: "First", Result: &models.ComputedResult{}},
				{PlaylistID: "p2", Error: shared.ErrPlaylistNotFound},
			},
		}
		out := string(ScanReport(r))
		for _, want := range []string{"First: no changes", "p2:", "2 playlists, 0 changed, 1 unchanged, 1 failed", "cancelled"} {
			if !strings.Contains(out, want) {
				t.Errorf("report missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("GovernorReport", func(t *testing.T) {
		idle := string(GovernorReport(governor.Status{Kind: governor.None, Trips: 2}, 2*time.Minute, now))
		if !strings.Contains(idle, "No active cooldown (2 rate limits seen)") {
			t.Errorf("unexpected idle report %q", idle)
		}

		active := governor.Status{Kind: governor.Lock, RetryAfter: time.Hour, DetectedAt: now.Add(-10 * time.Minute), Until: now.Add(50 * time.Minute)}
		out := string(GovernorReport(active, 2*time.Minute, now))
		for _, want := range []string{"Cooldown: lock", "Remaining: 50m0s", "10 minutes ago"} {
			if !strings.Contains(out, want) {
				t.Errorf("report missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("CooldownNotice", func(t *testing.T) {
		lock := governor.Status{Kind: governor.Lock, Until: now.Add(5 * time.Hour)}
		if got := CooldownNotice(lock, now); !strings.Contains(got, "suspended this credential until") || !strings.Contains(got, "from now") {
			t.Errorf("unexpected lock notice %q", got)
		}
		throttle := governor.Status{Kind: governor.LocalCooldown, Until: now.Add(45 * time.Second)}
		if got := CooldownNotice(throttle, now); got != "Spotify is throttling requests, resuming in 45s" {
			t.Errorf("unexpected cooldown notice %q", got)
		}
		if got := CooldownNotice(governor.Status{Kind: governor.None}, now); got != "" {
			t.Errorf("expected no notice, got %q", got)
		}
	})
}

func TestFormatDuration(t *testing.T) {
	tests := map[int]string{0: "-", 999: "0:00", 61000: "1:01", 600000: "10:00"}
	for ms, want := range tests {
		if got := FormatDuration(ms); got != want {
			t.Errorf("FormatDuration(%d) = %q, want %q", ms, got, want)
		}
	}
}
