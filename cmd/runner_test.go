package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/repositories"
	"github.com/desertthunder/plx/internal/shared"
	tu "github.com/desertthunder/plx/internal/testing"
	"github.com/desertthunder/plx/internal/ui"
)

func tr(id, title, artist, date string) models.Track {
	return models.Track{
		ID:          id,
		URI:         "spotify:track:" + id,
		Title:       title,
		Artists:     []string{artist},
		Album:       title + " album",
		AlbumType:   "album",
		ReleaseDate: models.ParseReleaseDate(date),
	}
}

type harness struct {
	runner  *Runner
	output  *bytes.Buffer
	notices *bytes.Buffer
	catalog *tu.MockCatalog
	store   *repositories.Store
	config  string
	answer  bool
	asked   []string
}

// newHarness wires a runner over an in-memory store and a catalog with sources A and B and an empty target T.
func newHarness(t *testing.T) *harness {
	t.Helper()

	t1 := tr("t1", "Song", "Artist", "2020")
	t2 := tr("t2", "Song", "Artist", "2021")
	h := &harness{
		output:  &bytes.Buffer{},
		notices: &bytes.Buffer{},
		catalog: tu.NewMockCatalog(map[string][]models.Track{"A": {t1, t2}, "B": {t2}, "T": {}}),
		store:   repositories.NewStore(tu.NewTestDB(t)),
		config:  filepath.Join(t.TempDir(), "config.toml"),
	}
	h.runner = NewRunner(RunnerOpts{
		Config:  shared.DefaultConfig(),
		Catalog: h.catalog,
		Store:   h.store,
		Logger:  shared.NewLogger(io.Discard),
		Output:  h.output,
		Notices: h.notices,
		Confirm: func(title, description string) (bool, error) {
			h.asked = append(h.asked, title)
			return h.answer, nil
		},
		Spin: func(ctx context.Context, title string, action func(context.Context) error) error {
			return action(ctx)
		},
		Review: func(ctx context.Context, m *ui.Model) (*ui.Model, error) {
			for _, msg := range []tea.Msg{tea.KeyMsg{Type: tea.KeyEnter}, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")}} {
				m.Update(msg)
			}
			return m, nil
		},
	})
	return h
}

func (h *harness) run(args ...string) error {
	h.output.Reset()
	return newApp(h.runner).Run(context.Background(), append([]string{"plx", "--config", h.config}, args...))
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	if err := h.run(args...); err != nil {
		t.Fatalf("plx %s failed: %v", strings.Join(args, " "), err)
	}
	return h.output.String()
}

func (h *harness) createScenario(t *testing.T) {
	t.Helper()
	h.mustRun(t, "configs", "create",
		"--name", "scenario", "--target", "T", "--source", "A", "--source", "B",
		"--sample", "2", "--sort", "release_date:desc", "--dedupe", "newest")
}

func (h *harness) pending(t *testing.T) *models.ChangeSet {
	t.Helper()
	sets, err := h.store.ChangeSets.List(map[string]any{"state": models.StateAwaitingApproval})
	if err != nil || len(sets) == 0 {
		t.Fatalf("expected a pending change set, got %v (%v)", sets, err)
	}
	return sets[0]
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.loaded {
				t.Error("expected config to be loaded on first command")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.output != os.Stdout {
				t.Error("expected stdout")
			}
		})

		t.Run("with empty configPath", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.configPath != "config.toml" {
				t.Errorf("expected config.toml, got %q", runner.configPath)
			}
		})

		t.Run("builds the engine when catalog and store are provided", func(t *testing.T) {
			h := newHarness(t)

			if h.runner.engine == nil {
				t.Fatal("expected engine to be set")
			}
			if h.runner.engine.Store() != h.store {
				t.Error("expected engine to use the injected store")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			expected := `{"key":"value"}` + "\n"
			if result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			// channels cannot be marshaled to JSON
			data := make(chan int)
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			data := map[string]string{"key": "value"}
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("hello %s", "world")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("writes plain text without formatting", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("simple text")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "simple text" {
				t.Errorf("expected 'simple text', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := make([]string, 0, len(commands))
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names = append(names, cmd.Name)
		}
		for _, want := range []string{"setup", "auth", "configs", "run", "preview", "approve", "cancel", "restore",
			"snapshots", "schedules", "history", "ignores", "scan", "daemon", "governor"} {
			if !slices.Contains(names, want) {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})

	t.Run("before loads the config file and opens the database lazily", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.toml")
		config := shared.DefaultConfig()
		config.Database.Path = filepath.Join(dir, "plx.db")
		if err := shared.SaveConfig(path, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Logger: shared.NewLogger(io.Discard), Output: output})
		if err := newApp(runner).Run(context.Background(), []string{"plx", "--config", path, "configs", "list"}); err != nil {
			t.Fatalf("configs list failed: %v", err)
		}

		if runner.config.Database.Path != config.Database.Path {
			t.Errorf("expected database path %s, got %s", config.Database.Path, runner.config.Database.Path)
		}
		if !strings.Contains(output.String(), "No configs") {
			t.Errorf("expected empty listing, got %q", output.String())
		}
		if runner.db != nil {
			t.Error("expected database to be closed after the command")
		}
		tu.AssertFileExists(t, config.Database.Path)
	})

	t.Run("engine commands need a token", func(t *testing.T) {
		dir := t.TempDir()
		config := shared.DefaultConfig()
		config.Credentials.Spotify.ClientID = "id"
		config.Credentials.Spotify.ClientSecret = "secret"
		config.Credentials.Spotify.AccessToken = ""
		config.Credentials.Spotify.RefreshToken = ""
		config.Database.Path = filepath.Join(dir, "plx.db")

		runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard), Output: io.Discard})
		err := newApp(runner).Run(context.Background(), []string{"plx", "run", "anything"})
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}
