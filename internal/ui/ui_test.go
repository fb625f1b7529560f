package ui

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/pipeline"
	"github.com/desertthunder/plx/internal/shared"
	"github.com/desertthunder/plx/internal/tasks"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	space = runes(" ")
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	down  = tea.KeyMsg{Type: tea.KeyDown}
)

func changeSet() *models.ChangeSet {
	old := models.Track{ID: "a", URI: "spotify:track:a", Title: "Song", Artists: []string{"X"}, Album: "Best Of", ReleaseDate: models.ParseReleaseDate("2015")}
	orig := models.Track{ID: "b", URI: "spotify:track:b", Title: "Song", Artists: []string{"X"}, Album: "Single", ReleaseDate: models.ParseReleaseDate("2009")}
	dup := models.Track{ID: "c", URI: "spotify:track:c", Title: "Other", Artists: []string{"Y"}}
	add := models.Track{ID: "d", URI: "spotify:track:d", Title: "New", Artists: []string{"Z"}}
	return &models.ChangeSet{
		ID:         "cs1",
		PlaylistID: "T",
		State:      models.StateAwaitingApproval,
		Changes: []models.Change{
			{ID: "c1", Kind: models.ChangeReplace, Removed: &old, Added: &orig, CurrentIndex: 0},
			{ID: "c2", Kind: models.ChangeDuplicateRemoval, Removed: &dup, CurrentIndex: 2},
			{ID: "c3", Kind: models.ChangeAdd, Added: &add, CurrentIndex: -1},
		},
	}
}

func send(m *Model, msgs ...tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	for _, msg := range msgs {
		_, cmd = m.Update(msg)
	}
	return cmd
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestReview(t *testing.T) {
	ctx := context.Background()

	t.Run("all changes start approved", func(t *testing.T) {
		m := NewReviewModel(ctx, changeSet())
		send(m, tea.WindowSizeMsg{Width: 100, Height: 40})
		if m.view != ReviewView {
			t.Fatalf("expected review view, got %v", m.view)
		}
		if got := m.Approved(); !slices.Equal(got, []string{"c1", "c2", "c3"}) {
			t.Errorf("expected every change approved, got %v", got)
		}
		view := m.View()
		if !strings.Contains(view, "3 of 3 changes approved") || !strings.Contains(view, "Replace with better version") {
			t.Errorf("unexpected view:\n%s", view)
		}
	})

	t.Run("toggle", func(t *testing.T) {
		m := NewReviewModel(ctx, changeSet())
		send(m, tea.WindowSizeMsg{Width: 100, Height: 40}, space, down, down, space)
		if got := m.Approved(); !slices.Equal(got, []string{"c2"}) {
			t.Errorf("expected only c2 approved, got %v", got)
		}

		send(m, space)
		if got := m.Approved(); !slices.Equal(got, []string{"c2", "c3"}) {
			t.Errorf("expected c3 toggled back on, got %v", got)
		}
	})

	t.Run("reject and approve all", func(t *testing.T) {
		m := NewReviewModel(ctx, changeSet())
		send(m, tea.WindowSizeMsg{Width: 100, Height: 40}, runes("x"))
		if got := m.Approved(); len(got) != 0 {
			t.Errorf("expected none approved, got %v", got)
		}
		send(m, runes("a"))
		if got := m.Approved(); len(got) != 3 {
			t.Errorf("expected all approved, got %v", got)
		}
	})

	t.Run("confirm", func(t *testing.T) {
		m := NewReviewModel(ctx, changeSet())
		send(m, tea.WindowSizeMsg{Width: 100, Height: 40}, space, enter)
		if m.view != ConfirmView {
			t.Fatalf("expected confirm view, got %v", m.view)
		}
		if !strings.Contains(m.View(), "Apply 2 of 3 changes to T?") {
			t.Errorf("unexpected confirm view:\n%s", m.View())
		}

		send(m, runes("n"))
		if m.view != ReviewView || m.Confirmed() {
			t.Fatalf("n should return to review without confirming")
		}

		cmd := send(m, enter, runes("y"))
		if !m.Confirmed() || !isQuit(cmd) {
			t.Errorf("y should confirm and quit")
		}
		if got := m.Approved(); !slices.Equal(got, []string{"c2", "c3"}) {
			t.Errorf("unexpected approved ids %v", got)
		}
	})

	t.Run("quit without confirming", func(t *testing.T) {
		m := NewReviewModel(ctx, changeSet())
		cmd := send(m, tea.WindowSizeMsg{Width: 100, Height: 40}, runes("q"))
		if !isQuit(cmd) || m.Confirmed() {
			t.Errorf("q should quit unconfirmed")
		}
	})

	t.Run("empty change set", func(t *testing.T) {
		m := NewReviewModel(ctx, &models.ChangeSet{ID: "cs", PlaylistID: "T"})
		if m.view != DoneView || !strings.Contains(m.View(), "No changes to review") {
			t.Errorf("expected done view, got %v", m.view)
		}
		if cmd := send(m, runes("z")); !isQuit(cmd) {
			t.Errorf("any key should quit the done view")
		}
	})
}

// drive runs commands synchronously until the model stops asking for more.
func drive(t *testing.T, m *Model) {
	t.Helper()
	cmd := m.Init()
	for i := 0; cmd != nil; i++ {
		if i > 100 {
			t.Fatal("load did not finish")
		}
		_, cmd = m.Update(cmd())
	}
}

func TestLoading(t *testing.T) {
	ctx := context.Background()

	t.Run("streams progress then reviews", func(t *testing.T) {
		cs := changeSet()
		load := func(_ context.Context, progress chan<- tasks.ProgressUpdate) (*models.ComputedResult, error) {
			progress <- tasks.ProgressUpdate{Phase: tasks.SearchVersions, Message: "searching", Data: pipeline.VersionEvent{Kind: pipeline.EventSearched}}
			progress <- tasks.ProgressUpdate{Phase: tasks.SearchVersions, Data: pipeline.VersionEvent{Kind: pipeline.EventFound}}
			return &models.ComputedResult{TargetPlaylistID: "T", ChangeSet: cs}, nil
		}

		m := NewModel(ctx, load)
		if m.view != LoadingView {
			t.Fatalf("expected loading view, got %v", m.view)
		}
		drive(t, m)

		if m.view != ReviewView {
			t.Fatalf("expected review view after load, got %v", m.view)
		}
		if m.searched != 1 || m.found != 1 {
			t.Errorf("expected version events counted, got searched=%d found=%d", m.searched, m.found)
		}
		if m.Result() == nil || m.ChangeSet() != cs {
			t.Errorf("loaded result not kept")
		}
	})

	t.Run("load error", func(t *testing.T) {
		load := func(context.Context, chan<- tasks.ProgressUpdate) (*models.ComputedResult, error) {
			return nil, shared.ErrPlaylistNotFound
		}
		m := NewModel(ctx, load)
		drive(t, m)
		if !errors.Is(m.Err(), shared.ErrPlaylistNotFound) || m.view != DoneView {
			t.Errorf("expected error in done view, got %v (%v)", m.Err(), m.view)
		}
		if !strings.Contains(m.View(), "Error:") {
			t.Errorf("unexpected view:\n%s", m.View())
		}
	})
}
