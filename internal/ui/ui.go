package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/pipeline"
	"github.com/desertthunder/plx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoadingView ViewState = iota
	ReviewView
	ConfirmView
	DoneView
)

// LoadFunc computes the result to review, reporting progress on the channel.
type LoadFunc func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*models.ComputedResult, error)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	load         LoadFunc
	width        int
	height       int
	changeList   list.Model
	items        []changeItem
	changeSet    *models.ChangeSet
	result       *models.ComputedResult
	progressChan chan tasks.ProgressUpdate
	done         chan resultLoaded
	progress     tasks.ProgressUpdate
	searched     int
	found        int
	confirmed    bool
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a model that runs load before showing the review.
func NewModel(ctx context.Context, load LoadFunc) *Model {
	return &Model{
		ctx:  ctx,
		view: LoadingView,
		load: load,
		help: help.New(),
		keys: newKeyMap(),
	}
}

// NewReviewModel creates a model reviewing an existing change set.
func NewReviewModel(ctx context.Context, cs *models.ChangeSet) *Model {
	m := NewModel(ctx, nil)
	m.setChangeSet(cs)
	return m
}

// Review runs the TUI until the user confirms or quits.
func Review(ctx context.Context, m *Model, opts ...tea.ProgramOption) (*Model, error) {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	final, err := tea.NewProgram(m, opts...).Run()
	if err != nil {
		return m, fmt.Errorf("review failed: %w", err)
	}
	return final.(*Model), nil
}

// Approved lists the ids of the changes left toggled on, in change order.
func (m *Model) Approved() []string {
	ids := make([]string, 0, len(m.items))
	for _, it := range m.items {
		if it.approved {
			ids = append(ids, it.change.ID)
		}
	}
	return ids
}

// Confirmed reports whether the user chose to apply.
func (m *Model) Confirmed() bool { return m.confirmed }

// ChangeSet returns the change set under review, nil until loaded.
func (m *Model) ChangeSet() *models.ChangeSet { return m.changeSet }

// Result returns the loaded result when the model was created with a [LoadFunc].
func (m *Model) Result() *models.ComputedResult { return m.result }

// Err returns the load error, if any.
func (m *Model) Err() error { return m.err }

// Init starts the load when there is one.
func (m *Model) Init() tea.Cmd {
	if m.load == nil {
		return nil
	}
	return m.startLoad()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.items != nil {
			m.changeList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case LoadingView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case ReviewView:
			return m.handleReviewKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case DoneView:
			return m, tea.Quit
		}

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	if m.view == ReviewView || m.view == ConfirmView {
		m.changeList, cmd = m.changeList.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.progress = update
		if ev, ok := update.Data.(pipeline.VersionEvent); ok {
			switch ev.Kind {
			case pipeline.EventSearched:
				m.searched++
			case pipeline.EventFound:
				m.found++
			}
		}
		return m, m.waitForProgress()

	case MsgResultLoaded:
		loaded := msg.data.(resultLoaded)
		m.progressChan, m.done = nil, nil
		if loaded.err != nil {
			m.err = loaded.err
			m.view = DoneView
			return m, nil
		}
		m.result = loaded.result
		if loaded.result == nil {
			m.view = DoneView
			return m, nil
		}
		m.setChangeSet(loaded.result.ChangeSet)
		return m, nil
	}
	return m, nil
}

func (m *Model) setChangeSet(cs *models.ChangeSet) {
	m.changeSet = cs
	if cs == nil || len(cs.Changes) == 0 {
		m.view = DoneView
		return
	}

	m.items = make([]changeItem, len(cs.Changes))
	listItems := make([]list.Item, len(cs.Changes))
	for i, c := range cs.Changes {
		m.items[i] = changeItem{change: c, approved: true}
		listItems[i] = m.items[i]
	}
	m.changeList = list.New(listItems, list.NewDefaultDelegate(), 0, 0)
	m.changeList.Title = fmt.Sprintf("Changes for %s", cs.PlaylistID)
	m.changeList.SetFilteringEnabled(false)
	m.changeList.SetShowHelp(false)
	if m.width > 0 {
		m.changeList.SetSize(m.width-4, m.height-8)
	}
	m.view = ReviewView
}

func (m *Model) handleReviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggle):
		i := m.changeList.Index()
		if i >= 0 && i < len(m.items) {
			m.items[i].approved = !m.items[i].approved
			return m, m.changeList.SetItem(i, m.items[i])
		}
		return m, nil
	case key.Matches(msg, m.keys.all):
		return m, m.setAll(true)
	case key.Matches(msg, m.keys.none):
		return m, m.setAll(false)
	case key.Matches(msg, m.keys.enter):
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.changeList, cmd = m.changeList.Update(msg)
	return m, cmd
}

func (m *Model) setAll(approved bool) tea.Cmd {
	listItems := make([]list.Item, len(m.items))
	for i := range m.items {
		m.items[i].approved = approved
		listItems[i] = m.items[i]
	}
	return m.changeList.SetItems(listItems)
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.confirmed = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = ReviewView
		return m, nil
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) startLoad() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.done = make(chan resultLoaded, 1)
	progress, done := m.progressChan, m.done

	go func() {
		result, err := m.load(m.ctx, progress)
		done <- resultLoaded{result, err}
		close(progress)
	}()

	return m.waitForProgress()
}

// waitForProgress relays one progress update, or the loaded result once the channel closes.
func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.done
	return func() tea.Msg {
		update, ok := <-progress
		if !ok {
			loaded := <-done
			return resultLoadedMsg(loaded.result, loaded.err)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) View() string {
	switch m.view {
	case LoadingView:
		return m.renderLoading()
	case ReviewView:
		return m.renderReview()
	case ConfirmView:
		return m.renderConfirm()
	default:
		return m.renderDone()
	}
}

func (m *Model) renderLoading() string {
	title := styles.title.Render("Computing changes")
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", title, m.progress.Message)
	if m.searched > 0 {
		fmt.Fprintf(&b, "\n%d searched, %d better versions found\n", m.searched, m.found)
	}
	b.WriteString("\n" + m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	return b.String()
}

func (m *Model) renderReview() string {
	approved := len(m.Approved())
	status := styles.help.Render(fmt.Sprintf("%d of %d changes approved", approved, len(m.items)))
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.toggle, m.keys.all, m.keys.none, m.keys.enter, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s", m.changeList.View(), status, helpView)
}

func (m *Model) renderConfirm() string {
	approved := len(m.Approved())
	title := styles.title.Render(fmt.Sprintf("Apply %d of %d changes to %s?", approved, len(m.items), m.changeSet.PlaylistID))
	info := "Rejected changes are remembered and will not be proposed again."
	if approved == 0 {
		info = styles.warn.Render("Nothing is approved: every change will be rejected and remembered.")
	}
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s", title, info, helpView)
}

func (m *Model) renderDone() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress any key to quit", m.err))
	}
	return styles.ok.Render("No changes to review.") + "\n\nPress any key to quit"
}
