package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/plx/internal/models"
)

const (
	green = lipgloss.Color("#1DB954")
	red   = lipgloss.Color("#E22134")
	amber = lipgloss.Color("#FFA42B")
	blue  = lipgloss.Color("#509BF5")
	grey  = lipgloss.Color("#727272")
)

var styles = palette{
	title: fg(green).Bold(true).MarginBottom(1),
	ok:    fg(green).Bold(true),
	err:   fg(red).Bold(true),
	warn:  fg(amber),
	help:  fg(grey).Italic(true),
	kinds: map[models.ChangeKind]lipgloss.Style{
		models.ChangeReplace:          fg(blue).Bold(true),
		models.ChangeDuplicateRemoval: fg(amber).Bold(true),
		models.ChangeAdd:              fg(green).Bold(true),
		models.ChangeRemove:           fg(red).Bold(true),
	},
}

// palette holds the styles shared by every view.
type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	kinds map[models.ChangeKind]lipgloss.Style
}

// kind styles the label of a change.
func (p palette) kind(k models.ChangeKind) lipgloss.Style {
	if s, ok := p.kinds[k]; ok {
		return s
	}
	return p.help
}

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}
