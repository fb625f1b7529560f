package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/plx/internal/models"
)

var _ list.Item = changeItem{}

// changeItem wraps [models.Change] with its approval toggle to implement [list.Item].
type changeItem struct {
	change   models.Change
	approved bool
}

func (i changeItem) FilterValue() string { return i.change.String() }

func (i changeItem) Title() string {
	mark := styles.err.Render("[ ]")
	if i.approved {
		mark = styles.ok.Render("[x]")
	}
	return fmt.Sprintf("%s %s", mark, styles.kind(i.change.Kind).Render(kindLabel(i.change.Kind)))
}

func (i changeItem) Description() string {
	c := i.change
	switch c.Kind {
	case models.ChangeReplace:
		return fmt.Sprintf("%s (%s, %s) → %s (%s)", c.Removed, c.Removed.Album, c.Removed.ReleaseDate, c.Added.Album, c.Added.ReleaseDate)
	case models.ChangeAdd:
		return c.Added.String()
	default:
		if c.Removed == nil {
			return ""
		}
		return fmt.Sprintf("%s • %s", c.Removed, c.Removed.Album)
	}
}

func kindLabel(k models.ChangeKind) string {
	switch k {
	case models.ChangeReplace:
		return "Replace with better version"
	case models.ChangeDuplicateRemoval:
		return "Remove duplicate"
	case models.ChangeAdd:
		return "Add"
	case models.ChangeRemove:
		return "Remove"
	default:
		return string(k)
	}
}
