package models

import (
	"fmt"
	"slices"
	"time"

	"github.com/desertthunder/plx/internal/shared"
)

// ChangeKind tags the variant of a [Change].
type ChangeKind string

const (
	ChangeReplace          ChangeKind = "replace"           // swap a track for a better version
	ChangeDuplicateRemoval ChangeKind = "duplicate_removal" // drop a redundant copy of a song
	ChangeAdd              ChangeKind = "add"               // add a computed track to the target
	ChangeRemove           ChangeKind = "remove"            // drop a target track absent from the computed list
)

// Change is one individually approvable mutation.
//
// Replace carries both Removed and Added. DuplicateRemoval and Remove carry Removed. Add carries Added.
// CurrentIndex points into [ChangeSet.Current] for changes touching an existing target track, or is -1.
type Change struct {
	ID           string     `json:"id"`
	Kind         ChangeKind `json:"kind"`
	Removed      *Track     `json:"removed,omitempty"`
	Added        *Track     `json:"added,omitempty"`
	CurrentIndex int        `json:"current_index"`
}

func (c Change) String() string {
	switch c.Kind {
	case ChangeReplace:
		return fmt.Sprintf("replace %s (%s) with %s (%s)", c.Removed, c.Removed.ReleaseDate, c.Added.Album, c.Added.ReleaseDate)
	case ChangeDuplicateRemoval:
		return fmt.Sprintf("remove duplicate %s", c.Removed)
	case ChangeAdd:
		return fmt.Sprintf("add %s", c.Added)
	case ChangeRemove:
		return fmt.Sprintf("remove %s", c.Removed)
	default:
		return string(c.Kind)
	}
}

// ProposedTrack is one position in the fully approved target list.
//
// AddID and ReplaceID reference the changes that put the track here. A rejected add drops the
// position; a rejected replace puts Original back in it.
type ProposedTrack struct {
	Track        Track  `json:"track"`
	Original     *Track `json:"original,omitempty"`
	CurrentIndex int    `json:"current_index"`
	AddID        string `json:"add_id,omitempty"`
	ReplaceID    string `json:"replace_id,omitempty"`
}

// Stats counts what each stage did during a run.
type Stats struct {
	SourceTracks      int `json:"source_tracks"`
	Filtered          int `json:"filtered"`
	DuplicatesRemoved int `json:"duplicates_removed"`
	VersionsReplaced  int `json:"versions_replaced"`
	Added             int `json:"added"`
	Removed           int `json:"removed"`
	FinalCount        int `json:"final_count"`
	LocalSkipped      int `json:"local_skipped"`
}

// ChangeSetState tracks a change set through review.
type ChangeSetState string

const (
	StateAwaitingApproval ChangeSetState = "awaiting_approval"
	StateApplied          ChangeSetState = "applied"
	StateCancelled        ChangeSetState = "cancelled"
)

// ChangeSet is the reviewable diff between a target playlist and the computed list.
type ChangeSet struct {
	ID         string          `json:"id"`
	ConfigID   string          `json:"config_id,omitempty"`
	PlaylistID string          `json:"playlist_id"`
	State      ChangeSetState  `json:"state"`
	Current    []Track         `json:"current"`
	Proposed   []ProposedTrack `json:"proposed"`
	Changes    []Change        `json:"changes"`
	Stats      Stats           `json:"stats"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (cs *ChangeSet) GetID() string { return cs.ID }

func (cs *ChangeSet) Validate() error {
	if cs.PlaylistID == "" {
		return fmt.Errorf("%w: change set without playlist id", shared.ErrValidation)
	}
	switch cs.State {
	case StateAwaitingApproval, StateApplied, StateCancelled:
	default:
		return fmt.Errorf("%w: unknown change set state %q", shared.ErrValidation, cs.State)
	}
	return nil
}

// Change returns the change with the given id.
func (cs *ChangeSet) Change(id string) (Change, bool) {
	for _, c := range cs.Changes {
		if c.ID == id {
			return c, true
		}
	}
	return Change{}, false
}

// ChangeIDs lists every change id in order.
func (cs *ChangeSet) ChangeIDs() []string {
	ids := make([]string, len(cs.Changes))
	for i, c := range cs.Changes {
		ids[i] = c.ID
	}
	return ids
}

// Empty reports whether the change set proposes nothing and keeps the current order.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Changes) == 0 && slices.Equal(URIs(cs.Current), URIs(cs.Final()))
}

// Final returns the target list with every change approved.
func (cs *ChangeSet) Final() []Track {
	return cs.Resolve(cs.ChangeIDs())
}

// Resolve computes the target list when only the approved changes are applied.
//
// Rejected removals are re-inserted after the nearest preceding current track that survives, or at
// the head of the list when none does.
func (cs *ChangeSet) Resolve(approved []string) []Track {
	ok := make(map[string]bool, len(approved))
	for _, id := range approved {
		ok[id] = true
	}

	proposedAt := make(map[int]int, len(cs.Proposed))
	for i, p := range cs.Proposed {
		if p.CurrentIndex >= 0 {
			proposedAt[p.CurrentIndex] = i
		}
	}

	removals := make([]Change, 0)
	for _, c := range cs.Changes {
		if (c.Kind == ChangeRemove || c.Kind == ChangeDuplicateRemoval) && !ok[c.ID] && c.Removed != nil {
			removals = append(removals, c)
		}
	}
	slices.SortStableFunc(removals, func(a, b Change) int { return a.CurrentIndex - b.CurrentIndex })

	inserts := make(map[int][]Track)
	for _, c := range removals {
		anchor := -1
		for j := c.CurrentIndex - 1; j >= 0; j-- {
			if at, found := proposedAt[j]; found {
				anchor = at
				break
			}
		}
		inserts[anchor] = append(inserts[anchor], *c.Removed)
	}

	final := make([]Track, 0, len(cs.Proposed)+len(removals))
	final = append(final, inserts[-1]...)
	for i, p := range cs.Proposed {
		switch {
		case p.AddID != "" && !ok[p.AddID]:
		case p.ReplaceID != "" && !ok[p.ReplaceID] && p.Original != nil:
			final = append(final, *p.Original)
		default:
			final = append(final, p.Track)
		}
		final = append(final, inserts[i]...)
	}
	return final
}

// ComputedResult is the pure output of running the pipeline against current remote state.
type ComputedResult struct {
	TargetPlaylistID string     `json:"target_playlist_id"`
	FinalTracks      []Track    `json:"final_tracks"`
	ChangeSet        *ChangeSet `json:"change_set"`
	Stats            Stats      `json:"stats"`
	Warnings         []string   `json:"warnings,omitempty"`
}
