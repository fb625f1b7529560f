package pipeline

import (
	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/shared"
)

// Output is the processed track list handed to [Reconcile].
type Output struct {
	Tracks       []models.Track
	Replacements []Replacement // indices point into Tracks
	Duplicates   []Removal     // dropped by [Dedupe]; used to label removals
	Stats        models.Stats
}

// Reconcile diffs out against the target's current contents under mode.
//
//   - replace: the proposed list is out verbatim; target tracks not in out are removals and tracks
//     in out not in target are additions.
//   - merge: the target is kept as-is and tracks of out whose key is not yet present are appended.
//   - append: every track of out is appended after the target, duplicates allowed.
//
// Tracks are matched to target positions by uri, consuming one target instance per match.
func Reconcile(target []models.Track, out Output, mode models.UpdateMode) *models.ChangeSet {
	b := &diffBuilder{
		cs: &models.ChangeSet{
			State:   models.StateAwaitingApproval,
			Current: target,
			Stats:   out.Stats,
		},
		replaced: make(map[int]Replacement, len(out.Replacements)),
	}
	for _, r := range out.Replacements {
		b.replaced[r.Index] = r
	}

	switch mode {
	case models.ModeMerge:
		b.keepTarget(target)
		present := make(map[models.NormalizedKey]bool, len(target))
		for _, t := range target {
			present[t.Key()] = true
		}
		for i, t := range out.Tracks {
			if present[t.Key()] {
				continue
			}
			present[t.Key()] = true
			b.add(t, i)
		}
	case models.ModeAppend:
		b.keepTarget(target)
		for i, t := range out.Tracks {
			b.add(t, i)
		}
	default:
		b.replace(target, out)
	}

	cs := b.cs
	cs.Stats.Added, cs.Stats.Removed = 0, 0
	cs.Stats.FinalCount = len(cs.Proposed)
	for _, c := range cs.Changes {
		switch c.Kind {
		case models.ChangeAdd:
			cs.Stats.Added++
		case models.ChangeRemove, models.ChangeDuplicateRemoval:
			cs.Stats.Removed++
		}
	}
	return cs
}

type diffBuilder struct {
	cs       *models.ChangeSet
	replaced map[int]Replacement
}

func (b *diffBuilder) keepTarget(target []models.Track) {
	b.cs.Proposed = make([]models.ProposedTrack, 0, len(target))
	for i, t := range target {
		b.cs.Proposed = append(b.cs.Proposed, models.ProposedTrack{Track: t, CurrentIndex: i})
	}
}

func (b *diffBuilder) change(c models.Change) string {
	c.ID = shared.GenerateID()
	b.cs.Changes = append(b.cs.Changes, c)
	return c.ID
}

// add appends t as a new track, linking the version replacement that produced it when there is one.
func (b *diffBuilder) add(t models.Track, outIndex int) {
	added := t
	p := models.ProposedTrack{Track: t, CurrentIndex: -1}
	p.AddID = b.change(models.Change{Kind: models.ChangeAdd, Added: &added, CurrentIndex: -1})

	if r, ok := b.replaced[outIndex]; ok {
		original := r.Original
		p.Original = &original
		p.ReplaceID = b.change(models.Change{Kind: models.ChangeReplace, Removed: &original, Added: &added, CurrentIndex: -1})
	}
	b.cs.Proposed = append(b.cs.Proposed, p)
}

func (b *diffBuilder) replace(target []models.Track, out Output) {
	positions := make(map[string][]int, len(target))
	for i, t := range target {
		positions[t.URI] = append(positions[t.URI], i)
	}
	take := func(uri string) (int, bool) {
		queue := positions[uri]
		if len(queue) == 0 {
			return 0, false
		}
		positions[uri] = queue[1:]
		return queue[0], true
	}

	consumed := make(map[int]bool, len(target))
	b.cs.Proposed = make([]models.ProposedTrack, 0, len(out.Tracks))
	for i, t := range out.Tracks {
		if idx, ok := take(t.URI); ok {
			consumed[idx] = true
			b.cs.Proposed = append(b.cs.Proposed, models.ProposedTrack{Track: t, CurrentIndex: idx})
			continue
		}

		if r, ok := b.replaced[i]; ok {
			if idx, ok := take(r.Original.URI); ok {
				consumed[idx] = true
				original, added := target[idx], t
				id := b.change(models.Change{Kind: models.ChangeReplace, Removed: &original, Added: &added, CurrentIndex: idx})
				b.cs.Proposed = append(b.cs.Proposed, models.ProposedTrack{
					Track: t, Original: &original, CurrentIndex: idx, ReplaceID: id,
				})
				continue
			}
		}

		b.add(t, i)
	}

	dupes := make(map[string]int, len(out.Duplicates))
	for _, d := range out.Duplicates {
		dupes[d.Track.URI]++
	}
	for i, t := range target {
		if consumed[i] {
			continue
		}
		removed := t
		kind := models.ChangeRemove
		if dupes[t.URI] > 0 {
			dupes[t.URI]--
			kind = models.ChangeDuplicateRemoval
		}
		b.change(models.Change{Kind: kind, Removed: &removed, CurrentIndex: i})
	}
}
