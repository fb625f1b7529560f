package pipeline

import (
	"slices"
	"testing"

	"github.com/desertthunder/plx/internal/models"
)

func kinds(cs *models.ChangeSet) map[models.ChangeKind]int {
	out := make(map[models.ChangeKind]int)
	for _, c := range cs.Changes {
		out[c.Kind]++
	}
	return out
}

func TestReconcileReplace(t *testing.T) {
	a := tr("a", "A", "x", "2020")
	b := tr("b", "B", "x", "2020")
	c := tr("c", "C", "x", "2020")
	d := tr("d", "D", "x", "2020")
	aSingle := withAlbumType(tr("a-single", "A", "x", "2019"), "single")

	target := []models.Track{a, b, c}
	out := Output{
		Tracks:       []models.Track{c, aSingle, d},
		Replacements: []Replacement{{Index: 1, Original: a, Version: aSingle}},
	}

	cs := Reconcile(target, out, models.ModeReplace)

	t.Run("final equals pipeline output", func(t *testing.T) {
		if got := ids(cs.Final()); !slices.Equal(got, ids(out.Tracks)) {
			t.Errorf("Final() = %v, want %v", got, ids(out.Tracks))
		}
	})

	t.Run("change kinds", func(t *testing.T) {
		k := kinds(cs)
		if k[models.ChangeReplace] != 1 || k[models.ChangeAdd] != 1 || k[models.ChangeRemove] != 1 {
			t.Errorf("kinds = %v", k)
		}
		if cs.Stats.Added != 1 || cs.Stats.Removed != 1 || cs.Stats.FinalCount != 3 {
			t.Errorf("stats = %+v", cs.Stats)
		}
		for _, ch := range cs.Changes {
			if ch.Kind == models.ChangeReplace && (ch.Removed.ID != "a" || ch.Added.ID != "a-single" || ch.CurrentIndex != 0) {
				t.Errorf("replace change = %+v", ch)
			}
		}
	})

	t.Run("rejecting everything restores current contents", func(t *testing.T) {
		got := ids(cs.Resolve(nil))
		if !slices.Equal(got, []string{"c", "a", "b"}) {
			t.Errorf("Resolve(nil) = %v", got)
		}
		if !slices.ContainsFunc(cs.Resolve(nil), func(t models.Track) bool { return t.ID == "b" }) {
			t.Error("rejected removal was lost")
		}
	})

	t.Run("removed dupes are labeled", func(t *testing.T) {
		withDupes := out
		withDupes.Duplicates = []Removal{{Track: b, Survivor: c}}
		k := kinds(Reconcile(target, withDupes, models.ModeReplace))
		if k[models.ChangeDuplicateRemoval] != 1 || k[models.ChangeRemove] != 0 {
			t.Errorf("kinds = %v", k)
		}
	})

	t.Run("identical output is empty", func(t *testing.T) {
		same := Reconcile(target, Output{Tracks: target}, models.ModeReplace)
		if !same.Empty() {
			t.Errorf("expected empty change set, got %v", same.Changes)
		}
		reordered := Reconcile(target, Output{Tracks: []models.Track{c, b, a}}, models.ModeReplace)
		if reordered.Empty() || len(reordered.Changes) != 0 {
			t.Errorf("reorder should be non-empty with no changes, got %d changes", len(reordered.Changes))
		}
	})

	t.Run("repeated uris consume one target instance each", func(t *testing.T) {
		twice := Reconcile([]models.Track{a, a}, Output{Tracks: []models.Track{a}}, models.ModeReplace)
		k := kinds(twice)
		if k[models.ChangeRemove] != 1 {
			t.Errorf("kinds = %v", k)
		}
		if got := ids(twice.Final()); !slices.Equal(got, []string{"a"}) {
			t.Errorf("Final() = %v", got)
		}
	})
}

func TestReconcileMergeAndAppend(t *testing.T) {
	a := tr("a", "A", "x", "2020")
	b := tr("b", "B", "x", "2020")
	bAlt := tr("b-alt", "B", "x", "2010")
	c := tr("c", "C", "x", "2020")

	target := []models.Track{a, b}
	out := Output{Tracks: []models.Track{bAlt, c}}

	t.Run("merge keeps target and appends new keys", func(t *testing.T) {
		cs := Reconcile(target, out, models.ModeMerge)
		if got := ids(cs.Final()); !slices.Equal(got, []string{"a", "b", "c"}) {
			t.Errorf("Final() = %v", got)
		}
		for _, ch := range cs.Changes {
			if ch.Kind == models.ChangeRemove || ch.Kind == models.ChangeDuplicateRemoval {
				t.Errorf("merge proposed a removal: %v", ch)
			}
		}
	})

	t.Run("append length is target plus output", func(t *testing.T) {
		cs := Reconcile(target, out, models.ModeAppend)
		final := cs.Final()
		if len(final) != len(target)+len(out.Tracks) {
			t.Errorf("len(Final()) = %d", len(final))
		}
		if !slices.Equal(ids(final), []string{"a", "b", "b-alt", "c"}) {
			t.Errorf("Final() = %v", ids(final))
		}
		if cs.Stats.Added != 2 {
			t.Errorf("stats = %+v", cs.Stats)
		}
	})

	t.Run("rejecting an add drops it", func(t *testing.T) {
		cs := Reconcile(target, out, models.ModeAppend)
		got := ids(cs.Resolve([]string{cs.Changes[1].ID}))
		if !slices.Equal(got, []string{"a", "b", "c"}) {
			t.Errorf("Resolve() = %v", got)
		}
	})
}
