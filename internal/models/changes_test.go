package models

import (
	"slices"
	"testing"
)

func track(uri string) Track {
	return Track{ID: uri, URI: uri, Title: uri, Artists: []string{"artist"}}
}

func ptr(t Track) *Track { return &t }

func TestChangeSetResolve(t *testing.T) {
	// current: a b c d ; proposed drops c (duplicate), replaces b with b2, adds e
	cs := &ChangeSet{
		Current: []Track{track("a"), track("b"), track("c"), track("d")},
		Proposed: []ProposedTrack{
			{Track: track("a"), CurrentIndex: 0},
			{Track: track("b2"), Original: ptr(track("b")), CurrentIndex: 1, ReplaceID: "r1"},
			{Track: track("d"), CurrentIndex: 3},
			{Track: track("e"), CurrentIndex: -1, AddID: "add1"},
		},
		Changes: []Change{
			{ID: "r1", Kind: ChangeReplace, Removed: ptr(track("b")), Added: ptr(track("b2")), CurrentIndex: 1},
			{ID: "dup1", Kind: ChangeDuplicateRemoval, Removed: ptr(track("c")), CurrentIndex: 2},
			{ID: "add1", Kind: ChangeAdd, Added: ptr(track("e")), CurrentIndex: -1},
		},
	}

	tc := []struct {
		name     string
		approved []string
		want     []string
	}{
		{name: "all approved", approved: []string{"r1", "dup1", "add1"}, want: []string{"a", "b2", "d", "e"}},
		{name: "none approved", approved: nil, want: []string{"a", "b", "c", "d"}},
		{name: "only replace", approved: []string{"r1"}, want: []string{"a", "b2", "c", "d"}},
		{name: "only removal", approved: []string{"dup1"}, want: []string{"a", "b", "d"}},
		{name: "only add", approved: []string{"add1"}, want: []string{"a", "b", "c", "d", "e"}},
		{name: "unknown ids ignored", approved: []string{"nope"}, want: []string{"a", "b", "c", "d"}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := URIs(cs.Resolve(tt.approved))
			if !slices.Equal(got, tt.want) {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("rejected removal of first track goes to head", func(t *testing.T) {
		cs := &ChangeSet{
			Current:  []Track{track("x"), track("y")},
			Proposed: []ProposedTrack{{Track: track("y"), CurrentIndex: 1}},
			Changes:  []Change{{ID: "rm", Kind: ChangeRemove, Removed: ptr(track("x")), CurrentIndex: 0}},
		}
		if got := URIs(cs.Resolve(nil)); !slices.Equal(got, []string{"x", "y"}) {
			t.Errorf("Resolve() = %v", got)
		}
	})

	t.Run("Final and Empty", func(t *testing.T) {
		if got := URIs(cs.Final()); !slices.Equal(got, []string{"a", "b2", "d", "e"}) {
			t.Errorf("Final() = %v", got)
		}
		if cs.Empty() {
			t.Error("expected non-empty change set")
		}

		same := &ChangeSet{
			Current:  []Track{track("a")},
			Proposed: []ProposedTrack{{Track: track("a"), CurrentIndex: 0}},
		}
		if !same.Empty() {
			t.Error("expected empty change set")
		}

		reordered := &ChangeSet{
			Current:  []Track{track("a"), track("b")},
			Proposed: []ProposedTrack{{Track: track("b"), CurrentIndex: 1}, {Track: track("a"), CurrentIndex: 0}},
		}
		if reordered.Empty() {
			t.Error("a pure reorder is not empty")
		}
	})

	t.Run("Change lookup", func(t *testing.T) {
		if c, ok := cs.Change("dup1"); !ok || c.Kind != ChangeDuplicateRemoval {
			t.Errorf("Change(dup1) = %+v, %v", c, ok)
		}
		if _, ok := cs.Change("missing"); ok {
			t.Error("expected missing change")
		}
	})
}

func TestIgnoreSet(t *testing.T) {
	key := NormalizedKey{Title: "song", Artist: "artist"}
	set := NewIgnoreSet([]*IgnoreEntry{
		{Kind: IgnoreVersion, Key: key, CandidateID: "c1"},
		{Kind: IgnoreDuplicate, Key: key, CandidateID: "d1"},
	})

	if !set.Rejected(key, "c1") || !set.Kept(key, "d1") {
		t.Error("expected pinned entries")
	}
	if set.Kept(key, "c1") || set.Rejected(key, "d1") {
		t.Error("kinds must not leak into each other")
	}
	if set.Rejected(key, "c2") || set.Rejected(NormalizedKey{Title: "other"}, "c1") {
		t.Error("unexpected match")
	}
	var empty IgnoreSet
	if empty.Rejected(key, "c1") || empty.Kept(key, "d1") {
		t.Error("nil set should contain nothing")
	}

	if err := (&IgnoreEntry{CandidateID: "c1"}).Validate(); err == nil {
		t.Error("expected an entry without kind to be invalid")
	}
}
