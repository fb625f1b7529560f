package pipeline

import (
	"slices"
	"testing"

	"github.com/desertthunder/plx/internal/models"
)

func TestDedupe(t *testing.T) {
	tracks := []models.Track{
		tr("a1", "Hello", "Adele", "2016"),
		tr("x", "Other", "Someone", "2010"),
		tr("a2", "hello!", "ADELE", "2015"),
		tr("a3", "Hello", "Adele", "2020-05"),
	}

	tc := []struct {
		name    string
		pref    models.DupePreference
		want    []string
		removed []string
	}{
		{name: "keep oldest", pref: models.KeepOldest, want: []string{"x", "a2"}, removed: []string{"a1", "a3"}},
		{name: "keep newest", pref: models.KeepNewest, want: []string{"x", "a3"}, removed: []string{"a1", "a2"}},
		{name: "keep first", pref: models.KeepFirst, want: []string{"a1", "x"}, removed: []string{"a2", "a3"}},
		{name: "keep last", pref: models.KeepLast, want: []string{"x", "a3"}, removed: []string{"a1", "a2"}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			res := Dedupe(tracks, tt.pref, nil)
			if !slices.Equal(ids(res.Tracks), tt.want) {
				t.Errorf("kept = %v, want %v", ids(res.Tracks), tt.want)
			}
			var removed []string
			for _, r := range res.Removed {
				removed = append(removed, r.Track.ID)
				if r.Survivor.Key() != r.Track.Key() {
					t.Errorf("survivor %s does not share key with %s", r.Survivor.ID, r.Track.ID)
				}
			}
			if !slices.Equal(removed, tt.removed) {
				t.Errorf("removed = %v, want %v", removed, tt.removed)
			}

			again := Dedupe(res.Tracks, tt.pref, nil)
			if !slices.Equal(ids(again.Tracks), ids(res.Tracks)) || len(again.Removed) != 0 {
				t.Errorf("dedupe is not idempotent: %v", ids(again.Tracks))
			}
		})
	}

	t.Run("unknown dates lose to known dates", func(t *testing.T) {
		in := []models.Track{tr("u", "Song", "A", ""), tr("k", "Song", "A", "2001")}
		for _, pref := range []models.DupePreference{models.KeepOldest, models.KeepNewest} {
			res := Dedupe(in, pref, nil)
			if !slices.Equal(ids(res.Tracks), []string{"k"}) {
				t.Errorf("%s: kept %v", pref, ids(res.Tracks))
			}
		}
	})

	t.Run("singletons untouched", func(t *testing.T) {
		in := []models.Track{tr("1", "A", "x", ""), tr("2", "B", "x", "")}
		res := Dedupe(in, models.KeepFirst, nil)
		if len(res.Removed) != 0 || len(res.Tracks) != 2 {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("pinned members are kept and stay idempotent", func(t *testing.T) {
		ignores := models.NewIgnoreSet([]*models.IgnoreEntry{{Kind: models.IgnoreDuplicate, Key: tracks[0].Key(), CandidateID: "a3"}})
		res := Dedupe(tracks, models.KeepNewest, ignores)
		if !slices.Equal(ids(res.Tracks), []string{"a1", "x", "a3"}) {
			t.Errorf("kept = %v", ids(res.Tracks))
		}
		again := Dedupe(res.Tracks, models.KeepNewest, ignores)
		if !slices.Equal(ids(again.Tracks), ids(res.Tracks)) {
			t.Errorf("not idempotent with pins: %v", ids(again.Tracks))
		}
	})

	t.Run("rejected version candidate is still a duplicate", func(t *testing.T) {
		a := tr("a", "Song", "Artist", "2020")
		b := tr("b", "Song", "Artist", "2018")
		ignores := models.NewIgnoreSet([]*models.IgnoreEntry{{Kind: models.IgnoreVersion, Key: a.Key(), CandidateID: "b"}})
		res := Dedupe([]models.Track{a, b}, models.KeepFirst, ignores)
		if !slices.Equal(ids(res.Tracks), []string{"a"}) || len(res.Removed) != 1 {
			t.Errorf("expected b removed, got %v", ids(res.Tracks))
		}
	})
}

func TestFilterAndSample(t *testing.T) {
	a := tr("a", "Song A", "Artist", "2020")
	b := tr("b", "Song B (Live)", "Artist", "2020")
	c := tr("c", "Song C", "Artist", "2020")
	likedSingle := tr("a-single", "Song A", "Artist", "2019")

	t.Run("Filter drops liked and blacklisted", func(t *testing.T) {
		cfg := models.FilterConfig{ExcludeLiked: true, KeywordBlacklist: []string{"live"}}
		kept, dropped := Filter([]models.Track{a, b, c}, cfg, []models.Track{likedSingle})
		if !slices.Equal(ids(kept), []string{"c"}) || dropped != 2 {
			t.Errorf("kept %v dropped %d", ids(kept), dropped)
		}
	})

	t.Run("Filter ignores liked when not excluding", func(t *testing.T) {
		kept, dropped := Filter([]models.Track{a, c}, models.FilterConfig{}, []models.Track{a})
		if len(kept) != 2 || dropped != 0 {
			t.Errorf("kept %v dropped %d", ids(kept), dropped)
		}
	})

	t.Run("Sample takes deterministic prefix", func(t *testing.T) {
		in := []models.Track{a, b, c}
		for range 3 {
			if got := Sample(in, 2); !slices.Equal(ids(got), []string{"a", "b"}) {
				t.Fatalf("Sample() = %v", ids(got))
			}
		}
		if got := Sample(in, 0); len(got) != 3 {
			t.Errorf("Sample(0) should keep all, got %v", ids(got))
		}
		if got := Sample(in, 10); len(got) != 3 {
			t.Errorf("Sample(10) should keep all, got %v", ids(got))
		}
	})

	t.Run("Concat and UniqueByURI", func(t *testing.T) {
		merged := Concat([]models.Track{a, b}, []models.Track{b, c})
		if !slices.Equal(ids(merged), []string{"a", "b", "b", "c"}) {
			t.Errorf("Concat() = %v", ids(merged))
		}
		if got := UniqueByURI(merged); !slices.Equal(ids(got), []string{"a", "b", "c"}) {
			t.Errorf("UniqueByURI() = %v", ids(got))
		}
	})
}
