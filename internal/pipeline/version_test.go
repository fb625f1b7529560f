package pipeline

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/desertthunder/plx/internal/models"
)

func TestMatchTitles(t *testing.T) {
	tc := []struct {
		a, b string
		want bool
	}{
		{"Song", "song", true},
		{"Song", "Song (Original Mix)", true},
		{"Song - Original", "Song", true},
		{"Song [Live]", "Song Live", true},
		{"Song", "Song (Remix)", false},
		{"Song - Radio Edit", "Song", false},
		{"Song VIP", "Song", false},
		{"Song (Bootleg)", "Song (Bootleg)", true},
		{"Hello", "Goodbye", false},
	}
	for _, tt := range tc {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			if got := MatchTitles(tt.a, tt.b); got != tt.want {
				t.Errorf("MatchTitles(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCleanTitle(t *testing.T) {
	tc := map[string]string{
		"Song - Title (feat. X)": "song title feat x",
		"  A_B [C]  ":            "a b c",
		"Don't Stop":             "dont stop",
		"!!!":                    "",
	}
	for in, want := range tc {
		if got := CleanTitle(in); got != want {
			t.Errorf("CleanTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSearchQueries(t *testing.T) {
	track := models.Track{Title: "Strobe (Original Mix)", Artists: []string{"deadmau5, Kaskade"}}
	want := []string{
		"track:strobe original mix artist:deadmau5",
		"track:strobe original mix artist:Kaskade",
		"track:strobe original mix",
		"track:strobe artist:deadmau5",
		"track:strobe artist:Kaskade",
	}
	if got := SearchQueries(track); !slices.Equal(got, want) {
		t.Errorf("SearchQueries() = %q\nwant %q", got, want)
	}

	if got := SearchQueries(models.Track{Title: "Plain", Artists: []string{"A"}}); len(got) != 2 {
		t.Errorf("expected artist and title-only query, got %q", got)
	}
	if got := SearchQueries(models.Track{Title: "?!"}); got != nil {
		t.Errorf("expected no queries for empty clean title, got %q", got)
	}
}

func TestAlbumTypeRank(t *testing.T) {
	order := []string{"single", "ALBUM", "compilation", "appears_on"}
	for i := 1; i < len(order); i++ {
		if AlbumTypeRank(order[i-1]) >= AlbumTypeRank(order[i]) {
			t.Errorf("%s should rank before %s", order[i-1], order[i])
		}
	}
}

func TestVersionStageBest(t *testing.T) {
	current := tr("cur", "Song", "Artist", "2020")

	withType := func(tk models.Track, albumType string) models.Track {
		tk.AlbumType = albumType
		return tk
	}

	tc := []struct {
		name       string
		pref       models.VersionPreference
		current    models.Track
		candidates []models.Track
		ignores    models.IgnoreSet
		want       string // empty means no replacement
	}{
		{
			name:       "older single replaces",
			pref:       models.VersionPreference{Scope: models.ScopeArtist, Pick: models.PickOldest},
			candidates: []models.Track{withType(tr("s1", "Song", "Artist", "2018"), "single")},
			want:       "s1",
		},
		{
			name:       "same date is a no-op",
			pref:       models.VersionPreference{Scope: models.ScopeArtist, Pick: models.PickOldest},
			candidates: []models.Track{withType(tr("s1", "Song", "Artist", "2020"), "single")},
		},
		{
			name:       "never downgrades album type",
			pref:       models.VersionPreference{Scope: models.ScopeArtist, Pick: models.PickOldest},
			candidates: []models.Track{withType(tr("c1", "Song", "Artist", "2010"), "compilation")},
		},
		{
			name:       "album type breaks date ties",
			pref:       models.VersionPreference{Scope: models.ScopeArtist, Pick: models.PickOldest},
			candidates: []models.Track{tr("a1", "Song", "Artist", "2015"), withType(tr("s1", "Song", "Artist", "2015"), "single")},
			want:       "s1",
		},
		{
			name:       "artist scope rejects other artists",
			pref:       models.VersionPreference{Scope: models.ScopeArtist, Pick: models.PickOldest},
			candidates: []models.Track{tr("o1", "Song", "Cover Band", "2000")},
		},
		{
			name:       "global scope accepts other artists",
			pref:       models.VersionPreference{Scope: models.ScopeGlobal, Pick: models.PickOldest},
			candidates: []models.Track{tr("o1", "Song", "Cover Band", "2000")},
			want:       "o1",
		},
		{
			name: "global scope ranks artist matches first",
			pref: models.VersionPreference{Scope: models.ScopeGlobal, Pick: models.PickOldest},
			candidates: []models.Track{
				tr("o1", "Song", "Cover Band", "2000"),
				tr("a1", "Song", "Artist", "2018"),
			},
			want: "a1",
		},
		{
			name: "global scope skips artist matches that are not better",
			pref: models.VersionPreference{Scope: models.ScopeGlobal, Pick: models.PickOldest},
			current: tr("cur", "Song", "Amy", "2015"),
			candidates: []models.Track{
				tr("x", "Song", "Amy", "2018"),
				tr("y", "Song", "Bob", "2010"),
			},
			want: "y",
		},
		{
			name: "downgraded candidate does not hide a better one",
			pref: models.VersionPreference{Scope: models.ScopeArtist, Pick: models.PickOldest},
			candidates: []models.Track{
				withType(tr("c1", "Song", "Artist", "2001"), "compilation"),
				tr("a1", "Song", "Artist", "2012"),
			},
			want: "a1",
		},
		{
			name:       "newest pick",
			pref:       models.VersionPreference{Scope: models.ScopeArtist, Pick: models.PickNewest},
			candidates: []models.Track{tr("old", "Song", "Artist", "2018"), tr("new", "Song", "Artist", "2022")},
			want:       "new",
		},
		{
			name:       "unknown candidate dates rejected",
			pref:       models.VersionPreference{Scope: models.ScopeArtist, Pick: models.PickOldest},
			candidates: []models.Track{tr("u1", "Song", "Artist", "")},
		},
		{
			name:       "unknown current date always replaced",
			pref:       models.VersionPreference{Scope: models.ScopeArtist, Pick: models.PickOldest},
			current:    tr("cur", "Song", "Artist", ""),
			candidates: []models.Track{tr("k1", "Song", "Artist", "2024")},
			want:       "k1",
		},
		{
			name:       "same id skipped",
			pref:       models.VersionPreference{Scope: models.ScopeArtist, Pick: models.PickOldest},
			candidates: []models.Track{tr("cur", "Song", "Artist", "1999")},
		},
		{
			name:       "remix never matches original",
			pref:       models.VersionPreference{Scope: models.ScopeArtist, Pick: models.PickOldest},
			candidates: []models.Track{tr("r1", "Song (Remix)", "Artist", "2001")},
		},
		{
			name:       "pinned candidate skipped",
			pref:       models.VersionPreference{Scope: models.ScopeArtist, Pick: models.PickOldest},
			candidates: []models.Track{tr("s1", "Song", "Artist", "2018")},
			ignores:    models.NewIgnoreSet([]*models.IgnoreEntry{{Kind: models.IgnoreVersion, Key: current.Key(), CandidateID: "s1"}}),
		},
		{
			name:       "kept duplicate pin does not bar a candidate",
			pref:       models.VersionPreference{Scope: models.ScopeArtist, Pick: models.PickOldest},
			candidates: []models.Track{tr("s1", "Song", "Artist", "2018")},
			ignores:    models.NewIgnoreSet([]*models.IgnoreEntry{{Kind: models.IgnoreDuplicate, Key: current.Key(), CandidateID: "s1"}}),
			want:       "s1",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			cur := tt.current
			if cur.ID == "" {
				cur = current
			}
			stage := &VersionStage{Pref: tt.pref, Ignores: tt.ignores}
			got, ok := stage.Best(cur, tt.candidates)
			switch {
			case tt.want == "" && ok:
				t.Errorf("expected no replacement, got %s", got.ID)
			case tt.want != "" && !ok:
				t.Errorf("expected %s, got no replacement", tt.want)
			case tt.want != "" && got.ID != tt.want:
				t.Errorf("Best() = %s, want %s", got.ID, tt.want)
			}
		})
	}
}

func TestVersionStageRun(t *testing.T) {
	pref := models.VersionPreference{Scope: models.ScopeArtist, Pick: models.PickOldest}
	current := tr("cur", "Song", "Artist", "2020")
	local := models.Track{ID: "", URI: models.LocalURIPrefix + "Artist:Album:Local:200", Title: "Local", Artists: []string{"Artist"}}
	older := withAlbumType(tr("s1", "Song", "Artist", "2018"), "single")

	t.Run("replaces in place and skips local files", func(t *testing.T) {
		searcher := &fakeSearcher{all: []models.Track{older}}
		var events []VersionEvent
		stage := &VersionStage{Searcher: searcher, Pref: pref, OnEvent: func(e VersionEvent) { events = append(events, e) }}

		res, err := stage.Run(context.Background(), []models.Track{current, local})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !slices.Equal(ids(res.Tracks), []string{"s1", ""}) {
			t.Errorf("tracks = %v", ids(res.Tracks))
		}
		if len(res.Replacements) != 1 || res.Replacements[0].Index != 0 || res.Replacements[0].Original.ID != "cur" {
			t.Errorf("replacements = %+v", res.Replacements)
		}
		if len(searcher.queries) != 2 {
			t.Errorf("expected 2 queries for one track, got %q", searcher.queries)
		}

		var found bool
		for _, e := range events {
			if e.Kind == EventFound && e.Candidate != nil && e.Candidate.ID == "s1" {
				found = true
			}
		}
		if !found {
			t.Error("expected a found event")
		}
	})

	t.Run("rejected candidate not proposed again", func(t *testing.T) {
		searcher := &fakeSearcher{all: []models.Track{older}}
		ignores := models.NewIgnoreSet([]*models.IgnoreEntry{{Kind: models.IgnoreVersion, Key: current.Key(), CandidateID: older.ID}})
		stage := &VersionStage{Searcher: searcher, Pref: pref, Ignores: ignores}

		for run := range 3 {
			res, err := stage.Run(context.Background(), []models.Track{current})
			if err != nil {
				t.Fatalf("run %d: %v", run, err)
			}
			if len(res.Replacements) != 0 {
				t.Fatalf("run %d re-proposed pinned candidate", run)
			}
		}
	})

	t.Run("kept duplicate is still searched", func(t *testing.T) {
		searcher := &fakeSearcher{all: []models.Track{older}}
		ignores := models.NewIgnoreSet([]*models.IgnoreEntry{{Kind: models.IgnoreDuplicate, Key: current.Key(), CandidateID: current.ID}})
		stage := &VersionStage{Searcher: searcher, Pref: pref, Ignores: ignores}
		res, err := stage.Run(context.Background(), []models.Track{current})
		if err != nil {
			t.Fatal(err)
		}
		if len(searcher.queries) == 0 || len(res.Replacements) != 1 {
			t.Errorf("expected a search and a replacement, got %q %+v", searcher.queries, res.Replacements)
		}
	})

	t.Run("search failure skips track", func(t *testing.T) {
		stage := &VersionStage{Searcher: &fakeSearcher{err: errors.New("boom")}, Pref: pref}
		res, err := stage.Run(context.Background(), []models.Track{current})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if res.Tracks[0].ID != "cur" || len(res.Replacements) != 0 {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("cancellation aborts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		stage := &VersionStage{Searcher: &fakeSearcher{}, Pref: pref}
		if _, err := stage.Run(ctx, []models.Track{current}); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func withAlbumType(t models.Track, albumType string) models.Track {
	t.AlbumType = albumType
	return t
}
