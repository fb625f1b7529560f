package pipeline

import (
	"slices"
	"testing"

	"github.com/desertthunder/plx/internal/models"
)

func TestComparator(t *testing.T) {
	cp := NewComparator()

	t.Run("text is case insensitive", func(t *testing.T) {
		a := models.Track{Title: "apple"}
		b := models.Track{Title: "Banana"}
		if cp.Compare(a, b, models.ByTitle, false) >= 0 {
			t.Error("expected apple < Banana")
		}
		if cp.Compare(models.Track{Title: "ABC"}, models.Track{Title: "abc"}, models.ByTitle, false) != 0 {
			t.Error("expected case-only difference to compare equal")
		}
	})

	t.Run("unknown dates last in both directions", func(t *testing.T) {
		known := models.Track{ReleaseDate: models.ParseReleaseDate("2020")}
		unknown := models.Track{}
		for _, desc := range []bool{false, true} {
			if cp.Compare(known, unknown, models.ByReleaseDate, desc) >= 0 {
				t.Errorf("descending=%v: expected known before unknown", desc)
			}
			if cp.Compare(unknown, known, models.ByReleaseDate, desc) <= 0 {
				t.Errorf("descending=%v: expected unknown after known", desc)
			}
		}
		if cp.Compare(unknown, unknown, models.ByReleaseDate, true) != 0 {
			t.Error("two unknowns should be equal")
		}
	})

	t.Run("missing attributes last in both directions", func(t *testing.T) {
		with := models.Track{Attributes: models.Attributes{Energy: f(0.4)}}
		without := models.Track{}
		for _, desc := range []bool{false, true} {
			if cp.Compare(with, without, models.ByEnergy, desc) >= 0 {
				t.Errorf("descending=%v: expected present attribute first", desc)
			}
		}
	})

	t.Run("partial dates pad to start of period", func(t *testing.T) {
		year := models.Track{ReleaseDate: models.ParseReleaseDate("2020")}
		jan2 := models.Track{ReleaseDate: models.ParseReleaseDate("2020-01-02")}
		if cp.Compare(year, jan2, models.ByReleaseDate, false) >= 0 {
			t.Error("expected 2020 to sort before 2020-01-02")
		}
	})
}

func TestSort(t *testing.T) {
	tracks := []models.Track{
		tr("1", "B song", "Zed", "2019"),
		tr("2", "A song", "Amy", "2021"),
		tr("3", "C song", "Amy", "2021"),
		tr("4", "D song", "Bob", ""),
		tr("5", "E song", "Zed", "2019"),
	}

	tc := []struct {
		name  string
		rules []models.SortRule
		want  []string
	}{
		{name: "no rules is pass-through", rules: nil, want: []string{"1", "2", "3", "4", "5"}},
		{
			name:  "date descending keeps ties in input order",
			rules: []models.SortRule{{Criterion: models.ByReleaseDate, Descending: true}},
			want:  []string{"2", "3", "1", "5", "4"},
		},
		{
			name: "artist then title descending",
			rules: []models.SortRule{
				{Criterion: models.ByArtist},
				{Criterion: models.ByTitle, Descending: true},
			},
			want: []string{"3", "2", "4", "5", "1"},
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := Sort(tracks, tt.rules)
			if !slices.Equal(ids(got), tt.want) {
				t.Errorf("Sort() = %v, want %v", ids(got), tt.want)
			}
			again := Sort(got, tt.rules)
			if !slices.Equal(ids(again), ids(got)) {
				t.Errorf("sorting sorted output changed it: %v", ids(again))
			}
		})
	}

	t.Run("does not mutate input", func(t *testing.T) {
		before := ids(tracks)
		Sort(tracks, []models.SortRule{{Criterion: models.ByTitle, Descending: true}})
		if !slices.Equal(ids(tracks), before) {
			t.Error("input was reordered")
		}
	})

	t.Run("SortEnabled rejects empty rules", func(t *testing.T) {
		if _, err := SortEnabled(tracks, true, nil); err == nil {
			t.Error("expected validation error")
		}
		got, err := SortEnabled(tracks, false, nil)
		if err != nil || len(got) != len(tracks) {
			t.Errorf("disabled sort should pass through, got %v, %v", ids(got), err)
		}
	})

	t.Run("AttributesMissing", func(t *testing.T) {
		withTempo := tr("t", "x", "y", "2020")
		withTempo.Attributes.Tempo = f(120)
		local := models.Track{ID: "l", URI: models.LocalURIPrefix + "a:b:c:1"}
		missing := AttributesMissing([]models.Track{withTempo, tr("m", "x", "y", "2020"), local},
			[]models.SortRule{{Criterion: models.ByTitle}, {Criterion: models.ByTempo}})
		if !slices.Equal(missing, []string{"m"}) {
			t.Errorf("AttributesMissing() = %v", missing)
		}
	})
}
