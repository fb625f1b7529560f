package pipeline

import (
	"cmp"

	"github.com/desertthunder/plx/internal/models"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Comparator orders tracks by a single criterion.
//
// A Comparator holds collation buffers and must not be shared between goroutines.
type Comparator struct {
	col *collate.Collator
}

// NewComparator builds a comparator using root-locale, case-insensitive collation.
func NewComparator() *Comparator {
	return &Comparator{col: collate.New(language.Und, collate.IgnoreCase, collate.Loose)}
}

// Compare returns a negative number when a sorts before b under criterion c in the requested
// direction. Tracks with an unknown value for c sort after every known value regardless of
// direction; two unknowns compare equal.
func (cp *Comparator) Compare(a, b models.Track, c models.Criterion, descending bool) int {
	switch c {
	case models.ByTitle:
		return direct(cp.col.CompareString(a.Title, b.Title), descending)
	case models.ByArtist:
		return direct(cp.col.CompareString(a.PrimaryArtist(), b.PrimaryArtist()), descending)
	case models.ByAlbum:
		return direct(cp.col.CompareString(a.Album, b.Album), descending)
	case models.ByDuration:
		return direct(cmp.Compare(a.DurationMS, b.DurationMS), descending)
	case models.ByReleaseDate:
		return unknownLast(a.ReleaseDate.Known(), b.ReleaseDate.Known(), func() int {
			return direct(a.ReleaseDate.Compare(b.ReleaseDate), descending)
		})
	default:
		av, aok := attribute(a, c)
		bv, bok := attribute(b, c)
		return unknownLast(aok, bok, func() int {
			return direct(cmp.Compare(av, bv), descending)
		})
	}
}

// CompareRules applies rules in priority order, falling through on ties.
func (cp *Comparator) CompareRules(a, b models.Track, rules []models.SortRule) int {
	for _, r := range rules {
		if n := cp.Compare(a, b, r.Criterion, r.Descending); n != 0 {
			return n
		}
	}
	return 0
}

// CompareDates orders release dates ascending with unknown dates last.
func CompareDates(a, b models.ReleaseDate) int {
	return unknownLast(a.Known(), b.Known(), func() int { return a.Compare(b) })
}

func direct(n int, descending bool) int {
	if descending {
		return -n
	}
	return n
}

func unknownLast(aok, bok bool, known func() int) int {
	switch {
	case aok && bok:
		return known()
	case aok:
		return -1
	case bok:
		return 1
	default:
		return 0
	}
}

func attribute(t models.Track, c models.Criterion) (float64, bool) {
	var v *float64
	switch c {
	case models.ByTempo:
		v = t.Attributes.Tempo
	case models.ByEnergy:
		v = t.Attributes.Energy
	case models.ByDanceability:
		v = t.Attributes.Danceability
	case models.ByValence:
		v = t.Attributes.Valence
	}
	if v == nil {
		return 0, false
	}
	return *v, true
}
