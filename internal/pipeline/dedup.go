package pipeline

import (
	"github.com/desertthunder/plx/internal/models"
)

// DedupResult is the output of [Dedupe].
type DedupResult struct {
	Tracks  []models.Track // survivors in input order
	Removed []Removal      // one entry per dropped member
}

// Removal records a dropped duplicate and the member that survived in its place.
type Removal struct {
	Track    models.Track
	Index    int // position in the input list
	Survivor models.Track
}

// Dedupe collapses groups of tracks sharing a [models.NormalizedKey] down to one survivor chosen by
// pref. Survivors keep their input order. Members kept on purpose in ignores are never removed and
// take no part in choosing the survivor. Rejected version candidates get no such protection.
func Dedupe(tracks []models.Track, pref models.DupePreference, ignores models.IgnoreSet) DedupResult {
	groups := make(map[models.NormalizedKey][]int)
	order := make([]models.NormalizedKey, 0)
	for i, t := range tracks {
		k := t.Key()
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	drop := make(map[int]int) // dropped index -> survivor index
	for _, k := range order {
		members := groups[k]
		if len(members) < 2 {
			continue
		}
		candidates := make([]int, 0, len(members))
		for _, i := range members {
			if !ignores.Kept(k, tracks[i].ID) {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) < 2 {
			continue
		}
		keep := survivor(tracks, candidates, pref)
		for _, i := range candidates {
			if i != keep {
				drop[i] = keep
			}
		}
	}

	res := DedupResult{Tracks: make([]models.Track, 0, len(tracks)-len(drop))}
	for i, t := range tracks {
		if keep, dropped := drop[i]; dropped {
			res.Removed = append(res.Removed, Removal{Track: t, Index: i, Survivor: tracks[keep]})
			continue
		}
		res.Tracks = append(res.Tracks, t)
	}
	return res
}

// survivor picks the member index to keep. Release-date ties resolve to the earliest position.
func survivor(tracks []models.Track, members []int, pref models.DupePreference) int {
	switch pref {
	case models.KeepLast:
		return members[len(members)-1]
	case models.KeepOldest, models.KeepNewest:
		best := members[0]
		for _, i := range members[1:] {
			n := CompareDates(tracks[i].ReleaseDate, tracks[best].ReleaseDate)
			if pref == models.KeepNewest && tracks[i].ReleaseDate.Known() && tracks[best].ReleaseDate.Known() {
				n = -n
			}
			if n < 0 {
				best = i
			}
		}
		return best
	default:
		return members[0]
	}
}
