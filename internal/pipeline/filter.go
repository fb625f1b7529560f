package pipeline

import (
	"github.com/desertthunder/plx/internal/models"
)

// Sample keeps the first n tracks of a source in its current order. n <= 0 keeps everything.
func Sample(tracks []models.Track, n int) []models.Track {
	if n <= 0 || n >= len(tracks) {
		return tracks
	}
	return tracks[:n]
}

// Concat joins source lists in declaration order.
func Concat(lists ...[]models.Track) []models.Track {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	out := make([]models.Track, 0, total)
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// Filter drops liked tracks when requested and tracks matching a blacklist keyword.
//
// liked is matched by track id and by normalized key, so a liked single also excludes its album
// release.
func Filter(tracks []models.Track, cfg models.FilterConfig, liked []models.Track) (kept []models.Track, dropped int) {
	likedIDs := make(map[string]bool, len(liked))
	likedKeys := make(map[models.NormalizedKey]bool, len(liked))
	if cfg.ExcludeLiked {
		for _, t := range liked {
			likedIDs[t.ID] = true
			likedKeys[t.Key()] = true
		}
	}

	kept = make([]models.Track, 0, len(tracks))
	for _, t := range tracks {
		if cfg.ExcludeLiked && (likedIDs[t.ID] || likedKeys[t.Key()]) {
			dropped++
			continue
		}
		if cfg.Blacklisted(t) {
			dropped++
			continue
		}
		kept = append(kept, t)
	}
	return kept, dropped
}

// UniqueByURI drops repeated uris, keeping the first occurrence. Merged sources often list the same
// track more than once; this pass runs before the configured stages and is not counted as dedup.
func UniqueByURI(tracks []models.Track) []models.Track {
	seen := make(map[string]bool, len(tracks))
	out := make([]models.Track, 0, len(tracks))
	for _, t := range tracks {
		if seen[t.URI] {
			continue
		}
		seen[t.URI] = true
		out = append(out, t)
	}
	return out
}
