package pipeline

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/desertthunder/plx/internal/models"
)

var strictKeywords = []string{"remix", "vip", "bootleg", "edit"}

var originalSuffixes = []string{" original mix", " original"}

// Searcher finds catalog tracks for a version query.
type Searcher interface {
	SearchAlternateVersions(ctx context.Context, query string, scope models.VersionScope) ([]models.Track, error)
}

// VersionEventKind classifies a step of the version search.
type VersionEventKind string

const (
	EventSearched VersionEventKind = "searched"
	EventPassed   VersionEventKind = "passed"
	EventRejected VersionEventKind = "rejected"
	EventFound    VersionEventKind = "found"
)

// VersionEvent reports per-track progress of the version search.
type VersionEvent struct {
	Kind      VersionEventKind
	Track     models.Track
	Candidate *models.Track
	Query     string
	Reason    string
}

// Replacement pairs a track with the better version chosen for it.
type Replacement struct {
	Index    int
	Original models.Track
	Version  models.Track
}

// VersionResult is the output of [VersionStage.Run].
type VersionResult struct {
	Tracks       []models.Track
	Replacements []Replacement
}

// VersionStage swaps tracks for better releases of the same song.
type VersionStage struct {
	Searcher Searcher
	Pref     models.VersionPreference
	Ignores  models.IgnoreSet
	OnEvent  func(VersionEvent) // optional
}

// Run searches the catalog for every track and substitutes strictly better versions in place.
//
// A failed search skips the track; only context cancellation aborts the stage.
func (s *VersionStage) Run(ctx context.Context, tracks []models.Track) (VersionResult, error) {
	res := VersionResult{Tracks: slices.Clone(tracks)}

	for i, t := range tracks {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if t.IsLocal() {
			continue
		}

		candidates, err := s.search(ctx, t)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			s.emit(VersionEvent{Kind: EventRejected, Track: t, Reason: fmt.Sprintf("search failed: %v", err)})
			continue
		}

		best, ok := s.Best(t, candidates)
		if !ok {
			continue
		}

		s.emit(VersionEvent{Kind: EventFound, Track: t, Candidate: &best})
		res.Tracks[i] = best
		res.Replacements = append(res.Replacements, Replacement{Index: i, Original: t, Version: best})
	}

	return res, nil
}

func (s *VersionStage) search(ctx context.Context, t models.Track) ([]models.Track, error) {
	var (
		found   []models.Track
		seen    = make(map[string]bool)
		lastErr error
		okCount int
	)
	for _, q := range SearchQueries(t) {
		s.emit(VersionEvent{Kind: EventSearched, Track: t, Query: q})
		results, err := s.Searcher.SearchAlternateVersions(ctx, q, s.Pref.Scope)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		okCount++
		for _, r := range results {
			if r.ID == "" || seen[r.ID] {
				continue
			}
			seen[r.ID] = true
			found = append(found, r)
		}
	}
	if okCount == 0 && lastErr != nil {
		return nil, lastErr
	}
	return found, nil
}

// Best picks the replacement for current among candidates, if one is strictly better.
//
// Candidates must share the song's title (relaxed), must not be the same id or uri, and must not be
// rejected for the song. They must also be strictly better than current: an earlier (oldest) or later
// (newest) release date, and an album type no worse than current's. With artist scope they must
// share an artist; with global scope artist matches rank first among the better candidates. The
// rest rank by release date per Pref.Pick, then by album type.
func (s *VersionStage) Best(current models.Track, candidates []models.Track) (models.Track, bool) {
	key := current.Key()
	type ranked struct {
		track       models.Track
		artistMatch bool
	}

	pool := make([]ranked, 0, len(candidates))
	for _, c := range candidates {
		switch {
		case c.ID == current.ID || (c.URI != "" && c.URI == current.URI):
			continue
		case s.Ignores.Rejected(key, c.ID):
			s.emit(VersionEvent{Kind: EventRejected, Track: current, Candidate: &c, Reason: "ignored"})
			continue
		case !MatchTitles(c.Title, current.Title):
			s.emit(VersionEvent{Kind: EventRejected, Track: current, Candidate: &c, Reason: "title"})
			continue
		case !c.ReleaseDate.Known():
			s.emit(VersionEvent{Kind: EventRejected, Track: current, Candidate: &c, Reason: "no release date"})
			continue
		}

		match := sharesArtist(current, c)
		if s.Pref.Scope == models.ScopeArtist && !match {
			s.emit(VersionEvent{Kind: EventRejected, Track: current, Candidate: &c, Reason: "artist"})
			continue
		}
		if AlbumTypeRank(c.AlbumType) > AlbumTypeRank(current.AlbumType) {
			s.emit(VersionEvent{Kind: EventRejected, Track: current, Candidate: &c, Reason: "album type downgrade"})
			continue
		}
		if !s.betterDate(c, current) {
			s.emit(VersionEvent{Kind: EventRejected, Track: current, Candidate: &c, Reason: "not better"})
			continue
		}
		s.emit(VersionEvent{Kind: EventPassed, Track: current, Candidate: &c})
		pool = append(pool, ranked{track: c, artistMatch: match})
	}
	if len(pool) == 0 {
		return models.Track{}, false
	}

	slices.SortStableFunc(pool, func(a, b ranked) int {
		if a.artistMatch != b.artistMatch {
			if a.artistMatch {
				return -1
			}
			return 1
		}
		n := a.track.ReleaseDate.Compare(b.track.ReleaseDate)
		if s.Pref.Pick == models.PickNewest {
			n = -n
		}
		if n != 0 {
			return n
		}
		return cmp.Compare(AlbumTypeRank(a.track.AlbumType), AlbumTypeRank(b.track.AlbumType))
	})

	return pool[0].track, true
}

// betterDate reports whether c was released strictly earlier (oldest) or later (newest) than current.
// Any dated candidate beats an undated current track.
func (s *VersionStage) betterDate(c, current models.Track) bool {
	if !current.ReleaseDate.Known() {
		return true
	}
	n := c.ReleaseDate.Compare(current.ReleaseDate)
	if s.Pref.Pick == models.PickNewest {
		return n > 0
	}
	return n < 0
}

func (s *VersionStage) emit(e VersionEvent) {
	if s.OnEvent != nil {
		s.OnEvent(e)
	}
}

// SearchQueries builds the catalog queries for a track: one per credited artist, a title-only
// fallback, and per-artist queries with a trailing "original"/"original mix" removed.
func SearchQueries(t models.Track) []string {
	title := CleanTitle(t.Title)
	if title == "" {
		return nil
	}
	artists := splitArtists(t)

	queries := make([]string, 0, 2*len(artists)+1)
	for _, a := range artists {
		queries = append(queries, fmt.Sprintf("track:%s artist:%s", title, a))
	}
	queries = append(queries, "track:"+title)

	if base := stripOriginalSuffix(title); base != title && base != "" {
		for _, a := range artists {
			queries = append(queries, fmt.Sprintf("track:%s artist:%s", base, a))
		}
	}
	return queries
}

// CleanTitle lowercases a title, turns separators into spaces and drops remaining punctuation.
func CleanTitle(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '-', '(', ')', '[', ']', '_':
			return ' '
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// MatchTitles reports whether two titles name the same recording.
//
// Both must agree on the presence of each of remix, vip, bootleg and edit. Past that, cleaned titles
// must be equal, either as-is or with a trailing "original"/"original mix" removed.
func MatchTitles(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	for _, kw := range strictKeywords {
		if strings.Contains(la, kw) != strings.Contains(lb, kw) {
			return false
		}
	}
	ca, cb := CleanTitle(a), CleanTitle(b)
	if ca == cb {
		return true
	}
	return stripOriginalSuffix(ca) == stripOriginalSuffix(cb)
}

// AlbumTypeRank orders album types: single, album, compilation, anything else.
func AlbumTypeRank(albumType string) int {
	switch strings.ToLower(albumType) {
	case "single":
		return 0
	case "album":
		return 1
	case "compilation":
		return 2
	default:
		return 3
	}
}

func stripOriginalSuffix(s string) string {
	s = strings.TrimSpace(s)
	for _, suffix := range originalSuffixes {
		if strings.HasSuffix(s, suffix) {
			return strings.TrimSpace(strings.TrimSuffix(s, suffix))
		}
	}
	return s
}

func splitArtists(t models.Track) []string {
	var out []string
	for _, credit := range t.Artists {
		for _, a := range strings.Split(credit, ",") {
			if a = strings.TrimSpace(a); a != "" {
				out = append(out, a)
			}
		}
	}
	return out
}

func sharesArtist(a, b models.Track) bool {
	for _, x := range splitArtists(a) {
		for _, y := range splitArtists(b) {
			if strings.EqualFold(x, y) {
				return true
			}
		}
	}
	return false
}
