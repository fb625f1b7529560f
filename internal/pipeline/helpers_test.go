package pipeline

import (
	"context"

	"github.com/desertthunder/plx/internal/models"
)

func tr(id, title, artist, date string) models.Track {
	return models.Track{
		ID:          id,
		URI:         "spotify:track:" + id,
		Title:       title,
		Artists:     []string{artist},
		Album:       title + " album",
		AlbumType:   "album",
		ReleaseDate: models.ParseReleaseDate(date),
	}
}

func ids(tracks []models.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.ID
	}
	return out
}

func f(v float64) *float64 { return &v }

// fakeSearcher returns canned results per query and records every query it saw.
type fakeSearcher struct {
	results map[string][]models.Track
	all     []models.Track // returned for any query that has no entry in results
	err     error
	queries []string
}

func (s *fakeSearcher) SearchAlternateVersions(ctx context.Context, query string, scope models.VersionScope) ([]models.Track, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	if r, ok := s.results[query]; ok {
		return r, nil
	}
	return s.all, nil
}
