package pipeline

import (
	"fmt"
	"slices"

	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/shared"
)

// Sort stably orders tracks by rules, rule[0] first. An empty rule set returns a copy of the input.
func Sort(tracks []models.Track, rules []models.SortRule) []models.Track {
	out := slices.Clone(tracks)
	if len(rules) == 0 {
		return out
	}
	cp := NewComparator()
	slices.SortStableFunc(out, func(a, b models.Track) int {
		return cp.CompareRules(a, b, rules)
	})
	return out
}

// SortEnabled sorts when enabled is set, rejecting an empty rule set in that case.
func SortEnabled(tracks []models.Track, enabled bool, rules []models.SortRule) ([]models.Track, error) {
	if !enabled {
		return slices.Clone(tracks), nil
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: sorting enabled with no sort rules", shared.ErrValidation)
	}
	return Sort(tracks, rules), nil
}

// AttributesMissing reports which tracks lack an audio feature that rules sort on.
// The engine uses this to fetch features on demand before sorting.
func AttributesMissing(tracks []models.Track, rules []models.SortRule) []string {
	var ids []string
	for _, t := range tracks {
		for _, r := range rules {
			if !r.Criterion.IsAttribute() {
				continue
			}
			if _, ok := attribute(t, r.Criterion); !ok && t.ID != "" && !t.IsLocal() {
				ids = append(ids, t.ID)
				break
			}
		}
	}
	return ids
}
