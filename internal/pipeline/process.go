package pipeline

import (
	"context"
	"fmt"
	"slices"

	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/shared"
)

// Process runs tracks through sort, dedup and version replacement as enabled by opts.
//
// Dedup positions ("first"/"last") refer to the order after sorting. searcher may be nil when the
// version stage is disabled.
func Process(
	ctx context.Context,
	tracks []models.Track,
	opts models.ProcessingOptions,
	ignores models.IgnoreSet,
	searcher Searcher,
	onEvent func(VersionEvent),
) (Output, error) {
	out := Output{Tracks: slices.Clone(tracks)}
	out.Stats.SourceTracks = len(tracks)

	sorted, err := SortEnabled(out.Tracks, opts.Sort, opts.SortRules)
	if err != nil {
		return out, err
	}
	out.Tracks = sorted

	if opts.Dedupe {
		res := Dedupe(out.Tracks, opts.DupePreference, ignores)
		out.Tracks = res.Tracks
		out.Duplicates = res.Removed
		out.Stats.DuplicatesRemoved = len(res.Removed)
	}

	if opts.Versions {
		if searcher == nil {
			return out, fmt.Errorf("%w: version replacement needs a catalog searcher", shared.ErrServiceNotReady)
		}
		stage := &VersionStage{Searcher: searcher, Pref: opts.Version, Ignores: ignores, OnEvent: onEvent}
		res, err := stage.Run(ctx, out.Tracks)
		if err != nil {
			return out, err
		}
		out.Tracks = res.Tracks
		out.Replacements = res.Replacements
		out.Stats.VersionsReplaced = len(res.Replacements)
	}

	return out, nil
}
