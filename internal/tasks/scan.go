package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/plx/internal/models"
	"golang.org/x/time/rate"
)

// ScanOpts configures a multi-playlist cleanup.
type ScanOpts struct {
	Processing models.ProcessingOptions
	Apply      bool    // write every change; otherwise change sets are left awaiting approval
	RateLimit  float64 // playlists started per second (default: 2)
}

// PlaylistScanResult is the outcome for one playlist of a scan.
type PlaylistScanResult struct {
	PlaylistID   string
	PlaylistName string
	Result       *models.ComputedResult
	Applied      *ApplyResult
	Error        error
}

// Changes counts the proposed changes for the playlist.
func (r PlaylistScanResult) Changes() int {
	if r.Result == nil || r.Result.ChangeSet == nil {
		return 0
	}
	return len(r.Result.ChangeSet.Changes)
}

// ScanResult summarizes a scan.
type ScanResult struct {
	Total     int
	Changed   int
	Unchanged int
	Failed    int
	Cancelled bool // stopped before every playlist was visited
	Results   []PlaylistScanResult
}

// Scan runs the processing stages over each playlist in turn.
//
// Cancellation is checked between playlists; playlists already applied stay applied. A failure is
// recorded against its playlist and the scan moves on.
func (e *PlaylistEngine) Scan(ctx context.Context, playlistIDs []string, opts ScanOpts, progress chan<- ProgressUpdate) (*ScanResult, error) {
	if err := opts.Processing.Validate(); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 2.0
	}

	total := len(playlistIDs)
	result := &ScanResult{Total: total, Results: make([]PlaylistScanResult, 0, total)}
	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	for i, id := range playlistIDs {
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			result.Cancelled = true
			break
		}

		name := id
		if pl, err := e.catalog.GetPlaylist(ctx, id); err == nil && pl.Name != "" {
			name = pl.Name
		}
		e.sendProgress(progress, scanPlaylistUpdate(i+1, total, name))

		res := e.scanPlaylist(ctx, id, opts, progress)
		res.PlaylistName = name
		result.Results = append(result.Results, res)

		switch {
		case res.Error != nil:
			if ctx.Err() != nil {
				result.Cancelled = true
			}
			result.Failed++
			e.logger.Warn("scan failed for playlist", "playlist", id, "name", name, "error", res.Error)
			e.sendProgress(progress, scanFailedUpdate(i+1, total, name, res.Error))
		case res.Changes() == 0:
			result.Unchanged++
			e.sendProgress(progress, scanCompletedUpdate(i+1, total, name, 0))
		default:
			result.Changed++
			e.sendProgress(progress, scanCompletedUpdate(i+1, total, name, res.Changes()))
		}
		if result.Cancelled {
			break
		}
	}
	return result, nil
}

func (e *PlaylistEngine) scanPlaylist(ctx context.Context, id string, opts ScanOpts, progress chan<- ProgressUpdate) PlaylistScanResult {
	res := PlaylistScanResult{PlaylistID: id}

	computed, err := e.PreviewPlaylist(ctx, id, opts.Processing, progress)
	res.Result = computed
	if err != nil {
		res.Error = err
		return res
	}
	if !opts.Apply || computed.ChangeSet.Empty() {
		return res
	}

	applied, err := e.Apply(ctx, computed.ChangeSet.ID, computed.ChangeSet.ChangeIDs())
	res.Applied = applied
	if err != nil {
		res.Error = fmt.Errorf("failed to apply changes: %w", err)
	}
	return res
}
