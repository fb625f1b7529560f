package tasks

import (
	"fmt"

	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/pipeline"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	FetchLiked
	FetchTarget
	FetchAttributes
	Process
	SearchVersions
	WriteTracks
	ScanPlaylist
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case FetchLiked:
		return "fetch_liked"
	case FetchTarget:
		return "fetch_target"
	case FetchAttributes:
		return "fetch_attributes"
	case Process:
		return "process"
	case SearchVersions:
		return "search_versions"
	case WriteTracks:
		return "write_tracks"
	case ScanPlaylist:
		return "scan_playlist"
	default:
		return ""
	}
}

func fetchSourceUpdate(step, total int, src models.Source) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching %s...", step, total, src),
	}
}

func fetchLikedUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: FetchLiked, Step: 1, Total: 1, Message: "Fetching liked songs..."}
}

func fetchTargetUpdate(id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTarget,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching target playlist %s...", id),
	}
}

func fetchAttributesUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchAttributes,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching audio features for %d tracks...", count),
	}
}

func processUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Process,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Processing %d tracks...", count),
	}
}

func versionEventUpdate(ev pipeline.VersionEvent) ProgressUpdate {
	msg := fmt.Sprintf("%s %s", ev.Kind, ev.Track)
	switch {
	case ev.Query != "":
		msg = fmt.Sprintf("%s %q", ev.Kind, ev.Query)
	case ev.Candidate != nil && ev.Reason != "":
		msg = fmt.Sprintf("%s %s (%s): %s", ev.Kind, ev.Candidate.Album, ev.Candidate.ReleaseDate, ev.Reason)
	case ev.Candidate != nil:
		msg = fmt.Sprintf("%s %s (%s) for %s", ev.Kind, ev.Candidate.Album, ev.Candidate.ReleaseDate, ev.Track)
	case ev.Reason != "":
		msg = fmt.Sprintf("%s %s: %s", ev.Kind, ev.Track, ev.Reason)
	}
	return ProgressUpdate{Phase: SearchVersions, Step: 1, Total: 1, Message: msg, Data: ev}
}

func writeTracksUpdate(playlistID string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Writing %d tracks to %s...", count, playlistID),
	}
}

func scanPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Scanning: %s...", step, total, name),
		Data:    name,
	}
}

func scanCompletedUpdate(step, total int, name string, changes int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d changes)", step, total, name, changes),
	}
}

func scanFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ScanPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
