package tasks

import (
	"context"
	"fmt"
	"slices"

	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/shared"
)

var _ Engine = (*PlaylistEngine)(nil)

// ApplyResult reports what an apply wrote.
type ApplyResult struct {
	ChangeSet    *models.ChangeSet
	Snapshot     *models.Snapshot // taken before any write; restore it to undo
	URIs         []string         // the sequence the playlist holds afterwards, local files excluded
	Approved     int
	Ignored      int // rejected changes pinned in the ignore list
	Removed      int // tracks removed one at a time instead of a full rewrite
	Written      bool
	LocalSkipped int
	Warning      string
}

// RestoreResult reports a restore.
type RestoreResult struct {
	Restored     *models.Snapshot
	Before       *models.Snapshot // the playlist as it was before the restore
	LocalSkipped int
	Warning      string
}

// Apply writes the approved subset of a pending change set.
//
// A snapshot of the live playlist is stored first. Rejected replacements and rejected duplicate
// removals are pinned in the ignore list so later runs do not propose them again.
func (e *PlaylistEngine) Apply(ctx context.Context, changeSetID string, approved []string) (*ApplyResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	cs, err := e.pending(changeSetID)
	if err != nil {
		return nil, err
	}
	for _, id := range approved {
		if _, ok := cs.Change(id); !ok {
			return nil, fmt.Errorf("%w: change %s is not part of change set %s", shared.ErrInvalidArgument, id, cs.ID)
		}
	}

	res, err := e.apply(ctx, cs, approved)
	if err != nil {
		return res, err
	}

	ignored, err := e.pinRejected(cs, approved)
	res.Ignored = ignored
	if err != nil {
		return res, err
	}

	cs.State = models.StateApplied
	if err := e.store.ChangeSets.Update(cs); err != nil {
		return res, fmt.Errorf("failed to close change set: %w", err)
	}
	return res, nil
}

// Restore writes a snapshot back to its playlist without diffing. The playlist is snapshotted
// first, so a restore can itself be undone.
func (e *PlaylistEngine) Restore(ctx context.Context, snapshotID string) (*RestoreResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	snap, err := e.store.Snapshots.Get(snapshotID)
	if err != nil {
		return nil, err
	}

	before, _, err := e.snapshot(ctx, snap.PlaylistID, "before restore of "+snap.ID)
	if err != nil {
		return nil, err
	}

	uris, local := splitLocal(snap.URIs)
	res := &RestoreResult{Restored: snap, Before: before, LocalSkipped: local, Warning: localWarning(local)}
	if err := e.catalog.WritePlaylistTracks(ctx, snap.PlaylistID, uris); err != nil {
		return res, fmt.Errorf("failed to restore playlist %s: %w", snap.PlaylistID, err)
	}

	e.logger.Info("playlist restored", "playlist", snap.PlaylistID, "snapshot", snap.ID, "tracks", len(uris))
	return res, nil
}

func (e *PlaylistEngine) pending(changeSetID string) (*models.ChangeSet, error) {
	cs, err := e.store.ChangeSets.Get(changeSetID)
	if err != nil {
		return nil, err
	}
	if cs.State != models.StateAwaitingApproval {
		return nil, fmt.Errorf("%w: %s is %s", shared.ErrChangeSetClosed, cs.ID, cs.State)
	}
	return cs, nil
}

// snapshot stores the live uri sequence of a playlist.
func (e *PlaylistEngine) snapshot(ctx context.Context, playlistID, description string) (*models.Snapshot, []models.Track, error) {
	live, err := e.catalog.ListPlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read playlist for snapshot: %w", err)
	}
	snap, err := e.storeSnapshot(playlistID, live, description)
	if err != nil {
		return nil, nil, err
	}
	return snap, live, nil
}

func (e *PlaylistEngine) storeSnapshot(playlistID string, live []models.Track, description string) (*models.Snapshot, error) {
	snap := &models.Snapshot{PlaylistID: playlistID, URIs: models.URIs(live), Description: description}
	if err := e.store.Snapshots.Create(snap); err != nil {
		return nil, fmt.Errorf("failed to store snapshot: %w", err)
	}
	return snap, nil
}

// apply snapshots the target and writes the resolved sequence.
//
// The live playlist must still hold the sequence the change set was computed against; otherwise
// nothing is written and the error wraps [shared.ErrPlaylistChanged].
//
// When every approved change removes a uri that appears once in the playlist and nothing moves, the
// tracks are removed one by one, which leaves local files in place. Anything else is a full rewrite.
// Once the snapshot exists every error names it.
func (e *PlaylistEngine) apply(ctx context.Context, cs *models.ChangeSet, approved []string) (*ApplyResult, error) {
	live, err := e.catalog.ListPlaylistTracks(ctx, cs.PlaylistID)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist for snapshot: %w", err)
	}
	if !slices.Equal(models.URIs(live), models.URIs(cs.Current)) {
		return nil, fmt.Errorf("%w: %s, preview change set %s again", shared.ErrPlaylistChanged, cs.PlaylistID, cs.ID)
	}
	snap, err := e.storeSnapshot(cs.PlaylistID, live, "before change set "+cs.ID)
	if err != nil {
		return nil, err
	}

	final := models.URIs(cs.Resolve(approved))
	res := &ApplyResult{ChangeSet: cs, Snapshot: snap, Approved: len(approved)}

	if removals, ok := removalsOnly(cs, approved, final); ok {
		for _, uri := range removals {
			if err := e.catalog.RemoveTrack(ctx, cs.PlaylistID, uri); err != nil {
				return res, fmt.Errorf("failed to remove %s, restore snapshot %s: %w", uri, snap.ID, err)
			}
			res.Removed++
		}
		res.Written = res.Removed > 0
		res.URIs, _ = splitLocal(final)
		return res, nil
	}

	uris, local := splitLocal(final)
	res.URIs, res.LocalSkipped, res.Warning = uris, local, localWarning(local)

	current, _ := splitLocal(models.URIs(live))
	if slices.Equal(uris, current) {
		return res, nil
	}

	if err := e.catalog.WritePlaylistTracks(ctx, cs.PlaylistID, uris); err != nil {
		return res, fmt.Errorf("failed to write playlist %s, restore snapshot %s: %w", cs.PlaylistID, snap.ID, err)
	}
	res.Written = true
	e.logger.Info("playlist written", "playlist", cs.PlaylistID, "tracks", len(uris), "snapshot", snap.ID)
	return res, nil
}

// removalsOnly returns the uris to remove when the approved changes are unique removals that keep
// the remaining order.
func removalsOnly(cs *models.ChangeSet, approved []string, final []string) ([]string, bool) {
	if len(approved) == 0 {
		return nil, false
	}
	counts := make(map[string]int, len(cs.Current))
	for _, t := range cs.Current {
		counts[t.URI]++
	}

	removed := make(map[string]bool, len(approved))
	uris := make([]string, 0, len(approved))
	for _, id := range approved {
		c, _ := cs.Change(id)
		if c.Kind != models.ChangeRemove && c.Kind != models.ChangeDuplicateRemoval {
			return nil, false
		}
		if c.Removed == nil || c.Removed.IsLocal() || counts[c.Removed.URI] != 1 {
			return nil, false
		}
		removed[c.Removed.URI] = true
		uris = append(uris, c.Removed.URI)
	}

	kept := make([]string, 0, len(cs.Current))
	for _, t := range cs.Current {
		if !removed[t.URI] {
			kept = append(kept, t.URI)
		}
	}
	if !slices.Equal(kept, final) {
		return nil, false
	}
	return uris, true
}

// pinRejected records ignore entries for rejected replacements and duplicate removals.
func (e *PlaylistEngine) pinRejected(cs *models.ChangeSet, approved []string) (int, error) {
	ok := make(map[string]bool, len(approved))
	for _, id := range approved {
		ok[id] = true
	}

	pinned := 0
	for _, c := range cs.Changes {
		if ok[c.ID] || c.Removed == nil {
			continue
		}
		var entry *models.IgnoreEntry
		switch c.Kind {
		case models.ChangeReplace:
			if c.Added != nil {
				entry = &models.IgnoreEntry{Kind: models.IgnoreVersion, Key: c.Removed.Key(), CandidateID: c.Added.ID}
			}
		case models.ChangeDuplicateRemoval:
			entry = &models.IgnoreEntry{Kind: models.IgnoreDuplicate, Key: c.Removed.Key(), CandidateID: c.Removed.ID}
		}
		if entry == nil || entry.CandidateID == "" {
			continue
		}
		if err := e.store.Ignores.Create(entry); err != nil {
			return pinned, fmt.Errorf("failed to record rejected change: %w", err)
		}
		pinned++
	}
	return pinned, nil
}
