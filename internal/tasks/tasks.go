// package tasks runs dynamic playlist configs and applies their change sets.
//
// PlaylistEngine orchestrates catalog reads, the pure pipeline stages, persistence of change sets,
// snapshots and history, and the final playlist writes.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plx/internal/models"
	"github.com/desertthunder/plx/internal/pipeline"
	"github.com/desertthunder/plx/internal/repositories"
	"github.com/desertthunder/plx/internal/services"
	"github.com/desertthunder/plx/internal/shared"
)

// Engine defines the trigger surface consumed by the CLI, TUI and scheduler.
type Engine interface {
	// RunNow computes a config and applies the full result without review.
	RunNow(ctx context.Context, configRef string, trigger models.Trigger, progress chan<- ProgressUpdate) (*models.RunHistory, error)

	// PreviewConfig computes a config and stores the change set for review. Nothing is written remotely.
	PreviewConfig(ctx context.Context, configRef string, progress chan<- ProgressUpdate) (*models.ComputedResult, error)

	// PreviewPlaylist runs the processing stages over a single playlist in place.
	PreviewPlaylist(ctx context.Context, playlistID string, opts models.ProcessingOptions, progress chan<- ProgressUpdate) (*models.ComputedResult, error)

	// Apply writes the approved subset of a pending change set.
	Apply(ctx context.Context, changeSetID string, approved []string) (*ApplyResult, error)

	// Restore writes a snapshot's uri sequence back to its playlist.
	Restore(ctx context.Context, snapshotID string) (*RestoreResult, error)
}

// PlaylistEngine implements [Engine] over a catalog client and the SQLite store.
type PlaylistEngine struct {
	catalog services.Catalog
	store   *repositories.Store
	logger  *log.Logger
	stale   time.Duration
	now     func() time.Time
}

// Option configures a [PlaylistEngine].
type Option func(*PlaylistEngine)

// WithLogger sets the engine logger.
func WithLogger(l *log.Logger) Option {
	return func(e *PlaylistEngine) { e.logger = l }
}

// WithStaleAfter sets how long a run lock may be held before another run may take it over.
// d <= 0 never expires locks.
func WithStaleAfter(d time.Duration) Option {
	return func(e *PlaylistEngine) { e.stale = d }
}

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *PlaylistEngine) { e.now = now }
}

// NewPlaylistEngine creates a new PlaylistEngine with the provided catalog and store.
func NewPlaylistEngine(catalog services.Catalog, store *repositories.Store, opts ...Option) *PlaylistEngine {
	e := &PlaylistEngine{
		catalog: catalog,
		store:   store,
		logger:  shared.NewLogger(nil),
		stale:   time.Hour,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store exposes the repositories the engine persists to.
func (e *PlaylistEngine) Store() *repositories.Store {
	return e.store
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func (e *PlaylistEngine) ready() error {
	if e.catalog == nil {
		return fmt.Errorf("%w: catalog client not initialized", shared.ErrServiceNotReady)
	}
	return nil
}

// Compute resolves a config's sources and runs the pipeline against the target's current contents.
// It never mutates remote state.
func (e *PlaylistEngine) Compute(ctx context.Context, cfg *models.DynamicPlaylistConfig, progress chan<- ProgressUpdate) (*models.ComputedResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}

	var liked []models.Track
	likedLoaded := false
	loadLiked := func() ([]models.Track, error) {
		if likedLoaded {
			return liked, nil
		}
		e.sendProgress(progress, fetchLikedUpdate())
		tracks, err := e.catalog.ListLikedSongs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read liked songs: %w", err)
		}
		liked, likedLoaded = tracks, true
		return liked, nil
	}

	lists := make([][]models.Track, 0, len(cfg.Sources)+1)
	for i, src := range cfg.Sources {
		e.sendProgress(progress, fetchSourceUpdate(i+1, len(cfg.Sources), src))

		var (
			tracks []models.Track
			err    error
		)
		if src.Kind == models.SourceLiked {
			tracks, err = loadLiked()
		} else {
			tracks, err = e.catalog.ListPlaylistTracks(ctx, src.PlaylistID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", src, err)
		}
		lists = append(lists, pipeline.Sample(tracks, cfg.SamplePerSource))
	}

	if cfg.IncludeLikedSongs {
		tracks, err := loadLiked()
		if err != nil {
			return nil, err
		}
		lists = append(lists, pipeline.Sample(tracks, cfg.SamplePerSource))
	}
	if cfg.Filter.ExcludeLiked {
		if _, err := loadLiked(); err != nil {
			return nil, err
		}
	}

	merged := pipeline.Concat(lists...)
	kept, dropped := pipeline.Filter(merged, cfg.Filter, liked)
	kept = pipeline.UniqueByURI(kept)

	e.sendProgress(progress, fetchTargetUpdate(cfg.TargetPlaylistID))
	target, err := e.catalog.ListPlaylistTracks(ctx, cfg.TargetPlaylistID)
	if err != nil {
		return nil, fmt.Errorf("failed to read target playlist: %w", err)
	}

	out, err := e.process(ctx, kept, cfg.Processing, progress)
	if err != nil {
		return nil, err
	}
	out.Stats.SourceTracks = len(merged)
	out.Stats.Filtered = dropped

	cs := pipeline.Reconcile(target, out, cfg.UpdateMode)
	cs.ConfigID = cfg.ID
	cs.PlaylistID = cfg.TargetPlaylistID
	return e.result(cs), nil
}

// PreviewConfig resolves configRef by id or name, computes it and stores a non-empty change set
// as awaiting approval.
func (e *PlaylistEngine) PreviewConfig(ctx context.Context, configRef string, progress chan<- ProgressUpdate) (*models.ComputedResult, error) {
	cfg, err := e.store.Configs.Resolve(configRef)
	if err != nil {
		return nil, err
	}

	res, err := e.Compute(ctx, cfg, progress)
	if err != nil {
		return nil, err
	}
	if err := e.savePending(res.ChangeSet); err != nil {
		return res, err
	}
	return res, nil
}

// PreviewPlaylist sorts, dedupes and replaces versions within one playlist. The change set diffs the
// playlist against its own processed contents.
func (e *PlaylistEngine) PreviewPlaylist(ctx context.Context, playlistID string, opts models.ProcessingOptions, progress chan<- ProgressUpdate) (*models.ComputedResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := e.ready(); err != nil {
		return nil, err
	}

	e.sendProgress(progress, fetchTargetUpdate(playlistID))
	current, err := e.catalog.ListPlaylistTracks(ctx, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist: %w", err)
	}

	out, err := e.process(ctx, current, opts, progress)
	if err != nil {
		return nil, err
	}

	cs := pipeline.Reconcile(current, out, models.ModeReplace)
	cs.PlaylistID = playlistID
	res := e.result(cs)
	if err := e.savePending(cs); err != nil {
		return res, err
	}
	return res, nil
}

// Cancel closes a pending change set without writing anything.
func (e *PlaylistEngine) Cancel(changeSetID string) error {
	cs, err := e.pending(changeSetID)
	if err != nil {
		return err
	}
	cs.State = models.StateCancelled
	return e.store.ChangeSets.Update(cs)
}

func (e *PlaylistEngine) savePending(cs *models.ChangeSet) error {
	if cs.Empty() {
		return nil
	}
	if err := e.store.ChangeSets.Create(cs); err != nil {
		return fmt.Errorf("failed to store change set: %w", err)
	}
	return nil
}

func (e *PlaylistEngine) process(ctx context.Context, tracks []models.Track, opts models.ProcessingOptions, progress chan<- ProgressUpdate) (pipeline.Output, error) {
	if opts.Sort {
		tracks = e.withAttributes(ctx, tracks, opts.SortRules, progress)
	}

	ignores, err := e.store.Ignores.Set()
	if err != nil {
		return pipeline.Output{}, fmt.Errorf("failed to load ignore list: %w", err)
	}

	e.sendProgress(progress, processUpdate(len(tracks)))
	onEvent := func(ev pipeline.VersionEvent) {
		e.sendProgress(progress, versionEventUpdate(ev))
	}
	return pipeline.Process(ctx, tracks, opts, ignores, e.catalog, onEvent)
}

// withAttributes fills audio features the sort rules need. A failed lookup leaves them unset so the
// affected tracks order last.
func (e *PlaylistEngine) withAttributes(ctx context.Context, tracks []models.Track, rules []models.SortRule, progress chan<- ProgressUpdate) []models.Track {
	missing := pipeline.AttributesMissing(tracks, rules)
	if len(missing) == 0 {
		return tracks
	}

	e.sendProgress(progress, fetchAttributesUpdate(len(missing)))
	features, err := e.catalog.AudioFeatures(ctx, missing)
	if err != nil {
		e.logger.Warn("audio features unavailable", "tracks", len(missing), "error", err)
		return tracks
	}

	out := slices.Clone(tracks)
	for i, t := range out {
		a, ok := features[t.ID]
		if !ok {
			continue
		}
		if t.Attributes.Tempo == nil {
			out[i].Attributes.Tempo = a.Tempo
		}
		if t.Attributes.Energy == nil {
			out[i].Attributes.Energy = a.Energy
		}
		if t.Attributes.Danceability == nil {
			out[i].Attributes.Danceability = a.Danceability
		}
		if t.Attributes.Valence == nil {
			out[i].Attributes.Valence = a.Valence
		}
	}
	return out
}

func (e *PlaylistEngine) result(cs *models.ChangeSet) *models.ComputedResult {
	final := cs.Final()
	_, local := splitLocal(models.URIs(final))
	cs.Stats.LocalSkipped = local

	res := &models.ComputedResult{
		TargetPlaylistID: cs.PlaylistID,
		FinalTracks:      final,
		ChangeSet:        cs,
		Stats:            cs.Stats,
	}
	if w := localWarning(local); w != "" {
		res.Warnings = append(res.Warnings, w)
	}
	return res
}

// splitLocal drops device-local uris, returning the writable rest and how many were dropped.
func splitLocal(uris []string) ([]string, int) {
	out := make([]string, 0, len(uris))
	for _, u := range uris {
		if (models.Track{URI: u}).IsLocal() {
			continue
		}
		out = append(out, u)
	}
	return out, len(uris) - len(out)
}

func localWarning(n int) string {
	if n == 0 {
		return ""
	}
	if n == 1 {
		return "1 local file cannot be written through the API and was left out"
	}
	return fmt.Sprintf("%d local files cannot be written through the API and were left out", n)
}
