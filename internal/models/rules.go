package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/plx/internal/shared"
)

// Criterion names a sortable track property.
type Criterion string

const (
	ByTitle        Criterion = "title"
	ByArtist       Criterion = "artist"
	ByAlbum        Criterion = "album"
	ByReleaseDate  Criterion = "release_date"
	ByDuration     Criterion = "duration"
	ByTempo        Criterion = "tempo"
	ByEnergy       Criterion = "energy"
	ByDanceability Criterion = "danceability"
	ByValence      Criterion = "valence"
)

// Criteria lists every supported sort criterion.
var Criteria = []Criterion{ByTitle, ByArtist, ByAlbum, ByReleaseDate, ByDuration, ByTempo, ByEnergy, ByDanceability, ByValence}

func (c Criterion) Valid() bool {
	for _, known := range Criteria {
		if c == known {
			return true
		}
	}
	return false
}

// IsAttribute reports whether the criterion reads an audio feature.
func (c Criterion) IsAttribute() bool {
	switch c {
	case ByTempo, ByEnergy, ByDanceability, ByValence:
		return true
	}
	return false
}

// SortRule is one key of a multi-key sort. Earlier rules take priority.
type SortRule struct {
	Criterion  Criterion `json:"criterion" yaml:"criterion"`
	Descending bool      `json:"descending,omitempty" yaml:"descending,omitempty"`
}

// DupePreference selects which member of a duplicate group survives.
type DupePreference string

const (
	KeepOldest DupePreference = "oldest"
	KeepNewest DupePreference = "newest"
	KeepFirst  DupePreference = "first"
	KeepLast   DupePreference = "last"
)

func (p DupePreference) Valid() bool {
	switch p {
	case KeepOldest, KeepNewest, KeepFirst, KeepLast:
		return true
	}
	return false
}

// VersionScope restricts where replacement candidates may come from.
type VersionScope string

const (
	ScopeArtist VersionScope = "artist"
	ScopeGlobal VersionScope = "global"
)

// VersionPick chooses the earliest or latest release among candidates.
type VersionPick string

const (
	PickOldest VersionPick = "oldest"
	PickNewest VersionPick = "newest"
)

// VersionPreference configures the version-replacement stage.
type VersionPreference struct {
	Scope VersionScope `json:"scope" yaml:"scope"`
	Pick  VersionPick  `json:"pick" yaml:"pick"`
}

func (v VersionPreference) Validate() error {
	if v.Scope != ScopeArtist && v.Scope != ScopeGlobal {
		return fmt.Errorf("%w: unknown version scope %q", shared.ErrValidation, v.Scope)
	}
	if v.Pick != PickOldest && v.Pick != PickNewest {
		return fmt.Errorf("%w: unknown version pick %q", shared.ErrValidation, v.Pick)
	}
	return nil
}

// SourceKind distinguishes playlist sources from the liked-songs library.
type SourceKind string

const (
	SourcePlaylist SourceKind = "playlist"
	SourceLiked    SourceKind = "liked"
)

// Source is one input of a dynamic playlist.
type Source struct {
	Kind       SourceKind `json:"kind" yaml:"kind"`
	PlaylistID string     `json:"playlist_id,omitempty" yaml:"playlist_id,omitempty"`
}

func (s Source) Validate() error {
	switch s.Kind {
	case SourcePlaylist:
		if s.PlaylistID == "" {
			return fmt.Errorf("%w: playlist source without playlist id", shared.ErrValidation)
		}
	case SourceLiked:
	default:
		return fmt.Errorf("%w: unknown source kind %q", shared.ErrValidation, s.Kind)
	}
	return nil
}

func (s Source) String() string {
	if s.Kind == SourceLiked {
		return "liked songs"
	}
	return "playlist " + s.PlaylistID
}

// FilterConfig drops tracks from the merged source list before processing.
type FilterConfig struct {
	ExcludeLiked     bool     `json:"exclude_liked,omitempty" yaml:"exclude_liked,omitempty"`
	KeywordBlacklist []string `json:"keyword_blacklist,omitempty" yaml:"keyword_blacklist,omitempty"`
}

// Blacklisted reports whether any keyword is a case-insensitive substring of the title or an artist.
func (f FilterConfig) Blacklisted(t Track) bool {
	if len(f.KeywordBlacklist) == 0 {
		return false
	}
	title := strings.ToLower(t.Title)
	artist := strings.ToLower(t.Artist())
	for _, kw := range f.KeywordBlacklist {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(title, kw) || strings.Contains(artist, kw) {
			return true
		}
	}
	return false
}

// UpdateMode controls how computed tracks reconcile against the target playlist.
type UpdateMode string

const (
	ModeReplace UpdateMode = "replace"
	ModeMerge   UpdateMode = "merge"
	ModeAppend  UpdateMode = "append"
)

func (m UpdateMode) Valid() bool {
	switch m {
	case ModeReplace, ModeMerge, ModeAppend:
		return true
	}
	return false
}

// ProcessingOptions toggles the sort, dedup and version stages.
type ProcessingOptions struct {
	Sort           bool              `json:"sort" yaml:"sort"`
	SortRules      []SortRule        `json:"sort_rules,omitempty" yaml:"sort_rules,omitempty"`
	Dedupe         bool              `json:"dedupe" yaml:"dedupe"`
	DupePreference DupePreference    `json:"dupe_preference,omitempty" yaml:"dupe_preference,omitempty"`
	Versions       bool              `json:"versions" yaml:"versions"`
	Version        VersionPreference `json:"version,omitempty" yaml:"version,omitempty"`
}

// Validate rejects option sets that would fail inside the pipeline.
func (o ProcessingOptions) Validate() error {
	if o.Sort {
		if len(o.SortRules) == 0 {
			return fmt.Errorf("%w: sorting enabled with no sort rules", shared.ErrValidation)
		}
		for _, r := range o.SortRules {
			if !r.Criterion.Valid() {
				return fmt.Errorf("%w: unknown sort criterion %q", shared.ErrValidation, r.Criterion)
			}
		}
	}
	if o.Dedupe && !o.DupePreference.Valid() {
		return fmt.Errorf("%w: unknown duplicate preference %q", shared.ErrValidation, o.DupePreference)
	}
	if o.Versions {
		if err := o.Version.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DynamicPlaylistConfig declares how a target playlist is built from its sources.
type DynamicPlaylistConfig struct {
	ID                string            `json:"id" yaml:"id,omitempty"`
	Sequence          int               `json:"-" yaml:"-"`
	Name              string            `json:"name" yaml:"name"`
	TargetPlaylistID  string            `json:"target_playlist_id" yaml:"target_playlist_id"`
	Sources           []Source          `json:"sources" yaml:"sources"`
	Filter            FilterConfig      `json:"filter" yaml:"filter,omitempty"`
	UpdateMode        UpdateMode        `json:"update_mode" yaml:"update_mode"`
	SamplePerSource   int               `json:"sample_per_source,omitempty" yaml:"sample_per_source,omitempty"`
	IncludeLikedSongs bool              `json:"include_liked_songs,omitempty" yaml:"include_liked_songs,omitempty"`
	Processing        ProcessingOptions `json:"processing" yaml:"processing"`
	Enabled           bool              `json:"enabled" yaml:"enabled"`
	CreatedAt         time.Time         `json:"created_at" yaml:"-"`
	UpdatedAt         time.Time         `json:"updated_at" yaml:"-"`
}

func (c *DynamicPlaylistConfig) GetID() string { return c.ID }

// Validate checks the config at the boundary so the pipeline can trust it.
func (c *DynamicPlaylistConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: config name is required", shared.ErrValidation)
	}
	if c.TargetPlaylistID == "" {
		return fmt.Errorf("%w: target playlist id is required", shared.ErrValidation)
	}
	if len(c.Sources) == 0 && !c.IncludeLikedSongs {
		return fmt.Errorf("%w: config has no sources and does not include liked songs", shared.ErrValidation)
	}
	for _, s := range c.Sources {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	if !c.UpdateMode.Valid() {
		return fmt.Errorf("%w: unknown update mode %q", shared.ErrValidation, c.UpdateMode)
	}
	if c.SamplePerSource < 0 {
		return fmt.Errorf("%w: sample per source must be positive", shared.ErrValidation)
	}
	return c.Processing.Validate()
}
