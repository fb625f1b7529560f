package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/plx/internal/shared"
)

// Schedule triggers a config on a five-field cron expression.
type Schedule struct {
	ID             string     `json:"id"`
	ConfigID       string     `json:"config_id"`
	CronExpression string     `json:"cron_expression"`
	Enabled        bool       `json:"enabled"`
	LastRun        *time.Time `json:"last_run,omitempty"`
	NextRun        *time.Time `json:"next_run,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (s *Schedule) GetID() string { return s.ID }

func (s *Schedule) Validate() error {
	if s.ConfigID == "" {
		return fmt.Errorf("%w: schedule without config id", shared.ErrValidation)
	}
	if len(strings.Fields(s.CronExpression)) != 5 {
		return fmt.Errorf("%w: cron expression must have five fields: %q", shared.ErrValidation, s.CronExpression)
	}
	return nil
}

// RunStatus is the lifecycle state of a [RunHistory] entry.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
	RunSkipped RunStatus = "skipped"
)

// Terminal reports whether the run has finished.
func (s RunStatus) Terminal() bool {
	return s != RunRunning
}

// Trigger records who started a run.
type Trigger string

const (
	TriggerManual   Trigger = "manual"
	TriggerSchedule Trigger = "schedule"
)

// RunHistory is created when a run starts and updated in place when it ends.
type RunHistory struct {
	ID              string     `json:"id"`
	Sequence        int        `json:"sequence"`
	ConfigID        string     `json:"config_id"`
	PlaylistID      string     `json:"playlist_id,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	Status          RunStatus  `json:"status"`
	TracksProcessed int        `json:"tracks_processed"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	WarningMessage  string     `json:"warning_message,omitempty"`
	TriggeredBy     Trigger    `json:"triggered_by"`
	SnapshotID      string     `json:"snapshot_id,omitempty"`
	ChangeSetID     string     `json:"change_set_id,omitempty"`
}

func (r *RunHistory) GetID() string { return r.ID }

func (r *RunHistory) Validate() error {
	if r.ConfigID == "" {
		return fmt.Errorf("%w: run without config id", shared.ErrValidation)
	}
	switch r.Status {
	case RunRunning, RunSuccess, RunFailed, RunSkipped:
	default:
		return fmt.Errorf("%w: unknown run status %q", shared.ErrValidation, r.Status)
	}
	if r.TriggeredBy != TriggerManual && r.TriggeredBy != TriggerSchedule {
		return fmt.Errorf("%w: unknown trigger %q", shared.ErrValidation, r.TriggeredBy)
	}
	return nil
}

// Finish moves the run into a terminal state.
func (r *RunHistory) Finish(status RunStatus, at time.Time, err error) {
	r.Status = status
	r.FinishedAt = &at
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Snapshot is an immutable copy of a playlist's uri sequence.
type Snapshot struct {
	ID          string    `json:"id"`
	PlaylistID  string    `json:"playlist_id"`
	URIs        []string  `json:"uris"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Snapshot) GetID() string { return s.ID }

func (s *Snapshot) Validate() error {
	if s.PlaylistID == "" {
		return fmt.Errorf("%w: snapshot without playlist id", shared.ErrValidation)
	}
	return nil
}

// IgnoreKind names the stage an [IgnoreEntry] applies to.
type IgnoreKind string

const (
	IgnoreVersion   IgnoreKind = "version"   // candidate rejected as a replacement for the song
	IgnoreDuplicate IgnoreKind = "duplicate" // copy of the song the user chose to keep
)

// IgnoreEntry pins a rejected (song, candidate) pair so it is never proposed again.
//
// Version entries bar CandidateID as a replacement for Key. Duplicate entries keep the track
// CandidateID out of duplicate removal for Key.
type IgnoreEntry struct {
	ID          string        `json:"id"`
	Kind        IgnoreKind    `json:"kind"`
	Key         NormalizedKey `json:"key"`
	CandidateID string        `json:"candidate_id"`
	CreatedAt   time.Time     `json:"created_at"`
}

func (e *IgnoreEntry) GetID() string { return e.ID }

func (e *IgnoreEntry) Validate() error {
	if e.CandidateID == "" {
		return fmt.Errorf("%w: ignore entry without candidate id", shared.ErrValidation)
	}
	switch e.Kind {
	case IgnoreVersion, IgnoreDuplicate:
	default:
		return fmt.Errorf("%w: unknown ignore kind %q", shared.ErrValidation, e.Kind)
	}
	return nil
}

type ignoreKey struct {
	kind IgnoreKind
	key  NormalizedKey
	id   string
}

// IgnoreSet is a read-only lookup over ignore entries. A nil set contains nothing.
type IgnoreSet map[ignoreKey]bool

// NewIgnoreSet indexes entries by kind and key.
func NewIgnoreSet(entries []*IgnoreEntry) IgnoreSet {
	set := make(IgnoreSet, len(entries))
	for _, e := range entries {
		set[ignoreKey{kind: e.Kind, key: e.Key, id: e.CandidateID}] = true
	}
	return set
}

// Rejected reports whether candidate id was rejected as a replacement for key.
func (s IgnoreSet) Rejected(key NormalizedKey, id string) bool {
	return s.has(IgnoreVersion, key, id)
}

// Kept reports whether track id was kept on purpose as a duplicate of key.
func (s IgnoreSet) Kept(key NormalizedKey, id string) bool {
	return s.has(IgnoreDuplicate, key, id)
}

func (s IgnoreSet) has(kind IgnoreKind, key NormalizedKey, id string) bool {
	if s == nil || id == "" {
		return false
	}
	return s[ignoreKey{kind: kind, key: key, id: id}]
}
