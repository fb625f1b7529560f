// Package tasks runs dynamic playlist configs against the catalog with real-time progress reporting.
//
// # Core Operations
//
// The [Engine] interface is the trigger surface:
//
//  1. [Engine.RunNow] : compute a config and apply the full result unattended
//     - at most one run per config is in flight; overlapping triggers are recorded as skipped
//     - every run is recorded in run history with its snapshot and change set
//
//  2. [Engine.PreviewConfig] / [Engine.PreviewPlaylist] : compute without writing
//     - the change set is stored as awaiting approval
//
//  3. [Engine.Apply] : write an approved subset of a change set
//     - the playlist is snapshotted first
//     - rejected replacements and duplicate removals are pinned in the ignore list
//
//  4. [Engine.Restore] : write a snapshot back, after snapshotting the pre-restore state
//
// [PlaylistEngine.Scan] runs the processing stages over many playlists, one at a time, with
// cooperative cancellation between playlists.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for
// advanced UI rendering. Version search updates carry the [pipeline.VersionEvent] as Data.
// Updates use select with default to prevent blocking.
package tasks
