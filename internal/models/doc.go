// Package models defines the values that flow through the playlist reconciliation pipeline and the
// records persisted around it.
//
// The package contains three groups of types:
//
// 1. Track values: immutable catalog data and the identity derived from it
//   - [Track] : normalized track with release date and optional audio features
//   - [ReleaseDate] : date with year, month or day precision
//   - [NormalizedKey] : (title, primary artist) identity used for "same song" comparisons
//
// 2. Rules: the declared shape of a reconciliation
//   - [SortRule], [DupePreference], [VersionPreference] : stage parameters
//   - [Source], [FilterConfig], [UpdateMode] : dynamic playlist inputs
//   - [DynamicPlaylistConfig] : the full definition, validated at the boundary
//
// 3. Records: what a run produces and what is kept afterwards
//   - [ChangeSet] and [Change] : the reviewable diff, resolved against an approved subset by [ChangeSet.Resolve]
//   - [Snapshot] : uri sequence captured before every write
//   - [RunHistory] : lifecycle of a manual or scheduled run
//   - [Schedule] : cron trigger for a config
//   - [IgnoreEntry] and [IgnoreSet] : rejected proposals that must not come back
//
// Persisted records implement [Model], and the Repository[T] interface defines standard CRUD operations for database access.
package models
