// Package pipeline implements the pure stages of playlist reconciliation.
//
// A run moves a track list through [Filter], [Sample], [Sort], [Dedupe] and [VersionStage], then
// [Reconcile] diffs the output against the target playlist under an [models.UpdateMode] and
// returns a [models.ChangeSet]. Every stage except the version search is synchronous and free of
// side effects; the version stage reaches the catalog only through its [Searcher].
//
// Ordering rules shared by the stages live in [Comparator]: text is compared with a
// case-insensitive collator, unknown release dates and missing audio features order last in
// either direction.
package pipeline
