// Package repositories implements SQLite persistence for the reconciliation pipeline.
//
// Each repository implements [models.Repository] for one record type. List filters are built with
// squirrel from a criteria map so callers never assemble SQL.
//
// Key Implementations:
//   - [ConfigRepository] : dynamic playlist definitions, soft deleted, cascading to schedules
//   - [ScheduleRepository] : cron triggers with last/next run bookkeeping
//   - [RunRepository] : append-only run history with interrupted-run reconciliation
//   - [SnapshotRepository] : immutable uri sequences taken before every write
//   - [IgnoreRepository] : rejected (song, candidate) pins read by the version stage
//   - [ChangeSetRepository] : pending and applied change sets
//
// Sequence numbers provide stable, human-readable ordering (config #3, run #42) independent of UUIDs
// and creation timestamps. [NextSequence] atomically increments per-table counters kept in
// dedicated sequence tables.
package repositories
