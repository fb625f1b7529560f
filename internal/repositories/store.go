package repositories

import "database/sql"

// Store groups the repositories backed by one database.
type Store struct {
	Configs    *ConfigRepository
	Schedules  *ScheduleRepository
	Runs       *RunRepository
	Snapshots  *SnapshotRepository
	Ignores    *IgnoreRepository
	ChangeSets *ChangeSetRepository
	Locks      *LockRepository
	Governor   *GovernorRepository
}

// NewStore creates every repository over db
func NewStore(db *sql.DB) *Store {
	return &Store{
		Configs:    NewConfigRepository(db),
		Schedules:  NewScheduleRepository(db),
		Runs:       NewRunRepository(db),
		Snapshots:  NewSnapshotRepository(db),
		Ignores:    NewIgnoreRepository(db),
		ChangeSets: NewChangeSetRepository(db),
		Locks:      NewLockRepository(db),
		Governor:   NewGovernorRepository(db),
	}
}
