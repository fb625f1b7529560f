package shared

import (
	"testing"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}

		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}

		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}
		if migrations[0].Name != "create_tables" {
			t.Errorf("expected first migration name create_tables, got %q", migrations[0].Name)
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		if err := RunMigrations(db); err != nil {
			t.Fatalf("running migrations twice should be a no-op: %v", err)
		}

		for _, table := range []string{"configs", "schedules", "run_history", "snapshots", "ignore_entries", "change_sets", "run_locks", "governor_state"} {
			if _, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
				t.Errorf("%s table should exist after migrations: %v", table, err)
			}
		}

		if _, err := db.Exec(`INSERT INTO ignore_entries (id, kind, normalized_title, normalized_artist, candidate_id, created_at)
			VALUES ('e1', 'duplicate', 'song', 'artist', 'c1', CURRENT_TIMESTAMP)`); err != nil {
			t.Fatalf("failed to insert ignore entry: %v", err)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}
		if _, err := db.Exec("SELECT 1 FROM run_locks LIMIT 1"); err == nil {
			t.Error("run_locks table should not exist after rollback")
		}
		var kept int
		if err := db.QueryRow("SELECT COUNT(*) FROM ignore_entries").Scan(&kept); err != nil || kept != 1 {
			t.Errorf("expected ignore entries to survive rollback, got %d %v", kept, err)
		}

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}
		if _, err := db.Exec("SELECT 1 FROM configs LIMIT 1"); err == nil {
			t.Error("configs table should not exist after rollback")
		}
		if err := RollbackMigration(db); err == nil {
			t.Error("expected error when nothing is left to roll back")
		}
	})
}
