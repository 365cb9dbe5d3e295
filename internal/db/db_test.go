package db

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNew_CreatesSchemaAndDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "agent.db")

	database, err := New(dbPath, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer database.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file not created: %v", err)
	}

	for _, table := range []string{"_migrations", "agent_config", "activity"} {
		var name string
		err := database.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestNew_MigrationsAreIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "agent.db")

	first, err := New(dbPath, testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := first.Conn().Exec(
		"INSERT INTO activity (id, reel_id, level, message, created_at) VALUES ('e1', 'reel1', 'success', 'm', '2026-01-01T00:00:00Z')",
	); err != nil {
		t.Fatalf("insert: %v", err)
	}
	first.Close()

	// Reopening must not rerun applied migrations or lose data.
	second, err := New(dbPath, testLogger())
	if err != nil {
		t.Fatalf("reopen New() error = %v", err)
	}
	defer second.Close()

	var count int
	if err := second.Conn().QueryRow("SELECT COUNT(*) FROM activity").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("activity rows after reopen = %d, want 1", count)
	}
}
