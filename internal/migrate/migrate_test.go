package migrate_test

import (
	"testing"

	"taskdeck/internal/db"
	"taskdeck/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := db.Open(db.Config{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("second run: %v", err)
	}

	var version int
	if err := conn.QueryRow(`SELECT version FROM schema_version`).Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if version < 1 {
		t.Fatalf("schema version = %d", version)
	}
	var rows int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&rows); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("schema_version rows = %d, want 1", rows)
	}
}
