package db

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const defaultDBName = "taskdeck.db"

type Config struct {
	Path string
}

func dbFile(path string) string {
	if path == "" {
		path = ".taskdeck"
	}
	return filepath.Join(path, defaultDBName)
}

// EnsureDir creates the data directory if missing.
func EnsureDir(path string) (string, error) {
	if path == "" {
		path = ".taskdeck"
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// Open opens the SQLite database with foreign keys enforced and a busy
// timeout so concurrent writers wait instead of failing immediately.
func Open(cfg Config) (*sql.DB, error) {
	if _, err := EnsureDir(cfg.Path); err != nil {
		return nil, err
	}
	dsn := "file:" + dbFile(cfg.Path) +
		"?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	return sql.Open("sqlite", dsn)
}

// Path returns the database file path for a data directory.
func Path(dir string) string {
	return dbFile(dir)
}
