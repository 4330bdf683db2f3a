package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestSQLite opens a metastore pool pair on a throwaway file in
// t.TempDir(), migrates the catalog schema (datasets, recipes,
// export_runs), and registers cleanup. Repository and API tests build
// their repos on the returned handles the same way cmd/server does.
func OpenTestSQLite(t *testing.T) (writeDB, readDB *sql.DB) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "metastore.sqlite")

	writeDB, readDB, err := OpenSQLitePair(path, 4)
	if err != nil {
		t.Fatalf("open test metastore: %v", err)
	}
	t.Cleanup(func() {
		_ = readDB.Close()
		_ = writeDB.Close()
	})

	if err := RunMigrations(writeDB); err != nil {
		t.Fatalf("migrate test metastore: %v", err)
	}

	return writeDB, readDB
}
