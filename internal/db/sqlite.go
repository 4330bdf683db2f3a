// Package db provides metastore connectivity helpers and migration support.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DSN parameters applied to every metastore connection. 5s busy timeout
// because catalog writes (dataset registration, export-run inserts) are
// short and a blocked writer should wait rather than fail.
const (
	busyTimeoutMS   = "5000"
	syncMode        = "NORMAL"
	journalMode     = "WAL"
	defaultReadConn = 4
)

// OpenSQLite opens a *sql.DB pool on the metastore file.
//
// mode selects the pool's role:
//   - "write": single connection (MaxOpenConns=1) with _txlock=immediate,
//     shared by dataset registration, recipe mutations, and export-run
//     inserts so writes serialize without SQLITE_BUSY churn.
//   - "read":  maxOpen connections (0 defaults to 4) for catalog listings,
//     recipe lookups, and the scheduler's periodic scans.
//
// Both roles run WAL with busy_timeout, synchronous=NORMAL, and
// foreign_keys=on.
func OpenSQLite(path string, mode string, maxOpen int) (*sql.DB, error) {
	if mode != "read" && mode != "write" {
		return nil, fmt.Errorf("invalid SQLite mode %q: must be \"read\" or \"write\"", mode)
	}

	db, err := sql.Open("sqlite3", buildDSN(path, mode))
	if err != nil {
		return nil, fmt.Errorf("open sqlite (%s): %w", mode, err)
	}

	if mode == "write" {
		maxOpen = 1
	} else if maxOpen <= 0 {
		maxOpen = defaultReadConn
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite (%s): %w", mode, err)
	}

	return db, nil
}

// OpenSQLitePair opens the write pool and the read pool on the same
// metastore file. The repositories take both handles and route each
// statement to the matching pool.
//
// readMaxOpen controls the read pool size (0 defaults to 4).
func OpenSQLitePair(path string, readMaxOpen int) (writeDB, readDB *sql.DB, err error) {
	writeDB, err = OpenSQLite(path, "write", 0)
	if err != nil {
		return nil, nil, err
	}

	readDB, err = OpenSQLite(path, "read", readMaxOpen)
	if err != nil {
		_ = writeDB.Close()
		return nil, nil, err
	}

	return writeDB, readDB, nil
}

func buildDSN(path string, mode string) string {
	params := url.Values{}
	params.Set("_journal_mode", journalMode)
	params.Set("_busy_timeout", busyTimeoutMS)
	params.Set("_synchronous", syncMode)
	params.Set("_foreign_keys", "on")
	if mode == "write" {
		params.Set("_txlock", "immediate")
	}
	return path + "?" + params.Encode()
}
