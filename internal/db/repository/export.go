package repository

import (
	"context"
	"database/sql"

	"gridlake/internal/domain"
)

// Compile-time check.
var _ domain.ExportRunRepository = (*ExportRunRepo)(nil)

// ExportRunRepo implements ExportRunRepository using SQLite. Inserts go
// through the serialized write pool, history reads through the read pool.
type ExportRunRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewExportRunRepo creates a new ExportRunRepo on the write/read pool pair.
func NewExportRunRepo(writeDB, readDB *sql.DB) *ExportRunRepo {
	return &ExportRunRepo{write: writeDB, read: readDB}
}

// Insert records a completed or failed export run.
func (r *ExportRunRepo) Insert(ctx context.Context, run *domain.ExportRun) error {
	if run.ID == "" {
		run.ID = newID()
	}
	_, err := r.write.ExecContext(ctx,
		`INSERT INTO export_runs
		 (id, dataset, recipe, format, path, remote_uri, row_count, status, error, duration_ms, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Dataset, nullString(run.Recipe), run.Format, run.Path,
		nullString(run.RemoteURI), run.RowCount, run.Status, nullString(run.Error),
		run.DurationMS, run.CreatedBy)
	return mapDBError(err)
}

// List returns recent export runs, optionally filtered by dataset.
func (r *ExportRunRepo) List(ctx context.Context, dataset string, limit int) ([]domain.ExportRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, dataset, recipe, format, path, remote_uri, row_count, status, error,
	 duration_ms, created_by, created_at FROM export_runs`
	args := []interface{}{}
	if dataset != "" {
		query += ` WHERE dataset = ?`
		args = append(args, dataset)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.ExportRun
	for rows.Next() {
		var run domain.ExportRun
		var recipe, remoteURI, errMsg sql.NullString
		var createdAt string
		if err := rows.Scan(&run.ID, &run.Dataset, &recipe, &run.Format, &run.Path,
			&remoteURI, &run.RowCount, &run.Status, &errMsg, &run.DurationMS,
			&run.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		run.Recipe = stringPtr(recipe)
		run.RemoteURI = stringPtr(remoteURI)
		run.Error = stringPtr(errMsg)
		run.CreatedAt = parseTime(createdAt)
		out = append(out, run)
	}
	return out, rows.Err()
}
