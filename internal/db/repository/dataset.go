package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"gridlake/internal/domain"
)

// Compile-time check.
var _ domain.DatasetRepository = (*DatasetRepo)(nil)

// DatasetRepo implements DatasetRepository using SQLite. Writes go
// through the serialized write pool, reads through the concurrent read
// pool.
type DatasetRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewDatasetRepo creates a new DatasetRepo on the write/read pool pair.
func NewDatasetRepo(writeDB, readDB *sql.DB) *DatasetRepo {
	return &DatasetRepo{write: writeDB, read: readDB}
}

// Create inserts a new dataset catalog entry.
func (r *DatasetRepo) Create(ctx context.Context, d *domain.Dataset) (*domain.Dataset, error) {
	cols, err := json.Marshal(d.Columns)
	if err != nil {
		return nil, fmt.Errorf("marshal columns: %w", err)
	}

	id := newID()
	_, err = r.write.ExecContext(ctx,
		`INSERT INTO datasets (id, name, source_path, format, row_count, columns, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, d.Name, d.SourcePath, d.Format, d.RowCount, string(cols), d.CreatedBy)
	if err != nil {
		return nil, mapDBError(err)
	}

	return r.GetByName(ctx, d.Name)
}

// GetByName returns a dataset by its table name.
func (r *DatasetRepo) GetByName(ctx context.Context, name string) (*domain.Dataset, error) {
	row := r.read.QueryRowContext(ctx,
		`SELECT id, name, source_path, format, row_count, columns, created_by, created_at
		 FROM datasets WHERE name = ?`, name)
	d, err := scanDataset(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return d, nil
}

// List returns all datasets, newest first.
func (r *DatasetRepo) List(ctx context.Context) ([]domain.Dataset, error) {
	rows, err := r.read.QueryContext(ctx,
		`SELECT id, name, source_path, format, row_count, columns, created_by, created_at
		 FROM datasets ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// UpdateRowCount refreshes the cached row count after re-ingestion.
func (r *DatasetRepo) UpdateRowCount(ctx context.Context, name string, count int64) error {
	res, err := r.write.ExecContext(ctx,
		`UPDATE datasets SET row_count = ? WHERE name = ?`, count, name)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("dataset %q not found", name)
	}
	return nil
}

// Delete removes a dataset catalog entry.
func (r *DatasetRepo) Delete(ctx context.Context, name string) error {
	res, err := r.write.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, name)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("dataset %q not found", name)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDataset(row rowScanner) (*domain.Dataset, error) {
	var d domain.Dataset
	var cols, createdAt string
	if err := row.Scan(&d.ID, &d.Name, &d.SourcePath, &d.Format, &d.RowCount, &cols, &d.CreatedBy, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cols), &d.Columns); err != nil {
		return nil, fmt.Errorf("unmarshal columns: %w", err)
	}
	d.CreatedAt = parseTime(createdAt)
	return &d, nil
}
