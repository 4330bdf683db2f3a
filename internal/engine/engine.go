// Package engine wraps the embedded DuckDB connection that holds all
// ingested datasets and executes compiled frame pipelines.
package engine

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"

	"gridlake/internal/domain"
)

// identifierRe allows alphanumeric + underscores, starting with a letter or underscore.
var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidateIdentifier rejects names that cannot be used as table or column
// identifiers without quoting tricks.
func ValidateIdentifier(name string) error {
	if name == "" {
		return domain.ErrValidation("name is required")
	}
	if len(name) > 128 {
		return domain.ErrValidation("name must be at most 128 characters")
	}
	if !identifierRe.MatchString(name) {
		return domain.ErrValidation("name must match [a-zA-Z_][a-zA-Z0-9_]*")
	}
	return nil
}

// QuoteIdentifier double-quotes an identifier for embedding in SQL.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral single-quotes a string literal for embedding in SQL.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Engine owns the DuckDB connection.
type Engine struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens a DuckDB database. An empty path opens an in-memory database.
func Open(path string, logger *slog.Logger) (*Engine, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return &Engine{db: db, logger: logger}, nil
}

// Close releases the underlying connection.
func (e *Engine) Close() error {
	return e.db.Close()
}

// DB exposes the raw connection for callers that need transactions, such
// as the batched spreadsheet ingest.
func (e *Engine) DB() *sql.DB {
	return e.db
}

// Query executes a SELECT and scans the result into a Frame.
func (e *Engine) Query(ctx context.Context, sqlQuery string, args ...interface{}) (*domain.Frame, error) {
	rows, err := e.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return scanFrame(rows)
}

// Exec runs a statement that returns no rows (DDL, COPY, INSERT).
func (e *Engine) Exec(ctx context.Context, sqlQuery string, args ...interface{}) error {
	if _, err := e.db.ExecContext(ctx, sqlQuery, args...); err != nil {
		return fmt.Errorf("execute statement: %w", err)
	}
	return nil
}

// TableExists reports whether the named table is present.
func (e *Engine) TableExists(ctx context.Context, table string) (bool, error) {
	if err := ValidateIdentifier(table); err != nil {
		return false, err
	}
	var n int
	err := e.db.QueryRowContext(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE table_name = ?`, table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check table: %w", err)
	}
	return n > 0, nil
}

// TableSchema returns the column names and DuckDB types of a table.
func (e *Engine) TableSchema(ctx context.Context, table string) ([]domain.Column, error) {
	if err := ValidateIdentifier(table); err != nil {
		return nil, err
	}
	rows, err := e.db.QueryContext(ctx,
		`SELECT column_name, data_type FROM information_schema.columns
		 WHERE table_name = ? ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("table schema: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var cols []domain.Column
	for rows.Next() {
		var c domain.Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	if len(cols) == 0 {
		return nil, domain.ErrNotFound("table %q not found", table)
	}
	return cols, rows.Err()
}

// TableRowCount returns the number of rows in a table.
func (e *Engine) TableRowCount(ctx context.Context, table string) (int64, error) {
	if err := ValidateIdentifier(table); err != nil {
		return 0, err
	}
	var n int64
	err := e.db.QueryRowContext(ctx,
		"SELECT count(*) FROM "+QuoteIdentifier(table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// DropTable removes a dataset table. Missing tables are not an error.
func (e *Engine) DropTable(ctx context.Context, table string) error {
	if err := ValidateIdentifier(table); err != nil {
		return err
	}
	return e.Exec(ctx, "DROP TABLE IF EXISTS "+QuoteIdentifier(table))
}

// scanFrame converts *sql.Rows into a Frame, resolving column types from
// the driver and converting byte slices to strings for JSON serialization.
func scanFrame(rows *sql.Rows) (*domain.Frame, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	types := make([]string, len(cols))
	if colTypes, err := rows.ColumnTypes(); err == nil {
		for i, ct := range colTypes {
			types[i] = ct.DatabaseTypeName()
		}
	}

	var resultRows [][]interface{}
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]interface{}, len(vals))
		for i, v := range vals {
			switch t := v.(type) {
			case []byte:
				row[i] = string(t)
			case driver.Valuer:
				row[i], _ = t.Value()
			default:
				row[i] = v
			}
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &domain.Frame{
		Columns:  cols,
		Types:    types,
		Rows:     resultRows,
		RowCount: len(resultRows),
	}, nil
}
