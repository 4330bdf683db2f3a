package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"gridlake/internal/domain"
	"gridlake/internal/engine"
)

// CSV loads a delimited file into the named engine table through DuckDB's
// own reader, then verifies the canonical columns are present.
func CSV(ctx context.Context, e *engine.Engine, table, path string, logger *slog.Logger) (*Result, error) {
	if err := engine.ValidateIdentifier(table); err != nil {
		return nil, err
	}
	qt := engine.QuoteIdentifier(table)

	err := e.Exec(ctx, fmt.Sprintf(
		`CREATE OR REPLACE TABLE %s AS SELECT * FROM read_csv_auto(%s)`,
		qt, engine.QuoteLiteral(path)))
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	cols, err := e.TableSchema(ctx, table)
	if err != nil {
		return nil, err
	}
	names := map[string]bool{}
	for _, c := range cols {
		names[c.Name] = true
	}
	for _, want := range generationColumns {
		if !names[want.Name] {
			_ = e.DropTable(ctx, table)
			return nil, domain.ErrValidation("csv is missing required column %q", want.Name)
		}
	}

	n, err := e.TableRowCount(ctx, table)
	if err != nil {
		return nil, err
	}
	logger.Debug("csv ingested", "table", table, "rows", n)

	return &Result{Table: table, RowsRead: n, Columns: cols}, nil
}
