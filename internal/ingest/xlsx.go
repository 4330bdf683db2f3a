// Package ingest loads generation readings from spreadsheet and CSV files
// into the engine and reports what it found.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"gridlake/internal/domain"
	"gridlake/internal/engine"
)

// Result summarises one ingestion.
type Result struct {
	Table       string
	RowsRead    int64
	RowsSkipped int64
	Columns     []domain.Column
}

// Canonical target schema for generation datasets.
var generationColumns = []domain.Column{
	{Name: "ts", Type: "TIMESTAMP"},
	{Name: "source", Type: "VARCHAR"},
	{Name: "generation_gwh", Type: "DOUBLE"},
}

// Header aliases accepted when locating the three canonical columns.
var headerAliases = map[string][]string{
	"ts":             {"ts", "timestamp", "time", "datetime", "date"},
	"source":         {"source", "fuel", "fuel_type", "technology", "type"},
	"generation_gwh": {"generation_gwh", "generation", "gwh", "output", "value"},
}

// Timestamp layouts tried in order when parsing spreadsheet cells.
var tsLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/06 15:04",
	"01-02-06 15:04",
	"02/01/2006 15:04",
}

// XLSX reads a generation spreadsheet and loads it into the named engine
// table, replacing any previous contents. Rows with unparseable cells are
// skipped and counted rather than failing the whole file.
func XLSX(ctx context.Context, e *engine.Engine, table, path string, logger *slog.Logger) (*Result, error) {
	if err := engine.ValidateIdentifier(table); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close() //nolint:errcheck

	rows, sheet, err := findDataSheet(f)
	if err != nil {
		return nil, err
	}
	logger.Debug("located data sheet", "sheet", sheet, "rows", len(rows))

	headerIdx, colMap, err := mapHeader(rows)
	if err != nil {
		return nil, err
	}

	readings := make([]domain.Reading, 0, len(rows)-headerIdx-1)
	var skipped int64
	for i := headerIdx + 1; i < len(rows); i++ {
		r, ok := parseRow(rows[i], colMap)
		if !ok {
			if !rowIsBlank(rows[i]) {
				skipped++
				logger.Debug("skipping malformed row", "row", i+1)
			}
			continue
		}
		readings = append(readings, r)
	}
	if len(readings) == 0 {
		return nil, domain.ErrValidation("no parseable readings in %s (sheet %q)", path, sheet)
	}

	if err := loadReadings(ctx, e, table, readings); err != nil {
		return nil, err
	}

	return &Result{
		Table:       table,
		RowsRead:    int64(len(readings)),
		RowsSkipped: skipped,
		Columns:     generationColumns,
	}, nil
}

// findDataSheet returns the rows of the first sheet whose header contains
// a timestamp-like and a generation-like column.
func findDataSheet(f *excelize.File) ([][]string, string, error) {
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) < 2 {
			continue
		}
		if idx, _, err := mapHeader(rows); err == nil && idx >= 0 {
			return rows, name, nil
		}
	}
	return nil, "", domain.ErrValidation("no sheet with generation data found")
}

// mapHeader locates the header row and maps canonical column names to
// cell indexes. The header must be within the first ten rows.
func mapHeader(rows [][]string) (int, map[string]int, error) {
	limit := len(rows)
	if limit > 10 {
		limit = 10
	}
	for i := 0; i < limit; i++ {
		colMap := map[string]int{}
		for j, cell := range rows[i] {
			norm := normalizeHeader(cell)
			for canonical, aliases := range headerAliases {
				if _, seen := colMap[canonical]; seen {
					continue
				}
				for _, a := range aliases {
					if norm == a {
						colMap[canonical] = j
						break
					}
				}
			}
		}
		if len(colMap) == len(headerAliases) {
			return i, colMap, nil
		}
	}
	return -1, nil, domain.ErrValidation("header row with timestamp, source and generation columns not found")
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ReplaceAll(h, "(gwh)", "gwh")
	return strings.Trim(h, "_")
}

func parseRow(cells []string, colMap map[string]int) (domain.Reading, bool) {
	var r domain.Reading

	get := func(key string) (string, bool) {
		idx := colMap[key]
		if idx >= len(cells) {
			return "", false
		}
		v := strings.TrimSpace(cells[idx])
		return v, v != ""
	}

	tsRaw, ok := get("ts")
	if !ok {
		return r, false
	}
	ts, ok := parseTimestamp(tsRaw)
	if !ok {
		return r, false
	}

	src, ok := get("source")
	if !ok {
		return r, false
	}

	genRaw, ok := get("generation_gwh")
	if !ok {
		return r, false
	}
	gen, err := strconv.ParseFloat(strings.ReplaceAll(genRaw, ",", ""), 64)
	if err != nil {
		return r, false
	}

	r.Timestamp = ts
	r.Source = strings.ToLower(src)
	r.GenerationGWh = gen
	return r, true
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range tsLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func rowIsBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// loadReadings replaces the table contents with the parsed readings using
// a single transaction of batched inserts.
func loadReadings(ctx context.Context, e *engine.Engine, table string, readings []domain.Reading) error {
	qt := engine.QuoteIdentifier(table)

	if err := e.Exec(ctx, fmt.Sprintf(
		`CREATE OR REPLACE TABLE %s (ts TIMESTAMP, source VARCHAR, generation_gwh DOUBLE)`, qt)); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	tx, err := e.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (ts, source, generation_gwh) VALUES (?, ?, ?)`, qt))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range readings {
		if _, err := stmt.ExecContext(ctx, r.Timestamp, r.Source, r.GenerationGWh); err != nil {
			return fmt.Errorf("insert reading: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert tx: %w", err)
	}
	return nil
}
