// Package export writes frame results to delimited, spreadsheet, and
// columnar file formats, and optionally pushes artifacts to object storage.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"gridlake/internal/domain"
	"gridlake/internal/engine"
)

// CSV writes the result of a compiled SELECT to a CSV file with a header
// row, using the engine's own writer.
func CSV(ctx context.Context, e *engine.Engine, selectSQL, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	copySQL := fmt.Sprintf("COPY (%s) TO %s (FORMAT CSV, HEADER)",
		selectSQL, engine.QuoteLiteral(path))
	if err := e.Exec(ctx, copySQL); err != nil {
		return fmt.Errorf("copy to csv: %w", err)
	}
	return nil
}

// Parquet writes the result of a compiled SELECT to a Parquet file.
func Parquet(ctx context.Context, e *engine.Engine, selectSQL, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	copySQL := fmt.Sprintf("COPY (%s) TO %s (FORMAT PARQUET)",
		selectSQL, engine.QuoteLiteral(path))
	if err := e.Exec(ctx, copySQL); err != nil {
		return fmt.Errorf("copy to parquet: %w", err)
	}
	return nil
}

// XLSX materialises the SELECT into a frame and writes it as a single-sheet
// workbook. Timestamps are rendered in a spreadsheet-friendly layout.
func XLSX(ctx context.Context, e *engine.Engine, selectSQL, path string) error {
	frame, err := e.Query(ctx, selectSQL)
	if err != nil {
		return err
	}
	return writeFrameXLSX(frame, path)
}

func writeFrameXLSX(frame *domain.Frame, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck
	sheet := f.GetSheetName(0)

	header := make([]interface{}, len(frame.Columns))
	for i, c := range frame.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range frame.Rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			if t, ok := v.(time.Time); ok {
				cells[j] = t.Format("2006-01-02 15:04:05")
			} else {
				cells[j] = v
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	return nil
}
