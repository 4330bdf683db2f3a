package domain

import "time"

// Dataset formats accepted by ingestion.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// Reading is one energy-generation observation: when, which source
// (wind, solar, gas, ...) and how much was generated.
type Reading struct {
	Timestamp     time.Time
	Source        string
	GenerationGWh float64
}

// Column describes one column of an ingested table.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Dataset is a catalog entry for a table ingested into the engine.
// Name doubles as the DuckDB table identifier.
type Dataset struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SourcePath string    `json:"source_path"`
	Format     string    `json:"format"`
	RowCount   int64     `json:"row_count"`
	Columns    []Column  `json:"columns"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// Frame is the structured result of running a pipeline against a dataset:
// the in-memory tabular slice that handlers, exporters, and the report
// renderer all consume.
type Frame struct {
	Columns  []string        `json:"columns"`
	Types    []string        `json:"types"`
	Rows     [][]interface{} `json:"rows"`
	RowCount int             `json:"row_count"`
}

// Float returns the cell at (row, col) coerced to float64.
// Non-numeric cells report ok=false.
func (f *Frame) Float(row, col int) (float64, bool) {
	if row < 0 || row >= len(f.Rows) || col < 0 || col >= len(f.Rows[row]) {
		return 0, false
	}
	switch v := f.Rows[row][col].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// ColumnIndex returns the index of the named column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}
