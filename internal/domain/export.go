package domain

import "time"

// Export formats. CSV and Parquet are written by the engine's COPY TO;
// XLSX is written by the spreadsheet writer.
const (
	ExportCSV     = "csv"
	ExportXLSX    = "xlsx"
	ExportParquet = "parquet"
)

// Export run statuses.
const (
	ExportStatusOK     = "ok"
	ExportStatusFailed = "failed"
)

// ExportTarget names one output of a pipeline run.
type ExportTarget struct {
	Format   string `json:"format" yaml:"format"`
	Filename string `json:"filename,omitempty" yaml:"filename,omitempty"`
	Upload   bool   `json:"upload,omitempty" yaml:"upload,omitempty"` // also push to object storage
}

// Validate checks the target format.
func (t ExportTarget) Validate() error {
	switch t.Format {
	case ExportCSV, ExportXLSX, ExportParquet:
		return nil
	default:
		return ErrValidation("unsupported export format %q", t.Format)
	}
}

// ExportRun records one completed (or failed) export.
type ExportRun struct {
	ID         string    `json:"id"`
	Dataset    string    `json:"dataset"`
	Recipe     *string   `json:"recipe,omitempty"`
	Format     string    `json:"format"`
	Path       string    `json:"path"`
	RemoteURI  *string   `json:"remote_uri,omitempty"`
	RowCount   int64     `json:"row_count"`
	Status     string    `json:"status"`
	Error      *string   `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedBy  string    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}
