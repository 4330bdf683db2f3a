// Package exporter writes pipeline results to files in one or more
// formats, optionally uploading the artifacts to object storage, and
// records every attempt in the metastore.
package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"gridlake/internal/domain"
	"gridlake/internal/engine"
	"gridlake/internal/export"
	"gridlake/internal/frame"
)

// Uploader pushes a local artifact to remote storage and returns its URI.
type Uploader interface {
	Upload(ctx context.Context, path, key string) (string, error)
}

// Service runs exports.
type Service struct {
	engine   *engine.Engine
	datasets domain.DatasetRepository
	runs     domain.ExportRunRepository
	uploader Uploader // nil when no object storage is configured
	dir      string
	logger   *slog.Logger
}

// NewService creates an exporter service writing under dir.
func NewService(
	e *engine.Engine,
	datasets domain.DatasetRepository,
	runs domain.ExportRunRepository,
	uploader Uploader,
	dir string,
	logger *slog.Logger,
) *Service {
	return &Service{
		engine:   e,
		datasets: datasets,
		runs:     runs,
		uploader: uploader,
		dir:      dir,
		logger:   logger.With("component", "export-service"),
	}
}

// Run compiles the pipeline once and writes every target concurrently.
// Each target gets its own export_runs record; a failed target does not
// abort the others. recipeName may be empty for ad hoc exports.
func (s *Service) Run(
	ctx context.Context,
	datasetName, recipeName string,
	ops []domain.Op,
	targets []domain.ExportTarget,
) ([]*domain.ExportRun, error) {
	if len(targets) == 0 {
		return nil, domain.ErrValidation("at least one export target is required")
	}
	for i := range targets {
		if err := targets[i].Validate(); err != nil {
			return nil, domain.ErrValidation("target %d: %s", i, err.Error())
		}
		if targets[i].Upload && s.uploader == nil {
			return nil, domain.ErrValidation("target %d: upload requested but no object storage is configured", i)
		}
	}

	ds, err := s.datasets.GetByName(ctx, datasetName)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateOps(ops); err != nil {
		return nil, err
	}
	sqlText, err := frame.Compile(ds.Name, ops)
	if err != nil {
		return nil, err
	}

	rowCount, err := s.countRows(ctx, sqlText)
	if err != nil {
		return nil, err
	}

	principal := domain.PrincipalFromContext(ctx)
	results := make([]*domain.ExportRun, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range targets {
		i := i
		g.Go(func() error {
			results[i] = s.runTarget(gctx, ds, recipeName, sqlText, rowCount, principal, targets[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, run := range results {
		if err := s.runs.Insert(ctx, run); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// History returns recent export runs, newest first. dataset may be empty.
func (s *Service) History(ctx context.Context, dataset string, limit int) ([]domain.ExportRun, error) {
	return s.runs.List(ctx, dataset, limit)
}

func (s *Service) runTarget(
	ctx context.Context,
	ds *domain.Dataset,
	recipeName, sqlText string,
	rowCount int64,
	principal string,
	target domain.ExportTarget,
) *domain.ExportRun {
	start := time.Now()
	run := &domain.ExportRun{
		Dataset:   ds.Name,
		Format:    target.Format,
		RowCount:  rowCount,
		Status:    domain.ExportStatusOK,
		CreatedBy: principal,
	}
	if recipeName != "" {
		run.Recipe = &recipeName
	}

	filename := target.Filename
	if filename == "" {
		filename = ds.Name + "." + target.Format
	}
	path := filepath.Join(s.dir, ds.Name, filename)
	run.Path = path

	var err error
	switch target.Format {
	case domain.ExportCSV:
		err = export.CSV(ctx, s.engine, sqlText, path)
	case domain.ExportParquet:
		err = export.Parquet(ctx, s.engine, sqlText, path)
	case domain.ExportXLSX:
		err = export.XLSX(ctx, s.engine, sqlText, path)
	default:
		err = fmt.Errorf("unsupported export format %q", target.Format)
	}

	if err == nil && target.Upload {
		key := ds.Name + "/" + filename
		var uri string
		uri, err = s.uploader.Upload(ctx, path, key)
		if err == nil {
			run.RemoteURI = &uri
		}
	}

	run.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		run.Status = domain.ExportStatusFailed
		msg := err.Error()
		run.Error = &msg
		s.logger.Warn("export target failed",
			"dataset", ds.Name, "format", target.Format, "error", err)
		return run
	}

	s.logger.Info("export target written",
		"dataset", ds.Name, "format", target.Format, "path", path, "rows", rowCount)
	return run
}

func (s *Service) countRows(ctx context.Context, sqlText string) (int64, error) {
	f, err := s.engine.Query(ctx, fmt.Sprintf("SELECT count(*) FROM (%s) AS q", sqlText))
	if err != nil {
		return 0, err
	}
	if f.RowCount != 1 || len(f.Rows[0]) != 1 {
		return 0, fmt.Errorf("unexpected count result shape")
	}
	switch v := f.Rows[0][0].(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("unexpected count type %T", v)
	}
}
