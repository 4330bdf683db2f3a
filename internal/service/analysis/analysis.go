// Package analysis executes frame pipelines against ingested datasets.
package analysis

import (
	"context"
	"log/slog"

	"gridlake/internal/domain"
	"gridlake/internal/engine"
	"gridlake/internal/frame"
)

// MaxResultRows caps how many rows a single run may return to the caller.
const MaxResultRows = 10000

// Service compiles and runs frame pipelines.
type Service struct {
	engine   *engine.Engine
	datasets domain.DatasetRepository
	logger   *slog.Logger
}

// NewService creates an analysis service.
func NewService(e *engine.Engine, datasets domain.DatasetRepository, logger *slog.Logger) *Service {
	return &Service{
		engine:   e,
		datasets: datasets,
		logger:   logger.With("component", "analysis-service"),
	}
}

// Run validates and compiles the pipeline, executes it, and returns the
// resulting frame. limit <= 0 means the default cap.
func (s *Service) Run(ctx context.Context, datasetName string, ops []domain.Op, limit int) (*domain.Frame, error) {
	sqlText, err := s.compile(ctx, datasetName, ops)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxResultRows {
		limit = MaxResultRows
	}
	sqlText = frame.LimitSQL(sqlText, limit)

	f, err := s.engine.Query(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("pipeline executed", "dataset", datasetName, "ops", len(ops), "rows", f.RowCount)
	return f, nil
}

// Compile returns the SQL a pipeline would run, without executing it.
func (s *Service) Compile(ctx context.Context, datasetName string, ops []domain.Op) (string, error) {
	return s.compile(ctx, datasetName, ops)
}

// Describe returns summary statistics for every column of the dataset.
func (s *Service) Describe(ctx context.Context, datasetName string) (*domain.Frame, error) {
	ds, err := s.datasets.GetByName(ctx, datasetName)
	if err != nil {
		return nil, err
	}
	sqlText, err := frame.DescribeSQL(ds.Name)
	if err != nil {
		return nil, err
	}
	return s.engine.Query(ctx, sqlText)
}

// Preview returns the first n rows of the raw dataset.
func (s *Service) Preview(ctx context.Context, datasetName string, n int) (*domain.Frame, error) {
	if n <= 0 {
		n = 10
	}
	ds, err := s.datasets.GetByName(ctx, datasetName)
	if err != nil {
		return nil, err
	}
	sqlText, err := frame.PreviewSQL(ds.Name, n)
	if err != nil {
		return nil, err
	}
	return s.engine.Query(ctx, sqlText)
}

func (s *Service) compile(ctx context.Context, datasetName string, ops []domain.Op) (string, error) {
	ds, err := s.datasets.GetByName(ctx, datasetName)
	if err != nil {
		return "", err
	}
	if err := domain.ValidateOps(ops); err != nil {
		return "", err
	}
	return frame.Compile(ds.Name, ops)
}
