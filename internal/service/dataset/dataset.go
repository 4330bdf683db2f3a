// Package dataset implements the dataset catalog service: loading files
// into engine tables and tracking them in the metastore.
package dataset

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"gridlake/internal/domain"
	"gridlake/internal/engine"
	"gridlake/internal/ingest"
)

var datasetNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Service manages the lifecycle of datasets.
type Service struct {
	engine   *engine.Engine
	datasets domain.DatasetRepository
	logger   *slog.Logger
}

// NewService creates a dataset service.
func NewService(e *engine.Engine, datasets domain.DatasetRepository, logger *slog.Logger) *Service {
	return &Service{
		engine:   e,
		datasets: datasets,
		logger:   logger.With("component", "dataset-service"),
	}
}

// Ingest loads a file into an engine table named after the dataset and
// records the dataset in the metastore. Re-ingesting an existing dataset
// replaces the table contents and updates the row count.
func (s *Service) Ingest(ctx context.Context, name, path, format string) (*domain.Dataset, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	var (
		rowCount int64
		skipped  int64
	)
	switch format {
	case domain.FormatXLSX:
		res, err := ingest.XLSX(ctx, s.engine, name, path, s.logger)
		if err != nil {
			return nil, err
		}
		rowCount = res.RowsRead
		skipped = res.RowsSkipped
	case domain.FormatCSV:
		res, err := ingest.CSV(ctx, s.engine, name, path, s.logger)
		if err != nil {
			return nil, err
		}
		rowCount = res.RowsRead
	default:
		return nil, domain.ErrValidation("unsupported format %q", format)
	}

	existing, err := s.datasets.GetByName(ctx, name)
	if err == nil {
		if err := s.datasets.UpdateRowCount(ctx, existing.Name, rowCount); err != nil {
			return nil, err
		}
		existing.RowCount = rowCount
		s.logger.Info("dataset re-ingested", "dataset", name, "rows", rowCount, "skipped", skipped)
		return existing, nil
	}
	var notFound *domain.NotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}

	cols, err := s.engine.TableSchema(ctx, name)
	if err != nil {
		return nil, err
	}

	ds := &domain.Dataset{
		Name:       name,
		SourcePath: path,
		Format:     format,
		RowCount:   rowCount,
		Columns:    cols,
		CreatedBy:  domain.PrincipalFromContext(ctx),
	}
	created, err := s.datasets.Create(ctx, ds)
	if err != nil {
		return nil, err
	}
	s.logger.Info("dataset ingested", "dataset", name, "rows", rowCount, "skipped", skipped)
	return created, nil
}

// Get returns a dataset by name.
func (s *Service) Get(ctx context.Context, name string) (*domain.Dataset, error) {
	return s.datasets.GetByName(ctx, name)
}

// List returns all known datasets.
func (s *Service) List(ctx context.Context) ([]domain.Dataset, error) {
	return s.datasets.List(ctx)
}

// Delete drops the engine table and removes the metastore record.
func (s *Service) Delete(ctx context.Context, name string) error {
	ds, err := s.datasets.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if err := s.engine.DropTable(ctx, name); err != nil {
		return err
	}
	if err := s.datasets.Delete(ctx, ds.Name); err != nil {
		return err
	}
	s.logger.Info("dataset deleted", "dataset", name)
	return nil
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ErrValidation("dataset name is required")
	}
	if !datasetNameRe.MatchString(name) {
		return domain.ErrValidation(
			"invalid dataset name %q: must start with a letter and contain only lowercase letters, digits, and underscores", name)
	}
	return nil
}
