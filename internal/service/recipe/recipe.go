// Package recipe manages saved pipelines: CRUD, YAML import, execution,
// and cron scheduling.
package recipe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"gridlake/internal/domain"
)

// Runner executes a recipe's pipeline against its export targets.
// Implemented by the exporter service.
type Runner interface {
	Run(ctx context.Context, dataset, recipe string, ops []domain.Op, targets []domain.ExportTarget) ([]*domain.ExportRun, error)
}

// ScheduleReloader is notified when recipe schedules change.
type ScheduleReloader interface {
	Reload(ctx context.Context) error
}

// Service manages recipes.
type Service struct {
	recipes  domain.RecipeRepository
	datasets domain.DatasetRepository
	runner   Runner
	reloader ScheduleReloader // nil until the scheduler is attached
	logger   *slog.Logger
}

// NewService creates a recipe service.
func NewService(
	recipes domain.RecipeRepository,
	datasets domain.DatasetRepository,
	runner Runner,
	logger *slog.Logger,
) *Service {
	return &Service{
		recipes:  recipes,
		datasets: datasets,
		runner:   runner,
		logger:   logger.With("component", "recipe-service"),
	}
}

// SetReloader attaches the schedule reloader. Called once during wiring,
// after the scheduler exists.
func (s *Service) SetReloader(r ScheduleReloader) {
	s.reloader = r
}

// Create validates and stores a recipe.
func (s *Service) Create(ctx context.Context, r *domain.Recipe) (*domain.Recipe, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := s.validateSchedule(r.ScheduleCron); err != nil {
		return nil, err
	}
	if _, err := s.datasets.GetByName(ctx, r.Dataset); err != nil {
		return nil, err
	}
	r.CreatedBy = domain.PrincipalFromContext(ctx)

	created, err := s.recipes.Create(ctx, r)
	if err != nil {
		return nil, err
	}
	s.logger.Info("recipe created", "recipe", created.Name, "dataset", created.Dataset)
	s.reloadSchedules(ctx)
	return created, nil
}

// CreateFromYAML parses a YAML recipe document and stores it.
func (s *Service) CreateFromYAML(ctx context.Context, doc []byte) (*domain.Recipe, error) {
	var r domain.Recipe
	if err := yaml.Unmarshal(doc, &r); err != nil {
		return nil, domain.ErrValidation("invalid recipe YAML: %s", err.Error())
	}
	return s.Create(ctx, &r)
}

// Get returns a recipe by name.
func (s *Service) Get(ctx context.Context, name string) (*domain.Recipe, error) {
	return s.recipes.GetByName(ctx, name)
}

// List returns all recipes.
func (s *Service) List(ctx context.Context) ([]domain.Recipe, error) {
	return s.recipes.List(ctx)
}

// Update applies a partial update and reloads schedules when the cron
// expression changed.
func (s *Service) Update(ctx context.Context, name string, req domain.UpdateRecipeRequest) (*domain.Recipe, error) {
	if req.Ops != nil {
		if err := domain.ValidateOps(req.Ops); err != nil {
			return nil, err
		}
	}
	for _, t := range req.Exports {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	if err := s.validateSchedule(req.ScheduleCron); err != nil {
		return nil, err
	}

	updated, err := s.recipes.Update(ctx, name, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("recipe updated", "recipe", name)
	if req.ScheduleCron != nil || req.ClearCron {
		s.reloadSchedules(ctx)
	}
	return updated, nil
}

// Delete removes a recipe and its schedule.
func (s *Service) Delete(ctx context.Context, name string) error {
	if err := s.recipes.Delete(ctx, name); err != nil {
		return err
	}
	s.logger.Info("recipe deleted", "recipe", name)
	s.reloadSchedules(ctx)
	return nil
}

// Run executes a recipe now. Recipes without export targets default to a
// single CSV export.
func (s *Service) Run(ctx context.Context, name string) ([]*domain.ExportRun, error) {
	r, err := s.recipes.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	targets := r.Exports
	if len(targets) == 0 {
		targets = []domain.ExportTarget{{Format: domain.ExportCSV}}
	}
	runs, err := s.runner.Run(ctx, r.Dataset, r.Name, r.Ops, targets)
	if err != nil {
		return nil, fmt.Errorf("run recipe %s: %w", name, err)
	}
	return runs, nil
}

func (s *Service) validateSchedule(expr *string) error {
	if expr == nil {
		return nil
	}
	if _, err := cron.ParseStandard(*expr); err != nil {
		return domain.ErrValidation("invalid cron schedule %q: %s", *expr, err.Error())
	}
	return nil
}

func (s *Service) reloadSchedules(ctx context.Context) {
	if s.reloader == nil {
		return
	}
	if err := s.reloader.Reload(ctx); err != nil {
		s.logger.Warn("schedule reload failed", "error", err)
	}
}
