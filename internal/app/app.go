// Package app provides application-level wiring for gridlake: it builds
// repositories, services, and the scheduler from externally-provided
// database handles and config.
package app

import (
	"context"
	"database/sql"
	"log/slog"

	"gridlake/internal/config"
	"gridlake/internal/db/repository"
	"gridlake/internal/engine"
	"gridlake/internal/export"
	"gridlake/internal/service/analysis"
	"gridlake/internal/service/dataset"
	"gridlake/internal/service/exporter"
	"gridlake/internal/service/recipe"
	"gridlake/internal/service/reporting"
)

// Deps holds the external dependencies that main() must provide: config,
// database handles, and the logger.
type Deps struct {
	Cfg     *config.Config
	Engine  *engine.Engine
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger
}

// Services groups the service pointers the API handler needs.
type Services struct {
	Dataset   *dataset.Service
	Analysis  *analysis.Service
	Exporter  *exporter.Service
	Recipe    *recipe.Service
	Reporting *reporting.Service
}

// App holds the fully-wired application.
type App struct {
	Services  Services
	Scheduler *recipe.Scheduler
}

// New wires all repositories and services from the provided deps.
// The scheduler is created but not started; callers start and stop it.
func New(_ context.Context, deps Deps) (*App, error) {
	logger := deps.Logger

	datasetRepo := repository.NewDatasetRepo(deps.WriteDB, deps.ReadDB)
	recipeRepo := repository.NewRecipeRepo(deps.WriteDB, deps.ReadDB)
	runRepo := repository.NewExportRunRepo(deps.WriteDB, deps.ReadDB)

	var uploader exporter.Uploader
	if deps.Cfg.S3 != nil {
		uploader = export.NewUploader(deps.Cfg.S3, logger)
	}

	datasetSvc := dataset.NewService(deps.Engine, datasetRepo, logger)
	analysisSvc := analysis.NewService(deps.Engine, datasetRepo, logger)
	exportSvc := exporter.NewService(deps.Engine, datasetRepo, runRepo, uploader, deps.Cfg.ExportDir, logger)
	recipeSvc := recipe.NewService(recipeRepo, datasetRepo, exportSvc, logger)
	reportingSvc := reporting.NewService(deps.Engine, datasetRepo, logger)

	scheduler := recipe.NewScheduler(recipeSvc, recipeRepo, logger)
	recipeSvc.SetReloader(scheduler)

	return &App{
		Services: Services{
			Dataset:   datasetSvc,
			Analysis:  analysisSvc,
			Exporter:  exportSvc,
			Recipe:    recipeSvc,
			Reporting: reportingSvc,
		},
		Scheduler: scheduler,
	}, nil
}
