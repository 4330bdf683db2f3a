package domain

import "context"

// DatasetRepository persists dataset catalog entries in the metastore.
type DatasetRepository interface {
	Create(ctx context.Context, d *Dataset) (*Dataset, error)
	GetByName(ctx context.Context, name string) (*Dataset, error)
	List(ctx context.Context) ([]Dataset, error)
	UpdateRowCount(ctx context.Context, name string, rows int64) error
	Delete(ctx context.Context, name string) error
}

// RecipeRepository persists recipes.
type RecipeRepository interface {
	Create(ctx context.Context, r *Recipe) (*Recipe, error)
	GetByName(ctx context.Context, name string) (*Recipe, error)
	List(ctx context.Context) ([]Recipe, error)
	ListScheduled(ctx context.Context) ([]Recipe, error)
	Update(ctx context.Context, name string, req UpdateRecipeRequest) (*Recipe, error)
	Delete(ctx context.Context, name string) error
}

// ExportRunRepository records export executions.
type ExportRunRepository interface {
	Insert(ctx context.Context, run *ExportRun) error
	List(ctx context.Context, dataset string, limit int) ([]ExportRun, error)
}
