package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"gridlake/internal/domain"
)

// Compile-time check.
var _ domain.RecipeRepository = (*RecipeRepo)(nil)

// RecipeRepo implements RecipeRepository using SQLite. Writes go through
// the serialized write pool, reads through the concurrent read pool.
type RecipeRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewRecipeRepo creates a new RecipeRepo on the write/read pool pair.
func NewRecipeRepo(writeDB, readDB *sql.DB) *RecipeRepo {
	return &RecipeRepo{write: writeDB, read: readDB}
}

// Create inserts a new recipe.
func (r *RecipeRepo) Create(ctx context.Context, rec *domain.Recipe) (*domain.Recipe, error) {
	ops, exports, err := marshalRecipeParts(rec.Ops, rec.Exports)
	if err != nil {
		return nil, err
	}

	_, err = r.write.ExecContext(ctx,
		`INSERT INTO recipes (id, name, description, dataset, ops, exports, schedule_cron, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		newID(), rec.Name, rec.Description, rec.Dataset, ops, exports,
		nullString(rec.ScheduleCron), rec.CreatedBy)
	if err != nil {
		return nil, mapDBError(err)
	}

	return r.GetByName(ctx, rec.Name)
}

// GetByName returns a recipe by name.
func (r *RecipeRepo) GetByName(ctx context.Context, name string) (*domain.Recipe, error) {
	row := r.read.QueryRowContext(ctx, selectRecipe+` WHERE name = ?`, name)
	rec, err := scanRecipe(row)
	if err != nil {
		return nil, mapDBError(err)
	}
	return rec, nil
}

// List returns all recipes ordered by name.
func (r *RecipeRepo) List(ctx context.Context) ([]domain.Recipe, error) {
	return r.list(ctx, selectRecipe+` ORDER BY name`)
}

// ListScheduled returns recipes that carry a cron expression.
func (r *RecipeRepo) ListScheduled(ctx context.Context) ([]domain.Recipe, error) {
	return r.list(ctx, selectRecipe+` WHERE schedule_cron IS NOT NULL ORDER BY name`)
}

func (r *RecipeRepo) list(ctx context.Context, query string) ([]domain.Recipe, error) {
	rows, err := r.read.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var out []domain.Recipe
	for rows.Next() {
		rec, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Update applies partial updates to a recipe.
func (r *RecipeRepo) Update(ctx context.Context, name string, req domain.UpdateRecipeRequest) (*domain.Recipe, error) {
	current, err := r.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if req.Description != nil {
		current.Description = *req.Description
	}
	if req.Ops != nil {
		current.Ops = req.Ops
	}
	if req.Exports != nil {
		current.Exports = req.Exports
	}
	if req.ClearCron {
		current.ScheduleCron = nil
	} else if req.ScheduleCron != nil {
		current.ScheduleCron = req.ScheduleCron
	}

	ops, exports, err := marshalRecipeParts(current.Ops, current.Exports)
	if err != nil {
		return nil, err
	}

	_, err = r.write.ExecContext(ctx,
		`UPDATE recipes SET description = ?, ops = ?, exports = ?, schedule_cron = ?,
		 updated_at = datetime('now') WHERE name = ?`,
		current.Description, ops, exports, nullString(current.ScheduleCron), name)
	if err != nil {
		return nil, mapDBError(err)
	}

	return r.GetByName(ctx, name)
}

// Delete removes a recipe.
func (r *RecipeRepo) Delete(ctx context.Context, name string) error {
	res, err := r.write.ExecContext(ctx, `DELETE FROM recipes WHERE name = ?`, name)
	if err != nil {
		return mapDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound("recipe %q not found", name)
	}
	return nil
}

const selectRecipe = `SELECT id, name, description, dataset, ops, exports, schedule_cron,
 created_by, created_at, updated_at FROM recipes`

func marshalRecipeParts(ops []domain.Op, exports []domain.ExportTarget) (string, string, error) {
	opsJSON, err := json.Marshal(ops)
	if err != nil {
		return "", "", fmt.Errorf("marshal ops: %w", err)
	}
	if exports == nil {
		exports = []domain.ExportTarget{}
	}
	exportsJSON, err := json.Marshal(exports)
	if err != nil {
		return "", "", fmt.Errorf("marshal exports: %w", err)
	}
	return string(opsJSON), string(exportsJSON), nil
}

func scanRecipe(row rowScanner) (*domain.Recipe, error) {
	var rec domain.Recipe
	var ops, exports, createdAt, updatedAt string
	var cron sql.NullString
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Description, &rec.Dataset,
		&ops, &exports, &cron, &rec.CreatedBy, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(ops), &rec.Ops); err != nil {
		return nil, fmt.Errorf("unmarshal ops: %w", err)
	}
	if err := json.Unmarshal([]byte(exports), &rec.Exports); err != nil {
		return nil, fmt.Errorf("unmarshal exports: %w", err)
	}
	rec.ScheduleCron = stringPtr(cron)
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return &rec, nil
}
