package domain

import "time"

// Recipe is a named, ordered pipeline against one dataset, optionally
// scheduled and wired to export targets. It is the declarative form of an
// interactive analysis session.
type Recipe struct {
	ID           string         `json:"id" yaml:"-"`
	Name         string         `json:"name" yaml:"name"`
	Description  string         `json:"description,omitempty" yaml:"description,omitempty"`
	Dataset      string         `json:"dataset" yaml:"dataset"`
	Ops          []Op           `json:"ops" yaml:"ops"`
	Exports      []ExportTarget `json:"exports,omitempty" yaml:"exports,omitempty"`
	ScheduleCron *string        `json:"schedule_cron,omitempty" yaml:"schedule_cron,omitempty"`
	CreatedBy    string         `json:"created_by" yaml:"-"`
	CreatedAt    time.Time      `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time      `json:"updated_at" yaml:"-"`
}

// Validate checks recipe-level invariants plus every op.
func (r *Recipe) Validate() error {
	if r.Name == "" {
		return ErrValidation("recipe name is required")
	}
	if r.Dataset == "" {
		return ErrValidation("recipe dataset is required")
	}
	if len(r.Ops) == 0 {
		return ErrValidation("recipe must contain at least one op")
	}
	if err := ValidateOps(r.Ops); err != nil {
		return err
	}
	for _, t := range r.Exports {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// UpdateRecipeRequest carries partial updates to a recipe.
type UpdateRecipeRequest struct {
	Description  *string
	Ops          []Op
	Exports      []ExportTarget
	ScheduleCron *string
	ClearCron    bool
}
