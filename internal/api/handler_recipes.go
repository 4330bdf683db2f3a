package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"gridlake/internal/domain"
)

// createRecipe accepts either a JSON recipe or, with a YAML content type,
// a raw YAML document.
func (h *Handler) createRecipe(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "yaml") {
		doc, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, err)
			return
		}
		created, err := h.recipes.CreateFromYAML(r.Context(), doc)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
		return
	}

	var recipe domain.Recipe
	if err := decodeJSON(r, &recipe); err != nil {
		writeError(w, err)
		return
	}
	created, err := h.recipes.Create(r.Context(), &recipe)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) listRecipes(w http.ResponseWriter, r *http.Request) {
	list, err := h.recipes.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) getRecipe(w http.ResponseWriter, r *http.Request) {
	recipe, err := h.recipes.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

type updateRecipeRequest struct {
	Description  *string               `json:"description,omitempty"`
	Ops          []domain.Op           `json:"ops,omitempty"`
	Exports      []domain.ExportTarget `json:"exports,omitempty"`
	ScheduleCron *string               `json:"schedule_cron,omitempty"`
	ClearCron    bool                  `json:"clear_cron,omitempty"`
}

func (h *Handler) updateRecipe(w http.ResponseWriter, r *http.Request) {
	var req updateRecipeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	updated, err := h.recipes.Update(r.Context(), chi.URLParam(r, "name"), domain.UpdateRecipeRequest{
		Description:  req.Description,
		Ops:          req.Ops,
		Exports:      req.Exports,
		ScheduleCron: req.ScheduleCron,
		ClearCron:    req.ClearCron,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) deleteRecipe(w http.ResponseWriter, r *http.Request) {
	if err := h.recipes.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) runRecipe(w http.ResponseWriter, r *http.Request) {
	runs, err := h.recipes.Run(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
