package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gridlake/internal/domain"
)

type frameRequest struct {
	Ops   []domain.Op `json:"ops"`
	Limit int         `json:"limit,omitempty"`
}

type compileResponse struct {
	SQL string `json:"sql"`
}

// runFrame executes a pipeline against a dataset and returns the frame.
func (h *Handler) runFrame(w http.ResponseWriter, r *http.Request) {
	var req frameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	f, err := h.analysis.Run(r.Context(), chi.URLParam(r, "name"), req.Ops, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// compileFrame returns the SQL a pipeline would execute, without running it.
func (h *Handler) compileFrame(w http.ResponseWriter, r *http.Request) {
	var req frameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	sqlText, err := h.analysis.Compile(r.Context(), chi.URLParam(r, "name"), req.Ops)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, compileResponse{SQL: sqlText})
}
