package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"gridlake/internal/domain"
)

type exportRequest struct {
	Ops     []domain.Op           `json:"ops,omitempty"`
	Targets []domain.ExportTarget `json:"targets"`
}

func (h *Handler) createExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	runs, err := h.exports.Run(r.Context(), chi.URLParam(r, "name"), "", req.Ops, req.Targets)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	for _, run := range runs {
		if run.Status == domain.ExportStatusFailed {
			status = http.StatusMultiStatus
			break
		}
	}
	writeJSON(w, status, runs)
}

func (h *Handler) listExports(w http.ResponseWriter, r *http.Request) {
	runs, err := h.exports.History(r.Context(), r.URL.Query().Get("dataset"), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
