package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type ingestRequest struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Format string `json:"format"`
}

func (h *Handler) createDataset(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ds, err := h.datasets.Ingest(r.Context(), req.Name, req.Path, req.Format)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ds)
}

func (h *Handler) listDatasets(w http.ResponseWriter, r *http.Request) {
	list, err := h.datasets.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) getDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := h.datasets.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (h *Handler) deleteDataset(w http.ResponseWriter, r *http.Request) {
	if err := h.datasets.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) describeDataset(w http.ResponseWriter, r *http.Request) {
	f, err := h.analysis.Describe(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *Handler) previewDataset(w http.ResponseWriter, r *http.Request) {
	n := queryInt(r, "n", 10)
	f, err := h.analysis.Preview(r.Context(), chi.URLParam(r, "name"), n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// queryInt reads an integer query parameter, falling back to def on
// absence or garbage.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
