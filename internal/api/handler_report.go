package api

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// getReport renders the HTML report for a dataset. The report is built
// into a buffer first so errors can still produce a JSON error reply.
func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	window := queryInt(r, "window", 0)

	var buf bytes.Buffer
	if err := h.reporting.Generate(r.Context(), chi.URLParam(r, "name"), window, &buf); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
