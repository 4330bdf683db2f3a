// Package api provides HTTP handlers for the gridlake REST API.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"gridlake/internal/domain"
	"gridlake/internal/service/analysis"
	"gridlake/internal/service/dataset"
	"gridlake/internal/service/exporter"
	"gridlake/internal/service/recipe"
	"gridlake/internal/service/reporting"
)

// maxBodyBytes caps request bodies. Pipelines and recipes are small
// documents; anything larger is a mistake.
const maxBodyBytes = 1 << 20

// Handler serves the REST API.
type Handler struct {
	datasets  *dataset.Service
	analysis  *analysis.Service
	exports   *exporter.Service
	recipes   *recipe.Service
	reporting *reporting.Service
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required service dependencies.
func NewHandler(
	datasets *dataset.Service,
	analysisSvc *analysis.Service,
	exports *exporter.Service,
	recipes *recipe.Service,
	reportingSvc *reporting.Service,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		datasets:  datasets,
		analysis:  analysisSvc,
		exports:   exports,
		recipes:   recipes,
		reporting: reportingSvc,
		logger:    logger.With("component", "api"),
	}
}

// decodeJSON reads and decodes a JSON request body into dst.
// Failures come back as validation errors so they map to 400.
func decodeJSON(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return domain.ErrValidation("request body is required")
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.ErrValidation("invalid JSON body: %s", err.Error())
	}
	return nil
}
