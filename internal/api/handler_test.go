package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridlake/internal/config"
	"gridlake/internal/db"
	"gridlake/internal/db/repository"
	"gridlake/internal/domain"
	"gridlake/internal/engine"
	"gridlake/internal/service/analysis"
	"gridlake/internal/service/dataset"
	"gridlake/internal/service/exporter"
	"gridlake/internal/service/recipe"
	"gridlake/internal/service/reporting"
)

type testEnv struct {
	router    http.Handler
	exportDir string
}

func newTestEnv(t *testing.T, cfg *config.Config) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	e, err := engine.Open("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	writeDB, readDB := db.OpenTestSQLite(t)
	datasetRepo := repository.NewDatasetRepo(writeDB, readDB)
	recipeRepo := repository.NewRecipeRepo(writeDB, readDB)
	runRepo := repository.NewExportRunRepo(writeDB, readDB)

	exportDir := t.TempDir()
	datasetSvc := dataset.NewService(e, datasetRepo, logger)
	analysisSvc := analysis.NewService(e, datasetRepo, logger)
	exportSvc := exporter.NewService(e, datasetRepo, runRepo, nil, exportDir, logger)
	recipeSvc := recipe.NewService(recipeRepo, datasetRepo, exportSvc, logger)
	reportingSvc := reporting.NewService(e, datasetRepo, logger)

	h := NewHandler(datasetSvc, analysisSvc, exportSvc, recipeSvc, reportingSvc, logger)
	if cfg == nil {
		cfg = &config.Config{
			RateLimitRPS:       1000,
			RateLimitBurst:     1000,
			CORSAllowedOrigins: []string{"*"},
		}
	}
	return &testEnv{router: NewRouter(h, cfg), exportDir: exportDir}
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func writeGenerationCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "generation.csv")
	csv := "ts,source,generation_gwh\n" +
		"2024-01-01 00:00:00,wind,12.0\n" +
		"2024-01-01 01:00:00,wind,14.0\n" +
		"2024-01-01 00:00:00,solar,3.0\n" +
		"2024-01-01 01:00:00,solar,5.0\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))
	return path
}

func (env *testEnv) ingestGeneration(t *testing.T) {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/v1/datasets", ingestRequest{
		Name:   "generation",
		Path:   writeGenerationCSV(t),
		Format: domain.FormatCSV,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestAPI_Healthz(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestAPI_DatasetLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ingestGeneration(t)

	rec := env.do(t, http.MethodGet, "/v1/datasets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.Dataset
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "generation", list[0].Name)
	assert.Equal(t, int64(4), list[0].RowCount)

	rec = env.do(t, http.MethodGet, "/v1/datasets/generation", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/datasets/generation/preview?n=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var f domain.Frame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	assert.Equal(t, 2, f.RowCount)

	rec = env.do(t, http.MethodGet, "/v1/datasets/generation/describe", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	assert.Equal(t, "column_name", f.Columns[0])

	rec = env.do(t, http.MethodDelete, "/v1/datasets/generation", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/datasets/generation", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_DatasetValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/v1/datasets", ingestRequest{Name: "Bad Name", Path: "x.csv", Format: "csv"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/v1/datasets", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Frame(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ingestGeneration(t)

	ops := []domain.Op{
		{
			Kind:       domain.OpGroupBy,
			By:         []string{"source"},
			Aggregates: []domain.Aggregation{{Func: domain.AggSum, Column: "generation_gwh", As: "total_gwh"}},
		},
		{Kind: domain.OpSort, Keys: []domain.SortKey{{Column: "total_gwh", Desc: true}}},
	}

	rec := env.do(t, http.MethodPost, "/v1/datasets/generation/frame", frameRequest{Ops: ops})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var f domain.Frame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
	require.Equal(t, 2, f.RowCount)
	assert.Equal(t, []string{"source", "total_gwh"}, f.Columns)
	assert.Equal(t, "wind", f.Rows[0][0])

	rec = env.do(t, http.MethodPost, "/v1/datasets/generation/frame/sql", frameRequest{Ops: ops})
	require.Equal(t, http.StatusOK, rec.Code)
	var compiled compileResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &compiled))
	assert.Contains(t, compiled.SQL, `sum("generation_gwh") AS "total_gwh"`)
}

func TestAPI_Frame_BadOp(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ingestGeneration(t)

	rec := env.do(t, http.MethodPost, "/v1/datasets/generation/frame", frameRequest{
		Ops: []domain.Op{{Kind: "explode"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "op 0")
}

func TestAPI_Exports(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ingestGeneration(t)

	rec := env.do(t, http.MethodPost, "/v1/datasets/generation/exports", exportRequest{
		Targets: []domain.ExportTarget{{Format: domain.ExportCSV}, {Format: domain.ExportParquet}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var runs []domain.ExportRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 2)
	for _, run := range runs {
		assert.Equal(t, domain.ExportStatusOK, run.Status)
		assert.FileExists(t, run.Path)
	}

	rec = env.do(t, http.MethodGet, "/v1/exports?dataset=generation", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 2)
}

func TestAPI_Exports_PartialFailureIsMultiStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ingestGeneration(t)

	// Block one target: a directory where its output file would go makes
	// the COPY fail while the other target still writes.
	blocked := filepath.Join(env.exportDir, "generation", "blocked.csv")
	require.NoError(t, os.MkdirAll(blocked, 0o750))

	rec := env.do(t, http.MethodPost, "/v1/datasets/generation/exports", exportRequest{
		Targets: []domain.ExportTarget{
			{Format: domain.ExportCSV, Filename: "blocked.csv"},
			{Format: domain.ExportParquet},
		},
	})
	require.Equal(t, http.StatusMultiStatus, rec.Code, rec.Body.String())

	var runs []domain.ExportRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, domain.ExportStatusFailed, runs[0].Status)
	require.NotNil(t, runs[0].Error)
	assert.Equal(t, domain.ExportStatusOK, runs[1].Status)
	assert.FileExists(t, runs[1].Path)
}

func TestAPI_Recipes(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ingestGeneration(t)

	body := domain.Recipe{
		Name:    "wind-total",
		Dataset: "generation",
		Ops: []domain.Op{{
			Kind:       domain.OpFilter,
			Conditions: []domain.Condition{{Column: "source", Operator: "=", Value: "wind"}},
		}},
		Exports: []domain.ExportTarget{{Format: domain.ExportCSV}},
	}

	rec := env.do(t, http.MethodPost, "/v1/recipes", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/v1/recipes", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/recipes/wind-total", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	desc := "wind only"
	rec = env.do(t, http.MethodPatch, "/v1/recipes/wind-total", updateRecipeRequest{Description: &desc})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated domain.Recipe
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "wind only", updated.Description)

	rec = env.do(t, http.MethodPost, "/v1/recipes/wind-total/run", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var runs []domain.ExportRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, int64(2), runs[0].RowCount)

	rec = env.do(t, http.MethodDelete, "/v1/recipes/wind-total", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAPI_Recipes_YAML(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ingestGeneration(t)

	doc := `name: solar-daily
dataset: generation
ops:
  - kind: filter
    conditions:
      - column: source
        operator: "="
        value: solar
`
	req := httptest.NewRequest(http.MethodPost, "/v1/recipes", bytes.NewReader([]byte(doc)))
	req.Header.Set("Content-Type", "application/yaml")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created domain.Recipe
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "solar-daily", created.Name)
}

func TestAPI_Report(t *testing.T) {
	env := newTestEnv(t, nil)
	env.ingestGeneration(t)

	rec := env.do(t, http.MethodGet, "/v1/datasets/generation/report?window=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Generation Report")
	assert.Contains(t, rec.Body.String(), "<svg")
}

func TestAPI_AuthRequired(t *testing.T) {
	cfg := &config.Config{
		APIKey:             "sekrit",
		RateLimitRPS:       1000,
		RateLimitBurst:     1000,
		CORSAllowedOrigins: []string{"*"},
	}
	env := newTestEnv(t, cfg)

	rec := env.do(t, http.MethodGet, "/v1/datasets", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/datasets", nil)
	req.Header.Set("X-API-Key", "sekrit")
	authed := httptest.NewRecorder()
	env.router.ServeHTTP(authed, req)
	assert.Equal(t, http.StatusOK, authed.Code)

	// Health stays public.
	rec = env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_InternalErrorsAreOpaque(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, fmt.Sprintf("/v1/datasets/%s", "missing"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
