package cli

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturedRequest holds details captured from an incoming HTTP request.
type capturedRequest struct {
	Method  string
	Path    string
	Query   string
	Headers http.Header
	Body    string
}

// requestRecorder is a thread-safe recorder for HTTP requests received by httptest servers.
type requestRecorder struct {
	mu       sync.Mutex
	requests []capturedRequest
}

func (r *requestRecorder) record(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()

	body, _ := io.ReadAll(req.Body)
	defer func() { _ = req.Body.Close() }()

	r.requests = append(r.requests, capturedRequest{
		Method:  req.Method,
		Path:    req.URL.Path,
		Query:   req.URL.RawQuery,
		Headers: req.Header.Clone(),
		Body:    string(body),
	})
}

func (r *requestRecorder) last() capturedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) == 0 {
		return capturedRequest{}
	}
	return r.requests[len(r.requests)-1]
}

// jsonHandler returns an http.HandlerFunc that records the request and responds
// with the given status code and JSON body.
func jsonHandler(rec *requestRecorder, status int, respBody string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}
}

// runCmd executes the root command with the given args against srv and
// returns the combined stdout output.
func runCmd(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	rootCmd := newRootCmd()
	var buf bytes.Buffer
	setOutRecursive(rootCmd, &buf)
	rootCmd.SetArgs(append([]string{"--host", srv.URL}, args...))
	err := rootCmd.Execute()
	return buf.String(), err
}

func setOutRecursive(cmd *cobra.Command, w io.Writer) {
	cmd.SetOut(w)
	cmd.SetErr(w)
	for _, sub := range cmd.Commands() {
		setOutRecursive(sub, w)
	}
}

func TestCLI_DatasetsList(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, 200, `[
		{"name":"generation_2024","format":"xlsx","row_count":8760,"created_by":"alice","created_at":"2026-01-05T08:00:00Z"}
	]`))
	defer srv.Close()

	out, err := runCmd(t, srv, "datasets", "list")
	require.NoError(t, err)

	req := rec.last()
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/v1/datasets", req.Path)
	assert.Contains(t, out, "generation_2024")
	assert.Contains(t, out, "8760")
	assert.Contains(t, out, "alice")
}

func TestCLI_DatasetsIngest_InfersFormat(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, 201, `{"name":"gen","format":"xlsx","row_count":12}`))
	defer srv.Close()

	out, err := runCmd(t, srv, "datasets", "ingest", "gen", "/data/generation.xlsx")
	require.NoError(t, err)

	req := rec.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/v1/datasets", req.Path)
	assert.Contains(t, req.Body, `"format":"xlsx"`)
	assert.Contains(t, req.Body, `"path":"/data/generation.xlsx"`)
	assert.Contains(t, out, "Ingested gen (12 rows)")
}

func TestCLI_DatasetsPreview(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, 200, `{
		"columns":["source","generation_gwh"],
		"rows":[["wind",12.5],["solar",3.25]],
		"row_count":2
	}`))
	defer srv.Close()

	out, err := runCmd(t, srv, "datasets", "preview", "gen", "-n", "2")
	require.NoError(t, err)

	req := rec.last()
	assert.Equal(t, "/v1/datasets/gen/preview", req.Path)
	assert.Equal(t, "n=2", req.Query)
	assert.Contains(t, out, "wind")
	assert.Contains(t, out, "12.5")
	assert.Contains(t, out, "(2 rows)")
}

func TestCLI_AuthHeaders(t *testing.T) {
	t.Run("api key", func(t *testing.T) {
		rec := &requestRecorder{}
		srv := httptest.NewServer(jsonHandler(rec, 200, `[]`))
		defer srv.Close()

		_, err := runCmd(t, srv, "--api-key", "secret123", "datasets", "list")
		require.NoError(t, err)
		assert.Equal(t, "secret123", rec.last().Headers.Get("X-API-Key"))
	})

	t.Run("bearer token wins over api key", func(t *testing.T) {
		rec := &requestRecorder{}
		srv := httptest.NewServer(jsonHandler(rec, 200, `[]`))
		defer srv.Close()

		_, err := runCmd(t, srv, "--api-key", "secret123", "--token", "jwt-abc", "datasets", "list")
		require.NoError(t, err)
		req := rec.last()
		assert.Equal(t, "Bearer jwt-abc", req.Headers.Get("Authorization"))
		assert.Empty(t, req.Headers.Get("X-API-Key"))
	})

	t.Run("env var fallback", func(t *testing.T) {
		rec := &requestRecorder{}
		srv := httptest.NewServer(jsonHandler(rec, 200, `[]`))
		defer srv.Close()

		t.Setenv("GRIDLAKE_API_KEY", "from-env")
		_, err := runCmd(t, srv, "datasets", "list")
		require.NoError(t, err)
		assert.Equal(t, "from-env", rec.last().Headers.Get("X-API-Key"))
	})
}

func TestCLI_ErrorPropagation(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantSubstr string
	}{
		{
			name:       "HTTP 404 not found",
			status:     404,
			body:       `{"code":404,"message":"dataset gen not found"}`,
			wantSubstr: "dataset gen not found",
		},
		{
			name:       "HTTP 400 validation",
			status:     400,
			body:       `{"code":400,"message":"op 0: unknown column"}`,
			wantSubstr: "unknown column",
		},
		{
			name:       "HTTP 500 internal error",
			status:     500,
			body:       `{"code":500,"message":"internal server error"}`,
			wantSubstr: "internal server error",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &requestRecorder{}
			srv := httptest.NewServer(jsonHandler(rec, tc.status, tc.body))
			defer srv.Close()

			_, err := runCmd(t, srv, "datasets", "get", "gen")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "API error")
			assert.Contains(t, err.Error(), tc.wantSubstr)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.HTTPStatus)
		})
	}
}

func TestCLI_FrameRun(t *testing.T) {
	dir := t.TempDir()
	pipeline := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(pipeline, []byte(`
- kind: filter
  conditions:
    - column: source
      operator: "="
      value: wind
- kind: sort
  keys:
    - column: ts
`), 0o600))

	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, 200, `{
		"columns":["ts","source","generation_gwh"],
		"rows":[["2024-01-01 00:00:00","wind",12.5]],
		"row_count":1
	}`))
	defer srv.Close()

	out, err := runCmd(t, srv, "frame", "gen", "-f", pipeline, "--limit", "50")
	require.NoError(t, err)

	req := rec.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/v1/datasets/gen/frame", req.Path)
	assert.Contains(t, req.Body, `"kind":"filter"`)
	assert.Contains(t, req.Body, `"limit":50`)
	assert.Contains(t, out, "wind")
}

func TestCLI_FrameSQL(t *testing.T) {
	dir := t.TempDir()
	pipeline := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(pipeline, []byte("- kind: filter\n  conditions:\n    - column: source\n      operator: \"=\"\n      value: wind\n"), 0o600))

	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, 200, `{"sql":"SELECT * FROM (SELECT * FROM \"gen\") AS t0 WHERE source = 'wind'"}`))
	defer srv.Close()

	out, err := runCmd(t, srv, "frame", "gen", "-f", pipeline, "--sql")
	require.NoError(t, err)
	assert.Equal(t, "/v1/datasets/gen/frame/sql", rec.last().Path)
	assert.Contains(t, out, "WHERE source = 'wind'")
}

func TestCLI_RecipesCreate_SendsYAML(t *testing.T) {
	dir := t.TempDir()
	recipeFile := filepath.Join(dir, "recipe.yaml")
	doc := "name: daily-wind\ndataset: gen\nops:\n  - kind: filter\n    predicate: source = 'wind'\n"
	require.NoError(t, os.WriteFile(recipeFile, []byte(doc), 0o600))

	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, 201, `{"name":"daily-wind","dataset":"gen"}`))
	defer srv.Close()

	out, err := runCmd(t, srv, "recipes", "create", "-f", recipeFile)
	require.NoError(t, err)

	req := rec.last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/v1/recipes", req.Path)
	assert.Equal(t, "application/yaml", req.Headers.Get("Content-Type"))
	assert.Equal(t, doc, req.Body)
	assert.Contains(t, out, "daily-wind")
}

func TestCLI_ExportHistory(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, 200, `[
		{"id":"r1","dataset":"gen","format":"csv","status":"ok","row_count":100,"path":"/exports/gen/gen.csv"},
		{"id":"r2","dataset":"gen","format":"parquet","status":"failed","error":"disk full"}
	]`))
	defer srv.Close()

	out, err := runCmd(t, srv, "export", "history", "--dataset", "gen", "--limit", "5")
	require.NoError(t, err)

	req := rec.last()
	assert.Equal(t, "/v1/exports", req.Path)
	assert.Contains(t, req.Query, "dataset=gen")
	assert.Contains(t, req.Query, "limit=5")
	assert.Contains(t, out, "csv")
	assert.Contains(t, out, "failed")
}

func TestCLI_Report_WritesFile(t *testing.T) {
	rec := &requestRecorder{}
	html := "<!doctype html><html><body>Generation Report</body></html>"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "report.html")
	stdout, err := runCmd(t, srv, "report", "gen", "--window", "48", "-O", out)
	require.NoError(t, err)

	req := rec.last()
	assert.Equal(t, "/v1/datasets/gen/report", req.Path)
	assert.Equal(t, "window=48", req.Query)
	assert.Contains(t, stdout, "Wrote "+out)

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, html, string(written))
}

func TestCLI_JSONOutput(t *testing.T) {
	rec := &requestRecorder{}
	srv := httptest.NewServer(jsonHandler(rec, 200, `[{"name":"gen","format":"csv","row_count":3}]`))
	defer srv.Close()

	out, err := runCmd(t, srv, "-o", "json", "datasets", "list")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "gen"`)
	assert.Contains(t, out, `"row_count": 3`)
}

func TestCLI_InvalidOutputFormat(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(&requestRecorder{}, 200, `[]`))
	defer srv.Close()

	_, err := runCmd(t, srv, "-o", "xml", "datasets", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestCLI_Version(t *testing.T) {
	srv := httptest.NewServer(jsonHandler(&requestRecorder{}, 200, `[]`))
	defer srv.Close()

	out, err := runCmd(t, srv, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "gridlake")
}
