package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"gridlake/internal/domain"
)

// APIError is a non-2xx reply from the server.
type APIError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s", e.HTTPStatus, e.Message)
}

// Client is a typed HTTP client for the gridlake API.
type Client struct {
	BaseURL    string
	APIKey     string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a client for the given host.
func NewClient(baseURL, apiKey, token string) *Client {
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	contentType := "application/json"
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
		contentType = "application/yaml"
	default:
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if reader != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	} else if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{HTTPStatus: resp.StatusCode, Message: string(raw)}
		var parsed struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &parsed) == nil && parsed.Message != "" {
			apiErr.Code = parsed.Code
			apiErr.Message = parsed.Message
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if b, ok := out.(*[]byte); ok {
		*b = raw
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IngestDataset loads a file into a new or existing dataset.
func (c *Client) IngestDataset(ctx context.Context, name, path, format string) (*domain.Dataset, error) {
	body := map[string]string{"name": name, "path": path, "format": format}
	var ds domain.Dataset
	if err := c.do(ctx, http.MethodPost, "/v1/datasets", body, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// ListDatasets returns all datasets.
func (c *Client) ListDatasets(ctx context.Context) ([]domain.Dataset, error) {
	var list []domain.Dataset
	if err := c.do(ctx, http.MethodGet, "/v1/datasets", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetDataset returns one dataset by name.
func (c *Client) GetDataset(ctx context.Context, name string) (*domain.Dataset, error) {
	var ds domain.Dataset
	if err := c.do(ctx, http.MethodGet, "/v1/datasets/"+url.PathEscape(name), nil, &ds); err != nil {
		return nil, err
	}
	return &ds, nil
}

// DeleteDataset removes a dataset and its table.
func (c *Client) DeleteDataset(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/v1/datasets/"+url.PathEscape(name), nil, nil)
}

// DescribeDataset returns per-column summary statistics.
func (c *Client) DescribeDataset(ctx context.Context, name string) (*domain.Frame, error) {
	var f domain.Frame
	if err := c.do(ctx, http.MethodGet, "/v1/datasets/"+url.PathEscape(name)+"/describe", nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// PreviewDataset returns the first n rows.
func (c *Client) PreviewDataset(ctx context.Context, name string, n int) (*domain.Frame, error) {
	var f domain.Frame
	path := "/v1/datasets/" + url.PathEscape(name) + "/preview?n=" + strconv.Itoa(n)
	if err := c.do(ctx, http.MethodGet, path, nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// RunFrame executes a pipeline and returns the result frame.
func (c *Client) RunFrame(ctx context.Context, dataset string, ops []domain.Op, limit int) (*domain.Frame, error) {
	body := map[string]interface{}{"ops": ops}
	if limit > 0 {
		body["limit"] = limit
	}
	var f domain.Frame
	if err := c.do(ctx, http.MethodPost, "/v1/datasets/"+url.PathEscape(dataset)+"/frame", body, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// CompileFrame returns the SQL a pipeline would execute.
func (c *Client) CompileFrame(ctx context.Context, dataset string, ops []domain.Op) (string, error) {
	var resp struct {
		SQL string `json:"sql"`
	}
	body := map[string]interface{}{"ops": ops}
	if err := c.do(ctx, http.MethodPost, "/v1/datasets/"+url.PathEscape(dataset)+"/frame/sql", body, &resp); err != nil {
		return "", err
	}
	return resp.SQL, nil
}

// Export runs an ad hoc export of a pipeline.
func (c *Client) Export(ctx context.Context, dataset string, ops []domain.Op, targets []domain.ExportTarget) ([]domain.ExportRun, error) {
	body := map[string]interface{}{"ops": ops, "targets": targets}
	var runs []domain.ExportRun
	if err := c.do(ctx, http.MethodPost, "/v1/datasets/"+url.PathEscape(dataset)+"/exports", body, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// ListExports returns recent export runs.
func (c *Client) ListExports(ctx context.Context, dataset string, limit int) ([]domain.ExportRun, error) {
	path := "/v1/exports?limit=" + strconv.Itoa(limit)
	if dataset != "" {
		path += "&dataset=" + url.QueryEscape(dataset)
	}
	var runs []domain.ExportRun
	if err := c.do(ctx, http.MethodGet, path, nil, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// CreateRecipeYAML submits a raw YAML recipe document.
func (c *Client) CreateRecipeYAML(ctx context.Context, doc []byte) (*domain.Recipe, error) {
	var r domain.Recipe
	if err := c.do(ctx, http.MethodPost, "/v1/recipes", doc, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRecipes returns all recipes.
func (c *Client) ListRecipes(ctx context.Context) ([]domain.Recipe, error) {
	var list []domain.Recipe
	if err := c.do(ctx, http.MethodGet, "/v1/recipes", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetRecipe returns one recipe by name.
func (c *Client) GetRecipe(ctx context.Context, name string) (*domain.Recipe, error) {
	var r domain.Recipe
	if err := c.do(ctx, http.MethodGet, "/v1/recipes/"+url.PathEscape(name), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteRecipe removes a recipe.
func (c *Client) DeleteRecipe(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/v1/recipes/"+url.PathEscape(name), nil, nil)
}

// RunRecipe executes a recipe now.
func (c *Client) RunRecipe(ctx context.Context, name string) ([]domain.ExportRun, error) {
	var runs []domain.ExportRun
	if err := c.do(ctx, http.MethodPost, "/v1/recipes/"+url.PathEscape(name)+"/run", nil, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// Report fetches the rendered HTML report for a dataset.
func (c *Client) Report(ctx context.Context, dataset string, windowHours int) ([]byte, error) {
	path := "/v1/datasets/" + url.PathEscape(dataset) + "/report"
	if windowHours > 0 {
		path += "?window=" + strconv.Itoa(windowHours)
	}
	var raw []byte
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
