package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	defaultVersion = "2022-06-28"
)

// HTTPClient implements Client against the record store's REST API.
type HTTPClient struct {
	http    *http.Client
	baseURL string
	token   string
	version string
	// sleep is swapped out in tests to avoid real rate-limit waits.
	sleep func(time.Duration)
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithBaseURL overrides the API base URL (used by tests with httptest).
func WithBaseURL(u string) ClientOption {
	return func(c *HTTPClient) { c.baseURL = u }
}

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) { c.http = hc }
}

// WithVersion overrides the API version header.
func WithVersion(v string) ClientOption {
	return func(c *HTTPClient) { c.version = v }
}

// NewHTTPClient creates a record store client authenticated with the given
// integration token.
func NewHTTPClient(token string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: defaultBaseURL,
		token:   token,
		version: defaultVersion,
		sleep:   time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RetrievePage fetches one page by id.
func (c *HTTPClient) RetrievePage(ctx context.Context, id string) (*Page, error) {
	var page Page
	if err := c.call(ctx, http.MethodGet, "/pages/"+id, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

type queryRequest struct {
	Filter      json.RawMessage `json:"filter,omitempty"`
	Sorts       json.RawMessage `json:"sorts,omitempty"`
	StartCursor string          `json:"start_cursor,omitempty"`
}

type listResponse struct {
	Results    json.RawMessage `json:"results"`
	HasMore    bool            `json:"has_more"`
	NextCursor string          `json:"next_cursor"`
}

// QueryDatabase returns all matching pages, following pagination cursors.
func (c *HTTPClient) QueryDatabase(ctx context.Context, databaseID string, filter, sorts json.RawMessage) ([]Page, error) {
	var pages []Page
	cursor := ""
	for {
		var resp listResponse
		req := queryRequest{Filter: filter, Sorts: sorts, StartCursor: cursor}
		if err := c.call(ctx, http.MethodPost, "/databases/"+databaseID+"/query", req, &resp); err != nil {
			return nil, err
		}
		var batch []Page
		if err := json.Unmarshal(resp.Results, &batch); err != nil {
			return nil, fmt.Errorf("notion: decode query results: %w", err)
		}
		pages = append(pages, batch...)
		if !resp.HasMore || resp.NextCursor == "" {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}

type createPageRequest struct {
	Parent     map[string]string        `json:"parent"`
	Properties map[string]PropertyValue `json:"properties"`
	Icon       json.RawMessage          `json:"icon,omitempty"`
}

// CreatePage creates a page in the given collection.
func (c *HTTPClient) CreatePage(ctx context.Context, databaseID string, properties map[string]PropertyValue, icon json.RawMessage) (*Page, error) {
	req := createPageRequest{
		Parent:     map[string]string{"database_id": databaseID},
		Properties: properties,
		Icon:       icon,
	}
	var page Page
	if err := c.call(ctx, http.MethodPost, "/pages", req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// UpdatePage patches properties on an existing page.
func (c *HTTPClient) UpdatePage(ctx context.Context, id string, properties map[string]PropertyValue) (*Page, error) {
	req := struct {
		Properties map[string]PropertyValue `json:"properties"`
	}{Properties: properties}
	var page Page
	if err := c.call(ctx, http.MethodPatch, "/pages/"+id, req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListChildren returns the direct children of a block, following pagination.
func (c *HTTPClient) ListChildren(ctx context.Context, blockID string) ([]Block, error) {
	var blocks []Block
	path := "/blocks/" + blockID + "/children"
	cursor := ""
	for {
		p := path
		if cursor != "" {
			p += "?start_cursor=" + cursor
		}
		var resp listResponse
		if err := c.call(ctx, http.MethodGet, p, nil, &resp); err != nil {
			return nil, err
		}
		var batch []Block
		if err := json.Unmarshal(resp.Results, &batch); err != nil {
			return nil, fmt.Errorf("notion: decode child blocks: %w", err)
		}
		blocks = append(blocks, batch...)
		if !resp.HasMore || resp.NextCursor == "" {
			return blocks, nil
		}
		cursor = resp.NextCursor
	}
}

// AppendChildren appends blocks under a parent and returns the created blocks.
func (c *HTTPClient) AppendChildren(ctx context.Context, blockID string, blocks []Block) ([]Block, error) {
	req := struct {
		Children []Block `json:"children"`
	}{Children: blocks}
	var resp listResponse
	if err := c.call(ctx, http.MethodPatch, "/blocks/"+blockID+"/children", req, &resp); err != nil {
		return nil, err
	}
	var created []Block
	if err := json.Unmarshal(resp.Results, &created); err != nil {
		return nil, fmt.Errorf("notion: decode appended blocks: %w", err)
	}
	return created, nil
}

type databaseResponse struct {
	Properties map[string]struct {
		Type string `json:"type"`
	} `json:"properties"`
}

// GetSchema returns the property names and types of a collection.
func (c *HTTPClient) GetSchema(ctx context.Context, databaseID string) (Schema, error) {
	var resp databaseResponse
	if err := c.call(ctx, http.MethodGet, "/databases/"+databaseID, nil, &resp); err != nil {
		return nil, err
	}
	schema := make(Schema, len(resp.Properties))
	for name, p := range resp.Properties {
		schema[name] = p.Type
	}
	return schema, nil
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// call performs one REST call, decoding the error envelope on failure. A
// rate-limited call is retried once after the server's advised delay.
func (c *HTTPClient) call(ctx context.Context, method, path string, body, result any) error {
	err := c.do(ctx, method, path, body, result)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Kind == KindRateLimited {
		c.sleep(apiErr.retryAfter)
		err = c.do(ctx, method, path, body, result)
	}
	return err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("notion: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("notion: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Notion-Version", c.version)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("notion: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("notion: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope errorResponse
		// The error envelope is best-effort; a non-JSON body still
		// produces a classified APIError from the status code.
		_ = json.Unmarshal(respBody, &envelope)
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Code:       envelope.Code,
			Kind:       classify(resp.StatusCode, envelope.Code),
			Message:    envelope.Message,
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		if apiErr.Kind == KindRateLimited {
			apiErr.retryAfter = retryAfter(resp.Header.Get("Retry-After"))
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("notion: decode response: %w", err)
		}
	}
	return nil
}

func retryAfter(header string) time.Duration {
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Second
}
