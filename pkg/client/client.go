package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cuemby/scribe/pkg/storage"
)

// Client wraps the snippet REST API for easy CLI usage
type Client struct {
	base   string
	apiKey string
	http   *http.Client
}

// NewClient creates a client for the service at addr, e.g.
// "http://localhost:8080". apiKey may be empty when the server runs
// without write authentication.
func NewClient(addr, apiKey string) *Client {
	return &Client{
		base:   addr,
		apiKey: apiKey,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

// CreateSnippet stores a new snippet and returns it with its assigned id.
func (c *Client) CreateSnippet(ctx context.Context, title, content, author string) (*storage.Snippet, error) {
	body, _ := json.Marshal(map[string]string{
		"title":   title,
		"content": content,
		"author":  author,
	})

	var out storage.Snippet
	if err := c.do(ctx, http.MethodPost, "/api/v1/snippets", bytes.NewReader(body), http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSnippet fetches one snippet by id.
func (c *Client) GetSnippet(ctx context.Context, id string) (*storage.Snippet, error) {
	var out storage.Snippet
	if err := c.do(ctx, http.MethodGet, "/api/v1/snippets/"+id, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSnippets fetches all snippets.
func (c *Client) ListSnippets(ctx context.Context) ([]*storage.Snippet, error) {
	var out []*storage.Snippet
	if err := c.do(ctx, http.MethodGet, "/api/v1/snippets", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSnippet removes a snippet by id.
func (c *Client) DeleteSnippet(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/snippets/"+id, nil, http.StatusNoContent, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, wantStatus int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
