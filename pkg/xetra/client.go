// Package xetra is a Go SDK for the xetra-server HTTP API.
package xetra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Record is one daily summary as served by /daily, keyed by the server's
// configured output column names.
type Record map[string]any

// Client provides a Go SDK for interacting with the xetra-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new xetra API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Daily runs the server's pipeline for date and returns the summaries. An
// empty date asks for the server's default date.
func (c *Client) Daily(ctx context.Context, date string) ([]Record, error) {
	path := "/daily"
	if date != "" {
		path += "/" + url.PathEscape(date)
	}
	var recs []Record
	if err := c.get(ctx, path, &recs); err != nil {
		return nil, fmt.Errorf("Daily: %w", err)
	}
	return recs, nil
}

// Health reports whether the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	var body map[string]string
	if err := c.get(ctx, "/healthz", &body); err != nil {
		return fmt.Errorf("Health: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, e.Error)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
