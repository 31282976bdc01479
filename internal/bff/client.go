// Package bff composes the data API and the session subsystem into the
// user-facing orchestration layer.
package bff

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/booklog/booklog/internal/auth"
	"github.com/booklog/booklog/internal/handler/dto"
	"github.com/booklog/booklog/internal/model"
)

// Downstream call errors. Transport faults and timeouts map to
// ErrUpstreamUnavailable so the orchestrator can surface a distinguishable
// unavailable state instead of rendering partial data.
var (
	ErrUpstreamUnavailable = errors.New("data API unavailable")
	ErrNotFound            = errors.New("record not found")
	ErrConflict            = errors.New("duplicate entry")
	ErrBadInput            = errors.New("rejected input")
)

// serviceTokenTTL bounds the lifetime of a per-request service token.
const serviceTokenTTL = 2 * time.Minute

// Client is the BFF's typed client for the data API.
// Every call carries a bounded timeout and a signed service token.
type Client struct {
	baseURL string
	secret  []byte
	timeout time.Duration
	http    *http.Client
}

// NewClient creates a data API client.
func NewClient(baseURL string, secret []byte, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		secret:  secret,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

// ListLogs fetches an owner's entries under the given sort key.
func (c *Client) ListLogs(ctx context.Context, ownerID string, sortKey model.SortKey) ([]model.LogEntry, error) {
	var entries []model.LogEntry
	path := fmt.Sprintf("/posts/%s/%s", ownerID, sortKey)
	if err := c.call(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// GetLog fetches a single entry.
func (c *Client) GetLog(ctx context.Context, id string) (*model.LogEntry, error) {
	var entry model.LogEntry
	if err := c.call(ctx, http.MethodGet, "/posts/"+id, nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Stats fetches an owner's aggregate summary.
func (c *Client) Stats(ctx context.Context, ownerID string) (*dto.StatResponse, error) {
	var stats dto.StatResponse
	if err := c.call(ctx, http.MethodGet, "/stat/"+ownerID, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Search fetches an owner's entries matching a keyword.
func (c *Client) Search(ctx context.Context, ownerID, keyword string) ([]model.LogEntry, error) {
	var entries []model.LogEntry
	body := dto.SearchRequest{Keyword: keyword}
	if err := c.call(ctx, http.MethodPost, "/search/"+ownerID, body, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CreateLog creates an entry for the owner.
func (c *Client) CreateLog(ctx context.Context, ownerID string, form dto.LogRequest) (*model.LogEntry, error) {
	var entry model.LogEntry
	if err := c.call(ctx, http.MethodPost, "/posts/"+ownerID, form, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ReplaceLog overwrites an entry with the full field set.
func (c *Client) ReplaceLog(ctx context.Context, id string, form dto.LogRequest) (*model.LogEntry, error) {
	var entry model.LogEntry
	if err := c.call(ctx, http.MethodPut, "/posts/"+id, form, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// DeleteLog removes an entry.
func (c *Client) DeleteLog(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/posts/"+id, nil, nil)
}

// call executes one request against the data API and decodes the response.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := auth.SignServiceToken(c.secret, serviceTokenTTL)
	if err != nil {
		return fmt.Errorf("sign service token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if err := mapStatus(resp); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %w", ErrUpstreamUnavailable, err)
		}
	}
	return nil
}

// mapStatus converts an API error response into a client error.
func mapStatus(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var apiErr dto.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Error)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, apiErr.Error)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadInput, apiErr.Error)
	default:
		return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}
}
