// Package tixapi talks to the issue tracker REST API.
package tixapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"tix/internal/domain"
	"tix/internal/httpx"
)

// Reply statuses sent by the API alongside the HTTP status code.
const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusException = "exception"
	StatusMissing   = "missing"
)

var ErrNotFound = errors.New("not found")

// APIError is a non-success reply.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tracker API returned %d (%s)", e.StatusCode, e.Status)
	}
	return fmt.Sprintf("tracker API returned %d (%s): %s", e.StatusCode, e.Status, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match "missing" replies.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && (e.Status == StatusMissing || e.StatusCode == http.StatusNotFound)
}

type envelope struct {
	Data      json.RawMessage `json:"data"`
	Message   *string         `json:"message"`
	Status    string          `json:"status"`
	Response  int             `json:"response"`
	Timestamp float64         `json:"timestamp"`
	Duration  float64         `json:"duration"`
}

type Client struct {
	root string
	http *http.Client
}

// NewClient returns a client for the API rooted at root, e.g.
// http://localhost:5000/api. It uses the shared external HTTP client.
func NewClient(root string) *Client {
	return &Client{
		root: strings.TrimRight(root, "/"),
		http: httpx.Client(),
	}
}

func (c *Client) Root() string {
	return c.root
}

// ListIssues fetches GET /issues. params are passed through as equality
// filters on issue columns.
func (c *Client) ListIssues(ctx context.Context, params map[string]string) ([]domain.Issue, error) {
	data, err := c.get(ctx, "/issues", params)
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	issues, err := domain.DecodeIssues(data)
	if err != nil {
		return nil, fmt.Errorf("listing issues: %w", err)
	}
	return issues, nil
}

// GetIssue fetches one issue by name (PROJECT-0001). A name the API does not
// know yields an error matching ErrNotFound.
func (c *Client) GetIssue(ctx context.Context, name string) (domain.Issue, error) {
	data, err := c.get(ctx, "/issues/"+url.PathEscape(name), nil)
	if err != nil {
		return domain.Issue{}, fmt.Errorf("getting issue %s: %w", name, err)
	}
	issue, err := domain.DecodeIssue(data)
	if err != nil {
		return domain.Issue{}, fmt.Errorf("getting issue %s: %w", name, err)
	}
	return issue, nil
}

func (c *Client) ListActivity(ctx context.Context, params map[string]string) ([]domain.Activity, error) {
	data, err := c.get(ctx, "/activity", params)
	if err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}
	activity, err := domain.DecodeActivity(data)
	if err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}
	return activity, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string) (json.RawMessage, error) {
	apiURL := c.root + path
	if len(params) > 0 {
		q := url.Values{}
		for k, v := range params {
			q.Set(k, v)
		}
		// Encode sorts by key.
		apiURL += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	log.Debug().Str("url", apiURL).Msg("api request")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", path, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	log.Debug().Str("url", apiURL).Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("api response")

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &APIError{StatusCode: resp.StatusCode, Status: http.StatusText(resp.StatusCode), Message: strings.TrimSpace(string(body))}
		}
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || env.Status != StatusSuccess {
		apiErr := &APIError{StatusCode: resp.StatusCode, Status: env.Status}
		if env.Message != nil {
			apiErr.Message = *env.Message
		}
		return nil, apiErr
	}
	return env.Data, nil
}
