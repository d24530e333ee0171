package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrTaskNotFound is returned by Client when the daemon reports 404 for a task.
var ErrTaskNotFound = errors.New("task not found")

// ErrAlreadyComplete is returned by Client.Resume when the task already finished.
var ErrAlreadyComplete = errors.New("task already complete")

// Client calls the daemon's operator API.
type Client struct {
	http *resty.Client
}

// NewClient builds a client for baseURL with an optional bearer token.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &Client{http: client}
}

// Health fetches component readiness; it doubles as a reachability probe.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).SetError(&out).Get("/api/health")
	// 503 still carries a health body.
	if err == nil && resp.StatusCode() == http.StatusServiceUnavailable {
		return &out, nil
	}
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// List fetches tasks matching the status filters.
func (c *Client) List(ctx context.Context, statuses []string) ([]Task, error) {
	var out TaskListResponse
	req := c.http.R().SetContext(ctx).SetResult(&out)
	if len(statuses) > 0 {
		req.SetQueryParamsFromValues(url.Values{"status": statuses})
	}
	if err := check(req.Get("/api/tasks")); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Stats fetches task counts.
func (c *Client) Stats(ctx context.Context) (map[string]int, error) {
	var out StatsResponse
	if err := check(c.http.R().SetContext(ctx).SetResult(&out).Get("/api/stats")); err != nil {
		return nil, err
	}
	return out.Counts, nil
}

// Describe fetches one task. It returns (nil, nil) when the task does not exist.
func (c *Client) Describe(ctx context.Context, id string) (*Task, error) {
	var out TaskResponse
	err := check(c.http.R().SetContext(ctx).SetResult(&out).Get("/api/tasks/" + url.PathEscape(id)))
	if errors.Is(err, ErrTaskNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out.Item, nil
}

// Resume asks the daemon to resume a task.
func (c *Client) Resume(ctx context.Context, id string) (ResumeResponse, error) {
	var out ResumeResponse
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).SetError(&out).Post("/api/tasks/" + url.PathEscape(id) + "/resume")
	if err == nil && resp.StatusCode() == http.StatusConflict && out.Complete {
		return out, ErrAlreadyComplete
	}
	if err := check(resp, err); err != nil {
		return ResumeResponse{}, err
	}
	return out, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("daemon api: %w", err)
	}
	if resp.IsSuccess() {
		return nil
	}
	if resp.StatusCode() == http.StatusNotFound {
		return ErrTaskNotFound
	}
	message := strings.TrimSpace(resp.String())
	return fmt.Errorf("daemon api: %s returned %d: %s", resp.Request.URL, resp.StatusCode(), message)
}
