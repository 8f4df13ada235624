// Package coordinatorclient reads coordinator state over HTTP and posts
// collaborator summaries back to it.
package coordinatorclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/louisbranch/tutoring.space/internal/platform/timeouts"
	"github.com/louisbranch/tutoring.space/internal/services/shared/coordinatorapi"
)

// ServiceHeader names the calling collaborator on every request.
const ServiceHeader = "X-Service"

// Client talks to one coordinator base URL.
type Client struct {
	baseURL    string
	service    string
	httpClient *http.Client
}

// New returns a client for baseURL identifying itself as service. A nil
// httpClient uses one bounded by timeouts.CollaboratorRequest.
func New(baseURL string, service string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("coordinator url is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeouts.CollaboratorRequest}
	}
	return &Client{baseURL: baseURL, service: strings.TrimSpace(service), httpClient: httpClient}, nil
}

// Participants lists every registered participant.
func (c *Client) Participants(ctx context.Context) ([]coordinatorapi.Participant, error) {
	var out []coordinatorapi.Participant
	if err := c.getJSON(ctx, coordinatorapi.PathUsers, &out); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return out, nil
}

// Messages lists the retained message window.
func (c *Client) Messages(ctx context.Context) ([]coordinatorapi.Message, error) {
	var out []coordinatorapi.Message
	if err := c.getJSON(ctx, coordinatorapi.PathMessages, &out); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}

// Sessions lists every session.
func (c *Client) Sessions(ctx context.Context) ([]coordinatorapi.Session, error) {
	var out []coordinatorapi.Session
	if err := c.getJSON(ctx, coordinatorapi.PathSessions, &out); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

// PostNotificationStats pushes a notification summary.
func (c *Client) PostNotificationStats(ctx context.Context, payload any) error {
	if err := c.postJSON(ctx, coordinatorapi.PathNotificationStats, payload); err != nil {
		return fmt.Errorf("post notification stats: %w", err)
	}
	return nil
}

// PostAnalyticsData pushes an analytics summary.
func (c *Client) PostAnalyticsData(ctx context.Context, payload any) error {
	if err := c.postJSON(ctx, coordinatorapi.PathAnalyticsData, payload); err != nil {
		return fmt.Errorf("post analytics data: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.service != "" {
		req.Header.Set(ServiceHeader, c.service)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call coordinator: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("coordinator status %d", resp.StatusCode)
	}
	return resp, nil
}
