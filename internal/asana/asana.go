// Package asana is a thin client for the two Asana operations onboarding
// needs: adding a user to the workspace and creating their onboarding task.
// Calls go through a circuit breaker so a flaky Asana outage fails fast
// instead of stalling the whole run.
package asana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
)

const defaultBaseURL = "https://app.asana.com/api/1.0"

// Client talks to the Asana REST API with a personal access token.
type Client struct {
	pat          string
	workspaceGID string
	projectGID   string
	baseURL      string
	httpClient   *http.Client
	breaker      *gobreaker.CircuitBreaker[*http.Response]
}

// Config holds client construction parameters.
type Config struct {
	PAT          string
	WorkspaceGID string
	ProjectGID   string
	BaseURL      string
	Timeout      time.Duration
}

// New builds a Client, filling unset config fields with defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "asana",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return &Client{
		pat:          cfg.PAT,
		workspaceGID: cfg.WorkspaceGID,
		projectGID:   cfg.ProjectGID,
		baseURL:      cfg.BaseURL,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		breaker:      breaker,
	}
}

// User is the workspace membership record Asana returns for an invite.
type User struct {
	GID   string `json:"gid"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Task is the subset of a created task the pipeline records.
type Task struct {
	GID          string `json:"gid"`
	Name         string `json:"name"`
	PermalinkURL string `json:"permalink_url"`
	CreatedAt    string `json:"created_at"`
	Assignee     *struct {
		GID  string `json:"gid"`
		Name string `json:"name"`
	} `json:"assignee"`
}

// InviteUser adds the given email to the workspace. Inviting an existing
// member is a no-op on Asana's side, so the call is safe to retry.
func (c *Client) InviteUser(ctx context.Context, email string) (*User, error) {
	body := map[string]any{"data": map[string]any{"user": email}}
	endpoint := fmt.Sprintf("%s/workspaces/%s/addUser", c.baseURL, c.workspaceGID)

	q := url.Values{}
	q.Set("opt_fields", "email,name")

	var out User
	if err := c.post(ctx, endpoint+"?"+q.Encode(), body, &out); err != nil {
		return nil, fmt.Errorf("asana: invite %s to workspace: %w", email, err)
	}
	return &out, nil
}

// CreateTask creates an onboarding task in the configured project, assigned
// by email.
func (c *Client) CreateTask(ctx context.Context, name, assigneeEmail string) (*Task, error) {
	body := map[string]any{"data": map[string]any{
		"name":      name,
		"assignee":  assigneeEmail,
		"workspace": c.workspaceGID,
		"projects":  []string{c.projectGID},
	}}

	q := url.Values{}
	q.Set("opt_fields", "name,assignee,assignee.name,projects,projects.name,workspace,workspace.name,created_at,permalink_url")

	var out Task
	if err := c.post(ctx, c.baseURL+"/tasks?"+q.Encode(), body, &out); err != nil {
		return nil, fmt.Errorf("asana: create task %q: %w", name, err)
	}
	return &out, nil
}

// envelope is Asana's standard {"data": ...} wrapper.
type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.pat)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			raw, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))
		}
		return resp, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		if len(env.Errors) > 0 {
			return fmt.Errorf("status %d: %s", resp.StatusCode, env.Errors[0].Message)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("parse data: %w", err)
		}
	}
	return nil
}
