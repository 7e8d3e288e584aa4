// Package tracker is a thin REST façade over the external issue tracker.
// The wire protocol is Jira's; nothing above this package speaks HTTP.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"taskbridge.app/bridge/internal/model"
)

// Client is the minimum tracker operation set the workflow bridge needs.
type Client interface {
	Search(ctx context.Context, jql string, fields []string, limit int) ([]model.IssueCandidate, error)
	GetTransitions(ctx context.Context, issueKey string) ([]model.Transition, error)
	ApplyTransition(ctx context.Context, issueKey, transitionID string) error
	CreateIssue(ctx context.Context, payload CreatePayload) (string, error)
	UpdateIssue(ctx context.Context, issueKey string, fields map[string]any) error
	GetInternalID(ctx context.Context, issueKey string) (string, error)
}

type Config struct {
	BaseURL  string
	Email    string
	APIToken string
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("tracker base URL is required")
	}
	if c.Email == "" || c.APIToken == "" {
		return fmt.Errorf("tracker credentials are required")
	}
	return nil
}

type client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("tracker config: %w", err)
	}
	return &client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *client) Search(ctx context.Context, jql string, fields []string, limit int) ([]model.IssueCandidate, error) {
	req := searchRequest{
		JQL:        jql,
		Fields:     fields,
		MaxResults: limit,
	}

	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/search", req, &resp); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	candidates := make([]model.IssueCandidate, len(resp.Issues))
	for i, issue := range resp.Issues {
		candidates[i] = model.IssueCandidate{
			Key:         issue.Key,
			Summary:     issue.Fields.Summary,
			Description: issue.Fields.Description,
		}
	}

	slog.DebugContext(ctx, "tracker search completed",
		"jql_len", len(jql),
		"candidates", len(candidates))

	return candidates, nil
}

func (c *client) GetTransitions(ctx context.Context, issueKey string) ([]model.Transition, error) {
	var resp transitionsResponse
	path := fmt.Sprintf("/rest/api/2/issue/%s/transitions", url.PathEscape(issueKey))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("get transitions for %s: %w", issueKey, err)
	}

	transitions := make([]model.Transition, len(resp.Transitions))
	for i, t := range resp.Transitions {
		transitions[i] = model.Transition{ID: t.ID, Name: t.Name}
	}
	return transitions, nil
}

func (c *client) ApplyTransition(ctx context.Context, issueKey, transitionID string) error {
	var req applyTransitionRequest
	req.Transition.ID = transitionID

	path := fmt.Sprintf("/rest/api/2/issue/%s/transitions", url.PathEscape(issueKey))
	if err := c.do(ctx, http.MethodPost, path, req, nil); err != nil {
		return fmt.Errorf("apply transition %s on %s: %w", transitionID, issueKey, err)
	}

	slog.InfoContext(ctx, "transition applied",
		"issue_key", issueKey,
		"transition_id", transitionID)
	return nil
}

func (c *client) CreateIssue(ctx context.Context, payload CreatePayload) (string, error) {
	fields := payload.Fields
	if payload.Parent != nil {
		merged := make(map[string]any, len(fields)+1)
		for k, v := range fields {
			merged[k] = v
		}
		merged["parent"] = payload.Parent
		fields = merged
	}

	var resp createResponse
	if err := c.do(ctx, http.MethodPost, "/rest/api/2/issue", map[string]any{"fields": fields}, &resp); err != nil {
		return "", fmt.Errorf("create issue: %w", err)
	}

	slog.InfoContext(ctx, "issue created", "issue_key", resp.Key)
	return resp.Key, nil
}

func (c *client) UpdateIssue(ctx context.Context, issueKey string, fields map[string]any) error {
	body := map[string]any{"fields": fields}
	path := fmt.Sprintf("/rest/api/2/issue/%s", url.PathEscape(issueKey))
	if err := c.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("update issue %s: %w", issueKey, err)
	}
	return nil
}

func (c *client) GetInternalID(ctx context.Context, issueKey string) (string, error) {
	var resp issueIDResponse
	path := fmt.Sprintf("/rest/api/3/issue/%s?fields=id", url.PathEscape(issueKey))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", fmt.Errorf("get internal id for %s: %w", issueKey, err)
	}
	return resp.ID, nil
}

func (c *client) do(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Email, c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if result != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
