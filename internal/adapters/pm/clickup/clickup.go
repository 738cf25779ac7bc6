// Package clickup implements the pm.Client-shaped project-management
// integration for ClickUp. Unlike Asana/Notion/Linear, ClickUp statuses are
// plain strings scoped to a list (no separate id), so UpdateStatus and the
// auto-detecting move helpers both operate on the status's display name
// directly.
package clickup

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/flock-cli/flock/internal/adapters/pm"
	"github.com/flock-cli/flock/internal/core"
)

const baseURL = "https://api.clickup.com/api/v2"

// Client talks to the ClickUp REST API for one list.
type Client struct {
	http   *http.Client
	token  string
	listID string
}

// New builds a ClickUp client for the given API token and list id.
func New(token, listID string) *Client {
	return &Client{http: pm.NewHTTPClient(), token: token, listID: listID}
}

func (c *Client) auth(req *http.Request) {
	req.Header.Set("Authorization", c.token)
}

type clickUpStatus struct {
	Status string `json:"status"`
}

type taskNode struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	URL      string        `json:"url"`
	Status   clickUpStatus `json:"status"`
	ParentID *string       `json:"parent"`
}

func (n taskNode) summary() core.PmTaskSummary {
	lower := strings.ToLower(n.Status.Status)
	s := core.PmTaskSummary{
		ID:         n.ID,
		Name:       n.Name,
		URL:        n.URL,
		StatusName: n.Status.Status,
		Completed:  lower == "closed" || strings.Contains(lower, "done") || strings.Contains(lower, "complete"),
	}
	if n.ParentID != nil {
		s.ParentID = *n.ParentID
		s.IsSubtask = true
	}
	return s
}

// GetTask fetches a single task, including its subtasks inline.
func (c *Client) GetTask(ctx context.Context, id string) (core.PmTaskSummary, error) {
	var t taskNode
	u := fmt.Sprintf("%s/task/%s", baseURL, id)
	if err := pm.Get(ctx, c.http, "clickup", u, url.Values{"include": {"subtasks"}}, c.auth, &t); err != nil {
		return core.PmTaskSummary{}, err
	}
	return t.summary(), nil
}

type taskListResponse struct {
	Tasks []taskNode `json:"tasks"`
}

// ListTasks fetches every task in the configured list, marking as a parent
// (NumChildren > 0) any task that another task names as its parent.
func (c *Client) ListTasks(ctx context.Context) ([]core.PmTaskSummary, error) {
	u := fmt.Sprintf("%s/list/%s/task", baseURL, c.listID)
	var resp taskListResponse
	query := url.Values{"subtasks": {"true"}, "include": {"parent"}}
	if err := pm.Get(ctx, c.http, "clickup", u, query, c.auth, &resp); err != nil {
		return nil, err
	}

	childCount := make(map[string]int)
	for _, t := range resp.Tasks {
		if t.ParentID != nil {
			childCount[*t.ParentID]++
		}
	}

	out := make([]core.PmTaskSummary, 0, len(resp.Tasks))
	for _, t := range resp.Tasks {
		s := t.summary()
		s.NumChildren = childCount[t.ID]
		out = append(out, s)
	}
	return out, nil
}

type listStatusOption struct {
	Status string `json:"status"`
}

type listResponse struct {
	Statuses []listStatusOption `json:"statuses"`
}

// GetStatuses returns the list's configured workflow statuses.
func (c *Client) GetStatuses(ctx context.Context) ([]core.StatusOption, error) {
	u := fmt.Sprintf("%s/list/%s", baseURL, c.listID)
	var resp listResponse
	if err := pm.Get(ctx, c.http, "clickup", u, nil, c.auth, &resp); err != nil {
		return nil, err
	}
	out := make([]core.StatusOption, 0, len(resp.Statuses))
	for _, s := range resp.Statuses {
		out = append(out, core.StatusOption{ID: s.Status, Name: s.Status})
	}
	return out, nil
}

// UpdateStatus sets task id's status to the given value verbatim.
func (c *Client) UpdateStatus(ctx context.Context, id, statusValue string) error {
	u := fmt.Sprintf("%s/task/%s", baseURL, id)
	return pm.Put(ctx, c.http, "clickup", u, map[string]any{"status": statusValue}, c.auth, nil)
}

func (c *Client) findStatus(ctx context.Context, override *string, terms ...string) (string, error) {
	if override != nil {
		return *override, nil
	}
	options, err := c.GetStatuses(ctx)
	if err != nil {
		return "", err
	}
	names := make([]string, len(options))
	for i, o := range options {
		names[i] = o.Name
	}
	return pm.FindBySubstring(names, terms...), nil
}

// MoveToInProgress sets the task's status to whichever list status matches
// "in progress" vocabulary.
func (c *Client) MoveToInProgress(ctx context.Context, id string, override *string) error {
	status, err := c.findStatus(ctx, override, "in progress", "doing", "in review")
	if err != nil || status == "" {
		return err
	}
	return c.UpdateStatus(ctx, id, status)
}

// MoveToDone sets the task's status to whichever list status matches
// "done" vocabulary.
func (c *Client) MoveToDone(ctx context.Context, id string, override *string) error {
	status, err := c.findStatus(ctx, override, "done", "complete", "closed")
	if err != nil || status == "" {
		return err
	}
	return c.UpdateStatus(ctx, id, status)
}

// MoveToNotStarted sets the task's status to whichever list status matches
// "to do"/"backlog"/"open" vocabulary.
func (c *Client) MoveToNotStarted(ctx context.Context, id string, override *string) error {
	status, err := c.findStatus(ctx, override, "to do", "todo", "backlog", "open")
	if err != nil || status == "" {
		return err
	}
	return c.UpdateStatus(ctx, id, status)
}

// TestConnection verifies the token by fetching the configured list.
func (c *Client) TestConnection(ctx context.Context) error {
	u := fmt.Sprintf("%s/list/%s", baseURL, c.listID)
	return pm.TestConnection(ctx, c.http, "clickup", u, c.auth)
}
