// Package asana implements the pm.Client-shaped project-management
// integration for Asana. Status is modeled as project sections: a task's
// "status" is simply the name of whichever section it currently lives in,
// so moving a task means finding the target section's gid and relocating
// the task into it.
package asana

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/flock-cli/flock/internal/adapters/pm"
	"github.com/flock-cli/flock/internal/core"
)

// baseURL is a var, not a const, so tests can point it at an httptest
// server.
var baseURL = "https://app.asana.com/api/1.0"

// Client talks to the Asana REST API for one project.
type Client struct {
	http      *http.Client
	token     string
	projectID string
}

// New builds an Asana client for the given personal access token and
// project gid.
func New(token, projectID string) *Client {
	return &Client{http: pm.NewHTTPClient(), token: token, projectID: projectID}
}

func (c *Client) auth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}

type taskEnvelope struct {
	Data []taskNode `json:"data"`
}

type taskNode struct {
	GID          string `json:"gid"`
	Name         string `json:"name"`
	Completed    bool   `json:"completed"`
	PermalinkURL string `json:"permalink_url"`
	NumSubtasks  int    `json:"num_subtasks"`
	Parent       *struct {
		GID string `json:"gid"`
	} `json:"parent"`
}

func (n taskNode) summary() core.PmTaskSummary {
	status := "not started"
	if n.Completed {
		status = "done"
	}
	s := core.PmTaskSummary{
		ID:          n.GID,
		Name:        n.Name,
		URL:         n.PermalinkURL,
		StatusName:  status,
		Completed:   n.Completed,
		NumChildren: n.NumSubtasks,
	}
	if n.Parent != nil {
		s.ParentID = n.Parent.GID
		s.IsSubtask = true
	}
	return s
}

const taskOptFields = "gid,name,completed,permalink_url,parent,num_subtasks"

// GetTask fetches a single task by gid.
func (c *Client) GetTask(ctx context.Context, gid string) (core.PmTaskSummary, error) {
	var env struct {
		Data taskNode `json:"data"`
	}
	u := fmt.Sprintf("%s/tasks/%s", baseURL, gid)
	if err := pm.Get(ctx, c.http, "asana", u, url.Values{"opt_fields": {taskOptFields}}, c.auth, &env); err != nil {
		return core.PmTaskSummary{}, err
	}
	return env.Data.summary(), nil
}

func (c *Client) getSubtasks(ctx context.Context, parentGID string) ([]core.PmTaskSummary, error) {
	var env taskEnvelope
	u := fmt.Sprintf("%s/tasks/%s/subtasks", baseURL, parentGID)
	if err := pm.Get(ctx, c.http, "asana", u, url.Values{"opt_fields": {taskOptFields}}, c.auth, &env); err != nil {
		return nil, err
	}
	out := make([]core.PmTaskSummary, 0, len(env.Data))
	for _, n := range env.Data {
		s := n.summary()
		s.IsSubtask = true
		if s.ParentID == "" {
			s.ParentID = parentGID
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *Client) getProjectTasks(ctx context.Context) ([]core.PmTaskSummary, error) {
	if c.projectID == "" {
		return nil, fmt.Errorf("asana: no project configured")
	}
	var env taskEnvelope
	u := fmt.Sprintf("%s/projects/%s/tasks", baseURL, c.projectID)
	if err := pm.Get(ctx, c.http, "asana", u, url.Values{"opt_fields": {taskOptFields}}, c.auth, &env); err != nil {
		return nil, err
	}
	out := make([]core.PmTaskSummary, 0, len(env.Data))
	for _, n := range env.Data {
		out = append(out, n.summary())
	}
	return out, nil
}

// ListTasks fetches every task in the configured project, plus the
// subtasks of any task reporting num_subtasks > 0.
func (c *Client) ListTasks(ctx context.Context) ([]core.PmTaskSummary, error) {
	tasks, err := c.getProjectTasks(ctx)
	if err != nil {
		return nil, err
	}

	parents := make([]string, 0)
	for _, t := range tasks {
		if t.NumChildren > 0 {
			parents = append(parents, t.ID)
		}
	}

	for _, parentGID := range parents {
		subtasks, err := c.getSubtasks(ctx, parentGID)
		if err != nil {
			continue
		}
		tasks = append(tasks, subtasks...)
	}

	return tasks, nil
}

type sectionNode struct {
	GID  string `json:"gid"`
	Name string `json:"name"`
}

func (c *Client) getSections(ctx context.Context) ([]core.StatusOption, error) {
	if c.projectID == "" {
		return nil, fmt.Errorf("asana: no project configured")
	}
	var env struct {
		Data []sectionNode `json:"data"`
	}
	u := fmt.Sprintf("%s/projects/%s/sections", baseURL, c.projectID)
	if err := pm.Get(ctx, c.http, "asana", u, nil, c.auth, &env); err != nil {
		return nil, err
	}
	out := make([]core.StatusOption, 0, len(env.Data))
	for _, s := range env.Data {
		out = append(out, core.StatusOption{ID: s.GID, Name: s.Name})
	}
	return out, nil
}

// GetStatuses returns the project's sections as the selectable status set.
func (c *Client) GetStatuses(ctx context.Context) ([]core.StatusOption, error) {
	return c.getSections(ctx)
}

func (c *Client) findSectionGID(ctx context.Context, terms ...string) (string, error) {
	sections, err := c.getSections(ctx)
	if err != nil {
		return "", err
	}
	names := make([]string, len(sections))
	byName := make(map[string]string, len(sections))
	for i, s := range sections {
		names[i] = s.Name
		byName[s.Name] = s.ID
	}
	match := pm.FindBySubstring(names, terms...)
	return byName[match], nil
}

func (c *Client) moveTaskToSection(ctx context.Context, taskGID, sectionGID string) error {
	u := fmt.Sprintf("%s/sections/%s/addTask", baseURL, sectionGID)
	body := map[string]any{"data": map[string]any{"task": taskGID}}
	return pm.Post(ctx, c.http, "asana", u, body, c.auth, nil)
}

// UpdateStatus relocates task id into the section named by statusValue
// (exact gid expected, since Asana statuses are sections keyed by gid).
func (c *Client) UpdateStatus(ctx context.Context, id, statusValue string) error {
	return c.moveTaskToSection(ctx, id, statusValue)
}

func (c *Client) moveByTerms(ctx context.Context, taskGID string, override *string, terms ...string) error {
	sectionGID := ""
	if override != nil {
		sectionGID = *override
	} else {
		found, err := c.findSectionGID(ctx, terms...)
		if err != nil {
			return err
		}
		sectionGID = found
	}
	if sectionGID == "" {
		return nil
	}
	return c.moveTaskToSection(ctx, taskGID, sectionGID)
}

// MoveToInProgress relocates the task into its "In Progress" section.
func (c *Client) MoveToInProgress(ctx context.Context, id string, override *string) error {
	return c.moveByTerms(ctx, id, override, "in progress", "in_progress")
}

// MoveToDone relocates the task into its "Done" section and marks it
// completed.
func (c *Client) MoveToDone(ctx context.Context, id string, override *string) error {
	if err := c.moveByTerms(ctx, id, override, "done", "complete"); err != nil {
		return err
	}
	u := fmt.Sprintf("%s/tasks/%s", baseURL, id)
	body := map[string]any{"data": map[string]any{"completed": true}}
	return pm.Put(ctx, c.http, "asana", u, body, c.auth, nil)
}

// MoveToNotStarted relocates the task into its "Not Started"/"To Do"
// section and clears its completed flag.
func (c *Client) MoveToNotStarted(ctx context.Context, id string, override *string) error {
	if err := c.moveByTerms(ctx, id, override, "not started", "todo", "to do", "backlog"); err != nil {
		return err
	}
	u := fmt.Sprintf("%s/tasks/%s", baseURL, id)
	body := map[string]any{"data": map[string]any{"completed": false}}
	return pm.Put(ctx, c.http, "asana", u, body, c.auth, nil)
}

// TestConnection verifies the token by fetching the configured project's
// sections.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.getSections(ctx)
	return err
}
