// Package notion implements the pm.Client-shaped project-management
// integration for Notion. Tasks are pages in a database; a task's status is
// the named option of a status-type property (configurable, default
// "Status"), and subtasks are pages linked from a parent via a "Tasks"
// relation property.
package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/flock-cli/flock/internal/adapters/pm"
	"github.com/flock-cli/flock/internal/core"
)

const (
	baseURL       = "https://api.notion.com/v1"
	notionVersion = "2022-06-28"
)

// Client talks to the Notion REST API for one database.
type Client struct {
	http               *http.Client
	token              string
	databaseID         string
	statusPropertyName string
}

// New builds a Notion client. statusPropertyName defaults to "Status" when
// empty.
func New(token, databaseID, statusPropertyName string) *Client {
	if statusPropertyName == "" {
		statusPropertyName = "Status"
	}
	return &Client{
		http:               pm.NewHTTPClient(),
		token:              token,
		databaseID:         databaseID,
		statusPropertyName: statusPropertyName,
	}
}

func (c *Client) auth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", notionVersion)
}

type richText struct {
	PlainText string `json:"plain_text"`
}

type statusValue struct {
	Name string `json:"name"`
}

type relationItem struct {
	ID string `json:"id"`
}

// pageResponse mirrors the subset of Notion's page object this client
// reads: id, url, raw properties (decoded lazily since property shapes
// vary by type), and the ever-present archived/completed-equivalent flag.
type pageResponse struct {
	ID         string                     `json:"id"`
	URL        string                     `json:"url"`
	Properties map[string]json.RawMessage `json:"properties"`
}

type queryResponse struct {
	Results []pageResponse `json:"results"`
}

func (c *Client) pageToSummary(p pageResponse) core.PmTaskSummary {
	name := ""
	status := ""
	completed := false

	for _, raw := range p.Properties {
		var probe struct {
			Type   string `json:"type"`
			Title  []richText
			Status *statusValue
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			continue
		}
		switch probe.Type {
		case "title":
			for _, t := range probe.Title {
				name += t.PlainText
			}
		case "status", "select":
			if probe.Status != nil {
				status = probe.Status.Name
				lower := strings.ToLower(status)
				completed = strings.Contains(lower, "done") || strings.Contains(lower, "complete")
			}
		}
	}

	return core.PmTaskSummary{
		ID:         p.ID,
		Name:       name,
		URL:        p.URL,
		StatusName: status,
		Completed:  completed,
	}
}

// GetTask fetches a single page by id.
func (c *Client) GetTask(ctx context.Context, pageID string) (core.PmTaskSummary, error) {
	u := fmt.Sprintf("%s/pages/%s", baseURL, cleanPageID(pageID))
	var page pageResponse
	if err := pm.Get(ctx, c.http, "notion", u, nil, c.auth, &page); err != nil {
		return core.PmTaskSummary{}, err
	}
	return c.pageToSummary(page), nil
}

func (c *Client) queryDatabase(ctx context.Context) ([]pageResponse, error) {
	u := fmt.Sprintf("%s/databases/%s/query", baseURL, c.databaseID)
	var resp queryResponse
	if err := pm.Post(ctx, c.http, "notion", u, map[string]any{}, c.auth, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *Client) relatedIDs(p pageResponse) []string {
	ids := make([]string, 0)
	for _, raw := range p.Properties {
		var probe struct {
			Type     string `json:"type"`
			Relation []relationItem
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			continue
		}
		if probe.Type == "relation" {
			for _, r := range probe.Relation {
				ids = append(ids, r.ID)
			}
		}
	}
	return ids
}

// ListTasks fetches every page in the database, then every page related to
// a parent via a "Tasks"-style relation property, interleaving each
// parent's children immediately after it.
func (c *Client) ListTasks(ctx context.Context) ([]core.PmTaskSummary, error) {
	pages, err := c.queryDatabase(ctx)
	if err != nil {
		return nil, err
	}

	childToParent := make(map[string]string)
	for _, parent := range pages {
		for _, childID := range c.relatedIDs(parent) {
			childToParent[childID] = parent.ID
		}
	}

	childrenByParent := make(map[string][]core.PmTaskSummary)
	for childID, parentID := range childToParent {
		child, err := c.GetTask(ctx, childID)
		if err != nil {
			continue
		}
		child.ParentID = parentID
		child.IsSubtask = true
		childrenByParent[parentID] = append(childrenByParent[parentID], child)
	}

	out := make([]core.PmTaskSummary, 0, len(pages))
	for _, parent := range pages {
		summary := c.pageToSummary(parent)
		summary.NumChildren = len(childrenByParent[parent.ID])
		out = append(out, summary)
		out = append(out, childrenByParent[parent.ID]...)
	}
	return out, nil
}

type databaseResponse struct {
	Properties map[string]json.RawMessage `json:"properties"`
}

// GetStatuses returns the configured status property's option list.
func (c *Client) GetStatuses(ctx context.Context) ([]core.StatusOption, error) {
	u := fmt.Sprintf("%s/databases/%s", baseURL, c.databaseID)
	var db databaseResponse
	if err := pm.Get(ctx, c.http, "notion", u, nil, c.auth, &db); err != nil {
		return nil, err
	}

	for name, raw := range db.Properties {
		if !strings.EqualFold(name, c.statusPropertyName) {
			continue
		}
		var prop struct {
			Status *struct {
				Options []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"options"`
			} `json:"status"`
			Select *struct {
				Options []struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"options"`
			} `json:"select"`
		}
		if err := json.Unmarshal(raw, &prop); err != nil {
			return nil, core.ErrProviderPermanent("notion", err)
		}
		options := prop.Status
		var raws []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if options != nil {
			raws = options.Options
		} else if prop.Select != nil {
			raws = prop.Select.Options
		}
		out := make([]core.StatusOption, 0, len(raws))
		for _, o := range raws {
			out = append(out, core.StatusOption{ID: o.Name, Name: o.Name})
		}
		return out, nil
	}
	return nil, fmt.Errorf("notion: status property %q not found", c.statusPropertyName)
}

func (c *Client) updatePageStatus(ctx context.Context, pageID, statusName string) error {
	u := fmt.Sprintf("%s/pages/%s", baseURL, cleanPageID(pageID))
	body := map[string]any{
		"properties": map[string]any{
			c.statusPropertyName: map[string]any{
				"status": map[string]any{"name": statusName},
			},
		},
	}
	return pm.Patch(ctx, c.http, "notion", u, body, c.auth, nil)
}

// UpdateStatus sets page id's status property to the named option.
func (c *Client) UpdateStatus(ctx context.Context, id, statusName string) error {
	return c.updatePageStatus(ctx, id, statusName)
}

func (c *Client) moveByTerms(ctx context.Context, pageID string, override *string, terms ...string) error {
	name := ""
	if override != nil {
		name = *override
	} else {
		options, err := c.GetStatuses(ctx)
		if err != nil {
			return err
		}
		names := make([]string, len(options))
		for i, o := range options {
			names[i] = o.Name
		}
		name = pm.FindBySubstring(names, terms...)
	}
	if name == "" {
		return nil
	}
	return c.updatePageStatus(ctx, pageID, name)
}

// MoveToInProgress sets the status to whichever option matches "in
// progress" vocabulary.
func (c *Client) MoveToInProgress(ctx context.Context, id string, override *string) error {
	return c.moveByTerms(ctx, id, override, "in progress", "in_progress", "doing")
}

// MoveToDone sets the status to whichever option matches "done"
// vocabulary.
func (c *Client) MoveToDone(ctx context.Context, id string, override *string) error {
	return c.moveByTerms(ctx, id, override, "done", "complete")
}

// MoveToNotStarted sets the status to whichever option matches "not
// started" vocabulary.
func (c *Client) MoveToNotStarted(ctx context.Context, id string, override *string) error {
	return c.moveByTerms(ctx, id, override, "not started", "to do", "todo")
}

// TestConnection verifies the token by fetching the database schema.
func (c *Client) TestConnection(ctx context.Context) error {
	u := fmt.Sprintf("%s/databases/%s", baseURL, c.databaseID)
	return pm.TestConnection(ctx, c.http, "notion", u, c.auth)
}

func cleanPageID(id string) string {
	return strings.ToLower(strings.ReplaceAll(id, "-", ""))
}
