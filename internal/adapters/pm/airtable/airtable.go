// Package airtable implements the pm.Client-shaped project-management
// integration for Airtable. Airtable paginates list results with an opaque
// offset token rather than a page number, so ListTasks loops issuing one
// request per page until the API stops returning an offset.
package airtable

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/flock-cli/flock/internal/adapters/pm"
	"github.com/flock-cli/flock/internal/core"
)

const baseURL = "https://api.airtable.com/v0"

// Client talks to the Airtable REST API for one base/table pair.
type Client struct {
	http              *http.Client
	token             string
	baseID            string
	tableName         string
	statusFieldName   string
}

// New builds an Airtable client. statusFieldName defaults to "Status" when
// empty.
func New(token, baseID, tableName, statusFieldName string) *Client {
	if statusFieldName == "" {
		statusFieldName = "Status"
	}
	return &Client{
		http:            pm.NewHTTPClient(),
		token:           token,
		baseID:          baseID,
		tableName:       tableName,
		statusFieldName: statusFieldName,
	}
}

func (c *Client) auth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}

type record struct {
	ID     string                 `json:"id"`
	Fields map[string]interface{} `json:"fields"`
}

func (r record) toSummary(baseID, tableName string) core.PmTaskSummary {
	name, _ := r.Fields["Name"].(string)
	status, _ := r.Fields["Status"].(string)

	parentID := ""
	if parents, ok := r.Fields["Parent"].([]interface{}); ok && len(parents) > 0 {
		if id, ok := parents[0].(string); ok {
			parentID = id
		}
	}

	return core.PmTaskSummary{
		ID:         r.ID,
		Name:       name,
		URL:        fmt.Sprintf("https://airtable.com/%s/%s", baseID, tableName),
		StatusName: status,
		Completed:  strings.Contains(strings.ToLower(status), "done") || strings.Contains(strings.ToLower(status), "complete"),
		ParentID:   parentID,
		IsSubtask:  parentID != "",
	}
}

type recordsResponse struct {
	Records []record `json:"records"`
	Offset  string   `json:"offset"`
}

// GetTask fetches the single record matching id via a filterByFormula
// lookup (Airtable has no direct get-by-id endpoint on this path).
func (c *Client) GetTask(ctx context.Context, id string) (core.PmTaskSummary, error) {
	u := fmt.Sprintf("%s/%s/%s", baseURL, c.baseID, c.tableName)
	query := url.Values{"filterByFormula": {fmt.Sprintf("{RECORD_ID()}='%s'", id)}}
	var resp recordsResponse
	if err := pm.Get(ctx, c.http, "airtable", u, query, c.auth, &resp); err != nil {
		return core.PmTaskSummary{}, err
	}
	if len(resp.Records) == 0 {
		return core.PmTaskSummary{}, fmt.Errorf("airtable: record %s not found", id)
	}
	return resp.Records[0].toSummary(c.baseID, c.tableName), nil
}

// ListTasks pages through every record in the table, following the
// opaque offset token Airtable returns until a response carries none.
func (c *Client) ListTasks(ctx context.Context) ([]core.PmTaskSummary, error) {
	all := make([]record, 0)
	offset := ""

	for {
		u := fmt.Sprintf("%s/%s/%s", baseURL, c.baseID, c.tableName)
		var query url.Values
		if offset != "" {
			query = url.Values{"offset": {offset}}
		}
		var resp recordsResponse
		if err := pm.Get(ctx, c.http, "airtable", u, query, c.auth, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Records...)
		if resp.Offset == "" {
			break
		}
		offset = resp.Offset
	}

	childCount := make(map[string]int)
	for _, r := range all {
		s := r.toSummary(c.baseID, c.tableName)
		if s.ParentID != "" {
			childCount[s.ParentID]++
		}
	}

	out := make([]core.PmTaskSummary, 0, len(all))
	for _, r := range all {
		s := r.toSummary(c.baseID, c.tableName)
		s.NumChildren = childCount[s.ID]
		out = append(out, s)
	}
	return out, nil
}

type fieldSchema struct {
	Name    string `json:"name"`
	Options struct {
		Choices []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"choices"`
	} `json:"options"`
}

type tableSchema struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Fields []fieldSchema `json:"fields"`
}

type baseSchemaResponse struct {
	Tables []tableSchema `json:"tables"`
}

// GetStatuses returns the status field's configured single-select choices.
func (c *Client) GetStatuses(ctx context.Context) ([]core.StatusOption, error) {
	u := fmt.Sprintf("https://api.airtable.com/v0/meta/bases/%s/tables", c.baseID)
	var resp baseSchemaResponse
	if err := pm.Get(ctx, c.http, "airtable", u, nil, c.auth, &resp); err != nil {
		return nil, err
	}

	for _, t := range resp.Tables {
		if !strings.EqualFold(t.Name, c.tableName) {
			continue
		}
		for _, f := range t.Fields {
			if !strings.EqualFold(f.Name, c.statusFieldName) {
				continue
			}
			out := make([]core.StatusOption, 0, len(f.Options.Choices))
			for _, choice := range f.Options.Choices {
				out = append(out, core.StatusOption{ID: choice.Name, Name: choice.Name})
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("airtable: status field %q not found on table %q", c.statusFieldName, c.tableName)
}

func (c *Client) updateRecordStatus(ctx context.Context, id, statusValue string) error {
	u := fmt.Sprintf("%s/%s/%s/%s", baseURL, c.baseID, c.tableName, id)
	body := map[string]any{"fields": map[string]any{c.statusFieldName: statusValue}}
	return pm.Patch(ctx, c.http, "airtable", u, body, c.auth, nil)
}

// UpdateStatus sets record id's status field to statusValue verbatim.
func (c *Client) UpdateStatus(ctx context.Context, id, statusValue string) error {
	return c.updateRecordStatus(ctx, id, statusValue)
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

// MoveToInProgress sets the record's status to whichever option matches
// "in progress" vocabulary.
func (c *Client) MoveToInProgress(ctx context.Context, id string, override *string) error {
	status, err := c.findStatus(ctx, override, "in progress", "doing", "active")
	if err != nil || status == "" {
		return err
	}
	return c.updateRecordStatus(ctx, id, status)
}

// MoveToDone sets the record's status to whichever option matches "done"
// vocabulary.
func (c *Client) MoveToDone(ctx context.Context, id string, override *string) error {
	status, err := c.findStatus(ctx, override, "done", "complete", "closed", "resolved")
	if err != nil || status == "" {
		return err
	}
	return c.updateRecordStatus(ctx, id, status)
}

// MoveToNotStarted sets the record's status to whichever option matches
// "not started" vocabulary.
func (c *Client) MoveToNotStarted(ctx context.Context, id string, override *string) error {
	status, err := c.findStatus(ctx, override, "not started", "todo", "to do", "backlog", "new", "open")
	if err != nil || status == "" {
		return err
	}
	return c.updateRecordStatus(ctx, id, status)
}

// TestConnection verifies the token by fetching the base's schema.
func (c *Client) TestConnection(ctx context.Context) error {
	u := fmt.Sprintf("https://api.airtable.com/v0/meta/bases/%s/tables", c.baseID)
	return pm.TestConnection(ctx, c.http, "airtable", u, c.auth)
}
