// Package linear implements the pm.Client-shaped project-management
// integration for Linear. Linear is GraphQL-only: every operation POSTs a
// query or mutation document to a single endpoint rather than hitting
// per-resource REST routes.
//
// Linear is also the one provider with subtask state inheritance: a
// subtask's displayed status is replaced by its parent's status whenever
// the parent is present in the same result set, since Linear's UI treats a
// subtask as complete only once its parent's workflow state says so.
package linear

import (
	"context"
	"fmt"
	"net/http"

	"github.com/flock-cli/flock/internal/adapters/pm"
	"github.com/flock-cli/flock/internal/core"
)

const apiURL = "https://api.linear.app/graphql"

// Client talks to the Linear GraphQL API for one team.
type Client struct {
	http   *http.Client
	token  string
	teamID string
}

// New builds a Linear client for the given API key and team id.
func New(token, teamID string) *Client {
	return &Client{http: pm.NewHTTPClient(), token: token, teamID: teamID}
}

func (c *Client) auth(req *http.Request) {
	req.Header.Set("Authorization", c.token)
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLErr struct {
	Message string `json:"message"`
}

type graphQLEnvelope[T any] struct {
	Data   T            `json:"data"`
	Errors []graphQLErr `json:"errors,omitempty"`
}

func (c *Client) query(ctx context.Context, query string, variables map[string]any, out any) error {
	body := graphQLRequest{Query: query, Variables: variables}
	return pm.Post(ctx, c.http, "linear", apiURL, body, c.auth, out)
}

type linearState struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StateType string `json:"type"`
}

type linearParent struct {
	ID string `json:"id"`
}

type linearChildren struct {
	Nodes []struct {
		ID string `json:"id"`
	} `json:"nodes"`
}

type linearIssue struct {
	ID         string          `json:"id"`
	Identifier string          `json:"identifier"`
	Title      string          `json:"title"`
	URL        string          `json:"url"`
	State      linearState     `json:"state"`
	Parent     *linearParent   `json:"parent"`
	Children   *linearChildren `json:"children"`
}

func (i linearIssue) summary() core.PmTaskSummary {
	s := core.PmTaskSummary{
		ID:         i.ID,
		Name:       fmt.Sprintf("%s %s", i.Identifier, i.Title),
		URL:        i.URL,
		StatusName: i.State.Name,
		Completed:  i.State.StateType == "completed" || i.State.StateType == "canceled",
	}
	if i.Parent != nil {
		s.ParentID = i.Parent.ID
		s.IsSubtask = true
	}
	if i.Children != nil {
		s.NumChildren = len(i.Children.Nodes)
	}
	return s
}

const issueQuery = `
	query Issue($id: String!) {
		issue(id: $id) {
			id identifier title url
			state { id name type }
			parent { id }
			children(first: 50) { nodes { id } }
		}
	}
`

// GetTask fetches a single issue by id.
func (c *Client) GetTask(ctx context.Context, id string) (core.PmTaskSummary, error) {
	var resp graphQLEnvelope[struct {
		Issue *linearIssue `json:"issue"`
	}]
	if err := c.query(ctx, issueQuery, map[string]any{"id": id}, &resp); err != nil {
		return core.PmTaskSummary{}, err
	}
	if resp.Data.Issue == nil {
		return core.PmTaskSummary{}, fmt.Errorf("linear: issue %s not found", id)
	}
	return resp.Data.Issue.summary(), nil
}

const teamIssuesQuery = `
	query TeamIssues($teamId: String!) {
		team(id: $teamId) {
			issues(first: 250) {
				nodes {
					id identifier title url
					state { id name type }
					parent { id }
					children(first: 50) { nodes { id } }
				}
			}
		}
	}
`

// ListTasks fetches every issue on the configured team, then applies
// Linear's subtask inheritance: any issue whose parent is present in this
// same result set adopts the parent's status and completion flag.
func (c *Client) ListTasks(ctx context.Context) ([]core.PmTaskSummary, error) {
	if c.teamID == "" {
		return nil, fmt.Errorf("linear: no team configured")
	}

	var resp graphQLEnvelope[struct {
		Team *struct {
			Issues struct {
				Nodes []linearIssue `json:"nodes"`
			} `json:"issues"`
		} `json:"team"`
	}]
	if err := c.query(ctx, teamIssuesQuery, map[string]any{"teamId": c.teamID}, &resp); err != nil {
		return nil, err
	}
	if resp.Data.Team == nil {
		return nil, fmt.Errorf("linear: team %s not found", c.teamID)
	}

	issues := resp.Data.Team.Issues.Nodes
	byID := make(map[string]linearIssue, len(issues))
	for _, i := range issues {
		byID[i.ID] = i
	}

	out := make([]core.PmTaskSummary, 0, len(issues))
	for _, i := range issues {
		s := i.summary()
		if parent, ok := byID[s.ParentID]; ok {
			s.StatusName = parent.State.Name
			s.Completed = parent.State.StateType == "completed" || parent.State.StateType == "canceled"
		}
		out = append(out, s)
	}
	return out, nil
}

const workflowStatesQuery = `
	query WorkflowStates($teamId: String!) {
		team(id: $teamId) {
			states { nodes { id name type color } }
		}
	}
`

// GetStatuses returns the team's configured workflow states.
func (c *Client) GetStatuses(ctx context.Context) ([]core.StatusOption, error) {
	if c.teamID == "" {
		return nil, fmt.Errorf("linear: no team configured")
	}
	var resp graphQLEnvelope[struct {
		Team *struct {
			States struct {
				Nodes []linearState `json:"nodes"`
			} `json:"states"`
		} `json:"team"`
	}]
	if err := c.query(ctx, workflowStatesQuery, map[string]any{"teamId": c.teamID}, &resp); err != nil {
		return nil, err
	}
	if resp.Data.Team == nil {
		return nil, fmt.Errorf("linear: team %s not found", c.teamID)
	}
	out := make([]core.StatusOption, 0, len(resp.Data.Team.States.Nodes))
	for _, s := range resp.Data.Team.States.Nodes {
		out = append(out, core.StatusOption{ID: s.ID, Name: s.Name})
	}
	return out, nil
}

const issueUpdateMutation = `
	mutation IssueUpdate($id: String!, $stateId: String!) {
		issueUpdate(id: $id, input: { stateId: $stateId }) {
			success
		}
	}
`

// UpdateStatus moves issue id to the workflow state identified by
// stateID.
func (c *Client) UpdateStatus(ctx context.Context, id, stateID string) error {
	var resp graphQLEnvelope[struct {
		IssueUpdate struct {
			Success bool `json:"success"`
		} `json:"issueUpdate"`
	}]
	if err := c.query(ctx, issueUpdateMutation, map[string]any{"id": id, "stateId": stateID}, &resp); err != nil {
		return err
	}
	if !resp.Data.IssueUpdate.Success {
		return fmt.Errorf("linear: issue update failed")
	}
	return nil
}

func (c *Client) findStateID(ctx context.Context, override *string, stateTypes ...string) (string, error) {
	if override != nil {
		return *override, nil
	}
	states, err := c.fullStates(ctx)
	if err != nil {
		return "", err
	}
	for _, wantType := range stateTypes {
		for _, s := range states {
			if s.StateType == wantType {
				return s.ID, nil
			}
		}
	}
	return "", nil
}

func (c *Client) fullStates(ctx context.Context) ([]linearState, error) {
	var resp graphQLEnvelope[struct {
		Team *struct {
			States struct {
				Nodes []linearState `json:"nodes"`
			} `json:"states"`
		} `json:"team"`
	}]
	if err := c.query(ctx, workflowStatesQuery, map[string]any{"teamId": c.teamID}, &resp); err != nil {
		return nil, err
	}
	if resp.Data.Team == nil {
		return nil, fmt.Errorf("linear: team %s not found", c.teamID)
	}
	return resp.Data.Team.States.Nodes, nil
}

// MoveToInProgress moves issue id to whichever state has type "started".
func (c *Client) MoveToInProgress(ctx context.Context, id string, override *string) error {
	stateID, err := c.findStateID(ctx, override, "started")
	if err != nil || stateID == "" {
		return err
	}
	return c.UpdateStatus(ctx, id, stateID)
}

// MoveToDone moves issue id to whichever state has type "completed" (or
// "canceled" if no completed state exists).
func (c *Client) MoveToDone(ctx context.Context, id string, override *string) error {
	stateID, err := c.findStateID(ctx, override, "completed", "canceled")
	if err != nil || stateID == "" {
		return err
	}
	return c.UpdateStatus(ctx, id, stateID)
}

// MoveToNotStarted moves issue id to whichever state has type
// "unstarted" (or "backlog" if no unstarted state exists).
func (c *Client) MoveToNotStarted(ctx context.Context, id string, override *string) error {
	stateID, err := c.findStateID(ctx, override, "unstarted", "backlog")
	if err != nil || stateID == "" {
		return err
	}
	return c.UpdateStatus(ctx, id, stateID)
}

// TestConnection verifies the token and team resolve by fetching the
// team's workflow states.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.GetStatuses(ctx)
	return err
}
