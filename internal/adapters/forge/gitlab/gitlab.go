// Package gitlab implements the forge.Client-shaped merge-request and
// pipeline status lookup, grounded on the upstream GitLabClient/
// OptionalGitLabClient pair.
package gitlab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/flock-cli/flock/internal/adapters/forge"
	"github.com/flock-cli/flock/internal/core"
)

const defaultBaseURL = "https://gitlab.com"

// Client talks to the GitLab REST API for one numeric project id.
type Client struct {
	http      *http.Client
	token     string
	baseURL   string
	projectID int64
}

// New builds a GitLab client against baseURL (empty defaults to gitlab.com)
// for the given numeric project id.
func New(baseURL, token string, projectID int64) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:      forge.NewHTTPClient(),
		token:     token,
		baseURL:   stripPathFromURL(baseURL),
		projectID: projectID,
	}
}

// stripPathFromURL discards any path segment so a pasted project URL can be
// used as a base URL.
func stripPathFromURL(raw string) string {
	trimmed := strings.TrimRight(raw, "/")
	schemeEnd := strings.Index(trimmed, "://")
	if schemeEnd < 0 {
		return trimmed
	}
	rest := trimmed[schemeEnd+3:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		return trimmed[:schemeEnd+3] + rest[:slash]
	}
	return trimmed
}

func (c *Client) auth(req *http.Request) {
	req.Header.Set("PRIVATE-TOKEN", c.token)
}

type mergeRequestListItem struct {
	IID    int64  `json:"iid"`
	WebURL string `json:"web_url"`
}

type pipelineResponse struct {
	Status string `json:"status"`
}

type mergeRequestResponse struct {
	IID                 int64             `json:"iid"`
	State               string            `json:"state"`
	WebURL              string            `json:"web_url"`
	HasConflicts        bool              `json:"has_conflicts"`
	Approved            *bool             `json:"approved"`
	HeadPipeline        *pipelineResponse `json:"head_pipeline"`
	DetailedMergeStatus *string           `json:"detailed_merge_status"`
}

func pipelineState(status string) string {
	switch status {
	case "running":
		return "running"
	case "pending", "waiting_for_resource", "preparing", "created":
		return "pending"
	case "success":
		return "success"
	case "failed":
		return "failed"
	case "canceled":
		return "canceled"
	case "skipped":
		return ""
	case "manual", "scheduled":
		return "pending"
	default:
		return ""
	}
}

// GetMRForBranch returns the open/merged/conflicted status of the merge
// request sourced from branch, two-step: list to find the iid, then fetch
// the individual MR for pipeline and approval data.
func (c *Client) GetMRForBranch(ctx context.Context, branch string) (*core.ForgeStatus, error) {
	listURL := fmt.Sprintf("%s/api/v4/projects/%d/merge_requests", c.baseURL, c.projectID)
	query := url.Values{"source_branch": {branch}, "state": {"opened"}, "per_page": {"1"}}

	var items []mergeRequestListItem
	if err := forge.Get(ctx, c.http, "gitlab", listURL, query, c.auth, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	item := items[0]

	detailURL := fmt.Sprintf("%s/api/v4/projects/%d/merge_requests/%d", c.baseURL, c.projectID, item.IID)
	var mr mergeRequestResponse
	if err := forge.Get(ctx, c.http, "gitlab", detailURL, nil, c.auth, &mr); err != nil {
		return &core.ForgeStatus{Provider: "gitlab", Number: int(item.IID), State: "open", URL: item.WebURL}, nil
	}

	pipeline := ""
	if mr.HeadPipeline != nil {
		pipeline = pipelineState(mr.HeadPipeline.Status)
	}

	switch mr.State {
	case "merged":
		return &core.ForgeStatus{Provider: "gitlab", Number: int(mr.IID), State: "merged"}, nil
	case "opened":
		state := "open"
		if mr.HasConflicts {
			state = "conflicts"
		} else if mr.DetailedMergeStatus != nil && *mr.DetailedMergeStatus == "need_rebase" {
			state = "needs_rebase"
		} else if mr.Approved != nil && *mr.Approved {
			state = "approved"
		}
		return &core.ForgeStatus{
			Provider:      "gitlab",
			Number:        int(mr.IID),
			State:         state,
			URL:           mr.WebURL,
			PipelineState: pipeline,
		}, nil
	default:
		return nil, nil
	}
}

// TestConnection verifies the token and project id resolve.
func (c *Client) TestConnection(ctx context.Context) error {
	projectURL := fmt.Sprintf("%s/api/v4/projects/%d", c.baseURL, c.projectID)
	return forge.TestConnection(ctx, c.http, "gitlab", projectURL, c.auth)
}

// FetchProjectByPath resolves a GitLab "owner/repo" path to its numeric
// project id and display name, for project.toml setup.
func FetchProjectByPath(ctx context.Context, baseURL, path, token string) (int64, string, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	projectURL := fmt.Sprintf("%s/api/v4/projects/%s", stripPathFromURL(baseURL), url.PathEscape(path))

	var resp struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	client := forge.NewHTTPClient()
	auth := func(req *http.Request) { req.Header.Set("PRIVATE-TOKEN", token) }
	if err := forge.Get(ctx, client, "gitlab", projectURL, nil, auth, &resp); err != nil {
		return 0, "", err
	}
	return resp.ID, resp.Name, nil
}
