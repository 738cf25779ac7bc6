// Package github implements the forge.Client-shaped GitHub pull-request and
// check-run status lookup, grounded on the upstream GitHubClient/
// OptionalGitHubClient pair.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/flock-cli/flock/internal/adapters/forge"
	"github.com/flock-cli/flock/internal/core"
)

const apiBaseURL = "https://api.github.com"

// Client talks to the GitHub REST API for one owner/repo pair.
type Client struct {
	http  *http.Client
	token string
	owner string
	repo  string
}

// New builds a GitHub client authenticated with a personal access token.
func New(token, owner, repo string) *Client {
	return &Client{http: forge.NewHTTPClient(), token: token, owner: owner, repo: repo}
}

func (c *Client) auth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
}

type pullRequestHead struct {
	SHA string `json:"sha"`
	Ref string `json:"ref"`
}

type pullRequestResponse struct {
	Number   int              `json:"number"`
	State    string           `json:"state"`
	HTMLURL  string           `json:"html_url"`
	Draft    bool             `json:"draft"`
	Head     pullRequestHead  `json:"head"`
	Merged   bool             `json:"merged"`
	MergedAt *string          `json:"merged_at"`
}

type checkRunResponse struct {
	Status     string  `json:"status"`
	Conclusion *string `json:"conclusion"`
}

type checkRunsResponse struct {
	CheckRuns []checkRunResponse `json:"check_runs"`
}

// checkStatus maps a GitHub check-run status/conclusion pair to a
// spec-level pipeline state string.
func checkStatus(status string, conclusion *string) string {
	switch status {
	case "queued":
		return "pending"
	case "in_progress", "waiting":
		return "running"
	case "completed":
		c := ""
		if conclusion != nil {
			c = *conclusion
		}
		switch c {
		case "success":
			return "success"
		case "failure", "timed_out":
			return "failed"
		case "cancelled":
			return "canceled"
		case "skipped":
			return ""
		}
	}
	return ""
}

func (c *Client) checksForSHA(ctx context.Context, sha string) string {
	var resp checkRunsResponse
	checksURL := fmt.Sprintf("%s/repos/%s/%s/commits/%s/check-runs", apiBaseURL, c.owner, c.repo, sha)
	if err := forge.Get(ctx, c.http, "github", checksURL, nil, c.auth, &resp); err != nil {
		return ""
	}
	if len(resp.CheckRuns) == 0 {
		return ""
	}

	var hasRunning, hasPending, hasFailure bool
	for _, run := range resp.CheckRuns {
		switch checkStatus(run.Status, run.Conclusion) {
		case "failed":
			hasFailure = true
		case "running":
			hasRunning = true
		case "pending":
			hasPending = true
		}
	}
	switch {
	case hasFailure:
		return "failed"
	case hasRunning:
		return "running"
	case hasPending:
		return "pending"
	default:
		return "success"
	}
}

// GetPRForBranch returns the open, merged, or closed PR status for branch,
// including the combined check-run state for an open PR's head SHA.
func (c *Client) GetPRForBranch(ctx context.Context, branch string) (*core.ForgeStatus, error) {
	prsURL := fmt.Sprintf("%s/repos/%s/%s/pulls", apiBaseURL, c.owner, c.repo)
	query := url.Values{"state": {"open"}}

	var prs []pullRequestResponse
	if err := forge.Get(ctx, c.http, "github", prsURL, query, c.auth, &prs); err != nil {
		return nil, err
	}

	var match *pullRequestResponse
	for i := range prs {
		if prs[i].Head.Ref == branch {
			match = &prs[i]
			break
		}
	}
	if match == nil {
		return nil, nil
	}

	if match.Merged || match.MergedAt != nil {
		return &core.ForgeStatus{Provider: "github", Number: match.Number, State: "merged", URL: match.HTMLURL}, nil
	}
	if match.State == "closed" {
		return &core.ForgeStatus{Provider: "github", Number: match.Number, State: "closed", URL: match.HTMLURL}, nil
	}

	pipeline := c.checksForSHA(ctx, match.Head.SHA)
	return &core.ForgeStatus{
		Provider:      "github",
		Number:        match.Number,
		State:         "open",
		URL:           match.HTMLURL,
		PipelineState: pipeline,
	}, nil
}

// TestConnection verifies the token and owner/repo resolve.
func (c *Client) TestConnection(ctx context.Context) error {
	repoURL := fmt.Sprintf("%s/repos/%s/%s", apiBaseURL, c.owner, c.repo)
	return forge.TestConnection(ctx, c.http, "github", repoURL, c.auth)
}
