package codeberg

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/flock-cli/flock/internal/adapters/forge"
)

// forgejoActionsClient fetches Forgejo Actions workflow-run status, used
// when a Codeberg repo's CI provider is configured as forgejo_actions.
type forgejoActionsClient struct {
	http    *http.Client
	token   string
	baseURL string
	owner   string
	repo    string
}

func newForgejoActionsClient(token, owner, repo, baseURL string) *forgejoActionsClient {
	return &forgejoActionsClient{http: forge.NewHTTPClient(), token: token, baseURL: baseURL, owner: owner, repo: repo}
}

func (f *forgejoActionsClient) auth(req *http.Request) {
	req.Header.Set("Authorization", "token "+f.token)
}

type forgejoActionRun struct {
	HeadBranch string  `json:"head_branch"`
	Status     string  `json:"status"`
	Conclusion *string `json:"conclusion"`
	Event      *string `json:"event"`
}

type forgejoActionRunsResponse struct {
	WorkflowRuns []forgejoActionRun `json:"workflow_runs"`
}

func forgejoPipelineState(status string, conclusion *string) string {
	switch status {
	case "running", "in_progress", "waiting":
		return "running"
	case "pending", "queued", "blocked":
		return "pending"
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
		case "cancelled", "canceled":
			return "canceled"
		}
	}
	return ""
}

func (f *forgejoActionsClient) pipelineForBranch(ctx context.Context, branch string) string {
	runsURL := fmt.Sprintf("%s/api/v1/repos/%s/%s/actions/runs", f.baseURL, f.owner, f.repo)
	query := url.Values{"limit": {"50"}}

	var resp forgejoActionRunsResponse
	if err := forge.Get(ctx, f.http, "codeberg", runsURL, query, f.auth, &resp); err != nil {
		return ""
	}

	for _, run := range resp.WorkflowRuns {
		if run.HeadBranch == branch && (run.Event == nil || *run.Event != "schedule") {
			return forgejoPipelineState(run.Status, run.Conclusion)
		}
	}
	return ""
}
