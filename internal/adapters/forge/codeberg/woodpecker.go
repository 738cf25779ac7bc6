package codeberg

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/flock-cli/flock/internal/adapters/forge"
)

const defaultWoodpeckerURL = "https://ci.codeberg.org/api"

// woodpeckerClient fetches Woodpecker CI pipeline status, used when a
// Codeberg repo's CI provider is configured as woodpecker.
type woodpeckerClient struct {
	http    *http.Client
	token   string
	baseURL string
}

func newWoodpeckerClient(token string) *woodpeckerClient {
	return &woodpeckerClient{http: forge.NewHTTPClient(), token: token, baseURL: defaultWoodpeckerURL}
}

func (w *woodpeckerClient) auth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+w.token)
}

type woodpeckerRepo struct {
	ID int64 `json:"id"`
}

type woodpeckerPipeline struct {
	Number int64   `json:"number"`
	Branch string  `json:"branch"`
	Status string  `json:"status"`
	Event  *string `json:"event"`
}

// lookupRepoID resolves owner/repo to Woodpecker's internal numeric id,
// returning (0, false) rather than an error when the repo is simply not
// registered with Woodpecker (404).
func (w *woodpeckerClient) lookupRepoID(ctx context.Context, owner, repo string) (int64, bool) {
	lookupURL := fmt.Sprintf("%s/repos/lookup/%s/%s", w.baseURL, owner, repo)
	var resp woodpeckerRepo
	if err := forge.Get(ctx, w.http, "codeberg", lookupURL, nil, w.auth, &resp); err != nil {
		return 0, false
	}
	return resp.ID, true
}

func woodpeckerPipelineState(status string) string {
	switch status {
	case "running":
		return "running"
	case "pending", "created", "blocked":
		return "pending"
	case "success":
		return "success"
	case "failure", "error":
		return "failed"
	case "killed", "declined":
		return "canceled"
	default:
		return ""
	}
}

func (w *woodpeckerClient) pipelineForBranch(ctx context.Context, repoID int64, branch string) string {
	pipelinesURL := fmt.Sprintf("%s/repos/%d/pipelines", w.baseURL, repoID)
	query := url.Values{"perPage": {"50"}}

	var pipelines []woodpeckerPipeline
	if err := forge.Get(ctx, w.http, "codeberg", pipelinesURL, query, w.auth, &pipelines); err != nil {
		return ""
	}

	for _, p := range pipelines {
		if p.Branch == branch && (p.Event == nil || *p.Event != "cron") {
			return woodpeckerPipelineState(p.Status)
		}
	}
	return ""
}

// repoIDCache memoizes a single owner/repo's Woodpecker repo id, since the
// lookup endpoint is comparatively expensive and the id never changes.
type repoIDCache struct {
	mu    sync.RWMutex
	id    int64
	known bool
}

func (c *repoIDCache) get() (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id, c.known
}

func (c *repoIDCache) set(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id, c.known = id, true
}
