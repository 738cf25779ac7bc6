// Package codeberg implements the forge.Client-shaped pull-request status
// lookup for Codeberg/Forgejo, with pipeline status folded in from either
// Forgejo Actions or a self-hosted Woodpecker instance depending on
// project.toml's configured CI provider.
package codeberg

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/flock-cli/flock/internal/adapters/forge"
	"github.com/flock-cli/flock/internal/core"
)

const defaultBaseURL = "https://codeberg.org"

// CIProvider selects which CI system backs pipeline status for a Codeberg
// repository.
type CIProvider string

const (
	CIForgejoActions CIProvider = "forgejo_actions"
	CIWoodpecker     CIProvider = "woodpecker"
)

// Client talks to the Codeberg (Forgejo) REST API for one owner/repo pair,
// optionally folding in CI status from the configured provider.
type Client struct {
	http       *http.Client
	token      string
	baseURL    string
	owner      string
	repo       string
	ci         CIProvider
	forgejo    *forgejoActionsClient
	woodpecker *woodpeckerClient
	repoID     repoIDCache
}

// Config carries everything needed to construct a Client.
type Config struct {
	Token             string
	Owner             string
	Repo              string
	BaseURL           string
	CIProvider        CIProvider
	WoodpeckerToken   string
	WoodpeckerRepoID  int64
	HasWoodpeckerRepo bool
}

// New builds a Codeberg client per cfg.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	c := &Client{
		http:    forge.NewHTTPClient(),
		token:   cfg.Token,
		baseURL: baseURL,
		owner:   cfg.Owner,
		repo:    cfg.Repo,
		ci:      cfg.CIProvider,
	}

	switch cfg.CIProvider {
	case CIForgejoActions:
		c.forgejo = newForgejoActionsClient(cfg.Token, cfg.Owner, cfg.Repo, baseURL)
	case CIWoodpecker:
		if cfg.WoodpeckerToken != "" {
			c.woodpecker = newWoodpeckerClient(cfg.WoodpeckerToken)
		}
		if cfg.HasWoodpeckerRepo {
			c.repoID.set(cfg.WoodpeckerRepoID)
		}
	}

	return c
}

func (c *Client) auth(req *http.Request) {
	req.Header.Set("Authorization", "token "+c.token)
}

type pullRequestHead struct {
	Ref string `json:"ref"`
}

type pullRequestResponse struct {
	Number   int             `json:"number"`
	State    string          `json:"state"`
	HTMLURL  string          `json:"html_url"`
	Draft    bool            `json:"draft"`
	Head     pullRequestHead `json:"head"`
	Merged   bool            `json:"merged"`
	MergedAt *string         `json:"merged_at"`
}

// GetPRForBranch returns the open/merged/closed PR status for branch,
// folding in pipeline status from whichever CI provider is configured.
func (c *Client) GetPRForBranch(ctx context.Context, branch string) (*core.ForgeStatus, error) {
	prsURL := fmt.Sprintf("%s/api/v1/repos/%s/%s/pulls", c.baseURL, c.owner, c.repo)
	query := url.Values{"state": {"open"}}

	var prs []pullRequestResponse
	if err := forge.Get(ctx, c.http, "codeberg", prsURL, query, c.auth, &prs); err != nil {
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
		return &core.ForgeStatus{Provider: "codeberg", Number: match.Number, State: "merged", URL: match.HTMLURL}, nil
	}
	if match.State == "closed" {
		return &core.ForgeStatus{Provider: "codeberg", Number: match.Number, State: "closed", URL: match.HTMLURL}, nil
	}

	state := "open"
	if match.Draft {
		state = "draft"
	}
	return &core.ForgeStatus{
		Provider:      "codeberg",
		Number:        match.Number,
		State:         state,
		URL:           match.HTMLURL,
		PipelineState: c.pipelineForBranch(ctx, branch),
	}, nil
}

func (c *Client) pipelineForBranch(ctx context.Context, branch string) string {
	switch c.ci {
	case CIForgejoActions:
		if c.forgejo == nil {
			return ""
		}
		return c.forgejo.pipelineForBranch(ctx, branch)
	case CIWoodpecker:
		if c.woodpecker == nil {
			return ""
		}
		repoID, ok := c.repoID.get()
		if !ok {
			repoID, ok = c.woodpecker.lookupRepoID(ctx, c.owner, c.repo)
			if !ok {
				return ""
			}
			c.repoID.set(repoID)
		}
		return c.woodpecker.pipelineForBranch(ctx, repoID, branch)
	default:
		return ""
	}
}

// TestConnection verifies the token and owner/repo resolve.
func (c *Client) TestConnection(ctx context.Context) error {
	repoURL := fmt.Sprintf("%s/api/v1/repos/%s/%s", c.baseURL, c.owner, c.repo)
	return forge.TestConnection(ctx, c.http, "codeberg", repoURL, c.auth)
}
