package forge

import (
	"context"

	"github.com/flock-cli/flock/internal/core"
)

// Client is the uniform shape every per-forge client exposes (spec §4.7).
type Client interface {
	GetPRForBranch(ctx context.Context, branch string) (*core.ForgeStatus, error)
	TestConnection(ctx context.Context) error
}

// gitlabAdapter renames GitLab's GetMRForBranch to the uniform
// GetPRForBranch so gitlab.Client satisfies Client without gitlab itself
// needing forge-vocabulary naming.
type gitlabAdapter struct {
	mr interface {
		GetMRForBranch(ctx context.Context, branch string) (*core.ForgeStatus, error)
		TestConnection(ctx context.Context) error
	}
}

func (g gitlabAdapter) GetPRForBranch(ctx context.Context, branch string) (*core.ForgeStatus, error) {
	return g.mr.GetMRForBranch(ctx, branch)
}

func (g gitlabAdapter) TestConnection(ctx context.Context) error {
	return g.mr.TestConnection(ctx)
}

// AdaptGitLab wraps a gitlab.Client-shaped value as a Client.
func AdaptGitLab(mr interface {
	GetMRForBranch(ctx context.Context, branch string) (*core.ForgeStatus, error)
	TestConnection(ctx context.Context) error
}) Client {
	return gitlabAdapter{mr: mr}
}

// Set holds the single forge a repository is linked to, selected by
// project.toml's git_provider field (core.ForgeGitHub/GitLab/Codeberg).
// At most one is ever configured at a time; reconfiguration replaces it.
type Set struct {
	active *OptionalClient[Client]
}

// NewSet returns a Set with no forge configured.
func NewSet() *Set {
	return &Set{active: NewOptionalClient[Client](nil)}
}

// Configure sets the active forge client, or clears it when client is nil.
func (s *Set) Configure(client Client) {
	if client == nil {
		s.active.Reconfigure(nil)
		return
	}
	s.active.Reconfigure(&client)
}

// IsConfigured reports whether a forge is currently linked.
func (s *Set) IsConfigured() bool {
	return s.active.IsConfigured()
}

// GetPRForBranch delegates to the active forge, returning
// core.ErrNotConfigured("forge") when none is linked.
func (s *Set) GetPRForBranch(ctx context.Context, branch string) (*core.ForgeStatus, error) {
	return With(s.active, notConfiguredResult, func(c *Client) forgeResult {
		st, err := (*c).GetPRForBranch(ctx, branch)
		return forgeResult{status: st, err: err}
	}).unwrap()
}

var notConfiguredResult = forgeResult{err: core.ErrNotConfigured("forge")}

type forgeResult struct {
	status *core.ForgeStatus
	err    error
}

func (r forgeResult) unwrap() (*core.ForgeStatus, error) {
	return r.status, r.err
}
