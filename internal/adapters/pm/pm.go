package pm

import (
	"context"
	"time"

	"github.com/flock-cli/flock/internal/cache"
	"github.com/flock-cli/flock/internal/core"
)

// listCacheTTL bounds how stale the task list may get; ListTasks is the
// expensive call (full-project fetch, paginated for Airtable) and is hit by
// both the picker and the PM refresh cadence.
const listCacheTTL = 60 * time.Second

// Client is the uniform shape every per-provider PM client exposes (spec
// §4.7). A nil override means "auto-detect the target status by substring
// match against the provider's status vocabulary"; a non-nil override is
// used verbatim and always wins.
type Client interface {
	ListTasks(ctx context.Context) ([]core.PmTaskSummary, error)
	GetTask(ctx context.Context, id string) (core.PmTaskSummary, error)
	GetStatuses(ctx context.Context) ([]core.StatusOption, error)
	MoveToInProgress(ctx context.Context, id string, override *string) error
	MoveToDone(ctx context.Context, id string, override *string) error
	MoveToNotStarted(ctx context.Context, id string, override *string) error
	UpdateStatus(ctx context.Context, id, statusValue string) error
}

// Set holds the single project-management tool a repository is linked to,
// selected by project.toml's pm_provider field. At most one is ever
// configured at a time; reconfiguration replaces it outright.
type Set struct {
	active    *OptionalClient[Client]
	listCache *cache.Cache[[]core.PmTaskSummary]
}

// NewSet returns a Set with no PM tool configured.
func NewSet() *Set {
	return &Set{
		active:    NewOptionalClient[Client](nil),
		listCache: cache.New[[]core.PmTaskSummary](listCacheTTL),
	}
}

// Configure sets the active PM client, or clears it when client is nil.
// Swapping the client always drops the cache: the old client's task list
// means nothing under a new token or scope.
func (s *Set) Configure(client Client) {
	s.listCache.Invalidate()
	if client == nil {
		s.active.Reconfigure(nil)
		return
	}
	s.active.Reconfigure(&client)
}

// IsConfigured reports whether a PM tool is currently linked.
func (s *Set) IsConfigured() bool {
	return s.active.IsConfigured()
}

// ListTasks delegates to the active PM client, returning
// core.ErrNotConfigured("pm") when none is linked. Results are served from
// the TTL cache until it expires or a mutating call invalidates it.
func (s *Set) ListTasks(ctx context.Context) ([]core.PmTaskSummary, error) {
	if tasks, ok := s.listCache.Get(); ok {
		return tasks, nil
	}
	tasks, err := With(s.active, listResult{err: core.ErrNotConfigured("pm")}, func(c *Client) listResult {
		tasks, err := (*c).ListTasks(ctx)
		return listResult{tasks: tasks, err: err}
	}).unwrap()
	if err == nil {
		s.listCache.Set(tasks)
	}
	return tasks, err
}

// GetTask delegates to the active PM client.
func (s *Set) GetTask(ctx context.Context, id string) (core.PmTaskSummary, error) {
	return With(s.active, taskResult{err: core.ErrNotConfigured("pm")}, func(c *Client) taskResult {
		task, err := (*c).GetTask(ctx, id)
		return taskResult{task: task, err: err}
	}).unwrap()
}

// GetStatuses delegates to the active PM client.
func (s *Set) GetStatuses(ctx context.Context) ([]core.StatusOption, error) {
	return With(s.active, statusesResult{err: core.ErrNotConfigured("pm")}, func(c *Client) statusesResult {
		opts, err := (*c).GetStatuses(ctx)
		return statusesResult{opts: opts, err: err}
	}).unwrap()
}

// MoveToInProgress delegates to the active PM client.
func (s *Set) MoveToInProgress(ctx context.Context, id string, override *string) error {
	err := With(s.active, error(core.ErrNotConfigured("pm")), func(c *Client) error {
		return (*c).MoveToInProgress(ctx, id, override)
	})
	if err == nil {
		s.listCache.Invalidate()
	}
	return err
}

// MoveToDone delegates to the active PM client.
func (s *Set) MoveToDone(ctx context.Context, id string, override *string) error {
	err := With(s.active, error(core.ErrNotConfigured("pm")), func(c *Client) error {
		return (*c).MoveToDone(ctx, id, override)
	})
	if err == nil {
		s.listCache.Invalidate()
	}
	return err
}

// MoveToNotStarted delegates to the active PM client.
func (s *Set) MoveToNotStarted(ctx context.Context, id string, override *string) error {
	err := With(s.active, error(core.ErrNotConfigured("pm")), func(c *Client) error {
		return (*c).MoveToNotStarted(ctx, id, override)
	})
	if err == nil {
		s.listCache.Invalidate()
	}
	return err
}

// UpdateStatus delegates to the active PM client.
func (s *Set) UpdateStatus(ctx context.Context, id, statusValue string) error {
	err := With(s.active, error(core.ErrNotConfigured("pm")), func(c *Client) error {
		return (*c).UpdateStatus(ctx, id, statusValue)
	})
	if err == nil {
		s.listCache.Invalidate()
	}
	return err
}

type listResult struct {
	tasks []core.PmTaskSummary
	err   error
}

func (r listResult) unwrap() ([]core.PmTaskSummary, error) { return r.tasks, r.err }

type taskResult struct {
	task core.PmTaskSummary
	err  error
}

func (r taskResult) unwrap() (core.PmTaskSummary, error) { return r.task, r.err }

type statusesResult struct {
	opts []core.StatusOption
	err  error
}

func (r statusesResult) unwrap() ([]core.StatusOption, error) { return r.opts, r.err }
