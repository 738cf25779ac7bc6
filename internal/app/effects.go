package app

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/flock-cli/flock/internal/adapters/cli"
	"github.com/flock-cli/flock/internal/adapters/pm"
	"github.com/flock-cli/flock/internal/agent"
	"github.com/flock-cli/flock/internal/branchname"
	"github.com/flock-cli/flock/internal/core"
	"github.com/flock-cli/flock/internal/devserver"
	"github.com/flock-cli/flock/internal/events"
	"github.com/flock-cli/flock/internal/scheduler"
)

// effectTimeout bounds a single merge/fetch git invocation.
const effectTimeout = 2 * time.Minute

// WorktreeOps is the slice of the worktree manager the effects use for the
// per-agent git commands.
type WorktreeOps interface {
	Fetch(ctx context.Context, worktreePath string) error
	MergeMain(ctx context.Context, worktreePath, mainBranch string) error
}

// effects implements reducer.Effects by fanning work out to goroutines and
// posting completion actions back into the action stream.
type effects struct {
	ctx        context.Context
	manager    *agent.Manager
	worktrees  WorktreeOps
	pmSet      *pm.Set
	pmProvider string
	devServers *devserver.Manager
	sched      *scheduler.Scheduler
	bus        *events.Bus
	agentCLI     cli.AgentCLI
	extraArgs    []string
	symlinks     []string
	mainBranch   string
	branchPrefix string
	linearUser   string
	post         func(core.Action)

	// attach suspends the TUI, attaches, and restores; wired by Run once
	// the tea.Program exists.
	attach func(a *core.Agent)
}

func (e *effects) CreateAgent(name, branch, taskRef string) {
	branch = e.branchFor(name, branch, taskRef)
	go func() {
		a, err := e.manager.CreateAgent(e.ctx, name, branch, e.agentCLI, agent.CreateOptions{
			Symlinks:  e.symlinks,
			ExtraArgs: e.extraArgs,
		})
		if err != nil {
			e.post(core.Action{Kind: core.ActionToast, Level: core.LogLevelError,
				Message: "create failed: " + err.Error()})
			return
		}
		e.post(core.Action{Kind: core.ActionAgentCreated, Agent: a})
		e.bus.Publish(events.NewAgentCreated(a.ID, a.Name, a.Branch))
		if taskRef != "" {
			e.post(core.Action{Kind: core.ActionAssignProjectTask, AgentID: a.ID, TaskRefOrID: taskRef})
		}
	}()
}

func (e *effects) DeleteAgent(a *core.Agent) {
	go func() {
		_ = e.devServers.Remove(e.ctx, a.ID)
		if err := e.manager.DeleteAgent(e.ctx, a); err != nil {
			e.post(core.Action{Kind: core.ActionToast, Level: core.LogLevelWarn,
				Message: "cleanup incomplete for " + a.Name + ": " + err.Error()})
			return
		}
		e.bus.Publish(events.NewAgentDeleted(a.ID, a.Name))
	}()
}

func (e *effects) AttachAgent(a *core.Agent) {
	if e.attach == nil {
		return
	}
	go e.attach(a)
}

func (e *effects) RestartAgent(a *core.Agent) {
	go func() {
		if err := e.manager.RestartAgent(e.ctx, a, e.agentCLI, e.extraArgs); err != nil {
			e.post(core.Action{Kind: core.ActionToast, Level: core.LogLevelWarn,
				Message: "restart failed: " + err.Error()})
		}
	}()
}

func (e *effects) SendInput(a *core.Agent, text string) {
	go func() {
		if err := e.manager.SendInput(e.ctx, a, text); err != nil {
			e.post(core.Action{Kind: core.ActionToast, Level: core.LogLevelWarn,
				Message: "send failed: " + err.Error()})
		}
	}()
}

func (e *effects) MergeMain(a *core.Agent) {
	go func() {
		ctx, cancel := context.WithTimeout(e.ctx, effectTimeout)
		defer cancel()
		err := e.worktrees.MergeMain(ctx, a.WorktreePath, e.mainBranch)
		if err == nil {
			e.post(core.Action{Kind: core.ActionToast, Level: core.LogLevelInfo,
				Message: "merged " + e.mainBranch + " into " + a.Branch})
			return
		}
		if core.IsCategory(err, core.ErrCatConflict) {
			// The worktree is left intact for manual resolution.
			e.post(core.Action{Kind: core.ActionUpdateAgentStatus, AgentID: a.ID,
				Status: core.NewError("merge conflict")})
			e.post(core.Action{Kind: core.ActionToast, Level: core.LogLevelWarn,
				Message: a.Name + ": merge conflict, resolve in worktree"})
			return
		}
		e.post(core.Action{Kind: core.ActionToast, Level: core.LogLevelError,
			Message: "merge failed: " + err.Error()})
	}()
}

func (e *effects) FetchRemote(a *core.Agent) {
	go func() {
		ctx, cancel := context.WithTimeout(e.ctx, effectTimeout)
		defer cancel()
		if err := e.worktrees.Fetch(ctx, a.WorktreePath); err != nil {
			e.post(core.Action{Kind: core.ActionToast, Level: core.LogLevelWarn,
				Message: "fetch failed: " + err.Error()})
		}
	}()
}

func (e *effects) AssignTask(a *core.Agent, ref string) {
	go func() {
		id := taskIDFromRef(ref)
		task, err := e.pmSet.GetTask(e.ctx, id)
		if err != nil {
			if core.IsCategory(err, core.ErrCatNotConfigured) {
				e.post(core.Action{Kind: core.ActionToast, Level: core.LogLevelWarn,
					Message: "no PM tool configured for this repository"})
			} else {
				e.post(core.Action{Kind: core.ActionToast, Level: core.LogLevelError,
					Message: "task lookup failed: " + err.Error()})
			}
			return
		}
		link := linkForProvider(e.pmProvider, task)
		e.post(core.Action{Kind: core.ActionTaskAssigned, AgentID: a.ID, Link: link})

		// Assigning a task moves it to in-progress; a miss on the status
		// vocabulary is a warning, never an error.
		if err := e.pmSet.MoveToInProgress(e.ctx, task.ID, nil); err != nil &&
			!core.IsCategory(err, core.ErrCatNotConfigured) {
			e.post(core.Action{Kind: core.ActionToast, Level: core.LogLevelWarn,
				Message: "could not move task to in progress"})
		}
	}()
}

func (e *effects) LoadStatusOptions(a *core.Agent) {
	go func() {
		opts, err := e.pmSet.GetStatuses(e.ctx)
		if err != nil {
			e.post(core.Action{Kind: core.ActionTaskStatusOptionsLoaded, AgentID: a.ID})
			return
		}
		e.post(core.Action{Kind: core.ActionTaskStatusOptionsLoaded, AgentID: a.ID, StatusOptions: opts})
	}()
}

func (e *effects) UpdateTaskStatus(a *core.Agent, statusValue string) {
	payload := a.PmTaskLink.Payload()
	if payload == nil {
		return
	}
	taskID := payload.ID
	go func() {
		if err := e.pmSet.UpdateStatus(e.ctx, taskID, statusValue); err != nil {
			e.post(core.Action{Kind: core.ActionToast, Level: core.LogLevelWarn,
				Message: "status update failed: " + err.Error()})
			return
		}
		e.post(core.Action{Kind: core.ActionUpdateProjectTaskStatus, AgentID: a.ID, NewStatusValue: statusValue})
	}()
}

func (e *effects) RequestSave() {
	e.sched.RequestSave()
}

func (e *effects) PublishViews(_ []core.AgentView) {
	e.bus.Publish(events.NewStateUpdated())
}

func (e *effects) Forget(id core.AgentID) {
	e.sched.Forget(id)
}

func (e *effects) ForceRefresh() {
	e.sched.ForceRefresh()
}

func (e *effects) Quit() {
	e.bus.Publish(events.NewQuit())
}

// branchFor normalizes a requested branch name. A raw name that is already
// a well-formed ref (lowercase, no spaces) passes through; anything else
// goes through the sanitizer. Creating from a Linear issue uses the
// "<user>/<identifier>-<slug>" convention instead.
func (e *effects) branchFor(name, branch, taskRef string) string {
	if e.pmProvider == core.PMLinear && e.linearUser != "" && issueKeyPattern.MatchString(taskRef) {
		return branchname.SanitizeLinear(e.linearUser, taskRef, name)
	}
	if strings.ContainsAny(branch, " \t") || branch != strings.ToLower(branch) {
		branch = branchname.Sanitize(branch)
	}
	if e.branchPrefix != "" && !strings.HasPrefix(branch, e.branchPrefix) {
		branch = e.branchPrefix + branch
	}
	return branch
}

// issueKeyPattern matches Linear-style identifiers like ENG-123.
var issueKeyPattern = regexp.MustCompile(`^[A-Za-z]+-\d+$`)

// taskIDFromRef accepts either a bare id or a provider URL and extracts the
// id segment: an issue key anywhere in the path (Linear), a trailing 32-hex
// suffix (Notion page slugs), or simply the last path segment.
func taskIDFromRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if !strings.Contains(ref, "/") {
		return ref
	}
	parts := strings.Split(strings.TrimRight(ref, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if issueKeyPattern.MatchString(parts[i]) {
			return parts[i]
		}
	}
	last := parts[len(parts)-1]
	if idx := strings.LastIndex(last, "-"); idx >= 0 && len(last)-idx-1 == 32 {
		if _, err := strconv.ParseUint(last[idx+1:idx+9], 16, 64); err == nil {
			return last[idx+1:]
		}
	}
	return last
}

// linkForProvider wraps a task summary in the provider-matching variant.
func linkForProvider(provider string, task core.PmTaskSummary) core.PmTaskLink {
	payload := &core.StatusPayload{
		ID:         task.ID,
		Name:       task.Name,
		URL:        task.URL,
		StatusName: task.StatusName,
		IsSubtask:  task.IsSubtask,
	}
	switch provider {
	case core.PMAsana:
		return core.PmTaskLink{Kind: core.PmAsana, Asana: payload}
	case core.PMNotion:
		return core.PmTaskLink{Kind: core.PmNotion, Notion: payload}
	case core.PMClickUp:
		return core.PmTaskLink{Kind: core.PmClickUp, ClickUp: payload}
	case core.PMAirtable:
		return core.PmTaskLink{Kind: core.PmAirtable, Airtable: payload}
	case core.PMLinear:
		return core.PmTaskLink{Kind: core.PmLinear, Linear: payload}
	default:
		return core.PmTaskLink{Kind: core.PmNone}
	}
}
