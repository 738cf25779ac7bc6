// Package app wires the whole orchestrator together: config, git client,
// worktree manager, multiplexer, provider clients, scheduler, reducer and
// the TUI shell. Everything is constructed here and passed down by
// reference; there are no package-level singletons.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/flock-cli/flock/internal/adapters/cli"
	"github.com/flock-cli/flock/internal/adapters/forge"
	"github.com/flock-cli/flock/internal/adapters/forge/codeberg"
	"github.com/flock-cli/flock/internal/adapters/forge/github"
	"github.com/flock-cli/flock/internal/adapters/forge/gitlab"
	"github.com/flock-cli/flock/internal/adapters/git"
	"github.com/flock-cli/flock/internal/adapters/pm"
	"github.com/flock-cli/flock/internal/adapters/pm/airtable"
	"github.com/flock-cli/flock/internal/adapters/pm/asana"
	"github.com/flock-cli/flock/internal/adapters/pm/clickup"
	"github.com/flock-cli/flock/internal/adapters/pm/linear"
	"github.com/flock-cli/flock/internal/adapters/pm/notion"
	"github.com/flock-cli/flock/internal/adapters/state"
	"github.com/flock-cli/flock/internal/agent"
	"github.com/flock-cli/flock/internal/config"
	"github.com/flock-cli/flock/internal/control"
	"github.com/flock-cli/flock/internal/core"
	"github.com/flock-cli/flock/internal/devserver"
	"github.com/flock-cli/flock/internal/diagnostics"
	"github.com/flock-cli/flock/internal/events"
	"github.com/flock-cli/flock/internal/multiplexer"
	"github.com/flock-cli/flock/internal/reducer"
	"github.com/flock-cli/flock/internal/scheduler"
	"github.com/flock-cli/flock/internal/tui"
)

// actionQueueSize buffers the action stream; the reducer drains it every
// loop iteration, so this only needs to absorb bursts within one tick.
const actionQueueSize = 1024

// App is the assembled program.
type App struct {
	Cfg      *config.Config
	RepoPath string

	Logger    *slog.Logger
	Mux       multiplexer.Multiplexer
	Git       *git.Client
	Worktrees *git.WorktreeManager
	Manager   *agent.Manager
	ForgeSet  *forge.Set
	PMSet     *pm.Set
	Store     state.SessionStore
	Bus       *events.Bus
	Plane     *control.Plane

	state   *core.AppState
	red     *reducer.Reducer
	sched   *scheduler.Scheduler
	eff     *effects
	actions chan core.Action
}

// New assembles the application for repoPath.
func New(ctx context.Context, repoPath string, cfg *config.Config, tokens config.Tokens, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	mux, err := multiplexer.New(cfg.Multiplexer.Kind)
	if err != nil {
		return nil, err
	}

	gitClient, err := git.NewClient(repoPath)
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", repoPath, err)
	}

	worktreeBase := cfg.Git.WorktreeDir
	if worktreeBase == "" {
		worktreeBase = repoPath + "-worktrees"
	}
	worktrees := git.NewWorktreeManager(gitClient, worktreeBase)
	manager := agent.NewManager(mux, worktrees, logger)

	configDir, err := config.GlobalDir()
	if err != nil {
		return nil, err
	}
	var store state.SessionStore
	if cfg.State.Backend == core.StateBackendSQLite {
		sqlStore, err := state.NewSQLiteSessionStore(configDir, repoPath)
		if err != nil {
			return nil, err
		}
		store = sqlStore
	} else {
		store = state.NewJSONSessionStore(configDir, repoPath)
	}

	app := &App{
		Cfg:       cfg,
		RepoPath:  repoPath,
		Logger:    logger,
		Mux:       mux,
		Git:       gitClient,
		Worktrees: worktrees,
		Manager:   manager,
		ForgeSet:  forge.NewSet(),
		PMSet:     pm.NewSet(),
		Store:     store,
		Bus:       events.New(64),
		Plane:     control.New(),
		state:     core.NewAppState(),
		actions:   make(chan core.Action, actionQueueSize),
	}
	app.Reconfigure(cfg, tokens)
	return app, nil
}

// Reconfigure swaps the live provider clients from a (possibly reloaded)
// config. Safe while requests are in flight: in-flight calls finish against
// the client they already hold.
func (a *App) Reconfigure(cfg *config.Config, tokens config.Tokens) {
	a.Cfg = cfg

	switch cfg.Forge.Provider {
	case core.ForgeGitHub:
		a.ForgeSet.Configure(github.New(tokens.GitHub, cfg.Forge.Owner, cfg.Forge.Repo))
	case core.ForgeGitLab:
		projectID, _ := strconv.ParseInt(cfg.Forge.ProjectID, 10, 64)
		a.ForgeSet.Configure(forge.AdaptGitLab(gitlab.New(cfg.Forge.BaseURL, tokens.GitLab, projectID)))
	case core.ForgeCodeberg:
		a.ForgeSet.Configure(codeberg.New(codeberg.Config{
			Token:           tokens.Codeberg,
			Owner:           cfg.Forge.Owner,
			Repo:            cfg.Forge.Repo,
			BaseURL:         cfg.Forge.BaseURL,
			WoodpeckerToken: tokens.Woodpecker,
		}))
	default:
		a.ForgeSet.Configure(nil)
	}

	switch cfg.PM.Provider {
	case core.PMAsana:
		a.PMSet.Configure(asana.New(tokens.Asana, cfg.PM.Asana.ProjectGID))
	case core.PMNotion:
		a.PMSet.Configure(notion.New(tokens.Notion, cfg.PM.Notion.DatabaseID, cfg.PM.Notion.StatusProperty))
	case core.PMClickUp:
		a.PMSet.Configure(clickup.New(tokens.ClickUp, cfg.PM.ClickUp.ListID))
	case core.PMAirtable:
		a.PMSet.Configure(airtable.New(tokens.Airtable, cfg.PM.Airtable.BaseID, cfg.PM.Airtable.Table, cfg.PM.Airtable.StatusField))
	case core.PMLinear:
		a.PMSet.Configure(linear.New(tokens.Linear, cfg.PM.Linear.TeamID))
	default:
		a.PMSet.Configure(nil)
	}

	a.Bus.Publish(events.NewConfigReloaded())
}

// Run loads the session, starts the scheduler, and blocks in the TUI until
// the user quits. The final session save runs before returning.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	snap, err := a.Store.Load(ctx)
	if err != nil {
		// §7: persistence errors never stop the program; run in memory.
		a.Logger.Error("session load failed, starting empty", "error", err)
		a.state.AppendLog(core.LogLevelError, "session load failed: "+err.Error())
	}
	a.state.Restore(snap)

	collector := diagnostics.NewCollector()
	devServers := devserver.NewManager(a.Mux, devserver.Config{
		Command: a.Cfg.DevServer.Command,
		Port:    a.Cfg.DevServer.Port,
	})

	agentCLI, ok := cli.Lookup(a.Cfg.Agent.Kind)
	if !ok {
		agentCLI = cli.Default()
	}

	a.eff = &effects{
		ctx:        ctx,
		manager:    a.Manager,
		worktrees:  a.Worktrees,
		pmSet:      a.PMSet,
		pmProvider: a.Cfg.PM.Provider,
		devServers: devServers,
		bus:        a.Bus,
		agentCLI:   agentCLI,
		extraArgs:    a.Cfg.Agent.ExtraArgs,
		symlinks:     a.Cfg.Git.Symlinks,
		mainBranch:   a.Cfg.Git.MainBranch,
		branchPrefix: a.Cfg.Git.BranchPrefix,
		linearUser:   a.Cfg.PM.Linear.Username,
		post:         func(action core.Action) { a.actions <- action },
	}

	a.red = reducer.New(a.state, a.eff, a.Logger,
		reducer.WithDebug(a.Cfg.Log.Debug),
		reducer.WithRepoPath(a.RepoPath))

	schedCfg := scheduler.Config{
		TickInterval: config.Duration(a.Cfg.Tick.Interval, 0),
		GitEvery:     config.Duration(a.Cfg.Tick.GitEvery, 0),
		ForgeEvery:   config.Duration(a.Cfg.Tick.ForgeEvery, 0),
		PMEvery:      config.Duration(a.Cfg.Tick.PMEvery, 0),
		SaveDebounce: config.Duration(a.Cfg.Tick.SaveDebounce, 0),
	}
	a.sched = scheduler.New(schedCfg, scheduler.Deps{
		View: a.red.Views,
		Mux:  a.Mux,
		GitStatus: func(ctx context.Context, worktreePath string) (*core.GitSyncStatus, error) {
			return a.Worktrees.GetStatus(ctx, worktreePath, a.Cfg.Git.MainBranch)
		},
		ForgeStatus: a.ForgeSet.GetPRForBranch,
		PMTask: func(ctx context.Context, link core.PmTaskLink) (core.PmTaskSummary, error) {
			payload := link.Payload()
			if payload == nil {
				return core.PmTaskSummary{}, core.ErrNotConfigured("pm")
			}
			return a.PMSet.GetTask(ctx, payload.ID)
		},
		Sample: collector.Sample,
		Save: func(ctx context.Context) error {
			// The reducer republishes this deep copy on every mutation in
			// the persistence set; marshalling it here cannot race the
			// live state.
			snap := a.red.Snapshot()
			if snap == nil {
				return nil
			}
			return a.Store.Save(ctx, snap)
		},
		Actions: a.actions,
		Plane:   a.Plane,
		Logger:  a.Logger,
	})
	a.eff.sched = a.sched

	loadTasks := func() tea.Msg {
		tasks, err := a.PMSet.ListTasks(ctx)
		return tui.TasksLoadedMsg{Tasks: tasks, Err: err}
	}
	program := tea.NewProgram(tui.New(a.red, loadTasks), tea.WithAltScreen())

	a.eff.attach = func(ag *core.Agent) {
		program.ReleaseTerminal()
		err := a.Manager.AttachToAgent(context.Background(), ag, agentCLI, a.Cfg.Agent.ExtraArgs)
		program.RestoreTerminal()
		if err != nil {
			program.Send(tui.ActionMsg{Action: core.Action{
				Kind: core.ActionToast, Level: core.LogLevelWarn,
				Message: "attach failed: " + err.Error(),
			}})
		}
	}

	// Bridge: background actions become tea messages so the bubbletea loop
	// is the single reducer goroutine.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case action := <-a.actions:
				program.Send(tui.ActionMsg{Action: action})
			}
		}
	}()

	// Quit events from the reducer's effects stop the program.
	go func() {
		quitCh := a.Bus.SubscribePriority(events.TypeQuit)
		select {
		case <-ctx.Done():
		case <-quitCh:
			program.Quit()
		}
	}()

	go a.sched.Run(ctx)

	if orphans, err := a.Manager.FindOrphanedSessions(ctx, a.knownIDs()); err == nil && len(orphans) > 0 {
		a.state.AppendLog(core.LogLevelWarn,
			fmt.Sprintf("%d orphaned session(s) found; run `flock doctor` for details", len(orphans)))
	}

	_, runErr := program.Run()

	a.Plane.Quit()
	cancel()

	if err := a.Store.Save(context.Background(), a.snapshotForSave()); err != nil {
		a.Logger.Error("final session save failed", "error", err)
	}
	return runErr
}

// snapshotForSave aliases the live state, so it is only safe once the
// reducer loop has stopped: the single call site is the final save after
// program.Run returns. The debounced background save uses the reducer's
// published deep copy instead.
func (a *App) snapshotForSave() *core.SessionSnapshot {
	return a.state.Snapshot(a.RepoPath)
}

func (a *App) knownIDs() []core.AgentID {
	ids := make([]core.AgentID, 0, len(a.state.Agents))
	for _, ag := range a.state.Agents {
		ids = append(ids, ag.ID)
	}
	return ids
}
