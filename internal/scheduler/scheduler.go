// Package scheduler drives the periodic refresh fanout (T1). One ticker at
// the base rate is the only clock; every slower cadence (git, forge, PM,
// auto-save) is derived from per-category last-run timestamps kept here,
// never in AppState. The scheduler owns no state the reducer reads — it
// only observes the per-tick agent views and emits actions.
package scheduler

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flock-cli/flock/internal/control"
	"github.com/flock-cli/flock/internal/core"
	"github.com/flock-cli/flock/internal/detector"
	"github.com/flock-cli/flock/internal/multiplexer"
)

// Config holds the cadence table (spec §4.5). Zero values fall back to the
// defaults below.
type Config struct {
	TickInterval    time.Duration
	GitEvery        time.Duration
	ForgeEvery      time.Duration
	PMEvery         time.Duration
	SaveDebounce    time.Duration
	ProviderTimeout time.Duration
	CaptureLines    int
	MaxWorkers      int
}

// DefaultConfig returns the spec's default cadences.
func DefaultConfig() Config {
	return Config{
		TickInterval:    250 * time.Millisecond,
		GitEvery:        30 * time.Second,
		ForgeEvery:      60 * time.Second,
		PMEvery:         120 * time.Second,
		SaveDebounce:    5 * time.Second,
		ProviderTimeout: 10 * time.Second,
		CaptureLines:    50,
		MaxWorkers:      16,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.GitEvery <= 0 {
		c.GitEvery = d.GitEvery
	}
	if c.ForgeEvery <= 0 {
		c.ForgeEvery = d.ForgeEvery
	}
	if c.PMEvery <= 0 {
		c.PMEvery = d.PMEvery
	}
	if c.SaveDebounce <= 0 {
		c.SaveDebounce = d.SaveDebounce
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = d.ProviderTimeout
	}
	if c.CaptureLines <= 0 {
		c.CaptureLines = d.CaptureLines
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = d.MaxWorkers
	}
	return c
}

// Deps are the scheduler's collaborators, all injectable for tests.
type Deps struct {
	// View returns the current immutable agent views, republished by the
	// reducer after each mutation.
	View func() []core.AgentView

	Mux multiplexer.Multiplexer

	// GitStatus computes a worktree's sync status against the main branch.
	GitStatus func(ctx context.Context, worktreePath string) (*core.GitSyncStatus, error)

	// ForgeStatus fetches the PR/MR + pipeline status for a branch.
	ForgeStatus func(ctx context.Context, branch string) (*core.ForgeStatus, error)

	// PMTask fetches the linked task's current provider-side state.
	PMTask func(ctx context.Context, link core.PmTaskLink) (core.PmTaskSummary, error)

	// Sample takes one CPU/memory measurement.
	Sample func(ctx context.Context) (core.MetricSample, error)

	// Save persists the current session snapshot.
	Save func(ctx context.Context) error

	Actions chan<- core.Action
	Plane   *control.Plane
	Logger  *slog.Logger
}

// Refresh categories, used for the in-flight registry and debug logs.
const (
	catOutput  = "output"
	catGit     = "git"
	catForge   = "forge"
	catPM      = "pm"
	catMetrics = "metrics"
	catSave    = "save"
)

// Scheduler fans tick work out to background tasks.
type Scheduler struct {
	cfg  Config
	deps Deps

	group *errgroup.Group

	mu         sync.Mutex
	inflight   map[string]bool
	lastRun    map[string]time.Time
	lastOutput map[core.AgentID]string
	dirtyAt    time.Time
	dirty      bool

	tickerFactory func(time.Duration) *time.Ticker
}

// New builds a scheduler. Deps.Actions and Deps.View are required; any nil
// refresh dependency simply disables that category.
func New(cfg Config, deps Deps) *Scheduler {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Plane == nil {
		deps.Plane = control.New()
	}
	g := &errgroup.Group{}
	cfg = cfg.withDefaults()
	g.SetLimit(cfg.MaxWorkers)
	return &Scheduler{
		cfg:           cfg,
		deps:          deps,
		group:         g,
		inflight:      make(map[string]bool),
		lastRun:       make(map[string]time.Time),
		lastOutput:    make(map[core.AgentID]string),
		tickerFactory: time.NewTicker,
	}
}

// RequestSave schedules a debounced session save. Repeated requests inside
// the window coalesce into the single already-scheduled save.
func (s *Scheduler) RequestSave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		s.dirty = true
		s.dirtyAt = time.Now()
	}
}

// Run loops until ctx is done or the control plane quits. It blocks; run it
// on its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.tickerFactory(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = s.group.Wait()
			return
		case <-ticker.C:
			if s.deps.Plane.IsQuitting() {
				_ = s.group.Wait()
				return
			}
			if s.deps.Plane.IsPaused() {
				continue
			}
			s.tick(ctx, time.Now())
		}
	}
}

// tick dispatches whatever is due at now. Exported behavior is tested by
// calling it directly with synthetic clocks.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	s.emit(core.Action{Kind: core.ActionTick})

	views := s.deps.View()

	for _, view := range views {
		view := view
		if s.tryAcquire(catOutput, view.ID) {
			s.group.Go(func() error {
				s.refreshOutput(ctx, view)
				return nil
			})
		}
		if s.deps.GitStatus != nil && s.due(catGit, view.ID, now, s.cfg.GitEvery) && s.tryAcquire(catGit, view.ID) {
			s.markRun(catGit, view.ID, now)
			s.group.Go(func() error {
				s.refreshGit(ctx, view)
				return nil
			})
		}
		if s.deps.ForgeStatus != nil && s.due(catForge, view.ID, now, s.cfg.ForgeEvery) && s.tryAcquire(catForge, view.ID) {
			s.markRun(catForge, view.ID, now)
			s.group.Go(func() error {
				s.refreshForge(ctx, view)
				return nil
			})
		}
		if s.deps.PMTask != nil && view.TaskLink.IsLinked() && s.due(catPM, view.ID, now, s.cfg.PMEvery) && s.tryAcquire(catPM, view.ID) {
			s.markRun(catPM, view.ID, now)
			s.group.Go(func() error {
				s.refreshPM(ctx, view)
				return nil
			})
		}
	}

	if s.deps.Sample != nil && s.tryAcquire(catMetrics, core.AgentID{}) {
		s.group.Go(func() error {
			s.sampleMetrics(ctx)
			return nil
		})
	}

	s.maybeSave(ctx, now)
}

func (s *Scheduler) maybeSave(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := s.dirty && now.Sub(s.dirtyAt) >= s.cfg.SaveDebounce
	s.mu.Unlock()
	if !due || s.deps.Save == nil {
		return
	}
	if !s.tryAcquire(catSave, core.AgentID{}) {
		return
	}
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()

	s.group.Go(func() error {
		defer s.release(catSave, core.AgentID{})
		if err := s.deps.Save(ctx); err != nil {
			s.deps.Logger.Error("session auto-save failed", "error", err)
		}
		return nil
	})
}

// refreshOutput captures the pane, detects status, and emits the
// per-agent observation batch. The in-flight slot is released when the
// reducer applies the last action of the batch.
func (s *Scheduler) refreshOutput(ctx context.Context, view core.AgentView) {
	output, err := s.captureSession(ctx, view)
	if err != nil {
		s.deps.Logger.Debug("pane capture failed", "agent", view.ID.String(), "error", err)
		s.release(catOutput, view.ID)
		return
	}

	s.mu.Lock()
	hadActivity := output != s.lastOutput[view.ID] && output != ""
	s.lastOutput[view.ID] = output
	s.mu.Unlock()

	status, reason := detector.DetectWithReason(output)

	s.emit(core.Action{Kind: core.ActionUpdateAgentOutput, AgentID: view.ID, OutputLine: output})
	if done, total, ok := parseChecklist(output); ok {
		s.emit(core.Action{
			Kind: core.ActionUpdateChecklist, AgentID: view.ID,
			ChecklistDone: done, ChecklistTotal: total, HasChecklist: true,
		})
	}
	s.emit(core.Action{Kind: core.ActionUpdateAgentStatus, AgentID: view.ID, Status: status, StatusReason: reason})
	s.emit(core.Action{
		Kind: core.ActionRecordActivity, AgentID: view.ID, HadActivity: hadActivity,
		Ack: func() { s.release(catOutput, view.ID) },
	})
}

func (s *Scheduler) captureSession(ctx context.Context, view core.AgentView) (string, error) {
	exists, err := s.deps.Mux.Exists(ctx, view.SessionName)
	if err != nil || !exists {
		return "", err
	}
	return s.deps.Mux.CapturePane(ctx, view.SessionName, s.cfg.CaptureLines)
}

func (s *Scheduler) refreshGit(ctx context.Context, view core.AgentView) {
	status, err := s.deps.GitStatus(ctx, view.WorktreePath)
	if err != nil || status == nil {
		// Keep the previous value; a transient git failure is not news.
		s.deps.Logger.Debug("git refresh failed", "agent", view.ID.String(), "error", err)
		s.release(catGit, view.ID)
		return
	}
	s.emit(core.Action{
		Kind: core.ActionUpdateGitStatus, AgentID: view.ID, GitStatus: *status,
		Ack: func() { s.release(catGit, view.ID) },
	})
}

func (s *Scheduler) refreshForge(ctx context.Context, view core.AgentView) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	status, err := s.deps.ForgeStatus(ctx, view.Branch)
	if err != nil {
		s.logProviderError("forge", view, err)
		s.release(catForge, view.ID)
		return
	}
	s.emit(core.Action{
		Kind: core.ActionUpdateForgeStatus, AgentID: view.ID, ForgeStatus: status,
		Ack: func() { s.release(catForge, view.ID) },
	})
}

func (s *Scheduler) refreshPM(ctx context.Context, view core.AgentView) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	task, err := s.deps.PMTask(ctx, view.TaskLink)
	if err != nil {
		s.logProviderError("pm", view, err)
		s.release(catPM, view.ID)
		return
	}
	s.emit(core.Action{
		Kind: core.ActionUpdateProjectTaskStatus, AgentID: view.ID, NewStatusValue: task.StatusName,
		Ack: func() { s.release(catPM, view.ID) },
	})
}

// logProviderError applies the §7 policy for background refreshes:
// NotConfigured is silence, transient/timeout is a Warn with the previous
// value kept, anything else is an Error.
func (s *Scheduler) logProviderError(provider string, view core.AgentView, err error) {
	switch core.GetCategory(err) {
	case core.ErrCatNotConfigured:
	case core.ErrCatTimeout, core.ErrCatNetwork, core.ErrCatRateLimit:
		s.deps.Logger.Warn(provider+" refresh kept previous value",
			"agent", view.ID.String(), "error", err)
	default:
		s.deps.Logger.Error(provider+" refresh failed",
			"agent", view.ID.String(), "error", err)
	}
}

func (s *Scheduler) sampleMetrics(ctx context.Context) {
	sample, err := s.deps.Sample(ctx)
	if err != nil {
		s.release(catMetrics, core.AgentID{})
		return
	}
	s.emit(core.Action{
		Kind: core.ActionSampleMetrics, MetricSample: sample,
		Ack: func() { s.release(catMetrics, core.AgentID{}) },
	})
}

func (s *Scheduler) emit(a core.Action) {
	s.deps.Actions <- a
}

func (s *Scheduler) key(category string, id core.AgentID) string {
	return category + "/" + id.String()
}

func (s *Scheduler) tryAcquire(category string, id core.AgentID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := s.key(category, id)
	if s.inflight[k] {
		return false
	}
	s.inflight[k] = true
	return true
}

func (s *Scheduler) release(category string, id core.AgentID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, s.key(category, id))
}

func (s *Scheduler) due(category string, id core.AgentID, now time.Time, every time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastRun[s.key(category, id)]
	return !ok || now.Sub(last) >= every
}

func (s *Scheduler) markRun(category string, id core.AgentID, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun[s.key(category, id)] = now
}

// ForceRefresh clears every cadence stamp so the next tick refreshes
// everything immediately.
func (s *Scheduler) ForceRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = make(map[string]time.Time)
}

// Forget drops per-agent scheduler bookkeeping after an agent is deleted.
func (s *Scheduler) Forget(id core.AgentID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lastOutput, id)
	for _, cat := range []string{catOutput, catGit, catForge, catPM} {
		delete(s.lastRun, s.key(cat, id))
	}
}

// parseChecklist counts markdown task-list items in the captured text,
// returning (done, total, found).
func parseChecklist(text string) (int, int, bool) {
	done, total := 0, 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "- [x]"), strings.HasPrefix(trimmed, "- [X]"), strings.HasPrefix(trimmed, "☒"):
			done++
			total++
		case strings.HasPrefix(trimmed, "- [ ]"), strings.HasPrefix(trimmed, "☐"):
			total++
		}
	}
	return done, total, total > 0
}
