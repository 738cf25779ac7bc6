package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flock-cli/flock/internal/adapters/git"
	"github.com/flock-cli/flock/internal/adapters/state"
	"github.com/flock-cli/flock/internal/agent"
	"github.com/flock-cli/flock/internal/config"
	"github.com/flock-cli/flock/internal/core"
	"github.com/flock-cli/flock/internal/diagnostics"
	"github.com/flock-cli/flock/internal/multiplexer"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor [repo-path]",
	Short: "Report host health, orphaned sessions, and provider wiring",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repoPath, err := resolveRepoPath(args)
		if err != nil {
			return err
		}
		cfg, _, err := loadConfig(repoPath)
		if err != nil {
			return err
		}

		mux, err := multiplexer.New(cfg.Multiplexer.Kind)
		if err != nil {
			return err
		}

		worktreeBase := cfg.Git.WorktreeDir
		if worktreeBase == "" {
			worktreeBase = repoPath + "-worktrees"
		}

		// Orphan detection is read-only: list sessions, subtract the ones
		// the persisted session file still owns.
		var knownIDs []core.AgentID
		configDir, err := config.GlobalDir()
		if err != nil {
			return err
		}
		store := state.NewJSONSessionStore(configDir, repoPath)
		if snap, err := store.Load(cmd.Context()); err == nil && snap != nil {
			for _, a := range snap.Agents {
				knownIDs = append(knownIDs, a.ID)
			}
		}

		var worktrees agent.Worktrees
		var repoInfo diagnostics.RepoInfo
		if client, err := git.NewClient(repoPath); err == nil {
			worktrees = git.NewWorktreeManager(client, worktreeBase)
			repoInfo.DefaultBranch, _ = client.DefaultBranch(cmd.Context())
			repoInfo.CurrentBranch, _ = client.CurrentBranch(cmd.Context())
			repoInfo.RemoteURL, _ = client.RemoteURL(cmd.Context())
			repoInfo.Clean, _ = client.IsClean(cmd.Context())
		}
		manager := agent.NewManager(mux, worktrees, nil)
		orphans, err := manager.FindOrphanedSessions(cmd.Context(), knownIDs)
		if err != nil {
			orphans = nil
		}

		report := diagnostics.BuildReport(cmd.Context(), repoInfo, worktreeBase, cfg.Multiplexer.Kind,
			mux, orphans, cfg.Forge.Provider, cfg.PM.Provider)
		fmt.Fprint(cmd.OutOrStdout(), report.Render())
		return nil
	},
}
