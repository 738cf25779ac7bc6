// Package cmd wires the cobra command tree for the flock binary.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/flock-cli/flock/internal/app"
	"github.com/flock-cli/flock/internal/config"
	"github.com/flock-cli/flock/internal/core"
	"github.com/flock-cli/flock/internal/logging"
)

// Exit codes per the CLI contract: 0 clean quit, 2 configuration error,
// 1 anything else.
const (
	exitOK     = 0
	exitError  = 1
	exitConfig = 2
)

var (
	flagConfig string
	flagDebug  bool
)

var rootCmd = &cobra.Command{
	Use:   "flock [repo-path]",
	Short: "Drive concurrent AI coding agents in isolated git worktrees",
	Long: `flock runs one AI coding agent per git worktree, each inside its own
terminal multiplexer session, and keeps their status, git state, and
linked project-management tasks continuously refreshed in a single TUI.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		repoPath, err := resolveRepoPath(args)
		if err != nil {
			return err
		}

		loader := config.NewLoader(repoPath)
		if flagConfig != "" {
			loader = loader.WithGlobalPath(flagConfig)
		}
		cfg, err := loader.Load()
		if err != nil {
			return err
		}
		tokens := config.TokensFromEnv()
		if flagDebug {
			cfg.Log.Debug = true
			cfg.Log.Level = core.LogDebug
		}

		logger := buildLogger(cfg)

		a, err := app.New(cmd.Context(), repoPath, cfg, tokens, logger.Logger)
		if err != nil {
			return err
		}

		// Live-reload provider tokens and scope ids while running.
		go func() {
			_ = config.Watch(cmd.Context(), loader, logger.Logger, func(fresh *config.Config) {
				a.Reconfigure(fresh, config.TokensFromEnv())
			})
		}()

		return a.Run(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "global config file (default ~/.flock/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging and status-reason tracking")
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the command tree and maps errors onto exit codes.
func Execute() int {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "flock: panic: %v\n", r)
			os.Exit(exitError)
		}
	}()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "flock: %v\n", err)
		var domErr *core.DomainError
		if errors.As(err, &domErr) && domErr.Category == core.ErrCatValidation {
			return exitConfig
		}
		return exitError
	}
	return exitOK
}

func resolveRepoPath(args []string) (string, error) {
	path := "."
	if len(args) == 1 {
		path = args[0]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", core.ErrValidation("INVALID_REPO_PATH", fmt.Sprintf("%s is not a directory", abs))
	}
	return abs, nil
}

func loadConfig(repoPath string) (*config.Config, config.Tokens, error) {
	loader := config.NewLoader(repoPath)
	if flagConfig != "" {
		loader = loader.WithGlobalPath(flagConfig)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, config.Tokens{}, err
	}
	return cfg, config.TokensFromEnv(), nil
}

func buildLogger(cfg *config.Config) *logging.Logger {
	out := os.Stderr
	logCfg := logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: out,
	}
	if cfg.Log.File != "" {
		if f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600); err == nil {
			logCfg.Output = f
		}
	}
	return logging.New(logCfg)
}
