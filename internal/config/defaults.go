package config

import (
	"github.com/spf13/viper"

	"github.com/flock-cli/flock/internal/core"
)

// applyDefaults registers every per-field default so a missing file or a
// partially filled one still yields a fully usable Config.
func applyDefaults(v *viper.Viper) {
	v.SetDefault("log.level", core.LogInfo)
	v.SetDefault("log.format", core.LogFormatAuto)
	v.SetDefault("log.file", "")
	v.SetDefault("log.debug", false)

	v.SetDefault("tick.interval", "250ms")
	v.SetDefault("tick.git_every", "30s")
	v.SetDefault("tick.forge_every", "60s")
	v.SetDefault("tick.pm_every", "120s")
	v.SetDefault("tick.save_debounce", "5s")

	v.SetDefault("git.worktree_dir", "")
	v.SetDefault("git.main_branch", "main")
	v.SetDefault("git.branch_prefix", "")
	v.SetDefault("git.symlinks", []string{})

	v.SetDefault("multiplexer.kind", core.MultiplexerTmux)
	v.SetDefault("multiplexer.path", "")

	v.SetDefault("agent.kind", core.AgentClaude)
	v.SetDefault("agent.extra_args", []string{})

	v.SetDefault("state.backend", core.StateBackendJSON)

	v.SetDefault("forge.provider", "")
	v.SetDefault("forge.base_url", "")

	v.SetDefault("pm.provider", "")

	v.SetDefault("dev_server.command", "")
	v.SetDefault("dev_server.port", 0)
}
