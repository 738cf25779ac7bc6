package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/flock-cli/flock/internal/core"
)

// Validate rejects configurations the rest of the program would trip over.
// It is called by Load, so a *Config in circulation is always valid.
func Validate(cfg *Config) error {
	if !slices.Contains(core.LogLevels, cfg.Log.Level) {
		return core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("log.level must be one of %v, got %q", core.LogLevels, cfg.Log.Level))
	}
	if !slices.Contains(core.LogFormats, cfg.Log.Format) {
		return core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("log.format must be one of %v, got %q", core.LogFormats, cfg.Log.Format))
	}
	if !slices.Contains(core.Multiplexers, cfg.Multiplexer.Kind) {
		return core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("multiplexer.kind must be one of %v, got %q", core.Multiplexers, cfg.Multiplexer.Kind))
	}
	if !core.IsValidAgent(cfg.Agent.Kind) {
		return core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("agent.kind must be one of %v, got %q", core.Agents, cfg.Agent.Kind))
	}
	if !slices.Contains(core.StateBackends, cfg.State.Backend) {
		return core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("state.backend must be one of %v, got %q", core.StateBackends, cfg.State.Backend))
	}
	if cfg.Forge.Provider != "" && !slices.Contains(core.Forges, cfg.Forge.Provider) {
		return core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("forge.provider must be one of %v, got %q", core.Forges, cfg.Forge.Provider))
	}
	if cfg.PM.Provider != "" && !slices.Contains(core.PMProviders, cfg.PM.Provider) {
		return core.ErrValidation(core.CodeInvalidConfig,
			fmt.Sprintf("pm.provider must be one of %v, got %q", core.PMProviders, cfg.PM.Provider))
	}

	for key, value := range map[string]string{
		"tick.interval":      cfg.Tick.Interval,
		"tick.git_every":     cfg.Tick.GitEvery,
		"tick.forge_every":   cfg.Tick.ForgeEvery,
		"tick.pm_every":      cfg.Tick.PMEvery,
		"tick.save_debounce": cfg.Tick.SaveDebounce,
	} {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return core.ErrValidation(core.CodeInvalidTimeout,
				fmt.Sprintf("%s is not a duration: %q", key, value))
		}
		if d <= 0 {
			return core.ErrValidation(core.CodeInvalidTimeout,
				fmt.Sprintf("%s must be positive, got %q", key, value))
		}
	}
	return nil
}
