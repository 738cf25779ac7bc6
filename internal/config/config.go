// Package config loads and merges flock's two-tier TOML configuration: the
// global ~/.flock/config.toml and the per-repository .flock/project.toml.
// Provider tokens never live in files; they are read once from the
// environment at startup and handed to the live clients, which the settings
// pane can re-point without a restart.
package config

// Config holds all application configuration after merging.
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Tick        TickConfig        `mapstructure:"tick"`
	Git         GitConfig         `mapstructure:"git"`
	Multiplexer MultiplexerConfig `mapstructure:"multiplexer"`
	Agent       AgentConfig       `mapstructure:"agent"`
	State       StateConfig       `mapstructure:"state"`
	Forge       ForgeConfig       `mapstructure:"forge"`
	PM          PMConfig          `mapstructure:"pm"`
	DevServer   DevServerConfig   `mapstructure:"dev_server"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
	Debug  bool   `mapstructure:"debug"`
}

// TickConfig configures the refresh scheduler's cadence table. Durations
// are Go duration strings ("250ms", "30s").
type TickConfig struct {
	Interval     string `mapstructure:"interval"`
	GitEvery     string `mapstructure:"git_every"`
	ForgeEvery   string `mapstructure:"forge_every"`
	PMEvery      string `mapstructure:"pm_every"`
	SaveDebounce string `mapstructure:"save_debounce"`
}

// GitConfig configures worktree and branch handling.
type GitConfig struct {
	WorktreeDir  string   `mapstructure:"worktree_dir"`
	MainBranch   string   `mapstructure:"main_branch"`
	BranchPrefix string   `mapstructure:"branch_prefix"`
	Symlinks     []string `mapstructure:"symlinks"`
}

// MultiplexerConfig selects and tunes the terminal multiplexer backend.
type MultiplexerConfig struct {
	Kind string `mapstructure:"kind"`
	Path string `mapstructure:"path"`
}

// AgentConfig configures the coding-agent CLI launched in each session.
type AgentConfig struct {
	Kind      string   `mapstructure:"kind"`
	ExtraArgs []string `mapstructure:"extra_args"`
}

// StateConfig selects the session-store backend.
type StateConfig struct {
	Backend string `mapstructure:"backend"`
}

// ForgeConfig configures the git forge integration for this repository.
type ForgeConfig struct {
	Provider  string `mapstructure:"provider"`
	BaseURL   string `mapstructure:"base_url"`
	Owner     string `mapstructure:"owner"`
	Repo      string `mapstructure:"repo"`
	ProjectID string `mapstructure:"project_id"`
}

// PMConfig configures the project-management integration.
type PMConfig struct {
	Provider string         `mapstructure:"provider"`
	Asana    AsanaScope     `mapstructure:"asana"`
	Notion   NotionScope    `mapstructure:"notion"`
	ClickUp  ClickUpScope   `mapstructure:"clickup"`
	Airtable AirtableScope  `mapstructure:"airtable"`
	Linear   LinearScope    `mapstructure:"linear"`
}

// AsanaScope pins the Asana workspace and project flock operates in.
type AsanaScope struct {
	WorkspaceGID string `mapstructure:"workspace_gid"`
	ProjectGID   string `mapstructure:"project_gid"`
}

// NotionScope pins the Notion database.
type NotionScope struct {
	DatabaseID     string `mapstructure:"database_id"`
	StatusProperty string `mapstructure:"status_property"`
}

// ClickUpScope pins the ClickUp list.
type ClickUpScope struct {
	ListID string `mapstructure:"list_id"`
}

// AirtableScope pins the Airtable base and table.
type AirtableScope struct {
	BaseID      string `mapstructure:"base_id"`
	Table       string `mapstructure:"table"`
	StatusField string `mapstructure:"status_field"`
}

// LinearScope pins the Linear team (and the user for branch naming).
type LinearScope struct {
	TeamID   string `mapstructure:"team_id"`
	Username string `mapstructure:"username"`
}

// DevServerConfig configures the optional per-agent dev server runner.
type DevServerConfig struct {
	Command string `mapstructure:"command"`
	Port    int    `mapstructure:"port"`
}
