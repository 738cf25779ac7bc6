package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/flock-cli/flock/internal/core"
)

const (
	// configDirName is the dot-directory used both globally (in $HOME) and
	// per-repo (in the repo root).
	configDirName = ".flock"

	globalConfigFile  = "config.toml"
	projectConfigFile = "project.toml"

	envPrefix = "FLOCK"
)

// GlobalDir returns ~/.flock, creating nothing.
func GlobalDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home dir: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// GlobalConfigPath returns ~/.flock/config.toml.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, globalConfigFile), nil
}

// ProjectConfigPath returns <repo>/.flock/project.toml.
func ProjectConfigPath(repoPath string) string {
	return filepath.Join(repoPath, configDirName, projectConfigFile)
}

// Loader merges the global and per-repo config files.
type Loader struct {
	v          *viper.Viper
	globalPath string
	repoPath   string
}

// NewLoader builds a loader for repoPath. An empty globalPath override uses
// ~/.flock/config.toml.
func NewLoader(repoPath string) *Loader {
	return &Loader{v: viper.New(), repoPath: repoPath}
}

// WithGlobalPath overrides the global config location (tests, --config).
func (l *Loader) WithGlobalPath(path string) *Loader {
	l.globalPath = path
	return l
}

// Load reads and merges configuration. Precedence, highest first:
// FLOCK_* environment variables, project.toml, config.toml, defaults.
// Missing files are fine; malformed ones are a configuration error.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigType("toml")
	applyDefaults(l.v)

	l.v.SetEnvPrefix(envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	globalPath := l.globalPath
	if globalPath == "" {
		p, err := GlobalConfigPath()
		if err != nil {
			return nil, err
		}
		globalPath = p
	}
	if err := mergeFile(l.v, globalPath); err != nil {
		return nil, fmt.Errorf("loading %s: %w", globalPath, err)
	}

	projectPath := ProjectConfigPath(l.repoPath)
	if err := mergeFile(l.v, projectPath); err != nil {
		return nil, fmt.Errorf("loading %s: %w", projectPath, err)
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Paths returns the files Load consults, for the config watcher.
func (l *Loader) Paths() []string {
	paths := []string{}
	globalPath := l.globalPath
	if globalPath == "" {
		if p, err := GlobalConfigPath(); err == nil {
			globalPath = p
		}
	}
	if globalPath != "" {
		paths = append(paths, globalPath)
	}
	return append(paths, ProjectConfigPath(l.repoPath))
}

func mergeFile(v *viper.Viper, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	return v.MergeConfig(f)
}

// Duration parses a tick-config duration string, falling back when empty
// or malformed.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Tokens are the provider credentials, read once from the environment at
// startup (spec §6). They are deliberately not part of Config so they can
// never end up in a TOML file or a config dump.
type Tokens struct {
	GitLab     string
	GitHub     string
	Codeberg   string
	Asana      string
	Notion     string
	ClickUp    string
	Airtable   string
	Linear     string
	Woodpecker string
}

// TokensFromEnv reads every provider token variable.
func TokensFromEnv() Tokens {
	return Tokens{
		GitLab:     os.Getenv("GITLAB_TOKEN"),
		GitHub:     os.Getenv("GITHUB_TOKEN"),
		Codeberg:   os.Getenv("CODEBERG_TOKEN"),
		Asana:      os.Getenv("ASANA_TOKEN"),
		Notion:     os.Getenv("NOTION_TOKEN"),
		ClickUp:    os.Getenv("CLICKUP_TOKEN"),
		Airtable:   os.Getenv("AIRTABLE_TOKEN"),
		Linear:     os.Getenv("LINEAR_TOKEN"),
		Woodpecker: os.Getenv("WOODPECKER_TOKEN"),
	}
}

// ForForge returns the token matching a forge provider name.
func (t Tokens) ForForge(provider string) string {
	switch provider {
	case core.ForgeGitLab:
		return t.GitLab
	case core.ForgeGitHub:
		return t.GitHub
	case core.ForgeCodeberg:
		return t.Codeberg
	default:
		return ""
	}
}

// ForPM returns the token matching a PM provider name.
func (t Tokens) ForPM(provider string) string {
	switch provider {
	case core.PMAsana:
		return t.Asana
	case core.PMNotion:
		return t.Notion
	case core.PMClickUp:
		return t.ClickUp
	case core.PMAirtable:
		return t.Airtable
	case core.PMLinear:
		return t.Linear
	default:
		return ""
	}
}
