// Package config loads and validates the forge configuration document
// (spec.md §6.2), following the teacher's section-struct YAML layout with
// explicit environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/garrettyarmo/forge-sub000/internal/logging"
)

// Config holds the full forge configuration document.
type Config struct {
	Repos         ReposConfig          `yaml:"repos"`
	GitHub        GitHubConfig         `yaml:"github"`
	Languages     LanguagesConfig      `yaml:"languages"`
	Output        OutputConfig         `yaml:"output"`
	LLM           LLMConfig            `yaml:"llm"`
	TokenBudget   int                  `yaml:"token_budget"`
	StalenessDays int                  `yaml:"staleness_days"`
	Environments  []EnvironmentMapping `yaml:"environments"`
	DebugMode     bool                 `yaml:"debug_mode"`
	LogLevel      string               `yaml:"log_level"`
	LogJSON       bool                 `yaml:"log_json"`
}

// ReposConfig selects which repositories a survey run covers.
type ReposConfig struct {
	GitHubOrg   string   `yaml:"github_org,omitempty"`
	GitHubRepos []string `yaml:"github_repos,omitempty"`
	LocalPaths  []string `yaml:"local_paths,omitempty"`
	Exclude     []string `yaml:"exclude,omitempty"`
}

// GitHubConfig names the environment variable holding the access token used
// by internal/repoprovider/github.
type GitHubConfig struct {
	TokenEnv string `yaml:"token_env"`
}

// LanguagesConfig restricts which registered parsers run.
type LanguagesConfig struct {
	Exclude []string `yaml:"exclude,omitempty"`
}

// OutputConfig controls where the graph and repo cache live on disk.
type OutputConfig struct {
	GraphPath string `yaml:"graph_path"`
	CachePath string `yaml:"cache_path"`
}

// LLMConfig names the optional business-context interview collaborator.
type LLMConfig struct {
	Provider string `yaml:"provider,omitempty"`
	CLIPath  string `yaml:"cli_path,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"-"`
}

// EnvironmentMapping assigns an environment/account to nodes whose owning
// service's repo matches Repos, first-match-wins (spec.md §6.2).
type EnvironmentMapping struct {
	Name         string `yaml:"name"`
	AWSAccountID string `yaml:"aws_account_id,omitempty"`
	Repos        string `yaml:"repos"`
	LocalOnly    bool   `yaml:"local_only,omitempty"`
}

// DefaultConfig returns the configuration emitted by `forge init`.
func DefaultConfig() *Config {
	return &Config{
		GitHub: GitHubConfig{TokenEnv: "GITHUB_TOKEN"},
		Output: OutputConfig{
			GraphPath: ".forge/graph.json",
			CachePath: "~/.forge/repos",
		},
		LLM:           LLMConfig{Provider: "claude_cli"},
		TokenBudget:   8000,
		StalenessDays: 7,
		LogLevel:      "info",
	}
}

// Load reads path, applying DefaultConfig for any field the document omits,
// then layers environment-variable overrides on top.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	logging.Boot("loading config from %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Boot("config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes cfg to path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: mkdir %s: %w", dir, err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides honors FORGE_<SECTION>_<KEY> overrides (spec.md §6.2),
// named explicitly rather than derived by reflection, matching the teacher's
// applyEnvOverrides style.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FORGE_REPOS_GITHUB_ORG"); v != "" {
		c.Repos.GitHubOrg = v
	}
	if v := os.Getenv("FORGE_GITHUB_TOKEN_ENV"); v != "" {
		c.GitHub.TokenEnv = v
	}
	if v := os.Getenv("FORGE_OUTPUT_GRAPH_PATH"); v != "" {
		c.Output.GraphPath = v
	}
	if v := os.Getenv("FORGE_OUTPUT_CACHE_PATH"); v != "" {
		c.Output.CachePath = v
	}
	if v := os.Getenv("FORGE_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("FORGE_LLM_CLI_PATH"); v != "" {
		c.LLM.CLIPath = v
	}
	if v := os.Getenv("FORGE_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("FORGE_TOKEN_BUDGET"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			c.TokenBudget = n
		}
	}
	if v := os.Getenv("FORGE_STALENESS_DAYS"); v != "" {
		if n, err := parsePositiveInt(v); err == nil {
			c.StalenessDays = n
		}
	}
	if v := os.Getenv("FORGE_DEBUG_MODE"); v == "1" || v == "true" {
		c.DebugMode = true
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if tokenEnv := c.GitHub.TokenEnv; tokenEnv != "" {
		// carried at call time by internal/repoprovider/github, not cached
		// here, since the token must always reflect the live environment.
		_ = tokenEnv
	}
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("config: %q is not a positive integer", s)
		}
		n = n*10 + int(r-'0')
	}
	if n <= 0 {
		return 0, fmt.Errorf("config: %q is not positive", s)
	}
	return n, nil
}

// Validate checks invariants `forge` commands rely on before starting a run.
func (c *Config) Validate() error {
	if c.Repos.GitHubOrg == "" && len(c.Repos.GitHubRepos) == 0 && len(c.Repos.LocalPaths) == 0 {
		return fmt.Errorf("config: no repositories specified (set repos.github_org, repos.github_repos, or repos.local_paths)")
	}
	if c.TokenBudget <= 0 {
		return fmt.Errorf("config: token_budget must be positive, got %d", c.TokenBudget)
	}
	if c.StalenessDays <= 0 {
		return fmt.Errorf("config: staleness_days must be positive, got %d", c.StalenessDays)
	}
	seen := make(map[string]bool, len(c.Environments))
	for _, e := range c.Environments {
		if e.Name == "" {
			return fmt.Errorf("config: environments entry missing name")
		}
		if seen[e.Name] {
			return fmt.Errorf("config: duplicate environment name %q", e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

// ResolveCachePath expands a leading "~" in Output.CachePath against the
// user's home directory.
func (c *Config) ResolveCachePath() string {
	path := c.Output.CachePath
	if path == "" {
		return path
	}
	if path == "~" || len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// GitHubToken reads the token named by GitHub.TokenEnv from the environment.
func (c *Config) GitHubToken() string {
	name := c.GitHub.TokenEnv
	if name == "" {
		name = "GITHUB_TOKEN"
	}
	return os.Getenv(name)
}
