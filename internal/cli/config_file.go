// Package cli holds the scaffolding commands shared by the storysync
// binary: init, which lays down the config directory and local data
// directory, and version.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/storysync/pkg/types"
)

// ConfigFileName is the config file inside the config directory.
const ConfigFileName = "config.yaml"

// ConfigFile is the on-disk shape of config.yaml. Secrets are never written;
// they come from the environment.
type ConfigFile struct {
	Backend string `yaml:"backend"`
	DataDir string `yaml:"data_dir,omitempty"`

	GitHub struct {
		Owner         string `yaml:"owner"`
		Repo          string `yaml:"repo"`
		ProjectNumber int    `yaml:"project_number"`
	} `yaml:"github"`

	Decompose struct {
		Model       string  `yaml:"model"`
		Temperature float32 `yaml:"temperature"`
		MaxTasks    int     `yaml:"max_tasks"`
	} `yaml:"decompose"`

	TitleTemplate     string `yaml:"title_template"`
	RateDelay         string `yaml:"rate_delay"`
	SkipIfHasChildren bool   `yaml:"skip_if_has_children"`

	Cache struct {
		Enabled bool   `yaml:"enabled"`
		Dir     string `yaml:"dir,omitempty"`
	} `yaml:"cache"`

	OutlineFile  string `yaml:"outline_file"`
	NotebookRoot string `yaml:"notebook_root"`
	ShowZero     bool   `yaml:"show_zero"`

	Notebook struct {
		Overwrite     bool `yaml:"overwrite"`
		Placeholders  bool `yaml:"placeholders"`
		MaxChildren   int  `yaml:"max_children"`
		RefreshHeader bool `yaml:"refresh_header"`
	} `yaml:"notebook"`

	NotebookSectionHeader string `yaml:"notebook_section_header"`
}

// DefaultConfigFile returns the config written on first run.
func DefaultConfigFile(backend string) ConfigFile {
	if backend == "" {
		backend = types.BackendGitHub
	}
	var c ConfigFile
	c.Backend = backend
	c.GitHub.ProjectNumber = types.DefaultProjectNumber
	c.Decompose.Model = types.DefaultModel
	c.Decompose.Temperature = types.DefaultTemperature
	c.Decompose.MaxTasks = types.DefaultMaxTasks
	c.TitleTemplate = types.DefaultTitleTemplate
	c.RateDelay = types.DefaultRateDelay.String()
	c.OutlineFile = types.DefaultOutlineFile
	c.NotebookRoot = "."
	c.NotebookSectionHeader = types.DefaultNotebookSection
	return c
}

const configHeader = `# storysync configuration
# Tokens are read from the environment: GITHUB_TOKEN (or GITHUB_TOKEN_FG)
# and GEMINI_API_KEY. Any key below can be overridden with STORYSYNC_<KEY>.

`

// WriteConfigIfMissing creates the config directory and writes cfg to
// config.yaml unless the file already exists. It reports whether it wrote.
func WriteConfigIfMissing(configDir string, cfg ConfigFile) (bool, error) {
	path := filepath.Join(configDir, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, append([]byte(configHeader), data...), 0o644); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}

// LoadConfigFile reads config.yaml from configDir. A missing file yields the
// zero value and no error.
func LoadConfigFile(configDir string) (ConfigFile, error) {
	var cfg ConfigFile
	data, err := os.ReadFile(filepath.Join(configDir, ConfigFileName))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parse %s: %w", types.ErrFatalConfig, ConfigFileName, err)
	}
	return cfg, nil
}
