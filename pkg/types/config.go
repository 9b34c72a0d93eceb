package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Supported backend names.
const (
	BackendGitHub = "github"
	BackendLocal  = "local"
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendGitHub: true,
	BackendLocal:  true,
}

// Defaults applied by the CLI config loader.
const (
	DefaultTitleTemplate   = "Story #{parent} – {title}"
	DefaultModel           = "gemini-2.0-flash"
	DefaultTemperature     = 0.2
	DefaultMaxTasks        = 12
	DefaultRateDelay       = 300 * time.Millisecond
	DefaultCacheDir        = ".story_decomp_cache"
	DefaultOutlineFile     = "outline.md"
	DefaultNotebookSection = "### Notebook"
	DefaultProjectNumber   = 1
	DefaultGroupName       = "default"
)

// Config validation errors. Each wraps ErrFatalConfig.
var (
	ErrBackendEmpty     = fmt.Errorf("%w: backend must not be empty", ErrFatalConfig)
	ErrBackendUnknown   = fmt.Errorf("%w: unknown backend", ErrFatalConfig)
	ErrMissingToken     = fmt.Errorf("%w: GITHUB_TOKEN / GITHUB_TOKEN_FG not set", ErrFatalConfig)
	ErrMissingRepo      = fmt.Errorf("%w: github owner and repo are required", ErrFatalConfig)
	ErrMissingAPIKey    = fmt.Errorf("%w: decomposition API key not set", ErrFatalConfig)
	ErrTemplateNoTitle  = fmt.Errorf("%w: title template must contain {title}", ErrFatalConfig)
	ErrNegativeDuration = errors.New("duration must not be negative")
)

// GitHubConfig holds the GitHub backend parameters.
type GitHubConfig struct {
	Token         string
	Owner         string
	Repo          string
	ProjectNumber int
	BaseURL       string
}

// DecomposeConfig holds the decomposition service and cache parameters.
type DecomposeConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTasks    int

	CacheEnabled bool
	CacheDir     string
	Regenerate   bool
}

// SyncConfig holds the fan-out policy.
type SyncConfig struct {
	TitleTemplate     string
	SkipIfHasChildren bool
	RateDelay         time.Duration
	OnlyIssues        []int
	StartAt           int
	MaxParents        int
}

// Selected reports whether a parent number passes the OnlyIssues and StartAt
// filters.
func (c SyncConfig) Selected(number int) bool {
	if number < c.StartAt {
		return false
	}
	if len(c.OnlyIssues) == 0 {
		return true
	}
	for _, n := range c.OnlyIssues {
		if n == number {
			return true
		}
	}
	return false
}

// OutlineConfig holds outline pass parameters.
type OutlineConfig struct {
	File     string
	ShowZero bool
}

// NotebookConfig holds notebook generation policy.
type NotebookConfig struct {
	Root          string
	Overwrite     bool
	Placeholders  bool
	MaxChildren   int
	RefreshHeader bool
	SectionHeader string
}

// Config is the complete run configuration. It is built once per process
// and passed to component constructors.
type Config struct {
	Backend string
	DataDir string
	DryRun  bool

	GitHub    GitHubConfig
	Decompose DecomposeConfig
	Sync      SyncConfig
	Outline   OutlineConfig
	Notebook  NotebookConfig
}

// Validate checks the backend selection and the parameters the selected
// backend needs. Decomposition credentials are checked separately by
// ValidateDecompose because many commands never call the model.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return fmt.Errorf("%w: %q", ErrBackendUnknown, c.Backend)
	}
	if c.Backend == BackendGitHub {
		if c.GitHub.Token == "" {
			return ErrMissingToken
		}
		if c.GitHub.Owner == "" || c.GitHub.Repo == "" {
			return ErrMissingRepo
		}
	}
	if c.Sync.TitleTemplate != "" && !strings.Contains(c.Sync.TitleTemplate, "{title}") {
		return ErrTemplateNoTitle
	}
	if c.Sync.RateDelay < 0 {
		return fmt.Errorf("%w: rate_delay: %w", ErrFatalConfig, ErrNegativeDuration)
	}
	return nil
}

// ValidateDecompose checks that the decomposition service is usable.
func (c Config) ValidateDecompose() error {
	if c.Decompose.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}
