package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/storysync/internal/cli"
	"github.com/mesh-intelligence/storysync/internal/paths"
	"github.com/mesh-intelligence/storysync/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "STORYSYNC"
)

// Config keys. Nested keys use dots; their environment names use
// underscores, e.g. STORYSYNC_NOTEBOOK_MAX_CHILDREN.
const (
	cfgKeyBackend = "backend"
	cfgKeyDataDir = "data_dir"
	cfgKeyDryRun  = "dry_run"

	cfgKeyGitHubToken   = "github.token"
	cfgKeyGitHubOwner   = "github.owner"
	cfgKeyGitHubRepo    = "github.repo"
	cfgKeyGitHubProject = "github.project_number"
	cfgKeyGitHubBaseURL = "github.base_url"

	cfgKeyAPIKey      = "decompose.api_key"
	cfgKeyModel       = "decompose.model"
	cfgKeyTemperature = "decompose.temperature"
	cfgKeyMaxTasks    = "decompose.max_tasks"

	cfgKeyTitleTemplate     = "title_template"
	cfgKeyRateDelay         = "rate_delay"
	cfgKeySkipIfHasChildren = "skip_if_has_children"
	cfgKeyOnlyIssues        = "only_issues"
	cfgKeyStartAt           = "start_at"
	cfgKeyMaxParents        = "max_parents"

	cfgKeyCacheEnabled    = "cache.enabled"
	cfgKeyCacheDir        = "cache.dir"
	cfgKeyCacheRegenerate = "cache.regenerate"

	cfgKeyOutlineFile  = "outline_file"
	cfgKeyNotebookRoot = "notebook_root"
	cfgKeyShowZero     = "show_zero"

	cfgKeyNotebookOverwrite     = "notebook.overwrite"
	cfgKeyNotebookPlaceholders  = "notebook.placeholders"
	cfgKeyNotebookMaxChildren   = "notebook.max_children"
	cfgKeyNotebookRefreshHeader = "notebook.refresh_header"
	cfgKeyNotebookSectionHeader = "notebook_section_header"
)

// loadConfig reads config.yaml from configDir using Viper, writing a default
// file on first run. Environment variables override the file.
func loadConfig(configDir string) (*viper.Viper, error) {
	if _, err := cli.WriteConfigIfMissing(configDir, cli.DefaultConfigFile("")); err != nil {
		return nil, sysError(fmt.Errorf("ensure default config: %w", err))
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Conventional unprefixed names for secrets.
	_ = v.BindEnv(cfgKeyGitHubToken, envPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN", "GITHUB_TOKEN_FG")
	_ = v.BindEnv(cfgKeyAPIKey, envPrefix+"_DECOMPOSE_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("%w: read config: %w", types.ErrFatalConfig, err)
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(cfgKeyBackend, types.BackendGitHub)
	v.SetDefault(cfgKeyGitHubProject, types.DefaultProjectNumber)
	v.SetDefault(cfgKeyModel, types.DefaultModel)
	v.SetDefault(cfgKeyTemperature, types.DefaultTemperature)
	v.SetDefault(cfgKeyMaxTasks, types.DefaultMaxTasks)
	v.SetDefault(cfgKeyTitleTemplate, types.DefaultTitleTemplate)
	v.SetDefault(cfgKeyRateDelay, types.DefaultRateDelay)
	v.SetDefault(cfgKeyOutlineFile, types.DefaultOutlineFile)
	v.SetDefault(cfgKeyNotebookRoot, ".")
	v.SetDefault(cfgKeyNotebookSectionHeader, types.DefaultNotebookSection)
}

// buildConfig materializes the run configuration from v and validates it.
func (a *app) buildConfig() (types.Config, error) {
	v := a.v
	dataDir, err := paths.ResolveDataDir(a.flagDataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, sysError(err)
	}
	cacheDir, err := paths.ResolveCacheDir("", v.GetString(cfgKeyCacheDir))
	if err != nil {
		return types.Config{}, sysError(err)
	}
	only, err := cast.ToIntSliceE(intList(v.Get(cfgKeyOnlyIssues)))
	if err != nil {
		return types.Config{}, fmt.Errorf("%w: only_issues: %w", types.ErrFatalConfig, err)
	}

	cfg := types.Config{
		Backend: v.GetString(cfgKeyBackend),
		DataDir: dataDir,
		DryRun:  v.GetBool(cfgKeyDryRun),
		GitHub: types.GitHubConfig{
			Token:         v.GetString(cfgKeyGitHubToken),
			Owner:         v.GetString(cfgKeyGitHubOwner),
			Repo:          v.GetString(cfgKeyGitHubRepo),
			ProjectNumber: v.GetInt(cfgKeyGitHubProject),
			BaseURL:       v.GetString(cfgKeyGitHubBaseURL),
		},
		Decompose: types.DecomposeConfig{
			APIKey:       v.GetString(cfgKeyAPIKey),
			Model:        v.GetString(cfgKeyModel),
			Temperature:  float32(v.GetFloat64(cfgKeyTemperature)),
			MaxTasks:     v.GetInt(cfgKeyMaxTasks),
			CacheEnabled: v.GetBool(cfgKeyCacheEnabled),
			CacheDir:     cacheDir,
			Regenerate:   v.GetBool(cfgKeyCacheRegenerate),
		},
		Sync: types.SyncConfig{
			TitleTemplate:     v.GetString(cfgKeyTitleTemplate),
			SkipIfHasChildren: v.GetBool(cfgKeySkipIfHasChildren),
			RateDelay:         v.GetDuration(cfgKeyRateDelay),
			OnlyIssues:        only,
			StartAt:           v.GetInt(cfgKeyStartAt),
			MaxParents:        v.GetInt(cfgKeyMaxParents),
		},
		Outline: types.OutlineConfig{
			File:     v.GetString(cfgKeyOutlineFile),
			ShowZero: v.GetBool(cfgKeyShowZero),
		},
		Notebook: types.NotebookConfig{
			Root:          v.GetString(cfgKeyNotebookRoot),
			Overwrite:     v.GetBool(cfgKeyNotebookOverwrite),
			Placeholders:  v.GetBool(cfgKeyNotebookPlaceholders),
			MaxChildren:   v.GetInt(cfgKeyNotebookMaxChildren),
			RefreshHeader: v.GetBool(cfgKeyNotebookRefreshHeader),
			SectionHeader: v.GetString(cfgKeyNotebookSectionHeader),
		},
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// intList accepts the forms only_issues arrives in: a YAML list, a flag
// slice, or a comma or space separated environment string.
func intList(v any) any {
	if v == nil {
		return []int{}
	}
	s, ok := v.(string)
	if !ok {
		return v
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return []int{}
	}
	return fields
}
