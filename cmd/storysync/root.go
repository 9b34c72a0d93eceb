package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mesh-intelligence/storysync/internal/cli"
	"github.com/mesh-intelligence/storysync/internal/paths"
	"github.com/mesh-intelligence/storysync/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// exitError carries an explicit exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// sysError marks err as a runtime failure.
func sysError(err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: exitSysError, err: err}
}

// exitCode maps an error to the process exit code. Transient tracker or
// model failures and explicit runtime failures are system errors;
// everything else (bad flags, bad config, unknown issues) is a user error.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, types.ErrTransient) || errors.Is(err, types.ErrInvariantViolation) {
		return exitSysError
	}
	return exitUserError
}

// app holds the global flag values and per-run state shared by commands.
type app struct {
	flagConfigDir string
	flagDataDir   string
	flagDryRun    bool
	flagVerbose   bool
	flagJSON      bool

	configDir string
	v         *viper.Viper
	logger    *zap.Logger
}

// flagKeys maps command flag names onto config keys so that flags override
// config.yaml and the environment.
var flagKeys = map[string]string{
	"dry-run":              cfgKeyDryRun,
	"data-dir":             cfgKeyDataDir,
	"backend":              cfgKeyBackend,
	"template":             cfgKeyTitleTemplate,
	"rate-delay":           cfgKeyRateDelay,
	"skip-if-has-children": cfgKeySkipIfHasChildren,
	"only":                 cfgKeyOnlyIssues,
	"start-at":             cfgKeyStartAt,
	"max-parents":          cfgKeyMaxParents,
	"cache":                cfgKeyCacheEnabled,
	"cache-dir":            cfgKeyCacheDir,
	"regenerate":           cfgKeyCacheRegenerate,
	"max-tasks":            cfgKeyMaxTasks,
	"model":                cfgKeyModel,
	"outline":              cfgKeyOutlineFile,
	"show-zero":            cfgKeyShowZero,
	"notebook-root":        cfgKeyNotebookRoot,
	"overwrite":            cfgKeyNotebookOverwrite,
	"placeholders":         cfgKeyNotebookPlaceholders,
	"max-children":         cfgKeyNotebookMaxChildren,
	"refresh-header":       cfgKeyNotebookRefreshHeader,
	"section-header":       cfgKeyNotebookSectionHeader,
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:     "storysync",
		Short:   "Keep stories, child issues, notebooks and the outline in sync",
		Version: cli.Version,

		SilenceUsage:  true,
		SilenceErrors: true,

		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(a.flagVerbose)
			if err != nil {
				return sysError(fmt.Errorf("create logger: %w", err))
			}
			a.logger = logger

			if cmd.Name() == "version" || cmd.Name() == "init" {
				return nil
			}
			configDir, err := paths.ResolveConfigDir(a.flagConfigDir)
			if err != nil {
				return sysError(err)
			}
			v, err := loadConfig(configDir)
			if err != nil {
				return err
			}
			var bindErr error
			cmd.Flags().VisitAll(func(f *pflag.Flag) {
				if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
					bindErr = v.BindPFlag(key, f)
				}
			})
			if bindErr != nil {
				return sysError(bindErr)
			}
			a.configDir, a.v = configDir, v
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &exitError{code: exitUserError, err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flagConfigDir, "config-dir", "", "configuration directory (default: $(CWD)/.storysync)")
	pf.StringVar(&a.flagDataDir, "data-dir", "", "local backend data directory (default: $(CWD)/.storysync-db)")
	pf.BoolVar(&a.flagDryRun, "dry-run", false, "make every decision but write nothing")
	pf.BoolVarP(&a.flagVerbose, "verbose", "v", false, "debug logging")
	pf.BoolVar(&a.flagJSON, "json", false, "output as JSON")

	dirs := cli.Dirs{
		ConfigDir: func() (string, error) { return paths.ResolveConfigDir(a.flagConfigDir) },
		DataDir:   func(cfgValue string) (string, error) { return paths.ResolveDataDir(a.flagDataDir, cfgValue) },
	}
	root.AddCommand(cli.NewVersionCmd())
	root.AddCommand(cli.NewInitCmd(dirs, func() *zap.Logger { return a.logger }))
	root.AddCommand(newDecomposeCmd(a))
	root.AddCommand(newSyncCmd(a))
	root.AddCommand(newLinkCmd(a))
	root.AddCommand(newProgressCmd(a))
	root.AddCommand(newNotebooksCmd(a))
	root.AddCommand(newNotebookLinksCmd(a))
	root.AddCommand(newRunCmd(a))
	root.AddCommand(newIssueCmd(a))
	return root
}

// newLogger builds a console logger on stderr, at debug level when verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	cfg.Sampling = nil
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
