package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/storysync/internal/sqlite"
	"github.com/mesh-intelligence/storysync/pkg/types"
)

// Dirs resolves the config directory and, given the data_dir value from
// config.yaml, the data directory.
type Dirs struct {
	ConfigDir func() (string, error)
	DataDir   func(configValue string) (string, error)
}

// InitResult reports what Init did.
type InitResult struct {
	ConfigDir     string `json:"config_dir"`
	ConfigWritten bool   `json:"config_written"`
	Backend       string `json:"backend"`
	DataDir       string `json:"data_dir,omitempty"`
}

// Init writes a default config.yaml if missing and, for the local backend,
// initializes the data directory. Running it again changes nothing.
func Init(dirs Dirs, backend string, logger *zap.Logger) (InitResult, error) {
	configDir, err := dirs.ConfigDir()
	if err != nil {
		return InitResult{}, fmt.Errorf("resolve config dir: %w", err)
	}
	written, err := WriteConfigIfMissing(configDir, DefaultConfigFile(backend))
	if err != nil {
		return InitResult{}, err
	}
	file, err := LoadConfigFile(configDir)
	if err != nil {
		return InitResult{}, err
	}
	res := InitResult{ConfigDir: configDir, ConfigWritten: written, Backend: file.Backend}
	if file.Backend != types.BackendLocal {
		return res, nil
	}

	dataDir, err := dirs.DataDir(file.DataDir)
	if err != nil {
		return res, fmt.Errorf("resolve data dir: %w", err)
	}
	backendImpl := sqlite.NewBackend(logger)
	if err := backendImpl.Attach(types.Config{Backend: types.BackendLocal, DataDir: dataDir}); err != nil {
		return res, fmt.Errorf("initialize storage: %w", err)
	}
	if err := backendImpl.Detach(); err != nil {
		return res, fmt.Errorf("finalize storage: %w", err)
	}
	res.DataDir = dataDir
	return res, nil
}

// NewInitCmd creates the init command. logger is called at run time so the
// root command's logger is used.
func NewInitCmd(dirs Dirs, logger func() *zap.Logger) *cobra.Command {
	var backend string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the config directory and config.yaml; initialize local storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := Init(dirs, backend, logger())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "storysync initialized")
			fmt.Fprintln(out, "  config:", res.ConfigDir)
			if res.DataDir != "" {
				fmt.Fprintln(out, "  data:  ", res.DataDir)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", types.BackendGitHub, "backend written to a new config.yaml (github or local)")
	return cmd
}
