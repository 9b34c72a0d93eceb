// Package paths resolves configuration, data and cache directory locations.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// CWD-relative directory names.
const (
	DefaultConfigDirName = ".storysync"
	DefaultDataDirName   = ".storysync-db"
	DefaultCacheDirName  = ".story_decomp_cache"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "STORYSYNC_CONFIG_DIR"
	EnvDataDir   = "STORYSYNC_DATA_DIR"
	EnvCacheDir  = "STORYSYNC_CACHE_DIR"
)

const appName = "storysync"

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
	getwd         func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
	getwd:         os.Getwd,
}

// DefaultConfigDir returns the platform-specific user configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/storysync (fallback ~/.config/storysync)
// macOS:   ~/Library/Application Support/storysync
// Windows: %APPDATA%/storysync
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", appName), nil
	default:
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appName), nil
	}
}

// ResolveConfigDir returns the configuration directory following the
// precedence chain: flag > STORYSYNC_CONFIG_DIR env > $(CWD)/.storysync.
//
// When the CWD directory does not exist but the platform user directory
// holds a config.yaml, the user directory is used instead, so one personal
// config can serve every checkout.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := platformDir.getwd()
	if err != nil {
		return "", err
	}
	local := filepath.Join(cwd, DefaultConfigDirName)
	if isDir(local) {
		return local, nil
	}
	if user, err := DefaultConfigDir(); err == nil {
		if _, err := os.Stat(filepath.Join(user, "config.yaml")); err == nil {
			return user, nil
		}
	}
	return local, nil
}

// ResolveDataDir returns the local backend data directory following the
// precedence chain: flag > configYAMLValue > STORYSYNC_DATA_DIR env >
// $(CWD)/.storysync-db.
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	return resolve(flag, configYAMLValue, EnvDataDir, DefaultDataDirName)
}

// ResolveCacheDir returns the decomposition cache directory following the
// same precedence as ResolveDataDir, defaulting to
// $(CWD)/.story_decomp_cache.
func ResolveCacheDir(flag, configYAMLValue string) (string, error) {
	return resolve(flag, configYAMLValue, EnvCacheDir, DefaultCacheDirName)
}

func resolve(flag, configYAMLValue, env, defaultName string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configYAMLValue != "" {
		return filepath.Abs(configYAMLValue)
	}
	if v := os.Getenv(env); v != "" {
		return filepath.Abs(v)
	}
	cwd, err := platformDir.getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, defaultName), nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
