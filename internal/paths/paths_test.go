package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withCWD points the working-directory lookup at dir for the test.
func withCWD(t *testing.T, dir string) {
	t.Helper()
	prev := platformDir.getwd
	platformDir.getwd = func() (string, error) { return dir, nil }
	t.Cleanup(func() { platformDir.getwd = prev })
}

func TestDefaultConfigDir_Linux(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("linux-only test")
	}

	t.Run("uses XDG_CONFIG_HOME when set", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
		got, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, "/tmp/xdg-config/storysync", got)
	})

	t.Run("falls back to ~/.config when XDG unset", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, err := os.UserHomeDir()
		require.NoError(t, err)

		got, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".config", "storysync"), got)
	})
}

func TestDefaultConfigDir_Darwin(t *testing.T) {
	if runtime.GOOS != "darwin" {
		t.Skip("darwin-only test")
	}

	got, err := DefaultConfigDir()
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Library", "Application Support", "storysync"), got)
}

func TestResolveConfigDir(t *testing.T) {
	cwd := t.TempDir()
	withCWD(t, cwd)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	tests := []struct {
		name   string
		flag   string
		envVal string
		want   string
	}{
		{
			name:   "flag wins over env",
			flag:   "/explicit/config",
			envVal: "/env/config",
			want:   "/explicit/config",
		},
		{
			name:   "env wins when flag empty",
			envVal: "/env/config",
			want:   "/env/config",
		},
		{
			name: "cwd default when both empty",
			want: filepath.Join(cwd, DefaultConfigDirName),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfigDir, tt.envVal)
			got, err := ResolveConfigDir(tt.flag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveConfigDir_UserFallback(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("linux-only test")
	}
	cwd := t.TempDir()
	withCWD(t, cwd)
	t.Setenv(EnvConfigDir, "")
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	user := filepath.Join(xdg, "storysync")
	require.NoError(t, os.MkdirAll(user, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(user, "config.yaml"), []byte("backend: local\n"), 0o644))

	got, err := ResolveConfigDir("")
	require.NoError(t, err)
	assert.Equal(t, user, got, "user config used when no local dir exists")

	local := filepath.Join(cwd, DefaultConfigDirName)
	require.NoError(t, os.MkdirAll(local, 0o755))
	got, err = ResolveConfigDir("")
	require.NoError(t, err)
	assert.Equal(t, local, got, "local dir wins once it exists")
}

func TestResolveDataAndCacheDir(t *testing.T) {
	cwd := t.TempDir()
	withCWD(t, cwd)

	tests := []struct {
		name     string
		resolve  func(flag, cfg string) (string, error)
		env      string
		flag     string
		cfgValue string
		envVal   string
		want     string
	}{
		{name: "data flag wins over all", resolve: ResolveDataDir, env: EnvDataDir,
			flag: "/flag/data", cfgValue: "/config/data", envVal: "/env/data", want: "/flag/data"},
		{name: "data config.yaml wins over env", resolve: ResolveDataDir, env: EnvDataDir,
			cfgValue: "/config/data", envVal: "/env/data", want: "/config/data"},
		{name: "data env wins when flag and config empty", resolve: ResolveDataDir, env: EnvDataDir,
			envVal: "/env/data", want: "/env/data"},
		{name: "data cwd default", resolve: ResolveDataDir, env: EnvDataDir,
			want: filepath.Join(cwd, DefaultDataDirName)},
		{name: "cache env", resolve: ResolveCacheDir, env: EnvCacheDir,
			envVal: "/env/cache", want: "/env/cache"},
		{name: "cache cwd default", resolve: ResolveCacheDir, env: EnvCacheDir,
			want: filepath.Join(cwd, DefaultCacheDirName)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.envVal)
			got, err := tt.resolve(tt.flag, tt.cfgValue)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDataDir_RelativePathsBecomeAbsolute(t *testing.T) {
	got, err := ResolveDataDir("relative/data", "")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}
