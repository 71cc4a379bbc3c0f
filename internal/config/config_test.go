package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "devgraph.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, []string{"."}, cfg.WatchPaths)
	require.Equal(t, 100*time.Millisecond, cfg.Watch.Debounce)
	require.Equal(t, 10, cfg.Watch.ReadRetries)
	require.Equal(t, []string{"package-lock.json", "pnpm-lock.yaml", "yarn.lock"}, cfg.Watch.LockfilePatterns)
	require.Equal(t, "lazy", cfg.Optimizer.Strategy)
	require.Equal(t, "node_modules/.devgraph", cfg.CacheDir)
}

func TestLoadHonorsExplicitValues(t *testing.T) {
	path := writeConfig(t, `
watch_paths = ["src", "lib"]
cache_dir = ".cache/devgraph"

[watch]
debounce = "250ms"

[optimizer]
strategy = "pre-scan"
include = ["lodash*"]
exclude = ["@scope/**"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, []string{"src", "lib"}, cfg.WatchPaths)
	require.Equal(t, ".cache/devgraph", cfg.CacheDir)
	require.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
	require.Equal(t, "pre-scan", cfg.Optimizer.Strategy)
	require.Equal(t, []string{"lodash*"}, cfg.Optimizer.Include)
	require.Equal(t, []string{"@scope/**"}, cfg.Optimizer.Exclude)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
