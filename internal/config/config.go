// Package config loads the devgraphd TOML configuration file, following
// the same decode-then-default shape as the teacher's config loader.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Root       string     `toml:"root"`
	WatchPaths []string   `toml:"watch_paths"`
	Exclude    Exclude    `toml:"exclude"`
	Watch      Watch      `toml:"watch"`
	Optimizer  Optimizer  `toml:"optimizer"`
	CacheDir   string     `toml:"cache_dir"`
	Output     Output     `toml:"output"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Watch struct {
	Debounce    time.Duration `toml:"debounce"`
	// ReadRetries and ReadRetryMS are decoded and defaulted but not read:
	// hmr.ReadFileWithRetry uses a fixed 10 attempts, 10ms apart.
	ReadRetries int           `toml:"read_retries"`
	ReadRetryMS int           `toml:"read_retry_ms"`
	// LockfilePatterns are glob patterns (matched against basename) that,
	// when changed, force the optimizer to re-bundle against the current
	// dependency set even with no newly discovered missing import — the
	// committed hash no longer reflects the lockfile's contribution to it.
	LockfilePatterns []string `toml:"lockfile_patterns"`
}

// Optimizer configures the dependency pre-bundling strategy and its globs.
type Optimizer struct {
	Strategy      string        `toml:"strategy"` // pre-scan | scan | lazy | eager
	Include       []string      `toml:"include"`  // doublestar globs of bare imports to force-include
	Exclude       []string      `toml:"exclude"`  // doublestar globs of bare imports to never optimize
	// DebounceMS, IdleWindowMS and WatchdogMS are decoded and defaulted but
	// not read: the optimizer uses a fixed 100ms for its debounce, its
	// idle-confirm window and its first-run watchdog.
	DebounceMS    int           `toml:"debounce_ms"`
	IdleWindowMS  int           `toml:"idle_window_ms"`
	WatchdogMS    int           `toml:"watchdog_ms"`
}

type Output struct {
	MetricsAddr string `toml:"metrics_addr"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 100 * time.Millisecond
	}
	if cfg.Watch.ReadRetries == 0 {
		cfg.Watch.ReadRetries = 10
	}
	if cfg.Watch.ReadRetryMS == 0 {
		cfg.Watch.ReadRetryMS = 10
	}
	if len(cfg.Watch.LockfilePatterns) == 0 {
		cfg.Watch.LockfilePatterns = []string{"package-lock.json", "pnpm-lock.yaml", "yarn.lock"}
	}
	if len(cfg.WatchPaths) == 0 {
		cfg.WatchPaths = []string{"."}
	}
	if cfg.Optimizer.Strategy == "" {
		cfg.Optimizer.Strategy = "lazy"
	}
	if cfg.Optimizer.DebounceMS == 0 {
		cfg.Optimizer.DebounceMS = 100
	}
	if cfg.Optimizer.IdleWindowMS == 0 {
		cfg.Optimizer.IdleWindowMS = 100
	}
	if cfg.Optimizer.WatchdogMS == 0 {
		cfg.Optimizer.WatchdogMS = 100
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "node_modules/.devgraph"
	}
	if cfg.Root == "" {
		cfg.Root = "."
	}
}
