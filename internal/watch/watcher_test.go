package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devgraph/devgraph/internal/config"
)

func TestWatcherDebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "app.js")
	require.NoError(t, os.WriteFile(file, []byte("a"), 0o644))

	var mu sync.Mutex
	var batches [][]string

	w, err := New(config.Watch{Debounce: 30 * time.Millisecond}, nil, nil, func(paths []string) {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, paths)
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch([]string{dir}))

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(file, []byte("update"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) >= 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches, 1, "rapid writes within the debounce window should collapse into one batch")
}

func TestWatcherExcludesMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	excluded := filepath.Join(dir, "app.test.js")
	included := filepath.Join(dir, "app.js")
	require.NoError(t, os.WriteFile(excluded, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(included, []byte("a"), 0o644))

	var mu sync.Mutex
	var seen []string

	w, err := New(config.Watch{Debounce: 20 * time.Millisecond}, nil, []string{"*.test.js"}, func(paths []string) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, paths...)
	}, nil)
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	require.NoError(t, os.WriteFile(excluded, []byte("b"), 0o644))
	require.NoError(t, os.WriteFile(included, []byte("b"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, p := range seen {
		require.NotEqual(t, excluded, p)
	}
}

func TestWatcherFiresOnLockfileChangeWhenLockfileTouched(t *testing.T) {
	dir := t.TempDir()
	lockfile := filepath.Join(dir, "package-lock.json")
	require.NoError(t, os.WriteFile(lockfile, []byte("{}"), 0o644))

	var mu sync.Mutex
	lockfileFires := 0

	cfg := config.Watch{Debounce: 20 * time.Millisecond, LockfilePatterns: []string{"package-lock.json"}}
	w, err := New(cfg, nil, nil, func([]string) {}, func() {
		mu.Lock()
		defer mu.Unlock()
		lockfileFires++
	})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	require.NoError(t, os.WriteFile(lockfile, []byte(`{"v":2}`), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return lockfileFires > 0
	}, time.Second, 10*time.Millisecond)
}

func TestWatcherSkipsOnLockfileChangeWhenNoLockfileTouched(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "app.js")
	require.NoError(t, os.WriteFile(file, []byte("a"), 0o644))

	var mu sync.Mutex
	regularFires, lockfileFires := 0, 0

	cfg := config.Watch{Debounce: 20 * time.Millisecond, LockfilePatterns: []string{"package-lock.json"}}
	w, err := New(cfg, nil, nil, func([]string) {
		mu.Lock()
		defer mu.Unlock()
		regularFires++
	}, func() {
		mu.Lock()
		defer mu.Unlock()
		lockfileFires++
	})
	require.NoError(t, err)
	defer w.Close()
	require.NoError(t, w.Watch([]string{dir}))

	require.NoError(t, os.WriteFile(file, []byte("b"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return regularFires > 0
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 0, lockfileFires)
}
