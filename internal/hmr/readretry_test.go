package hmr

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReadFileWithRetrySucceedsImmediately(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.js")
	require.NoError(t, os.WriteFile(path, []byte("export default 1"), 0o644))

	data, err := ReadFileWithRetry(path)
	require.NoError(t, err)
	require.Equal(t, "export default 1", string(data))
}

func TestReadFileWithRetryPicksUpDelayedWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.js")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = os.WriteFile(path, []byte("export default 2"), 0o644)
	}()

	data, err := ReadFileWithRetry(path)
	require.NoError(t, err)
	require.Equal(t, "export default 2", string(data))
}

func TestReadFileWithRetryMissingFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadFileWithRetry(filepath.Join(dir, "missing.js"))
	require.Error(t, err)
}
