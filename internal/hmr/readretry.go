package hmr

import (
	"fmt"
	"os"
	"time"
)

// readRetryAttempts and readRetryInterval implement the spec's mitigation
// for editors that emit a file-change event before the write has actually
// landed on disk: some editors truncate-then-write, so the first read
// right after the fsnotify event can observe a zero-length file.
const (
	readRetryAttempts = 10
	readRetryInterval = 10 * time.Millisecond
)

// ReadFileWithRetry reads path up to readRetryAttempts times, sleeping
// readRetryInterval after each read that fails or comes back empty, and
// returns the first non-empty read. A file still empty after every attempt
// is returned as-is (empty). Only the content and size are checked; the
// file's mtime is not consulted.
func ReadFileWithRetry(path string) ([]byte, error) {
	var last []byte
	var lastErr error
	for attempt := 0; attempt < readRetryAttempts; attempt++ {
		data, err := os.ReadFile(path)
		if err != nil {
			lastErr = err
			time.Sleep(readRetryInterval)
			continue
		}
		if len(data) > 0 {
			return data, nil
		}
		last, lastErr = data, nil
		info, statErr := os.Stat(path)
		if statErr == nil && info.Size() > 0 {
			// A concurrent write landed between ReadFile and Stat; retry
			// after one interval to pick it up.
			time.Sleep(readRetryInterval)
			continue
		}
		time.Sleep(readRetryInterval)
	}
	if lastErr != nil {
		return nil, fmt.Errorf("read %s after %d retries: %w", path, readRetryAttempts, lastErr)
	}
	return last, nil
}
