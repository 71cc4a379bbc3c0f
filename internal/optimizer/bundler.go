package optimizer

import "context"

// Bundler is the injected pre-bundling backend (spec §6): given the full dep
// set (the already-optimized deps plus those discovered since the last
// commit), it produces new Metadata plus a
// result the optimizer must either Commit or Cancel exactly once.
type Bundler interface {
	Bundle(ctx context.Context, deps map[string]DepInfo) (BundleResult, error)
}

// BundleResult is what one Bundler.Bundle call returns. Commit atomically
// publishes the bundled artifacts (rename a temp dir into place); Cancel
// discards them. Calling neither, or both, is a caller bug.
type BundleResult struct {
	Metadata Metadata
	Commit   func(ctx context.Context) error
	Cancel   func(ctx context.Context) error
}
