package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/devgraph/devgraph/internal/graph"
	"github.com/devgraph/devgraph/internal/optimizer"
)

// fsResolver resolves module URLs against a filesystem root the way a real
// plugin pipeline's resolveId hook would, trying a short list of JS/TS
// extensions and index files. It exists because this repo's graph.Resolver
// is an injected boundary (spec §6) with no third-party library behind it
// in the retrieved pack — every resolution concern the pack ships a library
// for (watching, globbing, parsing) is already wired elsewhere.
type fsResolver struct {
	root string
}

var resolveExtensions = []string{"", ".js", ".jsx", ".ts", ".tsx", "/index.js", "/index.ts"}

func (r fsResolver) ResolveID(_ context.Context, rawURL string) (*graph.ResolvedID, error) {
	clean := strings.SplitN(rawURL, "?", 2)[0]
	candidate := filepath.Join(r.root, filepath.FromSlash(clean))

	for _, suffix := range resolveExtensions {
		p := candidate + suffix
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return &graph.ResolvedID{ID: clean + suffix}, nil
		}
	}
	return &graph.ResolvedID{ID: clean}, nil
}

// passthroughBundler is the default optimizer.Bundler: it reports every
// requested dep already bundled at its resolved path with no interop
// rewriting, and commits unconditionally. A real deployment injects a
// bundler backed by an actual JS bundling toolchain; none is present in the
// retrieved pack, so this stands in as the minimal contract-satisfying
// implementation `devgraphd optimize`/`serve` run against by default.
type passthroughBundler struct{}

func (passthroughBundler) Bundle(_ context.Context, deps map[string]optimizer.DepInfo) (optimizer.BundleResult, error) {
	optimized := make(map[string]optimizer.DepInfo, len(deps))
	for id, info := range deps {
		info.Src = info.File
		optimized[id] = info
	}
	return optimizer.BundleResult{
		Metadata: optimizer.Metadata{
			Hash:      contentHashOf(optimized),
			Optimized: optimized,
			Chunks:    map[string]optimizer.DepInfo{},
		},
		Commit: func(_ context.Context) error { return nil },
		Cancel: func(_ context.Context) error { return nil },
	}, nil
}

func contentHashOf(deps map[string]optimizer.DepInfo) string {
	ids := make([]string, 0, len(deps))
	for id := range deps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
		h.Write([]byte(deps[id].File))
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
