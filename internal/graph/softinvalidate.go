package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
)

var sourceMapCommentRe = regexp.MustCompile(`//# sourceMappingURL=\S+`)

// RewriteSoftInvalidatedImports rewrites mod's cached, soft-invalidated
// code so the browser re-fetches only the importees that actually changed:
// every statically-imported URL whose target was invalidated at timestamp
// gets a fresh `?t=` query param, and the trailing sourceMappingURL comment
// is regenerated from a fresh etag rather than replayed verbatim from the
// cached string (Design Note "inline source maps on reused transform
// results").
func (g *ModuleGraph) RewriteSoftInvalidatedImports(mod *Node, timestamp int64) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if mod.Invalidation.Kind != InvalidationSoft || mod.Invalidation.Prior == nil {
		return "", fmt.Errorf("graph: module %s has no soft-invalidated transform result to rewrite", mod.ID)
	}

	code := mod.Invalidation.Prior.Code
	for id := range mod.ImportedModules {
		imported, ok := g.nodes[id]
		if !ok {
			continue
		}
		if imported.LastHMRTimestamp == 0 && imported.LastInvalidationTimestamp == 0 {
			continue
		}
		code = rewriteQueryTimestamp(code, imported.URL, timestamp)
	}

	etag := deriveSoftEtag(mod.ID, timestamp)
	return rewriteSourceMappingURL(code, mod.URL, etag), nil
}

func rewriteQueryTimestamp(code, url string, timestamp int64) string {
	re := regexp.MustCompile(regexp.QuoteMeta(url) + `(\?t=\d+)?`)
	return re.ReplaceAllString(code, fmt.Sprintf("%s?t=%d", url, timestamp))
}

func rewriteSourceMappingURL(code, url, etag string) string {
	if !sourceMapCommentRe.MatchString(code) {
		return code
	}
	replacement := fmt.Sprintf("//# sourceMappingURL=%s.map?v=%s", url, etag)
	return sourceMapCommentRe.ReplaceAllString(code, replacement)
}

func deriveSoftEtag(modID string, timestamp int64) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", modID, timestamp)))
	return hex.EncodeToString(h[:])[:10]
}
