package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRewriteSoftInvalidatedImportsUpdatesChangedImportTimestamp(t *testing.T) {
	g, _ := newTestGraph(map[string]string{"/a.js": "/a.js", "/b.js": "/b.js"})
	ctx := context.Background()
	a, _ := g.EnsureEntryFromUrl(ctx, "/a.js")
	b, _ := g.EnsureEntryFromUrl(ctx, "/b.js")

	_, err := g.UpdateModuleInfo(ctx, a, []ImportSpec{{Node: b}}, nil, nil, nil, SelfAcceptingFalse, nil)
	require.NoError(t, err)

	code := "import \"/b.js\";\n//# sourceMappingURL=a.js.map"
	g.UpdateModuleTransformResult(a, &TransformResult{Code: code, Etag: "e1"})

	b.LastHMRTimestamp = 42
	g.InvalidateModule(a, map[NodeID]bool{}, 42, true, true)
	require.Equal(t, InvalidationSoft, a.Invalidation.Kind)

	rewritten, err := g.RewriteSoftInvalidatedImports(a, 42)
	require.NoError(t, err)
	require.True(t, strings.Contains(rewritten, "/b.js?t=42"))
	require.False(t, strings.Contains(rewritten, "sourceMappingURL=a.js.map"))
}

func TestRewriteSoftInvalidatedImportsErrorsWithoutPriorResult(t *testing.T) {
	g, _ := newTestGraph(map[string]string{"/a.js": "/a.js"})
	ctx := context.Background()
	a, _ := g.EnsureEntryFromUrl(ctx, "/a.js")

	_, err := g.RewriteSoftInvalidatedImports(a, 1)
	require.Error(t, err)
}
