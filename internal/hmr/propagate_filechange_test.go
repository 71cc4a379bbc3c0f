package hmr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devgraph/devgraph/internal/graph"
)

func TestPropagateFileChangeFillsSSRInvalidates(t *testing.T) {
	g := newTestGraph("/leaf.js", "/sibling.js", "/root.js")
	ctx := context.Background()
	leaf, _ := g.EnsureEntryFromUrl(ctx, "/leaf.js")
	sibling, _ := g.EnsureEntryFromUrl(ctx, "/sibling.js")
	root, _ := g.EnsureEntryFromUrl(ctx, "/root.js")

	_, err := g.UpdateModuleInfo(ctx, leaf, nil, nil, nil, nil, graph.SelfAcceptingFalse, nil)
	require.NoError(t, err)
	_, err = g.UpdateModuleInfo(ctx, sibling, nil, nil, nil, nil, graph.SelfAcceptingFalse, nil)
	require.NoError(t, err)
	_, err = g.UpdateModuleInfo(ctx, root, []graph.ImportSpec{{Node: leaf}, {Node: sibling}}, nil, nil, nil, graph.SelfAcceptingTrue, nil)
	require.NoError(t, err)

	const ts int64 = 42
	res := NewPropagator(g).PropagateFileChange([]*graph.Node{leaf}, "/leaf.js", ts)
	require.False(t, res.FullReload)
	require.Len(t, res.Updates, 1)
	require.Equal(t, "/root.js", res.Updates[0].AcceptedPath)
	require.Contains(t, res.Updates[0].SSRInvalidates, leaf.ID)
	require.NotContains(t, res.Updates[0].SSRInvalidates, sibling.ID)
}

func TestPropagateFileChangeHardInvalidatesChangedModule(t *testing.T) {
	g := newTestGraph("/leaf.js")
	ctx := context.Background()
	leaf, _ := g.EnsureEntryFromUrl(ctx, "/leaf.js")
	g.UpdateModuleTransformResult(leaf, &graph.TransformResult{Code: "x", Etag: "e1"})
	_, err := g.UpdateModuleInfo(ctx, leaf, nil, nil, nil, nil, graph.SelfAcceptingTrue, nil)
	require.NoError(t, err)

	NewPropagator(g).PropagateFileChange([]*graph.Node{leaf}, "/leaf.js", 1)
	require.Equal(t, graph.InvalidationHard, leaf.Invalidation.Kind)
}

func TestPropagateFileChangeDeadEndFullReload(t *testing.T) {
	g := newTestGraph("/orphan.js")
	ctx := context.Background()
	orphan, _ := g.EnsureEntryFromUrl(ctx, "/orphan.js")
	_, err := g.UpdateModuleInfo(ctx, orphan, nil, nil, nil, nil, graph.SelfAcceptingFalse, nil)
	require.NoError(t, err)

	res := NewPropagator(g).PropagateFileChange([]*graph.Node{orphan}, "/orphan.js", 1)
	require.True(t, res.FullReload)
}

// A module whose first real transform hasn't happened yet (isSelfAccepting
// still unknown) stops propagation rather than forcing a reload — nobody
// has loaded it, so there's nothing to update and the next fetch gets
// fresh code regardless.
func TestPropagateFileChangeNeverLoadedModuleEmitsNothing(t *testing.T) {
	g := newTestGraph("/unloaded.js")
	ctx := context.Background()
	unloaded, _ := g.EnsureEntryFromUrl(ctx, "/unloaded.js")

	res := NewPropagator(g).PropagateFileChange([]*graph.Node{unloaded}, "/unloaded.js", 1)
	require.False(t, res.FullReload)
	require.Empty(t, res.Updates)
}
