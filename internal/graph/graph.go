// Package graph implements the per-environment module graph: indexed
// storage of module nodes plus soft/hard invalidation that correctly
// propagates to importers. It is grounded on the teacher's
// internal/engine/graph.Graph (index tables + RWMutex + clone-on-read) but
// replaces the module/file/language indexing with the url/id/file/etag
// indexing spec §3 requires, and replaces the file-centric node identity
// with an arena-of-nodes addressed by NodeID per Design Note "cyclic module
// graphs".
package graph

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/devgraph/devgraph/internal/devgrapherr"
	"github.com/devgraph/devgraph/internal/observability"
)

// Environment names a plugin+runtime pairing, each with its own module graph.
type Environment string

const (
	EnvClient Environment = "client"
	EnvSSR    Environment = "ssr"
)

// ResolvedID is what a Resolver returns for a raw URL.
type ResolvedID struct {
	ID   string
	Meta map[string]any
}

// Resolver is the injected module-resolution contract (spec §6).
type Resolver interface {
	ResolveID(ctx context.Context, rawURL string) (*ResolvedID, error)
}

type urlFuture struct {
	done chan struct{}
	node *Node
	err  error
}

// ModuleGraph is a single-writer, concurrently-readable index of module
// nodes for one environment.
type ModuleGraph struct {
	mu sync.RWMutex

	env      Environment
	resolver Resolver

	nodes  map[NodeID]*Node
	nextID NodeID

	urlToID   map[string]NodeID
	idToID    map[string]NodeID
	fileToIDs map[string]map[NodeID]struct{}
	etagToID  map[string]NodeID // populated only for EnvClient, per spec §4.1

	urlFutures map[string]*urlFuture // in-flight ensureEntryFromUrl calls, keyed by cleaned url
}

// New creates an empty module graph for one environment.
func New(env Environment, resolver Resolver) *ModuleGraph {
	return &ModuleGraph{
		env:        env,
		resolver:   resolver,
		nodes:      make(map[NodeID]*Node),
		urlToID:    make(map[string]NodeID),
		idToID:     make(map[string]NodeID),
		fileToIDs:  make(map[string]map[NodeID]struct{}),
		etagToID:   make(map[string]NodeID),
		urlFutures: make(map[string]*urlFuture),
	}
}

// stripHMRAndImportQuery removes the `t` (HMR timestamp) and `import` query
// parameters from a raw URL, as spec §4.1 requires before any index lookup.
func stripHMRAndImportQuery(raw string) string {
	path, query, found := strings.Cut(raw, "?")
	if !found {
		return raw
	}
	values := strings.Split(query, "&")
	kept := values[:0]
	for _, v := range values {
		if strings.HasPrefix(v, "t=") || v == "import" || strings.HasPrefix(v, "import=") {
			continue
		}
		kept = append(kept, v)
	}
	if len(kept) == 0 {
		return path
	}
	return path + "?" + strings.Join(kept, "&")
}

// EnsureEntryFromUrl resolves rawURL to its module node, creating one on
// first sight. Concurrent callers for the same raw url are single-flighted:
// the resolver runs at most once (spec §8 "single-flight resolution").
func (g *ModuleGraph) EnsureEntryFromUrl(ctx context.Context, rawURL string) (*Node, error) {
	clean := stripHMRAndImportQuery(rawURL)

	g.mu.Lock()
	if id, ok := g.urlToID[clean]; ok {
		n := g.nodes[id]
		g.mu.Unlock()
		return n, nil
	}
	if fut, ok := g.urlFutures[clean]; ok {
		g.mu.Unlock()
		<-fut.done
		return fut.node, fut.err
	}

	fut := &urlFuture{done: make(chan struct{})}
	g.urlFutures[clean] = fut
	g.mu.Unlock()

	resolved, err := g.resolver.ResolveID(ctx, clean)
	if err != nil {
		fut.err = devgrapherr.Wrap(err, devgrapherr.CodeResolve, "resolve failed").WithContext(devgrapherr.CtxURL, clean)
	} else if resolved == nil {
		fut.err = devgrapherr.New(devgrapherr.CodeResolve, "resolver returned no module").WithContext(devgrapherr.CtxURL, clean)
	}

	if fut.err == nil {
		g.mu.Lock()
		if existingID, ok := g.idToID[resolved.ID]; ok {
			// A node for this resolved id already exists under a
			// different url; register the new url as an alias.
			n := g.nodes[existingID]
			g.urlToID[clean] = existingID
			fut.node = n
		} else {
			n := g.createNodeLocked(clean, resolved.ID, fileFromID(resolved.ID), moduleTypeFromID(resolved.ID))
			n.Meta = resolved.Meta
			fut.node = n
		}
		g.mu.Unlock()
	}

	g.mu.Lock()
	delete(g.urlFutures, clean)
	g.mu.Unlock()

	close(fut.done)
	return fut.node, fut.err
}

// createNodeLocked allocates a new node and indexes it under url/id/file.
// Caller must hold g.mu.
func (g *ModuleGraph) createNodeLocked(url, id, file string, typ ModuleType) *Node {
	nodeID := g.nextID
	g.nextID++

	n := newNode(nodeID, url, id, file, typ)
	g.nodes[nodeID] = n
	g.urlToID[url] = nodeID
	g.idToID[id] = nodeID
	if g.fileToIDs[file] == nil {
		g.fileToIDs[file] = make(map[NodeID]struct{})
	}
	g.fileToIDs[file][nodeID] = struct{}{}

	g.updateGraphMetricsLocked()
	return n
}

func fileFromID(id string) string {
	file, _, _ := strings.Cut(id, "?")
	return file
}

func moduleTypeFromID(id string) ModuleType {
	file := fileFromID(id)
	if strings.HasSuffix(file, ".css") {
		return ModuleCSS
	}
	return ModuleJS
}

// CreateFileOnlyEntry creates a synthetic node reachable only by file path
// (no public url), used for imported assets that have no URL of their own
// (e.g. a CSS @import child). It dedupes against any existing node already
// registered for this exact synthetic url.
func (g *ModuleGraph) CreateFileOnlyEntry(file string) *Node {
	syntheticURL := "/@fs/" + file

	g.mu.Lock()
	defer g.mu.Unlock()

	if id, ok := g.urlToID[syntheticURL]; ok {
		return g.nodes[id]
	}
	return g.createNodeLocked(syntheticURL, syntheticURL, file, moduleTypeFromID(file))
}

// GetModuleByUrl looks up a node by its public url, stripping HMR/import
// query params and awaiting any in-flight resolution for that url.
func (g *ModuleGraph) GetModuleByUrl(rawURL string) (*Node, bool) {
	clean := stripHMRAndImportQuery(rawURL)

	g.mu.RLock()
	if id, ok := g.urlToID[clean]; ok {
		n := g.nodes[id]
		g.mu.RUnlock()
		return n, true
	}
	fut, inFlight := g.urlFutures[clean]
	g.mu.RUnlock()

	if !inFlight {
		return nil, false
	}
	<-fut.done
	if fut.err != nil {
		return nil, false
	}
	return fut.node, true
}

func (g *ModuleGraph) GetModuleById(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	nodeID, ok := g.idToID[id]
	if !ok {
		return nil, false
	}
	return g.nodes[nodeID], true
}

func (g *ModuleGraph) GetModulesByFile(file string) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.fileToIDs[file]
	out := make([]*Node, 0, len(ids))
	for id := range ids {
		out = append(out, g.nodes[id])
	}
	return out
}

func (g *ModuleGraph) GetModuleByEtag(etag string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	nodeID, ok := g.etagToID[etag]
	if !ok {
		return nil, false
	}
	return g.nodes[nodeID], true
}

// ImportSpec is either a raw url to resolve via EnsureEntryFromUrl, or a
// node the caller already holds (e.g. a synthetic file-only entry).
type ImportSpec struct {
	URL  string
	Node *Node
}

// UpdateModuleInfo replaces mod's edge sets following a fresh transform.
// It returns the set of previously-imported modules that, after this
// update, have no importers left (the "no-longer-imported" set spec §4.1
// describes), so callers can decide whether to prune or re-check them.
func (g *ModuleGraph) UpdateModuleInfo(
	ctx context.Context,
	mod *Node,
	imported []ImportSpec,
	bindings map[string]map[string]struct{},
	accepted []*Node,
	acceptedExports map[string]struct{},
	isSelfAccepting SelfAccepting,
	staticImportedIDs map[string]struct{},
) (map[NodeID]*Node, error) {
	resolved := make([]*Node, len(imported))
	g2, ctx := errgroup.WithContext(ctx)
	for i, spec := range imported {
		i, spec := i, spec
		if spec.Node != nil {
			resolved[i] = spec.Node
			continue
		}
		g2.Go(func() error {
			n, err := g.EnsureEntryFromUrl(ctx, spec.URL)
			if err != nil {
				return err
			}
			resolved[i] = n
			return nil
		})
	}
	if err := g2.Wait(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	newImported := make(map[NodeID]struct{}, len(resolved))
	for _, n := range resolved {
		newImported[n.id] = struct{}{}
	}

	noLongerImported := make(map[NodeID]*Node)
	for prevID := range mod.ImportedModules {
		if _, stillImported := newImported[prevID]; stillImported {
			continue
		}
		prev := g.nodes[prevID]
		delete(prev.Importers, mod.id)
		if len(prev.Importers) == 0 {
			noLongerImported[prevID] = prev
		}
	}

	mod.ImportedModules = newImported
	for _, n := range resolved {
		n.Importers[mod.id] = struct{}{}
	}

	mod.StaticImportedURLs = make(map[string]struct{}, len(staticImportedIDs))
	for id := range staticImportedIDs {
		mod.StaticImportedURLs[id] = struct{}{}
	}

	mod.AcceptedHmrDeps = make(map[NodeID]struct{}, len(accepted))
	for _, n := range accepted {
		mod.AcceptedHmrDeps[n.id] = struct{}{}
	}

	mod.AcceptedHmrExports = acceptedExports
	mod.ImportedBindings = bindings
	if mod.ImportedBindings == nil {
		mod.ImportedBindings = make(map[string]map[string]struct{})
	}
	mod.IsSelfAccepting = isSelfAccepting

	return noLongerImported, nil
}

// UpdateModuleTransformResult writes the cached transform payload, clears
// any invalidation marker, and (for the client environment only) indexes
// the node by its new etag.
func (g *ModuleGraph) UpdateModuleTransformResult(mod *Node, result *TransformResult) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if mod.TransformResult != nil && g.env == EnvClient {
		delete(g.etagToID, mod.TransformResult.Etag)
	}

	mod.TransformResult = result
	mod.Invalidation = InvalidationState{Kind: InvalidationFresh}

	if result != nil && g.env == EnvClient && result.Etag != "" {
		g.etagToID[result.Etag] = mod.id
	}
}

// applyInvalidation mutates mod's InvalidationState and returns whether the
// state actually changed, implementing spec §4.1's hard-dominates-soft rule
// and the soft-with-no-prior-result-degrades-to-hard rule.
func applyInvalidation(mod *Node, soft bool) bool {
	before := mod.Invalidation

	if soft && before.Kind == InvalidationHard {
		// Hard wins and sticks until reset.
		return false
	}

	var after InvalidationState
	if soft && mod.TransformResult != nil {
		after = InvalidationState{Kind: InvalidationSoft, Prior: mod.TransformResult}
	} else {
		after = InvalidationState{Kind: InvalidationHard}
	}

	mod.Invalidation = after
	mod.TransformResult = nil
	return !before.equal(after)
}

// InvalidateModule is the core invalidation policy of spec §4.1: it marks
// mod soft- or hard-invalidated, drops its cached transform result and etag
// index entry, and recurses into every importer that hasn't explicitly
// accepted updates from mod, escalating soft to hard for importers that
// don't statically import mod.
func (g *ModuleGraph) InvalidateModule(mod *Node, seen map[NodeID]bool, timestamp int64, isHmr, soft bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invalidateModuleLocked(mod, seen, timestamp, isHmr, soft)
}

func (g *ModuleGraph) invalidateModuleLocked(mod *Node, seen map[NodeID]bool, timestamp int64, isHmr, soft bool) {
	wasSeen := seen[mod.id]
	var priorEtag string
	if mod.TransformResult != nil {
		priorEtag = mod.TransformResult.Etag
	}
	changed := applyInvalidation(mod, soft)

	if wasSeen && !changed {
		return
	}
	seen[mod.id] = true

	if g.env == EnvClient && priorEtag != "" {
		delete(g.etagToID, priorEtag)
	}

	if isHmr {
		mod.LastHMRTimestamp = timestamp
	} else {
		mod.LastInvalidationTimestamp = timestamp
	}

	observability.InvalidationsTotal.WithLabelValues(string(g.env), invalidationLabel(soft)).Inc()

	for importerID := range mod.Importers {
		importer := g.nodes[importerID]
		if _, accepted := importer.AcceptedHmrDeps[mod.id]; accepted {
			continue
		}
		importerSoft := importer.StaticallyImports(mod) || soft
		g.invalidateModuleLocked(importer, seen, timestamp, isHmr, importerSoft)
	}

	g.updateGraphMetricsLocked()
}

func invalidationLabel(soft bool) string {
	if soft {
		return "soft"
	}
	return "hard"
}

// InvalidateAll hard-invalidates every node in the graph using one shared
// seen set, so that invalidations reachable from multiple roots are only
// walked once.
func (g *ModuleGraph) InvalidateAll(timestamp int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	seen := make(map[NodeID]bool, len(g.nodes))
	for _, n := range g.nodes {
		g.invalidateModuleLocked(n, seen, timestamp, false, false)
	}
}

// OnFileChange hard-invalidates every node registered for file.
func (g *ModuleGraph) OnFileChange(file string, timestamp int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := g.fileToIDs[file]
	seen := make(map[NodeID]bool, len(ids))
	for id := range ids {
		g.invalidateModuleLocked(g.nodes[id], seen, timestamp, false, false)
	}
}

func (g *ModuleGraph) updateGraphMetricsLocked() {
	nodeCount := len(g.nodes)
	edgeCount := 0
	for _, n := range g.nodes {
		edgeCount += len(n.ImportedModules)
	}
	observability.GraphNodesTotal.WithLabelValues(string(g.env)).Set(float64(nodeCount))
	observability.GraphEdgesTotal.WithLabelValues(string(g.env)).Set(float64(edgeCount))
}

// Importers resolves mod's importer id set to node pointers, for callers
// (notably the hmr package's boundary walk) that only have access to the
// graph through its exported surface.
func (g *ModuleGraph) Importers(mod *Node) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(mod.Importers))
	for id := range mod.Importers {
		out = append(out, g.nodes[id])
	}
	return out
}

// ImportedModules resolves mod's imported-module id set to node pointers,
// symmetric to Importers.
func (g *ModuleGraph) ImportedModules(mod *Node) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(mod.ImportedModules))
	for id := range mod.ImportedModules {
		out = append(out, g.nodes[id])
	}
	return out
}

// NodeCount and Nodes support tests and diagnostics.
func (g *ModuleGraph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

func (g *ModuleGraph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}
