// Package hmr implements hot-module-reload propagation: given a changed
// module, walk its importers to find update boundaries (self-accepting
// modules, or importers that declared acceptedHmrDeps on the changed
// module), or decide the change can't be absorbed and the client must
// hard-reload.
package hmr

import (
	"github.com/devgraph/devgraph/internal/graph"
)

// Propagator walks one ModuleGraph's importer edges to compute HMR
// boundaries for a set of changed modules, per spec §4.2's algorithm:
// self-accept check, accepted-dep check, CSS-importer dead-end marking,
// circular-import detection, and the dead-end-bubbles-up full-reload rule.
type Propagator struct {
	graph *graph.ModuleGraph
}

func NewPropagator(g *graph.ModuleGraph) *Propagator {
	return &Propagator{graph: g}
}

type boundary struct {
	node        *graph.Node
	acceptedVia *graph.Node
	update      Update
}

// PropagateFileChange is the full update-dispatch entry point: it hard
// invalidates every node resolved for the changed file, walks importers to
// find boundaries, and — if the change is absorbable — fills in each
// update's ssrInvalidates set before returning.
func (p *Propagator) PropagateFileChange(changed []*graph.Node, file string, timestamp int64) Result {
	for _, mod := range changed {
		p.graph.InvalidateModule(mod, map[graph.NodeID]bool{}, timestamp, true, false)
	}

	wr := p.propagate(changed, timestamp)
	for i := range wr.Result.Updates {
		wr.Result.Updates[i].SSRInvalidates = p.ssrInvalidates(wr.acceptedVia[i], timestamp)
	}
	return wr.Result
}

// PropagateUpdate is the lower-level boundary walk without invalidation or
// ssrInvalidates population, used by callers (and tests) that only need to
// know whether the change is absorbable and where.
func (p *Propagator) PropagateUpdate(modules []*graph.Node, timestamp int64) Result {
	return p.propagate(modules, timestamp).Result
}

// walkResult pairs the dispatched Result with the acceptedVia node backing
// each Update, in the same order, so PropagateFileChange can compute
// ssrInvalidates without re-walking the graph.
type walkResult struct {
	Result      Result
	acceptedVia []*graph.Node
}

// propagate runs the boundary walk from every changed module and decides
// the outcome per spec §4.2: a dead end found on any path bubbles straight
// up and forces a full reload; no boundaries and no dead end (e.g. none of
// the changed modules has been loaded by a client yet, or every path ends
// in an import cycle with no accepting module) means nothing is
// dispatched; otherwise every collected boundary becomes one Update.
func (p *Propagator) propagate(modules []*graph.Node, timestamp int64) walkResult {
	boundaries := make(map[graph.NodeID]boundary)
	visited := make(map[graph.NodeID]bool)
	anyDeadEnd := false

	for _, mod := range modules {
		if p.walk(mod, false, nil, visited, boundaries, timestamp) {
			anyDeadEnd = true
		}
	}

	if anyDeadEnd {
		return walkResult{Result: Result{FullReload: true}}
	}
	if len(boundaries) == 0 {
		return walkResult{}
	}

	updates := make([]Update, 0, len(boundaries))
	nodes := make([]*graph.Node, 0, len(boundaries))
	for _, b := range boundaries {
		updates = append(updates, b.update)
		nodes = append(nodes, b.acceptedVia)
	}
	return walkResult{Result: Result{Updates: updates}, acceptedVia: nodes}
}

// ssrInvalidates walks acceptedVia's imported modules transitively,
// collecting the ids of nodes stamped with the current HMR pass's
// timestamp — per spec §4.2, these are the modules invalidated during the
// same propagation and must be dropped from the SSR require cache too.
func (p *Propagator) ssrInvalidates(acceptedVia *graph.Node, timestamp int64) []string {
	seen := map[graph.NodeID]bool{acceptedVia.NodeID(): true}
	var out []string
	queue := p.graph.ImportedModules(acceptedVia)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if seen[n.NodeID()] {
			continue
		}
		seen[n.NodeID()] = true
		if n.LastHMRTimestamp == timestamp || n.LastInvalidationTimestamp == timestamp {
			out = append(out, n.ID)
		}
		queue = append(queue, p.graph.ImportedModules(n)...)
	}
	return out
}

// walk implements propagateUpdate from spec §4.2. It returns true if a
// dead end is reached: node itself, or any importer chain walked above it,
// ends at a module with no self-accept, no accepting importer, and no
// importers left to try. A dead end found anywhere bubbles straight up so
// the caller gives up on fine-grained updates for the whole change.
//
// chain is the ancestry of nodes visited so far on this path, not
// including node, used by the secondary circular-import DFS.
func (p *Propagator) walk(
	node *graph.Node,
	explicitImportRequired bool,
	chain []graph.NodeID,
	visited map[graph.NodeID]bool,
	boundaries map[graph.NodeID]boundary,
	timestamp int64,
) bool {
	if visited[node.NodeID()] {
		return false
	}
	visited[node.NodeID()] = true

	// The module has never been loaded — its self-accepting state was
	// never set by a transform — so there is nothing to propagate to yet;
	// the next real fetch gets fresh code regardless.
	if node.ID != "" && node.IsSelfAccepting == graph.SelfAcceptingUnknown {
		return false
	}

	if node.IsSelfAccepting == graph.SelfAcceptingTrue {
		boundaries[node.NodeID()] = boundary{
			node:        node,
			acceptedVia: node,
			update: Update{
				Kind:                   updateKind(node),
				Path:                   node.URL,
				AcceptedPath:           node.URL,
				Timestamp:              timestamp,
				ExplicitImportRequired: explicitImportRequired,
				IsWithinCircularImport: p.isWithinCircularImport(node, chain),
			},
		}
		// PostCSS-style registrations: a CSS importer of a self-accepting
		// module is itself a dependency that may need revisiting even
		// though the self-accepting module already absorbed the change.
		nextChain := append(append([]graph.NodeID(nil), chain...), node.NodeID())
		for _, importer := range p.graph.Importers(node) {
			if importer.Type == graph.ModuleCSS && !inChain(chain, importer.NodeID()) {
				p.walk(importer, explicitImportRequired, nextChain, visited, boundaries, timestamp)
			}
		}
		return false
	}

	// Partial export acceptance is treated as self-accepting from the
	// boundary's standpoint, but still falls through to the importer walk
	// below: an importer consuming bindings outside the accepted set must
	// still be notified.
	partialAccept := len(node.AcceptedHmrExports) > 0
	if partialAccept {
		boundaries[node.NodeID()] = boundary{
			node:        node,
			acceptedVia: node,
			update: Update{
				Kind:                   updateKind(node),
				Path:                   node.URL,
				AcceptedPath:           node.URL,
				Timestamp:              timestamp,
				ExplicitImportRequired: explicitImportRequired,
				IsWithinCircularImport: p.isWithinCircularImport(node, chain),
			},
		}
	} else {
		importers := p.graph.Importers(node)
		if len(importers) == 0 {
			// Dead end: nothing imports this module and it doesn't accept
			// itself.
			return true
		}
		if node.Type != graph.ModuleCSS && allCSS(importers) {
			// A non-CSS dep registered only as a CSS dependency (e.g. a
			// PostCSS plugin's config file): no JS importer can re-import it.
			return true
		}
	}

	nextChain := append(append([]graph.NodeID(nil), chain...), node.NodeID())

	for _, importer := range p.graph.Importers(node) {
		if _, accepted := importer.AcceptedHmrDeps[node.NodeID()]; accepted {
			boundaries[importer.NodeID()] = boundary{
				node:        importer,
				acceptedVia: node,
				update: Update{
					Kind:                   updateKind(node),
					Path:                   importer.URL,
					AcceptedPath:           node.URL,
					Timestamp:              timestamp,
					ExplicitImportRequired: explicitImportRequired,
					IsWithinCircularImport: p.isWithinCircularImport(importer, nextChain),
				},
			}
			continue
		}

		if partialAccept {
			if bindings, ok := importer.ImportedBindings[node.ID]; ok && isSubset(bindings, node.AcceptedHmrExports) {
				// The importer only consumes names node already accepts
				// updates for; it needs no notification of its own.
				continue
			}
		}

		if inChain(chain, importer.NodeID()) {
			continue
		}

		nextExplicit := explicitImportRequired || importer.Type == graph.ModuleCSS
		if p.walk(importer, nextExplicit, nextChain, visited, boundaries, timestamp) {
			return true
		}
	}

	return false
}

// isWithinCircularImport is the secondary DFS from spec §4.2: starting at
// boundaryNode, walk importer edges looking for any node that is an
// ancestor in the original propagation chain. CSS importers are skipped
// and self-edges are ignored, matching the spec's carve-outs for this
// check.
func (p *Propagator) isWithinCircularImport(boundaryNode *graph.Node, chain []graph.NodeID) bool {
	if len(chain) == 0 {
		return false
	}
	inChainSet := make(map[graph.NodeID]bool, len(chain))
	for _, id := range chain {
		inChainSet[id] = true
	}

	seen := map[graph.NodeID]bool{boundaryNode.NodeID(): true}
	queue := []*graph.Node{boundaryNode}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, importer := range p.graph.Importers(cur) {
			if importer.NodeID() == cur.NodeID() {
				continue
			}
			if importer.Type == graph.ModuleCSS {
				continue
			}
			if inChainSet[importer.NodeID()] {
				return true
			}
			if seen[importer.NodeID()] {
				continue
			}
			seen[importer.NodeID()] = true
			queue = append(queue, importer)
		}
	}
	return false
}

func allCSS(nodes []*graph.Node) bool {
	for _, n := range nodes {
		if n.Type != graph.ModuleCSS {
			return false
		}
	}
	return true
}

func isSubset(bindings map[string]struct{}, accepted map[string]struct{}) bool {
	for b := range bindings {
		if _, ok := accepted[b]; !ok {
			return false
		}
	}
	return true
}

func inChain(chain []graph.NodeID, id graph.NodeID) bool {
	for _, c := range chain {
		if c == id {
			return true
		}
	}
	return false
}

func updateKind(node *graph.Node) UpdateKind {
	if node.Type == graph.ModuleCSS {
		return UpdateCSS
	}
	return UpdateJS
}
