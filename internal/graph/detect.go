package graph

import "sort"

// DetectCycles returns every import cycle reachable in the graph, each as
// the ordered sequence of node ids from the cycle's entry point back to
// itself (the entry point is not repeated at the end). Backs `devgraphd
// graph cycles` and the dev server's snapshot cycle count; the propagator's
// isWithinCircularImport flag comes from its own DFS, not from here.
func (g *ModuleGraph) DetectCycles() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var cycles [][]string
	visited := make(map[NodeID]bool)
	onStack := make(map[NodeID]bool)

	ids := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if !visited[id] {
			g.findCyclesLocked(id, visited, onStack, nil, &cycles)
		}
	}

	return cycles
}

func (g *ModuleGraph) findCyclesLocked(curr NodeID, visited, onStack map[NodeID]bool, path []NodeID, cycles *[][]string) {
	visited[curr] = true
	onStack[curr] = true
	path = append(path, curr)

	next := make([]NodeID, 0, len(g.nodes[curr].ImportedModules))
	for id := range g.nodes[curr].ImportedModules {
		next = append(next, id)
	}
	sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })

	for _, id := range next {
		if onStack[id] {
			cycleStart := -1
			for i, p := range path {
				if p == id {
					cycleStart = i
					break
				}
			}
			if cycleStart != -1 {
				cycle := make([]string, len(path)-cycleStart)
				for i, p := range path[cycleStart:] {
					cycle[i] = g.nodes[p].ID
				}
				*cycles = append(*cycles, cycle)
			}
		} else if !visited[id] {
			g.findCyclesLocked(id, visited, onStack, path, cycles)
		}
	}

	onStack[curr] = false
}
