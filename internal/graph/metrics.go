package graph

// ModuleMetrics is one node's architectural-significance snapshot, reported
// by devgraphd's graph stats subcommand.
type ModuleMetrics struct {
	FanIn           int
	FanOut          int
	Depth           int // BFS distance from the nearest root (a node with no importers), -1 if unreachable from any root
	ImportanceScore float64
}

// ComputeMetrics reports fan-in/fan-out/depth/importance for every node in
// the graph, weighted the way the teacher's CalculateImportanceScore ranks
// modules, minus the source-level "is this an API surface" heuristic that
// has no equivalent at the single-module granularity this graph works at.
//
//	Score = (FanIn * 2) + (FanOut * 1) + (Depth * 0.5)
func (g *ModuleGraph) ComputeMetrics() map[string]ModuleMetrics {
	g.mu.RLock()
	defer g.mu.RUnlock()

	depth := g.depthsLocked()

	out := make(map[string]ModuleMetrics, len(g.nodes))
	for id, n := range g.nodes {
		fanIn := len(n.Importers)
		fanOut := len(n.ImportedModules)
		d := depth[id]
		score := float64(fanIn*2) + float64(fanOut) + float64(d)*0.5
		out[n.ID] = ModuleMetrics{
			FanIn:           fanIn,
			FanOut:          fanOut,
			Depth:           d,
			ImportanceScore: score,
		}
	}
	return out
}

// depthsLocked runs a multi-source BFS from every node with no importers
// (a root), recording each node's shortest distance from any root. Caller
// must hold g.mu.
func (g *ModuleGraph) depthsLocked() map[NodeID]int {
	depth := make(map[NodeID]int, len(g.nodes))
	var queue []NodeID
	for id, n := range g.nodes {
		if len(n.Importers) == 0 {
			depth[id] = 0
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for id := range g.nodes[curr].ImportedModules {
			if _, seen := depth[id]; seen {
				continue
			}
			depth[id] = depth[curr] + 1
			queue = append(queue, id)
		}
	}

	for id := range g.nodes {
		if _, seen := depth[id]; !seen {
			depth[id] = -1
		}
	}
	return depth
}
