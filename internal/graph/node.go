package graph

// NodeID addresses a module node within one ModuleGraph's arena. Edges are
// stored as sets of NodeID rather than intrusive pointers between nodes, so
// that cyclic import graphs carry no cyclic Go ownership.
type NodeID int

// ModuleType distinguishes the two module kinds the propagator treats
// specially (CSS dead-end and CSS-importer rules in hmr.PropagateUpdate).
type ModuleType string

const (
	ModuleJS  ModuleType = "js"
	ModuleCSS ModuleType = "css"
)

// SelfAccepting is the tri-state {unknown, true, false} from spec §3 and
// Design Note "tri-state self accepting" — modelled as an explicit enum
// rather than a nullable bool, whose zero value is the "not yet analyzed"
// state a module carries before its first transform.
type SelfAccepting int

const (
	SelfAcceptingUnknown SelfAccepting = iota
	SelfAcceptingTrue
	SelfAcceptingFalse
)

// InvalidationKind tags the InvalidationState union: fresh (no
// invalidation), hard (must re-transform), or soft (prior transform result
// preserved for the import-rewrite fast path).
type InvalidationKind int

const (
	InvalidationFresh InvalidationKind = iota
	InvalidationHard
	InvalidationSoft
)

// InvalidationState is the tagged variant described in Design Note
// "soft-invalidation union type": it carries either nothing, a hard marker,
// or the prior TransformResult, never a bare nullable pointer with
// ambiguous meaning.
type InvalidationState struct {
	Kind  InvalidationKind
	Prior *TransformResult // populated only when Kind == InvalidationSoft
}

func (s InvalidationState) equal(other InvalidationState) bool {
	return s.Kind == other.Kind && s.Prior == other.Prior
}

// TransformResult is the cached post-transform payload for one module.
type TransformResult struct {
	Code        string
	Map         string
	Etag        string
	Deps        []string
	DynamicDeps []string
}

// Node is one module node: one per (environment, resolved URL).
type Node struct {
	id NodeID

	URL  string
	ID   string
	File string
	Type ModuleType

	Importers       map[NodeID]struct{}
	ImportedModules map[NodeID]struct{}

	// StaticImportedURLs is the subset of ImportedModules that are
	// statically imported in code (as opposed to dynamic `import()`),
	// keyed by the imported node's id. Used by soft invalidation to
	// decide whether an importer statically depends on a changed module.
	StaticImportedURLs map[string]struct{}

	AcceptedHmrDeps    map[NodeID]struct{}
	AcceptedHmrExports map[string]struct{} // nil if the module accepts no exports

	// ImportedBindings maps importee id -> set of binding names this
	// module consumes from it.
	ImportedBindings map[string]map[string]struct{}

	IsSelfAccepting SelfAccepting

	TransformResult *TransformResult
	Invalidation    InvalidationState

	LastHMRTimestamp          int64
	LastInvalidationTimestamp int64

	Meta map[string]any
	Info map[string]any
}

func newNode(id NodeID, url, resolvedID, file string, typ ModuleType) *Node {
	return &Node{
		id:                 id,
		URL:                url,
		ID:                 resolvedID,
		File:               file,
		Type:               typ,
		Importers:          make(map[NodeID]struct{}),
		ImportedModules:    make(map[NodeID]struct{}),
		StaticImportedURLs: make(map[string]struct{}),
		AcceptedHmrDeps:    make(map[NodeID]struct{}),
		ImportedBindings:   make(map[string]map[string]struct{}),
		Invalidation:       InvalidationState{Kind: InvalidationFresh},
	}
}

// StaticallyImports reports whether this node statically imports the given
// node, used by invalidateModule to decide soft vs. hard propagation.
func (n *Node) StaticallyImports(other *Node) bool {
	_, ok := n.StaticImportedURLs[other.ID]
	return ok
}

// NodeID returns this node's arena address, for callers outside the graph
// package (e.g. hmr's boundary walk) that need it as a map key.
func (n *Node) NodeID() NodeID {
	return n.id
}
