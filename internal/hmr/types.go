package hmr

// UpdateKind distinguishes the two update payload shapes a client needs to
// handle differently: a JS module re-import versus a CSS link-tag swap.
type UpdateKind string

const (
	UpdateJS  UpdateKind = "js-update"
	UpdateCSS UpdateKind = "css-update"
)

// Update is one entry in an "update" Payload: the accepting boundary the
// client should re-import, and the path that actually changed.
type Update struct {
	Kind         UpdateKind `json:"type"`
	Path         string     `json:"path"`
	AcceptedPath string     `json:"acceptedPath"`
	Timestamp    int64      `json:"timestamp"`

	// ExplicitImportRequired is set when the boundary was reached by walking
	// up through a CSS importer: the client must re-import the stylesheet tag
	// rather than hot-swap it in place.
	ExplicitImportRequired bool `json:"explicitImportRequired,omitempty"`

	// IsWithinCircularImport flags a boundary discovered via the secondary
	// DFS that detects the module re-entering its own ancestry.
	IsWithinCircularImport bool `json:"isWithinCircularImport,omitempty"`

	// SSRInvalidates is the set of module ids reachable from AcceptedPath
	// that were invalidated in the same HMR pass, and so must also be
	// dropped from the SSR require cache.
	SSRInvalidates []string `json:"ssrInvalidates,omitempty"`
}

// PayloadKind is the discriminant of the Payload union sent over an hmr
// Channel: update, full-reload, prune, custom, or error.
type PayloadKind string

const (
	PayloadUpdate     PayloadKind = "update"
	PayloadFullReload PayloadKind = "full-reload"
	PayloadPrune      PayloadKind = "prune"
	PayloadCustom     PayloadKind = "custom"
	PayloadError      PayloadKind = "error"
)

// Payload is the tagged union of everything PropagateUpdate or the
// optimizer can push down an hmr Channel. Only the fields relevant to Kind
// are populated; the rest stay at their zero value.
type Payload struct {
	Kind PayloadKind `json:"type"`

	// PayloadUpdate
	Updates []Update `json:"updates,omitempty"`

	// PayloadFullReload
	Path string `json:"path,omitempty"`

	// PayloadPrune
	Paths []string `json:"paths,omitempty"`

	// PayloadCustom
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`

	// PayloadError
	ErrMessage string `json:"err,omitempty"`
}

// Result is what PropagateUpdate decides for one changed file: either a set
// of update boundaries, or a signal that nothing can absorb the change and
// the client must hard-reload.
type Result struct {
	FullReload bool
	Updates    []Update
}
