package optimizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/devgraph/devgraph/internal/lru"
	"github.com/devgraph/devgraph/internal/observability"
)

// State is one of the five states a pre-bundling run moves through.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateDebouncing
	StateProcessing
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateDebouncing:
		return "debouncing"
	case StateProcessing:
		return "processing"
	case StateCommitting:
		return "committing"
	default:
		return "unknown"
	}
}

const (
	debounceDelay = 100 * time.Millisecond
	discoveredCap = 4096
)

type discoveredDep struct {
	info       DepInfo
	processing chan struct{}
}

// CommitResult is what the optimizer reports after a batch commits (a
// cancelled or failed batch is not reported), consumed by the dev server to decide whether to broadcast a full reload.
type CommitResult struct {
	NeedsReload bool
	Metadata    Metadata
	RunID       string
}

// Optimizer runs the dependency pre-bundling state machine of spec §4.3.
// All state transitions happen under a single mutex — there is no
// goroutine-per-request fan-out, mirroring the single-writer discipline the
// module graph uses.
type Optimizer struct {
	mu sync.Mutex

	bundler Bundler
	scan    ScanConfig
	log     *slog.Logger

	state    State
	metadata Metadata

	discovered *lru.Cache[string, *discoveredDep]

	currentFuture chan struct{}
	queuedFutures []chan struct{}

	debounceTimer           *time.Timer
	newDepsDiscoveredMidRun bool

	// first-run gate
	canArmDebounce   bool
	waitlist         map[string]struct{}
	workerExempt     map[string]struct{}
	watchdogOnce     sync.Once
	idleRetryLimiter *rate.Limiter

	onCommit func(CommitResult)
}

func New(bundler Bundler, scan ScanConfig, log *slog.Logger, onCommit func(CommitResult)) *Optimizer {
	if log == nil {
		log = slog.Default()
	}
	o := &Optimizer{
		bundler:          bundler,
		scan:             scan,
		log:              log,
		metadata:         newMetadata(),
		waitlist:         make(map[string]struct{}),
		workerExempt:     make(map[string]struct{}),
		idleRetryLimiter: rate.NewLimiter(rate.Every(debounceDelay), 1),
		onCommit:         onCommit,
	}
	o.discovered = lru.NewWithEvict[string, *discoveredDep](discoveredCap, o.onDepEvicted)
	return o
}

// onDepEvicted runs when the discovered-deps LRU drops an entry for
// capacity rather than for a resolved commit. The caller that registered
// id is still holding the processing channel from this discoveredDep, and
// that channel only closes when its batch commits — once the entry itself
// is gone, nothing will ever close it for that caller, so this is the
// only place that can at least surface the stall.
func (o *Optimizer) onDepEvicted(id string, dd *discoveredDep) {
	observability.OptimizerDiscoveredEvictedTotal.Inc()
	o.log.Warn("discovered dep evicted before its batch committed", "id", id)
}

func (o *Optimizer) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// MarkScanComplete opens the first-run gate via the pre-scan path (a) of
// the first-run gate described in spec §4.3.
func (o *Optimizer) MarkScanComplete() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.openGateLocked()
}

// openGateLocked opens the first-run gate, letting registerMissingImport
// start arming the debounce timer. Caller must hold o.mu.
func (o *Optimizer) openGateLocked() {
	o.canArmDebounce = true
	o.maybeArmLocked()
}

// RegisterMissingImport is the entry point called by the transform pipeline
// on an unresolved bare import. It returns the DepInfo the caller should
// use to rewrite the URL immediately, and a channel that closes once the
// batch this dep belongs to resolves.
func (o *Optimizer) RegisterMissingImport(id, resolvedPath string) (DepInfo, <-chan struct{}) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if info, ok := o.metadata.Optimized[id]; ok {
		return info, closedChan()
	}
	if info, ok := o.metadata.Chunks[id]; ok {
		return info, closedChan()
	}
	if dd, ok := o.discovered.Get(id); ok {
		return dd.info, dd.processing
	}

	if !o.scan.Allows(id) {
		return DepInfo{ID: id, File: resolvedPath}, closedChan()
	}

	if o.currentFuture == nil {
		o.currentFuture = make(chan struct{})
	}
	if o.state == StateProcessing || o.state == StateCommitting {
		o.newDepsDiscoveredMidRun = true
	}

	info := DepInfo{
		ID:          id,
		File:        resolvedPath,
		BrowserHash: o.speculativeBrowserHash(id),
	}
	dd := &discoveredDep{info: info, processing: o.currentFuture}
	o.discovered.Put(id, dd)
	observability.OptimizerDiscoveredTotal.Inc()

	o.maybeArmLocked()

	return info, dd.processing
}

// speculativeBrowserHash mirrors spec §4.3's h(currentHash ‖ deps ‖ missing
// ‖ session) formula with a content hash over the committed hash, the
// currently discovered dep ids, and the new id.
func (o *Optimizer) speculativeBrowserHash(id string) string {
	keys := o.discovered.Keys()
	sort.Strings(keys)
	h := sha256.New()
	h.Write([]byte(o.metadata.Hash))
	for _, k := range keys {
		h.Write([]byte(k))
	}
	h.Write([]byte(id))
	return hex.EncodeToString(h.Sum(nil))[:10]
}

// maybeArmLocked arms the debounce timer if the first-run gate is open and
// no batch is currently in flight. A batch already processing or
// committing folds new discoveries into the next run instead, per the
// "batches are strictly serial" rule.
func (o *Optimizer) maybeArmLocked() {
	if !o.canArmDebounce {
		return
	}
	if o.state == StateProcessing || o.state == StateCommitting {
		return
	}
	if o.discovered.Len() == 0 {
		return
	}
	if o.state == StateIdle {
		o.state = StateDebouncing
		observability.OptimizerState.Set(float64(o.state))
	}
	if o.debounceTimer != nil {
		o.debounceTimer.Stop()
	}
	o.debounceTimer = time.AfterFunc(debounceDelay, o.onDebounceElapsed)
}

func (o *Optimizer) onDebounceElapsed() {
	o.mu.Lock()
	if o.state != StateDebouncing {
		o.mu.Unlock()
		return
	}
	o.state = StateProcessing
	observability.OptimizerState.Set(float64(o.state))
	o.newDepsDiscoveredMidRun = false

	newDeps := make(map[string]DepInfo, len(o.metadata.Optimized)+o.discovered.Len())
	for k, v := range o.metadata.Optimized {
		newDeps[k] = v
	}
	for _, k := range o.discovered.Keys() {
		if dd, ok := o.discovered.Peek(k); ok {
			newDeps[k] = dd.info
		}
	}

	finishing := o.currentFuture
	o.queuedFutures = append(o.queuedFutures, finishing)
	o.currentFuture = nil
	o.mu.Unlock()

	o.runBundle(uuid.NewString(), newDeps)
}

func (o *Optimizer) runBundle(runID string, deps map[string]DepInfo) {
	start := time.Now()
	ctx := context.Background()
	o.log.Debug("optimizer run started", "run_id", runID, "deps", len(deps))
	result, err := o.bundler.Bundle(ctx, deps)
	observability.OptimizerBundleDuration.Observe(time.Since(start).Seconds())

	o.mu.Lock()
	o.state = StateCommitting
	observability.OptimizerState.Set(float64(o.state))
	o.mu.Unlock()

	if err != nil {
		o.onBundleFailure(runID, err)
		return
	}
	o.commit(ctx, runID, result)
}

func (o *Optimizer) onBundleFailure(runID string, err error) {
	o.log.Error("optimizer bundle failed", "run_id", runID, "error", err)
	observability.OptimizerCommitsTotal.WithLabelValues("failed").Inc()

	o.mu.Lock()
	o.discovered.Clear()
	futures := o.queuedFutures
	o.queuedFutures = nil
	o.state = StateIdle
	observability.OptimizerState.Set(float64(o.state))
	o.mu.Unlock()

	closeAll(futures)
}

func (o *Optimizer) commit(ctx context.Context, runID string, result BundleResult) {
	o.mu.Lock()

	mismatch := false
	for _, k := range o.discovered.Keys() {
		dd, ok := o.discovered.Peek(k)
		if !ok {
			continue
		}
		if newInfo, ok := result.Metadata.Optimized[k]; ok && newInfo.NeedsInterop != dd.info.NeedsInterop {
			mismatch = true
		}
	}

	oldMetadata := cloneMetadata(o.metadata)
	needsReload := mismatch || result.Metadata.Hash != oldMetadata.Hash
	for id, old := range oldMetadata.Optimized {
		if newInfo, ok := result.Metadata.Optimized[id]; ok && newInfo.FileHash != old.FileHash {
			needsReload = true
		}
	}

	midRun := o.newDepsDiscoveredMidRun
	o.mu.Unlock()

	if needsReload && midRun {
		if result.Cancel != nil {
			_ = result.Cancel(ctx)
		}
		observability.OptimizerCommitsTotal.WithLabelValues("cancelled").Inc()

		o.mu.Lock()
		o.state = StateIdle
		observability.OptimizerState.Set(float64(o.state))
		o.maybeArmLocked()
		o.mu.Unlock()
		return
	}

	if result.Commit != nil {
		if err := result.Commit(ctx); err != nil {
			o.onBundleFailure(runID, err)
			return
		}
	}

	newMetadata := cloneMetadata(result.Metadata)
	if !needsReload {
		for id, old := range oldMetadata.Optimized {
			if info, ok := newMetadata.Optimized[id]; ok {
				info.BrowserHash = old.BrowserHash
				newMetadata.Optimized[id] = info
			}
		}
		newMetadata.BrowserHash = oldMetadata.BrowserHash
	}

	o.mu.Lock()
	for _, k := range o.discovered.Keys() {
		dd, ok := o.discovered.Peek(k)
		if !ok {
			continue
		}
		if _, stillMissing := newMetadata.Optimized[k]; !stillMissing {
			newMetadata.Optimized[k] = dd.info
		}
	}
	o.metadata = newMetadata
	o.discovered.Clear()
	futures := o.queuedFutures
	o.queuedFutures = nil
	o.state = StateIdle
	observability.OptimizerState.Set(float64(o.state))
	o.maybeArmLocked()
	o.mu.Unlock()

	observability.OptimizerCommitsTotal.WithLabelValues("committed").Inc()
	closeAll(futures)

	if o.onCommit != nil {
		o.onCommit(CommitResult{NeedsReload: needsReload, Metadata: newMetadata, RunID: runID})
	}
	if needsReload {
		observability.HMRFullReloadsTotal.WithLabelValues("optimizer").Inc()
	}
}

// RegisterWorkersSource removes id from the idle waitlist: worker bundles
// run their own nested optimizer and must not block the parent's first-run
// gate on themselves.
func (o *Optimizer) RegisterWorkersSource(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.workerExempt[id] = struct{}{}
	delete(o.waitlist, id)
}

// InvalidateLockfile forces a re-bundle of the currently optimized deps
// even though none of them were newly discovered, since spec §5's hash is
// computed over the lockfile contents as well as the dep set — a lockfile
// edit changes that hash's inputs without the transform pipeline ever
// calling RegisterMissingImport. A batch already in flight just gets its
// newly-discovered-mid-run flag set, the same path an overlapping
// discovery takes, since the in-flight bundle's result is about to be
// superseded anyway.
func (o *Optimizer) InvalidateLockfile() {
	o.mu.Lock()
	if o.state == StateProcessing || o.state == StateCommitting {
		o.newDepsDiscoveredMidRun = true
		o.mu.Unlock()
		return
	}

	deps := make(map[string]DepInfo, len(o.metadata.Optimized))
	for k, v := range o.metadata.Optimized {
		deps[k] = v
	}
	o.metadata.Hash = ""
	o.state = StateProcessing
	observability.OptimizerState.Set(float64(o.state))
	o.mu.Unlock()

	o.log.Info("lockfile changed, forcing dependency re-bundle")
	o.runBundle(uuid.NewString(), deps)
}

// Metadata returns the last committed metadata snapshot with Discovered
// filled in from the live LRU. Optimized/Chunks only ever change on a
// commit swap, so a caller that obtained a reference before a later commit
// keeps seeing those two maps as they were, which is intentional for
// long-running transforms; Discovered has no such committed snapshot to
// fall back on, so it always reflects deps registered since, even mid-batch.
func (o *Optimizer) Metadata() Metadata {
	o.mu.Lock()
	defer o.mu.Unlock()
	m := cloneMetadata(o.metadata)
	for _, k := range o.discovered.Keys() {
		if dd, ok := o.discovered.Peek(k); ok {
			m.Discovered[k] = dd.info
		}
	}
	return m
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func closeAll(futures []chan struct{}) {
	for _, f := range futures {
		if f != nil {
			close(f)
		}
	}
}
