// Package devserver composes the module graph, HMR propagator, and
// dependency optimizer into one running dev server, the way the teacher's
// internal/app.App composes its graph/parser/watcher/resolver.
package devserver

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/devgraph/devgraph/internal/config"
	"github.com/devgraph/devgraph/internal/devgrapherr"
	"github.com/devgraph/devgraph/internal/graph"
	"github.com/devgraph/devgraph/internal/hmr"
	"github.com/devgraph/devgraph/internal/observability"
	"github.com/devgraph/devgraph/internal/optimizer"
	"github.com/devgraph/devgraph/internal/staticimports"
	"github.com/devgraph/devgraph/internal/watch"
)

// Snapshot is a point-in-time view of server state, pushed to an attached
// DashboardSink after every HMR update or full reload the server broadcasts.
type Snapshot struct {
	ClientModules    int
	SSRModules       int
	Cycles           int
	UpdatesTotal     int64
	FullReloadsTotal int64
	LastEvent        string
	At               time.Time
}

// DashboardSink receives snapshots for display, e.g. the terminal dashboard
// started by `devgraphd serve --ui`. Defined here rather than imported so
// that devserver never depends on the UI package.
type DashboardSink interface {
	Send(Snapshot)
}

// Server is the running composition of one client graph, one SSR graph,
// their propagators, the dependency optimizer, the HMR broadcaster, and the
// filesystem watcher feeding all three. Everything is a field on Server,
// constructed per-instance — never a package-level global (Design Note
// "global-state avoidance").
type Server struct {
	cfg *config.Config
	log *slog.Logger

	clientGraph *graph.ModuleGraph
	ssrGraph    *graph.ModuleGraph

	clientPropagator *hmr.Propagator
	ssrPropagator    *hmr.Propagator

	optimizer   *optimizer.Optimizer
	broadcaster *hmr.Broadcaster
	watcher     *watch.Watcher
	strategy    string

	dashboard        DashboardSink
	updatesTotal     atomic.Int64
	fullReloadsTotal atomic.Int64
}

// AttachDashboard wires a DashboardSink that receives a Snapshot after every
// HMR update or full reload broadcast, including the full reload of a
// reload-unsafe optimizer commit; a propagation that dispatches nothing and
// a reload-safe commit send no Snapshot. Optional; a Server with no attached
// dashboard just skips the notification.
func (s *Server) AttachDashboard(sink DashboardSink) {
	s.dashboard = sink
}

// Snapshot reports the server's current graph sizes, cycle count, and
// running HMR counters, labeled with the event that produced this snapshot.
func (s *Server) Snapshot(event string) Snapshot {
	return Snapshot{
		ClientModules:    s.clientGraph.NodeCount(),
		SSRModules:       s.ssrGraph.NodeCount(),
		Cycles:           len(s.clientGraph.DetectCycles()),
		UpdatesTotal:     s.updatesTotal.Load(),
		FullReloadsTotal: s.fullReloadsTotal.Load(),
		LastEvent:        event,
		At:               time.Now(),
	}
}

func (s *Server) notifyDashboard(event string) {
	if s.dashboard == nil {
		return
	}
	s.dashboard.Send(s.Snapshot(event))
}

// New wires a Server from its injected dependencies: a Resolver shared by
// both environment graphs, a Bundler backing the optimizer, and zero or
// more HMR channels (e.g. one per connected websocket client).
func New(cfg *config.Config, resolver graph.Resolver, bundler optimizer.Bundler, channels []hmr.Channel, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	clientGraph := graph.New(graph.EnvClient, resolver)
	ssrGraph := graph.New(graph.EnvSSR, resolver)

	broadcaster := hmr.NewBroadcaster(channels...)

	scan := optimizer.ScanConfig{Include: cfg.Optimizer.Include, Exclude: cfg.Optimizer.Exclude}
	s := &Server{
		cfg:              cfg,
		log:              log,
		clientGraph:      clientGraph,
		ssrGraph:         ssrGraph,
		clientPropagator: hmr.NewPropagator(clientGraph),
		ssrPropagator:    hmr.NewPropagator(ssrGraph),
		broadcaster:      broadcaster,
		strategy:         cfg.Optimizer.Strategy,
	}

	s.optimizer = optimizer.New(bundler, scan, log, s.onOptimizerCommit)
	return s
}

// openFirstRunGate chooses which of spec §4.3's two first-run gate paths to
// drive, per cfg.Optimizer.Strategy: pre-scan/eager force the gate open
// immediately (path a), since both strategies promise to have scanned the
// project before serving a single request; scan/lazy leave the gate for
// EnsureModule's request tracking to open (path b), with the watchdog armed
// regardless so a server that never receives a request still eventually
// runs. scan additionally kicks off a background project walk that forces
// the gate open itself once it completes, racing harmlessly against the
// request path since MarkScanComplete is idempotent.
func (s *Server) openFirstRunGate() {
	switch s.strategy {
	case "pre-scan", "eager":
		s.optimizer.MarkScanComplete()
	case "scan":
		s.optimizer.EnsureFirstRun()
		go s.backgroundScan()
	default: // "lazy"
		s.optimizer.EnsureFirstRun()
	}
}

// backgroundScan implements the "scan" strategy's half of the first-run
// gate: walk the project for bare imports the same way the one-shot
// `optimize` CLI command does, register each one as a missing import, then
// force the gate open once the walk is done.
func (s *Server) backgroundScan() {
	bare, err := staticimports.DiscoverBareImports(s.cfg.Root)
	if err != nil {
		s.log.Warn("background optimizer scan failed", "error", err)
	}
	for id, resolvedPath := range bare {
		s.optimizer.RegisterMissingImport(id, resolvedPath)
	}
	s.optimizer.MarkScanComplete()
}

// requestScopedGate records id as an in-flight request against the
// first-run gate for the strategies that open it from the request path
// (scan/lazy); pre-scan/eager already forced the gate open in
// openFirstRunGate, so a request there is a no-op.
func (s *Server) requestScopedGate(id string) (done func()) {
	switch s.strategy {
	case "scan", "lazy", "":
		return s.optimizer.DelayDepsOptimizerUntil(id)
	default:
		return func() {}
	}
}

// ClientGraph and SSRGraph expose the per-environment graphs for the
// resolve/transform pipeline (outside this package's scope) to call
// EnsureEntryFromUrl / UpdateModuleInfo / UpdateModuleTransformResult on.
func (s *Server) ClientGraph() *graph.ModuleGraph { return s.clientGraph }
func (s *Server) SSRGraph() *graph.ModuleGraph    { return s.ssrGraph }
func (s *Server) Optimizer() *optimizer.Optimizer { return s.optimizer }
func (s *Server) Broadcaster() *hmr.Broadcaster   { return s.broadcaster }

// Start begins watching the configured paths, routing every debounced batch
// of changed files into HandleFileChange.
func (s *Server) Start() error {
	w, err := watch.New(s.cfg.Watch, s.cfg.Exclude.Dirs, s.cfg.Exclude.Files, s.HandleFileChange, s.optimizer.InvalidateLockfile)
	if err != nil {
		return devgrapherr.Wrap(err, devgrapherr.CodeInternal, "start watcher")
	}
	s.watcher = w
	s.openFirstRunGate()
	return w.Watch(absWatchPaths(s.cfg.WatchPaths, s.cfg.Root))
}

func (s *Server) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// HandleFileChange is the watcher callback: for each changed file it
// hard-invalidates every module registered for that file in both graphs and
// propagates the change to HMR clients. Environments are walked serially,
// client before SSR, per Design Note "propagation order across
// environments" — SSR modules have no in-browser boundary to fall back on,
// so the client pass's full-reload decision is computed independently and
// SSR failures never block it.
func (s *Server) HandleFileChange(paths []string) {
	timestamp := time.Now().UnixMilli()

	for _, path := range paths {
		s.propagateFileChange(s.clientGraph, s.clientPropagator, path, timestamp)
		s.propagateFileChange(s.ssrGraph, s.ssrPropagator, path, timestamp)
	}
}

func (s *Server) propagateFileChange(g *graph.ModuleGraph, p *hmr.Propagator, path string, timestamp int64) {
	nodes := g.GetModulesByFile(path)
	if len(nodes) == 0 {
		return
	}

	start := time.Now()
	result := p.PropagateFileChange(nodes, path, timestamp)
	observability.PropagationDuration.Observe(time.Since(start).Seconds())

	if result.FullReload {
		s.log.Info("hmr full reload", "file", path)
		observability.HMRFullReloadsTotal.WithLabelValues("dead-end").Inc()
		s.fullReloadsTotal.Add(1)
		s.broadcaster.Send(hmr.Payload{Kind: hmr.PayloadFullReload, Path: path})
		s.notifyDashboard("full reload: " + path)
		return
	}

	if len(result.Updates) == 0 {
		s.log.Debug("no update happened", "file", path)
		return
	}

	for _, u := range result.Updates {
		observability.HMRUpdatesTotal.WithLabelValues(string(u.Kind)).Inc()
	}
	s.updatesTotal.Add(int64(len(result.Updates)))
	s.broadcaster.Send(hmr.Payload{Kind: hmr.PayloadUpdate, Updates: result.Updates})
	s.notifyDashboard("update: " + path)
}

// onOptimizerCommit is invoked by the optimizer after every committed batch;
// a cancelled or failed batch is not reported.
// A reload-unsafe commit becomes a full-reload broadcast; a reload-safe one
// is silent, since in-flight requests already carry the new browserHash in
// their rewritten import URLs.
func (s *Server) onOptimizerCommit(result optimizer.CommitResult) {
	if !result.NeedsReload {
		return
	}
	s.log.Info("optimizer commit requires full reload")
	s.fullReloadsTotal.Add(1)

	// Cached transforms may hold import URLs pinned to the pre-commit
	// browserHash; invalidate both graphs so they're re-fetched with the
	// new one rather than serving stale optimized-dep references.
	timestamp := time.Now().UnixMilli()
	s.clientGraph.InvalidateAll(timestamp)
	s.ssrGraph.InvalidateAll(timestamp)

	s.broadcaster.Send(hmr.Payload{Kind: hmr.PayloadFullReload, Path: ""})
	s.notifyDashboard("optimizer commit")
}

// ResolveImport is called by the resolve/transform pipeline when a bare
// import specifier can't be satisfied from the module graph directly. It
// delegates to the optimizer's missing-import registration and rewrites the
// URL the browser should request, blocking on depsChanged only if the
// caller asks for the pipeline's own synchronous wait semantics.
func (s *Server) ResolveImport(ctx context.Context, id, resolvedPath string) (optimizer.DepInfo, <-chan struct{}) {
	return s.optimizer.RegisterMissingImport(id, resolvedPath)
}

// EnsureModule resolves rawURL against the named environment's graph. It is
// the request-facing entry point the resolve/transform pipeline calls per
// incoming request, so it is also where the optimizer's request-tracking
// first-run gate (spec §4.3 path b) hooks in for the scan/lazy strategies.
func (s *Server) EnsureModule(ctx context.Context, env graph.Environment, rawURL string) (*graph.Node, error) {
	done := s.requestScopedGate(rawURL)
	defer done()

	g := s.clientGraph
	if env == graph.EnvSSR {
		g = s.ssrGraph
	}
	return g.EnsureEntryFromUrl(ctx, rawURL)
}

// GraphStats reports fan-in/fan-out/depth/importance plus any detected
// import cycles for the named environment's live graph. (`devgraphd graph
// stats` does not call it; that command builds its own graph from the
// source tree.)
func (s *Server) GraphStats(env graph.Environment) (map[string]graph.ModuleMetrics, [][]string) {
	g := s.clientGraph
	if env == graph.EnvSSR {
		g = s.ssrGraph
	}
	return g.ComputeMetrics(), g.DetectCycles()
}

// absWatchPaths normalizes configured watch roots the way the teacher's
// uniqueScanRoots does, resolving relative paths against root; Start calls
// it before handing the paths to the watcher.
func absWatchPaths(paths []string, root string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if filepath.IsAbs(p) {
			out = append(out, filepath.Clean(p))
			continue
		}
		out = append(out, filepath.Clean(filepath.Join(root, p)))
	}
	return out
}
