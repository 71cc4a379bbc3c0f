package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devgraph/devgraph/internal/graph"
	"github.com/devgraph/devgraph/internal/hmr"
	"github.com/devgraph/devgraph/internal/staticimports"
)

func newGraphCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Inspect a module graph built from the project's source tree",
	}
	cmd.AddCommand(newGraphStatsCmd())
	cmd.AddCommand(newGraphCyclesCmd())
	return cmd
}

// buildGraphFromTree constructs a client-environment module graph by
// resolving every file under root (node_modules and .git skipped) and wiring
// each JS/TS file's statically discovered relative imports as edges, the read-only counterpart to `optimize`'s
// bare-import walk.
func buildGraphFromTree(root string) (*graph.ModuleGraph, error) {
	g := graph.New(graph.EnvClient, fsResolver{root: root})
	ctx := context.Background()

	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "node_modules" || d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	nodes := make(map[string]*graph.Node, len(files))
	for _, f := range files {
		rel, _ := filepath.Rel(root, f)
		url := "/" + filepath.ToSlash(rel)
		n, err := g.EnsureEntryFromUrl(ctx, url)
		if err != nil {
			continue
		}
		nodes[f] = n
	}

	for _, f := range files {
		n, ok := nodes[f]
		if !ok {
			continue
		}
		content, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		specifiers, err := staticimports.StaticSpecifiers(f, content)
		if err != nil {
			continue
		}

		var imports []graph.ImportSpec
		for _, spec := range specifiers {
			if strings.HasPrefix(spec, ".") {
				target, err := g.EnsureEntryFromUrl(ctx, joinSpecifier(f, root, spec))
				if err == nil {
					imports = append(imports, graph.ImportSpec{Node: target})
				}
			}
		}

		selfAccepting, accepted, acceptedExports := acceptanceFor(g, ctx, f, root, string(content))

		if _, err := g.UpdateModuleInfo(ctx, n, imports, nil, accepted, acceptedExports, selfAccepting, nil); err != nil {
			continue
		}
	}

	return g, nil
}

// acceptanceFor lexes content's import.meta.hot.accept(...) and
// acceptExports(...) call sites and resolves any literal dependency
// specifiers against the tree being walked. Per spec, a LexError just
// means the module is treated as non-self-accepting — the update still
// propagates upward, it just doesn't stop here.
func acceptanceFor(g *graph.ModuleGraph, ctx context.Context, f, root, content string) (graph.SelfAccepting, []*graph.Node, map[string]struct{}) {
	site, err := hmr.ScanHotAcceptCalls(content)
	if err != nil {
		return graph.SelfAcceptingFalse, nil, nil
	}

	selfAccepting := graph.SelfAcceptingFalse
	if site.SelfAccepts {
		selfAccepting = graph.SelfAcceptingTrue
	}

	var accepted []*graph.Node
	for _, dep := range site.Deps {
		if !strings.HasPrefix(dep.URL, ".") {
			continue
		}
		target, err := g.EnsureEntryFromUrl(ctx, joinSpecifier(f, root, dep.URL))
		if err == nil {
			accepted = append(accepted, target)
		}
	}

	var acceptedExports map[string]struct{}
	if len(site.Exports) > 0 {
		acceptedExports = make(map[string]struct{}, len(site.Exports))
		for _, name := range site.Exports {
			acceptedExports[name] = struct{}{}
		}
	}

	return selfAccepting, accepted, acceptedExports
}

func newGraphStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats [dir]",
		Short: "Print fan-in, fan-out, depth, and importance per module",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			g, err := buildGraphFromTree(root)
			if err != nil {
				return err
			}

			metrics := g.ComputeMetrics()
			ids := make([]string, 0, len(metrics))
			for id := range metrics {
				ids = append(ids, id)
			}
			sort.Strings(ids)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODULE\tFAN-IN\tFAN-OUT\tDEPTH\tIMPORTANCE")
			for _, id := range ids {
				m := metrics[id]
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.3f\n", id, m.FanIn, m.FanOut, m.Depth, m.ImportanceScore)
			}
			return w.Flush()
		},
	}
}

func newGraphCyclesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cycles [dir]",
		Short: "Report import cycles reachable in the module graph",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			g, err := buildGraphFromTree(root)
			if err != nil {
				return err
			}

			cycles := g.DetectCycles()
			if len(cycles) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no import cycles found")
				return nil
			}
			for _, c := range cycles {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(c, " -> "))
			}
			return nil
		},
	}
}

func joinSpecifier(fromFile, root, specifier string) string {
	dir := filepath.Dir(fromFile)
	joined := filepath.Join(dir, specifier)
	rel, err := filepath.Rel(root, joined)
	if err != nil {
		rel = joined
	}
	return "/" + filepath.ToSlash(rel)
}
