package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/devgraph/devgraph/internal/optimizer"
	"github.com/devgraph/devgraph/internal/staticimports"
)

func newOptimizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "Scan the project once, pre-bundle every bare import, and print the resulting metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(cmd)
		},
	}
}

func runOptimize(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	scan := optimizer.ScanConfig{Include: cfg.Optimizer.Include, Exclude: cfg.Optimizer.Exclude}

	committed := make(chan optimizer.CommitResult, 1)
	opt := optimizer.New(passthroughBundler{}, scan, slog.Default(), func(r optimizer.CommitResult) {
		committed <- r
	})

	bareIDs, err := staticimports.DiscoverBareImports(cfg.Root)
	if err != nil {
		return err
	}

	var futures []<-chan struct{}
	for id, resolvedPath := range bareIDs {
		_, done := opt.RegisterMissingImport(id, resolvedPath)
		futures = append(futures, done)
	}
	opt.MarkScanComplete()

	if len(bareIDs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no bare imports discovered")
		return nil
	}

	for _, done := range futures {
		select {
		case <-done:
		case <-time.After(30 * time.Second):
			return fmt.Errorf("optimize: timed out waiting for bundle commit")
		}
	}

	select {
	case result := <-committed:
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result.Metadata)
	default:
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(opt.Metadata())
	}
}
