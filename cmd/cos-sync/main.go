package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/OpenSiFli/SiFliMirrorSync/internal/config"
	"github.com/OpenSiFli/SiFliMirrorSync/internal/logging"
	"github.com/OpenSiFli/SiFliMirrorSync/pkg/cdnclient"
	"github.com/OpenSiFli/SiFliMirrorSync/pkg/cosclient"
	"github.com/OpenSiFli/SiFliMirrorSync/pkg/resolver"
	"github.com/OpenSiFli/SiFliMirrorSync/pkg/stager"
	"github.com/OpenSiFli/SiFliMirrorSync/pkg/syncer"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var debug bool

func main() {
	rootCmd := &cobra.Command{
		Use:     "cos-sync",
		Short:   "Sync build artifacts into a COS prefix, with optional CDN purge",
		Version: fmt.Sprintf("%s (commit: %s, built at: %s)", version, commit, date),
		Args:    cobra.NoArgs,
		RunE:    run,
	}
	config.RegisterFlags(rootCmd)
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logging.Setup(debug)
	cmd.SilenceUsage = true

	cfg, err := config.Load(cmd)
	if err != nil {
		return err
	}

	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	workDir, err := cfg.ResolveWorkingDir(root)
	if err != nil {
		return err
	}
	if workDir != root {
		slog.Info("using working_directory", "dir", workDir)
	}

	patterns := resolver.Split(cfg.Artifacts)
	if len(patterns) == 0 {
		return fmt.Errorf("no artifact patterns provided after normalization")
	}

	entries, err := resolver.Resolve(patterns, workDir)
	if err != nil {
		return err
	}

	tree, err := stager.Stage(entries)
	if err != nil {
		return err
	}
	defer tree.Close()
	slog.Info("staged artifacts", "files", len(tree.Files()), "dir", tree.Root())

	ctx := cmd.Context()
	client, err := cosclient.New(ctx, cosclient.Config{
		SecretID:  cfg.SecretID,
		SecretKey: cfg.SecretKey,
		Region:    cfg.Region,
		Bucket:    cfg.Bucket,
	})
	if err != nil {
		return err
	}

	engine := syncer.New(client, cfg.Concurrency)
	result, err := engine.Sync(ctx, tree, cfg.Prefix, cfg.DeleteRemote)
	if err != nil {
		return err
	}

	// Reconciliation problems degrade to warnings: the upload already
	// succeeded and is not undone.
	if result.ListErr != nil {
		slog.Warn("reconciliation skipped", "error", result.ListErr)
	}
	for _, failure := range result.DeleteFailures {
		slog.Warn("stale object not deleted", "key", failure.Key, "error", failure.Err)
	}
	slog.Info("sync complete",
		"uploaded", result.Uploaded,
		"deleted", result.Deleted,
		"endpoint", result.Endpoint)

	var purger cdnclient.Purger
	if cfg.FlushURL != "" {
		if cdn, err := cdnclient.NewTencentCDN(cfg.SecretID, cfg.SecretKey, cfg.Region); err != nil {
			slog.Warn("CDN purge skipped", "error", err)
		} else {
			purger = cdn
		}
	}
	purge(ctx, purger, cfg.FlushURL)
	return nil
}

// purge fires the optional CDN purge. Never escalates to a run failure.
func purge(ctx context.Context, purger cdnclient.Purger, url string) {
	if url == "" {
		slog.Info("flush_url not provided, skipping CDN purge")
		return
	}
	if purger == nil {
		return
	}

	slog.Info("purging CDN cache", "url", url)
	if err := purger.PurgePath(ctx, url); err != nil {
		slog.Warn("CDN purge failed", "error", err)
	}
}
