package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"

	"github.com/spf13/cobra"

	syncsvc "github.com/dotbins/dotbins/internal/services/sync"
	"github.com/dotbins/dotbins/internal/services/tools"
)

var syncCmd = &cobra.Command{
	Use:   "sync [tool]",
	Short: "Bring installed binaries up to date with the manifest",
	Long: `Sync resolves each manifest entry, downloads and verifies the artifact
when needed, and installs the binary. Without arguments every manifest
key for the current platform is processed; pass a tool name to sync
just that tool.`,
	Example: `  dotbins sync
  dotbins sync fzf
  dotbins sync --all-platforms --concurrent 4
  dotbins sync fzf --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

var (
	syncForce        bool
	syncAllPlatforms bool
	syncPlatform     string
	syncArch         string
	syncConcurrent   int
)

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVarP(&syncForce, "force", "f", false,
		"Re-download and reinstall even when up to date")
	syncCmd.Flags().BoolVar(&syncAllPlatforms, "all-platforms", false,
		"Sync every platform in the manifest, not just the current one")
	syncCmd.Flags().StringVar(&syncPlatform, "platform", "",
		"Target platform (default: detected)")
	syncCmd.Flags().StringVar(&syncArch, "arch", "",
		"Target architecture (default: detected)")
	syncCmd.Flags().IntVar(&syncConcurrent, "concurrent", 0,
		"Sync up to N keys in parallel (0 = sequential)")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)
	go func() {
		<-sigChan
		printWarning("\nSync interrupted, cancelling...")
		cancel()
	}()

	platform, arch := tools.DetectPlatform()
	if syncPlatform != "" {
		platform = syncPlatform
	}
	if syncArch != "" {
		arch = syncArch
	}

	if len(args) == 1 {
		res := apiClient.Sync.Sync(ctx, args[0], platform, arch, syncForce)
		return reportResults(map[string]syncsvc.Result{res.Key.String(): res})
	}

	concurrent := syncConcurrent
	if concurrent == 0 {
		concurrent = cfg.Sync.MaxConcurrent
	}
	opts := syncsvc.Options{
		Force:         syncForce,
		MaxConcurrent: concurrent,
	}
	if !syncAllPlatforms {
		opts.Platform = platform
		opts.Arch = arch
	}

	if !jsonOutput {
		go displaySyncEvents()
	}

	results, err := apiClient.Sync.SyncAll(ctx, opts)
	if err != nil {
		return err
	}
	return reportResults(results)
}

func displaySyncEvents() {
	for event := range apiClient.Sync.Events() {
		switch event.Type {
		case syncsvc.EventInstalled:
			printSuccess("  installed  %s", event.Key)
		case syncsvc.EventUpToDate:
			printInfo("  up to date %s", event.Key)
		case syncsvc.EventSkipped:
			printWarning("  skipped    %s (%s)", event.Key, event.Reason)
		case syncsvc.EventKeyFailed:
			printError("  failed     %s: %v", event.Key, event.Error)
		}
	}
}

// reportResults prints a summary and returns an error naming the failed
// keys so the process exits non-zero when any key failed.
func reportResults(results map[string]syncsvc.Result) error {
	keys := make([]string, 0, len(results))
	for key := range results {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var failed []string
	counts := map[syncsvc.Status]int{}
	for _, key := range keys {
		res := results[key]
		counts[res.Status]++
		if !res.OK() {
			failed = append(failed, key)
		}
	}

	if jsonOutput {
		out := make(map[string]interface{}, len(results))
		for _, key := range keys {
			res := results[key]
			entry := map[string]interface{}{"status": res.Status}
			if res.Reason != "" {
				entry["reason"] = res.Reason
			}
			if res.Err != nil {
				entry["error"] = res.Err.Error()
			}
			out[key] = entry
		}
		printJSON(map[string]interface{}{
			"success": len(failed) == 0,
			"results": out,
		})
	} else {
		printInfo("%d installed, %d up to date, %d skipped, %d failed",
			counts[syncsvc.StatusInstalled], counts[syncsvc.StatusUpToDate],
			counts[syncsvc.StatusSkipped], counts[syncsvc.StatusFailed])
	}

	if len(failed) > 0 {
		return fmt.Errorf("sync failed for %d key(s): %v", len(failed), failed)
	}
	return nil
}
