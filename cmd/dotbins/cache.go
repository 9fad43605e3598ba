package main

import (
	"github.com/spf13/cobra"

	"github.com/dotbins/dotbins/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the download cache",
}

var cacheCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove cached archives no install record references",
	RunE:  runCacheClean,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheCleanCmd)
}

func runCacheClean(cmd *cobra.Command, args []string) error {
	installState, err := apiClient.State.LoadState()
	if err != nil {
		return err
	}

	// A cache file stays while the install record for its key still
	// references the entry's URL.
	keep := make(map[string]struct{})
	for _, key := range apiClient.Manifest.Keys() {
		entry, err := apiClient.Manifest.Resolve(key.Tool, key.Platform, key.Arch)
		if err != nil {
			continue
		}
		record, ok := installState[key.String()]
		if ok && record.URL == entry.URL {
			keep[cache.FileName(entry)] = struct{}{}
		}
	}

	removed, err := apiClient.Cache.Clean(keep)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"removed": removed})
	} else if len(removed) == 0 {
		printInfo("Cache already clean.")
	} else {
		for _, name := range removed {
			printInfo("  removed %s", name)
		}
		printSuccess("Removed %d cached archive(s)", len(removed))
	}
	return nil
}
