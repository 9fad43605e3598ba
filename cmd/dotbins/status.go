package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dotbins/dotbins/internal/services/tools"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how installed binaries compare to the manifest",
	Example: `  dotbins status
  dotbins status --all-platforms`,
	RunE: runStatus,
}

var statusAllPlatforms bool

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVar(&statusAllPlatforms, "all-platforms", false,
		"Include every platform in the manifest")
}

type keyStatus struct {
	Key    string `json:"key"`
	Tag    string `json:"tag"`
	Status string `json:"status"`
	Pinned string `json:"pinned,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	installState, err := apiClient.State.LoadState()
	if err != nil {
		return err
	}
	pins, err := apiClient.State.LoadPins()
	if err != nil {
		return err
	}

	platform, arch := tools.DetectPlatform()

	var statuses []keyStatus
	for _, key := range apiClient.Manifest.Keys() {
		if !statusAllPlatforms && (key.Platform != platform || key.Arch != arch) {
			continue
		}

		entry, err := apiClient.Manifest.Resolve(key.Tool, key.Platform, key.Arch)
		if err != nil {
			continue
		}

		status := "not installed"
		if record, ok := installState[key.String()]; ok {
			if record.SHA256 == entry.SHA256 {
				status = "up to date"
			} else {
				status = "outdated"
			}
		}

		statuses = append(statuses, keyStatus{
			Key:    key.String(),
			Tag:    entry.Tag,
			Status: status,
			Pinned: pins[key.Tool],
		})
	}

	if jsonOutput {
		printJSON(statuses)
		return nil
	}

	if len(statuses) == 0 {
		printInfo("No manifest entries for %s/%s.", platform, arch)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tTAG\tSTATUS\tPINNED")
	for _, s := range statuses {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Key, s.Tag, s.Status, s.Pinned)
	}
	return w.Flush()
}
