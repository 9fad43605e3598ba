package main

import (
	"github.com/spf13/cobra"
)

var pinCmd = &cobra.Command{
	Use:   "pin <tool> <version>",
	Short: "Pin a tool to a version",
	Long: `Pin records an advisory version for a tool. A pinned tool whose pin
differs from the manifest tag is skipped by sync until unpinned or
forced.`,
	Example: `  dotbins pin fzf 0.46.0`,
	Args:    cobra.ExactArgs(2),
	RunE:    runPin,
}

var unpinCmd = &cobra.Command{
	Use:     "unpin <tool>",
	Short:   "Remove a tool's pin",
	Example: `  dotbins unpin fzf`,
	Args:    cobra.ExactArgs(1),
	RunE:    runUnpin,
}

func init() {
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(unpinCmd)
}

func runPin(cmd *cobra.Command, args []string) error {
	tool, version := args[0], args[1]
	if err := apiClient.State.Pin(tool, version); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "tool": tool, "version": version})
	} else {
		printSuccess("Pinned %s to %s", tool, version)
	}
	return nil
}

func runUnpin(cmd *cobra.Command, args []string) error {
	tool := args[0]
	removed, err := apiClient.State.Unpin(tool)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "tool": tool, "removed": removed})
		return nil
	}
	if removed {
		printSuccess("Unpinned %s", tool)
	} else {
		printWarning("%s was not pinned", tool)
	}
	return nil
}
