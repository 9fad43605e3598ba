package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dotbins/dotbins/internal/services/tools"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the installed tool set as a profile",
	Example: `  dotbins export > profile.json
  dotbins export --output profile.json --platform linux --arch arm64`,
	RunE: runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <profile-file>",
	Short: "Install every tool listed in a profile",
	Long: `Import replays a profile on this host: each listed tool is synced for
the detected platform, and pinned tools are re-pinned. A profile
exported for a different platform requires confirmation or
--force-platform.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var (
	exportOutput   string
	exportPlatform string
	exportArch     string

	importForcePlatform bool
)

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "",
		"Write the profile to a file instead of stdout")
	exportCmd.Flags().StringVar(&exportPlatform, "platform", "",
		"Platform to export (default: detected)")
	exportCmd.Flags().StringVar(&exportArch, "arch", "",
		"Architecture to export (default: detected)")

	importCmd.Flags().BoolVar(&importForcePlatform, "force-platform", false,
		"Import even when the profile targets a different platform")
}

func runExport(cmd *cobra.Command, args []string) error {
	platform, arch := tools.DetectPlatform()
	if exportPlatform != "" {
		platform = exportPlatform
	}
	if exportArch != "" {
		arch = exportArch
	}

	out := os.Stdout
	if exportOutput != "" {
		f, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := apiClient.Tools.ExportProfile(out, platform, arch); err != nil {
		return err
	}
	if exportOutput != "" && !jsonOutput {
		printSuccess("Profile written to %s", exportOutput)
	}
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	result, err := apiClient.Tools.ImportProfile(context.Background(), args[0], importForcePlatform)
	if err != nil {
		return err
	}

	var failed []string
	for tool, res := range result.Results {
		if !res.OK() {
			failed = append(failed, tool)
		}
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success":  len(failed) == 0,
			"imported": len(result.Results) - len(failed),
			"failed":   failed,
			"repinned": result.Repinned,
		})
	} else {
		printInfo("%d tool(s) imported, %d re-pinned", len(result.Results)-len(failed), len(result.Repinned))
	}

	if len(failed) > 0 {
		return fmt.Errorf("import failed for %d tool(s): %v", len(failed), failed)
	}
	return nil
}
