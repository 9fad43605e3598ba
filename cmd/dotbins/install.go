package main

import (
	"context"

	"github.com/spf13/cobra"

	syncsvc "github.com/dotbins/dotbins/internal/services/sync"
	"github.com/dotbins/dotbins/internal/services/tools"
)

var installCmd = &cobra.Command{
	Use:   "install <tool>",
	Short: "Install one tool from the manifest",
	Example: `  dotbins install fzf
  dotbins install fzf --platform linux --arch arm64`,
	Args: cobra.ExactArgs(1),
	RunE: runInstall,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall <tool>",
	Short: "Remove a tool's binary and its install record",
	Args:  cobra.ExactArgs(1),
	RunE:  runUninstall,
}

var (
	installPlatform string
	installArch     string
	installForce    bool

	uninstallPlatform string
	uninstallArch     string
)

func init() {
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)

	installCmd.Flags().StringVar(&installPlatform, "platform", "",
		"Target platform (default: detected)")
	installCmd.Flags().StringVar(&installArch, "arch", "",
		"Target architecture (default: detected)")
	installCmd.Flags().BoolVarP(&installForce, "force", "f", false,
		"Reinstall even when up to date")

	uninstallCmd.Flags().StringVar(&uninstallPlatform, "platform", "",
		"Target platform (default: detected)")
	uninstallCmd.Flags().StringVar(&uninstallArch, "arch", "",
		"Target architecture (default: detected)")
}

func runInstall(cmd *cobra.Command, args []string) error {
	res := apiClient.Tools.Install(context.Background(), args[0], installPlatform, installArch, installForce)
	return reportResults(map[string]syncsvc.Result{res.Key.String(): res})
}

func runUninstall(cmd *cobra.Command, args []string) error {
	platform, arch := tools.DetectPlatform()
	if uninstallPlatform != "" {
		platform = uninstallPlatform
	}
	if uninstallArch != "" {
		arch = uninstallArch
	}

	if err := apiClient.Tools.Uninstall(args[0], platform, arch); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "tool": args[0]})
	} else {
		printSuccess("Uninstalled %s (%s/%s)", args[0], platform, arch)
	}
	return nil
}
