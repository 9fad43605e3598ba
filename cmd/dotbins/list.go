package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed tools",
	Example: `  dotbins list
  dotbins list --available`,
	RunE: runList,
}

var listAvailable bool

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolVarP(&listAvailable, "available", "a", false,
		"List every tool in the manifest instead of installed ones")
}

func runList(cmd *cobra.Command, args []string) error {
	if listAvailable {
		return listAvailableTools()
	}
	return listInstalledTools()
}

func listInstalledTools() error {
	infos, err := apiClient.Tools.ListInstalled()
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(infos)
		return nil
	}

	if len(infos) == 0 {
		printInfo("No tools installed. Run 'dotbins sync' to install from the manifest.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tPLATFORM\tVERSION\tINSTALLED\tPINNED")
	for _, info := range infos {
		pinned := ""
		if info.Pinned {
			pinned = "yes"
		}
		fmt.Fprintf(w, "%s\t%s/%s\t%s\t%s\t%s\n",
			info.Name, info.Platform, info.Arch, info.Version,
			info.InstalledAt.Format("2006-01-02 15:04"), pinned)
	}
	return w.Flush()
}

func listAvailableTools() error {
	available, err := apiClient.Tools.ListAvailable()
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(available)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tINSTALLED\tPLATFORMS")
	for _, tool := range available {
		installed := ""
		if tool.Installed {
			installed = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", tool.Name, installed, strings.Join(tool.Platforms, ", "))
	}
	return w.Flush()
}
