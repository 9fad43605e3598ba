package main

import (
	"time"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot install state and pins",
	Long: `Backup writes a timestamp-named snapshot of the install state and pin
map. Snapshots are write-once and never deleted automatically.`,
	RunE: runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <snapshot-file>",
	Short: "Restore install state and pins from a snapshot",
	Long: `Restore replaces the current install state and pins with a snapshot's
contents. Installed binaries are not touched; run 'dotbins sync'
afterwards to reconcile them with the restored state.`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	path, err := apiClient.State.Backup(time.Now().UTC())
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "path": path})
	} else {
		printSuccess("Backup written to %s", path)
	}
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	if err := apiClient.State.Restore(args[0]); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true, "path": args[0]})
	} else {
		printSuccess("Restored state from %s", args[0])
		printInfo("Run 'dotbins sync' to reconcile installed binaries.")
	}
	return nil
}
