package main

import (
	"context"

	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Check installed tools against published security advisories",
	Long: `Audit queries the advisory API and reports advisories whose summary
mentions an installed tool. Lookups are best-effort; a failed lookup
reports no advisories rather than failing the command.`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	infos, err := apiClient.Tools.ListInstalled()
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(infos))
	var names []string
	for _, info := range infos {
		if _, ok := seen[info.Name]; ok {
			continue
		}
		seen[info.Name] = struct{}{}
		names = append(names, info.Name)
	}

	matches := apiClient.Advisory.LookupAll(context.Background(), names)

	if jsonOutput {
		printJSON(matches)
		return nil
	}

	if len(matches) == 0 {
		printSuccess("No advisories match %d installed tool(s).", len(names))
		return nil
	}
	for tool, advisories := range matches {
		printWarning("%s:", tool)
		for _, adv := range advisories {
			printWarning("  %s [%s] %s", adv.GHSAID, adv.Severity, adv.Summary)
		}
	}
	return nil
}
