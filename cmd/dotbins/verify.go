package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run health checks against installed binaries",
	Long: `Verify checks that each installed binary exists, is executable, is not
a git-lfs pointer file, and answers a version probe.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	report, err := apiClient.Verify.VerifyAll(context.Background())
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(report)
	} else {
		for _, result := range report.Results {
			if result.OK {
				printSuccess("  ok     %s", result.Key)
			} else {
				printError("  failed %s: %s", result.Key, result.Reason)
			}
		}
		printInfo("%d passed, %d failed", report.Passed, report.Failed)
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d binary(ies) failed verification", report.Failed)
	}
	return nil
}
