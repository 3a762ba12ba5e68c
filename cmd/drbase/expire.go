package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExpireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Delete DR-side snapshots beyond the retention count",
		Long: `Apply the retention policy to the DR-side snapshot set. Deletion is
best-effort: a snapshot that fails to delete is reported and retried on
the next expiry pass.`,
		Args: cobra.NoArgs,
		RunE: expireRun,
	}
}

func expireRun(cmd *cobra.Command, args []string) error {
	if globalEngine == nil {
		return fmt.Errorf("engine not initialized")
	}

	report, err := globalEngine.Expire(cmd.Context())
	if err != nil {
		return err
	}

	if report.Threshold == "" {
		fmt.Println("Nothing to expire.")
		return nil
	}

	fmt.Printf("Retention threshold: %s\n", report.Threshold)
	fmt.Printf("  Deleted:   %d\n", len(report.Deleted))
	fmt.Printf("  Not found: %d\n", len(report.NotFound))
	fmt.Printf("  Failed:    %d\n", len(report.Failed))
	for _, f := range report.Failed {
		fmt.Printf("    - %s: %v\n", f.Name, f.Err)
	}
	return nil
}
