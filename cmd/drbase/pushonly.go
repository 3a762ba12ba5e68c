package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPushOnlyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push-only",
		Short: "Transfer the snapshot already sitting in staging",
		Long: `Verify DR host connectivity, expire DR-side snapshots beyond the
retention count, then transfer the snapshot left in staging by a prior
pull. Re-running after a successful transfer re-syncs into the same
snapshot name; redundant but harmless.`,
		Args: cobra.NoArgs,
		RunE: pushOnlyRun,
	}
}

func pushOnlyRun(cmd *cobra.Command, args []string) error {
	if globalEngine == nil {
		return fmt.Errorf("engine not initialized")
	}
	return globalEngine.PushOnly(cmd.Context())
}
