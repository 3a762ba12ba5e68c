package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Pull a fresh base backup and push it to the DR host",
		Long: `Run the full pipeline: verify DR host connectivity, pull a fresh base
backup into the local staging directory, expire DR-side snapshots beyond
the retention count, then transfer the staged snapshot.

Expiry runs before the transfer so the new snapshot is never a deletion
candidate and DR disk usage is bounded before the push starts.`,
		Args: cobra.NoArgs,
		RunE: backupRun,
	}
}

func backupRun(cmd *cobra.Command, args []string) error {
	if globalEngine == nil {
		return fmt.Errorf("engine not initialized")
	}
	return globalEngine.Backup(cmd.Context())
}
