package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPullOnlyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull-only",
		Short: "Pull a base backup into staging without transferring it",
		Long: `Pull a fresh base backup into the local staging directory and stop.
The DR host connectivity check still runs first: if the snapshot cannot be
shipped later there is no point producing it.`,
		Args: cobra.NoArgs,
		RunE: pullOnlyRun,
	}
}

func pullOnlyRun(cmd *cobra.Command, args []string) error {
	if globalEngine == nil {
		return fmt.Errorf("engine not initialized")
	}
	return globalEngine.PullOnly(cmd.Context())
}
