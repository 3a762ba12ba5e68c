package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "List snapshots stored on the DR host",
		Long: `List the snapshots stored on the DR host for the configured instance,
with size and last-modification time. Never mutates anything.`,
		Args: cobra.NoArgs,
		RunE: infoRun,
	}
}

func infoRun(cmd *cobra.Command, args []string) error {
	if globalEngine == nil {
		return fmt.Errorf("engine not initialized")
	}

	snapshots, err := globalEngine.Info(cmd.Context())
	if err != nil {
		return err
	}

	if len(snapshots) == 0 {
		fmt.Printf("No snapshots for instance %q.\n", globalCfg.Instance)
		return nil
	}

	fmt.Printf("Snapshots for instance %q:\n", globalCfg.Instance)
	for _, s := range snapshots {
		fmt.Printf("  %-20s %10s  %s\n", s.Name, s.HumanSize(), s.ModTime.Format("2006-01-02 15:04:05"))
	}
	return nil
}
