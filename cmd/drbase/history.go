package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent action runs from the local catalog",
		Long: `Show the most recent recorded runs for the configured instance: action,
snapshot name, timing, and outcome. The catalog is local observability
state only; it is never consulted by the backup pipeline.`,
		Args: cobra.NoArgs,
		RunE: historyRun,
	}

	cmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to show")

	return cmd
}

func historyRun(cmd *cobra.Command, args []string) error {
	if globalEngine == nil {
		return fmt.Errorf("engine not initialized")
	}

	runs, err := globalEngine.History(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Printf("No recorded runs for instance %q.\n", globalCfg.Instance)
		return nil
	}

	fmt.Printf("Recent runs for instance %q:\n", globalCfg.Instance)
	for _, r := range runs {
		dur := ""
		if !r.EndTime.IsZero() && r.EndTime.After(r.StartTime) {
			dur = r.EndTime.Sub(r.StartTime).Round(time.Second).String()
		}
		line := fmt.Sprintf("  %s  %-10s %-8s %s",
			r.StartTime.Format("2006-01-02 15:04:05"), r.Action, r.Status, dur)
		if r.Snapshot != "" {
			line += "  snapshot=" + r.Snapshot
		}
		if r.Attempts > 0 {
			line += fmt.Sprintf("  attempts=%d", r.Attempts)
		}
		if r.ErrorMessage != "" {
			line += "  error=" + r.ErrorMessage
		}
		fmt.Println(line)
	}
	return nil
}
