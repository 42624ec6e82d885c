package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var sweepFailed bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reset stuck embedding work",
	Long: `Sweeps chunks stuck in processing (claimed by a crashed worker)
back to pending so the next worker picks them up. The staleness window
comes from the pipeline configuration.

With --failed, permanently failed chunks are reset to pending as well.
Failed chunks are never retried without this explicit reset.`,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return initServices()
	},
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepFailed, "failed", false, "also reset failed chunks to pending")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	if store == nil {
		return errors.New("catalog store not configured")
	}

	ctx := context.Background()
	queue := store.ChunkQueue()

	stale, err := queue.ResetStale(ctx, cfg.Pipeline.StaleAfter)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	cmd.Printf("Reset %d stale chunks to pending.\n", stale)

	if sweepFailed {
		failed, err := queue.ResetFailed(ctx)
		if err != nil {
			return fmt.Errorf("failed-chunk reset failed: %w", err)
		}
		cmd.Printf("Reset %d failed chunks to pending.\n", failed)
	}
	return nil
}
