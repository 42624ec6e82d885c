package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haven-labs/haven/internal/core/ports/driving"
)

var workerOnce bool

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the embedding workers",
	Long: `Runs the embedding worker pool: claims pending chunks, embeds them
through the configured provider and rolls document status up to indexed.
Claims are crash-safe; a killed worker's chunks are swept back to
pending after the configured staleness window.

With --once a single batch is processed and the command exits.`,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return initServices()
	},
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().BoolVar(&workerOnce, "once", false, "process one batch and exit")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	if embedPipeline == nil {
		return errors.New("embedding pipeline not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if workerOnce {
		n, err := embedPipeline.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("worker failed: %w", err)
		}
		cmd.Printf("Processed %d chunks.\n", n)
		return nil
	}

	// Report progress until the pipeline shuts down.
	go func() {
		for ev := range embedPipeline.Events() {
			switch ev.Kind {
			case driving.EventChunkFailed:
				cmd.Printf("chunk %s failed: %s\n", ev.ChunkID, ev.Detail)
			case driving.EventDocIndexed:
				cmd.Printf("document %s indexed\n", ev.DocumentID)
			}
		}
	}()

	cmd.Println("Embedding workers started. Ctrl-C to stop.")
	if err := embedPipeline.Start(ctx); err != nil {
		return fmt.Errorf("worker failed: %w", err)
	}
	return nil
}
