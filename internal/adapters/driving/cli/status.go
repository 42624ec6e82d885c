package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haven-labs/haven/internal/core/domain"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status [submission-or-document-id]",
	Short: "Show submission status",
	Long: `Shows the workflow state and chunk embedding counts for a
submission ID or a document ID. Without an argument, reports the number
of chunks waiting for embedding.`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return initServices()
	},
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if len(args) == 0 {
		if store == nil {
			return errors.New("catalog store not configured")
		}
		pending, err := store.ChunkQueue().PendingCount(ctx)
		if err != nil {
			return fmt.Errorf("status failed: %w", err)
		}
		cmd.Printf("Pending chunks: %d\n", pending)
		return nil
	}

	if catalogService == nil {
		return errors.New("catalog service not configured")
	}

	report, err := catalogService.SubmissionStatus(ctx, args[0])
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}

	if statusJSON {
		return printJSON(cmd, report)
	}

	cmd.Printf("Document %s (%s) version %d: %s\n",
		report.DocumentID, report.ExternalID, report.VersionNumber, report.Status)
	cmd.Printf("Chunks: %d pending, %d processing, %d embedded, %d failed\n",
		report.ChunkCounts[domain.EmbeddingPending],
		report.ChunkCounts[domain.EmbeddingProcessing],
		report.ChunkCounts[domain.EmbeddingEmbedded],
		report.ChunkCounts[domain.EmbeddingFailed])
	return nil
}
