package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/haven-labs/haven/internal/core/domain"
	"github.com/haven-labs/haven/internal/producers/eml"
)

var (
	ingestBatch bool
	ingestJSON  bool
	ingestEML   bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a document envelope",
	Long: `Reads a JSON document envelope from a file (or stdin when no file
is given) and submits it to the catalog. With --batch the input is a
JSON array of envelopes submitted as one batch. With --eml the input
is a raw RFC 5322 email and the envelope is derived from it.

Re-submitting the same idempotency key is safe: the recorded result is
returned without creating a new version.`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return initServices()
	},
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestBatch, "batch", false, "input is a JSON array of envelopes")
	ingestCmd.Flags().BoolVar(&ingestEML, "eml", false, "input is a raw RFC 5322 email")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if catalogService == nil {
		return errors.New("catalog service not configured")
	}

	data, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	ctx := context.Background()

	if ingestBatch {
		var reqs []*domain.IngestRequest
		if err := json.Unmarshal(data, &reqs); err != nil {
			return fmt.Errorf("parsing batch: %w", err)
		}

		batch, err := catalogService.IngestBatch(ctx, reqs)
		if err != nil {
			return fmt.Errorf("batch ingest failed: %w", err)
		}
		return outputBatch(cmd, batch)
	}

	var req *domain.IngestRequest
	if ingestEML {
		req, err = eml.Envelope(data)
		if err != nil {
			return fmt.Errorf("parsing email: %w", err)
		}
	} else {
		req = &domain.IngestRequest{}
		if err := json.Unmarshal(data, req); err != nil {
			return fmt.Errorf("parsing envelope: %w", err)
		}
	}

	result, err := catalogService.Ingest(ctx, req)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	return outputIngestResult(cmd, result)
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 1 && args[0] != "-" {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return data, nil
}

func outputIngestResult(cmd *cobra.Command, result *domain.IngestResult) error {
	if ingestJSON {
		return printJSON(cmd, result)
	}

	if result.Duplicate {
		cmd.Printf("Duplicate submission: document %s version %d unchanged.\n",
			result.DocumentID, result.VersionNumber)
		return nil
	}

	cmd.Printf("Ingested %s as document %s (version %d).\n",
		result.ExternalID, result.DocumentID, result.VersionNumber)
	if result.ThreadID != "" {
		cmd.Printf("  Thread: %s\n", result.ThreadID)
	}
	if len(result.FileIDs) > 0 {
		cmd.Printf("  Files: %d\n", len(result.FileIDs))
	}
	for _, e := range result.AttachmentErrors {
		cmd.Printf("  Attachment warning: %s\n", e)
	}
	return nil
}

func outputBatch(cmd *cobra.Command, batch *domain.BatchResult) error {
	if ingestJSON {
		return printJSON(cmd, batch)
	}

	cmd.Printf("Batch %s: %s (%d succeeded, %d failed)\n",
		batch.BatchKey[:12], batch.Status, batch.Succeeded, batch.Failed)
	for i, item := range batch.Items {
		if item.Error != "" {
			cmd.Printf("  [%d] error: %s\n", i+1, item.Error)
			continue
		}
		cmd.Printf("  [%d] %s -> version %d\n",
			i+1, item.Result.ExternalID, item.Result.VersionNumber)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
