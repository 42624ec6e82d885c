package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Delete a document",
	Long: `Soft-deletes a document: the active version is deactivated and its
file and chunk links removed. Files and chunks shared with other
documents are untouched. Version history is retained.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return initServices()
	},
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	if catalogService == nil {
		return errors.New("catalog service not configured")
	}

	if err := catalogService.Delete(context.Background(), args[0]); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	cmd.Printf("Document %s deleted.\n", args[0])
	return nil
}
