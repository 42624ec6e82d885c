package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haven-labs/haven/internal/adapters/driving/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serves the ingest and search API over HTTP for local producers.
The embedding workers run in the same process, so documents ingested
through the API become semantically searchable without a separate
worker.`,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return initServices()
	},
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if catalogService == nil || searchService == nil {
		return errors.New("services not configured")
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Workers share the process; a missing embedding provider just
	// means lexical-only search, not a refusal to serve.
	if embedPipeline != nil {
		go func() {
			if err := embedPipeline.Start(ctx); err != nil {
				cmd.PrintErrf("embedding workers unavailable: %v\n", err)
			}
		}()
	}

	server := api.NewServer(catalogService, searchService, store.ChunkQueue(), version)

	cmd.Printf("Haven API listening on %s. Ctrl-C to stop.\n", addr)
	if err := server.ListenAndServe(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
