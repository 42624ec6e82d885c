package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/haven-labs/haven/internal/core/domain"
	"github.com/haven-labs/haven/internal/logger"
	"github.com/haven-labs/haven/internal/producers/eml"
)

var watchCmd = &cobra.Command{
	Use:   "watch [spool-dir]",
	Short: "Watch a spool directory for envelopes",
	Long: `Watches a directory for envelope files dropped by producers.
JSON envelopes (.json) and raw emails (.eml) are ingested and then
deleted; files that fail to ingest are renamed with a .err suffix and
left in place.

Envelopes already in the directory at startup are processed first, so
documents spooled while the watcher was down are not lost.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return initServices()
	},
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if catalogService == nil {
		return errors.New("catalog service not configured")
	}

	dir := args[0]
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("spool directory %s does not exist", dir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	// Drain the backlog before relying on events.
	if err := processSpoolBacklog(ctx, cmd, dir); err != nil {
		return err
	}

	cmd.Printf("Watching %s. Ctrl-C to stop.\n", dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Producers write then close; Create covers atomic renames
			// into the directory, Write covers in-place writes.
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isSpoolFile(event.Name) {
				continue
			}
			processSpoolFile(ctx, cmd, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch error: %v", err)
		}
	}
}

func processSpoolBacklog(ctx context.Context, cmd *cobra.Command, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading spool directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !isSpoolFile(entry.Name()) {
			continue
		}
		processSpoolFile(ctx, cmd, filepath.Join(dir, entry.Name()))
	}
	return nil
}

func isSpoolFile(name string) bool {
	return strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".eml")
}

// processSpoolFile ingests one envelope file. Failures never stop the
// watcher; the file is renamed so the operator can inspect it.
func processSpoolFile(ctx context.Context, cmd *cobra.Command, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		// The producer may still be writing or already renamed it.
		logger.Debug("skipping %s: %v", path, err)
		return
	}

	var req *domain.IngestRequest
	if strings.HasSuffix(path, ".eml") {
		var err error
		req, err = eml.Envelope(data)
		if err != nil {
			failSpoolFile(cmd, path, err)
			return
		}
	} else {
		req = &domain.IngestRequest{}
		if err := json.Unmarshal(data, req); err != nil {
			failSpoolFile(cmd, path, fmt.Errorf("parsing envelope: %w", err))
			return
		}
	}

	result, err := catalogService.Ingest(ctx, req)
	if err != nil {
		failSpoolFile(cmd, path, err)
		return
	}

	if err := os.Remove(path); err != nil {
		logger.Warn("removing %s: %v", path, err)
	}
	cmd.Printf("Ingested %s: document %s version %d\n",
		filepath.Base(path), result.DocumentID, result.VersionNumber)
}

func failSpoolFile(cmd *cobra.Command, path string, cause error) {
	cmd.Printf("Failed %s: %v\n", filepath.Base(path), cause)
	if err := os.Rename(path, path+".err"); err != nil {
		logger.Warn("renaming %s: %v", path, err)
	}
}
