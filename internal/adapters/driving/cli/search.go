package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/haven-labs/haven/internal/core/domain"
)

var (
	searchLimit       int
	searchOffset      int
	searchJSON        bool
	searchSource      string
	searchPerson      string
	searchThread      string
	searchContext     int
	searchSince       string
	searchUntil       string
	searchAttachments bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the catalog",
	Long: `Performs hybrid search across all active documents.
Combines keyword (FTS5) and semantic (vector) search, with recency and
attachment boosts. When no embedding provider is configured the result
is keyword-only and marked degraded.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return initServices()
	},
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "maximum number of results")
	searchCmd.Flags().IntVar(&searchOffset, "offset", 0, "number of results to skip")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringVar(&searchSource, "source", "", "restrict to one source type")
	searchCmd.Flags().StringVar(&searchPerson, "person", "", "restrict to documents listing this participant")
	searchCmd.Flags().StringVar(&searchThread, "thread", "", "restrict to one thread")
	searchCmd.Flags().IntVar(&searchContext, "context", 0, "neighbouring thread documents per hit (needs --thread)")
	searchCmd.Flags().StringVar(&searchSince, "since", "", "earliest content date (YYYY-MM-DD)")
	searchCmd.Flags().StringVar(&searchUntil, "until", "", "latest content date (YYYY-MM-DD)")
	searchCmd.Flags().BoolVar(&searchAttachments, "attachments", false, "only documents with attachments")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errors.New("search service not configured")
	}

	opts, err := buildSearchOptions()
	if err != nil {
		return err
	}

	resp, err := searchService.Search(context.Background(), args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return printJSON(cmd, resp)
	}
	return outputSearchTable(cmd, resp)
}

func buildSearchOptions() (domain.SearchOptions, error) {
	opts := domain.SearchOptions{
		Limit:         searchLimit,
		Offset:        searchOffset,
		ContextWindow: searchContext,
		Filter: domain.SearchFilter{
			SourceType: searchSource,
			Person:     searchPerson,
			ThreadID:   searchThread,
		},
	}

	if searchAttachments {
		yes := true
		opts.Filter.HasAttachments = &yes
	}
	if searchSince != "" {
		t, err := time.Parse("2006-01-02", searchSince)
		if err != nil {
			return opts, fmt.Errorf("invalid --since date: %w", err)
		}
		opts.Filter.StartDate = &t
	}
	if searchUntil != "" {
		t, err := time.Parse("2006-01-02", searchUntil)
		if err != nil {
			return opts, fmt.Errorf("invalid --until date: %w", err)
		}
		opts.Filter.EndDate = &t
	}
	if searchContext > 0 && searchThread == "" {
		return opts, errors.New("--context requires --thread")
	}
	return opts, nil
}

func outputSearchTable(cmd *cobra.Command, resp *domain.SearchResponse) error {
	if resp.Degraded {
		cmd.Println("Note: semantic search unavailable, results are keyword-only.")
		cmd.Println()
	}

	if len(resp.Hits) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, hit := range resp.Hits {
		cmd.Printf("  [%d] %s %s (%.2f)\n",
			i+1, hit.Document.SourceType, hit.Document.ExternalID, hit.Score)
		cmd.Printf("      %s\n", hit.Document.ContentTimestamp.Format("2006-01-02 15:04"))
		for _, h := range hit.Highlights {
			cmd.Printf("      %s\n", h)
		}
		for _, c := range hit.Context {
			cmd.Printf("      context: %s (%s)\n",
				c.ExternalID, c.ContentTimestamp.Format("2006-01-02 15:04"))
		}
		cmd.Println()
	}

	if len(resp.Facets.BySourceType) > 0 {
		cmd.Print("Sources:")
		for source, count := range resp.Facets.BySourceType {
			cmd.Printf(" %s=%d", source, count)
		}
		cmd.Println()
	}
	if resp.Timeline != nil {
		cmd.Printf("Timeline: %s to %s\n",
			resp.Timeline.Earliest.Format("2006-01-02"),
			resp.Timeline.Latest.Format("2006-01-02"))
	}
	return nil
}
