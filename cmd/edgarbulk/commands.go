package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"edgarbulk/pkg/core/catalog"
	"edgarbulk/pkg/core/section"
	"edgarbulk/pkg/core/sentiment"
	"edgarbulk/pkg/models"
)

var (
	flagTerms   []string
	flagLexicon string
	flagDate    string
	flagJSON    bool
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the selected filings to the local cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, func(rt *runtime, q catalog.Query) ([]models.FilingResult, error) {
			return rt.runner.Download(cmd.Context(), q)
		})
	},
}

var businessCmd = &cobra.Command{
	Use:   "business",
	Short: "Extract Item 1 business descriptions from annual reports",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, func(rt *runtime, q catalog.Query) ([]models.FilingResult, error) {
			return rt.runner.ExtractSection(cmd.Context(), q, section.BusinessDescription)
		})
	},
}

var mdaCmd = &cobra.Command{
	Use:   "mda",
	Short: "Extract Item 7 management discussion and analysis sections",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, func(rt *runtime, q catalog.Query) ([]models.FilingResult, error) {
			return rt.runner.ExtractSection(cmd.Context(), q, section.DiscussionAndAnalysis)
		})
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Extract disclosed item codes from 8-K filings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, func(rt *runtime, q catalog.Query) ([]models.FilingResult, error) {
			return rt.runner.ExtractEvents(cmd.Context(), q)
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Count keyword occurrences and write highlight artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(flagTerms) == 0 {
			return fmt.Errorf("at least one --term is required")
		}
		return runBatch(cmd, func(rt *runtime, q catalog.Query) ([]models.FilingResult, error) {
			return rt.runner.Search(cmd.Context(), q, flagTerms)
		})
	},
}

var sentimentCmd = &cobra.Command{
	Use:   "sentiment",
	Short: "Score filings against the sentiment lexicon",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagLexicon == "" {
			return fmt.Errorf("--lexicon path is required")
		}
		lex, err := sentiment.LoadLexicon(flagLexicon)
		if err != nil {
			return err
		}
		return runBatch(cmd, func(rt *runtime, q catalog.Query) ([]models.FilingResult, error) {
			return rt.runner.Sentiment(cmd.Context(), q, lex)
		})
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or refresh the annual master index cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(flagYears) == 0 {
			return fmt.Errorf("at least one --year is required")
		}
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		for _, year := range flagYears {
			recs, err := rt.idx.AnnualIndex(cmd.Context(), year)
			if err != nil {
				return err
			}
			fmt.Printf("%d: %d filings indexed\n", year, len(recs))
		}
		return nil
	},
}

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Build or refresh the daily index cache for one date",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagDate == "" {
			return fmt.Errorf("--date YYYY-MM-DD is required")
		}
		date, err := time.Parse("2006-01-02", flagDate)
		if err != nil {
			return fmt.Errorf("malformed --date %q: %w", flagDate, err)
		}
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		recs, err := rt.idx.DailyIndex(cmd.Context(), date)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d filings indexed\n", flagDate, len(recs))
		return nil
	},
}

func init() {
	searchCmd.Flags().StringSliceVar(&flagTerms, "term", nil, "search terms (repeatable)")
	sentimentCmd.Flags().StringVar(&flagLexicon, "lexicon", "", "path to the lexicon dataset file")
	dailyCmd.Flags().StringVar(&flagDate, "date", "", "date to index (YYYY-MM-DD)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit results as JSON")

	rootCmd.AddCommand(indexCmd, dailyCmd, downloadCmd, businessCmd, mdaCmd,
		eventsCmd, searchCmd, sentimentCmd)
}

// runBatch wires the shared flow: build query, run, render table.
func runBatch(cmd *cobra.Command, run func(rt *runtime, q catalog.Query) ([]models.FilingResult, error)) error {
	q, err := buildQuery()
	if err != nil {
		return err
	}
	rt, err := newRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	rows, err := run(rt, q)
	if err == catalog.ErrNoRecords {
		fmt.Println("No filings match the requested filters.")
		return nil
	}
	if err != nil {
		return err
	}
	return render(rows)
}

func render(rows []models.FilingResult) error {
	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	for _, row := range rows {
		line := fmt.Sprintf("%-10d %-12s %-10s %-22s %s",
			row.CIK, row.FormType, row.DateFiled, row.Accession, row.Status)
		if row.ExtractStatus != nil {
			line += fmt.Sprintf("  extract=%d", *row.ExtractStatus)
		}
		if row.Hits != nil {
			line += fmt.Sprintf("  hits=%d", *row.Hits)
		}
		if len(row.Events) > 0 {
			for _, ev := range row.Events {
				line += fmt.Sprintf("\n    Item %s: %s", ev.Code, ev.Description)
			}
		}
		if row.Sentiment != nil {
			line += fmt.Sprintf("  words=%d neg=%d pos=%d",
				row.Sentiment.WordCount, row.Sentiment.Negative, row.Sentiment.Positive)
		}
		fmt.Println(line)
	}
	return nil
}
