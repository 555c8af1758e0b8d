package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"pricehound/models"
	"pricehound/storage"
)

var searchFlags struct {
	csvPath string
	asJSON  bool
	query   string
}

var searchCmd = &cobra.Command{
	Use:   "search [url]",
	Short: "Search every marketplace for the product on a page",
	Long: `Extracts the product title from the page at url and searches every marketplace for it
concurrently. Use --query to search for a literal string instead.`,
	Args: cobra.RangeArgs(0, 1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchFlags.csvPath, "csv", "", "also write the listings to this CSV file (default CSV_OUTPUT_PATH)")
	searchCmd.Flags().BoolVar(&searchFlags.asJSON, "json", false, "print the raw result as JSON instead of the insight report")
	searchCmd.Flags().StringVarP(&searchFlags.query, "query", "q", "", "search for this text instead of a page title")
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	query := searchFlags.query
	if query == "" {
		if len(args) == 0 {
			return cmd.Usage()
		}
		page, err := a.resolver.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		query = page.Title
	}

	a.logger.Info("=== Searching %d marketplaces for %q ===", len(a.aggregator.Backends()), query)
	result := a.aggregator.Aggregate(ctx, query)

	csvPath := searchFlags.csvPath
	if csvPath == "" {
		csvPath = a.cfg.CSVOutputPath
	}
	if csvPath != "" {
		if err := exportCSV(csvPath, query, result); err != nil {
			a.logger.Error("CSV write failed: %v", err)
		} else {
			a.logger.Info("Listings saved to %s", csvPath)
		}
	}

	if searchFlags.asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	a.insights.Print(cmd.OutOrStdout(), a.insights.Generate(query, result))
	return nil
}

func exportCSV(path, query string, result models.AggregatedResult) error {
	w, err := storage.NewCSVWriter(path)
	if err != nil {
		return err
	}
	return export(w, query, result)
}

func export(exporter storage.ResultExporter, query string, result models.AggregatedResult) error {
	defer exporter.Close()
	return exporter.Export(query, result)
}
