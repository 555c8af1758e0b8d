package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "pricehound",
	Short: "Find a product across marketplaces and watch its price",
	Long: "pricehound extracts a product title from any shop page, searches Ozon, Wildberries and\n" +
		"Megamarket for it concurrently, and tracks prices over time with drop alerts.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	rootCmd.AddCommand(titleCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(trackCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.Version = version
}
