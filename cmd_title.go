package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var titleCmd = &cobra.Command{
	Use:   "title <url>",
	Short: "Print the product title extracted from a page",
	Args:  cobra.ExactArgs(1),
	RunE:  runTitle,
}

func runTitle(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	page, err := a.resolver.Resolve(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), page.Title)
	if page.ImageURL != "" {
		fmt.Fprintln(cmd.OutOrStdout(), page.ImageURL)
	}
	return nil
}
