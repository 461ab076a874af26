// Package main provides the interactive cover letter studio client.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "studio",
	Short:        "Guided cover letter studio",
	Long:         "Studio walks through resume analysis, job selection, drafting and final editing of a cover letter against the cover letter gateway.",
	SilenceUsage: true,
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
