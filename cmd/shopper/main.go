package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "shopper",
	Short: "AI shopping assistant: compare prices across the web",
	Long: `shopper forwards product queries to a web-search-enabled model and shows
the offers it finds as product cards.

Run "shopper start" for the browser view on http://127.0.0.1:4100, or use
"shopper search" and "shopper chat" from a terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the shopper version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "shopper version %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(startCmd, stopCmd, statusCmd, searchCmd, chatCmd, mcpCmd, configCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
