package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/adinsights/internal/cli/commands"
)

var rootCmd = &cobra.Command{
	Use:   "adinsights",
	Short: "adinsights CLI - scheduled ad insight reports",
	Long: `adinsights is a command-line client for the adinsights server.
It manages report configurations, generates reports on demand and triggers
scheduler passes. The server address is read from ADINSIGHTS_API_URL.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(commands.NewConfigCommand())
	rootCmd.AddCommand(commands.NewReportCommand())
	rootCmd.AddCommand(commands.NewCronCommand())
	rootCmd.AddCommand(commands.NewSetupCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
