package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adinsights/internal/api/client"
)

func NewCronCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cron",
		Short: "Run one scheduler pass on the server",
		Long: `Triggers the server's cron endpoint, which generates every report whose
next run time has passed. Set ADINSIGHTS_API_TOKEN when the server requires
a scheduler token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			out, err := c.RunCron()
			if err != nil {
				return fmt.Errorf("cron request failed: %w", err)
			}
			fmt.Println(out)
			return nil
		},
	}
}

func NewSetupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the database tables on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			if err := c.Setup(); err != nil {
				return fmt.Errorf("setup failed: %w", err)
			}
			fmt.Println("Tables are ready")
			return nil
		},
	}
}
