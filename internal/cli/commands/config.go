package commands

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/adinsights/internal/api/client"
	"github.com/adinsights/internal/models"
)

func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Report configuration commands",
		Aliases: []string{"configs", "c"},
	}

	cmd.AddCommand(newConfigCreateCommand())
	cmd.AddCommand(newConfigListCommand())
	cmd.AddCommand(newConfigGetCommand())

	return cmd
}

func newConfigCreateCommand() *cobra.Command {
	req := models.ConfigRequest{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a report configuration",
		Example: `  adinsights config create --platform meta --metrics spend,clicks --level campaign \
    --date-range last7 --cadence daily --delivery email --email ops@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			resp, err := c.CreateConfig(&req)
			if err != nil {
				var apiErr *client.APIError
				if errors.As(err, &apiErr) && apiErr.InsertedID != 0 {
					return fmt.Errorf("config %d was saved but its first report failed: %w", apiErr.InsertedID, err)
				}
				return fmt.Errorf("failed to create config: %w", err)
			}

			fmt.Printf("Created config %d\n", resp.InsertedID)
			if resp.ReportID != 0 {
				fmt.Printf("Initial report %d generated\n", resp.ReportID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Platform, "platform", "", "ad platform (meta or tiktok)")
	cmd.Flags().StringSliceVar(&req.Metrics, "metrics", nil, "comma separated metric names")
	cmd.Flags().StringVar(&req.Level, "level", "", "reporting level")
	cmd.Flags().StringVar(&req.DateRangeEnum, "date-range", "last7", "date range (last7, last14, last30)")
	cmd.Flags().StringVar(&req.Cadence, "cadence", "manual", "cadence (manual, hourly, every12h, daily)")
	cmd.Flags().StringVar(&req.Delivery, "delivery", "link", "delivery (email or link)")
	cmd.Flags().StringVar(&req.Email, "email", "", "recipient address for email delivery")
	cmd.MarkFlagRequired("platform")
	cmd.MarkFlagRequired("metrics")
	cmd.MarkFlagRequired("level")

	return cmd
}

func newConfigListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List report configurations",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			configs, err := c.ListConfigs()
			if err != nil {
				return fmt.Errorf("failed to list configs: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tPLATFORM\tLEVEL\tMETRICS\tCADENCE\tDELIVERY\tNEXT RUN\tLAST ERROR")
			for _, cfg := range configs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					cfg.ID,
					cfg.Platform,
					cfg.Level,
					strings.Join(cfg.Metrics, ","),
					cfg.Cadence,
					cfg.Delivery,
					formatTime(cfg.NextRunAt),
					valueOr(cfg.LastError, "-"),
				)
			}
			return w.Flush()
		},
	}
	return cmd
}

func newConfigGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [config-id]",
		Short: "Show a report configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			cfg, err := c.GetConfig(id)
			if err != nil {
				return fmt.Errorf("failed to get config: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "ID:\t%d\n", cfg.ID)
			fmt.Fprintf(w, "Platform:\t%s\n", cfg.Platform)
			fmt.Fprintf(w, "Level:\t%s\n", cfg.Level)
			fmt.Fprintf(w, "Metrics:\t%s\n", strings.Join(cfg.Metrics, ", "))
			fmt.Fprintf(w, "Date range:\t%s\n", cfg.DateRange)
			fmt.Fprintf(w, "Cadence:\t%s\n", cfg.Cadence)
			fmt.Fprintf(w, "Delivery:\t%s\n", cfg.Delivery)
			fmt.Fprintf(w, "Email:\t%s\n", valueOr(cfg.Email, "-"))
			fmt.Fprintf(w, "Last run:\t%s\n", formatTime(cfg.LastRunAt))
			fmt.Fprintf(w, "Next run:\t%s\n", formatTime(cfg.NextRunAt))
			fmt.Fprintf(w, "Last error:\t%s\n", valueOr(cfg.LastError, "-"))
			return w.Flush()
		},
	}
	return cmd
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(id), nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}

func valueOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
