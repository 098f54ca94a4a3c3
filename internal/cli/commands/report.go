package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/adinsights/internal/api/client"
	"github.com/adinsights/internal/models"
)

func NewReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "report",
		Short:   "Report commands",
		Aliases: []string{"reports", "r"},
	}

	cmd.AddCommand(newReportGenerateCommand())
	cmd.AddCommand(newReportViewCommand())
	cmd.AddCommand(newReportListCommand())

	return cmd
}

func newReportGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [config-id]",
		Short: "Generate a report now",
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

			resp, err := c.GenerateReport(id)
			if err != nil {
				return fmt.Errorf("failed to generate report: %w", err)
			}

			fmt.Printf("Report %d %s\n", resp.ReportID, resp.Status)
			if resp.Status == models.ReportStatusFailed {
				fmt.Printf("Error: %s\n", resp.LastError)
			}
			fmt.Printf("View: %s\n", resp.ViewURL)
			return nil
		},
	}
	return cmd
}

func newReportViewCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "view [report-id]",
		Short: "Download the HTML of a report",
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

			var w io.Writer = os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				w = f
			}

			if err := c.ViewReport(id, w); err != nil {
				return fmt.Errorf("failed to fetch report: %w", err)
			}
			if output != "" {
				fmt.Printf("Report %d written to %s\n", id, output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func newReportListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list [config-id]",
		Short:   "List the reports of a configuration",
		Aliases: []string{"ls"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %w", err)
			}

			reports, err := c.ListReports(id)
			if err != nil {
				return fmt.Errorf("failed to list reports: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tFINISHED\tEMAIL\tERROR")
			for _, r := range reports {
				email := "-"
				if r.EmailSentStatus != "" {
					email = r.EmailSentStatus + " to " + r.EmailAddress
				}
				errMsg := r.ErrorMessage
				if errMsg == "" {
					errMsg = "-"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Status, formatTime(r.RunStart), finishedAt(&r), email, errMsg)
			}
			return w.Flush()
		},
	}
	return cmd
}

// finishedAt shows the end time of a finished run, or "in progress".
func finishedAt(r *models.Report) string {
	if !r.IsTerminal() {
		return "in progress"
	}
	return formatTime(r.RunEnd)
}
