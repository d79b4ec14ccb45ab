package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/ravan/internal/client"
)

var reportClinician string

var reportCmd = &cobra.Command{
	Use:   "report <clientId>",
	Short: "Generate a clinical report with risk classification",
	Long: `Write a clinical report from the client's ten most recent test results and
classify its risk level and category. High and critical flags notify the
clinician.

Examples:
  ravan report client-7 --clinician dr-1`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportClinician, "clinician", "", "clinician requesting the report (required)")
	_ = reportCmd.MarkFlagRequired("clinician")
}

func runReport(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd.OutOrStdout())
	result, err := withSpinner(p, "Writing clinical report...", func() (*client.ReportResult, error) {
		return apiClient.GenerateReport(cmd.Context(), args[0], reportClinician)
	})
	if err != nil {
		return fmt.Errorf("clinical report: %w", err)
	}
	printReport(p, result)
	return nil
}

func printReport(p *printer, r *client.ReportResult) {
	if !r.Success {
		p.println(p.hint("No test results for this client: " + r.Message))
		return
	}
	if r.Risk != nil {
		p.printf("%s %s / %s\n", p.title("Risk:"), p.riskLabel(string(r.Risk.Level)), r.Risk.Category)
		if !r.RiskPersisted {
			p.println(p.warning("The risk flag could not be stored."))
		}
	}
	if r.Report != nil {
		p.println()
		p.println(p.markdown(r.Report.Content))
	}
}
