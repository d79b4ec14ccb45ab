package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/ravan/internal/models"
)

var planCurrent bool

var planCmd = &cobra.Command{
	Use:   "plan <userId>",
	Short: "Generate the next session plan",
	Long: `Generate and store a new session plan from the user's therapy memory,
recent emotions and moods, and previous plan.

Examples:
  ravan plan user-42
  ravan plan user-42 --current`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().BoolVar(&planCurrent, "current", false, "show the latest plan instead of generating one")
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p := newPrinter(cmd.OutOrStdout())
	var (
		plan *models.SessionPlan
		err  error
	)
	if planCurrent {
		plan, err = apiClient.CurrentPlan(ctx, args[0])
	} else {
		plan, err = withSpinner(p, "Planning next session...", func() (*models.SessionPlan, error) {
			return apiClient.GeneratePlan(ctx, args[0])
		})
	}
	if err != nil {
		return fmt.Errorf("session plan: %w", err)
	}
	printPlan(p, plan)
	return nil
}

func printPlan(p *printer, plan *models.SessionPlan) {
	p.println(p.title("Session plan: " + plan.Topic))
	p.printf("Focus:      %s\n", plan.FocusArea)
	if plan.SuggestedTest != nil {
		p.printf("Test:       %s\n", *plan.SuggestedTest)
	}
	p.printf("Practice:   %s\n", plan.DailyPractice)
	p.printf("Confidence: %.0f%%\n", plan.AIConfidence*100)
	if plan.Fallback {
		p.println(p.hint("The model output was unusable; this is the default plan."))
	}
	if verbose {
		p.println(p.hint(fmt.Sprintf("id %s, created %s", plan.ID, plan.CreatedAt.Format("2006-01-02 15:04"))))
	}
}
