package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/ravan/internal/models"
)

var dreamCmd = &cobra.Command{
	Use:   "dream",
	Short: "Compose and analyze symbolic dreams",
}

var dreamGenerateCmd = &cobra.Command{
	Use:   "generate [userId]",
	Short: "Compose a dream from recent tests, moods and messages",
	Long: `Compose a symbolic dream narrative for a user. Without a user id the dream
belongs to the platform-wide system user.

Examples:
  ravan dream generate user-42
  ravan dream generate`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDreamGenerate,
}

var dreamAnalyzeCmd = &cobra.Command{
	Use:   "analyze [userId]",
	Short: "Find recurring symbols in recent dreams",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDreamAnalyze,
}

func init() {
	dreamCmd.AddCommand(dreamGenerateCmd)
	dreamCmd.AddCommand(dreamAnalyzeCmd)
}

func optionalUser(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func runDreamGenerate(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd.OutOrStdout())
	dream, err := withSpinner(p, "Dreaming...", func() (*models.DreamRecord, error) {
		return apiClient.GenerateDream(cmd.Context(), optionalUser(args))
	})
	if err != nil {
		return fmt.Errorf("generate dream: %w", err)
	}
	printDream(p, dream)
	return nil
}

func printDream(p *printer, d *models.DreamRecord) {
	p.println(p.title(d.Title))
	p.println(p.hint("mood: " + string(d.MoodContext)))
	p.println()
	p.println(p.markdown(d.Content))
	p.println()
	p.printf("%s %s\n", p.success("Interpretation:"), d.Interpretation)
	p.printf("%s %s\n", p.success("Inspiration:"), d.Inspiration)
}

func runDreamAnalyze(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd.OutOrStdout())
	patterns, err := withSpinner(p, "Reading dream symbols...", func() ([]models.DreamPattern, error) {
		return apiClient.AnalyzeDreams(cmd.Context(), optionalUser(args))
	})
	if err != nil {
		return fmt.Errorf("analyze dreams: %w", err)
	}
	printPatterns(p, patterns)
	return nil
}

func printPatterns(p *printer, patterns []models.DreamPattern) {
	if len(patterns) == 0 {
		p.println(p.hint("No dreams recorded yet."))
		return
	}
	p.println(p.title("Dream symbols"))
	for _, pat := range patterns {
		p.printf("  %-16s ×%-3d %+.2f  %s\n", pat.Symbol, pat.Frequency, pat.Sentiment, pat.Meaning)
	}
}
