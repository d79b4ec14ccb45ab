package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/ravan/internal/client"
	"github.com/raphaelgruber/ravan/internal/models"
)

var memoryCmd = &cobra.Command{
	Use:   "memory <userId>",
	Short: "Show a user's consolidated therapy memory",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemory,
}

func runMemory(cmd *cobra.Command, args []string) error {
	p := newPrinter(cmd.OutOrStdout())
	mem, err := apiClient.GetMemory(cmd.Context(), args[0])
	if client.IsNotFound(err) {
		p.println(p.hint("No therapy memory yet. It is built after the first chat turn."))
		return nil
	}
	if err != nil {
		return fmt.Errorf("therapy memory: %w", err)
	}
	printMemory(p, mem)
	return nil
}

func printMemory(p *printer, m *models.TherapyMemory) {
	p.println(p.title("Therapy memory: " + m.UserID))
	p.println(m.Summary)
	if m.KeyInsights != "" {
		p.println()
		p.printf("%s %s\n", p.success("Insights:"), m.KeyInsights)
	}
	if len(m.EmotionTags) > 0 {
		p.printf("%s %s\n", p.success("Emotions:"), strings.Join(m.EmotionTags, ", "))
	}
	p.println(p.hint("updated " + m.LastUpdated.Format("2006-01-02 15:04")))
}
