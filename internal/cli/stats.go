package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/ravan/internal/client"
	"github.com/raphaelgruber/ravan/internal/metrics"
)

var statsDeadLetters bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server runtime statistics",
	Long: `Show in-memory server statistics since the last restart: model calls,
database queries, pipeline stages, and background task outcomes.

Examples:
  ravan stats
  ravan stats --dead-letters`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsDeadLetters, "dead-letters", false, "list dropped background tasks")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	p := newPrinter(cmd.OutOrStdout())

	stats, err := apiClient.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get server stats: %w", err)
	}
	printServerStats(p, stats)

	if statsDeadLetters {
		letters, err := apiClient.DeadLetters(ctx)
		if err != nil {
			return fmt.Errorf("get dead letters: %w", err)
		}
		p.println()
		printDeadLetters(p, letters)
	}
	return nil
}

// printServerStats displays server runtime statistics.
func printServerStats(p *printer, stats *client.Stats) {
	p.println(p.title("Server Statistics (in-memory, since restart)"))
	p.printf("═══════════════════════════════════════════════\n")
	p.printf("Uptime: %.1f seconds\n", stats.UptimeSeconds)
	p.printf("Queue:  %d pending, %d dead-lettered\n", stats.QueuePending, stats.DeadLetters)

	names := make([]string, 0, len(stats.Operations))
	for name := range stats.Operations {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		p.printf("\n%s:\n", name)
		printOpStats(p, stats.Operations[name])
	}

	if len(stats.Counters) > 0 {
		p.printf("\nCounters:\n")
		counters := make([]string, 0, len(stats.Counters))
		for name := range stats.Counters {
			counters = append(counters, name)
		}
		slices.Sort(counters)
		for _, name := range counters {
			p.printf("  %-24s %d\n", name, stats.Counters[name])
		}
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(p *printer, op *metrics.OperationSnapshot) {
	p.printf("  Calls: %d, Failures: %d, Total: %dms\n", op.Count, op.Failures, op.TotalTimeMs)
	p.printf("  Time: avg %.1fms, min %dms, max %dms\n", op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	if op.InputTokens != nil && op.OutputTokens != nil {
		p.printf("  Tokens: %d in, %d out", *op.InputTokens, *op.OutputTokens)
		if op.AvgTokens != nil {
			p.printf(", avg %.0f per call", *op.AvgTokens)
		}
		p.println()
	}
}

func printDeadLetters(p *printer, letters []client.DeadLetter) {
	if len(letters) == 0 {
		p.println(p.hint("No dead letters."))
		return
	}
	p.println(p.title("Dead letters"))
	for _, l := range letters {
		p.printf("  %s %-20s user=%s attempts=%d  %s\n",
			l.FailedAt.Format("15:04:05"), l.Task.Stage, l.Task.UserID, l.Task.Attempts, p.errorf("%s", l.Reason))
	}
}
