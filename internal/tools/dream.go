package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/raphaelgruber/ravan/internal/models"
)

func generateDreamTool() mcp.Tool {
	return mcp.NewTool("generate_dream",
		mcp.WithDescription("Compose a symbolic dream narrative from a user's recent tests, moods and chat messages. "+
			"Without user_id the dream belongs to the platform-wide system user."),
		mcp.WithString("user_id",
			mcp.Description("The user to dream for (optional)"),
		),
	)
}

// NewGenerateDreamHandler creates the generate_dream handler.
func NewGenerateDreamHandler(deps *Dependencies) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		dream, err := deps.Dreams.Generate(ctx, strings.TrimSpace(req.GetString("user_id", "")))
		if err != nil {
			return serviceError("generate dream", err), nil
		}
		return mcp.NewToolResultText(formatDream(dream)), nil
	}
}

func formatDream(d *models.DreamRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Title)
	fmt.Fprintf(&b, "**Mood context:** %s\n\n", d.MoodContext)
	fmt.Fprintf(&b, "%s\n\n", d.Content)
	fmt.Fprintf(&b, "## Interpretation\n%s\n\n", d.Interpretation)
	fmt.Fprintf(&b, "## Inspiration\n%s\n", d.Inspiration)
	return b.String()
}

func analyzeDreamsTool() mcp.Tool {
	return mcp.NewTool("analyze_dreams",
		mcp.WithDescription("Find the recurring symbols across a user's last 30 dreams and interpret each one."),
		mcp.WithString("user_id",
			mcp.Description("The user whose dreams to analyze (optional)"),
		),
	)
}

// NewAnalyzeDreamsHandler creates the analyze_dreams handler.
func NewAnalyzeDreamsHandler(deps *Dependencies) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		patterns, err := deps.Dreams.AnalyzePatterns(ctx, strings.TrimSpace(req.GetString("user_id", "")))
		if err != nil {
			return serviceError("analyze dreams", err), nil
		}
		if len(patterns) == 0 {
			return mcp.NewToolResultText("No dreams recorded yet."), nil
		}
		return mcp.NewToolResultText(formatPatterns(patterns)), nil
	}
}

func formatPatterns(patterns []models.DreamPattern) string {
	var b strings.Builder
	b.WriteString("# Dream symbols\n\n")
	for _, p := range patterns {
		fmt.Fprintf(&b, "- **%s** ×%d (sentiment %+.2f): %s", p.Symbol, p.Frequency, p.Sentiment, p.Meaning)
		if len(p.RelatedTests) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(p.RelatedTests, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
