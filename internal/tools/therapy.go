package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/raphaelgruber/ravan/internal/models"
)

func getMemoryTool() mcp.Tool {
	return mcp.NewTool("get_therapy_memory",
		mcp.WithDescription("Read the consolidated therapy memory of a user: summary, key insights and emotion tags."),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("The user whose memory to read"),
		),
	)
}

// NewGetMemoryHandler creates the get_therapy_memory handler.
func NewGetMemoryHandler(deps *Dependencies) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID := strings.TrimSpace(req.GetString("user_id", ""))
		if userID == "" {
			return ErrorResult("'user_id' is required", ""), nil
		}

		mem, err := deps.Memory.Get(ctx, userID)
		if err != nil {
			return serviceError("read memory", err), nil
		}
		if mem == nil {
			return ErrorResult(fmt.Sprintf("no therapy memory for user %q", userID),
				"Memory is consolidated after the user's first chat turn"), nil
		}
		return mcp.NewToolResultText(formatMemory(mem)), nil
	}
}

func formatMemory(m *models.TherapyMemory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Therapy memory: %s\n\n", m.UserID)
	fmt.Fprintf(&b, "**Updated:** %s\n\n", m.LastUpdated.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "## Summary\n%s\n\n", m.Summary)
	if m.KeyInsights != "" {
		fmt.Fprintf(&b, "## Key insights\n%s\n\n", m.KeyInsights)
	}
	if len(m.EmotionTags) > 0 {
		fmt.Fprintf(&b, "**Emotions:** %s\n", strings.Join(m.EmotionTags, ", "))
	}
	return b.String()
}

func generatePlanTool() mcp.Tool {
	return mcp.NewTool("generate_session_plan",
		mcp.WithDescription("Generate and store the next session plan for a user from their memory, emotions, moods and previous plan."),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("The user to plan the next session for"),
		),
	)
}

// NewGeneratePlanHandler creates the generate_session_plan handler.
func NewGeneratePlanHandler(deps *Dependencies) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		plan, err := deps.Plans.Generate(ctx, strings.TrimSpace(req.GetString("user_id", "")))
		if err != nil {
			return serviceError("generate plan", err), nil
		}
		return JSONResult(plan), nil
	}
}

func generateReportTool() mcp.Tool {
	return mcp.NewTool("generate_clinical_report",
		mcp.WithDescription("Write a clinical report from a client's recent test results and classify its risk level and category."),
		mcp.WithString("client_id",
			mcp.Required(),
			mcp.Description("The client the report is about"),
		),
		mcp.WithString("clinician_id",
			mcp.Required(),
			mcp.Description("The clinician requesting the report"),
		),
	)
}

// NewGenerateReportHandler creates the generate_clinical_report handler.
func NewGenerateReportHandler(deps *Dependencies) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := deps.Reports.Generate(ctx,
			strings.TrimSpace(req.GetString("client_id", "")),
			strings.TrimSpace(req.GetString("clinician_id", "")))
		if err != nil {
			return serviceError("generate report", err), nil
		}
		if !result.Success {
			return ErrorResult("no test results for client", "Record client test results first"), nil
		}
		return JSONResult(result), nil
	}
}
