package tools

import (
	"github.com/mark3labs/mcp-go/server"
)

// Version is reported to MCP clients. Set at build time via ldflags.
var Version = "dev"

// NewServer creates an MCP server with logging middleware and all tools
// registered.
func NewServer(deps *Dependencies) *server.MCPServer {
	s := server.NewMCPServer(
		"ravan",
		Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(LoggingMiddleware(deps.logger())),
	)
	RegisterAll(s, deps)
	return s
}

// RegisterAll registers all tools with the MCP server.
func RegisterAll(s *server.MCPServer, deps *Dependencies) {
	s.AddTool(getMemoryTool(), NewGetMemoryHandler(deps))
	s.AddTool(generatePlanTool(), NewGeneratePlanHandler(deps))
	s.AddTool(generateReportTool(), NewGenerateReportHandler(deps))
	s.AddTool(generateDreamTool(), NewGenerateDreamHandler(deps))
	s.AddTool(analyzeDreamsTool(), NewAnalyzeDreamsHandler(deps))
}
