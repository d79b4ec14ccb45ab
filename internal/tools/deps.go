// Package tools exposes the therapy pipeline as MCP tools.
package tools

import (
	"log/slog"

	"github.com/raphaelgruber/ravan/internal/service"
)

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	Memory  *service.MemoryService
	Plans   *service.PlanService
	Reports *service.ReportService
	Dreams  *service.DreamService
	Logger  *slog.Logger
}

func (d *Dependencies) logger() *slog.Logger {
	if d == nil || d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
