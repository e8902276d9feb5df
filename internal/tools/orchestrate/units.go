package orchestrate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/swarmwork/internal/app"
	"github.com/jaakkos/swarmwork/internal/catalog"
	"github.com/jaakkos/swarmwork/internal/domain"
)

// registerExecuteTask registers the execute_task tool.
func registerExecuteTask(s *server.MCPServer, sys *catalog.System, sessions *app.SessionRegistry, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("execute_task",
			mcp.WithDescription("Route a task to a capability unit. Defaults to the chief orchestrator, which delegates by keyword to the responsible supervisor."),
			mcp.WithString("task", mcp.Required(), mcp.Description("Task description. Delegation rules match keywords in it.")),
			mcp.WithString("to", mcp.Description("Target unit id (default: chief-orchestrator)")),
			mcp.WithString("from", mcp.Description("Caller identifier (default: session caller or 'external')")),
			mcp.WithObject("payload", mcp.Description("Additional task parameters merged into the message payload")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			task, err := requireString(args, "task")
			if err != nil {
				return nil, err
			}
			to := optionalString(args, "to", catalog.ChiefID)
			from := optionalString(args, "from", callerFrom(ctx, sessions))

			unit := sys.All.Resolve(to)
			if unit == nil {
				return nil, fmt.Errorf("unknown unit %q (known: %s)", to, strings.Join(sys.All.ListIDs(), ", "))
			}

			payload := map[string]any{"task": task}
			for k, v := range optionalObject(args, "payload") {
				payload[k] = v
			}

			msg := app.NewMessage(domain.MessageCommand, from, to, payload)
			report := dispatchTask(unit, msg)

			logger.Printf("Task %s executed by %s: %s", msg.ID, to, report.Status)
			return jsonResult(report)
		},
	)
}

// dispatchTask runs msg on unit. Units whose status does not permit execution
// are short-circuited to a blocked report before any domain logic runs; the
// gate applies to direct targets the same way supervisors gate delegates.
func dispatchTask(unit app.CapabilityUnit, msg domain.Message) domain.Report {
	if st := unit.Status(); !st.Executable() {
		return domain.BlockedReport(msg.ID,
			fmt.Sprintf("unit %s has status %s and cannot accept tasks", unit.Identity().ID, st))
	}
	return app.SafeExecute(unit, msg)
}

// registerListUnits registers the list_units tool.
func registerListUnits(s *server.MCPServer, sys *catalog.System, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("list_units",
			mcp.WithDescription("List the unit catalog: id, role, status, reporting line, and capabilities for every registered unit."),
			mcp.WithString("role", mcp.Description("Filter by role: 'supervisor' or 'leaf'")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			roleFilter := optionalString(req.GetArguments(), "role", "")

			type unitRow struct {
				ID           string   `json:"id"`
				DisplayName  string   `json:"display_name"`
				Role         string   `json:"role"`
				Status       string   `json:"status"`
				ReportsTo    string   `json:"reports_to,omitempty"`
				Capabilities []string `json:"capabilities,omitempty"`
			}
			var rows []unitRow
			for _, u := range sys.All.Units() {
				id := u.Identity()
				if roleFilter != "" && string(id.Role) != roleFilter {
					continue
				}
				rows = append(rows, unitRow{
					ID:           id.ID,
					DisplayName:  id.DisplayName,
					Role:         string(id.Role),
					Status:       string(id.Status),
					ReportsTo:    id.ReportsTo,
					Capabilities: id.Capabilities,
				})
			}

			logger.Printf("Listed %d units", len(rows))
			return jsonResult(rows)
		},
	)
}

// registerUnitStatus registers the unit_status tool.
func registerUnitStatus(s *server.MCPServer, sys *catalog.System, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("unit_status",
			mcp.WithDescription("Report a single unit's status, self-report, and whether it can currently be invoked."),
			mcp.WithString("unit", mcp.Required(), mcp.Description("Unit id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			unitID, err := requireString(req.GetArguments(), "unit")
			if err != nil {
				return nil, err
			}
			unit := sys.All.Resolve(unitID)
			if unit == nil {
				return nil, fmt.Errorf("unknown unit %q", unitID)
			}

			id := unit.Identity()
			self := unit.SelfReport()
			out := map[string]any{
				"id":                id.ID,
				"display_name":      id.DisplayName,
				"role":              id.Role,
				"status":            id.Status,
				"executable":        id.Status.Executable(),
				"has_real_logic":    self.HasRealLogic,
				"functional_weight": self.FunctionalWeight,
			}
			if id.ReportsTo != "" {
				out["reports_to"] = id.ReportsTo
			}

			logger.Printf("Status reported for %s: %s", unitID, id.Status)
			return jsonResult(out)
		},
	)
}

// callerFrom resolves the caller identity for the current MCP session.
func callerFrom(ctx context.Context, sessions *app.SessionRegistry) string {
	if sessions != nil {
		if cs := server.ClientSessionFromContext(ctx); cs != nil {
			if caller := sessions.Caller(cs.SessionID()); caller != "" {
				return caller
			}
		}
	}
	return "external"
}

// jsonResult marshals v as indented JSON tool output.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
