package orchestrate

import (
	"context"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/swarmwork/internal/app"
)

// registerSetCaller registers the set_caller tool.
func registerSetCaller(s *server.MCPServer, sessions *app.SessionRegistry, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("set_caller",
			mcp.WithDescription("Associate a caller identity with this MCP session. Tools use it to default the 'from' field."),
			mcp.WithString("caller", mcp.Required(), mcp.Description("Caller identifier, e.g. 'analyst', 'scheduler'")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			caller, err := requireString(req.GetArguments(), "caller")
			if err != nil {
				return nil, err
			}
			session := server.ClientSessionFromContext(ctx)
			if session == nil {
				return nil, fmt.Errorf("no active session")
			}
			sessions.SetCaller(session.SessionID(), caller)

			logger.Printf("Session %s registered as %s", session.SessionID(), caller)
			return mcp.NewToolResultText(fmt.Sprintf("Session registered as %s", caller)), nil
		},
	)
}
