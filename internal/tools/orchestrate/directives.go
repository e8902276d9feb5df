package orchestrate

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/swarmwork/internal/app"
	"github.com/jaakkos/swarmwork/internal/catalog"
	"github.com/jaakkos/swarmwork/internal/domain"
)

// registerSubmitDirective registers the submit_directive tool.
func registerSubmitDirective(s *server.MCPServer, store app.SharedStore, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("submit_directive",
			mcp.WithDescription("Submit a mutation directive to the shared store. The owning supervisor applies it on its next cycle; directives are applied at most once."),
			mcp.WithString("type", mcp.Required(), mcp.Description("Directive type, e.g. 'adjust_contact_frequency', 'set_quiet_hours', 'adjust_content_params'")),
			mcp.WithString("target_domain", mcp.Description("Domain the directive targets, e.g. 'outreach'")),
			mcp.WithString("reason", mcp.Description("Why this change is proposed")),
			mcp.WithString("source_agent", mcp.Description("Identifier of the proposing component")),
			mcp.WithNumber("confidence", mcp.Description("Proposer's confidence, 0-100")),
			mcp.WithNumber("priority", mcp.Description("Application priority; higher applies first (default: 5)")),
			mcp.WithObject("parameters", mcp.Required(), mcp.Description("Directive parameters")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			dirType, err := requireString(args, "type")
			if err != nil {
				return nil, err
			}
			params := optionalObject(args, "parameters")
			if len(params) == 0 {
				return nil, fmt.Errorf("parameters is required")
			}

			d := domain.MutationDirective{
				ID:           uuid.NewString(),
				Type:         dirType,
				TargetDomain: optionalString(args, "target_domain", ""),
				Parameters:   params,
				Reason:       optionalString(args, "reason", ""),
				Confidence:   optionalInt(args, "confidence", 0),
				SourceAgent:  optionalString(args, "source_agent", "external"),
				Priority:     optionalInt(args, "priority", 5),
				CreatedAt:    time.Now(),
			}
			if err := store.Write(app.CategoryDirectives, d.ID, d, d.SourceAgent, app.WriteOptions{
				Priority: d.Priority,
				Tags:     []string{d.Type},
			}); err != nil {
				return nil, fmt.Errorf("store directive: %w", err)
			}

			logger.Printf("Directive %s submitted (type=%s, priority=%d)", d.ID, d.Type, d.Priority)
			return mcp.NewToolResultText(fmt.Sprintf("Directive %s submitted", d.ID)), nil
		},
	)
}

// registerApplyMutations registers the apply_mutations tool.
func registerApplyMutations(s *server.MCPServer, sys *catalog.System, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("apply_mutations",
			mcp.WithDescription("Run the mutation pipeline now for one supervisor (or all): read unprocessed owned directives, apply them, audit, and mark processed."),
			mcp.WithString("supervisor", mcp.Description("Supervisor id (default: all supervisors)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			target := optionalString(req.GetArguments(), "supervisor", "")

			supervisors := []*app.Supervisor{sys.Chief, sys.Content, sys.Engine.Supervisor}
			if target != "" {
				sup := supervisorFor(sys, target)
				if sup == nil {
					return nil, fmt.Errorf("unknown supervisor %q", target)
				}
				supervisors = []*app.Supervisor{sup}
			}

			outcomes := make(map[string][]app.MutationOutcome)
			for _, sup := range supervisors {
				applied, err := sup.ReadAndApplyMutations()
				if err != nil {
					return nil, fmt.Errorf("apply mutations for %s: %w", sup.ID(), err)
				}
				if len(applied) > 0 {
					outcomes[sup.ID()] = applied
				}
			}
			if len(outcomes) == 0 {
				return mcp.NewToolResultText("No unprocessed directives"), nil
			}

			logger.Printf("Applied mutations for %d supervisors", len(outcomes))
			return jsonResult(outcomes)
		},
	)
}
