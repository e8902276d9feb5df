package orchestrate

import (
	"context"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/swarmwork/internal/catalog"
	"github.com/jaakkos/swarmwork/internal/domain"
)

// registerUpsertLead registers the upsert_lead tool.
func registerUpsertLead(s *server.MCPServer, sys *catalog.System, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("upsert_lead",
			mcp.WithDescription("Store or replace a lead record. Sequence runs and the compliance gate read leads by id."),
			mcp.WithString("lead_id", mcp.Required(), mcp.Description("Stable lead identifier")),
			mcp.WithString("name", mcp.Description("Lead name")),
			mcp.WithString("company", mcp.Description("Company name")),
			mcp.WithString("email", mcp.Description("Email address")),
			mcp.WithString("phone", mcp.Description("Phone number (SMS channel)")),
			mcp.WithString("linkedin_url", mcp.Description("LinkedIn profile URL")),
			mcp.WithBoolean("do_not_contact", mcp.Description("Lead is on the do-not-contact list (default: false)")),
			mcp.WithBoolean("unsubscribed", mcp.Description("Lead has unsubscribed (default: false)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			leadID, err := requireString(args, "lead_id")
			if err != nil {
				return nil, err
			}

			// Absent lead is fine: this is an upsert.
			existing, err := sys.Engine.LoadLead(leadID)
			if err != nil {
				existing = domain.Lead{}
			}
			lead := domain.Lead{
				ID:           leadID,
				Name:         optionalString(args, "name", existing.Name),
				Company:      optionalString(args, "company", existing.Company),
				Email:        optionalString(args, "email", existing.Email),
				Phone:        optionalString(args, "phone", existing.Phone),
				LinkedInURL:  optionalString(args, "linkedin_url", existing.LinkedInURL),
				DoNotContact: optionalBool(args, "do_not_contact", existing.DoNotContact),
				Unsubscribed: optionalBool(args, "unsubscribed", existing.Unsubscribed),
				CreatedAt:    existing.CreatedAt,
			}
			if err := sys.Engine.SaveLead(lead); err != nil {
				return nil, err
			}

			logger.Printf("Lead %s saved", leadID)
			return mcp.NewToolResultText(fmt.Sprintf("Lead %s saved", leadID)), nil
		},
	)
}
