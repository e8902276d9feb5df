package orchestrate

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/swarmwork/internal/app"
	"github.com/jaakkos/swarmwork/internal/catalog"
	"github.com/jaakkos/swarmwork/internal/domain"
)

// registerRequestSupervisor registers the request_supervisor tool.
func registerRequestSupervisor(s *server.MCPServer, sys *catalog.System, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("request_supervisor",
			mcp.WithDescription("Send a cross-component request from one supervisor to another. Delivered over the in-process transport and mirrored durably in the shared store."),
			mcp.WithString("from", mcp.Required(), mcp.Description("Requesting supervisor id")),
			mcp.WithString("to", mcp.Required(), mcp.Description("Target supervisor id")),
			mcp.WithString("request_type", mcp.Required(), mcp.Description("Request type, e.g. 'capacity_check', 'content_refresh'")),
			mcp.WithString("description", mcp.Required(), mcp.Description("What is being requested")),
			mcp.WithString("urgency", mcp.Description("LOW, NORMAL, HIGH, or CRITICAL (default: NORMAL)")),
			mcp.WithString("deadline", mcp.Description("RFC 3339 deadline, optional")),
			mcp.WithObject("payload", mcp.Description("Structured request payload")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			from, err := requireString(args, "from")
			if err != nil {
				return nil, err
			}
			to, err := requireString(args, "to")
			if err != nil {
				return nil, err
			}
			reqType, err := requireString(args, "request_type")
			if err != nil {
				return nil, err
			}
			description, err := requireString(args, "description")
			if err != nil {
				return nil, err
			}

			sender := supervisorFor(sys, from)
			if sender == nil {
				return nil, fmt.Errorf("unknown supervisor %q", from)
			}
			if supervisorFor(sys, to) == nil {
				return nil, fmt.Errorf("unknown supervisor %q", to)
			}

			ccr := domain.CrossComponentRequest{
				ToSupervisor: to,
				RequestType:  reqType,
				Description:  description,
				Urgency:      domain.Urgency(optionalString(args, "urgency", string(domain.UrgencyNormal))),
				Payload:      optionalObject(args, "payload"),
			}
			if deadline := optionalString(args, "deadline", ""); deadline != "" {
				t, err := time.Parse(time.RFC3339, deadline)
				if err != nil {
					return nil, fmt.Errorf("parse deadline: %w", err)
				}
				ccr.Deadline = &t
			}

			id, err := sender.RequestFromSupervisor(ccr)
			if err != nil {
				return nil, err
			}

			logger.Printf("Request %s sent from %s to %s (%s)", id, from, to, reqType)
			return mcp.NewToolResultText(fmt.Sprintf("Request %s sent to %s", id, to)), nil
		},
	)
}

// registerReadRequests registers the read_requests tool.
func registerReadRequests(s *server.MCPServer, sys *catalog.System, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("read_requests",
			mcp.WithDescription("Read the unresponded cross-component requests addressed to a supervisor, loading any new ones from the shared store first."),
			mcp.WithString("supervisor", mcp.Required(), mcp.Description("Supervisor id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			target, err := requireString(req.GetArguments(), "supervisor")
			if err != nil {
				return nil, err
			}
			sup := supervisorFor(sys, target)
			if sup == nil {
				return nil, fmt.Errorf("unknown supervisor %q", target)
			}

			if _, err := sup.ReadIncomingRequests(); err != nil {
				return nil, err
			}
			pending := sup.PendingRequests()
			if len(pending) == 0 {
				return mcp.NewToolResultText(fmt.Sprintf("No pending requests for %s", target)), nil
			}

			logger.Printf("Read %d pending requests for %s", len(pending), target)
			return jsonResult(pending)
		},
	)
}

// registerRespondRequest registers the respond_request tool.
func registerRespondRequest(s *server.MCPServer, sys *catalog.System, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("respond_request",
			mcp.WithDescription("Mark a cross-component request responded. Responded requests are excluded from future cycles."),
			mcp.WithString("supervisor", mcp.Required(), mcp.Description("Supervisor id the request was addressed to")),
			mcp.WithString("request_id", mcp.Required(), mcp.Description("Request id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			target, err := requireString(args, "supervisor")
			if err != nil {
				return nil, err
			}
			requestID, err := requireString(args, "request_id")
			if err != nil {
				return nil, err
			}
			sup := supervisorFor(sys, target)
			if sup == nil {
				return nil, fmt.Errorf("unknown supervisor %q", target)
			}

			if err := sup.MarkRequestResponded(requestID); err != nil {
				return nil, err
			}

			logger.Printf("Request %s marked responded by %s", requestID, target)
			return mcp.NewToolResultText(fmt.Sprintf("Request %s marked responded", requestID)), nil
		},
	)
}

// registerReadEscalations registers the read_escalations tool.
func registerReadEscalations(s *server.MCPServer, store app.SharedStore, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("read_escalations",
			mcp.WithDescription("Read quality-gate escalation records: units whose output was rejected after the retry budget was exhausted."),
			mcp.WithString("addressed_to", mcp.Description("Filter by escalation authority id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			addressedTo := optionalString(req.GetArguments(), "addressed_to", "")

			filter := app.EntryFilter{Category: app.CategoryEscalations, Tags: []string{app.TagQualityGateEscalation}}
			if addressedTo != "" {
				filter.Tags = append(filter.Tags, addressedTo)
			}
			entries, err := store.Query("read_escalations tool", filter)
			if err != nil {
				return nil, err
			}
			if len(entries) == 0 {
				return mcp.NewToolResultText("No escalations"), nil
			}

			records := make([]app.EscalationRecord, 0, len(entries))
			for _, e := range entries {
				var rec app.EscalationRecord
				if err := e.Decode(&rec); err != nil {
					return nil, fmt.Errorf("decode escalation %s: %w", e.Key, err)
				}
				records = append(records, rec)
			}

			logger.Printf("Read %d escalations", len(records))
			return jsonResult(records)
		},
	)
}
