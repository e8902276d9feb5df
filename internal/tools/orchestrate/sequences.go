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
	"github.com/jaakkos/swarmwork/internal/sequence"
)

// registerUpsertSequence registers the upsert_sequence tool.
func registerUpsertSequence(s *server.MCPServer, sys *catalog.System, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("upsert_sequence",
			mcp.WithDescription("Store or replace an outreach sequence definition from a YAML or JSON document (sequence_id, steps, compliance_settings). Replacement is refused while a run for the sequence is in progress."),
			mcp.WithString("document", mcp.Required(), mcp.Description("Sequence definition document")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			doc, err := requireString(req.GetArguments(), "document")
			if err != nil {
				return nil, err
			}
			seq, err := sequence.ParseSequenceDoc([]byte(doc))
			if err != nil {
				return nil, err
			}
			if err := sys.Engine.SaveSequence(seq); err != nil {
				return nil, err
			}

			logger.Printf("Sequence %s saved (%d steps)", seq.ID, len(seq.Steps))
			return mcp.NewToolResultText(fmt.Sprintf("Sequence %s saved with %d steps", seq.ID, len(seq.Steps))), nil
		},
	)
}

// registerRunSequence registers the run_sequence tool.
func registerRunSequence(s *server.MCPServer, sys *catalog.System, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("run_sequence",
			mcp.WithDescription("Start or advance an outreach sequence run for a lead. Entry gating (sentiment, compliance) applies on first entry; delayed steps leave the run pending until resumed."),
			mcp.WithString("sequence_id", mcp.Required(), mcp.Description("Stored sequence id")),
			mcp.WithString("lead_id", mcp.Required(), mcp.Description("Stored lead id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			seqID, err := requireString(args, "sequence_id")
			if err != nil {
				return nil, err
			}
			leadID, err := requireString(args, "lead_id")
			if err != nil {
				return nil, err
			}

			report, run := sys.Engine.RunSequence(seqID, leadID)
			logger.Printf("Sequence %s for lead %s: %s", seqID, leadID, report.Status)
			return jsonResult(map[string]any{"report": report, "run": run})
		},
	)
}

// registerResumeSequences registers the resume_sequences tool.
func registerResumeSequences(s *server.MCPServer, sys *catalog.System, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("resume_sequences",
			mcp.WithDescription("Re-enter every non-terminal sequence run whose next step is due. The cycle runner does this periodically; this tool forces a pass now."),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			resumed, err := sys.Engine.ResumeDue(time.Now())
			if err != nil {
				return nil, err
			}

			logger.Printf("Resumed %d due sequence runs", resumed)
			return mcp.NewToolResultText(fmt.Sprintf("Resumed %d due sequence runs", resumed)), nil
		},
	)
}

// registerSequenceStatus registers the sequence_status tool.
func registerSequenceStatus(s *server.MCPServer, sys *catalog.System, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("sequence_status",
			mcp.WithDescription("Report the run state for a sequence/lead pair: current step, per-step results, block reasons, and next due time."),
			mcp.WithString("sequence_id", mcp.Required(), mcp.Description("Stored sequence id")),
			mcp.WithString("lead_id", mcp.Required(), mcp.Description("Stored lead id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			seqID, err := requireString(args, "sequence_id")
			if err != nil {
				return nil, err
			}
			leadID, err := requireString(args, "lead_id")
			if err != nil {
				return nil, err
			}

			run, err := sys.Engine.LoadRun(seqID, leadID)
			if err != nil {
				return nil, err
			}
			if run == nil {
				return mcp.NewToolResultText(fmt.Sprintf("No run recorded for sequence %s and lead %s", seqID, leadID)), nil
			}
			return jsonResult(run)
		},
	)
}

// registerContactHistory registers the contact_history tool.
func registerContactHistory(s *server.MCPServer, store app.SharedStore, logger *log.Logger) {
	s.AddTool(
		mcp.NewTool("contact_history",
			mcp.WithDescription("List recorded contact attempts for a lead, newest last. Compliance frequency caps count these."),
			mcp.WithString("lead_id", mcp.Required(), mcp.Description("Lead id")),
			mcp.WithNumber("limit", mcp.Description("Maximum entries to return (default: 50)")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := req.GetArguments()
			leadID, err := requireString(args, "lead_id")
			if err != nil {
				return nil, err
			}
			limit := optionalInt(args, "limit", 50)
			if limit < 1 {
				limit = 1
			}

			entries, err := store.Query("contact_history tool", app.EntryFilter{
				Category: app.CategoryContactHistory,
				Tags:     []string{leadID},
			})
			if err != nil {
				return nil, err
			}
			if len(entries) > limit {
				entries = entries[len(entries)-limit:]
			}

			type contactRow struct {
				Key       string    `json:"key"`
				Value     any       `json:"value"`
				CreatedAt time.Time `json:"created_at"`
			}
			rows := make([]contactRow, 0, len(entries))
			for _, e := range entries {
				var v any
				if err := e.Decode(&v); err != nil {
					return nil, fmt.Errorf("decode contact entry %s: %w", e.Key, err)
				}
				rows = append(rows, contactRow{Key: e.Key, Value: v, CreatedAt: e.CreatedAt})
			}

			logger.Printf("Contact history for %s: %d entries", leadID, len(rows))
			return jsonResult(rows)
		},
	)
}
