// Package orchestrate exposes the unit catalog, sequence engine, and
// supervisor coordination surfaces as MCP tools.
package orchestrate

import (
	"log"

	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/swarmwork/internal/app"
	"github.com/jaakkos/swarmwork/internal/catalog"
	"github.com/jaakkos/swarmwork/internal/policy"
)

// Register registers the orchestration tools with the mcp-go server.
// Tools disabled in policy are skipped.
func Register(s *server.MCPServer, sys *catalog.System, store app.SharedStore, pol *policy.Policy, sessions *app.SessionRegistry, logger *log.Logger) {
	type tool struct {
		name     string
		register func()
	}
	tools := []tool{
		// Unit tools (3)
		{"execute_task", func() { registerExecuteTask(s, sys, sessions, logger) }},
		{"list_units", func() { registerListUnits(s, sys, logger) }},
		{"unit_status", func() { registerUnitStatus(s, sys, logger) }},

		// Sequence tools (5)
		{"upsert_sequence", func() { registerUpsertSequence(s, sys, logger) }},
		{"run_sequence", func() { registerRunSequence(s, sys, logger) }},
		{"resume_sequences", func() { registerResumeSequences(s, sys, logger) }},
		{"sequence_status", func() { registerSequenceStatus(s, sys, logger) }},
		{"contact_history", func() { registerContactHistory(s, store, logger) }},

		// Lead tools (1)
		{"upsert_lead", func() { registerUpsertLead(s, sys, logger) }},

		// Mutation pipeline tools (2)
		{"submit_directive", func() { registerSubmitDirective(s, store, logger) }},
		{"apply_mutations", func() { registerApplyMutations(s, sys, logger) }},

		// Cross-component request tools (3)
		{"request_supervisor", func() { registerRequestSupervisor(s, sys, logger) }},
		{"read_requests", func() { registerReadRequests(s, sys, logger) }},
		{"respond_request", func() { registerRespondRequest(s, sys, logger) }},

		// Escalation tool (1)
		{"read_escalations", func() { registerReadEscalations(s, store, logger) }},

		// Session tool (1)
		{"set_caller", func() { registerSetCaller(s, sessions, logger) }},
	}
	for _, t := range tools {
		if !pol.IsToolEnabled(t.name) {
			logger.Printf("Tool %s disabled by policy", t.name)
			continue
		}
		t.register()
	}
}

// supervisorFor resolves a supervisor id to its *app.Supervisor. The engine
// embeds one, so it participates in the request protocol like any other.
func supervisorFor(sys *catalog.System, id string) *app.Supervisor {
	switch id {
	case catalog.ChiefID:
		return sys.Chief
	case catalog.ContentManagerID:
		return sys.Content
	case catalog.OutreachManagerID:
		return sys.Engine.Supervisor
	default:
		return nil
	}
}
