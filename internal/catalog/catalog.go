// Package catalog defines the closed, compile-time unit catalog and wires
// the supervisor tree. Unknown ids resolve to an explicit not-found at the
// registry, never a panic.
package catalog

import (
	"log"

	"github.com/jaakkos/swarmwork/internal/app"
	"github.com/jaakkos/swarmwork/internal/domain"
	"github.com/jaakkos/swarmwork/internal/sequence"
)

// Stable unit ids.
const (
	ChiefID           = "chief-orchestrator"
	ContentManagerID  = "content-manager"
	OutreachManagerID = "outreach-manager"
	HookWriterID      = "hook-writer"
	ThreadWriterID    = "thread-writer"
	ReplyDrafterID    = "reply-drafter"
	CaseStudyWriterID = "case-study-writer"
)

// Deps are the collaborators injected into the catalog. Store, Transport,
// and Logger are required; the rest default to inert implementations.
type Deps struct {
	Store      app.SharedStore
	Transport  app.Transport
	Generator  app.Generator
	Provider   sequence.Provider
	Sentiment  sequence.SentimentSource
	Reviewer   app.Reviewer
	Compliance domain.ComplianceSettings
	MaxRetries int
	EscalateTo string
	Overrides  map[string]domain.Status
	Logger     *log.Logger
}

// System is the built supervisor tree plus a flat registry of every unit for
// id resolution across tiers.
type System struct {
	Chief         *app.Supervisor
	Content       *app.Supervisor
	Engine        *sequence.Engine
	All           *app.Registry
	ContentParams *ParamMutator
}

// CycleTargets returns the supervisors in the order their cycles run.
func (s *System) CycleTargets() []app.CycleTarget {
	return []app.CycleTarget{s.Chief, s.Content, s.Engine}
}

func (d Deps) status(id string, def domain.Status) domain.Status {
	if st, ok := d.Overrides[id]; ok {
		return st
	}
	return def
}

// Build constructs the catalog. The registries are built once here and are
// immutable afterwards.
func Build(deps Deps) *System {
	if deps.EscalateTo == "" {
		deps.EscalateTo = ChiefID
	}

	specialists := []*app.Specialist{
		app.NewSpecialist(domain.Identity{
			ID:           HookWriterID,
			DisplayName:  "Hook Writer",
			Status:       deps.status(HookWriterID, domain.StatusVerified),
			ReportsTo:    ContentManagerID,
			Capabilities: []string{"hooks", "short-form"},
		}, deps.Generator, deps.Logger),
		app.NewSpecialist(domain.Identity{
			ID:           ThreadWriterID,
			DisplayName:  "Thread Writer",
			Status:       deps.status(ThreadWriterID, domain.StatusOperational),
			ReportsTo:    ContentManagerID,
			Capabilities: []string{"threads", "long-form"},
		}, deps.Generator, deps.Logger),
		app.NewSpecialist(domain.Identity{
			ID:           ReplyDrafterID,
			DisplayName:  "Reply Drafter",
			Status:       deps.status(ReplyDrafterID, domain.StatusOperational),
			ReportsTo:    ContentManagerID,
			Capabilities: []string{"replies"},
		}, deps.Generator, deps.Logger),
		app.NewSpecialist(domain.Identity{
			ID:           CaseStudyWriterID,
			DisplayName:  "Case Study Writer",
			Status:       deps.status(CaseStudyWriterID, domain.StatusStub),
			ReportsTo:    ContentManagerID,
			Capabilities: []string{"case-studies"},
		}, deps.Generator, deps.Logger),
	}
	contentUnits := make([]app.CapabilityUnit, len(specialists))
	for i, s := range specialists {
		contentUnits[i] = s
	}

	contentParams := NewParamMutator("adjust_content_params")
	content := app.NewSupervisor(app.SupervisorConfig{
		Identity: domain.Identity{
			ID:          ContentManagerID,
			DisplayName: "Content Manager",
			Status:      deps.status(ContentManagerID, domain.StatusOperational),
			ReportsTo:   ChiefID,
		},
		Rules: []domain.DelegationRule{
			{TriggerKeywords: []string{"hook"}, DelegateTo: HookWriterID, Priority: 10},
			{TriggerKeywords: []string{"thread"}, DelegateTo: ThreadWriterID, Priority: 10},
			{TriggerKeywords: []string{"reply", "respond"}, DelegateTo: ReplyDrafterID, Priority: 8},
			{TriggerKeywords: []string{"case study", "case-study"}, DelegateTo: CaseStudyWriterID, Priority: 5},
		},
		DefaultDelegate: HookWriterID,
		MaxRetries:      deps.MaxRetries,
		EscalateTo:      deps.EscalateTo,
	}, app.NewRegistry(contentUnits...), deps.Store, deps.Transport, deps.Reviewer, contentParams, deps.Logger)

	channels := []app.CapabilityUnit{
		sequence.NewChannelUnit(domain.Identity{
			ID:          sequence.ChannelUnitID(domain.ChannelEmail),
			DisplayName: "Email Channel",
			Status:      deps.status(sequence.ChannelUnitID(domain.ChannelEmail), domain.StatusOperational),
			ReportsTo:   OutreachManagerID,
		}, domain.ChannelEmail, deps.Provider, deps.Logger),
		sequence.NewChannelUnit(domain.Identity{
			ID:          sequence.ChannelUnitID(domain.ChannelSMS),
			DisplayName: "SMS Channel",
			Status:      deps.status(sequence.ChannelUnitID(domain.ChannelSMS), domain.StatusOperational),
			ReportsTo:   OutreachManagerID,
		}, domain.ChannelSMS, deps.Provider, deps.Logger),
		sequence.NewChannelUnit(domain.Identity{
			ID:          sequence.ChannelUnitID(domain.ChannelLinkedIn),
			DisplayName: "LinkedIn Channel",
			Status:      deps.status(sequence.ChannelUnitID(domain.ChannelLinkedIn), domain.StatusStub),
			ReportsTo:   OutreachManagerID,
		}, domain.ChannelLinkedIn, deps.Provider, deps.Logger),
	}

	engine := sequence.NewEngine(sequence.EngineConfig{
		Identity: domain.Identity{
			ID:          OutreachManagerID,
			DisplayName: "Outreach Manager",
			Status:      deps.status(OutreachManagerID, domain.StatusOperational),
			ReportsTo:   ChiefID,
		},
		Rules: []domain.DelegationRule{
			{TriggerKeywords: []string{"email"}, DelegateTo: sequence.ChannelUnitID(domain.ChannelEmail), Priority: 10},
			{TriggerKeywords: []string{"sms", "text"}, DelegateTo: sequence.ChannelUnitID(domain.ChannelSMS), Priority: 10},
			{TriggerKeywords: []string{"linkedin"}, DelegateTo: sequence.ChannelUnitID(domain.ChannelLinkedIn), Priority: 5},
		},
		MaxRetries: deps.MaxRetries,
		EscalateTo: deps.EscalateTo,
		Defaults:   deps.Compliance,
	}, app.NewRegistry(channels...), deps.Store, deps.Transport, deps.Sentiment, deps.Logger)

	chief := app.NewSupervisor(app.SupervisorConfig{
		Identity: domain.Identity{
			ID:          ChiefID,
			DisplayName: "Chief Orchestrator",
			Status:      deps.status(ChiefID, domain.StatusVerified),
		},
		Rules: []domain.DelegationRule{
			{TriggerKeywords: []string{"sequence", "outreach", "contact", "follow-up"}, DelegateTo: OutreachManagerID, Priority: 10},
			{TriggerKeywords: []string{"hook", "thread", "reply", "content", "case study"}, DelegateTo: ContentManagerID, Priority: 8},
		},
		DefaultDelegate: ContentManagerID,
		MaxRetries:      deps.MaxRetries,
		EscalateTo:      deps.EscalateTo,
	}, app.NewRegistry(content, engine), deps.Store, deps.Transport, nil, nil, deps.Logger)

	all := make([]app.CapabilityUnit, 0, len(contentUnits)+len(channels)+3)
	all = append(all, chief, content, engine)
	all = append(all, contentUnits...)
	all = append(all, channels...)

	return &System{
		Chief:         chief,
		Content:       content,
		Engine:        engine,
		All:           app.NewRegistry(all...),
		ContentParams: contentParams,
	}
}
