package sequence

import (
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/jaakkos/swarmwork/internal/app"
	"github.com/jaakkos/swarmwork/internal/domain"
)

// ChannelUnitID returns the catalog id for a channel executor unit.
func ChannelUnitID(ch domain.Channel) string {
	return "channel-" + string(ch)
}

// Provider is the external delivery collaborator (email/SMS gateway etc.).
// A delivery error is a FAILED result; it never halts a sequence on its own.
type Provider interface {
	Deliver(channel domain.Channel, address, content string) error
}

// ProviderFunc adapts a function to the Provider port.
type ProviderFunc func(channel domain.Channel, address, content string) error

func (f ProviderFunc) Deliver(channel domain.Channel, address, content string) error {
	return f(channel, address, content)
}

// ChannelUnit is a leaf capability unit that sends one personalized message
// over one channel. A missing contact address is a channel-level capability
// denial (BLOCKED); a provider error is FAILED.
type ChannelUnit struct {
	app.BaseUnit
	channel  domain.Channel
	provider Provider
}

// NewChannelUnit returns the executor unit for channel.
func NewChannelUnit(identity domain.Identity, channel domain.Channel, provider Provider, logger *log.Logger) *ChannelUnit {
	identity.Role = domain.RoleLeaf
	return &ChannelUnit{BaseUnit: app.NewBaseUnit(identity, logger), channel: channel, provider: provider}
}

// Execute delivers the payload content to the payload address.
func (u *ChannelUnit) Execute(msg domain.Message) domain.Report {
	address, _ := msg.Payload["address"].(string)
	content, _ := msg.Payload["content"].(string)
	if address == "" {
		return domain.BlockedReport(msg.ID, fmt.Sprintf("lead has no %s address", u.channel))
	}
	if u.provider == nil {
		return domain.BlockedReport(msg.ID, fmt.Sprintf("no %s provider configured", u.channel))
	}
	if err := u.provider.Deliver(u.channel, address, content); err != nil {
		return domain.FailedReport(msg.ID, fmt.Sprintf("%s delivery failed: %v", u.channel, err))
	}
	return domain.CompletedReport(msg.ID, map[string]any{"channel": string(u.channel), "address": address})
}

// OutboxProvider is the default provider: it writes deliveries into the
// store's outbox category for an external gateway to drain. Keeps the engine
// runnable end-to-end without live transport credentials.
type OutboxProvider struct {
	store  app.SharedStore
	writer string
}

// NewOutboxProvider returns a provider writing to store's outbox.
func NewOutboxProvider(store app.SharedStore, writer string) *OutboxProvider {
	return &OutboxProvider{store: store, writer: writer}
}

func (p *OutboxProvider) Deliver(channel domain.Channel, address, content string) error {
	record := map[string]any{
		"channel": string(channel),
		"address": address,
		"content": content,
	}
	return p.store.Write(app.CategoryOutbox, uuid.NewString(), record, p.writer, app.WriteOptions{Tags: []string{string(channel)}})
}

// Personalize substitutes {{var}} placeholders from the step variables and
// the lead's own fields (name, first_name, company). Unknown placeholders are
// left in place so a half-personalized template is visible in review.
func Personalize(template string, vars map[string]string, lead domain.Lead) string {
	pairs := make([]string, 0, (len(vars)+3)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	first := lead.Name
	if i := strings.IndexByte(first, ' '); i > 0 {
		first = first[:i]
	}
	pairs = append(pairs,
		"{{name}}", lead.Name,
		"{{first_name}}", first,
		"{{company}}", lead.Company,
	)
	return strings.NewReplacer(pairs...).Replace(template)
}

// addressFor picks the lead's contact address for a channel.
func addressFor(lead domain.Lead, ch domain.Channel) string {
	switch ch {
	case domain.ChannelEmail:
		return lead.Email
	case domain.ChannelSMS:
		return lead.Phone
	case domain.ChannelLinkedIn:
		return lead.LinkedInURL
	default:
		return ""
	}
}

// executeStep runs one step: personalize, send on the primary channel behind
// the status gate, and on FAILED immediately attempt the declared fallback
// channel. Every attempt is persisted as contact history. Caller holds e.mu.
func (e *Engine) executeStep(seq domain.Sequence, lead domain.Lead, run *domain.SequenceRun, step domain.SequenceStep) domain.StepResult {
	content := Personalize(step.Template, step.Variables, lead)

	result := e.attemptChannel(lead, run, step, step.Channel, content, 1)
	if result.Status == domain.ReportFailed && step.FallbackChannel != "" {
		e.logger.Printf("Sequence %s: step %d %s failed, falling back to %s",
			domain.RunKey(run.SequenceID, run.LeadID), step.StepNumber, step.Channel, step.FallbackChannel)
		fallback := e.attemptChannel(lead, run, step, step.FallbackChannel, content, 2)
		fallback.FallbackUsed = true
		return fallback
	}
	return result
}

// attemptChannel sends content to lead over ch and records the attempt.
func (e *Engine) attemptChannel(lead domain.Lead, run *domain.SequenceRun, step domain.SequenceStep, ch domain.Channel, content string, attempt int) domain.StepResult {
	now := e.now()
	result := domain.StepResult{
		StepNumber:  step.StepNumber,
		Channel:     ch,
		AttemptedAt: now,
	}

	unitID := ChannelUnitID(ch)
	unit := e.Units().Resolve(unitID)
	switch {
	case unit == nil:
		result.Status = domain.ReportBlocked
		result.Detail = fmt.Sprintf("channel %s is not available", ch)
	case !unit.Status().Executable():
		result.Status = domain.ReportBlocked
		result.Detail = fmt.Sprintf("unit %s has status %s and cannot be invoked", unitID, unit.Status())
	default:
		msg := app.NewMessage(domain.MessageCommand, e.ID(), unitID, map[string]any{
			"lead_id": lead.ID,
			"address": addressFor(lead, ch),
			"content": content,
			"channel": string(ch),
		})
		report := app.SafeExecute(unit, msg)
		result.Status = report.Status
		result.Detail = strings.Join(report.Errors, "; ")
	}

	e.recordContact(lead, run, step, ch, result, attempt)
	return result
}

// recordContact appends the attempt to contact history under an idempotent
// key, so at-least-once re-delivery cannot double-count a contact.
func (e *Engine) recordContact(lead domain.Lead, run *domain.SequenceRun, step domain.SequenceStep, ch domain.Channel, result domain.StepResult, attempt int) {
	key := fmt.Sprintf("%s:%s:step%d:%s:attempt%d", run.SequenceID, run.LeadID, step.StepNumber, ch, attempt)
	record := map[string]any{
		"sequence_id":  run.SequenceID,
		"lead_id":      run.LeadID,
		"step_number":  step.StepNumber,
		"channel":      string(ch),
		"status":       string(result.Status),
		"detail":       result.Detail,
		"attempted_at": result.AttemptedAt,
	}
	if err := e.store.Write(app.CategoryContactHistory, key, record, e.ID(), app.WriteOptions{
		Tags: []string{run.LeadID, run.SequenceID, string(ch)},
	}); err != nil {
		e.logger.Printf("Sequence: write contact history %s: %v", key, err)
	}
}
