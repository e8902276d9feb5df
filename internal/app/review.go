package app

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jaakkos/swarmwork/internal/domain"
)

// TagQualityGateEscalation tags BLOCKED reports and escalation records
// produced by quality-gate exhaustion.
const TagQualityGateEscalation = "QUALITY_GATE_ESCALATION"

// Retry payload keys embedded into re-delegated messages.
const (
	payloadRetryAttempt   = "retry_attempt"
	payloadReviewFeedback = "review_feedback"
)

// EscalationRecord is the durable record written when the quality gate
// exhausts its retries. Addressed to the supervisor's root authority for
// asynchronous pickup; the BLOCKED report is additionally returned
// synchronously to the caller.
type EscalationRecord struct {
	ID           string    `json:"id"`
	Supervisor   string    `json:"supervisor"`
	Unit         string    `json:"unit"`
	AddressedTo  string    `json:"addressed_to"`
	LastFeedback []string  `json:"last_feedback,omitempty"`
	RetryCount   int       `json:"retry_count"`
	TraceID      string    `json:"trace_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// DelegateWithReview executes msg on unitID behind the status gate and the
// quality gate. Handler-level FAILED/BLOCKED results return immediately;
// review runs only on handler-level success. An unapproved review re-executes
// with the feedback embedded, up to maxRetries retries; the downstream unit
// is invoked at most maxRetries+1 times. On exhaustion the result is a
// BLOCKED report tagged QUALITY_GATE_ESCALATION plus a durable escalation
// record addressed to the root authority.
func (s *Supervisor) DelegateWithReview(unitID string, msg domain.Message) domain.Report {
	unit, denied := s.gateUnit(unitID, msg)
	if denied != nil {
		return *denied
	}

	attempt := msg
	var lastFeedback []string
	for i := 0; i <= s.maxRetries; i++ {
		report := SafeExecute(unit, attempt)
		if report.Status == domain.ReportFailed || report.Status == domain.ReportBlocked {
			return report
		}
		if s.reviewer == nil {
			return report
		}
		result := s.reviewer.Review(report)
		if result.Approved {
			return report
		}
		lastFeedback = result.Feedback
		s.Logger().Printf("Quality gate: %s rejected output of %s (attempt %d/%d, severity %s)",
			s.Identity().ID, unitID, i+1, s.maxRetries+1, result.Severity)
		attempt = retryMessage(msg, i+1, result.Feedback)
	}

	return s.escalateQualityGate(unitID, msg, lastFeedback)
}

// retryMessage embeds the review feedback and a retry counter into a copy of
// the original message.
func retryMessage(original domain.Message, attempt int, feedback []string) domain.Message {
	retry := original
	retry.Payload = make(map[string]any, len(original.Payload)+2)
	for k, v := range original.Payload {
		retry.Payload[k] = v
	}
	retry.Payload[payloadRetryAttempt] = attempt
	retry.Payload[payloadReviewFeedback] = feedback
	return retry
}

// escalateQualityGate persists a durable escalation and returns the BLOCKED
// report. The persistence is not fire-and-forget: a write failure is surfaced
// in the report reasons so the caller is never left with only an in-memory
// signal silently lost.
func (s *Supervisor) escalateQualityGate(unitID string, msg domain.Message, feedback []string) domain.Report {
	rec := EscalationRecord{
		ID:           uuid.NewString(),
		Supervisor:   s.Identity().ID,
		Unit:         unitID,
		AddressedTo:  s.escalateTo,
		LastFeedback: feedback,
		RetryCount:   s.maxRetries,
		TraceID:      msg.TraceID,
		CreatedAt:    time.Now(),
	}
	reasons := []string{
		fmt.Sprintf("quality gate exhausted after %d retries for unit %s", s.maxRetries, unitID),
	}
	reasons = append(reasons, feedback...)

	err := s.store.Write(CategoryEscalations, rec.ID, rec, s.Identity().ID, WriteOptions{
		Priority: msg.Priority,
		Tags:     []string{TagQualityGateEscalation, s.escalateTo},
	})
	if err != nil {
		s.Logger().Printf("Quality gate: escalation persist failed: %v", err)
		reasons = append(reasons, fmt.Sprintf("escalation persist failed: %v", err))
	}

	report := domain.BlockedReport(msg.ID, reasons...)
	report.Data = map[string]any{
		"tag":           TagQualityGateEscalation,
		"escalation_id": rec.ID,
		"unit":          unitID,
	}
	return report
}
