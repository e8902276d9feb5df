// Package domain holds orchestration entities and the outreach sequence model.
// It has no dependencies on other packages.
package domain

import "time"

// Status is the capability-readiness level of a unit. Exactly one value per
// unit at any time; set when the catalog is built and immutable afterwards
// except via explicit config overrides at startup.
type Status string

const (
	StatusUnimplemented Status = "UNIMPLEMENTED"
	StatusStub          Status = "STUB"
	StatusOperational   Status = "OPERATIONAL"
	StatusVerified      Status = "VERIFIED"
)

// Executable reports whether a supervisor may delegate work to a unit with
// this status. UNIMPLEMENTED and STUB units must never receive Execute calls.
func (s Status) Executable() bool {
	return s == StatusOperational || s == StatusVerified
}

// Role distinguishes leaf specialists from coordinating supervisors.
type Role string

const (
	RoleLeaf       Role = "leaf"
	RoleSupervisor Role = "supervisor"
)

// Identity describes a unit in the catalog. Built at process start from the
// static catalog; immutable thereafter.
type Identity struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"display_name"`
	Role         Role     `json:"role"`
	Status       Status   `json:"status"`
	ReportsTo    string   `json:"reports_to,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// MessageType classifies a message between units.
type MessageType string

const (
	MessageCommand MessageType = "COMMAND"
	MessageEvent   MessageType = "EVENT"
	MessageQuery   MessageType = "QUERY"
)

// Message is a structured message between units. Consumed exactly once by the
// addressed unit.
type Message struct {
	ID               string         `json:"id"`
	Type             MessageType    `json:"type"`
	From             string         `json:"from"`
	To               string         `json:"to"`
	Payload          map[string]any `json:"payload,omitempty"`
	Priority         int            `json:"priority"`
	RequiresResponse bool           `json:"requires_response"`
	TraceID          string         `json:"trace_id"`
	Timestamp        time.Time      `json:"timestamp"`
}

// ReportStatus is the outcome class of handling one message.
type ReportStatus string

const (
	ReportCompleted ReportStatus = "COMPLETED"
	ReportFailed    ReportStatus = "FAILED"
	ReportBlocked   ReportStatus = "BLOCKED"
	ReportPending   ReportStatus = "PENDING"
)

// Report is the result of handling one message. Status is never omitted;
// BLOCKED reports always carry at least one human-readable reason in Errors.
type Report struct {
	TaskID string         `json:"task_id"`
	Status ReportStatus   `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
	Errors []string       `json:"errors,omitempty"`
}

// CompletedReport returns a COMPLETED report for taskID carrying data.
func CompletedReport(taskID string, data map[string]any) Report {
	return Report{TaskID: taskID, Status: ReportCompleted, Data: data}
}

// FailedReport returns a FAILED report carrying the given error strings.
func FailedReport(taskID string, errs ...string) Report {
	return Report{TaskID: taskID, Status: ReportFailed, Errors: errs}
}

// BlockedReport returns a BLOCKED report carrying the given reasons.
func BlockedReport(taskID string, reasons ...string) Report {
	return Report{TaskID: taskID, Status: ReportBlocked, Errors: reasons}
}

// DelegationRule routes messages whose payload mentions any trigger keyword
// to a sub-unit. Rules are static per supervisor and evaluated sorted by
// priority descending; on equal priority the first declared rule wins.
type DelegationRule struct {
	TriggerKeywords  []string `json:"trigger_keywords"`
	DelegateTo       string   `json:"delegate_to"`
	Priority         int      `json:"priority"`
	RequiresApproval bool     `json:"requires_approval"`
}

// ReviewSeverity grades a quality review outcome.
type ReviewSeverity string

const (
	SeverityPass  ReviewSeverity = "PASS"
	SeverityMinor ReviewSeverity = "MINOR"
	SeverityMajor ReviewSeverity = "MAJOR"
	SeverityBlock ReviewSeverity = "BLOCK"
)

// ReviewResult is produced fresh per quality-gate attempt. Never persisted
// directly; only via audit and escalation entries.
type ReviewResult struct {
	Approved bool           `json:"approved"`
	Feedback []string       `json:"feedback,omitempty"`
	Severity ReviewSeverity `json:"severity"`
}

// MutationDirective is an externally authored instruction to adjust a
// supervisor's operating parameters. Written once, applied at most once
// (the directive ID is the idempotency key), then marked processed.
type MutationDirective struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	TargetDomain string         `json:"target_domain"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	Confidence   int            `json:"confidence"` // 0-100
	SourceAgent  string         `json:"source_agent"`
	Priority     int            `json:"priority"`
	Processed    bool           `json:"processed"`
	ProcessedAt  time.Time      `json:"processed_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Urgency ranks cross-component requests.
type Urgency string

const (
	UrgencyLow      Urgency = "LOW"
	UrgencyNormal   Urgency = "NORMAL"
	UrgencyHigh     Urgency = "HIGH"
	UrgencyCritical Urgency = "CRITICAL"
)

// CrossComponentRequest asks another supervisor for work or information. Sent
// over the transport and mirrored into the shared store so the receiver's
// next cycle can pick it up even if transport delivery was missed.
type CrossComponentRequest struct {
	ID             string         `json:"id"`
	FromSupervisor string         `json:"from_supervisor"`
	ToSupervisor   string         `json:"to_supervisor"`
	RequestType    string         `json:"request_type"`
	Description    string         `json:"description"`
	Urgency        Urgency        `json:"urgency"`
	Payload        map[string]any `json:"payload,omitempty"`
	Deadline       *time.Time     `json:"deadline,omitempty"`
	Responded      bool           `json:"responded"`
	CreatedAt      time.Time      `json:"created_at"`
}
