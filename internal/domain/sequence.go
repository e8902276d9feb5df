package domain

import "time"

// Channel is an outbound contact channel.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelLinkedIn Channel = "linkedin"
)

// Sentiment is the analyzed disposition of a lead toward further contact.
// Produced by an external analysis collaborator; the engine only consumes it.
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentHostile  Sentiment = "HOSTILE"
	SentimentUnknown  Sentiment = "UNKNOWN"
)

// Lead is a contact target for outreach sequences.
type Lead struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Company      string    `json:"company,omitempty"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	LinkedInURL  string    `json:"linkedin_url,omitempty"`
	DoNotContact bool      `json:"do_not_contact"`
	Unsubscribed bool      `json:"unsubscribed"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// SequenceStep is one step of an outreach sequence. A fallback channel, when
// declared, is attempted immediately if the primary channel send fails.
type SequenceStep struct {
	StepNumber         int               `json:"step_number" yaml:"step_number"`
	Channel            Channel           `json:"channel" yaml:"channel"`
	DelayHours         int               `json:"delay_hours" yaml:"delay_hours"`
	Template           string            `json:"template" yaml:"template"`
	Variables          map[string]string `json:"variables,omitempty" yaml:"variables"`
	FallbackChannel    Channel           `json:"fallback_channel,omitempty" yaml:"fallback_channel"`
	FallbackDelayHours int               `json:"fallback_delay_hours,omitempty" yaml:"fallback_delay_hours"`
}

// ComplianceSettings are the per-sequence contact policy knobs. Quiet hours
// are "HH:MM" local-time strings; the window may cross midnight. Zero caps
// mean no frequency limit.
type ComplianceSettings struct {
	RespectDNC         bool   `json:"respect_dnc" yaml:"respect_dnc"`
	MaxContactsPerDay  int    `json:"max_contacts_per_day" yaml:"max_contacts_per_day"`
	MaxContactsPerWeek int    `json:"max_contacts_per_week" yaml:"max_contacts_per_week"`
	QuietHoursStart    string `json:"quiet_hours_start,omitempty" yaml:"quiet_hours_start"`
	QuietHoursEnd      string `json:"quiet_hours_end,omitempty" yaml:"quiet_hours_end"`
}

// Sequence is an ordered, multi-step, multi-channel contact plan. Immutable
// once execution begins; read-only input to SequenceRun.
type Sequence struct {
	ID         string             `json:"sequence_id" yaml:"sequence_id"`
	Name       string             `json:"name,omitempty" yaml:"name"`
	Steps      []SequenceStep     `json:"steps" yaml:"steps"`
	Compliance ComplianceSettings `json:"compliance_settings" yaml:"compliance_settings"`
}

// SequenceState is the overall state of one sequence run.
// IN_PROGRESS transitions to exactly one of COMPLETED, BLOCKED, or FAILED;
// a run in a terminal state never advances further.
type SequenceState string

const (
	SequenceInProgress SequenceState = "IN_PROGRESS"
	SequenceCompleted  SequenceState = "COMPLETED"
	SequenceBlocked    SequenceState = "BLOCKED"
	SequenceFailed     SequenceState = "FAILED"
)

// Terminal reports whether the state permits no further step execution.
func (s SequenceState) Terminal() bool {
	return s == SequenceCompleted || s == SequenceBlocked || s == SequenceFailed
}

// StepResult records one step attempt, success or failure.
type StepResult struct {
	StepNumber   int          `json:"step_number"`
	Channel      Channel      `json:"channel"`
	Status       ReportStatus `json:"status"`
	Detail       string       `json:"detail,omitempty"`
	FallbackUsed bool         `json:"fallback_used,omitempty"`
	AttemptedAt  time.Time    `json:"attempted_at"`
}

// SequenceRun is the execution status of one (sequence, lead) pair. Created
// IN_PROGRESS; mutated only by the sequence engine.
type SequenceRun struct {
	SequenceID   string        `json:"sequence_id"`
	LeadID       string        `json:"lead_id"`
	CurrentStep  int           `json:"current_step"` // 1-based; next step to execute
	TotalSteps   int           `json:"total_steps"`
	Status       SequenceState `json:"status"`
	StepResults  []StepResult  `json:"step_results,omitempty"`
	BlockReasons []string      `json:"block_reasons,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	NextStepAt   time.Time     `json:"next_step_at,omitempty"` // zero = due now
}

// RunKey is the idempotent store key for a (sequence, lead) run.
func RunKey(sequenceID, leadID string) string {
	return sequenceID + ":" + leadID
}
