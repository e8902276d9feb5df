// Package policy holds configuration: file locations, compliance defaults,
// and orchestration knobs.
package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jaakkos/swarmwork/internal/domain"
)

// GlobalStateDir returns the default global state directory (~/.config/swarmwork).
func GlobalStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".config", "swarmwork")
}

// GlobalStateFile returns the default global state file path.
func GlobalStateFile() string {
	return filepath.Join(GlobalStateDir(), "state.sqlite")
}

// ComplianceConfig holds the default contact-policy settings applied to
// sequences that do not carry their own.
type ComplianceConfig struct {
	RespectDNC         bool   `yaml:"respect_dnc"`
	MaxContactsPerDay  int    `yaml:"max_contacts_per_day"`
	MaxContactsPerWeek int    `yaml:"max_contacts_per_week"`
	QuietHoursStart    string `yaml:"quiet_hours_start"` // "HH:MM", empty disables
	QuietHoursEnd      string `yaml:"quiet_hours_end"`
}

// OrchestrationConfig holds supervisor and cycle settings.
type OrchestrationConfig struct {
	// EscalationAuthority is the root authority quality-gate escalations are
	// addressed to.
	EscalationAuthority string `yaml:"escalation_authority"`
	// MaxReviewRetries bounds the quality gate (downstream invocations are
	// capped at retries+1).
	MaxReviewRetries     int `yaml:"max_review_retries"`
	CycleIntervalSeconds int `yaml:"cycle_interval_seconds"`
	// StatusOverrides force a catalog unit's status at startup,
	// e.g. "case-study-writer: OPERATIONAL".
	StatusOverrides map[string]string `yaml:"status_overrides"`
}

// Config holds policy configuration.
type Config struct {
	StateFile    string   `yaml:"state_file"`
	LogFile      string   `yaml:"log_file"`
	EnabledTools []string `yaml:"enabled_tools"`

	Compliance    *ComplianceConfig    `yaml:"compliance"`
	Orchestration *OrchestrationConfig `yaml:"orchestration"`
}

// DefaultConfig returns sensible defaults. Compliance and orchestration are
// always set.
func DefaultConfig() *Config {
	return &Config{
		EnabledTools:  []string{"*"},
		Compliance:    DefaultCompliance(),
		Orchestration: DefaultOrchestration(),
	}
}

// DefaultCompliance returns the default contact policy: DNC respected,
// 3 contacts/day, 10/week, quiet hours 21:00-08:00.
func DefaultCompliance() *ComplianceConfig {
	return &ComplianceConfig{
		RespectDNC:         true,
		MaxContactsPerDay:  3,
		MaxContactsPerWeek: 10,
		QuietHoursStart:    "21:00",
		QuietHoursEnd:      "08:00",
	}
}

// DefaultOrchestration returns the default supervisor settings.
func DefaultOrchestration() *OrchestrationConfig {
	return &OrchestrationConfig{
		EscalationAuthority:  "chief-orchestrator",
		MaxReviewRetries:     2,
		CycleIntervalSeconds: 60,
	}
}

// LoadConfig loads configuration from a YAML file, filling in defaults for
// missing sections.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Compliance == nil {
		cfg.Compliance = DefaultCompliance()
	}
	if cfg.Orchestration == nil {
		cfg.Orchestration = DefaultOrchestration()
	}
	return cfg, nil
}

// Policy provides read access to configuration.
type Policy struct {
	config *Config
	mu     sync.RWMutex
}

// New creates a new policy over cfg.
func New(cfg *Config) *Policy {
	return &Policy{config: cfg}
}

// StateFile returns the configured state file path. If unset, defaults to
// the global state file so all processes on the machine share one store.
func (p *Policy) StateFile() string {
	p.mu.RLock()
	sf := p.config.StateFile
	p.mu.RUnlock()
	if sf == "" {
		return GlobalStateFile()
	}
	return sf
}

// SignalFilePath returns the notify signal file path (same directory as the
// state file). Watchers use this to detect store changes without relying on
// SQLite WAL file events.
func (p *Policy) SignalFilePath() string {
	return filepath.Join(filepath.Dir(p.StateFile()), ".swarmwork-notify")
}

// LogFile returns the configured log file path. If unset, defaults to
// ~/.config/swarmwork/mcp-swarmwork.log. "none" or "off" disables file logging.
func (p *Policy) LogFile() string {
	p.mu.RLock()
	lf := p.config.LogFile
	p.mu.RUnlock()
	if lf == "" {
		return filepath.Join(GlobalStateDir(), "mcp-swarmwork.log")
	}
	return lf
}

// IsToolEnabled checks if a tool is enabled.
func (p *Policy) IsToolEnabled(name string) bool {
	for _, t := range p.config.EnabledTools {
		if t == "*" || t == name {
			return true
		}
	}
	return false
}

// Compliance returns the default compliance settings as domain settings.
// Never nil-derived (defaults applied in LoadConfig).
func (p *Policy) Compliance() domain.ComplianceSettings {
	c := p.config.Compliance
	if c == nil {
		c = DefaultCompliance()
	}
	return domain.ComplianceSettings{
		RespectDNC:         c.RespectDNC,
		MaxContactsPerDay:  c.MaxContactsPerDay,
		MaxContactsPerWeek: c.MaxContactsPerWeek,
		QuietHoursStart:    c.QuietHoursStart,
		QuietHoursEnd:      c.QuietHoursEnd,
	}
}

// EscalationAuthority returns the root authority id for escalations.
func (p *Policy) EscalationAuthority() string {
	if p.config.Orchestration == nil || p.config.Orchestration.EscalationAuthority == "" {
		return DefaultOrchestration().EscalationAuthority
	}
	return p.config.Orchestration.EscalationAuthority
}

// MaxReviewRetries returns the quality-gate retry bound.
func (p *Policy) MaxReviewRetries() int {
	if p.config.Orchestration == nil || p.config.Orchestration.MaxReviewRetries <= 0 {
		return DefaultOrchestration().MaxReviewRetries
	}
	return p.config.Orchestration.MaxReviewRetries
}

// CycleIntervalSeconds returns the cycle runner interval.
func (p *Policy) CycleIntervalSeconds() int {
	if p.config.Orchestration == nil || p.config.Orchestration.CycleIntervalSeconds <= 0 {
		return DefaultOrchestration().CycleIntervalSeconds
	}
	return p.config.Orchestration.CycleIntervalSeconds
}

// StatusOverrides returns all valid configured status overrides.
func (p *Policy) StatusOverrides() map[string]domain.Status {
	if p.config.Orchestration == nil {
		return nil
	}
	out := make(map[string]domain.Status, len(p.config.Orchestration.StatusOverrides))
	for id := range p.config.Orchestration.StatusOverrides {
		if st, ok := p.StatusOverride(id); ok {
			out[id] = st
		}
	}
	return out
}

// StatusOverride returns the configured status override for a unit id, if any.
func (p *Policy) StatusOverride(unitID string) (domain.Status, bool) {
	if p.config.Orchestration == nil {
		return "", false
	}
	raw, ok := p.config.Orchestration.StatusOverrides[unitID]
	if !ok {
		return "", false
	}
	switch domain.Status(raw) {
	case domain.StatusUnimplemented, domain.StatusStub, domain.StatusOperational, domain.StatusVerified:
		return domain.Status(raw), true
	}
	return "", false
}
