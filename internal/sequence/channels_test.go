package sequence

import (
	"testing"

	"github.com/jaakkos/swarmwork/internal/app"
	"github.com/jaakkos/swarmwork/internal/domain"
)

func TestPersonalize(t *testing.T) {
	lead := domain.Lead{Name: "Grace Hopper", Company: "Navy"}
	tests := []struct {
		name     string
		template string
		vars     map[string]string
		want     string
	}{
		{"lead fields", "hi {{first_name}} from {{company}}", nil, "hi Grace from Navy"},
		{"full name", "dear {{name}}", nil, "dear Grace Hopper"},
		{"step variables win alongside lead fields", "{{offer}} for {{first_name}}", map[string]string{"offer": "20% off"}, "20% off for Grace"},
		{"unknown placeholder left in place", "use {{coupon}}", nil, "use {{coupon}}"},
		{"no placeholders", "plain text", nil, "plain text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Personalize(tt.template, tt.vars, lead); got != tt.want {
				t.Errorf("Personalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChannelUnitExecute(t *testing.T) {
	provider := &testProvider{failing: map[domain.Channel]bool{domain.ChannelSMS: true}}
	tests := []struct {
		name     string
		channel  domain.Channel
		provider Provider
		payload  map[string]any
		want     domain.ReportStatus
	}{
		{"delivery ok", domain.ChannelEmail, provider, map[string]any{"address": "a@b.c", "content": "hi"}, domain.ReportCompleted},
		{"missing address blocks", domain.ChannelEmail, provider, map[string]any{"content": "hi"}, domain.ReportBlocked},
		{"no provider blocks", domain.ChannelEmail, nil, map[string]any{"address": "a@b.c"}, domain.ReportBlocked},
		{"provider error fails", domain.ChannelSMS, provider, map[string]any{"address": "+1", "content": "hi"}, domain.ReportFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit := NewChannelUnit(domain.Identity{ID: ChannelUnitID(tt.channel), Status: domain.StatusOperational},
				tt.channel, tt.provider, testLogger())
			report := unit.Execute(app.NewMessage(domain.MessageCommand, "t", unit.Identity().ID, tt.payload))
			if report.Status != tt.want {
				t.Errorf("status = %s (%v), want %s", report.Status, report.Errors, tt.want)
			}
		})
	}
}

func TestOutboxProvider(t *testing.T) {
	f := newEngineFixture(t, nil)
	provider := NewOutboxProvider(f.store, "test-writer")

	if err := provider.Deliver(domain.ChannelEmail, "ada@example.com", "hello"); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	entries, err := f.store.Query("test", app.EntryFilter{Category: app.CategoryOutbox, Tags: []string{"email"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("outbox entries = %d, want 1", len(entries))
	}
	var rec struct {
		Address string `json:"address"`
		Content string `json:"content"`
	}
	if err := entries[0].Decode(&rec); err != nil {
		t.Fatal(err)
	}
	if rec.Address != "ada@example.com" || rec.Content != "hello" {
		t.Errorf("record = %+v", rec)
	}
}

func TestStoreSentiment(t *testing.T) {
	f := newEngineFixture(t, nil)
	source := NewStoreSentiment(f.store, "test")

	if err := f.store.Write(app.CategorySentiment, "lead-h", map[string]any{"sentiment": "hostile"}, "analyzer", app.WriteOptions{}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		leadID string
		want   domain.Sentiment
	}{
		{"lead-h", domain.SentimentHostile}, // case-insensitive
		{"lead-unknown", domain.SentimentUnknown},
	}
	for _, tt := range tests {
		got, err := source.For(tt.leadID)
		if err != nil {
			t.Fatalf("For(%s): %v", tt.leadID, err)
		}
		if got != tt.want {
			t.Errorf("For(%s) = %s, want %s", tt.leadID, got, tt.want)
		}
	}
}
