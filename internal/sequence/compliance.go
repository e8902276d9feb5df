package sequence

import (
	"fmt"
	"time"

	"github.com/jaakkos/swarmwork/internal/app"
	"github.com/jaakkos/swarmwork/internal/domain"
)

// CanContact runs the full compliance gate for a lead: DNC, unsubscribe,
// frequency caps, and quiet hours. Every failing condition is reported, not
// just the first.
func (e *Engine) CanContact(lead domain.Lead, settings domain.ComplianceSettings, now time.Time) (bool, []string) {
	var reasons []string

	if settings.RespectDNC && lead.DoNotContact {
		reasons = append(reasons, fmt.Sprintf("lead %s is on the do-not-contact list", lead.ID))
	}
	if lead.Unsubscribed {
		reasons = append(reasons, fmt.Sprintf("lead %s has unsubscribed", lead.ID))
	}

	if settings.MaxContactsPerDay > 0 || settings.MaxContactsPerWeek > 0 {
		day, week, err := e.contactCounts(lead.ID, now)
		if err != nil {
			// Caps must not be bypassed by a store outage; fail closed.
			e.logger.Printf("Compliance: contact count for %s failed: %v", lead.ID, err)
			reasons = append(reasons, fmt.Sprintf("frequency check unavailable for lead %s: contact history could not be read", lead.ID))
		} else {
			if settings.MaxContactsPerDay > 0 && day >= settings.MaxContactsPerDay {
				reasons = append(reasons, fmt.Sprintf("daily contact limit reached (%d/%d)", day, settings.MaxContactsPerDay))
			}
			if settings.MaxContactsPerWeek > 0 && week >= settings.MaxContactsPerWeek {
				reasons = append(reasons, fmt.Sprintf("weekly contact limit reached (%d/%d)", week, settings.MaxContactsPerWeek))
			}
		}
	}

	if within, window := withinQuietHours(now, settings.QuietHoursStart, settings.QuietHoursEnd); within {
		reasons = append(reasons, fmt.Sprintf("current time %s is within quiet hours (%s)", now.Format("15:04"), window))
	}

	return len(reasons) == 0, reasons
}

// contactCounts returns how many contact attempts the lead received in the
// last 24 hours and the last 7 days.
func (e *Engine) contactCounts(leadID string, now time.Time) (day, week int, err error) {
	entries, err := e.store.Query(e.ID(), app.EntryFilter{
		Category: app.CategoryContactHistory,
		Tags:     []string{leadID},
	})
	if err != nil {
		return 0, 0, err
	}
	dayCutoff := now.Add(-24 * time.Hour)
	weekCutoff := now.Add(-7 * 24 * time.Hour)
	for _, entry := range entries {
		if entry.CreatedAt.After(weekCutoff) {
			week++
			if entry.CreatedAt.After(dayCutoff) {
				day++
			}
		}
	}
	return day, week, nil
}

// withinQuietHours reports whether now falls inside the configured window.
// The window may cross midnight ("21:00"–"08:00"). Empty or malformed bounds
// disable the check.
func withinQuietHours(now time.Time, start, end string) (bool, string) {
	if start == "" || end == "" {
		return false, ""
	}
	startMin, err := parseClock(start)
	if err != nil {
		return false, ""
	}
	endMin, err := parseClock(end)
	if err != nil {
		return false, ""
	}
	nowMin := now.Hour()*60 + now.Minute()

	window := start + "-" + end
	if startMin <= endMin {
		return nowMin >= startMin && nowMin < endMin, window
	}
	return nowMin >= startMin || nowMin < endMin, window
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
