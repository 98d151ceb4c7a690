package services

import (
	"fmt"

	"github.com/tbourn/journal-insights/internal/domain"
)

func weekPeriod() domain.Period {
	return domain.Period{Type: domain.Weekly, StartDate: "2025-11-10", EndDate: "2025-11-16"}
}

// journalRecords returns n records on consecutive days starting 2025-11-10.
func journalRecords(n int) []domain.SourceRecord {
	out := make([]domain.SourceRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.SourceRecord{
			ID:      fmt.Sprintf("r%02d", i),
			Kind:    domain.RecordJournal,
			Date:    fmt.Sprintf("2025-11-%02d", 10+i%7),
			Content: fmt.Sprintf("morning walk, focused writing session, tired evening %d", i),
			Desired: "calm focused mornings and steady writing",
		})
	}
	return out
}

// weeklyNarrative is a reply that satisfies the weekly schema.
func weeklyNarrative() map[string]any {
	return map[string]any{
		"headline":                "A steadier week of writing",
		"persona":                 "A focused early riser",
		"summary":                 "You wrote most days and kept mornings calm.",
		"themes":                  []any{"writing", "walking"},
		"desired_state_alignment": "Closer than last week.",
		"suggestions":             []any{"Protect the first hour"},
	}
}
