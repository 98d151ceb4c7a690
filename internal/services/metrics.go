package services

import (
	"sort"

	"github.com/tbourn/journal-insights/internal/domain"
	"github.com/tbourn/journal-insights/internal/keywords"
)

// topKeywordCount bounds the keyword lists stored in Metrics.
const topKeywordCount = 10

// QualifyingRecords returns the records whose content is non-empty once
// markup is stripped, with Content and Desired replaced by their plain-text
// form, ordered by date then id.
func QualifyingRecords(records []domain.SourceRecord) []domain.SourceRecord {
	out := make([]domain.SourceRecord, 0, len(records))
	for _, r := range records {
		r.Content = keywords.PlainText(r.Content)
		if r.Content == "" {
			continue
		}
		r.Desired = keywords.PlainText(r.Desired)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ComputeMetrics derives the deterministic part of a report from qualifying
// records alone. Identical input yields identical output.
//
// continuity_ratio is distinct in-period days with a record divided by the
// period length; coherence_score is the Jaccard overlap of the keywords the
// user wrote about their current state and about their desired state.
func ComputeMetrics(ex *keywords.Extractor, p domain.Period, records []domain.SourceRecord) domain.Metrics {
	days := make(map[string]struct{}, len(records))
	current := make([]string, 0, len(records))
	desired := make([]string, 0, len(records))
	words := 0
	for _, r := range records {
		if r.Date >= p.StartDate && r.Date <= p.EndDate {
			days[r.Date] = struct{}{}
		}
		current = append(current, r.Content)
		if r.Desired != "" {
			desired = append(desired, r.Desired)
		}
		words += keywords.WordCount(r.Content)
	}

	m := domain.Metrics{
		RecordCount:     len(records),
		ActiveDays:      len(days),
		PeriodDays:      p.Days(),
		WordCount:       words,
		TopKeywords:     ex.Top(topKeywordCount, current...),
		DesiredKeywords: ex.Top(topKeywordCount, desired...),
	}
	if m.PeriodDays > 0 {
		m.ContinuityRatio = keywords.Round4(float64(m.ActiveDays) / float64(m.PeriodDays))
	}
	m.CoherenceScore = keywords.Round4(keywords.Jaccard(ex.Set(current...), ex.Set(desired...)))
	return m
}
