package domain

import "time"

// RecordKind names the table a report reads its source records from.
type RecordKind string

const (
	RecordJournal      RecordKind = "journal"
	RecordDailySummary RecordKind = "daily_summary"
)

// SourceRecord is a decrypted unit of user-authored content. Content is the
// "current state" text; Desired is the optional "desired state" text
// (journal intention or daily focus).
type SourceRecord struct {
	ID      string     `json:"id"`
	Kind    RecordKind `json:"kind"`
	Date    string     `json:"date"`
	Content string     `json:"content"`
	Desired string     `json:"desired,omitempty"`
}

// Metrics are computed from source records alone and are reproducible from
// the same input.
type Metrics struct {
	RecordCount     int      `json:"record_count"`
	ActiveDays      int      `json:"active_days"`
	PeriodDays      int      `json:"period_days"`
	WordCount       int      `json:"word_count"`
	ContinuityRatio float64  `json:"continuity_ratio"`
	CoherenceScore  float64  `json:"coherence_score"`
	TopKeywords     []string `json:"top_keywords"`
	DesiredKeywords []string `json:"desired_keywords"`
}

// ResultMeta is bookkeeping stored alongside metrics and narrative.
type ResultMeta struct {
	SourceRecordCount int    `json:"source_record_count"`
	PartialHistory    bool   `json:"partial_history"`
	HistoryCount      int    `json:"history_count"`
	Model             string `json:"model,omitempty"`
	ReportVersion     int    `json:"report_version"`
}

// InsightPayload is the plaintext form of InsightResult.Payload.
type InsightPayload struct {
	Type      ReportType     `json:"type"`
	Period    Period         `json:"period"`
	Metrics   Metrics        `json:"metrics"`
	Narrative map[string]any `json:"narrative"`
	Meta      ResultMeta     `json:"meta"`
}

// Coverage summarizes stored results for one period.
type Coverage struct {
	Type          ReportType `json:"type"`
	StartDate     string     `json:"startDate"`
	EndDate       string     `json:"endDate"`
	Results       int64      `json:"results"`
	EligibleUsers int64      `json:"eligibleUsers"`
	LastUpdatedAt *time.Time `json:"lastUpdatedAt,omitempty"`
}
