package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tbourn/journal-insights/internal/keywords"
)

// Sample bounds applied when embedding source content in a prompt.
const (
	defaultSampleLimit = 20
	sampleRunes        = 600
)

// BuildPrompt renders the user prompt: instructions, period, computed
// metrics, the prior report (if any) and the most recent records up to
// sampleLimit. records are expected in date order.
func BuildPrompt(def ReportDefinition, in PromptInput, sampleLimit int) string {
	if sampleLimit <= 0 {
		sampleLimit = defaultSampleLimit
	}
	var b strings.Builder

	b.WriteString(strings.TrimSpace(def.Instructions))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Report type: %s\n", def.Type)
	fmt.Fprintf(&b, "Period: %s to %s", in.Period.StartDate, in.Period.EndDate)
	if in.Period.Month != "" {
		fmt.Fprintf(&b, " (month %s)", in.Period.Month)
	}
	b.WriteString("\n\n")

	b.WriteString("Computed metrics (authoritative, do not recompute):\n")
	m := in.Metrics
	fmt.Fprintf(&b, "- records: %d\n", m.RecordCount)
	fmt.Fprintf(&b, "- active days: %d of %d (continuity %.4f)\n", m.ActiveDays, m.PeriodDays, m.ContinuityRatio)
	fmt.Fprintf(&b, "- coherence between current and desired state: %.4f\n", m.CoherenceScore)
	if len(m.TopKeywords) > 0 {
		fmt.Fprintf(&b, "- frequent words: %s\n", strings.Join(m.TopKeywords, ", "))
	}
	if len(m.DesiredKeywords) > 0 {
		fmt.Fprintf(&b, "- desired-state words: %s\n", strings.Join(m.DesiredKeywords, ", "))
	}
	b.WriteString("\n")

	if in.Prior != nil {
		fmt.Fprintf(&b, "Previous report (%s to %s):\n", in.Prior.Period.StartDate, in.Prior.Period.EndDate)
		if raw, err := json.Marshal(in.Prior.Narrative); err == nil {
			b.WriteString(keywords.Truncate(string(raw), 2000))
		}
		b.WriteString("\n\n")
	} else {
		b.WriteString("Previous report: none.\n\n")
	}

	sample := in.Records
	if len(sample) > sampleLimit {
		sample = sample[len(sample)-sampleLimit:]
	}
	fmt.Fprintf(&b, "Entries (%d of %d, oldest first):\n", len(sample), len(in.Records))
	for _, r := range sample {
		fmt.Fprintf(&b, "[%s] %s\n", r.Date, keywords.Truncate(r.Content, sampleRunes))
		if r.Desired != "" {
			fmt.Fprintf(&b, "  desired: %s\n", keywords.Truncate(r.Desired, sampleRunes/2))
		}
	}
	return b.String()
}
