package services

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tbourn/journal-insights/internal/ai"
	"github.com/tbourn/journal-insights/internal/domain"
	"github.com/tbourn/journal-insights/internal/keywords"
)

//go:embed reports.yaml
var reportsYAML []byte

// ReportDefinition describes one report type: where its source records come
// from, how many qualifying records it needs, and the schema and prompt text
// for the generative call.
type ReportDefinition struct {
	Type         domain.ReportType `yaml:"type"`
	Version      int               `yaml:"version"`
	Source       domain.RecordKind `yaml:"source"`
	MinRecords   int               `yaml:"min_records"`
	SchemaName   string            `yaml:"schema_name"`
	System       string            `yaml:"system"`
	Instructions string            `yaml:"instructions"`
	Schema       map[string]any    `yaml:"schema"`
}

type reportFile struct {
	Reports []ReportDefinition `yaml:"reports"`
}

// RequiredKeys returns the schema's required top-level keys in declared order.
func (d ReportDefinition) RequiredKeys() []string {
	raw, _ := d.Schema["required"].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (d ReportDefinition) properties() map[string]any {
	props, _ := d.Schema["properties"].(map[string]any)
	return props
}

func (d ReportDefinition) validate() error {
	if _, err := domain.ParseReportType(string(d.Type)); err != nil {
		return err
	}
	switch d.Source {
	case domain.RecordJournal, domain.RecordDailySummary:
	default:
		return fmt.Errorf("%s: unknown source %q", d.Type, d.Source)
	}
	if d.MinRecords < 1 {
		return fmt.Errorf("%s: min_records must be >= 1", d.Type)
	}
	if d.SchemaName == "" {
		return fmt.Errorf("%s: schema_name is required", d.Type)
	}
	if t, _ := d.Schema["type"].(string); t != "object" {
		return fmt.Errorf("%s: schema must be an object", d.Type)
	}
	required := d.RequiredKeys()
	if len(required) == 0 {
		return fmt.Errorf("%s: schema declares no required keys", d.Type)
	}
	props := d.properties()
	for _, k := range required {
		if _, ok := props[k]; !ok {
			return fmt.Errorf("%s: required key %q has no property", d.Type, k)
		}
	}
	return nil
}

// LoadReportDefinitions parses and validates a definitions document.
func LoadReportDefinitions(b []byte) (map[domain.ReportType]ReportDefinition, error) {
	var f reportFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse report definitions: %w", err)
	}
	if len(f.Reports) == 0 {
		return nil, errors.New("no report definitions")
	}
	out := make(map[domain.ReportType]ReportDefinition, len(f.Reports))
	for _, d := range f.Reports {
		if err := d.validate(); err != nil {
			return nil, fmt.Errorf("report definition: %w", err)
		}
		if _, dup := out[d.Type]; dup {
			return nil, fmt.Errorf("report definition: duplicate type %q", d.Type)
		}
		out[d.Type] = d
	}
	return out, nil
}

// PromptInput is everything a report needs to phrase its generative request.
type PromptInput struct {
	Period  domain.Period
	Records []domain.SourceRecord
	Metrics domain.Metrics
	Prior   *domain.InsightPayload
}

// ReportGenerator is the per-type strategy used by InsightService. It owns
// the definition, the deterministic metrics and the prompt for one report
// type.
type ReportGenerator interface {
	Definition() ReportDefinition
	Metrics(p domain.Period, records []domain.SourceRecord) domain.Metrics
	Request(in PromptInput) ai.Request
}

// ReportOptions tunes the generators built by NewReportGenerators.
type ReportOptions struct {
	WeeklyMinRecords  int
	MonthlyMinRecords int
	SampleLimit       int
	// Keywords tunes the extractor behind the keyword metrics.
	Keywords          []keywords.Option
}

// NewReportGenerators builds one generator per embedded definition.
// Non-zero thresholds in opts override the definitions. Requests carry the
// definition schema as declared; the AI client adapts it to its dialect.
func NewReportGenerators(opts ReportOptions) (map[domain.ReportType]ReportGenerator, error) {
	defs, err := LoadReportDefinitions(reportsYAML)
	if err != nil {
		return nil, err
	}
	ex := keywords.New(opts.Keywords...)
	out := make(map[domain.ReportType]ReportGenerator, len(defs))
	for typ, d := range defs {
		switch {
		case typ == domain.Weekly && opts.WeeklyMinRecords > 0:
			d.MinRecords = opts.WeeklyMinRecords
		case typ == domain.Monthly && opts.MonthlyMinRecords > 0:
			d.MinRecords = opts.MonthlyMinRecords
		}
		out[typ] = &definedReport{
			def:         d,
			ex:          ex,
			sampleLimit: opts.SampleLimit,
		}
	}
	return out, nil
}

// definedReport implements ReportGenerator from a ReportDefinition.
type definedReport struct {
	def         ReportDefinition
	ex          *keywords.Extractor
	sampleLimit int
}

func (r *definedReport) Definition() ReportDefinition { return r.def }

func (r *definedReport) Metrics(p domain.Period, records []domain.SourceRecord) domain.Metrics {
	return ComputeMetrics(r.ex, p, records)
}

func (r *definedReport) Request(in PromptInput) ai.Request {
	return ai.Request{
		Name:   r.def.SchemaName,
		System: strings.TrimSpace(r.def.System),
		Prompt: BuildPrompt(r.def, in, r.sampleLimit),
		Schema: r.def.Schema,
	}
}

// SortedTypes returns the configured report types in a stable order.
func SortedTypes(gens map[domain.ReportType]ReportGenerator) []domain.ReportType {
	out := make([]domain.ReportType, 0, len(gens))
	for t := range gens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
