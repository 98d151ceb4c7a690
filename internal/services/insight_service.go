package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/journal-insights/internal/ai"
	"github.com/tbourn/journal-insights/internal/domain"
	"github.com/tbourn/journal-insights/internal/observability"
	"github.com/tbourn/journal-insights/internal/retry"
)

// RecordStore is the storage the per-user generator reads from and writes to.
// repo.Store implements it.
type RecordStore interface {
	FetchRecords(ctx context.Context, userID string, kind domain.RecordKind, start, end string) ([]domain.SourceRecord, error)
	PriorResults(ctx context.Context, userID string, typ domain.ReportType, periodStart string, limit int) ([]domain.InsightPayload, error)
	UpsertResult(ctx context.Context, userID string, p domain.Period, payload domain.InsightPayload) error
}

// UserGenerator produces (or skips) the report of one user for one period.
// A returned error is a failure of that user only (fetch or persistence);
// expected skips are reported through the status.
type UserGenerator interface {
	Generate(ctx context.Context, userID string, p domain.Period) (domain.UserStatus, error)
}

// InsightService is the per-user insight generator.
type InsightService struct {
	Store   RecordStore
	AI      ai.Generator
	Reports map[domain.ReportType]ReportGenerator

	// Retry wraps every generative call.
	Retry retry.Options
	// HistoryLimit is how many prior results are fetched; fewer marks the
	// result as based on a partial history window.
	HistoryLimit int
	// Model is recorded in the result metadata.
	Model string
}

var _ UserGenerator = (*InsightService)(nil)

// errInvalidNarrative marks a structurally valid JSON reply that misses or
// blanks a required key.
var errInvalidNarrative = errors.New("narrative incomplete")

// Generate runs fetch, threshold check, metrics, history, generation,
// validation and upsert for one user, strictly in that order.
func (s *InsightService) Generate(ctx context.Context, userID string, p domain.Period) (st domain.UserStatus, err error) {
	ctx, span := observability.Tracer("insights").Start(ctx, "Generate",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("report.type", string(p.Type)),
			attribute.String("period.start", p.StartDate),
		),
	)
	lg := zerolog.Ctx(ctx).With().Str("user_id", userID).Str("type", string(p.Type)).Str("period_start", p.StartDate).Logger()
	defer func() {
		observability.EndSpan(span, err)
		if err != nil {
			observability.ObserveGeneration(string(p.Type), domain.StatusSkipped, "error")
			return
		}
		span.SetAttributes(attribute.String("status", st.Status), attribute.String("reason", st.Reason))
		observability.ObserveGeneration(string(p.Type), st.Status, st.Reason)
		if st.Status == domain.StatusSkipped {
			lg.Info().Str("reason", st.Reason).Msg("insight skipped")
		}
	}()

	gen, ok := s.Reports[p.Type]
	if !ok {
		return domain.Skipped(userID, domain.ReasonUnsupportedType), nil
	}
	def := gen.Definition()

	records, err := s.Store.FetchRecords(ctx, userID, def.Source, p.StartDate, p.EndDate)
	if err != nil {
		return domain.UserStatus{}, fmt.Errorf("fetch records: %w", err)
	}
	if len(records) == 0 {
		return domain.Skipped(userID, domain.ReasonNoRecords), nil
	}
	qualifying := QualifyingRecords(records)
	if len(qualifying) < def.MinRecords {
		return domain.Skipped(userID, domain.ReasonInsufficientRecords), nil
	}

	metrics := gen.Metrics(p, qualifying)
	history := s.history(ctx, lg, userID, p)

	in := PromptInput{Period: p, Records: qualifying, Metrics: metrics}
	if len(history) > 0 {
		in.Prior = &history[0]
	}
	req := gen.Request(in)

	opts := s.Retry
	onRetry := opts.OnRetry
	opts.OnRetry = func(attempt int, delay time.Duration, rerr error) {
		observability.ObserveAIRetry(string(p.Type))
		lg.Warn().Err(rerr).Int("attempt", attempt).Dur("delay", delay).Msg("ai rate limited; retrying")
		if onRetry != nil {
			onRetry(attempt, delay, rerr)
		}
	}
	doc, err := retry.Call(ctx, func(ctx context.Context) (map[string]any, error) {
		return s.AI.GenerateStructured(ctx, req)
	}, opts)
	if err != nil {
		if ctx.Err() != nil {
			return domain.UserStatus{}, err
		}
		lg.Warn().Err(err).Msg("ai generation failed")
		return domain.Skipped(userID, domain.ReasonTrendGenerationFailed), nil
	}
	narrative, err := ValidateNarrative(def, doc)
	if err != nil {
		lg.Warn().Err(err).Msg("ai response rejected")
		return domain.Skipped(userID, domain.ReasonTrendGenerationFailed), nil
	}

	payload := domain.InsightPayload{
		Type:      p.Type,
		Period:    p,
		Metrics:   metrics,
		Narrative: narrative,
		Meta: domain.ResultMeta{
			SourceRecordCount: len(qualifying),
			PartialHistory:    len(history) < s.historyLimit(),
			HistoryCount:      len(history),
			Model:             s.Model,
			ReportVersion:     def.Version,
		},
	}
	if err := s.Store.UpsertResult(ctx, userID, p, payload); err != nil {
		lg.Error().Err(err).Msg("persist insight")
		return domain.UserStatus{}, fmt.Errorf("upsert result: %w", err)
	}
	return domain.Updated(userID), nil
}

func (s *InsightService) historyLimit() int {
	if s.HistoryLimit <= 0 {
		return 1
	}
	return s.HistoryLimit
}

// history returns prior results, treating any failure as no history.
func (s *InsightService) history(ctx context.Context, lg zerolog.Logger, userID string, p domain.Period) []domain.InsightPayload {
	prior, err := s.Store.PriorResults(ctx, userID, p.Type, p.StartDate, s.historyLimit())
	if err != nil {
		lg.Warn().Err(err).Msg("history unavailable; continuing without it")
		return nil
	}
	return prior
}

// ValidateNarrative checks doc against the definition's schema and requires
// every required key to be a non-empty string or array. It returns only the
// keys the schema declares; nothing missing is filled in.
func ValidateNarrative(def ReportDefinition, doc map[string]any) (map[string]any, error) {
	if err := ai.ValidateDocument(def.Schema, doc); err != nil {
		return nil, err
	}
	var blank []string
	for _, k := range def.RequiredKeys() {
		if isBlank(doc[k]) {
			blank = append(blank, k)
		}
	}
	if len(blank) > 0 {
		return nil, fmt.Errorf("%w: %s", errInvalidNarrative, strings.Join(blank, ", "))
	}
	props := def.properties()
	out := make(map[string]any, len(props))
	for k := range props {
		if v, ok := doc[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		if len(t) == 0 {
			return true
		}
		for _, item := range t {
			if !isBlank(item) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
