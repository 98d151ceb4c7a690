package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/journal-insights/internal/domain"
	"github.com/tbourn/journal-insights/internal/observability"
	"github.com/tbourn/journal-insights/internal/workerpool"
)

// BatchSummary is the reply of one batch delivery.
type BatchSummary struct {
	OK        bool                `json:"ok"`
	Processed int                 `json:"processed"`
	Updated   int                 `json:"updated"`
	Skipped   int                 `json:"skipped"`
	Results   []domain.UserStatus `json:"results,omitempty"`
}

// BatchProcessor runs the per-user generator over one batch message with
// bounded concurrency.
type BatchProcessor struct {
	Generator   UserGenerator
	Concurrency int
}

// Process validates msg and generates every listed user. Per-user failures
// are counted as skipped. A malformed message is an error, and so is a
// context cancelled mid-batch: the delivery must fail so the queue retries it.
func (b *BatchProcessor) Process(ctx context.Context, msg domain.BatchMessage) (BatchSummary, error) {
	if err := msg.Validate(); err != nil {
		return BatchSummary{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	p, err := msg.ToPeriod()
	if err != nil {
		return BatchSummary{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	ctx, span := observability.Tracer("batch").Start(ctx, "Process",
		trace.WithAttributes(
			attribute.String("report.type", string(p.Type)),
			attribute.String("period.start", p.StartDate),
			attribute.Int("batch.size", len(msg.UserIDs)),
		),
	)
	defer span.End()

	results := workerpool.Run(ctx, msg.UserIDs, b.Concurrency, b.handle(p))
	if err := ctx.Err(); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int("batch_size", len(msg.UserIDs)).Msg("batch interrupted")
		return BatchSummary{}, fmt.Errorf("batch interrupted: %w", err)
	}

	sum := BatchSummary{OK: true, Processed: len(results), Results: results}
	for _, r := range results {
		if r.Status == domain.StatusUpdated {
			sum.Updated++
		} else {
			sum.Skipped++
		}
	}
	span.SetAttributes(attribute.Int("batch.updated", sum.Updated), attribute.Int("batch.skipped", sum.Skipped))
	zerolog.Ctx(ctx).Info().
		Str("type", string(p.Type)).
		Str("period_start", p.StartDate).
		Int("processed", sum.Processed).
		Int("updated", sum.Updated).
		Int("skipped", sum.Skipped).
		Msg("batch processed")
	return sum, nil
}

// handle adapts the generator to the pool contract: errors and panics become
// a skipped status carrying the message.
func (b *BatchProcessor) handle(p domain.Period) workerpool.Handler[string, domain.UserStatus] {
	return func(ctx context.Context, userID string) (st domain.UserStatus) {
		defer func() {
			if r := recover(); r != nil {
				zerolog.Ctx(ctx).Error().Str("user_id", userID).Interface("panic", r).Msg("generator panicked")
				st = domain.Skipped(userID, fmt.Sprintf("panic: %v", r))
			}
		}()
		st, err := b.Generator.Generate(ctx, userID, p)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("user generation failed")
			return domain.Skipped(userID, err.Error())
		}
		if st.UserID == "" {
			st.UserID = userID
		}
		return st
	}
}
