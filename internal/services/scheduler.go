package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/journal-insights/internal/config"
	"github.com/tbourn/journal-insights/internal/domain"
	"github.com/tbourn/journal-insights/internal/observability"
	"github.com/tbourn/journal-insights/internal/queue"
	"github.com/tbourn/journal-insights/internal/utils"
)

// Paging and batching bounds.
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 100
	DefaultBatchSize = 25
	MaxBatchSize     = domain.MaxBatchUsers
)

// UserDirectory lists users and resolves eligibility. repo.Store implements it.
type UserDirectory interface {
	ListUsersPage(ctx context.Context, page, limit int) ([]string, error)
	FilterEligible(ctx context.Context, ids []string) ([]string, error)
	IsEligible(ctx context.Context, userID string) (bool, error)
}

// RunRequest is one scheduler invocation. Zero numeric fields mean "not
// given" and select the defaults; callers clamp explicit values before
// building the request (see utils.BoundedInt). Values above the maximum are
// clamped here as well.
type RunRequest struct {
	Type      string
	BaseDate  string
	UserID    string
	Page      int
	Limit     int
	BatchSize int
	Sync      bool
}

// RunSummary is the scheduler reply. NextPage is null once the listing is
// exhausted; NextPageScheduled reports whether the continuation was queued.
type RunSummary struct {
	OK                bool               `json:"ok"`
	Page              int                `json:"page"`
	Limit             int                `json:"limit"`
	BatchSize         int                `json:"batchSize"`
	Users             int                `json:"users"`
	Batches           int                `json:"batches"`
	NextPage          *int               `json:"nextPage"`
	NextPageScheduled *bool              `json:"nextPageScheduled,omitempty"`
	StartDate         string             `json:"startDate"`
	EndDate           string             `json:"endDate"`
	Month             string             `json:"month,omitempty"`
	Result            *domain.UserStatus `json:"result,omitempty"`
}

// Scheduler is the cron entry point. One Run handles one page of users and,
// when the page was full, queues a delayed request for the next page to
// itself instead of looping.
type Scheduler struct {
	Users     UserDirectory
	Publisher queue.Publisher
	Generator UserGenerator

	// PublicBaseURL + BasePath address the queue targets.
	PublicBaseURL string
	BasePath      string
	// CronSecret is forwarded on continuation messages.
	CronSecret        string
	ContinuationDelay time.Duration
	Location          *time.Location
	Now               func() time.Time
}

// NewScheduler wires a Scheduler from configuration.
func NewScheduler(cfg config.Config, users UserDirectory, pub queue.Publisher, gen UserGenerator) *Scheduler {
	return &Scheduler{
		Users:             users,
		Publisher:         pub,
		Generator:         gen,
		PublicBaseURL:     cfg.PublicBaseURL,
		BasePath:          cfg.APIBasePath,
		CronSecret:        cfg.CronSecret,
		ContinuationDelay: cfg.Queue.ContinuationDelay,
		Location:          cfg.Location(),
		Now:               time.Now,
	}
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Scheduler) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

// BatchURL is the worker endpoint batch messages are addressed to.
func (s *Scheduler) BatchURL() string {
	return s.endpoint("/cron/insights/batch")
}

func (s *Scheduler) endpoint(path string) string {
	base := strings.TrimRight(s.BasePath, "/")
	return strings.TrimRight(s.PublicBaseURL, "/") + base + path
}

// ResolvePeriod validates typ and baseDate and computes the reporting period.
// It also returns the effective base date so continuations reuse it.
func (s *Scheduler) ResolvePeriod(typ, baseDate string) (domain.Period, string, error) {
	t, err := domain.ParseReportType(typ)
	if err != nil {
		return domain.Period{}, "", fmt.Errorf("%w: %w", ErrValidation, err)
	}
	base := s.now().In(s.location())
	if strings.TrimSpace(baseDate) != "" {
		if base, err = domain.ParseBaseDate(baseDate, s.location()); err != nil {
			return domain.Period{}, "", fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}
	p, err := domain.ComputePeriod(t, base)
	if err != nil {
		return domain.Period{}, "", fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return p, base.Format(domain.DateLayout), nil
}

// Run executes one scheduler invocation.
func (s *Scheduler) Run(ctx context.Context, req RunRequest) (sum RunSummary, err error) {
	if strings.TrimSpace(s.CronSecret) == "" {
		return RunSummary{}, fmt.Errorf("%w: CRON_SECRET is not set", ErrConfig)
	}
	p, baseDate, err := s.ResolvePeriod(req.Type, req.BaseDate)
	if err != nil {
		return RunSummary{}, err
	}
	req.UserID = strings.TrimSpace(req.UserID)
	inline := req.UserID != "" && req.Sync
	if inline && s.Generator == nil {
		return RunSummary{}, fmt.Errorf("%w: generator not configured", ErrConfig)
	}
	if !inline && (s.Publisher == nil || strings.TrimSpace(s.PublicBaseURL) == "") {
		return RunSummary{}, fmt.Errorf("%w: queue credentials or PUBLIC_BASE_URL missing", ErrConfig)
	}

	sum = RunSummary{
		OK:        true,
		Page:      req.Page,
		Limit:     req.Limit,
		BatchSize: req.BatchSize,
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		Month:     p.Month,
	}
	if sum.Page < 1 {
		sum.Page = 1
	}
	if sum.Limit <= 0 {
		sum.Limit = DefaultPageLimit
	}
	sum.Limit = utils.ClampInt(sum.Limit, 1, MaxPageLimit)
	if sum.BatchSize <= 0 {
		sum.BatchSize = DefaultBatchSize
	}
	sum.BatchSize = utils.ClampInt(sum.BatchSize, 1, MaxBatchSize)

	ctx, span := observability.Tracer("scheduler").Start(ctx, "Run",
		trace.WithAttributes(
			attribute.String("report.type", string(p.Type)),
			attribute.String("period.start", p.StartDate),
			attribute.Int("page", sum.Page),
			attribute.Int("limit", sum.Limit),
		),
	)
	defer func() { observability.EndSpan(span, err) }()
	lg := zerolog.Ctx(ctx).With().Str("type", string(p.Type)).Str("period_start", p.StartDate).Logger()

	if req.UserID != "" {
		return s.runSingle(ctx, lg, p, req, sum)
	}

	raw, err := s.Users.ListUsersPage(ctx, sum.Page, sum.Limit)
	if err != nil {
		return RunSummary{}, fmt.Errorf("list users: %w", err)
	}
	eligible := []string{}
	if len(raw) > 0 {
		if eligible, err = s.Users.FilterEligible(ctx, raw); err != nil {
			return RunSummary{}, fmt.Errorf("filter eligible users: %w", err)
		}
	}
	sum.Users = len(eligible)
	sum.Batches = s.publishBatches(ctx, lg, p, eligible, sum.BatchSize)

	full := len(raw) == sum.Limit
	if full {
		next := sum.Page + 1
		sum.NextPage = &next
		scheduled := s.scheduleNext(ctx, lg, p.Type, next, sum.Limit, sum.BatchSize, baseDate)
		sum.NextPageScheduled = &scheduled
	}
	observability.ObserveSchedulerPage(string(p.Type), sum.NextPageScheduled != nil && *sum.NextPageScheduled)
	span.SetAttributes(attribute.Int("users", sum.Users), attribute.Int("batches", sum.Batches), attribute.Bool("full_page", full))
	lg.Info().
		Int("page", sum.Page).
		Int("listed", len(raw)).
		Int("eligible", sum.Users).
		Int("batches", sum.Batches).
		Bool("next_page", full).
		Msg("scheduler page processed")
	return sum, nil
}

func (s *Scheduler) runSingle(ctx context.Context, lg zerolog.Logger, p domain.Period, req RunRequest, sum RunSummary) (RunSummary, error) {
	ok, err := s.Users.IsEligible(ctx, req.UserID)
	if err != nil {
		return RunSummary{}, fmt.Errorf("resolve eligibility: %w", err)
	}
	if !ok {
		lg.Info().Str("user_id", req.UserID).Msg("single user not eligible")
		if req.Sync {
			st := domain.Skipped(req.UserID, domain.ReasonNotEligible)
			sum.Result = &st
		}
		return sum, nil
	}
	sum.Users = 1
	if !req.Sync {
		sum.Batches = s.publishBatches(ctx, lg, p, []string{req.UserID}, sum.BatchSize)
		return sum, nil
	}

	st, gerr := s.Generator.Generate(ctx, req.UserID, p)
	if gerr != nil {
		lg.Error().Err(gerr).Str("user_id", req.UserID).Msg("inline generation failed")
		st = domain.Skipped(req.UserID, gerr.Error())
	}
	sum.Result = &st
	return sum, nil
}

// publishBatches publishes one message per chunk concurrently and returns how
// many were accepted. A failed chunk is logged and does not affect the others.
func (s *Scheduler) publishBatches(ctx context.Context, lg zerolog.Logger, p domain.Period, ids []string, size int) int {
	chunks := Chunk(ids, size)
	if len(chunks) == 0 {
		return 0
	}
	target := s.BatchURL()
	var published atomic.Int64
	var g errgroup.Group
	for i, c := range chunks {
		g.Go(func() error {
			body, err := json.Marshal(domain.NewBatchMessage(p, c))
			if err != nil {
				lg.Error().Err(err).Int("chunk", i).Msg("encode batch message")
				return nil
			}
			id, err := s.Publisher.Publish(ctx, queue.Message{
				Kind:    queue.KindBatch,
				URL:     target,
				Method:  http.MethodPost,
				Body:    body,
				Headers: http.Header{"Content-Type": []string{"application/json"}},
			})
			observability.ObservePublish(queue.KindBatch, err)
			if err != nil {
				lg.Error().Err(err).Int("chunk", i).Int("users", len(c)).Msg("publish batch")
				return nil
			}
			lg.Debug().Str("message_id", id).Int("chunk", i).Int("users", len(c)).Msg("batch published")
			published.Add(1)
			return nil
		})
	}
	_ = g.Wait()
	return int(published.Load())
}

// scheduleNext queues the scheduler request for the next page. A failure
// truncates the run and is logged; the current page still succeeds.
func (s *Scheduler) scheduleNext(ctx context.Context, lg zerolog.Logger, typ domain.ReportType, page, limit, batchSize int, baseDate string) bool {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("batchSize", strconv.Itoa(batchSize))
	q.Set("baseDate", baseDate)
	target := s.endpoint("/cron/insights/"+string(typ)) + "?" + q.Encode()

	id, err := s.Publisher.Publish(ctx, queue.Message{
		Kind:    queue.KindContinuation,
		URL:     target,
		Method:  http.MethodGet,
		Headers: http.Header{"Authorization": []string{"Bearer " + s.CronSecret}},
		Delay:   s.ContinuationDelay,
	})
	observability.ObservePublish(queue.KindContinuation, err)
	if err != nil {
		lg.Error().Err(err).Int("next_page", page).Msg("self-continuation failed; later pages are not processed")
		return false
	}
	lg.Info().Str("message_id", id).Int("next_page", page).Dur("delay", s.ContinuationDelay).Msg("next page scheduled")
	return true
}

// Chunk splits ids into consecutive slices of at most size elements.
func Chunk(ids []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	out := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
