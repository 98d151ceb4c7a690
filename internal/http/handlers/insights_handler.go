// Insight pipeline HTTP handlers.
//
// This file exposes the three pipeline endpoints:
//   - GET  /cron/insights/{type}   (scheduler page, cron or self-continuation)
//   - POST /cron/insights/batch    (push-queue batch worker)
//   - GET  /insights/coverage      (operator coverage check)
//
// Authentication happens in middleware before these handlers run; handlers
// only parse input, call the services and map their errors.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/journal-insights/internal/domain"
	"github.com/tbourn/journal-insights/internal/http/middleware"
	"github.com/tbourn/journal-insights/internal/services"
	"github.com/tbourn/journal-insights/internal/utils"
)

// SchedulerRunner runs one scheduler page.
type SchedulerRunner interface {
	Run(ctx context.Context, req services.RunRequest) (services.RunSummary, error)
}

// BatchRunner processes one batch message.
type BatchRunner interface {
	Process(ctx context.Context, msg domain.BatchMessage) (services.BatchSummary, error)
}

// CoverageReader reports stored results for a period.
type CoverageReader interface {
	Get(ctx context.Context, q services.CoverageQuery) (domain.Coverage, error)
}

// Handlers groups the pipeline endpoints.
type Handlers struct {
	scheduler SchedulerRunner
	batches   BatchRunner
	coverage  CoverageReader
}

// New constructs Handlers bound to the given services.
func New(scheduler SchedulerRunner, batches BatchRunner, coverage CoverageReader) *Handlers {
	return &Handlers{scheduler: scheduler, batches: batches, coverage: coverage}
}

// RunScheduler godoc
// @ID          runScheduler
// @Summary     Run one scheduler page
// @Description Lists one page of users, keeps the eligible ones and publishes them in batch messages.
// @Description A full page queues a delayed request for the next page.
// @Tags        Cron
// @Produce     json
//
// @Param       Authorization  header  string  false "Bearer <CRON_SECRET>"
// @Param       type       path   string  true  "Report type"  Enums(weekly, monthly)
// @Param       page       query  int     false "Page number"  minimum(1) default(1)
// @Param       limit      query  int     false "Users per page"  minimum(1) maximum(100) default(100)
// @Param       batchSize  query  int     false "Users per batch message"  minimum(1) maximum(100) default(25)
// @Param       baseDate   query  string  false "Base date (YYYY-MM-DD); defaults to today"  example(2025-11-17)
// @Param       userId     query  string  false "Run for a single user"
// @Param       sync       query  string  false "\"1\" runs the single user inline"
//
// @Success     200  {object}  services.RunSummary
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid type or baseDate"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid secret"
// @Failure     500  {object}  handlers.ErrorResponse  "Configuration or listing error"
// @Router      /cron/insights/{type} [get]
func (h *Handlers) RunScheduler(c *gin.Context) {
	req := services.RunRequest{
		Type:      c.Param("type"),
		BaseDate:  c.Query("baseDate"),
		UserID:    c.Query("userId"),
		Page:      utils.AtoiDefault(c.Query("page"), 1),
		Limit:     utils.BoundedInt(c.Query("limit"), services.DefaultPageLimit, 1, services.MaxPageLimit),
		BatchSize: utils.BoundedInt(c.Query("batchSize"), services.DefaultBatchSize, 1, services.MaxBatchSize),
		Sync:      strings.TrimSpace(c.Query("sync")) == "1",
	}
	sum, err := h.scheduler.Run(c.Request.Context(), req)
	if err != nil {
		failErr(c, err, ErrCodeRunFailed)
		return
	}
	ok(c, http.StatusOK, sum)
}

// ProcessBatch godoc
// @ID          processBatch
// @Summary     Process one batch message
// @Description Generates the report of every user in the batch with bounded concurrency.
// @Description Per-user failures are reported as skipped; redelivery is safe.
// @Tags        Cron
// @Accept      json
// @Produce     json
//
// @Param       Upstash-Signature  header  string  false "Push-queue delivery signature"
// @Param       Authorization      header  string  false "Bearer <CRON_SECRET> for direct calls"
// @Param       body               body    domain.BatchMessage  true  "Batch message"
//
// @Success     200  {object}  services.BatchSummary
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed batch message"
// @Failure     401  {object}  handlers.ErrorResponse  "Invalid signature or secret"
// @Failure     500  {object}  handlers.ErrorResponse  "Configuration error or interrupted batch"
// @Router      /cron/insights/batch [post]
func (h *Handlers) ProcessBatch(c *gin.Context) {
	var msg domain.BatchMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid batch message: "+err.Error())
		return
	}
	if id, ok := middleware.DeliveryID(c); ok {
		middleware.LoggerFrom(c).Debug().
			Str("message_id", id).
			Str("auth_mode", middleware.AuthMode(c)).
			Bool("redelivered", middleware.IsRedelivery(c)).
			Int("users", len(msg.UserIDs)).
			Msg("batch delivery")
	}
	sum, err := h.batches.Process(c.Request.Context(), msg)
	if err != nil {
		failErr(c, err, ErrCodeBatchFailed)
		return
	}
	ok(c, http.StatusOK, sum)
}

// Coverage godoc
// @ID          insightCoverage
// @Summary     Stored results for a period
// @Description Counts stored results for a period next to the currently eligible users.
// @Description The period comes from start/end or, when both are absent, from baseDate like the scheduler.
// @Tags        Insights
// @Produce     json
//
// @Param       Authorization  header  string  true  "Bearer <CRON_SECRET>"
// @Param       type      query  string  true   "Report type"  Enums(weekly, monthly)
// @Param       start     query  string  false  "Period start (YYYY-MM-DD)"
// @Param       end       query  string  false  "Period end (YYYY-MM-DD)"
// @Param       baseDate  query  string  false  "Base date (YYYY-MM-DD)"
//
// @Success     200  {object}  domain.Coverage
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid period"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid secret"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /insights/coverage [get]
func (h *Handlers) Coverage(c *gin.Context) {
	cov, err := h.coverage.Get(c.Request.Context(), services.CoverageQuery{
		Type:     c.Query("type"),
		BaseDate: c.Query("baseDate"),
		Start:    c.Query("start"),
		End:      c.Query("end"),
	})
	if err != nil {
		failErr(c, err, ErrCodeCoverageFailed)
		return
	}
	ok(c, http.StatusOK, cov)
}
