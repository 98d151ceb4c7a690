package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/journal-insights/internal/domain"
	"github.com/tbourn/journal-insights/internal/services"
)

type fakeScheduler struct {
	got services.RunRequest
	sum services.RunSummary
	err error
}

func (f *fakeScheduler) Run(_ context.Context, req services.RunRequest) (services.RunSummary, error) {
	f.got = req
	return f.sum, f.err
}

type fakeBatches struct {
	got   domain.BatchMessage
	calls int
	err   error
}

func (f *fakeBatches) Process(_ context.Context, msg domain.BatchMessage) (services.BatchSummary, error) {
	f.calls++
	f.got = msg
	if f.err != nil {
		return services.BatchSummary{}, f.err
	}
	return services.BatchSummary{OK: true, Processed: len(msg.UserIDs), Updated: len(msg.UserIDs)}, nil
}

type fakeCoverage struct {
	got services.CoverageQuery
	err error
}

func (f *fakeCoverage) Get(_ context.Context, q services.CoverageQuery) (domain.Coverage, error) {
	f.got = q
	if f.err != nil {
		return domain.Coverage{}, f.err
	}
	return domain.Coverage{Type: domain.Weekly, StartDate: "2025-11-10", EndDate: "2025-11-16", Results: 3}, nil
}

func newTestRouter(s *fakeScheduler, b *fakeBatches, cov *fakeCoverage) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(s, b, cov)
	r := gin.New()
	r.GET("/cron/insights/:type", h.RunScheduler)
	r.POST("/cron/insights/batch", h.ProcessBatch)
	r.GET("/insights/coverage", h.Coverage)
	return r
}

func TestRunScheduler_ParsesQuery(t *testing.T) {
	next := 2
	s := &fakeScheduler{sum: services.RunSummary{OK: true, Page: 1, Limit: 50, BatchSize: 10, Users: 7, Batches: 1, NextPage: &next, StartDate: "2025-11-10", EndDate: "2025-11-16"}}
	r := newTestRouter(s, nil, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/cron/insights/weekly?page=3&limit=50&batchSize=10&baseDate=2025-11-17&userId=u1&sync=1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	want := services.RunRequest{Type: "weekly", BaseDate: "2025-11-17", UserID: "u1", Page: 3, Limit: 50, BatchSize: 10, Sync: true}
	if s.got != want {
		t.Fatalf("request=%+v want %+v", s.got, want)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body["nextPage"] != float64(2) || body["users"] != float64(7) || body["startDate"] != "2025-11-10" {
		t.Fatalf("body=%v", body)
	}
	if _, ok := body["nextPageScheduled"]; ok {
		t.Fatalf("nextPageScheduled must be omitted when unset")
	}
}

func TestRunScheduler_ClampsExplicitSizes(t *testing.T) {
	s := &fakeScheduler{sum: services.RunSummary{OK: true}}
	r := newTestRouter(s, nil, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cron/insights/weekly?limit=0&batchSize=500", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if s.got.Limit != 1 || s.got.BatchSize != services.MaxBatchSize {
		t.Fatalf("limit=%d batchSize=%d; want 1 and %d", s.got.Limit, s.got.BatchSize, services.MaxBatchSize)
	}
}

func TestRunScheduler_DefaultsAndErrors(t *testing.T) {
	s := &fakeScheduler{}
	r := newTestRouter(s, nil, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cron/insights/monthly?page=abc&sync=true", nil))
	if s.got.Page != 1 || s.got.Limit != services.DefaultPageLimit || s.got.BatchSize != services.DefaultBatchSize || s.got.Sync {
		t.Fatalf("defaults not applied: %+v", s.got)
	}
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}

	s.err = fmt.Errorf("%w: type must be weekly or monthly", services.ErrValidation)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cron/insights/daily", nil))
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), `"code":"bad_request"`) {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	s.err = fmt.Errorf("%w: queue credentials or PUBLIC_BASE_URL missing", services.ErrConfig)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/cron/insights/weekly", nil))
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), `"code":"config_error"`) {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestProcessBatch(t *testing.T) {
	b := &fakeBatches{}
	r := newTestRouter(nil, b, nil)

	body := `{"userIds":["u1","u2"],"period":{"startDate":"2025-11-10","endDate":"2025-11-16"},"type":"weekly"}`
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cron/insights/batch", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if len(b.got.UserIDs) != 2 || b.got.Type != domain.Weekly || b.got.Period.StartDate != "2025-11-10" {
		t.Fatalf("message=%+v", b.got)
	}
	var sum services.BatchSummary
	if err := json.Unmarshal(w.Body.Bytes(), &sum); err != nil || !sum.OK || sum.Processed != 2 || sum.Updated != 2 {
		t.Fatalf("summary=%+v err=%v", sum, err)
	}

	for name, bad := range map[string]string{
		"not json":    `{"userIds":`,
		"no users":    `{"userIds":[],"period":{"startDate":"2025-11-10","endDate":"2025-11-16"},"type":"weekly"}`,
		"blank user":  `{"userIds":[""],"period":{"startDate":"2025-11-10","endDate":"2025-11-16"},"type":"weekly"}`,
		"no period":   `{"userIds":["u1"],"type":"weekly"}`,
		"no type":     `{"userIds":["u1"],"period":{"startDate":"2025-11-10","endDate":"2025-11-16"}}`,
		"too many ids": fmt.Sprintf(`{"userIds":[%s"u"],"period":{"startDate":"2025-11-10","endDate":"2025-11-16"},"type":"weekly"}`,
			strings.Repeat(`"u",`, domain.MaxBatchUsers)),
	} {
		calls := b.calls
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cron/insights/batch", strings.NewReader(bad)))
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d", name, w.Code)
		}
		if b.calls != calls {
			t.Fatalf("%s: processor must not run", name)
		}
	}

	b.err = fmt.Errorf("%w: endDate must not precede startDate", services.ErrValidation)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cron/insights/batch", strings.NewReader(body)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("service validation error: status=%d", w.Code)
	}
}

func TestCoverage(t *testing.T) {
	cov := &fakeCoverage{}
	r := newTestRouter(nil, nil, cov)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/insights/coverage?type=weekly&start=2025-11-10&end=2025-11-16", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"results":3`) {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if cov.got != (services.CoverageQuery{Type: "weekly", Start: "2025-11-10", End: "2025-11-16"}) {
		t.Fatalf("query=%+v", cov.got)
	}

	cov.err = fmt.Errorf("%w: bad period", services.ErrValidation)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/insights/coverage?type=weekly&start=x", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
}
