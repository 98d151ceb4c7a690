package httpapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/journal-insights/internal/ai"
	"github.com/tbourn/journal-insights/internal/config"
	"github.com/tbourn/journal-insights/internal/crypto"
	"github.com/tbourn/journal-insights/internal/domain"
	"github.com/tbourn/journal-insights/internal/queue"
	"github.com/tbourn/journal-insights/internal/repo"
	"github.com/tbourn/journal-insights/internal/retry"
	"github.com/tbourn/journal-insights/internal/services"
)

const (
	testSecret = "cron-s3cret"
	testKey    = "sig-current"
	testBase   = "https://insights.example.com"
)

type memPublisher struct {
	mu   sync.Mutex
	msgs []queue.Message
}

func (p *memPublisher) Publish(_ context.Context, m queue.Message) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, m)
	return fmt.Sprintf("msg_%d", len(p.msgs)), nil
}

type staticAI map[string]any

func (s staticAI) GenerateStructured(context.Context, ai.Request) (map[string]any, error) {
	return s, nil
}

func testConfig() config.Config {
	var cfg config.Config
	cfg.APIBasePath = "/api/v1"
	cfg.PublicBaseURL = testBase
	cfg.CronSecret = testSecret
	cfg.CronTrustedHeader = "X-Vercel-Cron"
	cfg.RateRPS = 100
	cfg.RateBurst = 10
	cfg.OTEL.ServiceName = "test-svc"
	cfg.Queue.CurrentSigningKey = testKey
	cfg.Queue.NextSigningKey = "sig-next"
	cfg.Queue.DeliveryTTL = time.Hour
	cfg.Pipeline.WorkerConcurrency = 2
	return cfg
}

func newTestStore(t *testing.T) *repo.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)

	enc, err := crypto.NewFieldEncryptor(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("r", 32))))
	if err != nil {
		t.Fatalf("encryptor: %v", err)
	}
	s := repo.NewStore(db, enc)
	s.Now = func() time.Time { return time.Date(2025, 11, 17, 6, 0, 0, 0, time.UTC) }
	return s
}

func seedUser(t *testing.T, s *repo.Store, id string, entries int) {
	t.Helper()
	now := s.Now()
	must := func(err error) {
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	must(s.DB.Create(&domain.User{ID: id, CreatedAt: now}).Error)
	must(s.DB.Create(&domain.Subscription{UserID: id, Status: domain.SubscriptionActive, UpdatedAt: now}).Error)
	for i := 0; i < entries; i++ {
		content, err := s.Cipher.Encrypt(fmt.Sprintf("long walk then deep writing block %d", i))
		must(err)
		intention, err := s.Cipher.Encrypt("deep writing every morning")
		must(err)
		must(s.DB.Create(&domain.JournalEntry{
			ID: uuid.NewString(), UserID: id, EntryDate: fmt.Sprintf("2025-11-%02d", 10+i),
			Content: content, Intention: intention, CreatedAt: now,
		}).Error)
	}
}

type wired struct {
	r     *gin.Engine
	store *repo.Store
	pub   *memPublisher
}

func newWiredRouter(t *testing.T, cfg config.Config) *wired {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := newTestStore(t)
	pub := &memPublisher{}
	reports, err := services.NewReportGenerators(services.ReportOptions{})
	if err != nil {
		t.Fatalf("reports: %v", err)
	}
	gen := &services.InsightService{
		Store:   store,
		AI:      staticAI{"headline": "h", "persona": "p", "summary": "s", "themes": []any{"t"}, "desired_state_alignment": "a", "suggestions": []any{"x"}},
		Reports: reports,
		Retry:   retry.Options{MaxRetries: 1},
	}
	sched := services.NewScheduler(cfg, store, pub, gen)
	sched.Location = time.UTC
	sched.Now = store.Now

	r := gin.New()
	RegisterRoutes(r, Deps{
		Scheduler: sched,
		Batches:   &services.BatchProcessor{Generator: gen, Concurrency: cfg.Pipeline.WorkerConcurrency},
		Coverage:  &services.CoverageService{Store: store, Scheduler: sched},
		Deliveries: func(ctx context.Context, id, endpoint string) (bool, error) {
			return store.RecordDelivery(ctx, id, endpoint, cfg.Queue.DeliveryTTL)
		},
		Ready: func(ctx context.Context) error {
			sqlDB, err := store.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}, cfg)
	return &wired{r: r, store: store, pub: pub}
}

func (w *wired) do(method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	w.r.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_ScheduleThenDeliverSignedBatch(t *testing.T) {
	w := newWiredRouter(t, testConfig())
	seedUser(t, w.store, "u1", 7)

	rec := w.do(http.MethodGet, "/api/v1/cron/insights/weekly?baseDate=2025-11-17", nil,
		map[string]string{"Authorization": "Bearer " + testSecret})
	if rec.Code != http.StatusOK {
		t.Fatalf("scheduler status=%d body=%s", rec.Code, rec.Body.String())
	}
	var run services.RunSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("json: %v", err)
	}
	if run.StartDate != "2025-11-10" || run.EndDate != "2025-11-16" || run.Users != 1 || run.Batches != 1 || run.NextPage != nil {
		t.Fatalf("run=%+v", run)
	}
	if len(w.pub.msgs) != 1 {
		t.Fatalf("published=%d", len(w.pub.msgs))
	}
	msg := w.pub.msgs[0]
	if msg.URL != testBase+"/api/v1/cron/insights/batch" {
		t.Fatalf("batch url=%q", msg.URL)
	}

	// Deliver the message the way the queue would: signed, with a message id.
	sig, err := queue.Signer{Key: testKey}.Sign(msg.URL, msg.Body)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	headers := map[string]string{
		queue.HeaderSignature: sig,
		queue.HeaderMessageID: "msg_abc",
		"Content-Type":        "application/json",
	}
	for i := 0; i < 2; i++ {
		rec = w.do(http.MethodPost, "/api/v1/cron/insights/batch", msg.Body, headers)
		if rec.Code != http.StatusOK {
			t.Fatalf("delivery %d status=%d body=%s", i, rec.Code, rec.Body.String())
		}
		var sum services.BatchSummary
		if err := json.Unmarshal(rec.Body.Bytes(), &sum); err != nil || sum.Updated != 1 || sum.Processed != 1 {
			t.Fatalf("delivery %d summary=%+v err=%v", i, sum, err)
		}
	}
	var rows int64
	w.store.DB.Model(&domain.InsightResult{}).Count(&rows)
	if rows != 1 {
		t.Fatalf("rows=%d", rows)
	}
	var deliveries int64
	w.store.DB.Model(&domain.QueueDelivery{}).Count(&deliveries)
	if deliveries != 1 {
		t.Fatalf("delivery log rows=%d", deliveries)
	}

	// Tampered body under a valid signature.
	tampered := bytes.Replace(msg.Body, []byte("u1"), []byte("u2"), 1)
	rec = w.do(http.MethodPost, "/api/v1/cron/insights/batch", tampered, headers)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("tampered status=%d", rec.Code)
	}

	rec = w.do(http.MethodGet, "/api/v1/insights/coverage?type=weekly&baseDate=2025-11-17", nil,
		map[string]string{"Authorization": "Bearer " + testSecret})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"results":1`) {
		t.Fatalf("coverage status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRoutes_AuthAndValidation(t *testing.T) {
	w := newWiredRouter(t, testConfig())

	cases := []struct {
		name    string
		method  string
		target  string
		headers map[string]string
		code    int
	}{
		{"cron without secret", http.MethodGet, "/api/v1/cron/insights/weekly", nil, http.StatusUnauthorized},
		{"cron bad type", http.MethodGet, "/api/v1/cron/insights/daily", map[string]string{"Authorization": "Bearer " + testSecret}, http.StatusBadRequest},
		{"cron bad baseDate", http.MethodGet, "/api/v1/cron/insights/weekly?baseDate=17-11-2025", map[string]string{"X-Vercel-Cron": "1"}, http.StatusBadRequest},
		{"batch unsigned", http.MethodPost, "/api/v1/cron/insights/batch", nil, http.StatusUnauthorized},
		{"batch secret but bad body", http.MethodPost, "/api/v1/cron/insights/batch", map[string]string{"Authorization": "Bearer " + testSecret}, http.StatusBadRequest},
		{"coverage ignores trusted header", http.MethodGet, "/api/v1/insights/coverage?type=weekly", map[string]string{"X-Vercel-Cron": "1"}, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		if rec := w.do(tc.method, tc.target, nil, tc.headers); rec.Code != tc.code {
			t.Fatalf("%s: status=%d want %d body=%s", tc.name, rec.Code, tc.code, rec.Body.String())
		}
	}
	if len(w.pub.msgs) != 0 {
		t.Fatalf("nothing may be published on rejected requests")
	}
}

func TestRoutes_PlatformHeaderIgnoredUnlessConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.CronTrustedHeader = ""
	w := newWiredRouter(t, cfg)
	seedUser(t, w.store, "u1", 7)

	rec := w.do(http.MethodGet, "/api/v1/cron/insights/weekly?baseDate=2025-11-17", nil, map[string]string{"X-Vercel-Cron": "anything"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d want 401 body=%s", rec.Code, rec.Body.String())
	}
	if len(w.pub.msgs) != 0 {
		t.Fatalf("spoofed header must not fan out, published %d", len(w.pub.msgs))
	}
}

func TestRoutes_MissingSecretIsConfigError(t *testing.T) {
	cfg := testConfig()
	cfg.CronSecret = ""
	w := newWiredRouter(t, cfg)

	rec := w.do(http.MethodGet, "/api/v1/cron/insights/weekly", nil, map[string]string{"X-Vercel-Cron": "1"})
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "config_error") {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRoutes_HealthMetricsCORSAndFallbacks(t *testing.T) {
	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"https://admin.example.com"}
	w := newWiredRouter(t, cfg)

	rec := w.do(http.MethodGet, "/health", nil, map[string]string{"Origin": "https://admin.example.com"})
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "https://admin.example.com" {
		t.Fatalf("health status=%d acao=%q", rec.Code, rec.Header().Get("Access-Control-Allow-Origin"))
	}
	if rec.Header().Get("X-Request-ID") == "" || rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("missing request id or no-store: %v", rec.Header())
	}
	if rec := w.do(http.MethodGet, "/ready", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("ready status=%d", rec.Code)
	}
	rec = w.do(http.MethodGet, "/metrics", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatalf("metrics status=%d", rec.Code)
	}
	if rec := w.do(http.MethodGet, "/nope", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("404 expected, got %d", rec.Code)
	}
	if rec := w.do(http.MethodPost, "/health", nil, nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("405 expected, got %d", rec.Code)
	}
	if rec := w.do(http.MethodGet, "/swagger/index.html", nil, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("swagger must be off by default, got %d", rec.Code)
	}
}

func TestRoutes_ReadyFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, Deps{Ready: func(context.Context) error { return errors.New("db down") }}, testConfig())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}
