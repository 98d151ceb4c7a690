package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/journal-insights/internal/queue"
)

func cronRouter(opts CronAuthOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/cron", CronAuth(opts), func(c *gin.Context) { c.String(http.StatusOK, AuthMode(c)) })
	return r
}

func TestCronAuth(t *testing.T) {
	r := cronRouter(CronAuthOptions{Secret: "s3cret", TrustedHeader: "X-Vercel-Cron"})
	cases := []struct {
		name    string
		headers map[string]string
		code    int
		mode    string
	}{
		{"bearer", map[string]string{"Authorization": "Bearer s3cret"}, 200, AuthModeSecret},
		{"bearer lowercase scheme", map[string]string{"Authorization": "bearer s3cret"}, 200, AuthModeSecret},
		{"trusted platform header", map[string]string{"X-Vercel-Cron": "1"}, 200, AuthModeTrusted},
		{"wrong secret", map[string]string{"Authorization": "Bearer nope"}, 401, ""},
		{"secret as basic", map[string]string{"Authorization": "Basic s3cret"}, 401, ""},
		{"nothing", nil, 401, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/cron", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.code {
				t.Fatalf("status=%d want %d", w.Code, tc.code)
			}
			if tc.code == 200 && w.Body.String() != tc.mode {
				t.Fatalf("mode=%q want %q", w.Body.String(), tc.mode)
			}
			if tc.code == 401 && !strings.Contains(w.Body.String(), `"code":"unauthorized"`) {
				t.Fatalf("body=%s", w.Body.String())
			}
		})
	}
}

func TestCronAuth_MissingSecretIsConfigError(t *testing.T) {
	r := cronRouter(CronAuthOptions{TrustedHeader: "X-Vercel-Cron"})
	req := httptest.NewRequest(http.MethodGet, "/cron", nil)
	req.Header.Set("X-Vercel-Cron", "1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), "config_error") {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

const (
	publicBase = "https://app.example.com"
	batchPath  = "/api/v1/cron/insights/batch"
	batchBody  = `{"userIds":["u1"],"period":{"startDate":"2025-11-10","endDate":"2025-11-16"},"type":"weekly"}`
)

// queueRouter echoes the body the handler sees, proving it was restored.
func queueRouter(opts QueueAuthOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBodyForTest(1 << 10))
	r.POST(batchPath, QueueAuth(opts), func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		c.Header("X-Auth-Mode", AuthMode(c))
		c.String(http.StatusOK, string(b))
	})
	return r
}

func limitBodyForTest(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

func sign(t *testing.T, key, url, body string) string {
	t.Helper()
	sig, err := queue.Signer{Key: key}.Sign(url, []byte(body))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return sig
}

func postBatch(r *gin.Engine, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestQueueAuth_SignatureUnderCurrentAndNextKeys(t *testing.T) {
	r := queueRouter(QueueAuthOptions{
		Secret:        "s3cret",
		Verifier:      queue.NewVerifier("current-key", "next-key"),
		PublicBaseURL: publicBase + "/",
	})
	for _, key := range []string{"current-key", "next-key"} {
		sig := sign(t, key, publicBase+batchPath, batchBody)
		w := postBatch(r, batchPath, batchBody, map[string]string{queue.HeaderSignature: sig})
		if w.Code != http.StatusOK || w.Body.String() != batchBody || w.Header().Get("X-Auth-Mode") != AuthModeSignature {
			t.Fatalf("key %s: status=%d body=%q", key, w.Code, w.Body.String())
		}

		flipped := []byte(batchBody)
		flipped[12] ^= 0x01
		w = postBatch(r, batchPath, string(flipped), map[string]string{queue.HeaderSignature: sig})
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("key %s: flipped body accepted with %d", key, w.Code)
		}
	}
}

func TestQueueAuth_Rejections(t *testing.T) {
	r := queueRouter(QueueAuthOptions{
		Secret:        "s3cret",
		Verifier:      queue.NewVerifier("current-key"),
		PublicBaseURL: publicBase,
	})
	otherURL := sign(t, "current-key", publicBase+"/api/v1/cron/insights/weekly", batchBody)
	withQuery := sign(t, "current-key", publicBase+batchPath, batchBody)

	cases := map[string]struct {
		target  string
		headers map[string]string
	}{
		"no credentials":     {batchPath, nil},
		"wrong secret":       {batchPath, map[string]string{"Authorization": "Bearer nope"}},
		"signed for another": {batchPath, map[string]string{queue.HeaderSignature: otherURL}},
		"query added":        {batchPath + "?x=1", map[string]string{queue.HeaderSignature: withQuery}},
		"unknown key":        {batchPath, map[string]string{queue.HeaderSignature: sign(t, "stolen", publicBase+batchPath, batchBody)}},
	}
	for name, tc := range cases {
		if w := postBatch(r, tc.target, batchBody, tc.headers); w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: status=%d", name, w.Code)
		}
	}

	w := postBatch(r, batchPath, batchBody, map[string]string{"Authorization": "Bearer s3cret"})
	if w.Code != http.StatusOK || w.Header().Get("X-Auth-Mode") != AuthModeSecret || w.Body.String() != batchBody {
		t.Fatalf("secret mode: status=%d body=%q", w.Code, w.Body.String())
	}
}

func TestQueueAuth_ConfigAndBodyErrors(t *testing.T) {
	r := queueRouter(QueueAuthOptions{PublicBaseURL: publicBase})
	if w := postBatch(r, batchPath, batchBody, nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("no secret and no keys: status=%d", w.Code)
	}

	r = queueRouter(QueueAuthOptions{Secret: "s3cret", PublicBaseURL: publicBase})
	sig := sign(t, "current-key", publicBase+batchPath, batchBody)
	if w := postBatch(r, batchPath, batchBody, map[string]string{queue.HeaderSignature: sig}); w.Code != http.StatusInternalServerError {
		t.Fatalf("signature without keys: status=%d", w.Code)
	}

	r = queueRouter(QueueAuthOptions{Secret: "s3cret", Verifier: queue.NewVerifier("current-key")})
	if w := postBatch(r, batchPath, batchBody, map[string]string{queue.HeaderSignature: sig}); w.Code != http.StatusInternalServerError {
		t.Fatalf("signature without public url: status=%d", w.Code)
	}

	r = queueRouter(QueueAuthOptions{Secret: "s3cret", Verifier: queue.NewVerifier("current-key"), PublicBaseURL: publicBase})
	big := strings.Repeat("x", 2<<10)
	if w := postBatch(r, batchPath, big, map[string]string{"Authorization": "Bearer s3cret"}); w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body: status=%d", w.Code)
	}
}
