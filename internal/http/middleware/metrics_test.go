package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/cron/insights/:type", func(c *gin.Context) { c.Status(http.StatusOK) })

	ok := httpReqs.WithLabelValues(http.MethodGet, "/cron/insights/:type", "200")
	miss := httpReqs.WithLabelValues(http.MethodGet, "unmatched", "404")
	beforeOK, beforeMiss := testutil.ToFloat64(ok), testutil.ToFloat64(miss)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/cron/insights/weekly", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/cron/insights/monthly", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))

	if got := testutil.ToFloat64(ok) - beforeOK; got != 2 {
		t.Fatalf("route counter delta=%v", got)
	}
	if got := testutil.ToFloat64(miss) - beforeMiss; got != 1 {
		t.Fatalf("unmatched counter delta=%v", got)
	}
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Fatalf("inflight=%v", got)
	}
}
