// Package httpapi wires the Gin transport to the pipeline services.
//
// Global middleware, in order:
//  1. OpenTelemetry (otelgin)
//  2. RequestID
//  3. ContextLogger + RedactingLogger
//  4. Recovery
//  5. Body size limit
//  6. Prometheus metrics
//  7. gzip, CORS and security headers
//
// Route-level middleware authenticates callers: CronAuth for scheduler and
// operator endpoints, QueueAuth + DeliveryTracker for batch deliveries.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/journal-insights/docs"
	"github.com/tbourn/journal-insights/internal/config"
	"github.com/tbourn/journal-insights/internal/http/handlers"
	"github.com/tbourn/journal-insights/internal/http/middleware"
	"github.com/tbourn/journal-insights/internal/queue"
)

// maxBodyBytes caps request bodies. A full batch message is far below it.
const maxBodyBytes = 1 << 20

// Deps are the services behind the routes.
type Deps struct {
	Scheduler handlers.SchedulerRunner
	Batches   handlers.BatchRunner
	Coverage  handlers.CoverageReader
	// Deliveries records push-queue message ids; nil disables tracking.
	Deliveries middleware.DeliveryRecorder
	// Ready reports dependency health for /ready; nil means always ready.
	Ready func(ctx context.Context) error
}

// RegisterRoutes attaches middleware and endpoints to r.
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.ContextLogger())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"Upstash-Forward-Authorization"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(maxBodyBytes))
	r.Use(middleware.Metrics())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
		NoStore:    true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/ready", func(c *gin.Context) {
		if deps.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Ready(ctx); err != nil {
				handlers.Fail(c, http.StatusServiceUnavailable, handlers.ErrCodeInternal, "not ready: "+err.Error())
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(deps.Scheduler, deps.Batches, deps.Coverage)
	operator := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP(cfg.CronTrustedHeader))

	api := groupWithPrefix(r, cfg.APIBasePath)
	cron := api.Group("/cron/insights")
	{
		// Registered before /:type so "batch" is never parsed as a report type.
		cron.POST("/batch",
			middleware.QueueAuth(middleware.QueueAuthOptions{
				Secret:        cfg.CronSecret,
				Verifier:      queue.NewVerifier(cfg.SigningKeys()...),
				PublicBaseURL: cfg.PublicBaseURL,
			}),
			middleware.DeliveryTracker("batch", deps.Deliveries),
			h.ProcessBatch,
		)
		cron.GET("/:type",
			middleware.CronAuth(middleware.CronAuthOptions{Secret: cfg.CronSecret, TrustedHeader: cfg.CronTrustedHeader}),
			operator.Handler(),
			h.RunScheduler,
		)
	}
	api.GET("/insights/coverage",
		middleware.CronAuth(middleware.CronAuthOptions{Secret: cfg.CronSecret}),
		operator.Handler(),
		h.Coverage,
	)
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return cors.New(c)
}

// limitBody caps the request body with http.MaxBytesReader.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
