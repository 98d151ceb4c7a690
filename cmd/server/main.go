// Command server runs the insight pipeline HTTP API: the cron trigger, the
// batch worker endpoint and the coverage report. With QUEUE_DRIVER=redis it
// also drains the local queue emulator.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/journal-insights/internal/bootstrap"
	"github.com/tbourn/journal-insights/internal/config"
	httpapi "github.com/tbourn/journal-insights/internal/http"
	"github.com/tbourn/journal-insights/internal/observability"
	"github.com/tbourn/journal-insights/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	shutdownTimeout = 30 * time.Second
	purgeInterval   = time.Hour
)

func main() {
	cfg := config.MustLoad()
	lg := sysutil.SetupLogging(os.Stderr, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = lg.WithContext(ctx)

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg config.Config, lg zerolog.Logger) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version), "server")
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			lg.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			lg.Warn().Err(err).Msg("close resources")
		}
	}()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, app.Deps(), cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
		// In-flight requests outlive the signal; Shutdown drains them.
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Str("queue", cfg.Queue.Driver).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		lg.Info().Msg("shutting down")
		return srv.Shutdown(sctx)
	})
	g.Go(func() error {
		purgeDeliveries(gctx, app, lg)
		return nil
	})
	if d, err := app.Dispatcher(); err == nil {
		g.Go(func() error {
			return d.Run(gctx)
		})
	} else if !errors.Is(err, bootstrap.ErrNoDispatcher) {
		return err
	}
	return g.Wait()
}

// purgeDeliveries trims the delivery log once per purgeInterval.
func purgeDeliveries(ctx context.Context, app *bootstrap.App, lg zerolog.Logger) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := app.Store.PurgeDeliveries(ctx)
			if err != nil {
				lg.Warn().Err(err).Msg("purge delivery log")
				continue
			}
			if n > 0 {
				lg.Debug().Int64("rows", n).Msg("purged delivery log")
			}
		}
	}
}
