// Package bootstrap assembles the pipeline from configuration. The server and
// the operator CLI share it so both run the same scheduler, generator and
// store wiring.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/journal-insights/internal/ai"
	"github.com/tbourn/journal-insights/internal/config"
	"github.com/tbourn/journal-insights/internal/crypto"
	httpapi "github.com/tbourn/journal-insights/internal/http"
	"github.com/tbourn/journal-insights/internal/keywords"
	"github.com/tbourn/journal-insights/internal/observability"
	"github.com/tbourn/journal-insights/internal/queue"
	"github.com/tbourn/journal-insights/internal/repo"
	"github.com/tbourn/journal-insights/internal/retry"
	"github.com/tbourn/journal-insights/internal/services"
)

// App holds the wired pipeline.
type App struct {
	Config    config.Config
	DB        *gorm.DB
	Store     *repo.Store
	Generator *services.InsightService
	Scheduler *services.Scheduler
	Batches   *services.BatchProcessor
	Coverage  *services.CoverageService

	// Redis is set only for QUEUE_DRIVER=redis.
	Redis *redis.Client
}

// Options override parts of the wiring, mainly for tests.
type Options struct {
	DB        *gorm.DB
	AI        ai.Generator
	Publisher queue.Publisher
}

// New opens the database, migrates it and builds every service. Missing
// queue credentials leave the scheduler without a publisher; it then fails
// with a configuration error when asked to fan out.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	lg := zerolog.Ctx(ctx)
	if lg.GetLevel() == zerolog.Disabled {
		lg = &log.Logger
	}

	db := opts.DB
	if db == nil {
		var err error
		if db, err = repo.Open(cfg.DB); err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	cipher, err := newCipher(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}
	if _, plain := cipher.(crypto.Plaintext); plain {
		lg.Warn().Msg("ENCRYPTION_KEY not set; record fields are read and written as plaintext")
	}
	store := repo.NewStore(db, cipher)

	reports, err := services.NewReportGenerators(services.ReportOptions{
		WeeklyMinRecords:  cfg.Pipeline.WeeklyMinRecords,
		MonthlyMinRecords: cfg.Pipeline.MonthlyMinRecords,
		SampleLimit:       cfg.Pipeline.PromptSampleLimit,
		Keywords: []keywords.Option{
			keywords.WithMinRunes(cfg.Pipeline.KeywordMinRunes),
			keywords.WithStopwords(cfg.Pipeline.KeywordStopwords),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("report definitions: %w", err)
	}
	lg.Debug().Interface("report_types", services.SortedTypes(reports)).Msg("report definitions loaded")

	var gen ai.Generator = opts.AI
	if gen == nil {
		gen = ai.NewClient(cfg.AI)
	}
	svc := &services.InsightService{
		Store:   store,
		AI:      gen,
		Reports: reports,
		Retry: retry.Options{
			MaxRetries: cfg.AI.MaxRetries,
			BaseDelay:  cfg.AI.RetryBaseDelay,
		},
		HistoryLimit: cfg.Pipeline.HistoryLimit,
		Model:        cfg.AI.Model,
	}

	app := &App{Config: cfg, DB: db, Store: store, Generator: svc}

	pub := opts.Publisher
	if pub == nil {
		if pub, err = app.newPublisher(); err != nil {
			return nil, err
		}
	}
	if pub == nil {
		lg.Warn().Str("driver", cfg.Queue.Driver).Msg("queue credentials missing; fan-out is disabled")
	}

	app.Scheduler = services.NewScheduler(cfg, store, pub, svc)
	app.Batches = &services.BatchProcessor{Generator: svc, Concurrency: cfg.Pipeline.WorkerConcurrency}
	app.Coverage = &services.CoverageService{Store: store, Scheduler: app.Scheduler}
	return app, nil
}

func newCipher(key string) (crypto.FieldCipher, error) {
	if strings.TrimSpace(key) == "" {
		return crypto.Plaintext{}, nil
	}
	enc, err := crypto.NewFieldEncryptor(key)
	if err != nil {
		return nil, fmt.Errorf("ENCRYPTION_KEY: %w", err)
	}
	return enc, nil
}

// newPublisher returns nil without error when the driver lacks credentials.
func (a *App) newPublisher() (queue.Publisher, error) {
	if !a.Config.HasQueueCredentials() {
		return nil, nil
	}
	switch a.Config.Queue.Driver {
	case "redis":
		rdb, err := queue.NewRedisClient(a.Config.Queue.RedisURL)
		if err != nil {
			return nil, err
		}
		a.Redis = rdb
		return queue.NewRedisPublisher(rdb, ""), nil
	default:
		return queue.NewHTTPPublisher(a.Config.Queue), nil
	}
}

// Deps exposes the services to the HTTP layer.
func (a *App) Deps() httpapi.Deps {
	ttl := a.Config.Queue.DeliveryTTL
	return httpapi.Deps{
		Scheduler: a.Scheduler,
		Batches:   a.Batches,
		Coverage:  a.Coverage,
		Deliveries: func(ctx context.Context, id, endpoint string) (bool, error) {
			return a.Store.RecordDelivery(ctx, id, endpoint, ttl)
		},
		Ready: a.Ping,
	}
}

// Ping checks the database and, when configured, redis.
func (a *App) Ping(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// ErrNoDispatcher is returned by Dispatcher when the queue driver is not redis.
var ErrNoDispatcher = errors.New("local dispatcher requires QUEUE_DRIVER=redis")

// Dispatcher returns the local emulator drain loop. Deliveries are signed
// with the current signing key so they pass the same verification as the
// hosted queue.
func (a *App) Dispatcher() (*queue.Dispatcher, error) {
	if a.Redis == nil {
		return nil, ErrNoDispatcher
	}
	if strings.TrimSpace(a.Config.Queue.CurrentSigningKey) == "" {
		return nil, errors.New("local dispatcher requires QSTASH_CURRENT_SIGNING_KEY")
	}
	d := queue.NewDispatcher(a.Redis, "", queue.Signer{Key: a.Config.Queue.CurrentSigningKey},
		a.Config.Queue.MaxDeliveries, a.Config.Queue.DispatchInterval)
	d.OnDelivered = observability.ObserveDispatch
	return d, nil
}

// Close releases the database pool and the redis client.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
