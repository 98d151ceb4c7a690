// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, database selection, queue and AI credentials, and the tuning knobs
// of the insight-generation pipeline.
//
// The Config value is built once at process start and handed to the router,
// the scheduler, the batch processor and the AI wrapper. Request handlers never
// read the environment themselves.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool          `env:"ENABLE_HSTS" envDefault:"false"`
	HSTSMaxAge time.Duration `env:"HSTS_MAX_AGE" envDefault:"4320h"`
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"journal-insights"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG" envDefault:"1.0"`
}

// DatabaseConfig selects the relational store backing users, source records
// and insight results.
type DatabaseConfig struct {
	Driver string `env:"DB_DRIVER" envDefault:"sqlite"` // sqlite|postgres
	Path   string `env:"DB_PATH" envDefault:"insights.db"`
	URL    string `env:"DATABASE_URL"`
}

// QueueConfig configures the push-queue used to fan out batches and to
// continue pagination across invocations.
type QueueConfig struct {
	Driver             string        `env:"QUEUE_DRIVER" envDefault:"http"` // http|redis
	URL                string        `env:"QSTASH_URL" envDefault:"https://qstash.upstash.io"`
	Token              string        `env:"QSTASH_TOKEN"`
	CurrentSigningKey  string        `env:"QSTASH_CURRENT_SIGNING_KEY"`
	NextSigningKey     string        `env:"QSTASH_NEXT_SIGNING_KEY"`
	RedisURL           string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	ContinuationDelay  time.Duration `env:"QUEUE_CONTINUATION_DELAY" envDefault:"10s"`
	DispatchInterval   time.Duration `env:"QUEUE_DISPATCH_INTERVAL" envDefault:"1s"`
	MaxDeliveries      int           `env:"QUEUE_MAX_DELIVERIES" envDefault:"3"`
	DeliveryTTL        time.Duration `env:"DELIVERY_TTL" envDefault:"72h"`
	PublishMaxAttempts uint          `env:"QUEUE_PUBLISH_MAX_ATTEMPTS" envDefault:"3"`
}

// AIConfig configures the generative provider and the rate-limit wrapper
// around it.
type AIConfig struct {
	BaseURL        string        `env:"AI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	APIKey         string        `env:"AI_API_KEY"`
	Model          string        `env:"AI_MODEL" envDefault:"gpt-4o-mini"`
	SchemaDialect  string        `env:"AI_SCHEMA_DIALECT" envDefault:"openai"` // openai|gemini
	Timeout        time.Duration `env:"AI_TIMEOUT" envDefault:"60s"`
	MaxRetries     int           `env:"AI_MAX_RETRIES" envDefault:"3"`
	RetryBaseDelay time.Duration `env:"AI_RETRY_BASE_DELAY" envDefault:"20s"`
	RPS            float64       `env:"AI_RPS" envDefault:"0"` // 0 disables client-side pacing
}

// PipelineConfig holds the tuning knobs of the insight pipeline.
type PipelineConfig struct {
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY" envDefault:"3"`
	BatchSize         int    `env:"BATCH_SIZE" envDefault:"25"`
	PageLimit         int    `env:"PAGE_LIMIT" envDefault:"100"`
	WeeklyMinRecords  int    `env:"WEEKLY_MIN_RECORDS" envDefault:"7"`
	MonthlyMinRecords int    `env:"MONTHLY_MIN_RECORDS" envDefault:"10"`
	PromptSampleLimit int    `env:"PROMPT_SAMPLE_LIMIT" envDefault:"20"`
	HistoryLimit      int    `env:"HISTORY_LIMIT" envDefault:"1"`
	Timezone          string `env:"REPORT_TIMEZONE" envDefault:"UTC"`

	// Keyword metrics. An empty stop-word list keeps the built-in English list.
	KeywordMinRunes  int      `env:"KEYWORD_MIN_RUNES" envDefault:"3"`
	KeywordStopwords []string `env:"KEYWORD_STOPWORDS" envSeparator:","`
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        `env:"PORT" envDefault:"8080"`
	ReadTimeout       time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"10s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT" envDefault:"300s"` // batch workers run long
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	MaxHeaderBytes    int           `env:"MAX_HEADER_BYTES" envDefault:"1048576"`
	GinMode           string        `env:"GIN_MODE" envDefault:"release"`

	// Logging / Docs
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty      bool   `env:"LOG_PRETTY" envDefault:"false"`
	SwaggerEnabled bool   `env:"SWAGGER_ENABLED" envDefault:"false"`
	APIBasePath    string `env:"API_BASE_PATH" envDefault:"/api/v1"`

	// Public origin used to build queue target URLs and to reconstruct the
	// canonical URL of signed deliveries behind proxies.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	// Shared secret for cron and direct batch invocations.
	CronSecret string `env:"CRON_SECRET"`
	// Header set by the hosting platform on its own scheduled invocations.
	// Empty disables it; only enable behind a proxy that strips the header
	// from outside traffic.
	CronTrustedHeader string `env:"CRON_TRUSTED_HEADER"`

	// Base64 AES-256 key for field encryption.
	EncryptionKey string `env:"ENCRYPTION_KEY"`

	// Rate limiting (read API)
	RateRPS   float64 `env:"RATE_RPS" envDefault:"5"`
	RateBurst int     `env:"RATE_BURST" envDefault:"10"`

	DB       DatabaseConfig
	Queue    QueueConfig
	AI       AIConfig
	Pipeline PipelineConfig

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads an optional .env file, parses environment variables, applies
// defaults, normalizes values, and validates the result.
//
// Secrets are not required here: the components that need them report a
// configuration error at request time, before any user is processed.
func Load() (Config, error) {
	_ = godotenv.Load() // a missing .env is the normal case in deployments

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	cfg.normalize()
	return cfg, cfg.validate()
}

func (c *Config) normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	c.GinMode = strings.ToLower(strings.TrimSpace(c.GinMode))
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
	c.APIBasePath = normalizeBasePath(c.APIBasePath)
	c.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.PublicBaseURL), "/")
	c.DB.Driver = strings.ToLower(strings.TrimSpace(c.DB.Driver))
	c.Queue.Driver = strings.ToLower(strings.TrimSpace(c.Queue.Driver))
	c.AI.SchemaDialect = strings.ToLower(strings.TrimSpace(c.AI.SchemaDialect))
	c.AI.BaseURL = strings.TrimRight(strings.TrimSpace(c.AI.BaseURL), "/")
	c.CORS.AllowedOrigins = trimAll(c.CORS.AllowedOrigins)
}

func (c *Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(c.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if c.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if c.PublicBaseURL == "" {
		return errors.New("PUBLIC_BASE_URL must not be empty")
	}
	switch c.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(c.DB.Path) == "" {
			return errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(c.DB.URL) == "" {
			return errors.New("DATABASE_URL must be set when DB_DRIVER=postgres")
		}
	default:
		return errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	switch c.Queue.Driver {
	case "http", "redis":
	default:
		return errors.New("QUEUE_DRIVER must be one of: http, redis")
	}
	if c.Queue.ContinuationDelay < 0 {
		return errors.New("QUEUE_CONTINUATION_DELAY must be >= 0")
	}
	if c.Queue.MaxDeliveries < 1 {
		return errors.New("QUEUE_MAX_DELIVERIES must be >= 1")
	}
	if c.Queue.DeliveryTTL <= 0 {
		return errors.New("DELIVERY_TTL must be > 0")
	}
	switch c.AI.SchemaDialect {
	case "openai", "gemini":
	default:
		return errors.New("AI_SCHEMA_DIALECT must be one of: openai, gemini")
	}
	if c.AI.MaxRetries < 0 {
		return errors.New("AI_MAX_RETRIES must be >= 0")
	}
	if c.AI.RetryBaseDelay < 0 || c.AI.Timeout <= 0 {
		return errors.New("AI_RETRY_BASE_DELAY must be >= 0 and AI_TIMEOUT > 0")
	}
	if c.AI.RPS < 0 {
		return errors.New("AI_RPS must be >= 0")
	}
	if c.Pipeline.WeeklyMinRecords < 1 || c.Pipeline.MonthlyMinRecords < 1 {
		return errors.New("WEEKLY_MIN_RECORDS and MONTHLY_MIN_RECORDS must be >= 1")
	}
	if c.Pipeline.HistoryLimit < 0 || c.Pipeline.PromptSampleLimit < 1 {
		return errors.New("HISTORY_LIMIT must be >= 0 and PROMPT_SAMPLE_LIMIT >= 1")
	}
	if c.Pipeline.KeywordMinRunes < 1 {
		return errors.New("KEYWORD_MIN_RUNES must be >= 1")
	}
	if _, err := time.LoadLocation(c.Pipeline.Timezone); err != nil {
		return errors.New("REPORT_TIMEZONE must be a valid IANA zone")
	}
	if c.RateRPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if c.RateBurst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	if c.Security.HSTSMaxAge < 0 {
		return errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// Location returns the time zone reporting periods are computed in.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Pipeline.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// HasQueueCredentials reports whether the configured queue driver can publish.
func (c Config) HasQueueCredentials() bool {
	switch c.Queue.Driver {
	case "redis":
		return strings.TrimSpace(c.Queue.RedisURL) != ""
	default:
		return strings.TrimSpace(c.Queue.Token) != ""
	}
}

// SigningKeys returns the non-empty delivery signing keys, current first.
func (c Config) SigningKeys() []string {
	keys := make([]string, 0, 2)
	for _, k := range []string{c.Queue.CurrentSigningKey, c.Queue.NextSigningKey} {
		if strings.TrimSpace(k) != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, p := range in {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
