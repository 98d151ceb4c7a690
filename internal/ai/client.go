// Package ai is a client for OpenAI-compatible chat completion endpoints that
// returns schema-constrained JSON.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/tbourn/journal-insights/internal/config"
)

var (
	// ErrUpstream marks a provider failure that is not a rate limit.
	ErrUpstream = errors.New("ai upstream failure")
	// ErrInvalidResponse marks a reply that is not a JSON object.
	ErrInvalidResponse = errors.New("ai response invalid")
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("ai provider not configured")
)

// RateLimitError is returned for HTTP 429 replies. Its message carries a
// "retry after N s" phrase when the provider sent a Retry-After header.
type RateLimitError struct {
	Status int
	After  time.Duration
	Body   string
}

func (e *RateLimitError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("rate limited (%d): retry after %ds: %s", e.Status, int(e.After.Seconds()), e.Body)
	}
	return fmt.Sprintf("rate limited (%d): %s", e.Status, e.Body)
}

// RetryAfter implements retry.RetryAfterer.
func (e *RateLimitError) RetryAfter() time.Duration { return e.After }

// Request is one structured generation call.
type Request struct {
	Name   string         // schema name sent to the provider
	System string         // optional system instructions
	Prompt string         // user prompt
	Schema map[string]any // JSON schema the reply must satisfy
}

// Generator produces a JSON object for a prompt constrained by a schema.
type Generator interface {
	GenerateStructured(ctx context.Context, req Request) (map[string]any, error)
}

// Client calls POST {BaseURL}/chat/completions.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	Dialect Dialect
	HTTP    *http.Client
	Limiter *rate.Limiter
}

// NewClient builds a Client from configuration. Outbound requests are traced
// with otelhttp; AI_RPS > 0 paces calls client-side.
func NewClient(cfg config.AIConfig) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Dialect: Dialect(cfg.SchemaDialect),
		HTTP: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		c.Limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type jsonSchemaFormat struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema jsonSchemaFormat `json:"json_schema"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// GenerateStructured sends req and decodes the first choice as a JSON object.
func (c *Client) GenerateStructured(ctx context.Context, req Request) (out map[string]any, err error) {
	ctx, span := otel.Tracer("ai").Start(ctx, "ai.GenerateStructured")
	span.SetAttributes(
		attribute.String("ai.model", c.Model),
		attribute.String("ai.schema", req.Name),
		attribute.Int("prompt.length", len(req.Prompt)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if strings.TrimSpace(c.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: empty prompt", ErrUpstream)
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	msgs := make([]chatMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: req.Prompt})
	body, err := json.Marshal(chatRequest{
		Model:       c.Model,
		Messages:    msgs,
		Temperature: 0.4,
		ResponseFormat: responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchemaFormat{
				Name:   req.Name,
				Schema: SanitizeSchema(req.Schema, c.Dialect),
				Strict: c.Dialect == DialectOpenAI,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.httpClient().Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrUpstream, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{
			Status: resp.StatusCode,
			After:  parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			Body:   truncate(string(raw), 512),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, truncate(string(raw), 512))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return nil, fmt.Errorf("%w: decode envelope: %w", ErrInvalidResponse, err)
	}
	if cr.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, cr.Error.Message)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("%w: empty content", ErrInvalidResponse)
	}
	if err := json.Unmarshal([]byte(stripFences(cr.Choices[0].Message.Content)), &out); err != nil {
		return nil, fmt.Errorf("%w: content is not a JSON object: %w", ErrInvalidResponse, err)
	}
	return out, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now).Round(time.Second)
	}
	return 0
}

// stripFences removes a ```json ... ``` wrapper some providers add.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
