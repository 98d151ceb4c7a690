package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tbourn/journal-insights/internal/config"
)

// HTTPPublisher publishes through a QStash-compatible REST API:
// POST {BaseURL}/v2/publish/{destination}.
type HTTPPublisher struct {
	BaseURL     string
	Token       string
	HTTP        *http.Client
	MaxAttempts uint
	// InitialInterval seeds the exponential backoff between attempts.
	InitialInterval time.Duration
}

// NewHTTPPublisher builds a publisher from configuration.
func NewHTTPPublisher(cfg config.QueueConfig) *HTTPPublisher {
	return &HTTPPublisher{
		BaseURL:         strings.TrimRight(cfg.URL, "/"),
		Token:           cfg.Token,
		HTTP:            &http.Client{Timeout: 15 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		MaxAttempts:     cfg.PublishMaxAttempts,
		InitialInterval: 500 * time.Millisecond,
	}
}

type publishResponse struct {
	MessageID string `json:"messageId"`
}

// Publish enqueues m. Network errors and 5xx replies are retried with
// exponential backoff; 4xx replies are permanent.
func (p *HTTPPublisher) Publish(ctx context.Context, m Message) (string, error) {
	if strings.TrimSpace(p.Token) == "" {
		return "", ErrNotConfigured
	}
	attempts := p.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}

	return backoff.Retry(ctx, func() (string, error) {
		return p.publishOnce(ctx, m)
	}, backoff.WithBackOff(eb), backoff.WithMaxTries(attempts))
}

func (p *HTTPPublisher) publishOnce(ctx context.Context, m Message) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v2/publish/"+m.URL, bytes.NewReader(m.Body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+p.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Upstash-Method", m.method())
	if m.Delay > 0 {
		req.Header.Set("Upstash-Delay", fmt.Sprintf("%ds", int(m.Delay.Round(time.Second).Seconds())))
	}
	for k, vs := range m.Headers {
		if http.CanonicalHeaderKey(k) == "Content-Type" {
			continue
		}
		for _, v := range vs {
			req.Header.Add("Upstash-Forward-"+k, v)
		}
	}

	client := p.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("queue publish: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	case resp.StatusCode >= 300:
		return "", backoff.Permanent(fmt.Errorf("queue publish: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	var pr publishResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		return "", backoff.Permanent(fmt.Errorf("queue publish: decode reply: %w", err))
	}
	return pr.MessageID, nil
}
