// Package queue publishes messages to an at-least-once push queue and
// authenticates the deliveries it makes back to this service.
//
// Two publishers exist: HTTPPublisher talks to a QStash-compatible HTTP API,
// RedisPublisher feeds a local emulator drained by Dispatcher.
package queue

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Kinds label published messages for metrics and logs.
const (
	KindBatch        = "batch"
	KindContinuation = "continuation"
)

// Delivery headers set on every push made to this service.
const (
	HeaderSignature = "Upstash-Signature"
	HeaderMessageID = "Upstash-Message-Id"
	HeaderRetried   = "Upstash-Retried"
)

// ErrNotConfigured is returned by publishers missing credentials.
var ErrNotConfigured = errors.New("queue not configured")

// Message is one unit to deliver to URL, optionally after Delay. Headers are
// forwarded verbatim to the destination.
type Message struct {
	Kind    string
	URL     string
	Method  string
	Body    []byte
	Headers http.Header
	Delay   time.Duration
}

// Publisher enqueues a message and returns the queue-assigned id.
type Publisher interface {
	Publish(ctx context.Context, m Message) (string, error)
}

func (m Message) method() string {
	if m.Method != "" {
		return m.Method
	}
	if len(m.Body) == 0 {
		return http.MethodGet
	}
	return http.MethodPost
}
