package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const rescheduleTimeout = 5 * time.Second

// Dispatcher drains the emulator: it claims due deliveries, signs them with
// the current signing key and POSTs them to their destination. Non-2xx
// replies are rescheduled with exponential delay until MaxDeliveries.
type Dispatcher struct {
	q             delayQueue
	Signer        Signer
	HTTP          *http.Client
	Interval      time.Duration
	MaxDeliveries int
	BatchSize     int64
	Now           func() time.Time
	Logger        *zerolog.Logger
	// OnDelivered observes each attempt outcome.
	OnDelivered func(kind string, status int, err error)
}

// NewDispatcher drains key ("" selects DefaultRedisKey).
func NewDispatcher(rdb redis.UniversalClient, key string, signer Signer, maxDeliveries int, interval time.Duration) *Dispatcher {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Dispatcher{
		q:             redisQueue{rdb: rdb, key: key},
		Signer:        signer,
		HTTP:          &http.Client{Timeout: 5 * time.Minute},
		Interval:      interval,
		MaxDeliveries: maxDeliveries,
		BatchSize:     50,
		Now:           time.Now,
	}
}

func (d *Dispatcher) logger() *zerolog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	l := log.With().Str("component", "queue_dispatcher").Logger()
	return &l
}

// Run polls until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	interval := d.Interval
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	d.logger().Info().Dur("interval", interval).Msg("queue dispatcher started")
	for {
		if _, err := d.DispatchDue(ctx); err != nil && ctx.Err() == nil {
			d.logger().Error().Err(err).Msg("dispatch due deliveries")
		}
		select {
		case <-ctx.Done():
			d.logger().Info().Msg("queue dispatcher stopped")
			return nil
		case <-t.C:
		}
	}
}

// DispatchDue delivers every currently due message once and returns how many
// were claimed.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	now := d.Now()
	batch := d.BatchSize
	if batch <= 0 {
		batch = 50
	}
	due, err := d.q.Due(ctx, now, batch)
	if err != nil {
		return 0, err
	}
	claimed := 0
	for _, payload := range due {
		ok, err := d.q.Claim(ctx, payload)
		if err != nil {
			return claimed, err
		}
		if !ok {
			continue // another dispatcher took it
		}
		claimed++
		var env envelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			d.logger().Error().Err(err).Msg("drop undecodable delivery")
			continue
		}
		d.deliver(ctx, env)
	}
	return claimed, nil
}

func (d *Dispatcher) deliver(ctx context.Context, env envelope) {
	status, err := d.send(ctx, env)
	if d.OnDelivered != nil {
		d.OnDelivered(env.Kind, status, err)
	}
	lg := d.logger().With().Str("message_id", env.ID).Str("kind", env.Kind).Int("attempt", env.Attempt+1).Logger()
	if err == nil && status >= 200 && status < 300 {
		lg.Debug().Int("status", status).Msg("delivered")
		return
	}
	env.Attempt++
	max := d.MaxDeliveries
	if max < 1 {
		max = 1
	}
	if env.Attempt >= max {
		lg.Error().Err(err).Int("status", status).Msg("delivery abandoned")
		return
	}
	delay := time.Duration(1<<uint(env.Attempt-1)) * time.Second
	b, _ := json.Marshal(env)
	// The claim already removed the message; requeue even when ctx is done.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rescheduleTimeout)
	defer cancel()
	if serr := d.q.Schedule(sctx, string(b), d.Now().Add(delay)); serr != nil {
		lg.Error().Err(serr).Msg("reschedule delivery")
		return
	}
	lg.Warn().Err(err).Int("status", status).Dur("retry_in", delay).Msg("delivery failed; rescheduled")
}

func (d *Dispatcher) send(ctx context.Context, env envelope) (int, error) {
	sig, err := d.Signer.Sign(env.URL, env.Body)
	if err != nil {
		return 0, err
	}
	method := env.Method
	if method == "" {
		method = http.MethodPost
	}
	var body io.Reader
	if len(env.Body) > 0 {
		body = bytes.NewReader(env.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, env.URL, body)
	if err != nil {
		return 0, err
	}
	for k, vs := range env.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if len(env.Body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(HeaderSignature, sig)
	req.Header.Set(HeaderMessageID, env.ID)
	req.Header.Set(HeaderRetried, strconv.Itoa(env.Attempt))

	client := d.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("destination replied %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
