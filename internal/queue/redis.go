package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the sorted set holding pending emulated deliveries.
const DefaultRedisKey = "insights:queue:pending"

// envelope is the stored form of a pending delivery.
type envelope struct {
	ID      string              `json:"id"`
	Kind    string              `json:"kind"`
	URL     string              `json:"url"`
	Method  string              `json:"method"`
	Body    []byte              `json:"body,omitempty"`
	Headers map[string][]string `json:"headers,omitempty"`
	Attempt int                 `json:"attempt"`
}

// delayQueue is the storage contract the emulator needs: schedule a payload
// at a due time, list due payloads and claim one exactly once.
type delayQueue interface {
	Schedule(ctx context.Context, payload string, due time.Time) error
	Due(ctx context.Context, now time.Time, max int64) ([]string, error)
	Claim(ctx context.Context, payload string) (bool, error)
}

// redisQueue keeps pending deliveries in a sorted set scored by due time in
// Unix milliseconds. ZREM is the claim: only the caller that removes the
// member delivers it.
type redisQueue struct {
	rdb redis.UniversalClient
	key string
}

func (q redisQueue) Schedule(ctx context.Context, payload string, due time.Time) error {
	return q.rdb.ZAdd(ctx, q.key, redis.Z{Score: float64(due.UnixMilli()), Member: payload}).Err()
}

func (q redisQueue) Due(ctx context.Context, now time.Time, max int64) ([]string, error) {
	return q.rdb.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: max,
	}).Result()
}

func (q redisQueue) Claim(ctx context.Context, payload string) (bool, error) {
	n, err := q.rdb.ZRem(ctx, q.key, payload).Result()
	return n == 1, err
}

// RedisPublisher schedules messages into the local emulator.
type RedisPublisher struct {
	q   delayQueue
	now func() time.Time
}

// NewRedisPublisher publishes into key ("" selects DefaultRedisKey).
func NewRedisPublisher(rdb redis.UniversalClient, key string) *RedisPublisher {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisPublisher{q: redisQueue{rdb: rdb, key: key}, now: time.Now}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Publish stores m due at now+Delay and returns a generated message id.
func (p *RedisPublisher) Publish(ctx context.Context, m Message) (string, error) {
	env := envelope{
		ID:      "msg_" + uuid.NewString(),
		Kind:    m.Kind,
		URL:     m.URL,
		Method:  m.method(),
		Body:    m.Body,
		Headers: m.Headers,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	if err := p.q.Schedule(ctx, string(b), p.now().Add(m.Delay)); err != nil {
		return "", fmt.Errorf("queue publish: %w", err)
	}
	return env.ID, nil
}
