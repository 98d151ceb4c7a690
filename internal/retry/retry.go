// Package retry re-invokes upstream calls that fail with a "rate limited" or
// "quota exceeded" signal. Any other failure is returned at once.
package retry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 20 * time.Second
	maxHintDelay      = 5 * time.Minute
)

// ErrRetriesExhausted wraps the last rate-limit error once no attempts remain.
var ErrRetriesExhausted = errors.New("rate limit retries exhausted")

// RetryAfterer is implemented by errors that carry a server-provided delay.
type RetryAfterer interface {
	RetryAfter() time.Duration
}

// Options tunes Call. MaxRetries counts retries after the first attempt.
type Options struct {
	MaxRetries int
	BaseDelay  time.Duration
	// Sleep waits for d or until ctx is done. Tests inject a recorder.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry observes each scheduled retry (attempt is 1-based).
	OnRetry func(attempt int, delay time.Duration, err error)
}

func (o Options) withDefaults() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.Sleep == nil {
		o.Sleep = SleepContext
	}
	return o
}

// Call runs fn, retrying up to opts.MaxRetries times while it fails with a
// rate-limit error. The delay before each retry is the hint embedded in the
// error when present, otherwise opts.BaseDelay.
func Call[T any](ctx context.Context, fn func(context.Context) (T, error), opts Options) (T, error) {
	opts = opts.withDefaults()
	var zero T
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !IsRateLimited(err) {
			return zero, err
		}
		if attempt >= opts.MaxRetries {
			return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt+1, err)
		}
		delay, ok := Hint(err)
		if !ok {
			delay = opts.BaseDelay
		}
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, delay, err)
		}
		if serr := opts.Sleep(ctx, delay); serr != nil {
			return zero, serr
		}
	}
}

var rateLimitRE = regexp.MustCompile(`(?i)rate[ _-]?limit|quota|\b429\b|too many requests|resource[ _]exhausted`)

// IsRateLimited reports whether err signals "retry later".
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var ra RetryAfterer
	if errors.As(err, &ra) {
		return true
	}
	return rateLimitRE.MatchString(err.Error())
}

var (
	hintRE      = regexp.MustCompile(`(?i)retry (?:in|after) (\d+(?:\.\d+)?)\s*(ms|milliseconds?|s|secs?|seconds?)?\b`)
	retryInfoRE = regexp.MustCompile(`"retryDelay"\s*:\s*"(\d+(?:\.\d+)?)s"`)
)

// Hint extracts a server-suggested delay from err: a typed RetryAfter value,
// a "retry in N s" / "retry after N seconds" phrase, or a JSON retryDelay
// field. Hints are capped at five minutes.
func Hint(err error) (time.Duration, bool) {
	if err == nil {
		return 0, false
	}
	var ra RetryAfterer
	if errors.As(err, &ra) {
		if d := ra.RetryAfter(); d > 0 {
			return capHint(d), true
		}
	}
	msg := err.Error()
	if m := hintRE.FindStringSubmatch(msg); m != nil {
		n, perr := strconv.ParseFloat(m[1], 64)
		if perr == nil && n > 0 {
			unit := time.Second
			if len(m[2]) > 0 && (m[2] == "ms" || m[2][0] == 'm' || m[2][0] == 'M') {
				unit = time.Millisecond
			}
			return capHint(time.Duration(n * float64(unit))), true
		}
	}
	if m := retryInfoRE.FindStringSubmatch(msg); m != nil {
		if n, perr := strconv.ParseFloat(m[1], 64); perr == nil && n > 0 {
			return capHint(time.Duration(n * float64(time.Second))), true
		}
	}
	return 0, false
}

func capHint(d time.Duration) time.Duration {
	if d > maxHintDelay {
		return maxHintDelay
	}
	return d
}

// SleepContext waits for d or returns ctx.Err() if ctx ends first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
