// Package middleware contains the Gin middleware of the pipeline endpoints.
//
// This file tracks push-queue message ids. The queue delivers at least once,
// so the same batch can arrive twice; the tracker records each id and flags
// redeliveries for logs and metrics. It never short-circuits the request:
// stored results are upserts, so processing a redelivery converges to the
// same rows.
package middleware

import (
	"context"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/journal-insights/internal/observability"
	"github.com/tbourn/journal-insights/internal/queue"
)

const (
	ctxKeyDeliveryID  = "delivery.id"
	ctxKeyRedelivered = "delivery.redelivered"

	maxDeliveryIDLength = 128
)

var deliveryIDPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// DeliveryRecorder stores messageID for endpoint and reports whether it had
// been seen before.
type DeliveryRecorder func(ctx context.Context, messageID, endpoint string) (dup bool, err error)

// DeliveryID returns the validated message id of the current delivery.
func DeliveryID(c *gin.Context) (string, bool) {
	s := c.GetString(ctxKeyDeliveryID)
	return s, s != ""
}

// IsRedelivery reports whether the message id had been recorded before.
func IsRedelivery(c *gin.Context) bool {
	return c.GetBool(ctxKeyRedelivered)
}

// DeliveryTracker records the Upstash-Message-Id of each delivery under
// endpoint. Missing or malformed ids and recorder failures are logged and
// otherwise ignored.
func DeliveryTracker(endpoint string, record DeliveryRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(queue.HeaderMessageID))
		if id == "" || record == nil {
			c.Next()
			return
		}
		lg := LoggerFrom(c)
		if len(id) > maxDeliveryIDLength || !deliveryIDPattern.MatchString(id) {
			lg.Warn().Int("length", len(id)).Msg("ignoring malformed delivery id")
			c.Next()
			return
		}
		c.Set(ctxKeyDeliveryID, id)

		dup, err := record(c.Request.Context(), id, endpoint)
		switch {
		case err != nil:
			lg.Error().Err(err).Str("message_id", id).Msg("record delivery")
		case dup:
			c.Set(ctxKeyRedelivered, true)
			observability.ObserveRedelivery()
			lg.Info().
				Str("message_id", id).
				Str("retried", c.GetHeader(queue.HeaderRetried)).
				Msg("redelivered message; processing again")
		}
		c.Next()
	}
}
