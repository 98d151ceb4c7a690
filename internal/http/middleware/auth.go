// Package middleware contains the Gin middleware of the pipeline endpoints.
//
// This file authenticates the two kinds of callers:
//   - CronAuth: scheduler triggers, by Bearer shared secret or by a header
//     the hosting platform sets on its own scheduled invocations.
//   - QueueAuth: batch deliveries, by the same shared secret (direct calls)
//     or by a push-queue signature over the body and the public URL.
//
// Missing configuration is a 500 (config_error); bad credentials are a 401.
// Both run before any body parsing or user processing.
package middleware

import (
	"bytes"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/journal-insights/internal/queue"
)

// Authentication modes stored in the Gin context.
const (
	AuthModeSecret    = "secret"
	AuthModeTrusted   = "trusted"
	AuthModeSignature = "signature"

	ctxKeyAuthMode = "auth.mode"
)

// AuthMode returns how the current request was authenticated.
func AuthMode(c *gin.Context) string {
	return c.GetString(ctxKeyAuthMode)
}

func abortAuth(c *gin.Context, status int, code, msg string) {
	LoggerFrom(c).Warn().Int("status", status).Str("code", code).Msg(msg)
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(requestIDHeader),
		"code":       code,
		"message":    msg,
	})
}

// bearerMatches compares the Authorization Bearer token with secret in
// constant time.
func bearerMatches(c *gin.Context, secret string) bool {
	if secret == "" {
		return false
	}
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return false
	}
	token := strings.TrimSpace(h[len(prefix):])
	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}

// CronAuthOptions configures CronAuth.
type CronAuthOptions struct {
	Secret string
	// TrustedHeader, when non-empty, admits requests carrying that header
	// with any non-empty value.
	TrustedHeader string
}

// CronAuth guards scheduler triggers and operator endpoints.
func CronAuth(opts CronAuthOptions) gin.HandlerFunc {
	secret := strings.TrimSpace(opts.Secret)
	trusted := strings.TrimSpace(opts.TrustedHeader)
	return func(c *gin.Context) {
		if secret == "" {
			abortAuth(c, http.StatusInternalServerError, "config_error", "CRON_SECRET is not set")
			return
		}
		switch {
		case bearerMatches(c, secret):
			c.Set(ctxKeyAuthMode, AuthModeSecret)
		case trusted != "" && strings.TrimSpace(c.GetHeader(trusted)) != "":
			c.Set(ctxKeyAuthMode, AuthModeTrusted)
		default:
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "missing or invalid cron secret")
			return
		}
		c.Next()
	}
}

// QueueAuthOptions configures QueueAuth.
type QueueAuthOptions struct {
	Secret   string
	Verifier queue.Verifier
	// PublicBaseURL is the scheme and host the push-queue delivered to. The
	// signed URL is PublicBaseURL + the request URI.
	PublicBaseURL string
}

// QueueAuth guards the batch worker. It buffers the body (bounded by the
// router body limit), verifies it and restores it for the handler.
func QueueAuth(opts QueueAuthOptions) gin.HandlerFunc {
	secret := strings.TrimSpace(opts.Secret)
	base := strings.TrimRight(strings.TrimSpace(opts.PublicBaseURL), "/")
	return func(c *gin.Context) {
		if secret == "" && len(opts.Verifier.Keys) == 0 {
			abortAuth(c, http.StatusInternalServerError, "config_error", "neither CRON_SECRET nor signing keys are set")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				abortAuth(c, http.StatusRequestEntityTooLarge, "bad_request", "request body too large")
				return
			}
			abortAuth(c, http.StatusBadRequest, "bad_request", "unreadable request body")
			return
		}
		_ = c.Request.Body.Close()
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if bearerMatches(c, secret) {
			c.Set(ctxKeyAuthMode, AuthModeSecret)
			c.Next()
			return
		}

		sig := c.GetHeader(queue.HeaderSignature)
		if strings.TrimSpace(sig) == "" {
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "missing delivery signature")
			return
		}
		if len(opts.Verifier.Keys) == 0 {
			abortAuth(c, http.StatusInternalServerError, "config_error", "signing keys are not set")
			return
		}
		if base == "" {
			abortAuth(c, http.StatusInternalServerError, "config_error", "PUBLIC_BASE_URL is not set")
			return
		}
		if err := opts.Verifier.Verify(sig, base+c.Request.URL.RequestURI(), body); err != nil {
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "invalid delivery signature")
			return
		}
		c.Set(ctxKeyAuthMode, AuthModeSignature)
		c.Next()
	}
}
