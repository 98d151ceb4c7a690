// Package services holds the insight pipeline: the scheduler that pages
// through eligible users and fans batches out to the queue, the batch
// processor that runs the per-user generator under a bounded worker pool,
// and the generator itself.
//
// Transport-level failures are reported with the sentinel errors below so
// handlers can map them to HTTP status codes with errors.Is. Per-user
// failures never surface as errors from the batch; they become skipped
// statuses.
package services

import "errors"

var (
	// ErrUnauthorized reports a missing or invalid shared secret or signature.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConfig reports that required configuration (shared secret, queue
	// credentials, signing keys) is absent. Raised before any user is touched.
	ErrConfig = errors.New("configuration error")

	// ErrValidation reports malformed input such as an unknown report type or
	// a base date not in YYYY-MM-DD form.
	ErrValidation = errors.New("validation error")
)
