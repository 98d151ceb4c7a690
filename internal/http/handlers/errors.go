// Package handlers defines the error codes returned by the pipeline endpoints.
//
// Every error response carries an HTTP status and one of these codes in the
// envelope {request_id, code, message}. Callers (the push-queue, cron
// platforms, operators) branch on the code, not the message.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "unauthorized",
//	  "message": "invalid delivery signature"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeConfig           = "config_error"
	ErrCodeInternal         = "internal_error"

	// Pipeline-specific:
	ErrCodeRunFailed      = "run_failed"
	ErrCodeBatchFailed    = "batch_failed"
	ErrCodeCoverageFailed = "coverage_failed"
)
