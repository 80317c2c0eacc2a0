package apperror

const (
	// Client errors (4xx)
	CodeInvalidInput     = "INVALID_INPUT"
	CodeValidation       = "VALIDATION_ERROR"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeInvalidState     = "INVALID_STATE"
	CodeTooManyRequests  = "TOO_MANY_REQUESTS"
	CodeQuotaNotFound    = "QUOTA_NOT_FOUND"
	CodeInsufficient     = "INSUFFICIENT_BALANCE"
	CodeAlreadyProcessed = "ALREADY_PROCESSED"

	// Server errors (5xx)
	CodeInternalError      = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)
