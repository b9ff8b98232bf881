package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Anti-forgery ──────────────────────────────────────────────────
	ErrCSRFRequired ErrCode = "CSRF_TOKEN_REQUIRED"
	ErrCSRFInvalid  ErrCode = "CSRF_TOKEN_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Assessment ────────────────────────────────────────────────────
	ErrNoQuestions      ErrCode = "NO_QUESTIONS"
	ErrMockTestNotFound ErrCode = "MOCK_TEST_NOT_FOUND"
	ErrMockTestExpired  ErrCode = "MOCK_TEST_EXPIRED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Anti-forgery ──────────────────────────────────────────────────
	case ErrCSRFRequired:
		return "CSRF token missing."
	case ErrCSRFInvalid:
		return "CSRF token is invalid or expired."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."

	// ─── Assessment ────────────────────────────────────────────────────
	case ErrNoQuestions:
		return "No questions available for this topic."
	case ErrMockTestNotFound:
		return "Mock test not found."
	case ErrMockTestExpired:
		return "Time for this mock test is over."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
