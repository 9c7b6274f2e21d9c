package ports

import "errors"

// Standard application-level errors.
// Kernel components and adapters wrap these with fmt.Errorf("...: %w", ...) so
// callers can classify failures with errors.Is.
var (
	// Simulation kernel errors. All of them abort a run.
	ErrTimeRegression       = errors.New("simulated time cannot move backwards")
	ErrNotFound             = errors.New("resource not found")
	ErrInvariantViolation   = errors.New("kernel invariant violated")
	ErrInvalidTransition    = errors.New("invalid position status transition")
	ErrOutOfRangeFill       = errors.New("fill price outside of bar range")
	ErrIndexSearchExhausted = errors.New("nearest index search did not converge")
	ErrRunawayLoop          = errors.New("maximum replay iterations reached")

	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// History source errors
	ErrExchangeUnavailable  = errors.New("exchange API is unavailable")
	ErrConnectionFailed     = errors.New("failed to connect to the exchange")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("exchange authentication failed (check API keys)")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
)
