package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrMissingField     = fmt.Errorf("content and fingerprint are required")
	ErrEmptyContent     = fmt.Errorf("message cannot be empty")
	ErrTooLong          = fmt.Errorf("message too long (max 500 characters)")
	ErrSpamPattern      = fmt.Errorf("message appears to be spam")
	ErrRateLimited      = fmt.Errorf("rate limit exceeded")
	ErrStoreUnavailable = fmt.Errorf("store unavailable")
	ErrUnknown          = fmt.Errorf("unknown error")

	ErrLockNotAcquired = fmt.Errorf("lock not acquired")
	ErrInvalidConfig   = fmt.Errorf("invalid configuration")
)

// RateLimitedError is returned when a fingerprint posts inside its cooldown window.
// It matches ErrRateLimited with errors.Is.
type RateLimitedError struct {
	RemainingSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("Rate limit exceeded. Please wait %d seconds.", e.RemainingSeconds)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}
