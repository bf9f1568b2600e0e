package domain

import "errors"

var (
	ErrFundNotFound            = errors.New("fund not found")
	ErrFundInactive            = errors.New("fund inactive")
	ErrBelowMinimumInvestment  = errors.New("amount below fund minimum investment")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrDuplicateSubscription   = errors.New("active subscription already exists")
	ErrSubscriptionNotFound    = errors.New("active subscription not found")
	ErrInvalidAccountReference = errors.New("invalid account reference")
	ErrConcurrencyConflict     = errors.New("concurrency conflict")
	ErrPersistenceFailure      = errors.New("persistence failure")

	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrIdempotencyKeyReuse = errors.New("idempotency key reused with different parameters")
	ErrInvalidTransition   = errors.New("invalid operation state transition")
)

// IsValidation reports whether err is a caller-correctable rejection.
func IsValidation(err error) bool {
	switch {
	case errors.Is(err, ErrFundNotFound),
		errors.Is(err, ErrFundInactive),
		errors.Is(err, ErrBelowMinimumInvestment),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrDuplicateSubscription),
		errors.Is(err, ErrSubscriptionNotFound),
		errors.Is(err, ErrInvalidAccountReference),
		errors.Is(err, ErrIdempotencyKeyReuse):
		return true
	}
	return false
}

// IsRetryable reports whether the caller may resubmit the same request after a backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrRateLimited)
}
