package errs

import "errors"

var (
	ErrRecordNotFound         = errors.New("record not found")
	ErrDuplicateKey           = errors.New("duplicate key")
	ErrIdempotencyKeyMismatch = errors.New("idempotency key reused with a different request")
	ErrInvalidSnapshot        = errors.New("invalid order snapshot")
	ErrNoRecipient            = errors.New("no notification recipient")
	ErrUnavailable            = errors.New("dependency unavailable")
)
