package domain

import "errors"

// Sentinel error kinds. Services wrap these (or return them directly);
// the API layer maps each kind to a status code. "Not found" deliberately
// covers both absent entities and entities the requester may not see, so
// private data is indistinguishable from non-existent data.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("already exists")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInternal         = errors.New("internal error")
)

// kindError carries a user-facing message on top of a sentinel kind.
type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

// Validation returns a ErrValidation with a specific user-facing reason.
func Validation(msg string) error {
	return &kindError{kind: ErrValidation, msg: msg}
}

// Conflict returns a ErrConflict with a specific user-facing reason.
func Conflict(msg string) error {
	return &kindError{kind: ErrConflict, msg: msg}
}

// Message extracts the user-facing message from an error, falling back
// to the given default for bare sentinels and unknown errors.
func Message(err error, fallback string) string {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.msg
	}
	return fallback
}
