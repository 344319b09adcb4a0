package transaction

import "errors"

var (
	ErrNotFound          = errors.New("transaction not found")
	ErrConflict          = errors.New("transaction was changed by someone else")
	ErrForbidden         = errors.New("not allowed to act on this transaction")
	ErrInvalidTransition = errors.New("action not allowed in the current state")
	ErrValidation        = errors.New("invalid request")
)
