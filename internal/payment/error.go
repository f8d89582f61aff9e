package payment

import "errors"

var (
	ErrValidation          = errors.New("validation error")
	ErrSignatureMismatch   = errors.New("payment signature mismatch")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrAmountMismatch      = errors.New("amount does not match the cart total")
)
