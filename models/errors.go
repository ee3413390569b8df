package models

import "errors"

// Error taxonomy. Specific errors wrap one of these so callers can classify
// with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPrecondition      = errors.New("precondition failed")
	ErrInfrastructure    = errors.New("infrastructure error")
)

// ErrorKind is the wire-level code for an error class
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindPrecondition      ErrorKind = "precondition"
	KindInfrastructure    ErrorKind = "infrastructure"
)

// KindOf classifies err. Anything not tagged with a taxonomy error is
// treated as infrastructure.
func KindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrPrecondition):
		return KindPrecondition
	default:
		return KindInfrastructure
	}
}
