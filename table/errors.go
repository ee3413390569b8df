package table

import (
	"fmt"

	"casino/models"
)

var (
	ErrSeatTaken     = fmt.Errorf("%w: seat is taken", models.ErrPrecondition)
	ErrTableFull     = fmt.Errorf("%w: table is full", models.ErrPrecondition)
	ErrInvalidSeat   = fmt.Errorf("%w: invalid seat", models.ErrValidation)
	ErrNotSeated     = fmt.Errorf("%w: not seated at this table", models.ErrPrecondition)
	ErrAlreadySeated = fmt.Errorf("%w: already seated at this table", models.ErrPrecondition)
	ErrTableNotFound = fmt.Errorf("%w: table not found", models.ErrValidation)

	// ErrTableClosed is returned to requests that race with the table being
	// removed. The registry retries joins against a fresh lookup.
	ErrTableClosed = fmt.Errorf("%w: table is closed", models.ErrPrecondition)
)

func fmtValidation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrValidation, fmt.Sprintf(format, args...))
}

func fmtPrecondition(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrPrecondition, fmt.Sprintf(format, args...))
}
