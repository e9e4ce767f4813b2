package domain

import "errors"

// Domain errors
var (
	// Not found
	ErrSpaceNotFound  = errors.New("space not found")
	ErrTicketNotFound = errors.New("ticket not found")

	// Invalid state
	ErrSpaceUnavailable  = errors.New("space is not available")
	ErrInvalidTransition = errors.New("invalid ticket transition")
	ErrNotCheckedIn      = errors.New("ticket has not checked in")

	// Conflict
	ErrPlateAlreadyActive = errors.New("vehicle plate already has an active ticket")

	// Validation
	ErrPlateMismatch     = errors.New("vehicle plate does not match reservation")
	ErrInvalidCommitment = errors.New("unsupported pre-paid duration")
	ErrInvalidPlate      = errors.New("invalid vehicle plate")
	ErrInvalidSpaceID    = errors.New("invalid space id")
	ErrInvalidTicketID   = errors.New("invalid ticket id")
	ErrInvalidUserID     = errors.New("invalid user id")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrSpaceNotFound) ||
		errors.Is(err, ErrTicketNotFound)
}

// IsInvalidStateError checks if the error is a state precondition failure,
// including stale or duplicate webhook deliveries
func IsInvalidStateError(err error) bool {
	return errors.Is(err, ErrSpaceUnavailable) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrNotCheckedIn)
}

// IsConflictError checks if the error is a uniqueness conflict
func IsConflictError(err error) bool {
	return errors.Is(err, ErrPlateAlreadyActive)
}

// IsValidationError checks if the error is a request validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrPlateMismatch) ||
		errors.Is(err, ErrInvalidCommitment) ||
		errors.Is(err, ErrInvalidPlate) ||
		errors.Is(err, ErrInvalidSpaceID) ||
		errors.Is(err, ErrInvalidTicketID) ||
		errors.Is(err, ErrInvalidUserID)
}
