package domain

import "errors"

// Domain errors
var (
	// Lookup errors
	ErrExperienceNotFound  = errors.New("experience not found")
	ErrDateNotFound        = errors.New("date is not among the bookable slots")
	ErrReservationNotFound = errors.New("reservation not found")

	// Capacity errors
	ErrNoAvailableDate  = errors.New("no available date, all slots are full")
	ErrCapacityExceeded = errors.New("requested seats exceed remaining capacity")

	// Validation errors
	ErrInvalidExperienceID  = errors.New("invalid experience id")
	ErrInvalidUserID        = errors.New("invalid user id")
	ErrInvalidSeats         = errors.New("seats must be at least one")
	ErrInvalidDate          = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidHorizon       = errors.New("horizon must be at least one slot")
	ErrInvalidReferenceDate = errors.New("reference date must be set")
	ErrDuplicateReservation = errors.New("user already holds a reservation at this date")

	// Storage errors
	ErrStorageQuotaExceeded = errors.New("storage quota exceeded")
	ErrStorageUnavailable   = errors.New("storage unavailable")

	// Invariant violations (programming errors, never expected at runtime)
	ErrLedgerCorrupted = errors.New("ledger invariant violated")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrExperienceNotFound) ||
		errors.Is(err, ErrDateNotFound) ||
		errors.Is(err, ErrReservationNotFound)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidExperienceID) ||
		errors.Is(err, ErrInvalidUserID) ||
		errors.Is(err, ErrInvalidSeats) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidHorizon) ||
		errors.Is(err, ErrInvalidReferenceDate)
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrNoAvailableDate) ||
		errors.Is(err, ErrDuplicateReservation)
}

// IsStorageError checks if the error is a persistence failure
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorageQuotaExceeded) ||
		errors.Is(err, ErrStorageUnavailable)
}
