package birthday

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAlreadyRegistered is returned by Insert when the member already has a record.
	ErrAlreadyRegistered = errors.New("birthday already registered")

	// ErrInvalidDate is returned when input is not a real DD/MM/YYYY date.
	ErrInvalidDate = errors.New("invalid date, expected DD/MM/YYYY")

	// ErrFutureDate is returned for birthdates after today.
	ErrFutureDate = errors.New("birthdate is in the future")

	// ErrTooOld is returned when the implied age exceeds MaxAge.
	ErrTooOld = errors.New("implied age exceeds the oldest recorded human")

	// ErrTooYoung is returned when the implied age is MinAge or less.
	ErrTooYoung = errors.New("implied age is under the platform minimum")
)

// IsUserInputError reports whether err should be shown to the member rather
// than logged as a system failure.
func IsUserInputError(err error) bool {
	return errors.Is(err, ErrAlreadyRegistered) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrFutureDate) ||
		errors.Is(err, ErrTooOld) ||
		errors.Is(err, ErrTooYoung)
}
