package layout

import "errors"

// Validation errors - these indicate bad input
var (
	ErrInvalidLayout   = errors.New("invalid layout")
	ErrInvalidSettings = errors.New("invalid settings")
)

// IsValidationError reports whether err was caused by bad input rather than
// by an environment failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidLayout) || errors.Is(err, ErrInvalidSettings)
}
