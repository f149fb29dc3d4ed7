package amortization

import "errors"

// Input and post-condition failures. Callers classify with errors.Is; the
// returned errors wrap these with the offending value.
var (
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrInvalidRate             = errors.New("invalid rate")
	ErrInvalidTerm             = errors.New("invalid term")
	ErrArithmeticInconsistency = errors.New("arithmetic inconsistency")
)

// IsValidationError reports whether err is caused by bad input rather than
// an engine defect.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidRate) ||
		errors.Is(err, ErrInvalidTerm)
}
