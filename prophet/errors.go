package prophet

import (
	"errors"
	"fmt"
)

var (
	// ErrFitFailure marks a series the model could not be fitted to.
	ErrFitFailure = errors.New("fit failure")

	// ErrInvariantViolation marks forecast output that breaks a structural
	// guarantee. It indicates a bug, not bad input.
	ErrInvariantViolation = errors.New("invariant violation")
)

var (
	errConstantSeries = errors.New("series has zero variance")
	errNonFinite      = errors.New("series contains non-finite values")
	errNotPositiveDef = errors.New("normal equations are not positive definite")
	errNotConverged   = errors.New("noise variance did not converge")
	errBadCoefficient = errors.New("non-finite coefficient")
)

// FitError wraps the numeric cause of a failed fit.
type FitError struct {
	Series string
	Cause  error
}

func (e *FitError) Error() string {
	return fmt.Sprintf("fit failure for series %q: %v", e.Series, e.Cause)
}

// Unwrap lets errors.Is match both ErrFitFailure and the cause.
func (e *FitError) Unwrap() []error {
	return []error{ErrFitFailure, e.Cause}
}

func fitError(series string, cause error) error {
	return &FitError{Series: series, Cause: cause}
}
