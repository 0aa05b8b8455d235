package nextver

import (
	"errors"
)

var (
	// ErrNoCommits is returned when the current branch has no tip commit.
	ErrNoCommits = &CalculationError{Message: "no commits found on the current branch"}

	// ErrNoBaseVersions is returned when no configuration produced a
	// candidate version.
	ErrNoBaseVersions = &CalculationError{Message: "no base versions determined on the current branch"}

	// ErrPreReleaseRequired is returned by continuous delivery when the
	// incremented version lacks a numbered pre-release tag.
	ErrPreReleaseRequired = &WarningError{Message: "continuous delivery requires a pre-release tag"}
)

// CalculationError is an unrecoverable failure: no version can be determined.
type CalculationError struct {
	Message string
}

func (e *CalculationError) Error() string {
	return e.Message
}

// WarningError is a user-facing failure that should be reported without
// internal detail.
type WarningError struct {
	Message string
}

func (e *WarningError) Error() string {
	return e.Message
}

// IsExpectedFailure reports whether err is a CalculationError or a
// WarningError, as opposed to a defect or an I/O failure.
func IsExpectedFailure(err error) bool {
	var calc *CalculationError
	var warn *WarningError
	return errors.As(err, &calc) || errors.As(err, &warn)
}
