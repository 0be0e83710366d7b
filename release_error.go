package main

import (
	"errors"
	"fmt"
)

// We define a custom error type so that we can provide friendlier error messages
type releaseError struct {
	errorCode int    // an error code is an arbitrary int that allows for strongly typed identification of specific errors
	details   string // the output of the underlying error message, if any
	err       error  // the underlying golang error, if any
}

// Implement the golang Error interface
func (e *releaseError) Error() string {
	return fmt.Sprintf("%d - %s", e.errorCode, e.details)
}

func (e *releaseError) Unwrap() error {
	return e.err
}

func newError(errorCode int, details string) error {
	return &releaseError{
		errorCode: errorCode,
		details:   details,
	}
}

func newErrorf(errorCode int, format string, args ...interface{}) error {
	return newError(errorCode, fmt.Sprintf(format, args...))
}

// wrapError attaches an error code to an underlying error. A nil err stays nil.
func wrapError(errorCode int, err error) error {
	if err == nil {
		return nil
	}
	return &releaseError{
		errorCode: errorCode,
		details:   err.Error(),
		err:       err,
	}
}

// errorCodeOf returns the code of the first releaseError in the chain, or -1
func errorCodeOf(err error) int {
	var relErr *releaseError
	if errors.As(err, &relErr) {
		return relErr.errorCode
	}
	return -1
}

// errNothingToRelease signals that the resolved tag is already published. It is not a failure.
var errNothingToRelease = errors.New("nothing to release")
