package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates the submitted event failed a business check.
	ErrValidation = errors.New("validation failed")
	// ErrBeforeEpoch indicates a date earlier than any recorded data.
	ErrBeforeEpoch = errors.New("date precedes data epoch")
)
