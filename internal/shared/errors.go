package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or business-rule-violating input.
	ErrValidation = errors.New("validation failed")
)
