// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Configuration errors.
	ErrConfigMissing   = errors.New("configuration missing")
	ErrConfigMalformed = errors.New("configuration malformed")
	ErrInvalidConfig   = errors.New("invalid configuration")

	// Correction store errors.
	ErrStoreMalformed    = errors.New("correction store malformed")
	ErrEmptyCategory     = errors.New("category cannot be empty")
	ErrInvalidCorrection = errors.New("invalid correction")

	// Classification errors.
	ErrClassifierUnavailable = errors.New("classifier unavailable")
	ErrClassificationFailed  = errors.New("classification failed")

	// Input errors.
	ErrEmptyNarration = errors.New("empty description")
	ErrInvalidBatch   = errors.New("invalid batch envelope")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsTrivial reports whether err is a recognized no-signal case that callers
// should not treat as a failure.
func IsTrivial(err error) bool {
	return err == nil || errors.Is(err, ErrEmptyNarration)
}
