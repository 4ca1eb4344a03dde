// Package storage persists user corrections and serves them to the resolver.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/narration-resolver/internal/common"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrEmptyNarration  = fmt.Errorf("%w: narration", ErrEmptyString)
	ErrSeparatorMisuse = errors.New("category contains a malformed separator")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateCorrection checks a narration/category pair before it is stored.
// Every failure wraps common.ErrInvalidCorrection.
func validateCorrection(narration, category string) error {
	if strings.TrimSpace(narration) == "" {
		return fmt.Errorf("%w: %w", common.ErrInvalidCorrection, ErrEmptyNarration)
	}
	if strings.TrimSpace(category) == "" {
		return fmt.Errorf("%w: %w", common.ErrInvalidCorrection, common.ErrEmptyCategory)
	}
	// A category path splits into at most two parts on " / ".
	if strings.Count(category, " / ") > 1 {
		return fmt.Errorf("%w: %w: %q", common.ErrInvalidCorrection, ErrSeparatorMisuse, category)
	}
	return nil
}
