package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the account pool. Callers match with errors.Is.
var (
	// ErrNotFound is returned when an account id is unknown to the pool.
	ErrNotFound = errors.New("account not found")

	// ErrDuplicate is returned when two accounts share an id.
	ErrDuplicate = errors.New("duplicate account id")

	// ErrNoHealthyAccount is returned when every account is expired,
	// disabled, or cooling down. The caller should surface a retryable
	// service-unavailable signal.
	ErrNoHealthyAccount = errors.New("no healthy account available")
)

// ValidationError reports missing required fields on an account entry.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}
