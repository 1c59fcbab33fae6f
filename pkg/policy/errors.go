package policy

import (
	"errors"
	"fmt"
)

// ErrSecurityViolation is the sentinel wrapped by every ViolationError.
var ErrSecurityViolation = errors.New("security violation")

// ViolationError reports a blocked table, action, executor, or raw SQL fragment.
type ViolationError struct {
	Category Category
	Name     string
	Reason   string
}

func (e *ViolationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("security violation: %s %q: %s", e.Category, e.Name, e.Reason)
	}
	return fmt.Sprintf("security violation: %s %q is not allowed", e.Category, e.Name)
}

// Unwrap returns ErrSecurityViolation.
func (*ViolationError) Unwrap() error {
	return ErrSecurityViolation
}

// Check returns a ViolationError when name is not allowed by p.
func Check(category Category, name string, p Policy) error {
	if IsAllowed(category, name, p) {
		return nil
	}
	return &ViolationError{Category: category, Name: name}
}
