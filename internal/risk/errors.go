package risk

import (
	"errors"
	"fmt"
)

// ErrValidation is matched by every ValidationError via errors.Is.
var ErrValidation = errors.New("order validation failed")

// ValidationError names the rule that rejected an order intent.
type ValidationError struct {
	Rule   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("risk: %s: %s", e.Rule, e.Detail)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func reject(rule, format string, args ...interface{}) error {
	return &ValidationError{Rule: rule, Detail: fmt.Sprintf(format, args...)}
}
