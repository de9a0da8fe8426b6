package market

import (
	"errors"
	"fmt"
)

// ErrInsufficientData is matched by every InsufficientDataError via errors.Is.
var ErrInsufficientData = errors.New("insufficient data")

// InsufficientDataError is returned when a window is too short for indicator warm-up.
type InsufficientDataError struct {
	Have int
	Need int
	What string
}

func (e *InsufficientDataError) Error() string {
	if e.What != "" {
		return fmt.Sprintf("insufficient data for %s: have %d bars, need %d", e.What, e.Have, e.Need)
	}
	return fmt.Sprintf("insufficient data: have %d bars, need %d", e.Have, e.Need)
}

// Is reports whether target is ErrInsufficientData.
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}
