package strategy

import (
	"fmt"
	"math"
	"time"
)

// SignalType represents the type of trading signal.
type SignalType int

const (
	// SignalNone indicates no signal.
	SignalNone SignalType = iota
	// SignalLong indicates a long signal.
	SignalLong
	// SignalShort indicates a short signal.
	SignalShort
)

// String returns the string representation of SignalType.
func (s SignalType) String() string {
	switch s {
	case SignalLong:
		return "LONG"
	case SignalShort:
		return "SHORT"
	case SignalNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the reverse direction. SignalNone stays SignalNone.
func (s SignalType) Opposite() SignalType {
	switch s {
	case SignalLong:
		return SignalShort
	case SignalShort:
		return SignalLong
	}
	return SignalNone
}

// Signal is the output of a strategy for the newest bar of a window.
type Signal struct {
	Type     SignalType
	Strength float64 // 0..1
	Price    float64 // close of the bar that produced the signal
	Time     time.Time
	Reason   string
}

// IsNone reports whether the signal carries no direction.
func (s Signal) IsNone() bool { return s.Type == SignalNone }

func (s Signal) String() string {
	return fmt.Sprintf("Signal(%s, strength=%.2f, reason=%q)", s.Type, s.Strength, s.Reason)
}

func clampStrength(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
