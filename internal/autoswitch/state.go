// Package autoswitch supervises the live strategy: on every evaluation tick it
// classifies the market, ranks the strategies and decides whether switching is
// safe.
package autoswitch

import (
	"time"

	"github.com/your-org/regime-switch-bot/internal/market"
	"github.com/your-org/regime-switch-bot/internal/selector"
)

// State is the manager's view of the active strategy. Snapshots are copies.
type State struct {
	ActiveStrategy string      `json:"active_strategy"`
	ActivatedAt    time.Time   `json:"activated_at"`
	LastSwitchAt   time.Time   `json:"last_switch_at"` // zero until the first switch
	SwitchWindow   []time.Time `json:"switch_window"`  // executed switches within the trailing hour
}

func (s State) clone() State {
	s.SwitchWindow = append([]time.Time(nil), s.SwitchWindow...)
	return s
}

// SwitchRecord is one journal entry for an executed or attempted switch.
type SwitchRecord struct {
	Timestamp    time.Time        `json:"timestamp"`
	FromStrategy string           `json:"from_strategy"`
	ToStrategy   string           `json:"to_strategy"`
	Condition    market.Condition `json:"market_condition"`
	Score        float64          `json:"score"`
	Forced       bool             `json:"forced"`
	DryRun       bool             `json:"dry_run"`
	Executed     bool             `json:"executed"`
	RejectReason string           `json:"reject_reason,omitempty"`
}

// Decision is the outcome of one evaluation tick.
type Decision struct {
	Condition market.Condition `json:"market_condition"`
	Ranked    []selector.Score `json:"ranked"`
	Record    SwitchRecord     `json:"record"`
	Switched  bool             `json:"switched"`
}

// Rejected reports whether the tick decided against switching.
func (d Decision) Rejected() bool { return d.Record.RejectReason != "" }

// Stats summarizes the switching history.
type Stats struct {
	CurrentStrategy  string                   `json:"current_strategy"`
	CurrentDuration  time.Duration            `json:"current_duration"`
	TotalSwitches    int                      `json:"total_switches"`
	ForcedSwitches   int                      `json:"forced_switches"`
	SwitchesLastHour int                      `json:"switches_last_hour"`
	TimePerStrategy  map[string]time.Duration `json:"time_per_strategy"`
}

// Recorder persists switch records.
type Recorder interface {
	RecordSwitch(rec SwitchRecord) error
}

func pruneWindow(window []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-time.Hour)
	out := make([]time.Time, 0, len(window))
	for _, t := range window {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}
