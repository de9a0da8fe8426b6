// Package pnl accumulates realized PnL and the daily and weekly loss windows
// the risk gate checks against.
package pnl

import (
	"sync"
	"time"
)

// Calculator handles PnL calculations. Windows roll over on UTC day and ISO week
// boundaries derived from the realization time, or explicitly through ResetDaily
// and ResetWeekly.
type Calculator struct {
	mutex    sync.RWMutex
	realized float64
	daily    float64
	weekly   float64
	dayKey   time.Time
	weekKey  time.Time
}

// NewCalculator creates a new PnL Calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func weekStart(t time.Time) time.Time {
	d := dayStart(t)
	offset := (int(d.Weekday()) + 6) % 7 // Monday = 0
	return d.AddDate(0, 0, -offset)
}

// Record adds a realized PnL at time at.
func (c *Calculator) Record(pnl float64, at time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.roll(at)
	c.realized += pnl
	c.daily += pnl
	c.weekly += pnl
}

// UpdateRealizedPnL adds a realized PnL at the current time.
func (c *Calculator) UpdateRealizedPnL(pnl float64) {
	c.Record(pnl, time.Now())
}

func (c *Calculator) roll(at time.Time) {
	if d := dayStart(at); d.After(c.dayKey) {
		c.dayKey = d
		c.daily = 0
	}
	if w := weekStart(at); w.After(c.weekKey) {
		c.weekKey = w
		c.weekly = 0
	}
}

// Roll advances the windows to now without recording a trade.
func (c *Calculator) Roll(now time.Time) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.roll(now)
}

// ResetDaily clears the daily window.
func (c *Calculator) ResetDaily() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.daily = 0
}

// ResetWeekly clears the weekly window.
func (c *Calculator) ResetWeekly() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.weekly = 0
}

// CalculateUnrealizedPnL calculates the unrealized PnL. positionSize is signed,
// negative for shorts.
func (c *Calculator) CalculateUnrealizedPnL(positionSize float64, avgEntryPrice float64, currentPrice float64) float64 {
	if positionSize == 0 {
		return 0
	}
	return (currentPrice - avgEntryPrice) * positionSize
}

// GetRealizedPnL returns the current realized PnL.
func (c *Calculator) GetRealizedPnL() float64 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.realized
}

// DailyLoss returns the realized loss of the current day as a positive amount.
func (c *Calculator) DailyLoss() float64 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return max(0, -c.daily)
}

// WeeklyLoss returns the realized loss of the current week as a positive amount.
func (c *Calculator) WeeklyLoss() float64 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return max(0, -c.weekly)
}

// Windows returns the daily and weekly realized PnL.
func (c *Calculator) Windows() (daily, weekly float64) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.daily, c.weekly
}
