package dbwriter

import (
	"context"
	"sync"
)

// InMemWriter is an in-memory implementation of the DBWriter interface for testing.
type InMemWriter struct {
	mu        sync.RWMutex
	Switches  []SwitchRow
	Trades    []TradeRow
	Snapshots []EquitySnapshot
	IsClosed  bool
}

// NewInMemWriter creates a new InMemWriter.
func NewInMemWriter() *InMemWriter {
	return &InMemWriter{}
}

// SaveSwitch appends a switch row.
func (w *InMemWriter) SaveSwitch(row SwitchRow) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Switches = append(w.Switches, row)
}

// SaveTrade appends a trade row.
func (w *InMemWriter) SaveTrade(row TradeRow) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Trades = append(w.Trades, row)
}

// SaveEquitySnapshot appends a snapshot.
func (w *InMemWriter) SaveEquitySnapshot(ctx context.Context, snap EquitySnapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Snapshots = append(w.Snapshots, snap)
	return nil
}

// Close marks the writer as closed.
func (w *InMemWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.IsClosed = true
}

// Counts returns the number of stored switches and trades.
func (w *InMemWriter) Counts() (switches, trades int) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.Switches), len(w.Trades)
}
