// Package journal is the append-only switch journal and trade ledger. Records are
// newline-delimited JSON envelopes tagged with their kind.
package journal

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/your-org/regime-switch-bot/internal/autoswitch"
	"github.com/your-org/regime-switch-bot/internal/dbwriter"
	"github.com/your-org/regime-switch-bot/internal/position"
)

// Record kinds.
const (
	KindSwitch = "switch"
	KindTrade  = "trade"
)

// Entry is one line of the journal.
type Entry struct {
	Kind   string                   `json:"kind"`
	Switch *autoswitch.SwitchRecord `json:"switch,omitempty"`
	Trade  *position.Trade          `json:"trade,omitempty"`
}

// Writer appends switch records and trades. It is safe for concurrent use.
type Writer struct {
	mu       sync.Mutex
	switches io.Writer
	trades   io.Writer
	closers  []io.Closer
	mirror   dbwriter.DBWriter
	logger   *zap.Logger
}

// NewWriter writes switch records to switches and trades to trades. They may be
// the same writer. mirror may be nil.
func NewWriter(switches, trades io.Writer, mirror dbwriter.DBWriter, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{switches: switches, trades: trades, mirror: mirror, logger: logger}
}

// Open opens (or creates) the journal files for appending. When both paths are
// equal the records share one file.
func Open(switchPath, tradePath string, mirror dbwriter.DBWriter, logger *zap.Logger) (*Writer, error) {
	sw, err := openAppend(switchPath)
	if err != nil {
		return nil, err
	}
	tw := sw
	if filepath.Clean(tradePath) != filepath.Clean(switchPath) {
		if tw, err = openAppend(tradePath); err != nil {
			_ = sw.Close()
			return nil, err
		}
	}
	w := NewWriter(sw, tw, mirror, logger)
	w.closers = append(w.closers, sw)
	if tw != sw {
		w.closers = append(w.closers, tw)
	}
	return w, nil
}

func openAppend(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}
	return f, nil
}

func (w *Writer) append(dst io.Writer, e Entry) error {
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", e.Kind, err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := dst.Write(line); err != nil {
		return fmt.Errorf("failed to append %s record: %w", e.Kind, err)
	}
	return nil
}

// RecordSwitch appends rec and mirrors it to the database.
func (w *Writer) RecordSwitch(rec autoswitch.SwitchRecord) error {
	if err := w.append(w.switches, Entry{Kind: KindSwitch, Switch: &rec}); err != nil {
		return err
	}
	if w.mirror != nil {
		w.mirror.SaveSwitch(SwitchRow(rec))
	}
	return nil
}

// RecordTrade appends t and mirrors it to the database.
func (w *Writer) RecordTrade(t position.Trade) error {
	if err := w.append(w.trades, Entry{Kind: KindTrade, Trade: &t}); err != nil {
		return err
	}
	if w.mirror != nil {
		w.mirror.SaveTrade(dbwriter.TradeRowFrom(t))
	}
	w.logger.Debug("Trade journaled", zap.String("id", t.ID), zap.Float64("pnl", t.PnL))
	return nil
}

// Close closes the files opened by Open and the mirror.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var firstErr error
	for _, c := range w.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.closers = nil
	if w.mirror != nil {
		w.mirror.Close()
		w.mirror = nil
	}
	return firstErr
}

// SwitchRow converts a switch record into its database row.
func SwitchRow(rec autoswitch.SwitchRecord) dbwriter.SwitchRow {
	return dbwriter.SwitchRow{
		Time:         rec.Timestamp,
		FromStrategy: rec.FromStrategy,
		ToStrategy:   rec.ToStrategy,
		Volatility:   string(rec.Condition.Volatility),
		Trend:        string(rec.Condition.Trend),
		Volume:       string(rec.Condition.Volume),
		Score:        decimal.NewFromFloat(rec.Score),
		Forced:       rec.Forced,
		DryRun:       rec.DryRun,
		Executed:     rec.Executed,
		Reason:       rec.RejectReason,
	}
}
