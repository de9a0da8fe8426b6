// Package csvwriter exports backtest ledgers and equity curves as CSV.
package csvwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/regime-switch-bot/internal/position"
	"github.com/your-org/regime-switch-bot/internal/report"
)

// Column headers of the exported files.
var (
	TradeHeader  = []string{"id", "symbol", "side", "strategy", "entry_time", "entry_price", "exit_time", "exit_price", "quantity", "pnl", "pnl_pct", "commission", "duration_seconds", "exit_reason"}
	EquityHeader = []string{"time", "equity"}
)

// Writer is a simple CSV writer.
type Writer struct {
	closer io.Closer
	writer *csv.Writer
	logger *zap.Logger
	rows   int
	mu     sync.Mutex
}

// NewWriter creates the file at filePath, including missing parent
// directories, and writes header when it is not empty.
func NewWriter(filePath string, header []string, logger *zap.Logger) (*Writer, error) {
	if dir := filepath.Dir(filePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create CSV directory: %w", err)
		}
	}
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file: %w", err)
	}
	w := newWriter(file, file, logger)
	if len(header) > 0 {
		if err := w.Write(header); err != nil {
			_ = file.Close()
			return nil, err
		}
		w.rows = 0
	}
	return w, nil
}

func newWriter(out io.Writer, closer io.Closer, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{closer: closer, writer: csv.NewWriter(out), logger: logger}
}

// Write writes a record to the CSV file.
func (w *Writer) Write(record []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Write(record); err != nil {
		return fmt.Errorf("failed to write record to CSV: %w", err)
	}
	w.rows++
	return nil
}

// WriteTrades appends one row per trade.
func (w *Writer) WriteTrades(trades []position.Trade) error {
	for _, t := range trades {
		if err := w.Write(TradeRecord(t)); err != nil {
			return err
		}
	}
	return nil
}

// WriteEquity appends one row per equity sample.
func (w *Writer) WriteEquity(points []report.EquityPoint) error {
	for _, p := range points {
		if err := w.Write([]string{p.Time.UTC().Format(time.RFC3339), formatFloat(p.Equity)}); err != nil {
			return err
		}
	}
	return nil
}

// TradeRecord renders t in TradeHeader column order.
func TradeRecord(t position.Trade) []string {
	return []string{
		t.ID,
		t.Symbol,
		string(t.Side),
		t.Strategy,
		t.EntryTime.UTC().Format(time.RFC3339),
		formatFloat(t.EntryPrice),
		t.ExitTime.UTC().Format(time.RFC3339),
		formatFloat(t.ExitPrice),
		formatFloat(t.Quantity),
		formatFloat(t.PnL),
		strconv.FormatFloat(t.PnLPct, 'f', 4, 64),
		formatFloat(t.Commission),
		strconv.FormatFloat(t.Duration.Seconds(), 'f', 0, 64),
		t.ExitReason,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Rows returns the number of data rows written, excluding the header.
func (w *Writer) Rows() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// Flush flushes any buffered data to the underlying file.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writer.Flush()
	return w.writer.Error()
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.logger.Error("failed to flush CSV", zap.Error(err))
	}
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}
