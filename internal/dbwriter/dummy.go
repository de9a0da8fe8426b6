package dbwriter

import (
	"context"

	"go.uber.org/zap"
)

// dummyWriter is a no-op DBWriter used when no database is configured.
type dummyWriter struct {
	logger *zap.Logger
}

// NewDummyWriter creates a new dummy writer.
func NewDummyWriter(l *zap.Logger) DBWriter {
	l.Info("Creating dummy DB writer because no database connection is available.")
	return &dummyWriter{logger: l}
}

// SaveSwitch does nothing.
func (d *dummyWriter) SaveSwitch(row SwitchRow) {}

// SaveTrade does nothing.
func (d *dummyWriter) SaveTrade(row TradeRow) {}

// SaveEquitySnapshot does nothing and returns nil.
func (d *dummyWriter) SaveEquitySnapshot(ctx context.Context, snap EquitySnapshot) error {
	d.logger.Debug("Dummy writer: SaveEquitySnapshot called", zap.String("session", snap.SessionID))
	return nil
}

// Close does nothing.
func (d *dummyWriter) Close() {
	d.logger.Debug("Dummy writer: Close called")
}
