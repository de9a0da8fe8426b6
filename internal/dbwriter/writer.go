package dbwriter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/your-org/regime-switch-bot/internal/config"
	"github.com/your-org/regime-switch-bot/internal/position"
)

// SwitchRow is one row of the switch_records table.
type SwitchRow struct {
	Time         time.Time       `db:"time"`
	FromStrategy string          `db:"from_strategy"`
	ToStrategy   string          `db:"to_strategy"`
	Volatility   string          `db:"volatility"`
	Trend        string          `db:"trend"`
	Volume       string          `db:"volume"`
	Score        decimal.Decimal `db:"score"`
	Forced       bool            `db:"forced"`
	DryRun       bool            `db:"dry_run"`
	Executed     bool            `db:"executed"`
	Reason       string          `db:"reason"`
}

// TradeRow is one row of the trades table.
type TradeRow struct {
	ID         string          `db:"id"`
	Symbol     string          `db:"symbol"`
	Side       string          `db:"side"` // "long" or "short"
	Strategy   string          `db:"strategy"`
	EntryTime  time.Time       `db:"entry_time"`
	EntryPrice decimal.Decimal `db:"entry_price"`
	ExitTime   time.Time       `db:"exit_time"`
	ExitPrice  decimal.Decimal `db:"exit_price"`
	Quantity   decimal.Decimal `db:"quantity"`
	PnL        decimal.Decimal `db:"pnl"`
	Commission decimal.Decimal `db:"commission"`
	ExitReason string          `db:"exit_reason"`
}

// EquitySnapshot is a point-in-time account summary of a paper session.
type EquitySnapshot struct {
	Time          time.Time       `db:"time"`
	SessionID     string          `db:"session_id"`
	Strategy      string          `db:"strategy"`
	Symbol        string          `db:"symbol"`
	RealizedPnL   decimal.Decimal `db:"realized_pnl"`
	UnrealizedPnL decimal.Decimal `db:"unrealized_pnl"`
	Equity        decimal.Decimal `db:"equity"`
	PositionSize  decimal.Decimal `db:"position_size"`
	AvgEntryPrice decimal.Decimal `db:"avg_entry_price"`
}

// TradeRowFrom converts a closed trade into its table row.
func TradeRowFrom(t position.Trade) TradeRow {
	return TradeRow{
		ID:         t.ID,
		Symbol:     t.Symbol,
		Side:       string(t.Side),
		Strategy:   t.Strategy,
		EntryTime:  t.EntryTime,
		EntryPrice: decimal.NewFromFloat(t.EntryPrice),
		ExitTime:   t.ExitTime,
		ExitPrice:  decimal.NewFromFloat(t.ExitPrice),
		Quantity:   decimal.NewFromFloat(t.Quantity),
		PnL:        decimal.NewFromFloat(t.PnL),
		Commission: decimal.NewFromFloat(t.Commission),
		ExitReason: t.ExitReason,
	}
}

var (
	switchColumns = []string{"time", "from_strategy", "to_strategy", "volatility", "trend", "volume", "score", "forced", "dry_run", "executed", "reason"}
	tradeColumns  = []string{"id", "symbol", "side", "strategy", "entry_time", "entry_price", "exit_time", "exit_price", "quantity", "pnl", "commission", "exit_reason"}
)

// Pool is an interface that abstracts the pgxpool.Pool for testability.
type Pool interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Close()
}

// PostgresWriter buffers journal rows and flushes them with COPY.
type PostgresWriter struct {
	pool         Pool
	logger       *zap.Logger
	batchSize    int
	switchBuffer []SwitchRow
	tradeBuffer  []TradeRow
	bufferMutex  sync.Mutex
	flushTicker  *time.Ticker
	shutdownChan chan struct{}
	closeOnce    sync.Once
	wg           sync.WaitGroup
}

// NewPostgresWriter starts a batch writer over pool. A nil pool yields the dummy writer.
func NewPostgresWriter(pool Pool, cfg config.JournalConfig, logger *zap.Logger) DBWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pool == nil {
		return NewDummyWriter(logger)
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		logger.Warn("BatchSize is zero or negative, defaulting to 100.", zap.Int("originalValue", batchSize))
		batchSize = 100
	}
	interval := cfg.WriteInterval
	if interval <= 0 {
		logger.Warn("WriteInterval is zero or negative, defaulting to 1s.", zap.Duration("originalValue", interval))
		interval = time.Second
	}

	w := &PostgresWriter{
		pool:         pool,
		logger:       logger,
		batchSize:    batchSize,
		switchBuffer: make([]SwitchRow, 0, batchSize),
		tradeBuffer:  make([]TradeRow, 0, batchSize),
		flushTicker:  time.NewTicker(interval),
		shutdownChan: make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	logger.Info("Started journal batch writer", zap.Int("batchSize", batchSize), zap.Duration("interval", interval))
	return w
}

// Close stops the background loop, flushes the buffers and closes the pool.
func (w *PostgresWriter) Close() {
	w.closeOnce.Do(func() {
		w.logger.Info("Closing journal DB writer...")
		close(w.shutdownChan)
		w.wg.Wait()
		w.flushTicker.Stop()
		w.flushBuffers()
		w.pool.Close()
		w.logger.Info("Journal DB connection pool closed")
	})
}

func (w *PostgresWriter) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.flushTicker.C:
			w.flushBuffers()
		case <-w.shutdownChan:
			return
		}
	}
}

// SaveSwitch buffers a switch row.
func (w *PostgresWriter) SaveSwitch(row SwitchRow) {
	w.bufferMutex.Lock()
	w.switchBuffer = append(w.switchBuffer, row)
	shouldFlush := len(w.switchBuffer) >= w.batchSize
	w.bufferMutex.Unlock()

	if shouldFlush {
		w.flushBuffers()
	}
}

// SaveTrade buffers a trade row.
func (w *PostgresWriter) SaveTrade(row TradeRow) {
	w.bufferMutex.Lock()
	w.tradeBuffer = append(w.tradeBuffer, row)
	shouldFlush := len(w.tradeBuffer) >= w.batchSize
	w.bufferMutex.Unlock()

	if shouldFlush {
		w.flushBuffers()
	}
}

func (w *PostgresWriter) flushBuffers() {
	w.bufferMutex.Lock()
	defer w.bufferMutex.Unlock()

	ctx := context.Background()
	if len(w.switchBuffer) > 0 {
		w.copyRows(ctx, "switch_records", switchColumns, switchInterfaces(w.switchBuffer))
		w.switchBuffer = w.switchBuffer[:0]
	}
	if len(w.tradeBuffer) > 0 {
		w.copyRows(ctx, "trades", tradeColumns, tradeInterfaces(w.tradeBuffer))
		w.tradeBuffer = w.tradeBuffer[:0]
	}
}

func (w *PostgresWriter) copyRows(ctx context.Context, table string, columns []string, rows [][]interface{}) {
	w.logger.Debug("Flushing rows", zap.String("table", table), zap.Int("count", len(rows)))
	if _, err := w.pool.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows)); err != nil {
		w.logger.Error("Failed to batch insert rows", zap.String("table", table), zap.Error(err))
	}
}

func switchInterfaces(rows []SwitchRow) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, r := range rows {
		out[i] = []interface{}{r.Time, r.FromStrategy, r.ToStrategy, r.Volatility, r.Trend, r.Volume, r.Score, r.Forced, r.DryRun, r.Executed, r.Reason}
	}
	return out
}

func tradeInterfaces(rows []TradeRow) [][]interface{} {
	out := make([][]interface{}, len(rows))
	for i, r := range rows {
		out[i] = []interface{}{r.ID, r.Symbol, r.Side, r.Strategy, r.EntryTime, r.EntryPrice, r.ExitTime, r.ExitPrice, r.Quantity, r.PnL, r.Commission, r.ExitReason}
	}
	return out
}

// SaveEquitySnapshot inserts a single snapshot row.
func (w *PostgresWriter) SaveEquitySnapshot(ctx context.Context, snap EquitySnapshot) error {
	query := `INSERT INTO equity_snapshots (time, session_id, strategy, symbol, realized_pnl, unrealized_pnl, equity, position_size, avg_entry_price)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := w.pool.Exec(ctx, query,
		snap.Time, snap.SessionID, snap.Strategy, snap.Symbol,
		snap.RealizedPnL, snap.UnrealizedPnL, snap.Equity,
		snap.PositionSize, snap.AvgEntryPrice,
	)
	if err != nil {
		w.logger.Error("Failed to insert equity snapshot", zap.Error(err), zap.Any("snapshot", snap))
		return fmt.Errorf("failed to insert equity snapshot: %w", err)
	}
	w.logger.Debug("[Paper] Saved equity snapshot to DB.")
	return nil
}
