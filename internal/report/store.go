package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of pgxpool.Pool the store needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists backtest metrics to the backtest_reports table.
type Store struct {
	db  Execer
	now func() time.Time
}

// NewStore creates a new report store.
func NewStore(db Execer) *Store {
	return &Store{db: db, now: time.Now}
}

// Save は分析結果をデータベースに保存します。
func (s *Store) Save(ctx context.Context, runID uuid.UUID, symbol, strategy string, m Metrics) error {
	query := `
        INSERT INTO backtest_reports (
            run_id, time, symbol, strategy, start_date, end_date,
            initial_capital, final_equity, total_return, total_return_pct, cagr,
            sharpe_ratio, sortino_ratio, max_drawdown, max_drawdown_pct,
            total_trades, winning_trades, losing_trades, win_rate,
            profit_factor, expectancy, largest_win, largest_loss,
            max_consecutive_wins, max_consecutive_losses,
            average_holding_period_seconds, recovery_factor, calmar_ratio,
            buy_and_hold_return_pct, total_commission
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
            $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30
        );
    `
	_, err := s.db.Exec(ctx, query,
		runID, s.now(), symbol, strategy, m.StartDate, m.EndDate,
		m.InitialCapital, m.FinalEquity, m.TotalReturn, m.TotalReturnPct, m.CAGR,
		m.SharpeRatio, m.SortinoRatio, m.MaxDrawdown, m.MaxDrawdownPct,
		m.TotalTrades, m.WinningTrades, m.LosingTrades, m.WinRate,
		m.ProfitFactor, m.Expectancy, m.LargestWin, m.LargestLoss,
		m.MaxConsecutiveWins, m.MaxConsecutiveLosses,
		m.AverageHoldingPeriodSeconds, m.RecoveryFactor, m.CalmarRatio,
		m.BuyAndHoldReturnPct, m.TotalCommission,
	)
	if err != nil {
		return fmt.Errorf("save backtest report %s: %w", runID, err)
	}
	return nil
}
