package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/your-org/regime-switch-bot/internal/market"
)

// Querier is the subset of pgxpool.Pool the repository uses.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// PostgresRepository reads and writes bars in the bars table.
type PostgresRepository struct {
	db Querier
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var barColumns = []string{"symbol", "timeframe", "time", "open", "high", "low", "close", "volume"}

func scanBars(rows pgx.Rows) (market.Series, error) {
	defer rows.Close()
	var bars market.Series
	for rows.Next() {
		var b market.Bar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		b.Time = b.Time.UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// FetchBars returns the newest count bars, oldest first.
func (r *PostgresRepository) FetchBars(ctx context.Context, symbol, timeframe string, count int) (market.Series, error) {
	query := `
        SELECT time, open, high, low, close, volume
        FROM bars
        WHERE symbol = $1 AND timeframe = $2
        ORDER BY time DESC
        LIMIT $3;
    `
	rows, err := r.db.Query(ctx, query, symbol, timeframe, count)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	bars, err := scanBars(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan bars: %w", err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w for %s %s", ErrNoBars, symbol, timeframe)
	}
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// FetchRange returns the bars with start <= time < end, oldest first.
func (r *PostgresRepository) FetchRange(ctx context.Context, symbol, timeframe string, start, end time.Time) (market.Series, error) {
	query := `
        SELECT time, open, high, low, close, volume
        FROM bars
        WHERE symbol = $1 AND timeframe = $2 AND time >= $3 AND time < $4
        ORDER BY time ASC;
    `
	rows, err := r.db.Query(ctx, query, symbol, timeframe, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	bars, err := scanBars(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan bars: %w", err)
	}
	return bars, nil
}

// SaveBars bulk-inserts bars with COPY.
func (r *PostgresRepository) SaveBars(ctx context.Context, symbol, timeframe string, bars market.Series) error {
	rows := make([][]interface{}, len(bars))
	for i, b := range bars {
		rows[i] = []interface{}{symbol, timeframe, b.Time, b.Open, b.High, b.Low, b.Close, b.Volume}
	}
	if _, err := r.db.CopyFrom(ctx, pgx.Identifier{"bars"}, barColumns, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("failed to copy bars: %w", err)
	}
	return nil
}

// DeleteBefore removes bars older than cutoff and returns the number removed.
func (r *PostgresRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, "DELETE FROM bars WHERE time < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old bars: %w", err)
	}
	return tag.RowsAffected(), nil
}
