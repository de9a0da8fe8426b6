package dbwriter

import (
	"context"
)

// DBWriter mirrors journal records into the database.
// This allows for mocking in tests.
type DBWriter interface {
	SaveSwitch(row SwitchRow)
	SaveTrade(row TradeRow)
	SaveEquitySnapshot(ctx context.Context, snap EquitySnapshot) error
	Close()
}
