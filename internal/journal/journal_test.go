package journal

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/regime-switch-bot/internal/autoswitch"
	"github.com/your-org/regime-switch-bot/internal/dbwriter"
	"github.com/your-org/regime-switch-bot/internal/market"
	"github.com/your-org/regime-switch-bot/internal/position"
)

var t0 = time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC)

func sampleSwitch() autoswitch.SwitchRecord {
	return autoswitch.SwitchRecord{
		Timestamp:    t0,
		FromStrategy: "combined",
		ToStrategy:   "ema_cross",
		Condition: market.Condition{
			Volatility: market.VolatilityMedium,
			Trend:      market.TrendStrongUp,
			Volume:     market.VolumeNormal,
			ComputedAt: t0,
			Metrics:    market.Metrics{ADX: 52.5, VolumeRatio: 1.02},
		},
		Score:    100,
		Executed: true,
	}
}

func sampleTrade() position.Trade {
	return position.Trade{
		ID: "b3f1", Symbol: "BTCUSDT", Side: position.Short, Strategy: "rsi",
		EntryTime: t0, EntryPrice: 100, ExitTime: t0.Add(90 * time.Minute), ExitPrice: 98,
		Quantity: 3, PnL: 5.4, PnLPct: 1.8, Commission: 0.6, Duration: 90 * time.Minute,
		ExitReason: position.ExitTakeProfit,
	}
}

func TestWriter_SharedStream(t *testing.T) {
	var buf bytes.Buffer
	mirror := dbwriter.NewInMemWriter()
	w := NewWriter(&buf, &buf, mirror, nil)

	rejected := sampleSwitch()
	rejected.Executed = false
	rejected.RejectReason = "cooldown active: 120s remaining"

	require.NoError(t, w.RecordSwitch(sampleSwitch()))
	require.NoError(t, w.RecordTrade(sampleTrade()))
	require.NoError(t, w.RecordSwitch(rejected))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], `{"kind":"switch"`))
	assert.True(t, strings.HasPrefix(lines[1], `{"kind":"trade"`))

	switches, err := ReadSwitches(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	if diff := cmp.Diff([]autoswitch.SwitchRecord{sampleSwitch(), rejected}, switches); diff != "" {
		t.Errorf("switches mismatch (-want +got):\n%s", diff)
	}

	trades, err := ReadTrades(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	if diff := cmp.Diff([]position.Trade{sampleTrade()}, trades); diff != "" {
		t.Errorf("trades mismatch (-want +got):\n%s", diff)
	}

	s, tr := mirror.Counts()
	assert.Equal(t, 2, s)
	assert.Equal(t, 1, tr)
	assert.Equal(t, "cooldown active: 120s remaining", mirror.Switches[1].Reason)
	assert.Equal(t, "STRONG_UP", mirror.Switches[0].Trend)

	require.NoError(t, w.Close())
	assert.True(t, mirror.IsClosed)
}

func TestOpen_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	switchPath := filepath.Join(dir, "journal", "switches.ndjson")
	tradePath := filepath.Join(dir, "journal", "trades.ndjson")

	w, err := Open(switchPath, tradePath, nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.RecordSwitch(sampleSwitch()))
	require.NoError(t, w.RecordTrade(sampleTrade()))
	require.NoError(t, w.Close())

	w, err = Open(switchPath, tradePath, nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.RecordTrade(sampleTrade()))
	require.NoError(t, w.Close())

	switches, err := ReadSwitchesFile(switchPath)
	require.NoError(t, err)
	assert.Len(t, switches, 1)

	trades, err := ReadTradesFile(tradePath)
	require.NoError(t, err)
	assert.Len(t, trades, 2)

	noTrades, err := ReadTradesFile(switchPath)
	require.NoError(t, err)
	assert.Empty(t, noTrades)
}

func TestOpen_SamePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.ndjson")
	w, err := Open(path, path, nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.RecordSwitch(sampleSwitch()))
	require.NoError(t, w.RecordTrade(sampleTrade()))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(raw), "\n"))
}

func TestScan_MalformedLine(t *testing.T) {
	in := `{"kind":"trade","trade":{"id":"a"}}` + "\n\n" + `{"kind":` + "\n"
	_, err := ReadTrades(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal line 3")
}
