package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/your-org/regime-switch-bot/internal/autoswitch"
	"github.com/your-org/regime-switch-bot/internal/position"
)

const maxLine = 1 << 20

// Scan calls fn for every entry in r. Blank lines are skipped; a malformed line
// is an error naming its line number.
func Scan(r io.Reader, fn func(Entry) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(b, &e); err != nil {
			return fmt.Errorf("journal line %d: %w", line, err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ReadSwitches returns the switch records in r in journal order.
func ReadSwitches(r io.Reader) ([]autoswitch.SwitchRecord, error) {
	var out []autoswitch.SwitchRecord
	err := Scan(r, func(e Entry) error {
		if e.Kind == KindSwitch && e.Switch != nil {
			out = append(out, *e.Switch)
		}
		return nil
	})
	return out, err
}

// ReadTrades returns the trades in r in journal order.
func ReadTrades(r io.Reader) ([]position.Trade, error) {
	var out []position.Trade
	err := Scan(r, func(e Entry) error {
		if e.Kind == KindTrade && e.Trade != nil {
			out = append(out, *e.Trade)
		}
		return nil
	})
	return out, err
}

// ReadTradesFile reads the trades of the journal at path.
func ReadTradesFile(path string) ([]position.Trade, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()
	return ReadTrades(f)
}

// ReadSwitchesFile reads the switch records of the journal at path.
func ReadSwitchesFile(path string) ([]autoswitch.SwitchRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()
	return ReadSwitches(f)
}
