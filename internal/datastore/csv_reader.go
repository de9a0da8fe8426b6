package datastore

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/your-org/regime-switch-bot/internal/market"
	"github.com/your-org/regime-switch-bot/pkg/logger"
)

// BarCSVHeader is the header written by the exporter and expected by the readers.
var BarCSVHeader = []string{"time", "open", "high", "low", "close", "volume"}

const exportTimeLayout = "2006-01-02 15:04:05.999999-07"

func parseTime(timeStr string) (time.Time, error) {
	if t, err := time.Parse(exportTimeLayout, timeStr); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, timeStr); err == nil {
		return t.UTC(), nil
	}
	if ms, err := strconv.ParseInt(timeStr, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("could not parse time '%s' with any known format", timeStr)
}

func parseBar(record []string) (market.Bar, error) {
	if len(record) < 6 {
		return market.Bar{}, fmt.Errorf("expected 6 columns, got %d", len(record))
	}
	t, err := parseTime(strings.TrimSpace(record[0]))
	if err != nil {
		return market.Bar{}, err
	}
	var vals [5]float64
	for i := range vals {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[i+1]), 64)
		if err != nil {
			return market.Bar{}, fmt.Errorf("column %s: %w", BarCSVHeader[i+1], err)
		}
		vals[i] = v
	}
	return market.Bar{Time: t, Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}, nil
}

// ReadBarsCSV reads bars from r. The first row is a header. Malformed rows are
// skipped with a warning. The result is validated for ordering.
func ReadBarsCSV(r io.Reader) (market.Series, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return market.Series{}, nil
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	var bars market.Series
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		bar, err := parseBar(record)
		if err != nil {
			logger.Warnf("Skipping bar on line %d: %v", line, err)
			continue
		}
		bars = append(bars, bar)
	}
	if err := bars.Validate(); err != nil {
		return nil, err
	}
	return bars, nil
}

// LoadBarsFromCSV reads an entire CSV file into memory.
func LoadBarsFromCSV(filePath string) (market.Series, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv file: %w", err)
	}
	defer file.Close()
	return ReadBarsCSV(file)
}

// StreamBarsFromCSV streams the bars of a CSV file through a channel.
// Both channels are closed when the file is exhausted or ctx is done.
func StreamBarsFromCSV(ctx context.Context, filePath string) (<-chan market.Bar, <-chan error) {
	barCh := make(chan market.Bar)
	errCh := make(chan error, 1)

	go func() {
		defer close(barCh)
		defer close(errCh)

		file, err := os.Open(filePath)
		if err != nil {
			errCh <- fmt.Errorf("failed to open csv file: %w", err)
			return
		}
		defer file.Close()

		reader := csv.NewReader(file)
		reader.FieldsPerRecord = -1
		if _, err := reader.Read(); err != nil {
			if err != io.EOF {
				errCh <- fmt.Errorf("failed to read csv header: %w", err)
			}
			return
		}

		var total int
		for {
			record, err := reader.Read()
			if err == io.EOF {
				logger.Infof("Successfully streamed %d bars from %s", total, filePath)
				return
			}
			if err != nil {
				errCh <- fmt.Errorf("failed to read csv record: %w", err)
				return
			}
			bar, err := parseBar(record)
			if err != nil {
				logger.Warnf("Skipping bar: %v", err)
				continue
			}
			select {
			case barCh <- bar:
				total++
			case <-ctx.Done():
				logger.Info("CSV streaming cancelled by context.")
				return
			}
		}
	}()

	return barCh, errCh
}

// WriteBarsCSV writes bars with BarCSVHeader in the export time layout.
func WriteBarsCSV(w io.Writer, bars market.Series) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(BarCSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, b := range bars {
		record := []string{
			b.Time.UTC().Format(exportTimeLayout),
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatFloat(b.Volume, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
