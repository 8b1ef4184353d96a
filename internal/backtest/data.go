package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/vutran1810/futures-hedge-bot/pkg/types"
)

// CSVColumnMapping defines the column positions for historical data files.
type CSVColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	MinColumns   int
	DateFormat   string
}

// DefaultCSVMapping matches the common exchange export format.
var DefaultCSVMapping = CSVColumnMapping{
	TimestampCol: 0,
	OpenCol:      1,
	HighCol:      2,
	LowCol:       3,
	CloseCol:     4,
	VolumeCol:    5,
	MinColumns:   6,
	DateFormat:   "2006-01-02 15:04:05",
}

// LoadCSV reads candles from a CSV file, skipping a header row when present.
func LoadCSV(path string, mapping CSVColumnMapping) ([]types.OHLCV, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	var candles []types.OHLCV
	first := true

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		if len(record) < mapping.MinColumns {
			return nil, fmt.Errorf("record has %d columns, need %d", len(record), mapping.MinColumns)
		}

		candle, err := parseRecord(record, mapping)
		if err != nil {
			if first {
				// Header row.
				first = false
				continue
			}
			return nil, err
		}
		first = false
		candles = append(candles, candle)
	}

	if len(candles) == 0 {
		return nil, fmt.Errorf("no candles in %s", path)
	}
	return candles, nil
}

func parseRecord(record []string, mapping CSVColumnMapping) (types.OHLCV, error) {
	ts, err := parseTimestamp(record[mapping.TimestampCol], mapping.DateFormat)
	if err != nil {
		return types.OHLCV{}, err
	}

	fields := [5]float64{}
	for i, col := range []int{mapping.OpenCol, mapping.HighCol, mapping.LowCol, mapping.CloseCol, mapping.VolumeCol} {
		v, err := strconv.ParseFloat(record[col], 64)
		if err != nil {
			return types.OHLCV{}, fmt.Errorf("parse column %d: %w", col, err)
		}
		fields[i] = v
	}

	return types.OHLCV{
		Timestamp: ts,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}

func parseTimestamp(raw, format string) (time.Time, error) {
	// Millisecond epoch timestamps are common in exchange exports.
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	ts, err := time.Parse(format, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return ts, nil
}
