package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/htn332805/RemDarwin-sub003/pkg/types"
)

// CSVProvider loads candle history from CSV files laid out under a data
// root as {root}/{exchange}/{category}/{SYMBOL}/{interval}/candles.csv.
type CSVProvider struct {
	root     string
	exchange string
	format   CSVColumnMapping
}

// NewCSVProvider creates a CSV provider rooted at the given directory.
func NewCSVProvider(root, exchange string) *CSVProvider {
	return &CSVProvider{
		root:     root,
		exchange: exchange,
		format:   DefaultCSVFormat,
	}
}

// NewCSVProviderWithFormat creates a CSV provider with a custom column mapping.
func NewCSVProviderWithFormat(root, exchange string, format CSVColumnMapping) *CSVProvider {
	return &CSVProvider{
		root:     root,
		exchange: exchange,
		format:   format,
	}
}

// GetName returns the name of the data provider.
func (p *CSVProvider) GetName() string {
	return "CSV Provider"
}

// LoadData locates and parses the candle file for a symbol and interval.
// Rows that fail to parse are skipped with a warning; a missing file is
// an error, never silently substituted.
func (p *CSVProvider) LoadData(_ context.Context, symbol, interval string) ([]types.OHLCV, error) {
	path := FindCandleFile(p.root, p.exchange, symbol, interval)
	if path == "" {
		return nil, fmt.Errorf("no candle file for %s %s under %s", symbol, interval, p.root)
	}
	return p.parseFile(path)
}

func (p *CSVProvider) parseFile(filename string) ([]types.OHLCV, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open candle file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	// Skip header.
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("candle file %s is empty", filename)
		}
		return nil, fmt.Errorf("read candle header: %w", err)
	}

	var data []types.OHLCV
	line := 1
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read candle row at line %d: %w", line, err)
		}
		line++

		bar, ok := p.parseRow(record, line)
		if !ok {
			continue
		}
		data = append(data, bar)
	}

	return data, nil
}

func (p *CSVProvider) parseRow(record []string, line int) (types.OHLCV, bool) {
	f := p.format
	if len(record) < f.MinColumns {
		log.Warn().Str("component", "csv_provider").Int("line", line).
			Int("columns", len(record)).Msg("row has too few columns, skipping")
		return types.OHLCV{}, false
	}

	ts, err := time.Parse(f.DateFormat, record[f.TimestampCol])
	if err != nil {
		log.Warn().Str("component", "csv_provider").Int("line", line).
			Str("timestamp", record[f.TimestampCol]).Msg("bad timestamp, skipping row")
		return types.OHLCV{}, false
	}

	fields := [5]float64{}
	cols := [5]int{f.OpenCol, f.HighCol, f.LowCol, f.CloseCol, f.VolumeCol}
	for i, col := range cols {
		v, err := strconv.ParseFloat(record[col], 64)
		if err != nil {
			log.Warn().Str("component", "csv_provider").Int("line", line).
				Str("value", record[col]).Msg("bad numeric field, skipping row")
			return types.OHLCV{}, false
		}
		fields[i] = v
	}

	bar := types.OHLCV{
		Timestamp: ts,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}
	if bar.Open <= 0 || bar.High <= 0 || bar.Low <= 0 || bar.Close <= 0 {
		log.Warn().Str("component", "csv_provider").Int("line", line).
			Msg("non-positive price, skipping row")
		return types.OHLCV{}, false
	}
	if bar.High < bar.Low || bar.High < bar.Open || bar.High < bar.Close ||
		bar.Low > bar.Open || bar.Low > bar.Close {
		log.Warn().Str("component", "csv_provider").Int("line", line).
			Msg("inconsistent high/low, skipping row")
		return types.OHLCV{}, false
	}
	return bar, true
}

// ValidateData validates the integrity of loaded candles.
func (p *CSVProvider) ValidateData(data []types.OHLCV) error {
	return ValidateCandles(data)
}
