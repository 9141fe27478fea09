package data

import (
	"context"

	"github.com/htn332805/RemDarwin-sub003/pkg/types"
)

// Provider loads historical candles from some source. LoadData takes a
// context because network-backed providers block; file providers ignore it.
type Provider interface {
	// LoadData loads the full available candle history for a symbol at
	// the given interval, in ascending timestamp order.
	LoadData(ctx context.Context, symbol, interval string) ([]types.OHLCV, error)

	// ValidateData validates the integrity of loaded candles.
	ValidateData(data []types.OHLCV) error

	// GetName returns the name of the data provider.
	GetName() string
}

// Cache stores loaded candle series keyed by symbol and interval.
type Cache interface {
	Get(key string) ([]types.OHLCV, bool)
	Set(key string, data []types.OHLCV)
	Clear()
	Size() int
}

// CSVColumnMapping defines the column positions for a CSV candle format.
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

// DefaultCSVFormat matches the layout written by the fetch-data binary:
// timestamp, open, high, low, close, volume.
var DefaultCSVFormat = CSVColumnMapping{
	TimestampCol: 0,
	OpenCol:      1,
	HighCol:      2,
	LowCol:       3,
	CloseCol:     4,
	VolumeCol:    5,
	MinColumns:   6,
	DateFormat:   "2006-01-02 15:04:05",
}
