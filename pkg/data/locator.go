package data

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// NormalizeInterval converts human interval strings ("5m", "1h", "4h",
// "1d", "1w") to the Bybit kline interval codes used in data paths and
// API calls. Daily and coarser intervals map to their letter codes;
// intra-day intervals map to minute counts. Unknown forms pass through.
func NormalizeInterval(interval string) string {
	s := strings.TrimSpace(interval)
	if s == "" {
		return s
	}
	// Already a minute count or a letter code.
	if _, err := strconv.Atoi(s); err == nil {
		return s
	}
	switch strings.ToUpper(s) {
	case "D", "W", "M":
		return strings.ToUpper(s)
	}

	lower := strings.ToLower(s)
	if len(lower) < 2 {
		return s
	}
	num, err := strconv.Atoi(lower[:len(lower)-1])
	if err != nil || num <= 0 {
		return s
	}
	switch lower[len(lower)-1] {
	case 'm':
		return strconv.Itoa(num)
	case 'h':
		return strconv.Itoa(num * 60)
	case 'd':
		if num == 1 {
			return "D"
		}
		return strconv.Itoa(num * 24 * 60)
	case 'w':
		if num == 1 {
			return "W"
		}
		return strconv.Itoa(num * 7 * 24 * 60)
	default:
		return s
	}
}

// CandleFile builds the canonical candle path:
// {root}/{exchange}/{category}/{SYMBOL}/{interval}/candles.csv
func CandleFile(root, exchange, category, symbol, interval string) string {
	return filepath.Join(root, exchange, category,
		strings.ToUpper(symbol), NormalizeInterval(interval), "candles.csv")
}

// FindCandleFile searches the known categories of an exchange for a
// candle file and returns the first path that exists, or "" when none do.
func FindCandleFile(root, exchange, symbol, interval string) string {
	var categories []string
	switch strings.ToLower(exchange) {
	case "bybit":
		categories = []string{"spot", "linear", "inverse"}
	default:
		categories = []string{"spot", "linear", "inverse", "futures"}
	}

	for _, category := range categories {
		path := CandleFile(root, exchange, category, symbol, interval)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
