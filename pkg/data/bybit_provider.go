package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/htn332805/RemDarwin-sub003/pkg/types"
)

// BybitConfig holds the settings for the Bybit kline provider.
type BybitConfig struct {
	Category  string        // "spot", "linear", "inverse"
	Horizon   time.Duration // how far back LoadData reaches; default two years
	RateLimit float64       // requests per second
	RateBurst int
	PageLimit int // klines per request, Bybit caps at 1000
	Testnet   bool
}

// BybitProvider fetches candle history from the Bybit v5 market API.
// Requests are rate limited and wrapped in a circuit breaker so a broken
// upstream degrades to errors instead of hammering the exchange.
type BybitProvider struct {
	client    *bybit_api.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	category  string
	horizon   time.Duration
	pageLimit int
}

// NewBybitProvider creates a Bybit market-data provider. Public kline
// endpoints need no API credentials.
func NewBybitProvider(cfg BybitConfig) *BybitProvider {
	if cfg.Category == "" {
		cfg.Category = "spot"
	}
	if cfg.Horizon <= 0 {
		cfg.Horizon = 2 * 365 * 24 * time.Hour
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 10
	}
	if cfg.PageLimit <= 0 || cfg.PageLimit > 1000 {
		cfg.PageLimit = 1000
	}

	baseURL := bybit_api.MAINNET
	if cfg.Testnet {
		baseURL = bybit_api.TESTNET
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "bybit-kline",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("component", "bybit_provider").Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return &BybitProvider{
		client:    bybit_api.NewBybitHttpClient("", "", bybit_api.WithBaseURL(baseURL)),
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		breaker:   breaker,
		category:  cfg.Category,
		horizon:   cfg.Horizon,
		pageLimit: cfg.PageLimit,
	}
}

// GetName returns the name of the data provider.
func (p *BybitProvider) GetName() string {
	return "Bybit Provider"
}

// LoadData fetches the configured horizon of candles for a symbol.
func (p *BybitProvider) LoadData(ctx context.Context, symbol, interval string) ([]types.OHLCV, error) {
	end := time.Now()
	return p.FetchRange(ctx, symbol, interval, end.Add(-p.horizon), end)
}

// FetchRange fetches candles between start and end, walking backwards in
// pages because Bybit returns klines newest first. The result is sorted
// ascending and trimmed to the requested range.
func (p *BybitProvider) FetchRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]types.OHLCV, error) {
	interval = NormalizeInterval(interval)

	var all []types.OHLCV
	currentEnd := end
	for currentEnd.After(start) {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		page, err := p.fetchPage(ctx, symbol, interval, start, currentEnd)
		if err != nil {
			return nil, fmt.Errorf("fetch %s %s klines: %w", symbol, interval, err)
		}
		if len(page) == 0 {
			break
		}

		all = append(all, page...)

		oldest := page[len(page)-1].Timestamp
		if !oldest.Before(currentEnd) {
			break
		}
		currentEnd = oldest.Add(-time.Millisecond)
	}

	candles := SortCandles(all)
	out := make([]types.OHLCV, 0, len(candles))
	for _, bar := range candles {
		if !bar.Timestamp.Before(start) {
			out = append(out, bar)
		}
	}

	log.Debug().Str("component", "bybit_provider").Str("symbol", symbol).
		Str("interval", interval).Int("candles", len(out)).Msg("fetched kline range")
	return out, nil
}

func (p *BybitProvider) fetchPage(ctx context.Context, symbol, interval string, start, end time.Time) ([]types.OHLCV, error) {
	params := map[string]interface{}{
		"category": p.category,
		"symbol":   symbol,
		"interval": interval,
		"start":    start.UnixMilli(),
		"end":      end.UnixMilli(),
		"limit":    p.pageLimit,
	}

	raw, err := p.breaker.Execute(func() (interface{}, error) {
		return p.client.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
	})
	if err != nil {
		return nil, err
	}
	return parseKlineResponse(raw)
}

func parseKlineResponse(response interface{}) ([]types.OHLCV, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected response type %T", response)
	}
	if serverResp.RetCode != 0 {
		return nil, fmt.Errorf("bybit api error %d: %s", serverResp.RetCode, serverResp.RetMsg)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal kline result: %w", err)
	}

	var klineResult struct {
		Symbol   string     `json:"symbol"`
		Category string     `json:"category"`
		List     [][]string `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &klineResult); err != nil {
		return nil, fmt.Errorf("unmarshal kline result: %w", err)
	}

	return klinesToCandles(klineResult.List), nil
}

// klinesToCandles converts raw Bybit kline rows
// [startTimeMs, open, high, low, close, volume, turnover] into candles.
// Incomplete or unparseable rows are dropped.
func klinesToCandles(list [][]string) []types.OHLCV {
	candles := make([]types.OHLCV, 0, len(list))
	for _, row := range list {
		if len(row) < 6 {
			continue
		}
		ms, err := strconv.ParseInt(row[0], 10, 64)
		if err != nil {
			continue
		}

		var fields [5]float64
		bad := false
		for i := 0; i < 5; i++ {
			v, err := strconv.ParseFloat(row[i+1], 64)
			if err != nil {
				bad = true
				break
			}
			fields[i] = v
		}
		if bad {
			continue
		}

		candles = append(candles, types.OHLCV{
			Timestamp: time.UnixMilli(ms),
			Open:      fields[0],
			High:      fields[1],
			Low:       fields[2],
			Close:     fields[3],
			Volume:    fields[4],
		})
	}
	return candles
}

// ValidateData validates the integrity of loaded candles.
func (p *BybitProvider) ValidateData(data []types.OHLCV) error {
	return ValidateCandles(data)
}
