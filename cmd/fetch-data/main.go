package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/htn332805/RemDarwin-sub003/internal/config"
	"github.com/htn332805/RemDarwin-sub003/internal/logger"
	"github.com/htn332805/RemDarwin-sub003/pkg/data"
)

func main() {
	var (
		symbolList = flag.String("symbols", "", "Comma-separated symbols to fetch (e.g. BTCUSDT,ETHUSDT)")
		interval   = flag.String("interval", "", "Candle interval - overrides DATA_INTERVAL")
		category   = flag.String("category", "", "Market category (spot, linear, inverse) - overrides DATA_CATEGORY")
		years      = flag.Int("years", 2, "Years of history to fetch")
		output     = flag.String("output", "", "Data root directory - overrides DATA_ROOT")
		envFile    = flag.String("env", ".env", "Environment file path")
	)
	flag.Parse()

	if err := loadEnvFile(*envFile); err != nil {
		log.Printf("Warning: could not load env file (%v), using process environment", err)
	}

	cfg := config.Load()
	logger.Setup(cfg.Environment, cfg.LogLevel)

	if *symbolList == "" {
		log.Fatal("Please specify symbols with -symbols (e.g. -symbols BTCUSDT,ETHUSDT)")
	}
	if *interval == "" {
		*interval = cfg.Data.Interval
	}
	if *category == "" {
		*category = cfg.Data.Category
	}
	if *output == "" {
		*output = cfg.Data.Root
	}
	if *years <= 0 {
		log.Fatalf("Years must be positive, got %d", *years)
	}

	symbols := splitSymbols(*symbolList)
	provider := data.NewBybitProvider(data.BybitConfig{
		Category:  *category,
		Horizon:   time.Duration(*years) * 365 * 24 * time.Hour,
		RateLimit: cfg.Data.RateLimit,
		RateBurst: cfg.Data.RateBurst,
	})

	fmt.Printf("📥 Fetching %s candles for %d symbol(s) from %s...\n", *interval, len(symbols), provider.GetName())

	ctx := context.Background()
	failed := 0
	for _, symbol := range symbols {
		candles, err := provider.LoadData(ctx, symbol, *interval)
		if err != nil {
			fmt.Printf("❌ %s: %v\n", symbol, err)
			failed++
			continue
		}
		if err := provider.ValidateData(candles); err != nil {
			fmt.Printf("❌ %s: %v\n", symbol, err)
			failed++
			continue
		}

		path := data.CandleFile(*output, cfg.Data.Exchange, *category, symbol, *interval)
		if err := data.WriteCandles(path, candles); err != nil {
			fmt.Printf("❌ %s: %v\n", symbol, err)
			failed++
			continue
		}
		fmt.Printf("✅ %s: %d candles -> %s\n", symbol, len(candles), path)
	}

	if failed > 0 {
		fmt.Printf("⚠️  %d of %d symbols failed\n", failed, len(symbols))
		os.Exit(1)
	}
	fmt.Println("🎉 All symbols fetched")
}

// loadEnvFile loads environment variables from a file
func loadEnvFile(envFile string) error {
	if _, err := os.Stat(envFile); err == nil {
		return godotenv.Load(envFile)
	}
	return fmt.Errorf("env file %s not found", envFile)
}

func splitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	symbols := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := strings.ToUpper(strings.TrimSpace(part)); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}
