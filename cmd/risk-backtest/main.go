package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/htn332805/RemDarwin-sub003/internal/backtest"
	"github.com/htn332805/RemDarwin-sub003/internal/config"
	"github.com/htn332805/RemDarwin-sub003/internal/logger"
	"github.com/htn332805/RemDarwin-sub003/internal/options"
	"github.com/htn332805/RemDarwin-sub003/internal/portfolio"
	"github.com/htn332805/RemDarwin-sub003/internal/regime"
	"github.com/htn332805/RemDarwin-sub003/internal/risk"
	"github.com/htn332805/RemDarwin-sub003/pkg/data"
	"github.com/htn332805/RemDarwin-sub003/pkg/optimization"
	"github.com/htn332805/RemDarwin-sub003/pkg/reporting"
	"github.com/htn332805/RemDarwin-sub003/pkg/types"
)

func main() {
	var (
		symbolList = flag.String("symbols", "", "Comma-separated symbols to backtest (e.g. AAPL,MSFT)")
		source     = flag.String("source", "csv", "Candle source: csv or bybit")
		interval   = flag.String("interval", "", "Candle interval - overrides DATA_INTERVAL")
		years      = flag.Int("years", 2, "Years of history to use")
		regimeList = flag.String("regimes", "all", "Comma-separated regimes, or 'all'")
		window     = flag.Int("window", 252, "Walk-forward and VaR estimation window in bars")
		value      = flag.Float64("value", 100000, "Portfolio value for the VaR scorecard")
		output     = flag.String("output", "", "Results root directory (default: results)")
		console    = flag.Bool("console", true, "Print result tables to the console")
		csvOut     = flag.Bool("csv", true, "Write CSV artifacts")
		excelOut   = flag.Bool("excel", false, "Write an Excel workbook")
		jsonOut    = flag.Bool("json", true, "Write the JSON run artifact")
		validate   = flag.Bool("validate", true, "Score VaR breach coverage over the history")
		optimize   = flag.Bool("optimize", false, "Tune alert thresholds with the genetic optimizer first")
		gens       = flag.Int("generations", 0, "Optimizer generations (0 = default)")
		popSize    = flag.Int("population", 0, "Optimizer population size (0 = default)")
		seed       = flag.Int64("seed", 0, "Optimizer random seed (0 = clock)")
		envFile    = flag.String("env", ".env", "Environment file path")
	)
	flag.Parse()

	if err := loadEnvFile(*envFile); err != nil {
		log.Printf("Warning: could not load env file (%v), using process environment", err)
	}

	cfg := config.Load()
	logName := fmt.Sprintf("backtest_%s.log", time.Now().UTC().Format("20060102_150405"))
	closer, err := logger.TeeFile(cfg.Environment, cfg.LogLevel, "logs", logName)
	if err != nil {
		log.Printf("Warning: console-only logging (%v)", err)
		logger.Setup(cfg.Environment, cfg.LogLevel)
	} else {
		defer closer.Close()
	}

	if *symbolList == "" {
		log.Fatal("Please specify symbols with -symbols (e.g. -symbols AAPL,MSFT)")
	}
	if *interval == "" {
		*interval = cfg.Data.Interval
	}
	symbols := splitSymbols(*symbolList)

	regimes, err := parseRegimes(*regimeList)
	if err != nil {
		log.Fatalf("Bad -regimes value: %v", err)
	}

	provider, err := buildProvider(*source, cfg.Data)
	if err != nil {
		log.Fatalf("Bad -source value: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("🚀 Risk backtest: %d symbol(s), %s bars from %s\n", len(symbols), *interval, provider.GetName())

	validator := backtest.NewValidator(cfg.Risk, provider, *interval)
	dataset, err := validator.AcquireHistoricalData(ctx, symbols, *years)
	if err != nil {
		log.Fatalf("Historical data acquisition failed: %v", err)
	}

	if *optimize {
		tuned, err := runOptimization(ctx, cfg.Risk, dataset, *gens, *popSize, *seed)
		if err != nil {
			fmt.Printf("⚠️  Optimization skipped: %v\n", err)
		} else {
			cfg.Risk = tuned
			validator = backtest.NewValidator(cfg.Risk, provider, *interval)
		}
	}

	multi, err := validator.RunMultiRegimeBacktest(ctx, dataset, regimes)
	if err != nil {
		log.Fatalf("Multi-regime backtest failed: %v", err)
	}

	var wf *backtest.WalkForwardReport
	if *window > 0 {
		wf, err = validator.RunWalkForward(ctx, dataset, *window)
		if err != nil {
			fmt.Printf("⚠️  Walk-forward skipped: %v\n", err)
			wf = nil
		}
	}

	manager := reporting.NewReportingManager(reporting.ReportingConfig{
		EnableConsole:   *console,
		EnableFiles:     *csvOut || *excelOut || *jsonOut,
		OutputDirectory: *output,
		CSVEnabled:      *csvOut,
		ExcelEnabled:    *excelOut,
		JSONEnabled:     *jsonOut,
	})
	outputDir, err := manager.ReportBacktest(multi, wf)
	if err != nil {
		log.Fatalf("Reporting failed: %v", err)
	}
	if outputDir != "" {
		fmt.Printf("📁 Results written to %s\n", outputDir)
	}

	if *validate {
		runValidationScorecard(manager, cfg.Risk, dataset, *value, *window)
	}
}

// runOptimization searches the alert-threshold space against the pooled
// return history and returns the tuned risk configuration.
func runOptimization(ctx context.Context, riskCfg config.RiskConfig, dataset map[string][]types.OHLCV, gens, popSize int, seed int64) (config.RiskConfig, error) {
	pooled := pooledReturns(dataset)
	if len(pooled) == 0 {
		return riskCfg, fmt.Errorf("dataset has no usable returns")
	}

	gaCfg := optimization.DefaultConfig()
	if gens > 0 {
		gaCfg.Generations = gens
	}
	if popSize > 0 {
		gaCfg.PopulationSize = popSize
	}
	gaCfg.Seed = seed

	fmt.Printf("🧬 Optimizing thresholds over %d bars: population %d, %d generations\n",
		len(pooled), gaCfg.PopulationSize, gaCfg.Generations)

	best, err := optimization.New(gaCfg, optimization.DefaultRanges(), riskCfg).Optimize(ctx, pooled)
	if err != nil {
		return riskCfg, err
	}

	fmt.Printf("✅ Best genome: decay %.2f, vol spike %.2fx, adverse move %.2f, allocation %.1f%% (fitness %.4f)\n",
		best.Genome.PremiumDecayThreshold, best.Genome.VolSpikeRatio,
		best.Genome.AdverseMoveThreshold, best.Genome.Allocation*100, best.Fitness)
	return best.Genome.ApplyTo(riskCfg), nil
}

// pooledReturns concatenates per-symbol returns in name order so runs
// with a fixed seed reproduce.
func pooledReturns(dataset map[string][]types.OHLCV) []float64 {
	symbols := make([]string, 0, len(dataset))
	for symbol := range dataset {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	var pooled []float64
	for _, symbol := range symbols {
		pooled = append(pooled, types.SimpleReturns(dataset[symbol])...)
	}
	return pooled
}

// runValidationScorecard scores how often realized one-day losses
// breached the model VaR across the history, using a synthetic
// one-position-per-symbol book.
func runValidationScorecard(manager *reporting.ReportingManager, riskCfg config.RiskConfig, dataset map[string][]types.OHLCV, value float64, window int) {
	port, returns := buildValidationBook(dataset, value)
	periods := buildValidationPeriods(port, returns, window)
	if len(periods) == 0 {
		fmt.Printf("⚠️  VaR scorecard skipped: need more than %d aligned bars\n", window)
		return
	}

	loss := risk.NewLossManager(riskCfg, nil)
	framework := risk.NewFramework(riskCfg, loss, risk.NewSizer(riskCfg, nil))
	report, err := framework.ValidateRiskFramework(port, periods)
	if err != nil {
		fmt.Printf("⚠️  VaR scorecard failed: %v\n", err)
		return
	}
	manager.ReportValidation(report)
}

// buildValidationBook holds one short put per symbol, struck near the
// last close, so VaR weights follow each underlying's price.
func buildValidationBook(dataset map[string][]types.OHLCV, value float64) (*portfolio.Portfolio, map[string][]float64) {
	port := portfolio.New(value)
	returns := make(map[string][]float64, len(dataset))

	for symbol, candles := range dataset {
		series := types.SimpleReturns(candles)
		if len(series) == 0 {
			continue
		}
		returns[symbol] = series

		last := candles[len(candles)-1].Close
		p := options.NewPosition(symbol, options.OptionPut, last*0.95, last*0.01, last, 1)
		port.Positions = append(port.Positions, p)
	}
	return port, returns
}

// buildValidationPeriods emits one period per bar after the estimation
// window: the trailing window estimates VaR, the bar's own dollar move
// is the realized loss. Series are aligned on their most recent bars.
func buildValidationPeriods(port *portfolio.Portfolio, returns map[string][]float64, window int) []risk.HistoricalPeriod {
	n := 0
	for _, series := range returns {
		if n == 0 || len(series) < n {
			n = len(series)
		}
	}
	if n <= window || window <= 0 {
		return nil
	}

	aligned := make(map[string][]float64, len(returns))
	notionals := make(map[string]float64, len(returns))
	for symbol, series := range returns {
		aligned[symbol] = series[len(series)-n:]
	}
	for _, p := range port.Positions {
		notionals[p.Symbol] += p.Notional()
	}

	periods := make([]risk.HistoricalPeriod, 0, n-window)
	for t := window; t < n; t++ {
		trailing := make(map[string][]float64, len(aligned))
		dayLoss := 0.0
		for symbol, series := range aligned {
			trailing[symbol] = series[t-window : t]
			dayLoss -= notionals[symbol] * series[t]
		}
		if dayLoss < 0 {
			dayLoss = 0
		}
		periods = append(periods, risk.HistoricalPeriod{
			Name:         fmt.Sprintf("bar_%d", t),
			Returns:      trailing,
			RealizedLoss: dayLoss,
		})
	}
	return periods
}

func buildProvider(source string, dataCfg config.DataConfig) (data.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "csv":
		return data.NewCachedProvider(data.NewCSVProvider(dataCfg.Root, dataCfg.Exchange)), nil
	case "bybit":
		return data.NewCachedProvider(data.NewBybitProvider(data.BybitConfig{
			Category:  dataCfg.Category,
			RateLimit: dataCfg.RateLimit,
			RateBurst: dataCfg.RateBurst,
		})), nil
	default:
		return nil, fmt.Errorf("unknown source %q (want csv or bybit)", source)
	}
}

func parseRegimes(raw string) ([]regime.Regime, error) {
	if strings.EqualFold(strings.TrimSpace(raw), "all") {
		return regime.All(), nil
	}

	var regimes []regime.Regime
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		r, err := regime.Parse(part)
		if err != nil {
			return nil, err
		}
		regimes = append(regimes, r)
	}
	if len(regimes) == 0 {
		return nil, fmt.Errorf("no regimes in %q", raw)
	}
	return regimes, nil
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
