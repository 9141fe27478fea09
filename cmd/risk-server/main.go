package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/htn332805/RemDarwin-sub003/internal/config"
	"github.com/htn332805/RemDarwin-sub003/internal/logger"
	"github.com/htn332805/RemDarwin-sub003/internal/monitoring"
	"github.com/htn332805/RemDarwin-sub003/internal/portfolio"
	"github.com/htn332805/RemDarwin-sub003/internal/risk"
	"github.com/htn332805/RemDarwin-sub003/internal/server"
	"github.com/htn332805/RemDarwin-sub003/internal/store"
	"github.com/htn332805/RemDarwin-sub003/pkg/data"
	"github.com/htn332805/RemDarwin-sub003/pkg/types"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		bookFile = flag.String("book", "", "Portfolio JSON file holding the open book")
		value    = flag.Float64("value", 100000, "Portfolio value when no book file is given")
		port     = flag.Int("port", 0, "Listen port - overrides SERVER_PORT")
		envFile  = flag.String("env", ".env", "Environment file path")
	)
	flag.Parse()

	if err := loadEnvFile(*envFile); err != nil {
		log.Printf("Warning: could not load env file (%v), using process environment", err)
	}

	cfg := config.Load()
	logger.Setup(cfg.Environment, cfg.LogLevel)
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Bad configuration: %v", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Risk-event log unavailable: %v", err)
	}
	defer st.Close()

	alerts := make(chan risk.Alert, 64)
	go drainAlerts(alerts)

	loss := risk.NewLossManager(cfg.Risk, st)
	sizer := risk.NewSizer(cfg.Risk, alerts)
	framework := risk.NewFramework(cfg.Risk, loss, sizer)
	evaluator := risk.NewEvaluator(cfg.Risk, loss, sizer, framework)

	book, err := loadBook(*bookFile, *value, cfg.Data)
	if err != nil {
		log.Fatalf("Bad book file: %v", err)
	}

	svc := server.NewService(evaluator, loss, framework, book)
	srv, err := server.NewServer(cfg.Server, server.NewHandlers(svc, monitoring.NewHealthChecker(st)))
	if err != nil {
		log.Fatalf("Server setup failed: %v", err)
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()
	fmt.Printf("🛡️  Risk API on http://%s\n", srv.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	fmt.Println("\n🛑 Shutdown signal received...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Shutdown failed: %v", err)
	}
	fmt.Println("✅ Risk API stopped")
}

// openStore picks the durable backend when configured, in-memory
// otherwise
func openStore(cfg *config.Config) (store.Store, error) {
	if !cfg.Database.Enabled {
		zlog.Info().Str("component", "main").Msg("Risk-event log in memory (RISK_PG_ENABLED=false)")
		return store.NewMemoryStore(), nil
	}

	pg, err := store.OpenPostgres(store.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		QueryTimeout: cfg.Database.QueryTimeout,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

func drainAlerts(alerts <-chan risk.Alert) {
	for alert := range alerts {
		zlog.Warn().
			Str("component", "main").
			Str("kind", alert.Kind).
			Str("symbol", alert.Symbol).
			Str("severity", alert.Severity).
			Msg(alert.Message)
	}
}

// fileBook serves a fixed book loaded at startup; return history comes
// from the candle store on demand.
type fileBook struct {
	port     *portfolio.Portfolio
	provider data.Provider
	interval string
}

func (b *fileBook) Portfolio() *portfolio.Portfolio {
	return b.port
}

// Returns loads candle history for every symbol in the book. Symbols
// without candles are skipped so a thin data directory degrades the
// dashboard instead of breaking it.
func (b *fileBook) Returns(ctx context.Context) (map[string][]float64, error) {
	returns := make(map[string][]float64)
	for _, symbol := range b.port.Symbols() {
		candles, err := b.provider.LoadData(ctx, symbol, b.interval)
		if err != nil {
			zlog.Warn().Err(err).Str("component", "main").Str("symbol", symbol).
				Msg("No candle history for dashboard returns")
			continue
		}
		if series := types.SimpleReturns(candles); len(series) > 0 {
			returns[symbol] = series
		}
	}
	return returns, nil
}

func loadBook(path string, value float64, dataCfg config.DataConfig) (*fileBook, error) {
	port := portfolio.New(value)
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read book file: %w", err)
		}
		if err := json.Unmarshal(raw, port); err != nil {
			return nil, fmt.Errorf("parse book file: %w", err)
		}
		zlog.Info().Str("component", "main").Int("positions", port.OpenCount()).
			Float64("value", port.Value).Msg("Book loaded from file")
	}

	return &fileBook{
		port:     port,
		provider: data.NewCachedProvider(data.NewCSVProvider(dataCfg.Root, dataCfg.Exchange)),
		interval: dataCfg.Interval,
	}, nil
}

// loadEnvFile loads environment variables from a file
func loadEnvFile(envFile string) error {
	if _, err := os.Stat(envFile); err == nil {
		return godotenv.Load(envFile)
	}
	return fmt.Errorf("env file %s not found", envFile)
}
