package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"

	rerrors "github.com/htn332805/RemDarwin-sub003/internal/errors"
)

const riskMetricsSchema = `
CREATE TABLE IF NOT EXISTS risk_metrics (
	id           BIGSERIAL PRIMARY KEY,
	ts           TIMESTAMPTZ NOT NULL,
	symbol       TEXT NOT NULL,
	position_id  TEXT NOT NULL,
	loss_amount  DOUBLE PRECISION NOT NULL,
	trigger_type TEXT,
	reason       TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_risk_metrics_ts ON risk_metrics (ts DESC);
CREATE INDEX IF NOT EXISTS idx_risk_metrics_symbol_ts ON risk_metrics (symbol, ts DESC);
`

// PostgresConfig holds connection settings for the durable backend
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	QueryTimeout time.Duration
}

// PostgresStore persists the risk-event log in PostgreSQL
type PostgresStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// OpenPostgres connects to PostgreSQL, configures the pool, and
// verifies connectivity before returning the store.
func OpenPostgres(cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	log.Info().
		Int("max_open_conns", cfg.MaxOpenConns).
		Int("max_idle_conns", cfg.MaxIdleConns).
		Msg("Risk-event log connected to PostgreSQL")

	return &PostgresStore{db: db, timeout: timeout}, nil
}

// NewPostgresStore wraps an existing connection. Used by tests that
// inject a mock database.
func NewPostgresStore(db *sqlx.DB, timeout time.Duration) *PostgresStore {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PostgresStore{db: db, timeout: timeout}
}

// EnsureSchema creates the risk_metrics table and indexes if absent
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, riskMetricsSchema); err != nil {
		return rerrors.NewPersistence("store", "ensure_schema", err)
	}
	return nil
}

// Append writes one event and returns its assigned ID
func (s *PostgresStore) Append(ctx context.Context, metric RiskMetric) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	query := `
		INSERT INTO risk_metrics (ts, symbol, position_id, loss_amount, trigger_type, reason)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
		RETURNING id`

	var id int64
	err := s.db.QueryRowxContext(ctx, query,
		metric.Timestamp, metric.Symbol, metric.PositionID,
		metric.LossAmount, metric.Trigger, metric.Reason).Scan(&id)
	if err != nil {
		return 0, rerrors.NewPersistence("store", "append", err)
	}

	return id, nil
}

// Window retrieves events in the range, most recent first
func (s *PostgresStore) Window(ctx context.Context, tr TimeRange, limit int) ([]RiskMetric, error) {
	query := `
		SELECT id, ts, symbol, position_id, loss_amount,
		       COALESCE(trigger_type, '') AS trigger_type, COALESCE(reason, '') AS reason, created_at
		FROM risk_metrics
		WHERE ts >= $1 AND ts <= $2
		ORDER BY ts DESC`

	args := []interface{}{tr.From, tr.To}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	return s.query(ctx, "window", query, args...)
}

// BySymbol retrieves events for one underlying, most recent first
func (s *PostgresStore) BySymbol(ctx context.Context, symbol string, tr TimeRange, limit int) ([]RiskMetric, error) {
	query := `
		SELECT id, ts, symbol, position_id, loss_amount,
		       COALESCE(trigger_type, '') AS trigger_type, COALESCE(reason, '') AS reason, created_at
		FROM risk_metrics
		WHERE symbol = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts DESC`

	args := []interface{}{symbol, tr.From, tr.To}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}

	return s.query(ctx, "by_symbol", query, args...)
}

// Count returns the number of events in the range
func (s *PostgresStore) Count(ctx context.Context, tr TimeRange) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var count int64
	err := s.db.QueryRowxContext(ctx,
		`SELECT COUNT(*) FROM risk_metrics WHERE ts >= $1 AND ts <= $2`,
		tr.From, tr.To).Scan(&count)
	if err != nil {
		return 0, rerrors.NewPersistence("store", "count", err)
	}

	return count, nil
}

// Ping tests database connectivity
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) query(ctx context.Context, op, query string, args ...interface{}) ([]RiskMetric, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, rerrors.NewPersistence("store", op, err)
	}
	defer rows.Close()

	var metrics []RiskMetric
	for rows.Next() {
		var m RiskMetric
		if err := rows.StructScan(&m); err != nil {
			return nil, rerrors.NewPersistence("store", op, err)
		}
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, rerrors.NewPersistence("store", op, err)
	}

	return metrics, nil
}
